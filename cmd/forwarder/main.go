// Command forwarder is the privileged host: it accepts log batches over the socket
// bridge and posts them to the development log sink.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/lixenwraith/consolefwd"
	"github.com/lixenwraith/consolefwd/bridge"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "forwarder:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listen       = pflag.StringP("listen", "l", "tcp://127.0.0.1:3031", "bridge address (tcp://host:port or unix:///path)")
		configPath   = pflag.StringP("config", "c", "", "TOML options file with a [forward] table")
		devServerURL = pflag.String("dev-server-url", "", "dev server base URL (overrides environment discovery)")
		endpoint     = pflag.String("endpoint", "", "sink path appended to the dev server URL")
		disabled     = pflag.Bool("disabled", false, "register no listener and forward nothing")
		overrides    = pflag.StringArray("set", nil, "option override as key=value (repeatable)")
	)
	pflag.Parse()

	opts := consolefwd.Options{}
	if *configPath != "" {
		var err error
		if opts, err = consolefwd.NewOptionsFromFile(*configPath); err != nil {
			return err
		}
	}
	if err := opts.ApplyOverride(*overrides...); err != nil {
		return err
	}
	if pflag.CommandLine.Changed("dev-server-url") {
		opts.DevServerURL = devServerURL
	}
	if pflag.CommandLine.Changed("endpoint") {
		opts.Endpoint = endpoint
	}
	if *disabled {
		enabled := false
		opts.Enabled = &enabled
	}

	console := consolefwd.StdConsole()
	srv := bridge.NewServer(*listen, console)

	fwd, err := consolefwd.NewForwarder(srv, opts, consolefwd.OSLookup, consolefwd.WithConsole(console))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case <-srv.Ready():
		cfg := fwd.Config()
		if cfg.Enabled {
			console.Info("forwarder: listening on", *listen, "posting to", cfg.URL())
		} else {
			console.Info("forwarder: listening on", *listen, "(forwarding disabled)")
		}
	case err := <-errCh:
		return err
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	fwd.Destroy()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		console.Warn("forwarder: stop:", err)
	}
	if err := fwd.Wait(shutdownCtx); err != nil {
		console.Warn("forwarder: in-flight posts abandoned:", err)
	}

	stats := fwd.Stats()
	console.Info("forwarder: batches", stats.Batches, "sent", stats.Sent,
		"rejected", stats.Rejected, "failed", stats.Failed, "dropped", stats.Dropped)
	return nil
}

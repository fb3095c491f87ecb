// Example pipe runs the whole pipeline in one process: an intercepted console,
// the in-process bridge, the forwarder and an in-memory dev sink.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/lixenwraith/consolefwd"
	"github.com/lixenwraith/consolefwd/bridge"
	"github.com/lixenwraith/consolefwd/formatter"
)

func main() {
	// Host-side console for the sink and forwarder warnings
	hostConsole := consolefwd.NewWriterConsole(os.Stdout, os.Stderr, formatter.New().ShowTimestamp(false))

	// In-memory sink standing in for the dev server
	ln := fasthttputil.NewInmemoryListener()
	sink := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		var body struct {
			Logs   []consolefwd.LogEntry `json:"logs"`
			Source string                `json:"source"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		for _, e := range body.Logs {
			hostConsole.Info(fmt.Sprintf("sink <- %s %s: %s", body.Source, e.Level, e.Message))
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}}
	go func() { _ = sink.Serve(ln) }()
	defer sink.Shutdown()

	// Privileged side
	pipe := bridge.NewPipe(0)
	opts, err := consolefwd.NewBuilder().
		DevServerURL("http://sink.local").
		BatchSize(3).
		BatchTimeout(200 * time.Millisecond).
		LevelsString("log,warn,error").
		Options()
	if err != nil {
		panic(err)
	}

	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	fwd, err := consolefwd.NewForwarder(pipe, opts, nil,
		consolefwd.WithClient(client),
		consolefwd.WithConsole(hostConsole),
	)
	if err != nil {
		panic(err)
	}
	defer fwd.Destroy()

	// Isolated side
	uiConsole := consolefwd.NewWriterConsole(os.Stdout, os.Stderr, formatter.New().ShowTimestamp(false))
	icpt, err := consolefwd.NewInterceptor(uiConsole, bridge.Expose(pipe), opts)
	if err != nil {
		panic(err)
	}

	uiConsole.Log("app started", map[string]any{"version": "1.0.0"})
	uiConsole.Warn("slow frame", 42.5)
	uiConsole.Error(errors.New("render failed"))
	uiConsole.Log("partial batch, flushed by timer")
	uiConsole.Info("info is not intercepted here")

	time.Sleep(400 * time.Millisecond)
	icpt.Destroy()
	pipe.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fwd.Wait(ctx); err != nil {
		hostConsole.Warn("pending posts:", err)
	}

	is, fs := icpt.Stats(), fwd.Stats()
	hostConsole.Info(fmt.Sprintf("captured=%d batches=%d sent=%d", is.Captured, is.Batches, fs.Sent))
}

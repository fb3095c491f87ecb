// Command sink is a development log sink that prints forwarded console entries.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/valyala/fasthttp"

	"github.com/lixenwraith/consolefwd"
	"github.com/lixenwraith/consolefwd/compat"
	"github.com/lixenwraith/consolefwd/formatter"
)

// sinkBody is the POST body produced by the forwarder
type sinkBody struct {
	Logs      []consolefwd.LogEntry `json:"logs"`
	Timestamp int64                 `json:"timestamp"`
	Source    string                `json:"source"`
}

func main() {
	var (
		addr     = pflag.StringP("addr", "a", ":3000", "listen address")
		endpoint = pflag.StringP("endpoint", "e", consolefwd.DefaultEndpoint, "path accepting log batches")
		format   = pflag.StringP("format", "f", formatter.FormatTxt, "output format (txt or json)")
	)
	pflag.Parse()

	console := consolefwd.NewWriterConsole(os.Stdout, os.Stderr, formatter.New().Type(*format))

	server := &fasthttp.Server{
		Handler:      newHandler(*endpoint, console),
		Logger:       compat.NewFastHTTPAdapter(console),
		Name:         "consolefwd-sink",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	console.Info("sink: listening on", *addr, "path", *endpoint)
	if err := server.ListenAndServe(*addr); err != nil {
		fmt.Fprintln(os.Stderr, "sink:", err)
		os.Exit(1)
	}
}

// newHandler accepts POSTed batches on endpoint and prints each entry at its own level
func newHandler(endpoint string, console *consolefwd.Console) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != endpoint {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		if !ctx.IsPost() {
			ctx.Response.Header.Set("Allow", fasthttp.MethodPost)
			ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
			return
		}

		var body sinkBody
		if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			ctx.SetBodyString(err.Error())
			return
		}

		for _, e := range body.Logs {
			printEntry(console, body.Source, e)
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

func printEntry(console *consolefwd.Console, source string, e consolefwd.LogEntry) {
	level, err := consolefwd.ParseLevel(string(e.Level))
	if err != nil {
		level = consolefwd.LevelLog
	}
	args := []any{"[" + source + "]", e.Message}
	if e.Stack != "" {
		args = append(args, "\n"+e.Stack)
	}
	console.Call(level, args...)
}

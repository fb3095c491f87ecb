package consolefwd_test

import (
	"context"
	"encoding/json"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/lixenwraith/consolefwd"
	"github.com/lixenwraith/consolefwd/bridge"
)

// sinkRecorder collects the messages of every batch posted to an in-memory sink
type sinkRecorder struct {
	mu      sync.Mutex
	batches [][]string
	sources []string
}

func (r *sinkRecorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([][]string(nil), r.batches...)
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func startSink(t *testing.T) (*sinkRecorder, *fasthttp.Client) {
	t.Helper()
	rec := &sinkRecorder{}
	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		var body struct {
			Logs   []consolefwd.LogEntry `json:"logs"`
			Source string                `json:"source"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		var msgs []string
		for _, e := range body.Logs {
			msgs = append(msgs, e.Message)
		}
		rec.mu.Lock()
		rec.batches = append(rec.batches, msgs)
		rec.sources = append(rec.sources, body.Source)
		rec.mu.Unlock()
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}}
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Shutdown() })

	return rec, &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
}

func pipelineOptions(t *testing.T) consolefwd.Options {
	t.Helper()
	opts, err := consolefwd.NewBuilder().
		DevServerURL("http://sink.test").
		BatchSize(2).
		BatchTimeout(50 * time.Millisecond).
		Options()
	require.NoError(t, err)
	return opts
}

func TestPipelineThroughPipe(t *testing.T) {
	rec, client := startSink(t)
	opts := pipelineOptions(t)

	pipe := bridge.NewPipe(0)
	fwd, err := consolefwd.NewForwarder(pipe, opts, nil,
		consolefwd.WithClient(client), consolefwd.WithConsole(consolefwd.NopConsole()))
	require.NoError(t, err)

	ui := consolefwd.NopConsole()
	icpt, err := consolefwd.NewInterceptor(ui, bridge.Expose(pipe), opts)
	require.NoError(t, err)

	ui.Log("a")
	ui.Log("b")
	ui.Log("c")

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, rec.snapshot())

	rec.mu.Lock()
	assert.Equal(t, []string{consolefwd.SourceElectronRenderer, consolefwd.SourceElectronRenderer}, rec.sources)
	rec.mu.Unlock()

	icpt.Destroy()
	fwd.Destroy()
	pipe.Close()
	assert.Zero(t, pipe.ListenerCount(consolefwd.EventLogs))
}

func TestPipelineThroughSocket(t *testing.T) {
	rec, client := startSink(t)
	opts := pipelineOptions(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := "tcp://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := bridge.NewServer(addr, consolefwd.NopConsole())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()
	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("server exited: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not boot")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	fwd, err := consolefwd.NewForwarder(srv, opts, nil,
		consolefwd.WithClient(client), consolefwd.WithConsole(consolefwd.NopConsole()))
	require.NoError(t, err)
	defer fwd.Destroy()

	conn, err := bridge.Dial(addr)
	require.NoError(t, err)
	defer conn.Close()

	ui := consolefwd.NopConsole()
	icpt, err := consolefwd.NewInterceptor(ui, bridge.Expose(conn), opts)
	require.NoError(t, err)

	ui.Warn("x")
	ui.Error("y")
	ui.Info("z")
	icpt.Destroy()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, [][]string{{"x", "y"}, {"z"}}, rec.snapshot())
}

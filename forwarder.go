package consolefwd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

// Receiver is the privileged end of the boundary channel
type Receiver interface {
	On(event string, fn func(payload []byte))
	RemoveAllListeners(event string)
}

// Doer issues a single HTTP exchange; *fasthttp.Client satisfies it
type Doer interface {
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
}

// ForwarderStats are cumulative counters since construction
type ForwarderStats struct {
	Batches  uint64 // Batches received from the channel
	Sent     uint64 // Entries accepted by the sink
	Rejected uint64 // Requests answered with a non-2xx status
	Failed   uint64 // Requests that failed in transport or encoding
	Dropped  uint64 // Payloads that were not a JSON array
}

// Forwarder relays batches received over the boundary channel to the sink with one POST per batch.
// Delivery is best effort: failures are absorbed and never reach the caller that triggered them.
type Forwarder struct {
	rx      Receiver
	cfg     *Config
	url     string
	client  Doer
	console *Console
	timeout time.Duration

	inflight sync.WaitGroup

	batches  atomic.Uint64
	sent     atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

// ForwarderOption customizes a Forwarder
type ForwarderOption func(*Forwarder)

// WithClient replaces the default fasthttp client
func WithClient(client Doer) ForwarderOption {
	return func(f *Forwarder) {
		if client != nil {
			f.client = client
		}
	}
}

// WithConsole sets where local warnings are written
func WithConsole(c *Console) ForwarderOption {
	return func(f *Forwarder) {
		if c != nil {
			f.console = c
		}
	}
}

// WithRequestTimeout bounds each POST
func WithRequestTimeout(timeout time.Duration) ForwarderOption {
	return func(f *Forwarder) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// NewForwarder resolves opts (explicit, then lookup for the dev server URL, then defaults)
// and subscribes once to EventLogs on rx. A disabled configuration registers nothing.
func NewForwarder(rx Receiver, opts Options, lookup LookupFunc, fopts ...ForwarderOption) (*Forwarder, error) {
	cfg, err := Resolve(opts, lookup)
	if err != nil {
		return nil, err
	}
	if cfg.Enabled && rx == nil {
		return nil, fmtErrorf("receiver cannot be nil")
	}

	f := &Forwarder{
		rx:      rx,
		cfg:     cfg,
		url:     cfg.URL(),
		console: StdConsole(),
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range fopts {
		opt(f)
	}
	if f.client == nil {
		f.client = &fasthttp.Client{
			Name:         "consolefwd",
			ReadTimeout:  f.timeout,
			WriteTimeout: f.timeout,
		}
	}

	if cfg.Enabled {
		rx.On(EventLogs, f.handle)
	}
	return f, nil
}

// Config returns a copy of the resolved configuration
func (f *Forwarder) Config() *Config {
	return f.cfg.Clone()
}

// Stats returns the current counters
func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Batches:  f.batches.Load(),
		Sent:     f.sent.Load(),
		Rejected: f.rejected.Load(),
		Failed:   f.failed.Load(),
		Dropped:  f.dropped.Load(),
	}
}

// handle is the channel listener; it never blocks on the POST.
// The payload must be a JSON array; its elements are forwarded byte for byte.
func (f *Forwarder) handle(payload []byte) {
	var elems []json.RawMessage
	if err := json.Unmarshal(payload, &elems); err != nil {
		f.dropped.Add(1)
		f.console.Warn("consolefwd: malformed log batch dropped:", err)
		return
	}
	f.forwardRaw(bytes.Clone(payload), len(elems))
}

// Forward posts entries in a new goroutine and returns immediately.
// The send result is discarded on purpose: the sink is a development aid and its
// outcome must never block or fail the host. Use Send for a synchronous exchange.
func (f *Forwarder) Forward(entries []LogEntry) {
	if !f.cfg.Enabled || len(entries) == 0 {
		return
	}
	logs, err := f.encode(entries)
	if err != nil {
		return
	}
	f.forwardRaw(logs, len(entries))
}

func (f *Forwarder) forwardRaw(logs json.RawMessage, count int) {
	if !f.cfg.Enabled || count == 0 {
		return
	}
	f.batches.Add(1)

	f.inflight.Add(1)
	go func() {
		defer f.inflight.Done()
		_ = f.post(context.Background(), logs, count)
	}()
}

// Send posts one batch and waits for the response.
// A non-2xx status is reported as a local warning; transport failures are only counted.
// The returned error is informational and is ignored by Forward.
func (f *Forwarder) Send(ctx context.Context, entries []LogEntry) error {
	if !f.cfg.Enabled || len(entries) == 0 {
		return nil
	}
	logs, err := f.encode(entries)
	if err != nil {
		return err
	}
	return f.post(ctx, logs, len(entries))
}

// encode renders entries as the logs array, warning when a value has no JSON form
func (f *Forwarder) encode(entries []LogEntry) (json.RawMessage, error) {
	logs, err := json.Marshal(entries)
	if err != nil {
		f.failed.Add(1)
		f.console.Warn("consolefwd: log batch could not be encoded:", err)
		return nil, fmtErrorf("failed to encode log batch: %w", err)
	}
	return logs, nil
}

// post sends the logs array of count entries to the sink
func (f *Forwarder) post(ctx context.Context, logs json.RawMessage, count int) error {
	body, err := json.Marshal(sinkRequest{
		Logs:      logs,
		Timestamp: nowMillis(),
		Source:    SourceElectronRenderer,
	})
	if err != nil {
		f.failed.Add(1)
		f.console.Warn("consolefwd: log batch could not be encoded:", err)
		return fmtErrorf("failed to encode log batch: %w", err)
	}

	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		f.failed.Add(1)
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(f.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBodyRaw(body)

	if err := f.client.DoTimeout(req, resp, timeout); err != nil {
		// Sink not running or unreachable, expected during development
		f.failed.Add(1)
		return fmtErrorf("sink unreachable at %s: %w", f.url, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		f.rejected.Add(1)
		f.console.Warn(fmt.Sprintf("consolefwd: failed to send logs (%d)", status))
		return fmtErrorf("sink rejected logs with status %d", status)
	}

	f.sent.Add(uint64(count))
	return nil
}

// Destroy removes every listener on EventLogs. POSTs already in flight are not cancelled.
func (f *Forwarder) Destroy() {
	if f.rx != nil {
		f.rx.RemoveAllListeners(EventLogs)
	}
}

// Wait blocks until in-flight POSTs finish or ctx is done.
// Intended for process shutdown and tests, never for the receive path.
func (f *Forwarder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package bridge

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"

	"github.com/panjf2000/gnet/v2"

	"github.com/lixenwraith/consolefwd"
	"github.com/lixenwraith/consolefwd/compat"
)

// MaxLineSize bounds one buffered message; a connection exceeding it without a newline is closed
const MaxLineSize = 4 << 20

// ErrNotStarted is returned by Stop before the engine has booted
var ErrNotStarted = errors.New("bridge: server not started")

// Server is the privileged end of the socket bridge.
// It runs a single gnet event loop so that messages from one connection are
// dispatched in arrival order.
type Server struct {
	gnet.BuiltinEventEngine
	listenerSet

	addr    string
	console *consolefwd.Console

	eng       gnet.Engine
	ready     chan struct{}
	booted    atomic.Bool
	malformed atomic.Uint64
	received  atomic.Uint64
}

// NewServer creates a server for addr ("tcp://host:port" or "unix:///path").
// Unix socket paths must be lowercase, Run fails with ErrUnixPathCase otherwise.
// Engine diagnostics go to console; nil selects consolefwd.StdConsole.
func NewServer(addr string, console *consolefwd.Console) *Server {
	if console == nil {
		console = consolefwd.StdConsole()
	}
	return &Server{
		addr:    protoAddr(addr),
		console: console,
		ready:   make(chan struct{}),
	}
}

// Run serves until Stop is called
func (s *Server) Run() error {
	if err := checkListenAddr(s.addr); err != nil {
		return err
	}
	return gnet.Run(s, s.addr,
		gnet.WithMulticore(false),
		gnet.WithReuseAddr(true),
		gnet.WithLogger(compat.NewGnetAdapter(s.console)),
	)
}

// Ready is closed once the server accepts connections
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop shuts the event engine down
func (s *Server) Stop(ctx context.Context) error {
	if !s.booted.Load() {
		return ErrNotStarted
	}
	return s.eng.Stop(ctx)
}

// On registers fn for event
func (s *Server) On(event string, fn func(payload []byte)) {
	s.on(event, fn)
}

// RemoveAllListeners drops every listener for event
func (s *Server) RemoveAllListeners(event string) {
	s.removeAll(event)
}

// Received reports messages dispatched so far
func (s *Server) Received() uint64 {
	return s.received.Load()
}

// Malformed reports lines that could not be decoded
func (s *Server) Malformed() uint64 {
	return s.malformed.Load()
}

// OnBoot records the engine handle
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.eng = eng
	s.booted.Store(true)
	close(s.ready)
	return gnet.None
}

// OnTraffic dispatches every complete line and leaves a partial tail buffered
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	buf, err := c.Peek(-1)
	if err != nil {
		return gnet.Close
	}

	consumed := 0
	for {
		i := bytes.IndexByte(buf[consumed:], '\n')
		if i < 0 {
			break
		}
		line := buf[consumed : consumed+i]
		consumed += i + 1
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		// Peeked bytes are only valid until Discard
		env, err := decodeLine(bytes.Clone(line))
		if err != nil {
			s.malformed.Add(1)
			continue
		}
		s.received.Add(1)
		s.dispatch(env.Event, env.Payload)
	}

	if consumed > 0 {
		if _, err := c.Discard(consumed); err != nil {
			return gnet.Close
		}
	}
	if len(buf)-consumed > MaxLineSize {
		s.malformed.Add(1)
		return gnet.Close
	}
	return gnet.None
}

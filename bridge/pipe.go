package bridge

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

// DefaultPipeBuffer is the queue depth used when NewPipe is given a non-positive size
const DefaultPipeBuffer = 256

// message is one queued send
type message struct {
	event   string
	payload []byte
}

// Pipe is an in-process boundary channel.
// Payloads are JSON encoded on Send, so only serializable data crosses, and a single
// dispatcher goroutine delivers them to listeners in send order.
type Pipe struct {
	listenerSet

	queue     chan message
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewPipe starts a pipe with the given queue depth.
// Send blocks while the queue is full rather than dropping.
func NewPipe(buffer int) *Pipe {
	if buffer <= 0 {
		buffer = DefaultPipeBuffer
	}
	p := &Pipe{
		queue: make(chan message, buffer),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

// Send encodes payload and queues it for event. Unencodable payloads and sends
// after Close are counted as dropped.
func (p *Pipe) Send(event string, payload any) {
	defer func() {
		if r := recover(); r != nil { // Send on a channel closed concurrently
			p.dropped.Add(1)
		}
	}()

	if p.closed.Load() {
		p.dropped.Add(1)
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		p.dropped.Add(1)
		return
	}

	p.queue <- message{event: event, payload: raw}
}

// On registers fn for event
func (p *Pipe) On(event string, fn func(payload []byte)) {
	p.on(event, fn)
}

// RemoveAllListeners drops every listener for event
func (p *Pipe) RemoveAllListeners(event string) {
	p.removeAll(event)
}

// ListenerCount reports how many listeners are registered for event
func (p *Pipe) ListenerCount(event string) int {
	return p.count(event)
}

// Dropped reports sends that never reached the queue
func (p *Pipe) Dropped() uint64 {
	return p.dropped.Load()
}

// Close stops accepting sends, delivers everything already queued and waits for the dispatcher
func (p *Pipe) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.queue)
	})
	<-p.done
}

func (p *Pipe) run() {
	defer close(p.done)
	for msg := range p.queue {
		p.dispatch(msg.event, msg.payload)
	}
}

package bridge

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/lixenwraith/consolefwd"
)

// Sender is the isolated end of a boundary channel
type Sender interface {
	Send(event string, payload any)
}

// Listener receives the JSON payload of one message
type Listener = func(payload []byte)

// API is the capability handed to the isolated context
type API struct {
	sender Sender
}

// Expose wraps s as the sendLogs capability
func Expose(s Sender) *API {
	return &API{sender: s}
}

// SendLogs relays entries on the log event without waiting
func (a *API) SendLogs(entries []consolefwd.LogEntry) {
	if a == nil || a.sender == nil {
		return
	}
	a.sender.Send(consolefwd.EventLogs, entries)
}

var errMissingEvent = errors.New("bridge: message has no event")

// envelope is one message on the wire
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// encodeLine renders a message as one NDJSON line
func encodeLine(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	line, err := json.Marshal(envelope{Event: event, Payload: raw})
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// listenerSet is a per-event listener registry shared by Pipe and Server
type listenerSet struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

func (ls *listenerSet) on(event string, fn Listener) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.listeners == nil {
		ls.listeners = make(map[string][]Listener)
	}
	ls.listeners[event] = append(ls.listeners[event], fn)
}

func (ls *listenerSet) removeAll(event string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	delete(ls.listeners, event)
}

func (ls *listenerSet) count(event string) int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.listeners[event])
}

// dispatch calls every listener for event outside the lock
func (ls *listenerSet) dispatch(event string, payload []byte) {
	ls.mu.RLock()
	fns := append([]Listener(nil), ls.listeners[event]...)
	ls.mu.RUnlock()

	for _, fn := range fns {
		fn(payload)
	}
}

// decodeLine parses one NDJSON line into its envelope
func decodeLine(line []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return envelope{}, err
	}
	if env.Event == "" {
		return envelope{}, errMissingEvent
	}
	return env, nil
}

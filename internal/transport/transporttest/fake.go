// Package transporttest provides an in-memory Transport for tests
package transporttest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/navikt/roomswitch/internal/models"
	"github.com/navikt/roomswitch/internal/transport"
)

// Call is one recorded transport operation
type Call struct {
	Op   string
	Args any
}

// Fake records every operation in order and lets tests inject failures and events
type Fake struct {
	mu     sync.Mutex
	calls  []Call
	errs   map[string]error
	hooks  map[string]func(args any)
	events chan transport.RawEvent
}

var _ transport.Transport = (*Fake)(nil)

// NewFake creates a fake with a buffered event stream
func NewFake() *Fake {
	return &Fake{
		errs:   make(map[string]error),
		hooks:  make(map[string]func(args any)),
		events: make(chan transport.RawEvent, 64),
	}
}

// Fail makes every later call of op return err; a nil err clears it
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// OnCall runs hook after a successful op is recorded, before the call returns
func (f *Fake) OnCall(op string, hook func(args any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[op] = hook
}

// Calls returns a copy of the recorded calls
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Ops returns the recorded operation names in order
func (f *Fake) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		ops = append(ops, c.Op)
	}
	return ops
}

// Count returns how many times op was called
func (f *Fake) Count(op string) int {
	n := 0
	for _, o := range f.Ops() {
		if o == op {
			n++
		}
	}
	return n
}

// Emit queues an event with a JSON encoded payload
func (f *Fake) Emit(name string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		raw = data
	}
	f.events <- transport.RawEvent{Name: name, Payload: raw}
}

// CloseEvents ends the event stream
func (f *Fake) CloseEvents() {
	close(f.events)
}

// Events returns the fake event stream
func (f *Fake) Events() <-chan transport.RawEvent {
	return f.events
}

func (f *Fake) record(op string, args any) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, Args: args})
	err := f.errs[op]
	hook := f.hooks[op]
	f.mu.Unlock()

	if hook != nil && err == nil {
		hook(args)
	}
	return err
}

func (f *Fake) Join(ctx context.Context, cfg transport.JoinConfig) error {
	return f.record(transport.TypeJoin, cfg)
}

func (f *Fake) Leave(ctx context.Context) error {
	return f.record(transport.TypeLeave, nil)
}

func (f *Fake) ToggleMic(ctx context.Context) error {
	return f.record(transport.TypeToggleMic, nil)
}

func (f *Fake) ToggleWebcam(ctx context.Context) error {
	return f.record(transport.TypeToggleWebcam, nil)
}

func (f *Fake) RequestMediaRelay(ctx context.Context, req transport.RelayRequest) error {
	return f.record(transport.TypeRequestMediaRelay, req)
}

func (f *Fake) StopMediaRelay(ctx context.Context, destination models.RoomID) error {
	return f.record(transport.TypeStopMediaRelay, destination)
}

func (f *Fake) RespondToMediaRelay(ctx context.Context, source models.RoomID, decision models.Decision) error {
	return f.record(transport.TypeRespondToMediaRelay, transport.RelayResponse{SourceMeetingID: source, Decision: decision})
}

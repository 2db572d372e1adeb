package session

import (
	"context"
	"encoding/json"
	"sync"

	"pairchat/internal/models"
	"pairchat/internal/transport"
	"pairchat/internal/wire"
)

// fakeGateway records emissions and lets tests fire inbound events.
type fakeGateway struct {
	mu            sync.Mutex
	handlers      map[string]transport.Handler
	emitted       []fakeEmit
	connectErr    error
	emitErr       error
	fireOnConnect bool
	disconnects   int
}

type fakeEmit struct {
	event   string
	payload any
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{handlers: make(map[string]transport.Handler), fireOnConnect: true}
}

func (g *fakeGateway) Connect(ctx context.Context) error {
	if g.connectErr != nil {
		return g.connectErr
	}
	if g.fireOnConnect {
		g.fire(wire.EventConnect, nil)
	}
	return nil
}

func (g *fakeGateway) Disconnect() error {
	g.mu.Lock()
	g.disconnects++
	g.mu.Unlock()
	return nil
}

func (g *fakeGateway) Emit(event string, payload any) error {
	if g.emitErr != nil {
		return g.emitErr
	}
	g.mu.Lock()
	g.emitted = append(g.emitted, fakeEmit{event: event, payload: payload})
	g.mu.Unlock()
	return nil
}

func (g *fakeGateway) On(event string, handler transport.Handler) {
	g.mu.Lock()
	g.handlers[event] = handler
	g.mu.Unlock()
}

func (g *fakeGateway) Off(event string) {
	g.mu.Lock()
	delete(g.handlers, event)
	g.mu.Unlock()
}

func (g *fakeGateway) fire(event string, payload any) {
	g.mu.Lock()
	handler := g.handlers[event]
	g.mu.Unlock()
	if handler == nil {
		return
	}
	var data json.RawMessage
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	handler(data)
}

func (g *fakeGateway) emissions(event string) []fakeEmit {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []fakeEmit
	for _, e := range g.emitted {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// fakeFetcher serves canned history, optionally blocking until released.
type fakeFetcher struct {
	msgs    []models.Message
	err     error
	release chan struct{}
}

func (f *fakeFetcher) FetchHistory(ctx context.Context, selfID, peerID string) ([]models.Message, error) {
	if f.release != nil {
		<-f.release
	}
	return f.msgs, f.err
}

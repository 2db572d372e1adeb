package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"pairchat/internal/models"
	"pairchat/internal/transport"
	"pairchat/internal/wire"
)

// HistoryFetcher retrieves the prior messages of a conversation. Implemented
// by the REST history client; the engine only depends on this contract.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, selfID, peerID string) ([]models.Message, error)
}

// Config scopes one open conversation.
type Config struct {
	SelfID      string
	PeerID      string
	DisplayName string

	// PendingTimeout, when positive, transitions local messages that never
	// saw their server echo to failed after the window. Zero keeps them
	// pending indefinitely.
	PendingTimeout time.Duration

	// OnUpdate, when set, is called after every timeline or connection
	// state change so the UI can re-render. Must not call back into the
	// coordinator's Stop.
	OnUpdate func()
}

// Coordinator composes the timeline, connection manager and send pipeline
// for one session. Created when a chat screen opens, torn down when it
// closes; each open is a fresh session.
type Coordinator struct {
	cfg      Config
	gw       transport.Gateway
	fetcher  HistoryFetcher
	timeline *Timeline
	manager  *ConnectionManager
	pipeline *sendPipeline

	mu         sync.Mutex
	epoch      uint64
	started    bool
	historyErr error
}

// NewCoordinator wires a session over the given gateway and history fetcher.
func NewCoordinator(cfg Config, gw transport.Gateway, fetcher HistoryFetcher) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		gw:       gw,
		fetcher:  fetcher,
		timeline: NewTimeline(),
	}
	c.manager = NewConnectionManager(gw, func(State) { c.notify() })
	c.pipeline = &sendPipeline{
		gw:          gw,
		timeline:    c.timeline,
		manager:     c.manager,
		selfID:      cfg.SelfID,
		peerID:      cfg.PeerID,
		displayName: cfg.DisplayName,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	return c
}

// Start opens the session: the history fetch and the connection start run
// concurrently and neither blocks the other. Completions that land after
// Stop are discarded via the session epoch rather than applied to a
// torn-down session. Calling Start again after a connection failure retries
// the connection on the same session; while connected it is a no-op.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.cfg.SelfID == "" || c.cfg.PeerID == "" {
		return ErrInvalidSession
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		// Subscriptions and the history fetch are already in flight; only
		// the connection needs driving. The manager no-ops when it is
		// already connecting or connected and retries from error,
		// disconnected or idle.
		return c.manager.Start(ctx, c.cfg.SelfID, c.cfg.PeerID, c.cfg.DisplayName)
	}
	c.started = true
	epoch := c.epoch
	c.mu.Unlock()

	c.gw.On(wire.EventMessageReceived, func(data json.RawMessage) {
		if !c.epochValid(epoch) {
			return
		}
		var p wire.MessagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Printf("bad message payload: %v", err)
			return
		}
		c.timeline.AppendRemote(c.remoteMessage(p))
		c.notify()
	})

	go func() {
		msgs, err := c.fetcher.FetchHistory(ctx, c.cfg.SelfID, c.cfg.PeerID)
		if !c.epochValid(epoch) {
			return
		}
		if err != nil {
			// Live messaging continues without history.
			log.Printf("history fetch failed: %v", err)
			c.mu.Lock()
			c.historyErr = err
			c.mu.Unlock()
			c.notify()
			return
		}
		if err := c.timeline.LoadHistory(msgs); err != nil {
			log.Printf("history load skipped: %v", err)
			return
		}
		c.notify()
	}()

	if c.cfg.PendingTimeout > 0 {
		go c.sweepPending(ctx, epoch)
	}

	return c.manager.Start(ctx, c.cfg.SelfID, c.cfg.PeerID, c.cfg.DisplayName)
}

// Stop tears the session down: subscriptions released, connection closed.
// Idempotent, and safe while a history fetch or connect attempt is still
// outstanding.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.epoch++
	c.mu.Unlock()

	c.gw.Off(wire.EventMessageReceived)
	return c.manager.Stop()
}

// Send runs the optimistic send pipeline for the user's text.
func (c *Coordinator) Send(text string) (models.Message, error) {
	msg, err := c.pipeline.Send(text)
	if err == nil {
		c.notify()
	}
	return msg, err
}

// Snapshot returns the render-ready ordered message list.
func (c *Coordinator) Snapshot() []models.Message {
	return c.timeline.Snapshot()
}

// State reports the connection state for the status indicator.
func (c *Coordinator) State() State {
	return c.manager.State()
}

// Err returns the last transport error recorded by the connection manager.
func (c *Coordinator) Err() error {
	return c.manager.Err()
}

// HistoryErr reports whether the one-shot history fetch failed.
func (c *Coordinator) HistoryErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.historyErr
}

func (c *Coordinator) remoteMessage(p wire.MessagePayload) models.Message {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	recipient := c.cfg.PeerID
	if p.SenderID != c.cfg.SelfID {
		recipient = c.cfg.SelfID
	}
	return models.Message{
		ID:          id,
		SenderID:    p.SenderID,
		RecipientID: recipient,
		Text:        p.Text,
		Timestamp:   p.Timestamp,
		Origin:      models.OriginRemote,
		Status:      models.StatusDelivered,
	}
}

func (c *Coordinator) sweepPending(ctx context.Context, epoch uint64) {
	interval := c.cfg.PendingTimeout / 2
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.epochValid(epoch) {
				return
			}
			if c.timeline.FailPendingBefore(time.Now().Add(-c.cfg.PendingTimeout)) > 0 {
				c.notify()
			}
		}
	}
}

func (c *Coordinator) epochValid(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started && c.epoch == epoch
}

func (c *Coordinator) notify() {
	if c.cfg.OnUpdate != nil {
		c.cfg.OnUpdate()
	}
}

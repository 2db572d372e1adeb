// Package session implements the chat session synchronization engine: the
// logic that reconciles a one-time history fetch, the live push channel and
// locally composed messages into a single ordered, duplicate-free timeline
// while the underlying connection comes and goes.
package session

import (
	"sync"
	"time"

	"pairchat/internal/models"
)

// echoTolerance is the timestamp window within which a server broadcast is
// considered the echo of a pending local message with the same sender and
// text. Strict id equality is always checked first, so the window only
// matters for servers that assign fresh ids to echoed messages.
const echoTolerance = 2 * time.Second

// Timeline is the merge, deduplication and ordering authority for one
// session. It is the single source of truth the UI renders.
type Timeline struct {
	mu          sync.RWMutex
	entries     []models.Message
	ids         map[string]struct{}
	initialized bool
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{ids: make(map[string]struct{})}
}

// LoadHistory seeds the timeline in bulk. History is a one-shot prefix: a
// second call, or a call after any append, fails with ErrAlreadyInitialized
// and leaves the timeline unchanged.
func (t *Timeline) LoadHistory(msgs []models.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized || len(t.entries) > 0 {
		return ErrAlreadyInitialized
	}

	t.entries = make([]models.Message, 0, len(msgs))
	for _, msg := range msgs {
		if _, dup := t.ids[msg.ID]; dup {
			continue
		}
		msg.Origin = models.OriginHistory
		msg.Status = models.StatusDelivered
		t.entries = append(t.entries, msg)
		t.ids[msg.ID] = struct{}{}
	}
	t.initialized = true
	return nil
}

// AppendRemote inserts a server-pushed message. When the message matches a
// pending or failed local entry (same id, or same sender and text within the
// echo tolerance) that entry is promoted in place: its status becomes delivered
// and it takes the server-assigned id. The two signals describe one logical
// message and must never render as two bubbles. Otherwise the message is
// appended in timestamp order.
func (t *Timeline) AppendRemote(msg models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initialized = true

	if t.promoteLocked(msg) {
		return
	}
	if _, dup := t.ids[msg.ID]; dup {
		return
	}

	msg.Origin = models.OriginRemote
	msg.Status = models.StatusDelivered

	i := len(t.entries)
	for i > 0 && t.entries[i-1].Timestamp.After(msg.Timestamp) {
		i--
	}
	t.entries = append(t.entries, models.Message{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = msg
	t.ids[msg.ID] = struct{}{}
}

// promoteLocked matches msg against unconfirmed local entries, newest first.
// Failed entries are still candidates: a send marked failed by the pending
// sweep whose echo arrives late is the same logical message, not a new one.
func (t *Timeline) promoteLocked(msg models.Message) bool {
	match := -1
	for i := len(t.entries) - 1; i >= 0; i-- {
		entry := &t.entries[i]
		if entry.Origin != models.OriginLocal ||
			(entry.Status != models.StatusPending && entry.Status != models.StatusFailed) {
			continue
		}
		if msg.ID != "" && entry.ID == msg.ID {
			match = i
			break
		}
		if entry.SenderID == msg.SenderID && entry.Text == msg.Text &&
			absDuration(entry.Timestamp.Sub(msg.Timestamp)) <= echoTolerance {
			match = i
			break
		}
	}
	if match < 0 {
		return false
	}

	entry := &t.entries[match]
	entry.Status = models.StatusDelivered
	if msg.ID != "" && msg.ID != entry.ID {
		delete(t.ids, entry.ID)
		entry.ID = msg.ID
		t.ids[msg.ID] = struct{}{}
	}
	return true
}

// AppendLocal inserts a message authored on this device. Local sends go to
// the tail at insertion time regardless of clock skew, so the user's own
// just-sent message never jumps backward in their view.
func (t *Timeline) AppendLocal(msg models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initialized = true

	if _, dup := t.ids[msg.ID]; dup {
		return
	}
	msg.Origin = models.OriginLocal
	msg.Status = models.StatusPending
	t.entries = append(t.entries, msg)
	t.ids[msg.ID] = struct{}{}
}

// MarkStatus transitions a single entry's status. Unknown ids are a no-op:
// the entry may already have been promoted under a new id.
func (t *Timeline) MarkStatus(id string, status models.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		if t.entries[i].ID == id {
			t.entries[i].Status = status
			return
		}
	}
}

// FailPendingBefore marks local pending entries authored before the cutoff
// as failed and reports how many changed.
func (t *Timeline) FailPendingBefore(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := 0
	for i := range t.entries {
		entry := &t.entries[i]
		if entry.Origin == models.OriginLocal && entry.Status == models.StatusPending &&
			entry.Timestamp.Before(cutoff) {
			entry.Status = models.StatusFailed
			changed++
		}
	}
	return changed
}

// Snapshot returns a copy of the ordered timeline for rendering.
func (t *Timeline) Snapshot() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Message, len(t.entries))
	copy(out, t.entries)
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

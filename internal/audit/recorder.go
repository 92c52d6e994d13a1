// Package audit persists append-only audit entries off the request path.
// Recording is best-effort: a full queue or failed append surfaces through
// logs and metrics but never blocks or fails the caller's operation.
package audit

import (
	"context"
	"sync"
	"time"

	"gatehouse.org/internal/ids"
	"gatehouse.org/internal/obs"
	"gatehouse.org/internal/rbac"
)

const (
	defaultBuffer = 256
	appendTimeout = 5 * time.Second
	drainTimeout  = 10 * time.Second
)

// Recorder buffers audit entries and appends them to the store from a
// background worker.
type Recorder struct {
	store rbac.AuditStore
	ch    chan rbac.AuditEntry
	now   func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithBuffer overrides the queue capacity.
func WithBuffer(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.ch = make(chan rbac.AuditEntry, n)
		}
	}
}

// WithNow overrides the time source (useful for tests).
func WithNow(fn func() time.Time) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder over the given store.
func NewRecorder(store rbac.AuditStore, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		ch:    make(chan rbac.AuditEntry, defaultBuffer),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ rbac.Recorder = (*Recorder)(nil)

// Start launches the background worker. Subsequent calls are no-ops.
func (r *Recorder) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// Record enqueues an entry without blocking. Entries are dropped (and
// counted) when the queue is full.
func (r *Recorder) Record(entry rbac.AuditEntry) {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now().UTC()
	}
	select {
	case r.ch <- entry:
	default:
		obs.AuditDropped()
		obs.Event("audit.entry_dropped", map[string]any{
			"action":    entry.Action,
			"entity":    entry.EntityType,
			"entity_id": entry.EntityID,
		})
	}
}

// Close stops accepting entries and drains the queue, bounded by
// drainTimeout.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		close(r.ch)
	})
	select {
	case <-r.done:
	case <-time.After(drainTimeout):
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.ch {
		r.append(entry)
	}
}

func (r *Recorder) append(entry rbac.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := r.store.Append(ctx, &entry); err != nil {
		obs.Event("audit.append_failed", map[string]any{
			"action":    entry.Action,
			"entity":    entry.EntityType,
			"entity_id": entry.EntityID,
			"error":     err.Error(),
		})
	}
}

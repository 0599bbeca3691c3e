// Package reconcile owns the in-memory record collections. It keeps a local,
// persisted collection and an optional read-only remote overlay, enforces the
// permission policy on every mutation, and writes the whole collection
// through to the key/value store after each change.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/roster/internal/kv"
	"github.com/jjudge-oj/roster/internal/metrics"
	"github.com/jjudge-oj/roster/internal/policy"
	"github.com/jjudge-oj/roster/types"
)

// Publisher receives change notifications. *mq.MQ satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// RecordChanged is the body of a change notification.
type RecordChanged struct {
	Kind string    `json:"kind"`
	Op   Op        `json:"op"`
	ID   int       `json:"id"`
	At   time.Time `json:"at"`
}

// DefaultDeleteTTL is how long a delete request stays confirmable.
const DefaultDeleteTTL = 5 * time.Minute

// DeleteRequest is the first half of a two-phase delete. The record is only
// removed once the token is confirmed, before ExpiresAt.
type DeleteRequest[R any] struct {
	Token     string    `json:"token"`
	ID        int       `json:"id"`
	Record    R         `json:"record"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// pendingDelete remembers which view a delete request was made against.
type pendingDelete struct {
	id        int
	overlay   bool
	expiresAt time.Time
}

type options struct {
	logger    *slog.Logger
	publisher Publisher
	channel   string
	now       func() time.Time
	deleteTTL time.Duration
}

// Option configures a Reconciler.
type Option func(*options)

// WithLogger sets the logger used for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPublisher sends a RecordChanged notification to channel after every
// successful local mutation. A nil publisher disables notifications.
func WithPublisher(pub Publisher, channel string) Option {
	return func(o *options) {
		o.publisher = pub
		o.channel = channel
	}
}

// WithClock overrides the clock used for ids, default dates and events.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDeleteTTL sets how long delete requests stay confirmable.
func WithDeleteTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.deleteTTL = ttl
		}
	}
}

// Reconciler manages one record collection.
type Reconciler[R, P any] struct {
	entity Entity[R, P]
	store  *kv.Store
	ids    *IDSequence
	opts   options

	mu            sync.RWMutex
	local         *Collection[R]
	overlay       []R
	overlayActive bool
	pending       map[string]pendingDelete
}

// New constructs a Reconciler with an empty local collection. Call Load to
// hydrate it.
func New[R, P any](entity Entity[R, P], store *kv.Store, opts ...Option) *Reconciler[R, P] {
	o := options{logger: slog.Default(), now: time.Now, deleteTTL: DefaultDeleteTTL}
	for _, opt := range opts {
		opt(&o)
	}
	local, _ := NewCollection(entity.ID, nil)
	return &Reconciler[R, P]{
		entity:  entity,
		store:   store,
		ids:     NewIDSequence(o.now),
		opts:    o,
		local:   local,
		pending: make(map[string]pendingDelete),
	}
}

// NewUsers constructs the user directory reconciler.
func NewUsers(store *kv.Store, opts ...Option) *Reconciler[types.User, types.UserPatch] {
	return New[types.User, types.UserPatch](Users{}, store, opts...)
}

// NewTodos constructs the todo list reconciler.
func NewTodos(store *kv.Store, opts ...Option) *Reconciler[types.TodoItem, types.TodoPatch] {
	return New[types.TodoItem, types.TodoPatch](Todos{}, store, opts...)
}

// Kind returns the singular record name.
func (r *Reconciler[R, P]) Kind() string {
	return r.entity.Kind()
}

// Load hydrates the local collection from the store. A missing snapshot
// falls back to seed. A snapshot that cannot be decoded or holds duplicate
// ids is logged and also replaced by seed; only backend failures are
// returned.
func (r *Reconciler[R, P]) Load(ctx context.Context, seed []R) error {
	var records []R
	found, err := r.store.Load(ctx, r.entity.Key(), &records)
	switch {
	case errors.Is(err, kv.ErrCorrupt):
		r.opts.logger.Warn("discarding corrupt snapshot", "key", r.entity.Key(), "error", err)
		found = false
	case err != nil:
		return fmt.Errorf("load %s: %w", r.entity.Key(), err)
	}
	if !found {
		records = seed
	}

	local, err := NewCollection(r.entity.ID, records)
	if err != nil {
		r.opts.logger.Warn("discarding invalid snapshot", "key", r.entity.Key(), "error", err)
		if local, err = NewCollection(r.entity.ID, seed); err != nil {
			return fmt.Errorf("seed %s: %w", r.entity.Key(), err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.local = local
	for _, id := range local.IDs() {
		r.ids.Observe(id)
	}
	return nil
}

// List returns the records currently shown: the overlay snapshot while it is
// active, the local collection otherwise.
func (r *Reconciler[R, P]) List() []R {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.overlayActive {
		return slices.Clone(r.overlay)
	}
	return r.local.Records()
}

// Local returns the local collection regardless of overlay mode.
func (r *Reconciler[R, P]) Local() []R {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.local.Records()
}

// Get returns the shown record with id.
func (r *Reconciler[R, P]) Get(id int) (R, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.visible(id)
}

// LocalGet returns the local record with id, ignoring the overlay.
func (r *Reconciler[R, P]) LocalGet(id int) (R, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec, ok := r.local.Get(id); ok {
		return rec, nil
	}
	var zero R
	return zero, &NotFoundError{Kind: r.entity.Kind(), ID: id}
}

// OverlayActive reports whether List is showing the remote overlay.
func (r *Reconciler[R, P]) OverlayActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.overlayActive
}

// Create builds a new record from patch and appends it to the local
// collection.
func (r *Reconciler[R, P]) Create(ctx context.Context, caps policy.Capabilities, patch P) (rec R, err error) {
	defer func() { metrics.Mutation(r.entity.Key(), string(OpCreate), err) }()

	if err = r.entity.Authorize(caps, OpCreate, patch); err != nil {
		return rec, err
	}

	r.mu.Lock()
	if r.overlayActive {
		r.mu.Unlock()
		return rec, ErrOverlayReadOnly
	}
	rec = r.entity.Build(r.ids.Next(), patch, types.DateOf(r.opts.now().UTC()))
	err = r.commit(ctx, func(c *Collection[R]) error { return c.Append(rec) })
	r.mu.Unlock()
	if err != nil {
		return rec, err
	}

	r.publish(ctx, OpCreate, r.entity.ID(rec))
	return rec, nil
}

// Update merges patch into the local record with id.
func (r *Reconciler[R, P]) Update(ctx context.Context, caps policy.Capabilities, id int, patch P) (rec R, err error) {
	defer func() { metrics.Mutation(r.entity.Key(), string(OpUpdate), err) }()

	if err = r.entity.Authorize(caps, OpUpdate, patch); err != nil {
		return rec, err
	}

	r.mu.Lock()
	if r.overlayActive {
		r.mu.Unlock()
		return rec, ErrOverlayReadOnly
	}
	current, ok := r.local.Get(id)
	if !ok {
		r.mu.Unlock()
		return rec, &NotFoundError{Kind: r.entity.Kind(), ID: id}
	}
	rec = r.entity.Merge(current, patch)
	err = r.commit(ctx, func(c *Collection[R]) error {
		c.Replace(rec)
		return nil
	})
	r.mu.Unlock()
	if err != nil {
		return current, err
	}

	r.publish(ctx, OpUpdate, id)
	return rec, nil
}

// RequestDelete starts a two-phase delete of the shown record with id and
// returns the token that confirms or cancels it.
func (r *Reconciler[R, P]) RequestDelete(caps policy.Capabilities, id int) (DeleteRequest[R], error) {
	var zero P
	if err := r.entity.Authorize(caps, OpDelete, zero); err != nil {
		return DeleteRequest[R]{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.visible(id)
	if err != nil {
		return DeleteRequest[R]{}, err
	}

	now := r.opts.now()
	r.expirePending(now)
	token := uuid.NewString()
	expiresAt := now.Add(r.opts.deleteTTL)
	r.pending[token] = pendingDelete{id: id, overlay: r.overlayActive, expiresAt: expiresAt}
	return DeleteRequest[R]{Token: token, ID: id, Record: rec, ExpiresAt: expiresAt}, nil
}

// CancelDelete discards a pending delete request.
func (r *Reconciler[R, P]) CancelDelete(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.takePending(token); !ok {
		return ErrUnknownDeleteRequest
	}
	return nil
}

// ConfirmDelete removes the record named by a pending request. The request
// is consumed whether or not the delete succeeds. Requests made against the
// overlay never delete anything.
func (r *Reconciler[R, P]) ConfirmDelete(ctx context.Context, caps policy.Capabilities, token string) (rec R, err error) {
	defer func() { metrics.Mutation(r.entity.Key(), string(OpDelete), err) }()

	r.mu.Lock()
	req, ok := r.takePending(token)
	if !ok {
		r.mu.Unlock()
		return rec, ErrUnknownDeleteRequest
	}
	id := req.id

	var zero P
	if err = r.entity.Authorize(caps, OpDelete, zero); err != nil {
		r.mu.Unlock()
		return rec, err
	}
	if req.overlay || r.overlayActive {
		r.mu.Unlock()
		return rec, ErrOverlayReadOnly
	}
	err = r.commit(ctx, func(c *Collection[R]) error {
		removed, ok := c.Remove(id)
		if !ok {
			return &NotFoundError{Kind: r.entity.Kind(), ID: id}
		}
		rec = removed
		return nil
	})
	r.mu.Unlock()
	if err != nil {
		return rec, err
	}

	r.publish(ctx, OpDelete, id)
	return rec, nil
}

// SetOverlay shows records instead of the local collection until
// ClearOverlay. The local collection is not touched. Pending delete requests
// are dropped.
func (r *Reconciler[R, P]) SetOverlay(records []R) {
	r.mu.Lock()
	r.overlay = slices.Clone(records)
	r.overlayActive = true
	clear(r.pending)
	r.mu.Unlock()

	metrics.Overlay(r.entity.Key(), true)
}

// ClearOverlay returns to showing the local collection. Pending delete
// requests are dropped.
func (r *Reconciler[R, P]) ClearOverlay() {
	r.mu.Lock()
	r.overlay = nil
	r.overlayActive = false
	clear(r.pending)
	r.mu.Unlock()

	metrics.Overlay(r.entity.Key(), false)
}

// SeedIfEmpty replaces an empty local collection with records and persists
// it. It reports whether seeding happened.
func (r *Reconciler[R, P]) SeedIfEmpty(ctx context.Context, records []R) (bool, error) {
	r.mu.Lock()
	if r.local.Len() > 0 {
		r.mu.Unlock()
		return false, nil
	}
	seeded, err := NewCollection(r.entity.ID, records)
	if err != nil {
		r.mu.Unlock()
		return false, fmt.Errorf("seed %s: %w", r.entity.Key(), err)
	}
	err = r.commit(ctx, func(c *Collection[R]) error {
		*c = *seeded
		return nil
	})
	if err == nil {
		for _, id := range seeded.IDs() {
			r.ids.Observe(id)
		}
	}
	r.mu.Unlock()
	if err != nil {
		return false, err
	}

	r.publish(ctx, OpSeed, 0)
	return true, nil
}

// commit applies mutate to a copy of the local collection and persists it.
// The copy only replaces the live collection once the write succeeded.
// Callers hold r.mu.
func (r *Reconciler[R, P]) commit(ctx context.Context, mutate func(*Collection[R]) error) error {
	next := r.local.clone()
	if err := mutate(next); err != nil {
		return err
	}
	if err := r.store.Save(ctx, r.entity.Key(), next.Records()); err != nil {
		return fmt.Errorf("persist %s: %w", r.entity.Key(), err)
	}
	r.local = next
	return nil
}

// takePending removes and returns the request for token unless it is missing
// or expired. Callers hold r.mu.
func (r *Reconciler[R, P]) takePending(token string) (pendingDelete, bool) {
	req, ok := r.pending[token]
	if !ok {
		return pendingDelete{}, false
	}
	delete(r.pending, token)
	if !r.opts.now().Before(req.expiresAt) {
		return pendingDelete{}, false
	}
	return req, true
}

// expirePending drops requests that can no longer be confirmed. Callers hold
// r.mu.
func (r *Reconciler[R, P]) expirePending(now time.Time) {
	for token, req := range r.pending {
		if !now.Before(req.expiresAt) {
			delete(r.pending, token)
		}
	}
}

// PendingDeletes returns how many delete requests are awaiting an answer.
func (r *Reconciler[R, P]) PendingDeletes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}

// visible looks id up in the shown records. Callers hold r.mu.
func (r *Reconciler[R, P]) visible(id int) (R, error) {
	if r.overlayActive {
		for _, rec := range r.overlay {
			if r.entity.ID(rec) == id {
				return rec, nil
			}
		}
	} else if rec, ok := r.local.Get(id); ok {
		return rec, nil
	}
	var zero R
	return zero, &NotFoundError{Kind: r.entity.Kind(), ID: id}
}

func (r *Reconciler[R, P]) publish(ctx context.Context, op Op, id int) {
	if r.opts.publisher == nil {
		return
	}
	body, err := json.Marshal(RecordChanged{
		Kind: r.entity.Kind(),
		Op:   op,
		ID:   id,
		At:   r.opts.now().UTC(),
	})
	if err != nil {
		r.opts.logger.Warn("encode change event", "error", err)
		return
	}
	attrs := map[string]string{"kind": r.entity.Kind(), "op": string(op)}
	if _, err := r.opts.publisher.Publish(ctx, r.opts.channel, body, attrs); err != nil {
		r.opts.logger.Warn("publish change event", "kind", r.entity.Kind(), "op", op, "id", id, "error", err)
	}
}

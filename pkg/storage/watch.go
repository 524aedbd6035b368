package storage

import (
	"context"
	"sync"

	"github.com/dpc/rostra/pkg/rostra"
)

// watchValue is a single-producer/multi-consumer latest-value broadcast:
// unlike dedupchan's work queue, a slow subscriber never sees stale
// intermediate values, only ever the most recent one. It backs
// self_head_watch and self_followers_watch: notify on change, read fresh
// state, the way a Tokio watch channel behaves.
type watchValue[T any] struct {
	mu    sync.RWMutex
	value T
	wake  chan struct{}
}

func newWatchValue[T any](initial T) *watchValue[T] {
	return &watchValue[T]{value: initial, wake: make(chan struct{})}
}

func (w *watchValue[T]) set(v T) {
	w.mu.Lock()
	w.value = v
	old := w.wake
	w.wake = make(chan struct{})
	w.mu.Unlock()
	close(old)
}

func (w *watchValue[T]) get() T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.value
}

// next blocks until the value changes (or ctx is done), then returns it.
func (w *watchValue[T]) next(ctx context.Context) (T, error) {
	w.mu.RLock()
	wake := w.wake
	w.mu.RUnlock()

	select {
	case <-wake:
		return w.get(), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// selfHeadValue is the payload broadcast on SelfHeadWatch: the node's
// current DAG head, or nil before the node has authored anything.
type selfHeadValue struct {
	Head rostra.ShortEventId
}

// SelfHeadWatch returns the current self head and a channel-like accessor
// for observing subsequent changes. Callers typically loop: read current
// value, act on it, then call Next to block for the next change.
type SelfHeadWatch struct {
	db *DB
}

// Get returns the current self head, or ok=false if the node has not yet
// authored any event.
func (w SelfHeadWatch) Get() (rostra.ShortEventId, bool) {
	v := w.db.selfHead.get()
	if v == nil {
		return rostra.ShortEventId{}, false
	}
	return v.Head, true
}

// Next blocks until the self head changes, then returns the new value.
func (w SelfHeadWatch) Next(ctx context.Context) (rostra.ShortEventId, bool, error) {
	v, err := w.db.selfHead.next(ctx)
	if err != nil {
		return rostra.ShortEventId{}, false, err
	}
	if v == nil {
		return rostra.ShortEventId{}, false, nil
	}
	return v.Head, true, nil
}

// SelfHeadSubscribe returns a watch handle for the node's own DAG head.
func (db *DB) SelfHeadSubscribe() SelfHeadWatch {
	return SelfHeadWatch{db: db}
}

// FollowersWatch signals "the follower set of some author changed" without
// carrying a payload; subscribers re-read ids_followers themselves. It
// triggers the head-update broadcaster to recompute its destination list.
type FollowersWatch struct {
	db *DB
}

// Next blocks until the follower set has changed since the last call.
func (w FollowersWatch) Next(ctx context.Context) error {
	_, err := w.db.selfFollowers.next(ctx)
	return err
}

// FollowersSubscribe returns a watch handle for follower-set changes.
func (db *DB) FollowersSubscribe() FollowersWatch {
	return FollowersWatch{db: db}
}

func (db *DB) notifySelfHeadChanged(head rostra.ShortEventId) {
	db.selfHead.set(&selfHeadValue{Head: head})
}

func (db *DB) notifyFollowersChanged() {
	db.selfFollowers.set(struct{}{})
}

// Package resource is a small cache for server data shown on a page. A
// Resource loads through a cancellation scope tied to its mounted lifetime,
// supersedes stale loads and reloads after successful mutations.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

// ErrNotMounted is returned by Load on a resource that is not mounted
var ErrNotMounted = errors.New("resource is not mounted")

// Loader fetches the current value of a resource
type Loader[T any] func(ctx context.Context) (T, error)

// Snapshot is a consistent view of a resource
type Snapshot[T any] struct {
	Data    T     `json:"data"`
	Loading bool  `json:"loading"`
	Loaded  bool  `json:"loaded"`
	Err     error `json:"-"`
}

// Resource holds one piece of server data
type Resource[T any] struct {
	key      string
	label    string
	loader   Loader[T]
	empty    T
	notifier notify.Notifier
	logger   logger.Logger

	mu         sync.Mutex
	data       T
	loading    bool
	loaded     bool
	err        error
	scope      context.Context
	endScope   context.CancelFunc
	cancelLoad context.CancelFunc
	seq        uint64
}

// New creates an unmounted resource. key is its invalidation key; empty is the
// value shown before the first load and after a failed one.
func New[T any](key string, empty T, loader Loader[T], notifier notify.Notifier, logger logger.Logger) *Resource[T] {
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Resource[T]{
		key:      key,
		label:    key,
		loader:   loader,
		empty:    empty,
		data:     empty,
		notifier: notifier,
		logger:   logger,
	}
}

// WithLabel sets the name used in the load failure notification
func (r *Resource[T]) WithLabel(label string) *Resource[T] {
	r.label = label
	return r
}

// Key returns the invalidation key
func (r *Resource[T]) Key() string {
	return r.key
}

// Mount starts the resource's lifetime. Loads are cancelled when parent is
// cancelled or Unmount is called.
func (r *Resource[T]) Mount(parent context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endScope != nil {
		r.endScope()
	}
	r.scope, r.endScope = context.WithCancel(parent)
}

// Unmount cancels any in-flight load. Results arriving afterwards are
// discarded.
func (r *Resource[T]) Unmount() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endScope != nil {
		r.endScope()
	}
	r.scope, r.endScope, r.cancelLoad = nil, nil, nil
	r.loading = false
	r.seq++
}

// Reset drops the data and cancels any in-flight load without unmounting
func (r *Resource[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancelLoad != nil {
		r.cancelLoad()
	}
	r.cancelLoad = nil
	r.data = r.empty
	r.err = nil
	r.loading = false
	r.loaded = false
	r.seq++
}

// Mounted reports whether the resource is mounted
func (r *Resource[T]) Mounted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.scope != nil
}

// Data returns the current value
func (r *Resource[T]) Data() T {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.data
}

// Loading is true while a load is pending
func (r *Resource[T]) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loading
}

// Loaded reports whether a load has completed since the last reset
func (r *Resource[T]) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loaded
}

// Snapshot returns data and status together
func (r *Resource[T]) Snapshot() Snapshot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot[T]{Data: r.data, Loading: r.loading, Loaded: r.loaded, Err: r.err}
}

// Load fetches the resource, cancelling any load still in flight. It blocks
// until the load finishes. A cancelled or superseded load leaves the state
// alone and returns nil. A failed load notifies the user, falls back to the
// empty value and returns the error.
func (r *Resource[T]) Load(ctx context.Context) error {
	r.mu.Lock()

	if r.scope == nil {
		r.mu.Unlock()
		return ErrNotMounted
	}

	if r.cancelLoad != nil {
		r.cancelLoad()
	}

	loadCtx, cancel := context.WithCancel(r.scope)
	stop := context.AfterFunc(ctx, cancel)
	r.seq++
	seq := r.seq
	r.cancelLoad = cancel
	r.loading = true
	r.mu.Unlock()

	defer func() {
		stop()
		cancel()
	}()

	data, err := r.loader(loadCtx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if seq != r.seq {
		r.logger.Debug("Discarding superseded load", "resource", r.key)
		return nil
	}

	r.cancelLoad = nil

	if loadCtx.Err() != nil || (err != nil && apperrors.IsCancelled(err)) {
		r.loading = false
		r.logger.Debug("Load cancelled", "resource", r.key)
		return nil
	}

	r.loading = false
	r.loaded = true

	if err != nil {
		r.data = r.empty
		r.err = err
		r.logger.Warn("Failed to load resource", "resource", r.key, "error", err)

		if !alreadyReported(err) {
			r.notifier.Notify(ctx, notify.New(notify.LevelError, notify.CodeLoadFailed, fmt.Sprintf("Failed to load %s", r.label)))
		}
		return err
	}

	r.data = data
	r.err = nil
	return nil
}

// Mutate runs a write. On success the resource is reloaded; on failure the
// state is left unchanged and the write's error is returned as is.
func (r *Resource[T]) Mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}

	if err := r.Load(ctx); err != nil {
		r.logger.Debug("Reload after mutation failed", "resource", r.key, "error", err)
	}
	return nil
}

// alreadyReported is true for failures the API client has already surfaced
// to the user
func alreadyReported(err error) bool {
	if errors.Is(err, apperrors.ErrSessionExpired) {
		return true
	}

	status, ok := apperrors.ResponseStatus(err)
	return ok && status >= http.StatusInternalServerError
}

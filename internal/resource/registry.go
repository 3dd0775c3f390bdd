package resource

import (
	"context"
	"errors"
	"sync"
)

// Invalidation keys shared by the dashboard pages
const (
	KeyPackages       = "packages"
	KeyConsolidations = "consolidations"
	KeyWallet         = "wallet"
	KeyTransactions   = "transactions"
	KeyAddresses      = "addresses"
	KeyShipments      = "shipments"
	KeyInvoices       = "invoices"
	KeyProfile        = "profile"
	KeyPinStatus      = "pin_status"
)

// Loadable is anything a Registry can reload
type Loadable interface {
	Key() string
	Load(ctx context.Context) error
}

// Registry maps invalidation keys to mounted resources
type Registry struct {
	mu      sync.RWMutex
	entries map[string]map[int]Loadable
	nextID  int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]map[int]Loadable)}
}

// Register adds l under its key and returns a function that removes it
func (g *Registry) Register(l Loadable) func() {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextID
	g.nextID++

	key := l.Key()
	if g.entries[key] == nil {
		g.entries[key] = make(map[int]Loadable)
	}
	g.entries[key][id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			delete(g.entries[key], id)
		})
	}
}

// Invalidate reloads every resource registered under keys and waits for them
func (g *Registry) Invalidate(ctx context.Context, keys ...string) error {
	g.mu.RLock()
	var targets []Loadable
	for _, key := range keys {
		for _, l := range g.entries[key] {
			targets = append(targets, l)
		}
	}
	g.mu.RUnlock()

	errs := make([]error, len(targets))
	var wg sync.WaitGroup

	for i, l := range targets {
		wg.Add(1)
		go func(i int, l Loadable) {
			defer wg.Done()
			errs[i] = l.Load(ctx)
		}(i, l)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Mutate runs a write and, if it succeeds, invalidates keys. A failed write
// returns its error and reloads nothing. Reload failures are reported by the
// resources themselves and do not fail the write.
func (g *Registry) Mutate(ctx context.Context, fn func(ctx context.Context) error, keys ...string) error {
	if err := fn(ctx); err != nil {
		return err
	}
	_ = g.Invalidate(ctx, keys...)
	return nil
}

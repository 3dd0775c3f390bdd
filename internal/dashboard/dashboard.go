// Package dashboard holds one controller per dashboard page. Controllers
// compose API resources into views and route writes through the resource
// registry so every page showing the same data reloads after a change.
package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	"github.com/vaidashi/getmethis-dashboard/internal/payment"
	"github.com/vaidashi/getmethis-dashboard/internal/resource"
	"github.com/vaidashi/getmethis-dashboard/internal/resources"
	"github.com/vaidashi/getmethis-dashboard/internal/session"
	"github.com/vaidashi/getmethis-dashboard/internal/storage"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

// Deps are shared by every controller
type Deps struct {
	API      *resources.Set
	Registry *resource.Registry
	Flow     *payment.Flow
	Storage  storage.Storage
	Notifier notify.Notifier
	Logger   logger.Logger
}

// Dashboard is the set of page controllers
type Dashboard struct {
	Mailbox            *Mailbox
	MyAccount          *MyAccount
	Shipments          *Shipments
	AddressBook        *AddressBook
	Compliance         *Compliance
	ChooseCarrier      *ChooseCarrier
	ShippingCalculator *ShippingCalculator
	Trending           *Trending
	Billing            *Billing
	PaymentSuccess     *PaymentSuccess

	deps        Deps
	unsubscribe func()
}

// New creates every controller
func New(deps Deps) *Dashboard {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}

	return &Dashboard{
		Mailbox:            NewMailbox(deps),
		MyAccount:          NewMyAccount(deps),
		Shipments:          NewShipments(deps),
		AddressBook:        NewAddressBook(deps),
		Compliance:         NewCompliance(deps),
		ChooseCarrier:      NewChooseCarrier(deps),
		ShippingCalculator: NewShippingCalculator(deps),
		Trending:           NewTrending(deps),
		Billing:            NewBilling(deps),
		PaymentSuccess:     NewPaymentSuccess(deps),
		deps:               deps,
	}
}

func (d *Dashboard) pages() []*page {
	return []*page{
		&d.Mailbox.page,
		&d.MyAccount.page,
		&d.Shipments.page,
		&d.AddressBook.page,
		&d.Compliance.page,
		&d.ChooseCarrier.page,
		&d.Trending.page,
		&d.Billing.page,
	}
}

// Mount starts every page's lifetime under ctx
func (d *Dashboard) Mount(ctx context.Context) {
	for _, p := range d.pages() {
		p.Mount(ctx)
	}
}

// Unmount cancels all in-flight loads
func (d *Dashboard) Unmount() {
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
	for _, p := range d.pages() {
		p.Unmount()
	}
}

// Follow drops every cached view and any open payment when the session ends
func (d *Dashboard) Follow(store *session.Store) {
	d.unsubscribe = store.Subscribe(func(c session.Change) {
		if c.LoggedIn() {
			return
		}

		d.deps.Logger.Debug("Session ended, dropping cached pages", "reason", c.Reason)
		for _, p := range d.pages() {
			p.Reset()
		}
		d.ShippingCalculator.Reset()
		d.Mailbox.ClearSelection()
		if d.deps.Flow != nil {
			d.deps.Flow.Close()
		}
	})
}

// tracked is a resource a page owns
type tracked interface {
	resource.Loadable
	Mount(ctx context.Context)
	Unmount()
	Reset()
	Loaded() bool
}

// page owns the resources of one controller
type page struct {
	registry   *resource.Registry
	resources  []tracked
	mu         sync.Mutex
	unregister []func()
}

func (p *page) track(registry *resource.Registry, rs ...tracked) {
	p.registry = registry
	p.resources = rs
}

func (p *page) Mount(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range p.resources {
		r.Mount(ctx)
		if p.registry != nil {
			p.unregister = append(p.unregister, p.registry.Register(r))
		}
	}
}

func (p *page) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, fn := range p.unregister {
		fn()
	}
	p.unregister = nil

	for _, r := range p.resources {
		r.Unmount()
	}
}

func (p *page) Reset() {
	for _, r := range p.resources {
		r.Reset()
	}
}

// Refresh loads every resource of the page concurrently
func (p *page) Refresh(ctx context.Context) error {
	errs := make([]error, len(p.resources))
	var wg sync.WaitGroup

	for i, r := range p.resources {
		wg.Add(1)
		go func(i int, r tracked) {
			defer wg.Done()
			errs[i] = r.Load(ctx)
		}(i, r)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Ensure loads only the resources that have not loaded yet
func (p *page) Ensure(ctx context.Context) error {
	var errs []error

	for _, r := range p.resources {
		if r.Loaded() {
			continue
		}
		errs = append(errs, r.Load(ctx))
	}

	return errors.Join(errs...)
}

// mutate runs a write through the registry, or directly when there is none
func mutate(ctx context.Context, deps Deps, fn func(ctx context.Context) error, keys ...string) error {
	if deps.Registry == nil {
		return fn(ctx)
	}
	return deps.Registry.Mutate(ctx, fn, keys...)
}

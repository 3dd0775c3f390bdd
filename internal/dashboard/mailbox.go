package dashboard

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	"github.com/vaidashi/getmethis-dashboard/internal/payment"
	"github.com/vaidashi/getmethis-dashboard/internal/pricing"
	"github.com/vaidashi/getmethis-dashboard/internal/resource"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
)

// Mailbox is the packages page
type Mailbox struct {
	page
	deps           Deps
	packages       *resource.Resource[[]models.Package]
	consolidations *resource.Resource[[]models.Consolidation]
	wallet         *resource.Resource[models.Wallet]
	services       *resource.Resource[[]models.WarehouseService]

	mu       sync.Mutex
	selected map[models.ID]bool
}

// MailboxView is what the mailbox page renders
type MailboxView struct {
	Packages       []models.Package          `json:"packages"`
	Consolidations []models.Consolidation    `json:"consolidations"`
	Services       []models.WarehouseService `json:"services"`
	Wallet         models.Wallet             `json:"wallet"`
	Selected       []models.ID               `json:"selected"`
	Estimate       *pricing.Estimate         `json:"estimate,omitempty"`
	Loading        bool                      `json:"loading"`
}

func NewMailbox(deps Deps) *Mailbox {
	m := &Mailbox{
		deps:     deps,
		selected: make(map[models.ID]bool),
	}

	m.packages = resource.New(resource.KeyPackages, []models.Package{}, deps.API.Warehouse.Packages, deps.Notifier, deps.Logger)
	m.consolidations = resource.New(resource.KeyConsolidations, []models.Consolidation{}, deps.API.Shipping.Consolidations, deps.Notifier, deps.Logger)
	m.wallet = resource.New(resource.KeyWallet, models.Wallet{}, func(ctx context.Context) (models.Wallet, error) {
		w, err := deps.API.Payments.Wallet(ctx)
		if err != nil {
			return models.Wallet{}, err
		}
		return *w, nil
	}, deps.Notifier, deps.Logger)
	m.services = resource.New("warehouse_services", []models.WarehouseService{}, deps.API.Warehouse.Services, deps.Notifier, deps.Logger).
		WithLabel("warehouse services")

	m.track(deps.Registry, m.packages, m.consolidations, m.wallet, m.services)
	return m
}

// View returns the current page state
func (m *Mailbox) View() MailboxView {
	pkgs := m.packages.Snapshot()
	cons := m.consolidations.Snapshot()
	wallet := m.wallet.Snapshot()
	services := m.services.Snapshot()

	view := MailboxView{
		Packages:       pkgs.Data,
		Consolidations: cons.Data,
		Services:       services.Data,
		Wallet:         wallet.Data,
		Selected:       m.selectedIDs(),
		Loading:        pkgs.Loading || cons.Loading || wallet.Loading || services.Loading,
	}

	if len(view.Selected) > 0 {
		est := m.Estimate()
		view.Estimate = &est
	}
	return view
}

// Toggle adds or removes a package from the consolidation selection
func (m *Mailbox) Toggle(id models.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.selected[id] {
		delete(m.selected, id)
		return
	}
	m.selected[id] = true
}

// Select replaces the selection
func (m *Mailbox) Select(ids ...models.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.selected = make(map[models.ID]bool, len(ids))
	for _, id := range ids {
		m.selected[id] = true
	}
}

func (m *Mailbox) ClearSelection() {
	m.Select()
}

// Selected returns the selected packages that are still listed
func (m *Mailbox) Selected() []models.Package {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Package
	for _, p := range m.packages.Data() {
		if m.selected[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// Estimate is the provisional cost of consolidating the selection
func (m *Mailbox) Estimate() pricing.Estimate {
	return pricing.EstimatePackages(m.Selected())
}

// Consolidate bundles the selected packages
func (m *Mailbox) Consolidate(ctx context.Context, notes string) (*models.Consolidation, error) {
	selected := m.Selected()

	ids := make([]models.ID, 0, len(selected))
	for _, p := range selected {
		if !p.CanConsolidate() {
			return nil, apperrors.NewBusinessError(apperrors.ErrInvalidInput, fmt.Sprintf("Package %s cannot be consolidated", p.ID))
		}
		ids = append(ids, p.ID)
	}

	if len(ids) < 2 {
		return nil, apperrors.NewBusinessError(apperrors.ErrTooFewPackages, "Select at least two packages to consolidate")
	}

	var created *models.Consolidation
	err := mutate(ctx, m.deps, func(ctx context.Context) error {
		var err error
		created, err = m.deps.API.Shipping.Consolidate(ctx, ids, notes)
		return err
	}, resource.KeyPackages, resource.KeyConsolidations)

	if err != nil {
		return nil, err
	}

	m.ClearSelection()
	m.deps.Notifier.Notify(ctx, notify.New(notify.LevelSuccess, "", fmt.Sprintf("Consolidated %d packages", len(ids))))
	return created, nil
}

// RequestService asks the warehouse to perform a service on a package
func (m *Mailbox) RequestService(ctx context.Context, req models.ServiceRequest) (*models.ServiceRequest, error) {
	var created *models.ServiceRequest
	err := mutate(ctx, m.deps, func(ctx context.Context) error {
		var err error
		created, err = m.deps.API.Warehouse.CreateServiceRequest(ctx, req)
		return err
	}, resource.KeyPackages)

	if err != nil {
		return nil, err
	}

	m.deps.Notifier.Notify(ctx, notify.New(notify.LevelSuccess, "", "Service request submitted"))
	return created, nil
}

// PayPackage starts paying for a listed package
func (m *Mailbox) PayPackage(ctx context.Context, id models.ID, method payment.Method) (payment.State, error) {
	for _, p := range m.packages.Data() {
		if p.ID == id {
			return m.deps.Flow.Begin(ctx, payment.PackageTarget(p), method)
		}
	}
	return payment.Idle{}, apperrors.NewNotFoundError(fmt.Sprintf("package %s not found", id))
}

// PayConsolidation starts paying for a listed consolidation
func (m *Mailbox) PayConsolidation(ctx context.Context, id models.ID, method payment.Method) (payment.State, error) {
	return payConsolidation(ctx, m.deps.Flow, m.consolidations.Data(), id, method)
}

func payConsolidation(ctx context.Context, flow *payment.Flow, list []models.Consolidation, id models.ID, method payment.Method) (payment.State, error) {
	for _, c := range list {
		if c.ID == id {
			return flow.Begin(ctx, payment.ConsolidationTarget(c), method)
		}
	}
	return payment.Idle{}, apperrors.NewNotFoundError(fmt.Sprintf("consolidation %s not found", id))
}

func (m *Mailbox) selectedIDs() []models.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]models.ID, 0, len(m.selected))
	for id := range m.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

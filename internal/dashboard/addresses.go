package dashboard

import (
	"context"
	"fmt"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	"github.com/vaidashi/getmethis-dashboard/internal/resource"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
)

// AddressBook is the saved addresses page
type AddressBook struct {
	page
	deps      Deps
	addresses *resource.Resource[[]models.Address]
}

type AddressBookView struct {
	Addresses []models.Address `json:"addresses"`
	DefaultID models.ID        `json:"default_id,omitempty"`
	Loading   bool             `json:"loading"`
}

func NewAddressBook(deps Deps) *AddressBook {
	a := &AddressBook{deps: deps}

	a.addresses = resource.New(resource.KeyAddresses, []models.Address{}, deps.API.AddressBook.List, deps.Notifier, deps.Logger)

	a.track(deps.Registry, a.addresses)
	return a
}

func (a *AddressBook) View() AddressBookView {
	snap := a.addresses.Snapshot()

	view := AddressBookView{Addresses: snap.Data, Loading: snap.Loading}
	if def, ok := models.DefaultAddress(snap.Data); ok {
		view.DefaultID = def.ID
	}
	return view
}

// Default returns the default address, if one is marked
func (a *AddressBook) Default() (models.Address, bool) {
	return models.DefaultAddress(a.addresses.Data())
}

func (a *AddressBook) Create(ctx context.Context, addr models.Address) (*models.Address, error) {
	var created *models.Address
	err := mutate(ctx, a.deps, func(ctx context.Context) error {
		var err error
		created, err = a.deps.API.AddressBook.Create(ctx, addr)
		return err
	}, resource.KeyAddresses)

	if err != nil {
		return nil, err
	}

	a.deps.Notifier.Notify(ctx, notify.New(notify.LevelSuccess, "", "Address added"))
	return created, nil
}

// Update saves addr. A rejected update leaves the listed addresses as they
// were and returns the field errors.
func (a *AddressBook) Update(ctx context.Context, id models.ID, addr models.Address) (*models.Address, error) {
	var updated *models.Address
	err := mutate(ctx, a.deps, func(ctx context.Context) error {
		var err error
		updated, err = a.deps.API.AddressBook.Update(ctx, id, addr)
		return err
	}, resource.KeyAddresses)

	if err != nil {
		return nil, err
	}

	a.deps.Notifier.Notify(ctx, notify.New(notify.LevelSuccess, "", "Address updated"))
	return updated, nil
}

func (a *AddressBook) Delete(ctx context.Context, id models.ID) error {
	err := mutate(ctx, a.deps, func(ctx context.Context) error {
		return a.deps.API.AddressBook.Delete(ctx, id)
	}, resource.KeyAddresses)

	if err != nil {
		return err
	}

	a.deps.Notifier.Notify(ctx, notify.New(notify.LevelSuccess, "", "Address deleted"))
	return nil
}

// SetDefault marks a listed address as the default
func (a *AddressBook) SetDefault(ctx context.Context, id models.ID) error {
	addr, ok := models.FindAddress(a.addresses.Data(), id)
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("address %s not found", id))
	}

	addr.IsDefault = true
	_, err := a.Update(ctx, id, addr)
	return err
}

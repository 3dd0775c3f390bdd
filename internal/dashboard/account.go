package dashboard

import (
	"context"
	"sync"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	"github.com/vaidashi/getmethis-dashboard/internal/payment"
	"github.com/vaidashi/getmethis-dashboard/internal/resource"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
)

// MyAccount is the profile and wallet page
type MyAccount struct {
	page
	deps           Deps
	profile        *resource.Resource[models.User]
	wallet         *resource.Resource[models.Wallet]
	hasPin         *resource.Resource[bool]
	transactions   *resource.Resource[models.Page[models.Transaction]]
	consolidations *resource.Resource[[]models.Consolidation]

	mu     sync.Mutex
	txPage int
}

type MyAccountView struct {
	Profile        models.User                     `json:"profile"`
	Wallet         models.Wallet                   `json:"wallet"`
	HasPin         bool                            `json:"has_pin"`
	Transactions   models.Page[models.Transaction] `json:"transactions"`
	Consolidations []models.Consolidation          `json:"consolidations"`
	Loading        bool                            `json:"loading"`
}

func NewMyAccount(deps Deps) *MyAccount {
	a := &MyAccount{deps: deps, txPage: 1}

	a.profile = resource.New(resource.KeyProfile, models.User{}, func(ctx context.Context) (models.User, error) {
		u, err := deps.API.Profile.Get(ctx)
		if err != nil {
			return models.User{}, err
		}
		return *u, nil
	}, deps.Notifier, deps.Logger)
	a.wallet = resource.New(resource.KeyWallet, models.Wallet{}, func(ctx context.Context) (models.Wallet, error) {
		w, err := deps.API.Payments.Balance(ctx)
		if err != nil {
			return models.Wallet{}, err
		}
		return *w, nil
	}, deps.Notifier, deps.Logger)
	a.hasPin = resource.New(resource.KeyPinStatus, false, deps.API.Payments.HasPin, deps.Notifier, deps.Logger).
		WithLabel("PIN status")
	a.transactions = resource.New(resource.KeyTransactions, models.Page[models.Transaction]{}, func(ctx context.Context) (models.Page[models.Transaction], error) {
		p, err := deps.API.Payments.Transactions(ctx, a.currentPage())
		if err != nil {
			return models.Page[models.Transaction]{}, err
		}
		return *p, nil
	}, deps.Notifier, deps.Logger)
	a.consolidations = resource.New(resource.KeyConsolidations, []models.Consolidation{}, deps.API.Shipping.Consolidations, deps.Notifier, deps.Logger)

	a.track(deps.Registry, a.profile, a.wallet, a.hasPin, a.transactions, a.consolidations)
	return a
}

func (a *MyAccount) View() MyAccountView {
	profile := a.profile.Snapshot()
	wallet := a.wallet.Snapshot()
	hasPin := a.hasPin.Snapshot()
	txs := a.transactions.Snapshot()
	cons := a.consolidations.Snapshot()

	return MyAccountView{
		Profile:        profile.Data,
		Wallet:         wallet.Data,
		HasPin:         hasPin.Data,
		Transactions:   txs.Data,
		Consolidations: cons.Data,
		Loading:        profile.Loading || wallet.Loading || hasPin.Loading || txs.Loading || cons.Loading,
	}
}

// TransactionsPage switches the transaction list to page n
func (a *MyAccount) TransactionsPage(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}

	a.mu.Lock()
	a.txPage = n
	a.mu.Unlock()

	return a.transactions.Load(ctx)
}

func (a *MyAccount) UpdateProfile(ctx context.Context, update models.ProfileUpdate) error {
	return mutate(ctx, a.deps, func(ctx context.Context) error {
		_, err := a.deps.API.Profile.Update(ctx, update)
		return err
	}, resource.KeyProfile)
}

func (a *MyAccount) SetPin(ctx context.Context, pin string) error {
	if err := checkPIN("pin", pin); err != nil {
		return err
	}

	return a.pinChange(ctx, "Wallet PIN set", func(ctx context.Context) error {
		return a.deps.API.Payments.SetPin(ctx, pin)
	})
}

func (a *MyAccount) UpdatePin(ctx context.Context, oldPin, newPin string) error {
	if err := checkPIN("new_pin", newPin); err != nil {
		return err
	}

	return a.pinChange(ctx, "Wallet PIN updated", func(ctx context.Context) error {
		return a.deps.API.Payments.UpdatePin(ctx, oldPin, newPin)
	})
}

func (a *MyAccount) ResetPin(ctx context.Context, password, newPin string) error {
	if err := checkPIN("new_pin", newPin); err != nil {
		return err
	}

	return a.pinChange(ctx, "Wallet PIN reset", func(ctx context.Context) error {
		return a.deps.API.Payments.ResetPin(ctx, password, newPin)
	})
}

// Topup adds funds to the wallet
func (a *MyAccount) Topup(ctx context.Context, amount models.Amount) (*models.PaymentResult, error) {
	if amount <= 0 {
		return nil, apperrors.NewValidationError("amount: must be positive", map[string][]string{
			"amount": {"Enter an amount greater than zero."},
		})
	}

	var result *models.PaymentResult
	err := mutate(ctx, a.deps, func(ctx context.Context) error {
		var err error
		result, err = a.deps.API.Payments.Topup(ctx, amount.Cents())
		return err
	}, resource.KeyWallet, resource.KeyTransactions)

	if err != nil {
		return nil, err
	}

	a.deps.Notifier.Notify(ctx, notify.New(notify.LevelSuccess, notify.CodePayment, "Wallet topped up"))
	return result, nil
}

// PayConsolidation starts paying for one of the user's consolidations
func (a *MyAccount) PayConsolidation(ctx context.Context, id models.ID, method payment.Method) (payment.State, error) {
	return payConsolidation(ctx, a.deps.Flow, a.consolidations.Data(), id, method)
}

func (a *MyAccount) pinChange(ctx context.Context, done string, fn func(ctx context.Context) error) error {
	if err := mutate(ctx, a.deps, fn, resource.KeyPinStatus); err != nil {
		return err
	}

	a.deps.Notifier.Notify(ctx, notify.New(notify.LevelSuccess, "", done))
	return nil
}

func (a *MyAccount) currentPage() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.txPage
}

func checkPIN(field, pin string) error {
	if len(pin) != 4 {
		return pinError(field)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return pinError(field)
		}
	}
	return nil
}

func pinError(field string) error {
	return apperrors.NewValidationError(field+": PIN must be exactly 4 digits", map[string][]string{
		field: {"PIN must be exactly 4 digits."},
	})
}

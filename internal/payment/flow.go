package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	"github.com/vaidashi/getmethis-dashboard/internal/resource"
	"github.com/vaidashi/getmethis-dashboard/internal/storage"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

// ErrStale is returned when the flow was closed or restarted while a call
// was in flight; the call's result is dropped
var ErrStale = errors.New("payment flow changed while the request was in flight")

// Invalidator reloads resources by key
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Flow runs one payment at a time and applies every step through Transition
type Flow struct {
	gateway     Gateway
	storage     storage.Storage
	invalidator Invalidator
	notifier    notify.Notifier
	logger      logger.Logger

	mu    sync.Mutex
	state State
	epoch uint64
}

// NewFlow creates an idle flow
func NewFlow(gateway Gateway, storage storage.Storage, invalidator Invalidator, notifier notify.Notifier, logger logger.Logger) *Flow {
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Flow{
		gateway:     gateway,
		storage:     storage,
		invalidator: invalidator,
		notifier:    notifier,
		logger:      logger,
		state:       Idle{},
	}
}

// State returns the current state
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// Close abandons the current payment and drops every selection
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.Phase() != PhaseIdle {
		f.logger.Debug("Payment closed", "phase", f.state.Phase())
	}
	f.state = Idle{}
	f.epoch++
}

// Begin starts paying for target. Any previous payment is closed first. A
// wallet payment is rejected early when the balance cannot cover the amount
// due; the server still makes the final decision.
func (f *Flow) Begin(ctx context.Context, target Target, method Method) (State, error) {
	f.Close()
	_, epoch := f.snapshot()

	if err := validateBegin(target, method); err != nil {
		return Idle{}, err
	}

	if method == MethodWallet {
		wallet, err := f.gateway.Wallet(ctx)
		if err != nil {
			return Idle{}, err
		}

		if due := target.AmountDue(); wallet.Balance < due {
			return Idle{}, apperrors.NewBusinessError(
				apperrors.ErrInsufficientFunds,
				fmt.Sprintf("Insufficient wallet balance: %s due, %s available", due, wallet.Balance),
			).WithContext("targetID", target.ID)
		}
	}

	addresses, err := f.gateway.Addresses(ctx)
	if err != nil {
		return Idle{}, err
	}

	var couriers []models.CourierOption
	if target.Kind == TargetPackage && len(addresses) > 0 {
		couriers, err = f.gateway.ShippingOptions(ctx, target.ID)
		if err != nil {
			return Idle{}, err
		}
	}

	return f.apply(epoch, Begin{Target: target, Method: method, Couriers: couriers, Addresses: addresses})
}

// ReloadCouriers refreshes the courier options
func (f *Flow) ReloadCouriers(ctx context.Context) (State, error) {
	state, epoch := f.snapshot()

	st, ok := state.(SelectingCourier)
	if !ok {
		return state, invalid(state, CouriersLoaded{})
	}

	options, err := f.gateway.ShippingOptions(ctx, st.Target.ID)
	if err != nil {
		return state, err
	}

	return f.apply(epoch, CouriersLoaded{Options: options})
}

// ChooseCourier records the courier with the server and takes its confirmed
// total as the amount due
func (f *Flow) ChooseCourier(ctx context.Context, courierID models.ID) (State, error) {
	state, epoch := f.snapshot()

	st, ok := state.(SelectingCourier)
	if !ok {
		return state, invalid(state, CourierChosen{})
	}

	var courier *models.CourierOption
	for i := range st.Options {
		if st.Options[i].ID == courierID {
			courier = &st.Options[i]
			break
		}
	}

	if courier == nil {
		return state, apperrors.NewBusinessError(apperrors.ErrNoCourierSelected, "Select a courier to continue")
	}

	resp, err := f.gateway.SelectCourier(ctx, st.Target.ID, courierID)
	if err != nil {
		return state, err
	}

	return f.apply(epoch, CourierChosen{Courier: *courier, TotalDue: resp.TotalDue})
}

// PickAddress selects a saved address
func (f *Flow) PickAddress(addressID models.ID) (State, error) {
	_, epoch := f.snapshot()
	return f.apply(epoch, AddressPicked{AddressID: addressID})
}

// ConfirmAddress moves a wallet payment to PIN entry, or creates the PayPal
// order and remembers it for the return route
func (f *Flow) ConfirmAddress(ctx context.Context) (State, error) {
	state, epoch := f.snapshot()

	st, ok := state.(SelectingAddress)
	if !ok {
		return state, invalid(state, AddressConfirmed{})
	}

	if st.Method == MethodWallet {
		return f.apply(epoch, AddressConfirmed{})
	}

	if !st.CanContinue() {
		return state, apperrors.NewBusinessError(apperrors.ErrNoAddressSelected, "Select a shipping address to continue")
	}

	req := models.CreateOrderRequest{
		ShippingAddressID: st.Selected,
		Amount:            st.Target.AmountDue(),
	}
	if st.Target.Kind == TargetPackage {
		req.PackageID = st.Target.ID
	} else {
		req.ConsolidationID = st.Target.ID
	}

	order, err := f.gateway.CreateOrder(ctx, req)
	if err != nil {
		return state, err
	}

	if err := f.rememberOrder(ctx, order.OrderID, st.Target); err != nil {
		f.logger.Warn("Failed to persist PayPal order", "orderID", order.OrderID, "error", err)
	}

	return f.apply(epoch, OrderCreated{OrderID: order.OrderID, ApprovalURL: order.ApprovalURL})
}

// SubmitPin pays from the wallet. A rejected PIN or payment keeps PIN entry
// open with the reason so the user can correct it.
func (f *Flow) SubmitPin(ctx context.Context, pin string) (State, error) {
	state, epoch := f.snapshot()

	st, ok := state.(EnteringPin)
	if !ok {
		return state, invalid(state, PaymentSucceeded{})
	}

	if !validPIN(pin) {
		err := apperrors.NewBusinessError(apperrors.ErrInvalidPIN, "PIN must be exactly 4 digits")
		next, applyErr := f.apply(epoch, PinRejected{Message: err.Message})
		if applyErr != nil {
			return next, applyErr
		}
		return next, err
	}

	result, err := f.gateway.PayFromWallet(ctx, st.Target, models.WalletPaymentRequest{
		Pin:               pin,
		ShippingAddressID: st.AddressID,
	})

	if err == nil && !result.Success {
		err = apperrors.NewBusinessError(apperrors.ErrInvalidPIN, orDefault(result.Message, "Payment was declined"))
	}

	if err != nil {
		if apperrors.IsCancelled(err) || errors.Is(err, apperrors.ErrSessionExpired) {
			return state, err
		}

		next, applyErr := f.apply(epoch, PinRejected{Message: err.Error()})
		if applyErr != nil {
			return next, applyErr
		}
		return next, err
	}

	next, err := f.apply(epoch, PaymentSucceeded{Message: orDefault(result.Message, "Payment completed successfully")})
	if err != nil {
		return next, err
	}

	f.settled(ctx, next.(Resolved))
	return next, nil
}

// Capture completes a PayPal payment. If the flow is not awaiting capture,
// for instance after the approval redirect, it resumes from the persisted
// order. An empty orderID falls back to the known order.
func (f *Flow) Capture(ctx context.Context, orderID string) (State, error) {
	state, epoch := f.snapshot()

	st, ok := state.(AwaitingCapture)
	if !ok || (orderID != "" && orderID != st.OrderID) {
		resumed, err := f.resume(ctx, orderID)
		if err != nil {
			return state, err
		}
		st = resumed
		state, epoch = f.snapshot()
	}

	resp, err := f.gateway.CaptureOrder(ctx, st.OrderID)
	if err != nil {
		return state, err
	}

	if err := f.forgetOrder(ctx); err != nil {
		f.logger.Warn("Failed to clear PayPal order", "orderID", st.OrderID, "error", err)
	}

	if !resp.Completed() {
		msg := orDefault(resp.Message, "Payment was not completed")
		next, err := f.apply(epoch, CaptureFailed{Message: msg})
		if err != nil {
			return next, err
		}
		f.notifier.Notify(ctx, notify.New(notify.LevelError, notify.CodePayment, msg))
		return next, nil
	}

	next, err := f.apply(epoch, PaymentSucceeded{Message: orDefault(resp.Message, "Payment completed successfully")})
	if err != nil {
		return next, err
	}

	f.settled(ctx, next.(Resolved))
	return next, nil
}

func (f *Flow) resume(ctx context.Context, orderID string) (AwaitingCapture, error) {
	stored, err := storage.GetOrEmpty(ctx, f.storage, storage.KeyPayPalOrderID)
	if err != nil {
		return AwaitingCapture{}, err
	}

	if orderID == "" {
		orderID = stored
	}

	if orderID == "" {
		return AwaitingCapture{}, apperrors.NewInvalidInputError("missing PayPal order id")
	}

	var target Target
	if orderID == stored {
		kind, _ := storage.GetOrEmpty(ctx, f.storage, storage.KeyPayPalTargetKind)
		id, _ := storage.GetOrEmpty(ctx, f.storage, storage.KeyPayPalTargetID)
		target = Target{Kind: TargetKind(kind), ID: models.ID(id)}
	}

	f.Close()
	_, epoch := f.snapshot()

	next, err := f.apply(epoch, Resumed{Target: target, OrderID: orderID})
	if err != nil {
		return AwaitingCapture{}, err
	}
	return next.(AwaitingCapture), nil
}

func (f *Flow) settled(ctx context.Context, r Resolved) {
	f.logger.Info("Payment completed",
		"method", r.Method,
		"kind", r.Target.Kind,
		"targetID", r.Target.ID,
	)

	f.notifier.Notify(ctx, notify.New(notify.LevelSuccess, notify.CodePayment, r.Message))

	if f.invalidator == nil {
		return
	}

	if err := f.invalidator.Invalidate(ctx,
		resource.KeyPackages,
		resource.KeyConsolidations,
		resource.KeyWallet,
		resource.KeyTransactions,
	); err != nil {
		f.logger.Warn("Reload after payment failed", "error", err)
	}
}

func (f *Flow) snapshot() (State, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state, f.epoch
}

// apply runs Transition if nothing changed the flow since epoch was taken
func (f *Flow) apply(epoch uint64, e Event) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if epoch != f.epoch {
		return f.state, ErrStale
	}

	next, err := Transition(f.state, e)
	if err != nil {
		return f.state, err
	}

	f.state = next
	f.epoch++
	return next, nil
}

func (f *Flow) rememberOrder(ctx context.Context, orderID string, target Target) error {
	if err := f.storage.Set(ctx, storage.KeyPayPalOrderID, orderID); err != nil {
		return err
	}
	if err := f.storage.Set(ctx, storage.KeyPayPalTargetKind, string(target.Kind)); err != nil {
		return err
	}
	return f.storage.Set(ctx, storage.KeyPayPalTargetID, target.ID.String())
}

func (f *Flow) forgetOrder(ctx context.Context) error {
	for _, key := range []string{storage.KeyPayPalOrderID, storage.KeyPayPalTargetKind, storage.KeyPayPalTargetID} {
		if err := f.storage.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func validateBegin(target Target, method Method) error {
	if !method.Valid() {
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown payment method %q", method))
	}
	if !target.Payable {
		return apperrors.NewBusinessError(apperrors.ErrNotPayable, "This item is not awaiting payment")
	}
	return nil
}

func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

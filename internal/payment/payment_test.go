package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	"github.com/vaidashi/getmethis-dashboard/internal/storage"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

type fakeGateway struct {
	balance   models.Amount
	addresses []models.Address
	couriers  []models.CourierOption
	totalDue  models.Amount
	payErr    error
	capture   models.CaptureOrderResponse

	paid     []models.WalletPaymentRequest
	orders   []models.CreateOrderRequest
	captured []string
	selected []models.ID
}

func (g *fakeGateway) Wallet(ctx context.Context) (*models.Wallet, error) {
	return &models.Wallet{Balance: g.balance}, nil
}

func (g *fakeGateway) Addresses(ctx context.Context) ([]models.Address, error) {
	return g.addresses, nil
}

func (g *fakeGateway) ShippingOptions(ctx context.Context, packageID models.ID) ([]models.CourierOption, error) {
	return g.couriers, nil
}

func (g *fakeGateway) SelectCourier(ctx context.Context, packageID, courierID models.ID) (*models.SelectCourierResponse, error) {
	g.selected = append(g.selected, courierID)
	return &models.SelectCourierResponse{TotalDue: g.totalDue}, nil
}

func (g *fakeGateway) PayFromWallet(ctx context.Context, target Target, req models.WalletPaymentRequest) (*models.PaymentResult, error) {
	if g.payErr != nil {
		return nil, g.payErr
	}
	g.paid = append(g.paid, req)
	return &models.PaymentResult{Success: true}, nil
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	g.orders = append(g.orders, req)
	return &models.CreateOrderResponse{OrderID: "ORDER-1", ApprovalURL: "https://paypal.example/approve"}, nil
}

func (g *fakeGateway) CaptureOrder(ctx context.Context, orderID string) (*models.CaptureOrderResponse, error) {
	g.captured = append(g.captured, orderID)
	return &g.capture, nil
}

type fakeInvalidator struct {
	keys []string
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, keys ...string) error {
	f.keys = append(f.keys, keys...)
	return nil
}

func payablePackage(id models.ID) Target {
	return PackageTarget(models.Package{ID: id, IsPaymentPending: true, Amount: 20})
}

func addresses(defaultID models.ID) []models.Address {
	list := []models.Address{{ID: "1", City: "Lagos"}, {ID: "2", City: "Abuja"}}
	for i := range list {
		list[i].IsDefault = list[i].ID == defaultID
	}
	return list
}

func newTestFlow(g *fakeGateway) (*Flow, *fakeInvalidator, *notify.Recorder, *storage.Memory) {
	inv := &fakeInvalidator{}
	rec := notify.NewRecorder()
	mem := storage.NewMemory()
	return NewFlow(g, mem, inv, rec, logger.NewNopLogger()), inv, rec, mem
}

func TestAmountDuePrefersServerTotal(t *testing.T) {
	assert.Equal(t, models.Amount(20), Target{Amount: 20}.AmountDue())
	assert.Equal(t, models.Amount(27.5), Target{Amount: 20, TotalDue: 27.5}.AmountDue())
}

func TestTransitionPreselectsDefaultAddress(t *testing.T) {
	target := ConsolidationTarget(models.Consolidation{ID: "c1", IsPaymentPending: true, TotalCost: 12})

	s, err := Transition(Idle{}, Begin{Target: target, Method: MethodWallet, Addresses: addresses("2")})
	require.NoError(t, err)

	sel := s.(SelectingAddress)
	assert.Equal(t, models.ID("2"), sel.Selected)
	assert.True(t, sel.CanContinue())
}

func TestTransitionWithoutDefaultBlocksContinue(t *testing.T) {
	target := ConsolidationTarget(models.Consolidation{ID: "c1", IsPaymentPending: true, TotalCost: 12})

	s, err := Transition(Idle{}, Begin{Target: target, Method: MethodWallet, Addresses: addresses("")})
	require.NoError(t, err)

	sel := s.(SelectingAddress)
	assert.False(t, sel.CanContinue())

	_, err = Transition(sel, AddressConfirmed{})
	assert.ErrorIs(t, err, apperrors.ErrNoAddressSelected)

	s, err = Transition(sel, AddressPicked{AddressID: "1"})
	require.NoError(t, err)
	s, err = Transition(s, AddressConfirmed{})
	require.NoError(t, err)
	assert.Equal(t, PhaseEnteringPin, s.Phase())
}

func TestTransitionRejectsUnpayable(t *testing.T) {
	_, err := Transition(Idle{}, Begin{
		Target:    PackageTarget(models.Package{ID: "1", IsPaid: true}),
		Method:    MethodWallet,
		Addresses: addresses("1"),
	})
	assert.ErrorIs(t, err, apperrors.ErrNotPayable)
}

func TestTransitionRequiresAddress(t *testing.T) {
	_, err := Transition(Idle{}, Begin{Target: payablePackage("1"), Method: MethodPayPal})
	assert.ErrorIs(t, err, apperrors.ErrNoAddress)
}

func TestCloseFromEveryStateResets(t *testing.T) {
	target := payablePackage("1")
	courier := &models.CourierOption{ID: "dhl"}
	states := []State{
		SelectingCourier{Target: target},
		SelectingAddress{Target: target, Courier: courier, Selected: "1"},
		EnteringPin{Target: target, Courier: courier, AddressID: "1", Error: "bad pin"},
		AwaitingCapture{Target: target, OrderID: "ORDER-1"},
		Resolved{Target: target, Success: true},
	}

	for _, s := range states {
		next, err := Transition(s, Closed{})
		require.NoError(t, err)
		assert.Equal(t, Idle{}, next, "closing %s", s.Phase())
	}
}

func TestInvalidTransition(t *testing.T) {
	next, err := Transition(Idle{}, PinRejected{Message: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, Idle{}, next)
}

func TestWalletPackagePaymentEndToEnd(t *testing.T) {
	g := &fakeGateway{
		balance:   100,
		addresses: addresses("2"),
		couriers:  []models.CourierOption{{ID: "dhl", Name: "DHL", Price: 30}},
		totalDue:  31.75,
	}
	flow, inv, rec, _ := newTestFlow(g)
	ctx := context.Background()

	s, err := flow.Begin(ctx, payablePackage("p1"), MethodWallet)
	require.NoError(t, err)
	assert.Equal(t, PhaseSelectingCourier, s.Phase())

	s, err = flow.ChooseCourier(ctx, "dhl")
	require.NoError(t, err)
	sel := s.(SelectingAddress)
	assert.Equal(t, models.Amount(31.75), sel.Target.AmountDue())
	assert.Equal(t, models.ID("2"), sel.Selected)

	_, err = flow.ConfirmAddress(ctx)
	require.NoError(t, err)

	s, err = flow.SubmitPin(ctx, "1234")
	require.NoError(t, err)

	res := s.(Resolved)
	assert.True(t, res.Success)
	require.Len(t, g.paid, 1)
	assert.Equal(t, models.ID("2"), g.paid[0].ShippingAddressID)
	assert.Equal(t, "1234", g.paid[0].Pin)
	assert.ElementsMatch(t, []string{"packages", "consolidations", "wallet", "transactions"}, inv.keys)
	assert.Equal(t, 1, rec.Count(notify.CodePayment))
}

func TestInsufficientFundsStopsEarly(t *testing.T) {
	g := &fakeGateway{balance: 5, addresses: addresses("1")}
	flow, _, _, _ := newTestFlow(g)

	s, err := flow.Begin(context.Background(), payablePackage("p1"), MethodWallet)

	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, PhaseIdle, flow.State().Phase())
}

func TestInvalidPinKeepsPinEntryOpen(t *testing.T) {
	g := &fakeGateway{balance: 100, addresses: addresses("1")}
	flow, inv, _, _ := newTestFlow(g)
	ctx := context.Background()

	target := ConsolidationTarget(models.Consolidation{ID: "c1", IsPaymentPending: true, TotalCost: 12})
	_, err := flow.Begin(ctx, target, MethodWallet)
	require.NoError(t, err)
	_, err = flow.ConfirmAddress(ctx)
	require.NoError(t, err)

	s, err := flow.SubmitPin(ctx, "12a4")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPIN)
	assert.Equal(t, PhaseEnteringPin, s.Phase())
	assert.NotEmpty(t, s.(EnteringPin).Error)

	g.payErr = apperrors.NewBusinessError(apperrors.ErrInvalidPIN, "Incorrect PIN")
	s, err = flow.SubmitPin(ctx, "9999")
	assert.Error(t, err)
	assert.Equal(t, "Incorrect PIN", s.(EnteringPin).Error)
	assert.Empty(t, inv.keys)

	g.payErr = nil
	s, err = flow.SubmitPin(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, PhaseResolved, s.Phase())
}

func TestNewPaymentDoesNotReuseStaleSelections(t *testing.T) {
	g := &fakeGateway{
		balance:   100,
		addresses: addresses(""),
		couriers:  []models.CourierOption{{ID: "dhl"}, {ID: "ups"}},
	}
	flow, _, _, _ := newTestFlow(g)
	ctx := context.Background()

	_, err := flow.Begin(ctx, payablePackage("p1"), MethodWallet)
	require.NoError(t, err)
	_, err = flow.ChooseCourier(ctx, "ups")
	require.NoError(t, err)
	_, err = flow.PickAddress("2")
	require.NoError(t, err)

	flow.Close()
	assert.Equal(t, PhaseIdle, flow.State().Phase())

	s, err := flow.Begin(ctx, payablePackage("p2"), MethodWallet)
	require.NoError(t, err)

	st := s.(SelectingCourier)
	assert.Equal(t, models.ID("p2"), st.Target.ID)

	s, err = flow.ChooseCourier(ctx, "dhl")
	require.NoError(t, err)
	sel := s.(SelectingAddress)
	assert.Equal(t, models.ID("dhl"), sel.Courier.ID)
	assert.False(t, sel.CanContinue())
}

func TestChooseUnknownCourier(t *testing.T) {
	g := &fakeGateway{balance: 100, addresses: addresses("1"), couriers: []models.CourierOption{{ID: "dhl"}}}
	flow, _, _, _ := newTestFlow(g)

	_, err := flow.Begin(context.Background(), payablePackage("p1"), MethodWallet)
	require.NoError(t, err)

	s, err := flow.ChooseCourier(context.Background(), "fedex")
	assert.ErrorIs(t, err, apperrors.ErrNoCourierSelected)
	assert.Equal(t, PhaseSelectingCourier, s.Phase())
	assert.Empty(t, g.selected)
}

func TestPayPalCaptureAfterRedirect(t *testing.T) {
	g := &fakeGateway{
		addresses: addresses("1"),
		capture:   models.CaptureOrderResponse{Status: "COMPLETED"},
	}
	flow, inv, rec, mem := newTestFlow(g)
	ctx := context.Background()

	target := ConsolidationTarget(models.Consolidation{ID: "c9", IsPaymentPending: true, TotalCost: 40})
	_, err := flow.Begin(ctx, target, MethodPayPal)
	require.NoError(t, err)

	s, err := flow.ConfirmAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://paypal.example/approve", s.(AwaitingCapture).ApprovalURL)
	require.Len(t, g.orders, 1)
	assert.Equal(t, models.ID("c9"), g.orders[0].ConsolidationID)

	// the approval redirect lands on a fresh flow sharing the same storage
	fresh := NewFlow(g, mem, inv, rec, logger.NewNopLogger())

	s, err = fresh.Capture(ctx, "")
	require.NoError(t, err)

	res := s.(Resolved)
	assert.True(t, res.Success)
	assert.Equal(t, models.ID("c9"), res.Target.ID)
	assert.Equal(t, []string{"ORDER-1"}, g.captured)

	keys, err := mem.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Contains(t, inv.keys, "wallet")
}

func TestPayPalCaptureNotCompleted(t *testing.T) {
	g := &fakeGateway{capture: models.CaptureOrderResponse{Status: "DECLINED"}}
	flow, inv, rec, _ := newTestFlow(g)

	s, err := flow.Capture(context.Background(), "ORDER-7")
	require.NoError(t, err)

	res := s.(Resolved)
	assert.False(t, res.Success)
	assert.Empty(t, inv.keys)
	assert.Equal(t, 1, rec.Count(notify.CodePayment))
}

func TestCaptureWithoutOrder(t *testing.T) {
	flow, _, _, _ := newTestFlow(&fakeGateway{})
	_, err := flow.Capture(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

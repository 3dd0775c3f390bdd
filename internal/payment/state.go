// Package payment drives a package or consolidation payment through courier
// choice, address choice and either a wallet PIN or a PayPal capture. The
// state is an explicit tagged union and every change goes through Transition.
package payment

import (
	"fmt"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
)

// Method is how the user pays
type Method string

const (
	MethodWallet Method = "wallet"
	MethodPayPal Method = "paypal"
)

// Valid reports whether m is a known method
func (m Method) Valid() bool {
	return m == MethodWallet || m == MethodPayPal
}

// TargetKind is what is being paid for
type TargetKind string

const (
	TargetPackage       TargetKind = "package"
	TargetConsolidation TargetKind = "consolidation"
)

// Target is the item being paid for
type Target struct {
	Kind     TargetKind    `json:"kind"`
	ID       models.ID     `json:"id"`
	Amount   models.Amount `json:"amount"`
	TotalDue models.Amount `json:"total_due"`
	Payable  bool          `json:"payable"`
}

// PackageTarget builds a target from a package
func PackageTarget(p models.Package) Target {
	return Target{
		Kind:     TargetPackage,
		ID:       p.ID,
		Amount:   p.Amount,
		TotalDue: p.TotalDue,
		Payable:  p.IsPayable(),
	}
}

// ConsolidationTarget builds a target from a consolidation
func ConsolidationTarget(c models.Consolidation) Target {
	return Target{
		Kind:     TargetConsolidation,
		ID:       c.ID,
		Amount:   c.TotalCost,
		TotalDue: c.TotalCost,
		Payable:  c.IsPayable(),
	}
}

// AmountDue is the amount the wallet pre-check compares the balance with:
// the server-confirmed total when known, otherwise the item amount
func (t Target) AmountDue() models.Amount {
	if t.TotalDue > 0 {
		return t.TotalDue
	}
	return t.Amount
}

// Phase names a state
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseSelectingCourier Phase = "selecting_courier"
	PhaseSelectingAddress Phase = "selecting_address"
	PhaseEnteringPin      Phase = "entering_pin"
	PhaseAwaitingCapture  Phase = "awaiting_capture"
	PhaseResolved         Phase = "resolved"
)

// State is one of Idle, SelectingCourier, SelectingAddress, EnteringPin,
// AwaitingCapture or Resolved
type State interface {
	Phase() Phase
	isState()
}

type Idle struct{}

type SelectingCourier struct {
	Target    Target                 `json:"target"`
	Method    Method                 `json:"method"`
	Options   []models.CourierOption `json:"options"`
	Addresses []models.Address       `json:"-"`
}

type SelectingAddress struct {
	Target    Target                `json:"target"`
	Method    Method                `json:"method"`
	Courier   *models.CourierOption `json:"courier,omitempty"`
	Addresses []models.Address      `json:"addresses"`
	Selected  models.ID             `json:"selected,omitempty"`
}

// CanContinue is false until an address is selected
func (s SelectingAddress) CanContinue() bool {
	return s.Selected != ""
}

type EnteringPin struct {
	Target    Target                `json:"target"`
	Courier   *models.CourierOption `json:"courier,omitempty"`
	AddressID models.ID             `json:"address_id"`
	Error     string                `json:"error,omitempty"`
}

type AwaitingCapture struct {
	Target      Target    `json:"target"`
	AddressID   models.ID `json:"address_id,omitempty"`
	OrderID     string    `json:"order_id"`
	ApprovalURL string    `json:"approval_url,omitempty"`
}

type Resolved struct {
	Target  Target `json:"target"`
	Method  Method `json:"method"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (Idle) Phase() Phase             { return PhaseIdle }
func (SelectingCourier) Phase() Phase { return PhaseSelectingCourier }
func (SelectingAddress) Phase() Phase { return PhaseSelectingAddress }
func (EnteringPin) Phase() Phase      { return PhaseEnteringPin }
func (AwaitingCapture) Phase() Phase  { return PhaseAwaitingCapture }
func (Resolved) Phase() Phase         { return PhaseResolved }

func (Idle) isState()             {}
func (SelectingCourier) isState() {}
func (SelectingAddress) isState() {}
func (EnteringPin) isState()      {}
func (AwaitingCapture) isState()  {}
func (Resolved) isState()         {}

// Event is an input to Transition
type Event interface {
	isEvent()
}

// Begin starts a payment. Packages go through courier selection first.
type Begin struct {
	Target    Target
	Method    Method
	Couriers  []models.CourierOption
	Addresses []models.Address
}

// CouriersLoaded replaces the courier options
type CouriersLoaded struct {
	Options []models.CourierOption
}

// CourierChosen carries the chosen courier and the server-confirmed total
type CourierChosen struct {
	Courier  models.CourierOption
	TotalDue models.Amount
}

type AddressPicked struct {
	AddressID models.ID
}

// AddressConfirmed moves a wallet payment to PIN entry
type AddressConfirmed struct{}

// OrderCreated moves a PayPal payment to capture
type OrderCreated struct {
	OrderID     string
	ApprovalURL string
}

// Resumed restores a PayPal capture after the approval redirect
type Resumed struct {
	Target  Target
	OrderID string
}

// PinRejected keeps PIN entry open with an inline error
type PinRejected struct {
	Message string
}

type PaymentSucceeded struct {
	Message string
}

// CaptureFailed resolves a PayPal payment that was not completed
type CaptureFailed struct {
	Message string
}

// Closed abandons the payment from any state
type Closed struct{}

func (Begin) isEvent()            {}
func (CouriersLoaded) isEvent()   {}
func (CourierChosen) isEvent()    {}
func (AddressPicked) isEvent()    {}
func (AddressConfirmed) isEvent() {}
func (OrderCreated) isEvent()     {}
func (Resumed) isEvent()          {}
func (PinRejected) isEvent()      {}
func (PaymentSucceeded) isEvent() {}
func (CaptureFailed) isEvent()    {}
func (Closed) isEvent()           {}

// Transition is the payment state machine. It never mutates s.
func Transition(s State, e Event) (State, error) {
	if _, ok := e.(Closed); ok {
		return Idle{}, nil
	}

	switch st := s.(type) {
	case Idle:
		switch ev := e.(type) {
		case Begin:
			return begin(ev)
		case Resumed:
			if ev.OrderID == "" {
				return s, invalid(s, e)
			}
			return AwaitingCapture{Target: ev.Target, OrderID: ev.OrderID}, nil
		}

	case SelectingCourier:
		switch ev := e.(type) {
		case CouriersLoaded:
			st.Options = ev.Options
			return st, nil
		case CourierChosen:
			target := st.Target
			if ev.TotalDue > 0 {
				target.TotalDue = ev.TotalDue
			}
			courier := ev.Courier
			return selectingAddress(target, st.Method, &courier, st.Addresses), nil
		}

	case SelectingAddress:
		switch ev := e.(type) {
		case AddressPicked:
			if _, ok := models.FindAddress(st.Addresses, ev.AddressID); !ok {
				return s, apperrors.NewBusinessError(apperrors.ErrNoAddressSelected, "Select one of your saved addresses")
			}
			st.Selected = ev.AddressID
			return st, nil
		case AddressConfirmed:
			if !st.CanContinue() {
				return s, apperrors.NewBusinessError(apperrors.ErrNoAddressSelected, "Select a shipping address to continue")
			}
			if st.Method != MethodWallet {
				return s, invalid(s, e)
			}
			return EnteringPin{Target: st.Target, Courier: st.Courier, AddressID: st.Selected}, nil
		case OrderCreated:
			if !st.CanContinue() {
				return s, apperrors.NewBusinessError(apperrors.ErrNoAddressSelected, "Select a shipping address to continue")
			}
			if st.Method != MethodPayPal {
				return s, invalid(s, e)
			}
			return AwaitingCapture{
				Target:      st.Target,
				AddressID:   st.Selected,
				OrderID:     ev.OrderID,
				ApprovalURL: ev.ApprovalURL,
			}, nil
		}

	case EnteringPin:
		switch ev := e.(type) {
		case PinRejected:
			st.Error = ev.Message
			return st, nil
		case PaymentSucceeded:
			return Resolved{Target: st.Target, Method: MethodWallet, Success: true, Message: ev.Message}, nil
		}

	case AwaitingCapture:
		switch ev := e.(type) {
		case PaymentSucceeded:
			return Resolved{Target: st.Target, Method: MethodPayPal, Success: true, Message: ev.Message}, nil
		case CaptureFailed:
			return Resolved{Target: st.Target, Method: MethodPayPal, Message: ev.Message}, nil
		}
	}

	return s, invalid(s, e)
}

func begin(ev Begin) (State, error) {
	if err := validateBegin(ev.Target, ev.Method); err != nil {
		return Idle{}, err
	}

	if len(ev.Addresses) == 0 {
		return Idle{}, apperrors.NewBusinessError(apperrors.ErrNoAddress, "Add a shipping address before paying")
	}

	if ev.Target.Kind == TargetPackage {
		return SelectingCourier{
			Target:    ev.Target,
			Method:    ev.Method,
			Options:   ev.Couriers,
			Addresses: ev.Addresses,
		}, nil
	}

	return selectingAddress(ev.Target, ev.Method, nil, ev.Addresses), nil
}

func selectingAddress(target Target, method Method, courier *models.CourierOption, addresses []models.Address) SelectingAddress {
	s := SelectingAddress{
		Target:    target,
		Method:    method,
		Courier:   courier,
		Addresses: addresses,
	}

	if def, ok := models.DefaultAddress(addresses); ok {
		s.Selected = def.ID
	}
	return s
}

func invalid(s State, e Event) error {
	return apperrors.NewBusinessError(
		apperrors.ErrInvalidTransition,
		fmt.Sprintf("cannot apply %T in state %s", e, s.Phase()),
	)
}

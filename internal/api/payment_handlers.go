package api

import (
	"net/http"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/payment"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
)

// PaymentView is the payment modal as the shell renders it
type PaymentView struct {
	Phase payment.Phase `json:"phase"`
	State payment.State `json:"state"`
}

func newPaymentView(st payment.State) PaymentView {
	return PaymentView{Phase: st.Phase(), State: st}
}

type startPaymentRequest struct {
	Kind   payment.TargetKind `json:"kind"`
	ID     models.ID          `json:"id"`
	Method payment.Method     `json:"method"`
}

func (s *Server) startPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req startPaymentRequest

	if err := decodeBody(r, &req); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	if !s.load(w, r, s.dash.Mailbox.Ensure) {
		return
	}

	var (
		st  payment.State
		err error
	)

	switch req.Kind {
	case payment.TargetPackage:
		st, err = s.dash.Mailbox.PayPackage(r.Context(), req.ID, req.Method)
	case payment.TargetConsolidation:
		st, err = s.dash.Mailbox.PayConsolidation(r.Context(), req.ID, req.Method)
	default:
		err = apperrors.NewValidationError("invalid payment target", map[string][]string{
			"kind": {"Choose a package or a consolidation."},
		})
	}

	s.respondWithPayment(w, st, err)
}

type chooseCourierRequest struct {
	CourierID models.ID `json:"courier_id"`
}

func (s *Server) chooseCourierHandler(w http.ResponseWriter, r *http.Request) {
	var req chooseCourierRequest

	if err := decodeBody(r, &req); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	st, err := s.flow.ChooseCourier(r.Context(), req.CourierID)
	s.respondWithPayment(w, st, err)
}

type paymentAddressRequest struct {
	AddressID models.ID `json:"address_id,omitempty"`
	Confirm   bool      `json:"confirm"`
}

// paymentAddressHandler picks an address, confirms the selection, or both
func (s *Server) paymentAddressHandler(w http.ResponseWriter, r *http.Request) {
	var req paymentAddressRequest

	if err := decodeBody(r, &req); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	st := s.flow.State()
	var err error

	if req.AddressID != "" {
		if st, err = s.flow.PickAddress(req.AddressID); err != nil {
			s.respondWithPayment(w, st, err)
			return
		}
	}

	if req.Confirm {
		st, err = s.flow.ConfirmAddress(r.Context())
	}

	s.respondWithPayment(w, st, err)
}

type submitPinRequest struct {
	PIN string `json:"pin"`
}

func (s *Server) submitPinHandler(w http.ResponseWriter, r *http.Request) {
	var req submitPinRequest

	if err := decodeBody(r, &req); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	st, err := s.flow.SubmitPin(r.Context(), req.PIN)
	s.respondWithPayment(w, st, err)
}

func (s *Server) closePaymentHandler(w http.ResponseWriter, r *http.Request) {
	s.flow.Close()
	s.respondWithData(w, http.StatusOK, newPaymentView(s.flow.State()))
}

func (s *Server) paymentStateHandler(w http.ResponseWriter, r *http.Request) {
	s.respondWithData(w, http.StatusOK, newPaymentView(s.flow.State()))
}

// paymentSuccessHandler is where PayPal sends the user back. PayPal names the
// order "token" in the return URL.
func (s *Server) paymentSuccessHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID := q.Get("order_id")
	if orderID == "" {
		orderID = q.Get("token")
	}

	resolved, err := s.dash.PaymentSuccess.Complete(r.Context(), orderID)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithData(w, http.StatusOK, newPaymentView(resolved))
}

// respondWithPayment answers with the flow state. A rejected step still
// carries the state the modal stays in.
func (s *Server) respondWithPayment(w http.ResponseWriter, st payment.State, err error) {
	if err == nil {
		s.respondWithData(w, http.StatusOK, newPaymentView(st))
		return
	}

	status := statusFor(err)
	if st == nil || status >= http.StatusInternalServerError {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, status, ApiResponse{
		Success: false,
		Data:    newPaymentView(st),
		Error:   err.Error(),
		Fields:  apperrors.FieldErrors(err),
	})
}

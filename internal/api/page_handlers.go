package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vaidashi/getmethis-dashboard/internal/apiclient"
	"github.com/vaidashi/getmethis-dashboard/internal/models"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
)

// load runs a page refresh. Failed loads have already been reported to the
// user and left the page on its empty value, so only an expired session or a
// caller that went away stops the page from rendering.
func (s *Server) load(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) error) bool {
	err := fn(r.Context())

	// An expired session resets every page, which discards the loads that
	// were still running
	if isPrivate(r) && !s.sessions.LoggedIn() {
		s.respondWithAppError(w, apperrors.NewSessionExpiredError(apiclient.MsgSessionExpired))
		return false
	}

	switch {
	case err == nil:
		return true
	case errors.Is(err, apperrors.ErrSessionExpired), apperrors.IsCancelled(err), r.Context().Err() != nil:
		s.respondWithAppError(w, err)
		return false
	default:
		s.logger.Debug("Rendering page after failed load", "path", r.URL.Path, "error", err)
		return true
	}
}

func (s *Server) mailboxHandler(w http.ResponseWriter, r *http.Request) {
	if !s.load(w, r, s.dash.Mailbox.Refresh) {
		return
	}
	s.respondWithData(w, http.StatusOK, s.dash.Mailbox.View())
}

type selectionRequest struct {
	PackageIDs []models.ID `json:"package_ids"`
	Notes      string      `json:"notes,omitempty"`
}

func (s *Server) selectPackagesHandler(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest

	if err := decodeBody(r, &req); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	if !s.load(w, r, s.dash.Mailbox.Ensure) {
		return
	}

	s.dash.Mailbox.Select(req.PackageIDs...)
	s.respondWithData(w, http.StatusOK, s.dash.Mailbox.View())
}

func (s *Server) consolidateHandler(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest

	if err := decodeBody(r, &req); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	if !s.load(w, r, s.dash.Mailbox.Ensure) {
		return
	}

	if len(req.PackageIDs) > 0 {
		s.dash.Mailbox.Select(req.PackageIDs...)
	}

	created, err := s.dash.Mailbox.Consolidate(r.Context(), req.Notes)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithData(w, http.StatusCreated, created)
}

func (s *Server) accountHandler(w http.ResponseWriter, r *http.Request) {
	if !s.load(w, r, s.dash.MyAccount.Refresh) {
		return
	}
	s.respondWithData(w, http.StatusOK, s.dash.MyAccount.View())
}

func (s *Server) topupHandler(w http.ResponseWriter, r *http.Request) {
	var req models.TopupRequest

	if err := decodeBody(r, &req); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	result, err := s.dash.MyAccount.Topup(r.Context(), req.Amount)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithData(w, http.StatusOK, result)
}

func (s *Server) complianceHandler(w http.ResponseWriter, r *http.Request) {
	if !s.load(w, r, s.dash.Compliance.Ensure) {
		return
	}

	q := r.URL.Query()
	s.respondWithData(w, http.StatusOK, s.dash.Compliance.View(q.Get("search"), q.Get("category")))
}

func (s *Server) addressesHandler(w http.ResponseWriter, r *http.Request) {
	if !s.load(w, r, s.dash.AddressBook.Refresh) {
		return
	}
	s.respondWithData(w, http.StatusOK, s.dash.AddressBook.View())
}

func (s *Server) createAddressHandler(w http.ResponseWriter, r *http.Request) {
	var addr models.Address

	if err := decodeBody(r, &addr); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	created, err := s.dash.AddressBook.Create(r.Context(), addr)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithData(w, http.StatusCreated, created)
}

func (s *Server) updateAddressHandler(w http.ResponseWriter, r *http.Request) {
	var addr models.Address

	if err := decodeBody(r, &addr); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	updated, err := s.dash.AddressBook.Update(r.Context(), models.ID(mux.Vars(r)["id"]), addr)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithData(w, http.StatusOK, updated)
}

func (s *Server) deleteAddressHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.AddressBook.Delete(r.Context(), models.ID(mux.Vars(r)["id"])); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithData(w, http.StatusOK, nil)
}

func (s *Server) shipmentsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.load(w, r, s.dash.Shipments.Refresh) {
		return
	}
	s.respondWithData(w, http.StatusOK, s.dash.Shipments.View(r.URL.Query().Get("status")))
}

func (s *Server) shipmentHandler(w http.ResponseWriter, r *http.Request) {
	shipment, err := s.dash.Shipments.Detail(r.Context(), models.ID(mux.Vars(r)["id"]))

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithData(w, http.StatusOK, shipment)
}

func (s *Server) invoicesHandler(w http.ResponseWriter, r *http.Request) {
	n, err := pageParam(r)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	refresh := s.dash.Billing.Refresh
	if n > 0 {
		refresh = func(ctx context.Context) error { return s.dash.Billing.InvoicesPage(ctx, n) }
	}

	if !s.load(w, r, refresh) {
		return
	}
	s.respondWithData(w, http.StatusOK, s.dash.Billing.View())
}

func (s *Server) trendingHandler(w http.ResponseWriter, r *http.Request) {
	if !s.load(w, r, s.dash.Trending.Ensure) {
		return
	}
	s.respondWithData(w, http.StatusOK, s.dash.Trending.View())
}

func (s *Server) couriersHandler(w http.ResponseWriter, r *http.Request) {
	if !s.load(w, r, s.dash.ChooseCarrier.Ensure) {
		return
	}
	s.respondWithData(w, http.StatusOK, s.dash.ChooseCarrier.View())
}

func (s *Server) calculatorHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RateRequest

	if err := decodeBody(r, &req); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	if _, err := s.dash.ShippingCalculator.Calculate(r.Context(), req); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithData(w, http.StatusOK, s.dash.ShippingCalculator.View())
}

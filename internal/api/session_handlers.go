package api

import (
	"context"
	"net/http"
	"time"

	"github.com/vaidashi/getmethis-dashboard/internal/auth"
	"github.com/vaidashi/getmethis-dashboard/internal/models"
)

// SessionView is what the navigation bar renders
type SessionView struct {
	LoggedIn    bool       `json:"logged_in"`
	Name        string     `json:"name,omitempty"`
	Email       string     `json:"email,omitempty"`
	SuiteNumber string     `json:"suite_number,omitempty"`
	IsAdmin     bool       `json:"is_admin"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	current := s.sessions.Current()

	view := SessionView{LoggedIn: current.LoggedIn()}

	if view.LoggedIn {
		view.Name = current.DisplayName()
		view.Email = current.Email
		view.SuiteNumber = current.SuiteNumber
		view.IsAdmin = current.IsAdmin

		// Opaque tokens carry no expiry, which is fine
		if claims, err := s.sessions.Claims(); err == nil {
			view.ExpiresAt = claims.ExpiresAt
		}
	}

	s.respondWithData(w, http.StatusOK, view)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, s.auth.Login)
}

func (s *Server) adminLoginHandler(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, s.auth.AdminLogin)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, email, password string) (auth.Navigation, error)) {
	var req models.LoginRequest

	if err := decodeBody(r, &req); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	nav, err := fn(r.Context(), req.Email, req.Password)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithData(w, http.StatusOK, nav)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	nav, err := s.auth.Logout(r.Context())

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithData(w, http.StatusOK, nav)
}

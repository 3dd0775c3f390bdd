// Package auth logs users in and out. Both operations go through the session
// store, whose subscription is the single broadcast every view listens to.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

const (
	LoginRedirectDelay  = time.Second
	LogoutRedirectDelay = 500 * time.Millisecond
)

// Navigation tells the shell where to go once an action completes
type Navigation struct {
	To         string        `json:"to"`
	Delay      time.Duration `json:"delay"`
	FullReload bool          `json:"full_reload"`
}

// Authenticator is the login API
type Authenticator interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	AdminLogin(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
}

// SessionStore persists and clears the session
type SessionStore interface {
	Save(ctx context.Context, sess models.Session) error
	Clear(ctx context.Context) error
}

// Service implements login and logout
type Service struct {
	api      Authenticator
	sessions SessionStore
	notifier notify.Notifier
	logger   logger.Logger
}

// NewService creates an auth service
func NewService(api Authenticator, sessions SessionStore, notifier notify.Notifier, logger logger.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Service{
		api:      api,
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
	}
}

// Login authenticates a customer and persists the session
func (s *Service) Login(ctx context.Context, email, password string) (Navigation, error) {
	return s.login(ctx, email, password, false)
}

// AdminLogin authenticates a staff user and persists the session
func (s *Service) AdminLogin(ctx context.Context, email, password string) (Navigation, error) {
	return s.login(ctx, email, password, true)
}

// Logout wipes all persisted state and broadcasts the change
func (s *Service) Logout(ctx context.Context) (Navigation, error) {
	if err := s.sessions.Clear(ctx); err != nil {
		s.logger.Error("Failed to clear session", "error", err)
		return Navigation{}, apperrors.NewInternalError("failed to log out")
	}

	s.logger.Info("User logged out")
	s.notifier.Notify(ctx, notify.New(notify.LevelInfo, notify.CodeAuth, "You have been logged out"))

	return Navigation{To: "/login", Delay: LogoutRedirectDelay, FullReload: true}, nil
}

func (s *Service) login(ctx context.Context, email, password string, admin bool) (Navigation, error) {
	req := models.LoginRequest{Email: strings.TrimSpace(email), Password: password}

	if fields := validate(req); len(fields) > 0 {
		return Navigation{}, apperrors.NewValidationError("email and password are required", fields)
	}

	call := s.api.Login
	if admin {
		call = s.api.AdminLogin
	}

	resp, err := call(ctx, req)
	if err != nil {
		s.logger.Warn("Login failed", "email", req.Email, "admin", admin, "error", err)
		return Navigation{}, err
	}

	sess := resp.Session(admin)
	if !sess.LoggedIn() {
		return Navigation{}, apperrors.NewInternalError("login response did not include an access token")
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		s.logger.Error("Failed to persist session", "error", err)
		return Navigation{}, apperrors.NewInternalError("failed to persist session")
	}

	s.logger.Info("User logged in", "userID", sess.UserID, "admin", sess.IsAdmin)
	s.notifier.Notify(ctx, notify.New(notify.LevelSuccess, notify.CodeAuth, "Login successful"))

	return Navigation{To: "/", Delay: LoginRedirectDelay}, nil
}

func validate(req models.LoginRequest) map[string][]string {
	fields := make(map[string][]string)

	if req.Email == "" {
		fields["email"] = []string{"This field is required."}
	}
	if req.Password == "" {
		fields["password"] = []string{"This field is required."}
	}
	return fields
}

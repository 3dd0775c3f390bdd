// Package session holds the persisted authentication state behind a typed,
// observable store. Every component reads the session through Store and
// learns about logins, logouts and expiries through one subscription.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/storage"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

// Reason explains why the session changed
type Reason string

const (
	ReasonLogin    Reason = "login"
	ReasonLogout   Reason = "logout"
	ReasonExpired  Reason = "expired"
	ReasonExternal Reason = "external"
)

// Change is delivered to subscribers
type Change struct {
	Session    models.Session
	Reason     Reason
	Generation uint64
}

// LoggedIn is a shortcut for Change.Session.LoggedIn()
func (c Change) LoggedIn() bool {
	return c.Session.LoggedIn()
}

// Store is the observable session store
type Store struct {
	storage storage.Storage
	logger  logger.Logger

	mu         sync.Mutex
	current    models.Session
	generation uint64

	subsMu  sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

var sessionKeys = []string{
	storage.KeyAccessToken,
	storage.KeyRefreshToken,
	storage.KeyUserID,
	storage.KeyEmail,
	storage.KeyFirstName,
	storage.KeyLastName,
	storage.KeySuiteNumber,
	storage.KeyIsAdmin,
}

// wipeKeys are removed when the storage cannot be cleared at once. The access
// token goes first.
var wipeKeys = append(append([]string{}, sessionKeys...),
	storage.KeyPayPalOrderID,
	storage.KeyPayPalTargetKind,
	storage.KeyPayPalTargetID,
)

// NewStore creates a store and loads any session already persisted in s
func NewStore(ctx context.Context, s storage.Storage, logger logger.Logger) (*Store, error) {
	st := &Store{
		storage: s,
		logger:  logger,
		subs:    make(map[int]func(Change)),
	}

	sess, err := st.read(ctx)

	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	st.current = sess
	return st, nil
}

// Storage exposes the underlying persisted storage
func (s *Store) Storage() storage.Storage {
	return s.storage
}

// Current returns a copy of the current session
func (s *Store) Current() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// LoggedIn reports whether an access token is present
func (s *Store) LoggedIn() bool {
	return s.Current().LoggedIn()
}

// Generation identifies the current session; it changes on every login,
// logout, expiry or external change
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generation
}

// Token returns the access token together with the generation it belongs to
func (s *Store) Token() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.AccessToken, s.generation
}

// Save persists sess and broadcasts a login
func (s *Store) Save(ctx context.Context, sess models.Session) error {
	s.mu.Lock()

	if err := s.write(ctx, sess); err != nil {
		s.mu.Unlock()
		return err
	}

	s.current = sess
	s.generation++
	change := Change{Session: sess, Reason: ReasonLogin, Generation: s.generation}
	s.mu.Unlock()

	s.logger.Info("Session saved", "userID", sess.UserID, "generation", change.Generation)
	s.publish(change)
	return nil
}

// Clear wipes the whole persisted storage, not only the session keys, and
// broadcasts a logout
func (s *Store) Clear(ctx context.Context) error {
	return s.clear(ctx, ReasonLogout)
}

// Expire clears the session only if gen is still the current generation and a
// session exists. It reports whether it cleared anything, so concurrent
// requests failing with 401 for the same session expire it exactly once.
func (s *Store) Expire(ctx context.Context, gen uint64) bool {
	s.mu.Lock()

	if gen != s.generation || !s.current.LoggedIn() {
		s.mu.Unlock()
		return false
	}

	// The wipe outlives the request that hit the 401
	s.wipe(context.WithoutCancel(ctx))

	s.current = models.Session{}
	s.generation++
	change := Change{Reason: ReasonExpired, Generation: s.generation}
	s.mu.Unlock()

	s.logger.Warn("Session expired", "generation", change.Generation)
	s.publish(change)
	return true
}

// Reload re-reads the persisted session, picking up changes made by another
// instance sharing the same storage. Subscribers are only notified when the
// session actually changed.
func (s *Store) Reload(ctx context.Context) error {
	sess, err := s.read(ctx)

	if err != nil {
		return fmt.Errorf("reload session: %w", err)
	}

	s.mu.Lock()

	if sess == s.current {
		s.mu.Unlock()
		return nil
	}

	s.current = sess
	s.generation++
	change := Change{Session: sess, Reason: ReasonExternal, Generation: s.generation}
	s.mu.Unlock()

	s.logger.Info("Session changed externally", "loggedIn", sess.LoggedIn(), "generation", change.Generation)
	s.publish(change)
	return nil
}

// Subscribe registers fn for every session change and returns a function that
// removes it
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			delete(s.subs, id)
		})
	}
}

func (s *Store) clear(ctx context.Context, reason Reason) error {
	s.mu.Lock()

	if err := s.storage.Clear(ctx); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("clear storage: %w", err)
	}

	s.current = models.Session{}
	s.generation++
	change := Change{Reason: reason, Generation: s.generation}
	s.mu.Unlock()

	s.logger.Info("Session cleared", "reason", reason, "generation", change.Generation)
	s.publish(change)
	return nil
}

// wipe clears the storage. If that fails the session keys are removed one by
// one so a dead token is never reloaded.
func (s *Store) wipe(ctx context.Context) {
	err := s.storage.Clear(ctx)

	if err == nil {
		return
	}

	s.logger.Error("Failed to wipe storage on session expiry, removing session keys", "error", err)

	var errs []error
	for _, key := range wipeKeys {
		if err := s.storage.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Failed to remove session keys", "error", err)
	}
}

func (s *Store) publish(change Change) {
	s.subsMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

func (s *Store) read(ctx context.Context) (models.Session, error) {
	values := make(map[string]string, len(sessionKeys))

	for _, key := range sessionKeys {
		v, err := storage.GetOrEmpty(ctx, s.storage, key)
		if err != nil {
			return models.Session{}, err
		}
		values[key] = v
	}

	isAdmin, _ := strconv.ParseBool(values[storage.KeyIsAdmin])

	return models.Session{
		AccessToken:  values[storage.KeyAccessToken],
		RefreshToken: values[storage.KeyRefreshToken],
		UserID:       models.ID(values[storage.KeyUserID]),
		Email:        values[storage.KeyEmail],
		FirstName:    values[storage.KeyFirstName],
		LastName:     values[storage.KeyLastName],
		SuiteNumber:  values[storage.KeySuiteNumber],
		IsAdmin:      isAdmin,
	}, nil
}

func (s *Store) write(ctx context.Context, sess models.Session) error {
	values := map[string]string{
		storage.KeyAccessToken:  sess.AccessToken,
		storage.KeyRefreshToken: sess.RefreshToken,
		storage.KeyUserID:       sess.UserID.String(),
		storage.KeyEmail:        sess.Email,
		storage.KeyFirstName:    sess.FirstName,
		storage.KeyLastName:     sess.LastName,
		storage.KeySuiteNumber:  sess.SuiteNumber,
		storage.KeyIsAdmin:      strconv.FormatBool(sess.IsAdmin),
	}

	for _, key := range sessionKeys {
		if err := s.storage.Set(ctx, key, values[key]); err != nil {
			return fmt.Errorf("persist %s: %w", key, err)
		}
	}

	return nil
}

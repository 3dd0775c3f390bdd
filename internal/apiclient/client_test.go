package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	"github.com/vaidashi/getmethis-dashboard/internal/session"
	"github.com/vaidashi/getmethis-dashboard/internal/storage"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

type fixture struct {
	server   *httptest.Server
	router   *mux.Router
	store    *session.Store
	storage  *storage.Memory
	recorder *notify.Recorder
	client   *Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	router := mux.NewRouter()
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	mem := storage.NewMemory()
	store, err := session.NewStore(context.Background(), mem, logger.NewNopLogger())
	require.NoError(t, err)

	recorder := notify.NewRecorder()

	return &fixture{
		server:   server,
		router:   router,
		store:    store,
		storage:  mem,
		recorder: recorder,
		client:   NewClient(server.URL, 5*time.Second, store, recorder, logger.NewNopLogger()),
	}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), models.Session{AccessToken: "tok", UserID: "7"}))
}

func TestDoSendsHeadersAndDecodes(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	var got http.Header
	f.router.HandleFunc("/api/v1/users/profile/", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 7, "email": "ada@example.com"}`))
	}).Methods(http.MethodGet)

	var user models.User
	require.NoError(t, f.client.Get(context.Background(), "/api/v1/users/profile/", &user))

	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
	assert.Equal(t, models.ID("7"), user.ID)
	assert.Empty(t, f.recorder.All())
}

func TestDoWithoutSessionSendsNoAuthorization(t *testing.T) {
	f := newFixture(t)

	var auth string
	f.router.HandleFunc("/api/v1/deals/trending/", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})

	require.NoError(t, f.client.Get(context.Background(), "/api/v1/deals/trending/", nil))
	assert.Empty(t, auth)
}

func TestPostEncodesBody(t *testing.T) {
	f := newFixture(t)

	var body map[string]interface{}
	f.router.HandleFunc("/api/v1/users/login/", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"access": "a", "refresh": "r"}`))
	}).Methods(http.MethodPost)

	var resp models.LoginResponse
	require.NoError(t, f.client.Post(context.Background(), "/api/v1/users/login/", models.LoginRequest{Email: "a@b.c", Password: "pw"}, &resp))

	assert.Equal(t, "a@b.c", body["email"])
	assert.Equal(t, "a", resp.Access)
}

func TestUnauthorizedWipesSessionOnce(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	require.NoError(t, f.storage.Set(context.Background(), storage.KeyPayPalOrderID, "ORDER-1"))

	release := make(chan struct{})
	f.router.HandleFunc("/api/v1/payments/wallet/", func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "Token is invalid or expired"}`))
	})

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	var started sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			errs[i] = f.client.Get(context.Background(), "/api/v1/payments/wallet/", nil)
		}(i)
	}
	started.Wait()
	// let every request attach the same token before any 401 lands
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
	}
	assert.Equal(t, 1, f.recorder.Count(notify.CodeSessionExpired))
	assert.False(t, f.store.LoggedIn())

	keys, err := f.storage.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestUnauthorizedWithoutSessionDoesNotNotify(t *testing.T) {
	f := newFixture(t)

	f.router.HandleFunc("/api/v1/users/login/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "No active account found with the given credentials"}`))
	})

	err := f.client.Post(context.Background(), "/api/v1/users/login/", models.LoginRequest{}, nil)

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, "No active account found with the given credentials", err.Error())
	assert.Empty(t, f.recorder.All())
}

func TestServerErrorNotifies(t *testing.T) {
	f := newFixture(t)

	f.router.HandleFunc("/api/v1/warehouse/packages/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := f.client.Get(context.Background(), "/api/v1/warehouse/packages/", nil)

	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.Equal(t, 1, f.recorder.Count(notify.CodeServerError))
}

func TestValidationErrorKeepsFieldsAndStaysQuiet(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.router.HandleFunc("/api/v1/users/address-book/{id}/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"postal_code": ["Enter a valid postal code."], "city": ["This field is required."]}`))
	}).Methods(http.MethodPut)

	err := f.client.Put(context.Background(), "/api/v1/users/address-book/3/", models.Address{}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, []string{"Enter a valid postal code."}, apperrors.FieldErrors(err)["postal_code"])
	assert.Empty(t, f.recorder.All())
	assert.True(t, f.store.LoggedIn())
}

func TestCancelledRequest(t *testing.T) {
	f := newFixture(t)

	block := make(chan struct{})
	defer close(block)
	f.router.HandleFunc("/api/v1/compliance/prohibited-items/", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := f.client.Get(ctx, "/api/v1/compliance/prohibited-items/", nil)

	assert.True(t, apperrors.IsCancelled(err))
	assert.Empty(t, f.recorder.All())
}

func TestEveryCallIsFireOnce(t *testing.T) {
	f := newFixture(t)

	calls := 0
	f.router.HandleFunc("/api/v1/shipping/shipments/", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := f.client.Get(context.Background(), "/api/v1/shipping/shipments/", nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, f.recorder.Count(notify.CodeServerError))
}

type slowFailingPublisher struct{}

func (slowFailingPublisher) SendMessage(ctx context.Context, topic, key string, value []byte) error {
	select {
	case <-time.After(300 * time.Millisecond):
	case <-ctx.Done():
	}
	return errors.New("broker down")
}

func TestServerErrorReturnsPromptlyWithSlowRelay(t *testing.T) {
	f := newFixture(t)

	relay := notify.NewKafkaNotifier(slowFailingPublisher{}, "dashboard.notifications", "test", logger.NewNopLogger())
	relay.Start()
	t.Cleanup(relay.Stop)
	f.client = NewClient(f.server.URL, 5*time.Second, f.store, notify.Multi{f.recorder, relay}, logger.NewNopLogger())

	f.router.HandleFunc("/api/v1/warehouse/packages/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	start := time.Now()
	err := f.client.Get(context.Background(), "/api/v1/warehouse/packages/", nil)

	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, 1, f.recorder.Count(notify.CodeServerError))
}

func TestQuietServerErrorsSkipsNotification(t *testing.T) {
	f := newFixture(t)

	f.router.HandleFunc("/api/v1/shipping/calculate-rates/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := f.client.Post(QuietServerErrors(context.Background()), "/api/v1/shipping/calculate-rates/", nil, nil)

	require.Error(t, err)
	status, ok := apperrors.ResponseStatus(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Empty(t, f.recorder.All())
}

func TestAnonymousRequestKeepsStoredSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	var auth string
	f.router.HandleFunc("/api/v1/users/login/", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "No active account found with the given credentials"}`))
	})

	err := f.client.Post(Anonymous(context.Background()), "/api/v1/users/login/", models.LoginRequest{}, nil)

	assert.Empty(t, auth)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.NotErrorIs(t, err, apperrors.ErrSessionExpired)
	assert.True(t, f.store.LoggedIn())
	assert.Empty(t, f.recorder.All())
}

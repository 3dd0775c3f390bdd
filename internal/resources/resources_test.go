package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/getmethis-dashboard/internal/apiclient"
	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	"github.com/vaidashi/getmethis-dashboard/internal/session"
	"github.com/vaidashi/getmethis-dashboard/internal/storage"
	apperrors "github.com/vaidashi/getmethis-dashboard/pkg/errors"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

func newTestSet(t *testing.T, router *mux.Router) (*Set, *notify.Recorder, *session.Store) {
	t.Helper()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	store, err := session.NewStore(context.Background(), storage.NewMemory(), logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), models.Session{AccessToken: "tok"}))

	recorder := notify.NewRecorder()
	client := apiclient.NewClient(server.URL, 5*time.Second, store, recorder, logger.NewNopLogger())

	return NewSet(client), recorder, store
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestCalculateRatesFallsBack(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/shipping/calculate-rates/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/shipping/cost-calculator/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.RateQuote{{Carrier: "DHL", Price: 42.5}})
	}).Methods(http.MethodPost)

	set, _, _ := newTestSet(t, router)

	quotes, err := set.Shipping.CalculateRates(context.Background(), models.RateRequest{Weight: 2})

	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "DHL", quotes[0].Carrier)
}

func TestCalculateRatesDoesNotFallBackOnExpiredSession(t *testing.T) {
	fallbackCalls := 0
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/shipping/calculate-rates/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	router.HandleFunc("/api/v1/shipping/cost-calculator/", func(w http.ResponseWriter, r *http.Request) {
		fallbackCalls++
		writeJSON(w, http.StatusOK, []models.RateQuote{})
	})

	set, recorder, store := newTestSet(t, router)

	_, err := set.Shipping.CalculateRates(context.Background(), models.RateRequest{})

	assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
	assert.Equal(t, 0, fallbackCalls)
	assert.Equal(t, 1, recorder.Count(notify.CodeSessionExpired))
	assert.False(t, store.LoggedIn())
}

func TestConsolidateNeedsTwoPackages(t *testing.T) {
	called := false
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/shipping/consolidate/", func(w http.ResponseWriter, r *http.Request) {
		called = true
		var req models.ConsolidateRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusCreated, models.Consolidation{ID: "9", Packages: make([]models.Package, len(req.PackageIDs))})
	}).Methods(http.MethodPost)

	set, _, _ := newTestSet(t, router)

	_, err := set.Shipping.Consolidate(context.Background(), []models.ID{"1"}, "")
	assert.ErrorIs(t, err, apperrors.ErrTooFewPackages)
	assert.False(t, called)

	c, err := set.Shipping.Consolidate(context.Background(), []models.ID{"1", "2"}, "fragile")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Len(t, c.Packages, 2)
}

func TestSelectCourierReturnsTotalDue(t *testing.T) {
	var body map[string]interface{}
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/warehouse/packages/{id}/select-courier/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12", mux.Vars(r)["id"])
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"total_due": "31.75"}`))
	}).Methods(http.MethodPost)

	set, _, _ := newTestSet(t, router)

	resp, err := set.Warehouse.SelectCourier(context.Background(), "12", "3")

	require.NoError(t, err)
	assert.Equal(t, models.Amount(31.75), resp.TotalDue)
	assert.Equal(t, float64(3), body["courier_id"])
}

func TestTransactionsPagination(t *testing.T) {
	var pages []string
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/payments/wallet/transactions/", func(w http.ResponseWriter, r *http.Request) {
		pages = append(pages, r.URL.Query().Get("page"))
		w.Write([]byte(`{"count": 1, "next": null, "previous": null, "results": [{"id": 1, "type": "credit", "status": "completed", "amount": "10.00", "timestamp": "2024-03-01T10:00:00Z"}]}`))
	})

	set, _, _ := newTestSet(t, router)

	first, err := set.Payments.Transactions(context.Background(), 1)
	require.NoError(t, err)
	_, err = set.Payments.Transactions(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "3"}, pages)
	assert.False(t, first.HasNext())
	assert.Equal(t, models.Amount(10), first.Results[0].Amount)
}

func TestListsAcceptWrappedShapes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/compliance/prohibited-items/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"id": 1, "name": "Knife", "category": "Weapons"}]}`))
	})
	router.HandleFunc("/api/v1/deals/trending/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [{"id": 5, "title": "Headphones", "price": 50, "original_price": 100}]}`))
	})

	set, _, _ := newTestSet(t, router)

	items, err := set.Compliance.ProhibitedItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Knife", items[0].Name)

	deals, err := set.Deals.Trending(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, 50, deals[0].DiscountPercent())
}

func TestAddressBookCRUDPaths(t *testing.T) {
	var seen []string
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/users/address-book/", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" list")
		writeJSON(w, http.StatusOK, []models.Address{{ID: "1", IsDefault: true}})
	})
	router.HandleFunc("/api/v1/users/address-book/{id}/", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+mux.Vars(r)["id"])
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, models.Address{ID: "1"})
	})

	set, _, _ := newTestSet(t, router)
	ctx := context.Background()

	_, err := set.AddressBook.List(ctx)
	require.NoError(t, err)
	_, err = set.AddressBook.Update(ctx, "1", models.Address{City: "Lagos"})
	require.NoError(t, err)
	require.NoError(t, set.AddressBook.Delete(ctx, "1"))

	assert.Equal(t, []string{"GET list", "PUT 1", "DELETE 1"}, seen)
}

func TestCalculateRatesFallbackAfterServerErrorRaisesNoToast(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/shipping/calculate-rates/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/shipping/cost-calculator/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.RateQuote{{Carrier: "UPS", Price: 30}})
	}).Methods(http.MethodPost)

	set, recorder, _ := newTestSet(t, router)

	quotes, err := set.Shipping.CalculateRates(context.Background(), models.RateRequest{Weight: 1})

	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Empty(t, recorder.All())
}

func TestCalculateRatesFallbackServerErrorIsReported(t *testing.T) {
	router := mux.NewRouter()
	for _, p := range []string{"/api/v1/shipping/calculate-rates/", "/api/v1/shipping/cost-calculator/"} {
		router.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}

	set, recorder, _ := newTestSet(t, router)

	_, err := set.Shipping.CalculateRates(context.Background(), models.RateRequest{})

	require.Error(t, err)
	assert.Equal(t, 1, recorder.Count(notify.CodeServerError))
}

func TestLoginWithStoredSessionIsACredentialsError(t *testing.T) {
	var auth string
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/users/login/", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
	}).Methods(http.MethodPost)

	set, recorder, store := newTestSet(t, router)

	_, err := set.Auth.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "wrong"})

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Empty(t, auth)
	assert.True(t, store.LoggedIn())
	assert.Zero(t, recorder.Count(notify.CodeSessionExpired))
}

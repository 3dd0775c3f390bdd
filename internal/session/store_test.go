package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/getmethis-dashboard/internal/models"
	"github.com/vaidashi/getmethis-dashboard/internal/storage"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

func testSession() models.Session {
	return models.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		UserID:       "42",
		Email:        "ada@example.com",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		SuiteNumber:  "GMT-0042",
	}
}

func newTestStore(t *testing.T, s storage.Storage) *Store {
	t.Helper()
	st, err := NewStore(context.Background(), s, logger.NewNopLogger())
	require.NoError(t, err)
	return st
}

func TestStoreLoadsPersistedSession(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	require.NoError(t, mem.Set(ctx, storage.KeyAccessToken, "tok"))
	require.NoError(t, mem.Set(ctx, storage.KeyIsAdmin, "true"))

	st := newTestStore(t, mem)

	assert.True(t, st.LoggedIn())
	assert.True(t, st.Current().IsAdmin)
}

func TestSaveNotifiesSubscribers(t *testing.T) {
	st := newTestStore(t, storage.NewMemory())

	var got []Change
	unsubscribe := st.Subscribe(func(c Change) { got = append(got, c) })

	require.NoError(t, st.Save(context.Background(), testSession()))
	require.Len(t, got, 1)
	assert.Equal(t, ReasonLogin, got[0].Reason)
	assert.True(t, got[0].LoggedIn())

	unsubscribe()
	require.NoError(t, st.Clear(context.Background()))
	assert.Len(t, got, 1)
}

func TestClearWipesEverything(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	st := newTestStore(t, mem)

	require.NoError(t, st.Save(ctx, testSession()))
	require.NoError(t, mem.Set(ctx, storage.KeyPayPalOrderID, "ORDER-1"))
	require.NoError(t, st.Clear(ctx))

	keys, err := mem.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.False(t, st.LoggedIn())
}

func TestExpireOncePerSession(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, storage.NewMemory())
	require.NoError(t, st.Save(ctx, testSession()))

	_, gen := st.Token()

	var expired int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if st.Expire(ctx, gen) {
				atomic.AddInt32(&expired, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), expired)
	assert.False(t, st.LoggedIn())
}

func TestExpireIgnoresStaleGeneration(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, storage.NewMemory())
	require.NoError(t, st.Save(ctx, testSession()))
	_, stale := st.Token()

	// user logged in again before the old 401 arrived
	require.NoError(t, st.Save(ctx, testSession()))

	assert.False(t, st.Expire(ctx, stale))
	assert.True(t, st.LoggedIn())
}

func TestExpireWithoutSession(t *testing.T) {
	st := newTestStore(t, storage.NewMemory())
	assert.False(t, st.Expire(context.Background(), st.Generation()))
}

func TestReloadOnlyNotifiesOnChange(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	st := newTestStore(t, mem)

	calls := 0
	st.Subscribe(func(Change) { calls++ })

	require.NoError(t, st.Reload(ctx))
	assert.Equal(t, 0, calls)

	require.NoError(t, mem.Set(ctx, storage.KeyAccessToken, "from-elsewhere"))
	require.NoError(t, st.Reload(ctx))
	assert.Equal(t, 1, calls)
	assert.True(t, st.LoggedIn())
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     "ada",
		"user_id": 42,
		"exp":     exp,
	}).SignedString([]byte("not-our-secret"))
	require.NoError(t, err)

	c, err := ParseClaims(token)
	require.NoError(t, err)

	assert.Equal(t, "ada", c.Subject)
	assert.Equal(t, "42", c.UserID)
	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, exp, c.ExpiresAt.Unix())
	assert.False(t, c.Expired(time.Now()))
}

func TestParseClaimsRejectsGarbage(t *testing.T) {
	_, err := ParseClaims("not-a-token")
	assert.Error(t, err)
}

type capturePublisher struct {
	mu   sync.Mutex
	sent [][]byte
}

func (c *capturePublisher) SendMessage(ctx context.Context, topic, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, value)
	return nil
}

func TestBridgePublishesLocalChanges(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, storage.NewMemory())
	pub := &capturePublisher{}

	b := NewBridge(st, pub, "dashboard.session", logger.NewNopLogger())
	b.Start()

	require.NoError(t, st.Save(ctx, testSession()))
	require.NoError(t, st.Clear(ctx))
	b.Stop()

	require.Len(t, pub.sent, 2)

	var ev AuthEvent
	require.NoError(t, json.Unmarshal(pub.sent[1], &ev))
	assert.Equal(t, EventAuthChanged, ev.Type)
	assert.Equal(t, ReasonLogout, ev.Reason)
	assert.False(t, ev.LoggedIn)
	assert.Equal(t, b.InstanceID(), ev.InstanceID)
}

func TestBridgeReloadsOnRemoteEvent(t *testing.T) {
	ctx := context.Background()
	shared := storage.NewMemory()

	local := newTestStore(t, shared)
	pub := &capturePublisher{}
	b := NewBridge(local, pub, "dashboard.session", logger.NewNopLogger())
	b.Start()
	defer b.Stop()

	// another instance logs in against the same storage
	remote := newTestStore(t, shared)
	require.NoError(t, remote.Save(ctx, testSession()))

	payload, err := json.Marshal(AuthEvent{Type: EventAuthChanged, InstanceID: "other", Reason: ReasonLogin, LoggedIn: true})
	require.NoError(t, err)

	require.NoError(t, b.HandleMessage(ctx, "dashboard.session", nil, payload))
	assert.True(t, local.LoggedIn())
	// external changes are not echoed
	assert.Empty(t, pub.sent)
}

func TestBridgeIgnoresOwnEvents(t *testing.T) {
	ctx := context.Background()
	shared := storage.NewMemory()
	local := newTestStore(t, shared)
	b := NewBridge(local, &capturePublisher{}, "t", logger.NewNopLogger())

	require.NoError(t, shared.Set(ctx, storage.KeyAccessToken, "tok"))

	payload, err := json.Marshal(AuthEvent{Type: EventAuthChanged, InstanceID: b.InstanceID()})
	require.NoError(t, err)

	require.NoError(t, b.HandleMessage(ctx, "t", nil, payload))
	assert.False(t, local.LoggedIn())
}

type blockingPublisher struct {
	release chan struct{}
	sent    int32
}

func (p *blockingPublisher) SendMessage(ctx context.Context, topic, key string, value []byte) error {
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	atomic.AddInt32(&p.sent, 1)
	return nil
}

func TestBridgeDoesNotBlockSessionChanges(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, storage.NewMemory())
	pub := &blockingPublisher{release: make(chan struct{})}

	b := NewBridge(st, pub, "dashboard.session", logger.NewNopLogger())
	b.Start()

	start := time.Now()
	require.NoError(t, st.Save(ctx, testSession()))
	_, gen := st.Token()
	require.True(t, st.Expire(ctx, gen))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(pub.release)
	b.Stop()
	assert.Equal(t, int32(2), atomic.LoadInt32(&pub.sent))
}

type failingClear struct {
	storage.Storage
}

func (f failingClear) Clear(ctx context.Context) error {
	return errors.New("storage unavailable")
}

func TestExpireRemovesSessionWhenWipeFails(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	st := newTestStore(t, failingClear{mem})
	require.NoError(t, st.Save(ctx, testSession()))
	require.NoError(t, mem.Set(ctx, storage.KeyPayPalOrderID, "ORDER-1"))

	_, gen := st.Token()
	require.True(t, st.Expire(ctx, gen))

	token, err := storage.GetOrEmpty(ctx, mem, storage.KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, st.Reload(ctx))
	assert.False(t, st.LoggedIn())
}

type ctxBoundStorage struct {
	storage.Storage
}

func (c ctxBoundStorage) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Storage.Clear(ctx)
}

func TestExpireWipesStorageForCancelledRequest(t *testing.T) {
	mem := storage.NewMemory()
	st := newTestStore(t, ctxBoundStorage{mem})
	require.NoError(t, st.Save(context.Background(), testSession()))
	require.NoError(t, mem.Set(context.Background(), storage.KeyPayPalOrderID, "ORDER-1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, gen := st.Token()
	require.True(t, st.Expire(ctx, gen))

	keys, err := mem.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

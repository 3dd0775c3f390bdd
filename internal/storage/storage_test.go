package storage

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

// exerciseStorage runs the contract every Storage implementation must meet
func exerciseStorage(t *testing.T, s Storage) {
	ctx := context.Background()

	_, err := s.Get(ctx, KeyAccessToken)
	require.ErrorIs(t, err, ErrKeyNotFound)

	v, err := GetOrEmpty(ctx, s, KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Set(ctx, KeyAccessToken, "tok-1"))
	require.NoError(t, s.Set(ctx, KeyAccessToken, "tok-2"))
	require.NoError(t, s.Set(ctx, KeyEmail, "ada@example.com"))
	require.NoError(t, s.Set(ctx, "unrelated_pref", "dark"))

	v, err = s.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", v)

	require.NoError(t, s.Remove(ctx, KeyEmail))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyAccessToken, "unrelated_pref"}, keys)

	require.NoError(t, s.Clear(ctx))
	keys, err = s.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemory())
}

func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv("STORAGE_TEST_DSN")
	if dsn == "" {
		t.Skip("STORAGE_TEST_DSN not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgresWithDB(db, "test-profile", logger.NewNopLogger())
	require.NoError(t, p.RunMigrations())
	require.NoError(t, p.Clear(context.Background()))

	exerciseStorage(t, p)
}

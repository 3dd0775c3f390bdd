package storage

import (
	"context"
	"errors"
)

// Persisted client storage keys
const (
	KeyAccessToken      = "access_token"
	KeyRefreshToken     = "refresh_token"
	KeyUserID           = "user_id"
	KeyEmail            = "email"
	KeyFirstName        = "first_name"
	KeyLastName         = "last_name"
	KeySuiteNumber      = "suite_number"
	KeyIsAdmin          = "is_admin"
	KeyPayPalOrderID    = "paypal_order_id"
	KeyPayPalTargetKind = "paypal_target_kind"
	KeyPayPalTargetID   = "paypal_target_id"
)

// ErrKeyNotFound is returned by Get for a missing key
var ErrKeyNotFound = errors.New("storage key not found")

// Storage is the dashboard's persisted key/value client storage. It is
// globally shared and last-write-wins; Clear wipes every key.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
}

// GetOrEmpty reads key and maps a missing key to the empty string
func GetOrEmpty(ctx context.Context, s Storage, key string) (string, error) {
	v, err := s.Get(ctx, key)

	if errors.Is(err, ErrKeyNotFound) {
		return "", nil
	}
	return v, err
}

package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResponseValidationFields(t *testing.T) {
	body := []byte(`{"postal_code": ["This field is required."], "phone": "Invalid phone"}`)

	err := FromResponse(http.StatusBadRequest, body)

	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "This field is required.", err.FieldError("postal_code"))
	assert.Equal(t, "Invalid phone", err.FieldError("phone"))
	assert.Equal(t, "phone: Invalid phone; postal_code: This field is required.", err.Error())
}

func TestFromResponseDetailMessage(t *testing.T) {
	err := FromResponse(http.StatusNotFound, []byte(`{"detail": "Package not found."}`))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Package not found.", err.Error())
	assert.Nil(t, err.Fields)
}

func TestFromResponseServerErrorIsRetryable(t *testing.T) {
	err := FromResponse(http.StatusBadGateway, []byte("<html>bad gateway</html>"))

	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, http.StatusBadGateway, err.StatusCode)
	assert.True(t, IsRetryable(err))
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(NewCancelledError("aborted")))
	assert.True(t, IsCancelled(fmt.Errorf("load: %w", context.Canceled)))
	assert.False(t, IsCancelled(errors.New("boom")))
}

func TestFieldErrorsThroughWrapping(t *testing.T) {
	inner := NewValidationError("bad", map[string][]string{"city": {"required"}})
	wrapped := fmt.Errorf("update address: %w", inner)

	assert.Equal(t, []string{"required"}, FieldErrors(wrapped)["city"])
	assert.Nil(t, FieldErrors(errors.New("plain")))
}

package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPError_MessageAndDetail(t *testing.T) {
	body := []byte(strings.Repeat("x", 500))
	err := NewHTTPError("Yahoo Finance", http.StatusUnauthorized, body)

	assert.Equal(t, "Yahoo Finance returned 401", err.Error())
	assert.Len(t, err.Detail, maxDetail)
	assert.True(t, err.Auth())
}

func TestIsAuthFailure(t *testing.T) {
	wrapped := fmt.Errorf("fetch: %w", NewHTTPError("CBOE", http.StatusForbidden, nil))
	assert.True(t, IsAuthFailure(wrapped))
	assert.False(t, IsAuthFailure(NewHTTPError("CBOE", http.StatusTooManyRequests, nil)))
	assert.False(t, IsAuthFailure(&TransportError{Op: "get"}))
	assert.False(t, IsAuthFailure(nil))
}

func TestAuthAcquisitionError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &AuthAcquisitionError{Reason: "crumb request failed", Status: 429, Err: cause}

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "acquire session: crumb request failed (status 429): boom", err.Error())
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	s := "ab€" // € is three bytes
	assert.Equal(t, "ab", Truncate(s, 3))
	assert.Equal(t, "ab€", Truncate(s, 5))
	assert.Equal(t, "trim", Truncate("  trim  ", 10))
}

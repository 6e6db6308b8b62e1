package tiktok

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	errs "ttharvest/pkg/errors"
	"ttharvest/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newExchangeClient returns a client whose token endpoint hands out
// sequentially numbered tokens and counts exchanges.
func newExchangeClient(t *testing.T, exchanges *int) *Client {
	t.Helper()
	return newTestClient(logger.NewTestLogger(), func(req *http.Request) (*http.Response, error) {
		*exchanges++
		body := fmt.Sprintf(`{"access_token": "tok_%d", "expires_in": 7200, "token_type": "Bearer"}`, *exchanges)
		return newResponse(http.StatusOK, body), nil
	})
}

func TestTokenManagerCachesToken(t *testing.T) {
	exchanges := 0
	client := newExchangeClient(t, &exchanges)
	manager := NewTokenManager(client, "key", "secret", 5*time.Minute, logger.NewTestLogger())

	first, err := manager.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok_1", first.Value)

	second, err := manager.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok_1", second.Value)
	assert.Equal(t, 1, exchanges, "second call should reuse the cached token")
}

func TestTokenManagerRefreshesNearExpiry(t *testing.T) {
	exchanges := 0
	client := newExchangeClient(t, &exchanges)
	manager := NewTokenManager(client, "key", "secret", 5*time.Minute, logger.NewTestLogger())

	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return base }

	first, err := manager.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok_1", first.Value)

	// Still well inside the 7200s lifetime.
	manager.now = func() time.Time { return base.Add(time.Hour) }
	cached, err := manager.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok_1", cached.Value)
	assert.Equal(t, 1, exchanges)

	// Inside the 5 minute safety margin before expiry.
	manager.now = func() time.Time { return base.Add(7000 * time.Second) }
	fresh, err := manager.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok_2", fresh.Value)
	assert.Equal(t, 2, exchanges)
}

func TestTokenManagerSendsCredentials(t *testing.T) {
	var body string
	client := newTestClient(logger.NewTestLogger(), func(req *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
		return newResponse(http.StatusOK, `{"access_token": "tok", "expires_in": 7200, "token_type": "Bearer"}`), nil
	})
	manager := NewTokenManager(client, "my_key", "my_secret", time.Minute, logger.NewTestLogger())

	_, err := manager.Token()
	require.NoError(t, err)
	assert.Contains(t, body, "client_key=my_key")
	assert.Contains(t, body, "client_secret=my_secret")
	assert.Contains(t, body, "grant_type=client_credentials")
}

func TestTokenManagerExchangeRejected(t *testing.T) {
	client := newTestClient(logger.NewTestLogger(), func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusOK, `{"error": "invalid_client", "error_description": "Client key is invalid"}`), nil
	})
	manager := NewTokenManager(client, "bad", "creds", time.Minute, logger.NewTestLogger())

	_, err := manager.Token()
	require.Error(t, err)

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
	assert.Contains(t, apiErr.Message, "invalid_client")
}

func TestTokenManagerExchangeHTTPError(t *testing.T) {
	client := newTestClient(logger.NewTestLogger(), func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusUnauthorized, ""), nil
	})
	manager := NewTokenManager(client, "bad", "creds", time.Minute, logger.NewTestLogger())

	_, err := manager.Token()
	require.Error(t, err)

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
}

func TestTokenManagerEmptyToken(t *testing.T) {
	client := newTestClient(logger.NewTestLogger(), func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusOK, `{"expires_in": 7200}`), nil
	})
	manager := NewTokenManager(client, "key", "secret", time.Minute, logger.NewTestLogger())

	_, err := manager.Token()
	require.Error(t, err)

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
}

func TestTokenManagerRefreshDiscardsCache(t *testing.T) {
	exchanges := 0
	client := newExchangeClient(t, &exchanges)
	manager := NewTokenManager(client, "key", "secret", 5*time.Minute, logger.NewTestLogger())

	first, err := manager.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok_1", first.Value)

	fresh, err := manager.Refresh()
	require.NoError(t, err)
	assert.Equal(t, "tok_2", fresh.Value)
	assert.Equal(t, 2, exchanges)

	// The replacement becomes the cached token.
	cached, err := manager.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok_2", cached.Value)
	assert.Equal(t, 2, exchanges)
}

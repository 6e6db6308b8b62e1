package tiktok

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	errs "ttharvest/pkg/errors"
	"ttharvest/pkg/logger"
	"ttharvest/pkg/models"
)

// TokenManager caches the bearer token for API calls and refreshes it
// through the client-credentials exchange when it approaches expiry.
type TokenManager struct {
	client       *Client
	clientKey    string
	clientSecret string
	margin       time.Duration
	logger       logger.Logger

	mu      sync.Mutex
	current *models.AccessToken

	// now is swappable for tests.
	now func() time.Time
}

// NewTokenManager creates a token manager for the given credential pair.
func NewTokenManager(client *Client, clientKey, clientSecret string, margin time.Duration, log logger.Logger) *TokenManager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &TokenManager{
		client:       client,
		clientKey:    clientKey,
		clientSecret: clientSecret,
		margin:       margin,
		logger:       log,
		now:          time.Now,
	}
}

// Token returns the cached token while it remains outside the safety
// margin, otherwise performs a fresh exchange and replaces the cache.
func (m *TokenManager) Token() (*models.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Usable(m.now(), m.margin) {
		return m.current, nil
	}

	return m.refreshLocked()
}

// Refresh discards the cached token and performs a fresh exchange.
// Used when the API rejects a token the cache still considered valid.
func (m *TokenManager) Refresh() (*models.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	return m.refreshLocked()
}

func (m *TokenManager) refreshLocked() (*models.AccessToken, error) {
	m.logger.Debug("exchanging client credentials for access token")

	form := url.Values{}
	form.Set("client_key", m.clientKey)
	form.Set("client_secret", m.clientSecret)
	form.Set("grant_type", "client_credentials")

	issuedAt := m.now()

	var resp tokenResponse
	if err := m.client.PostForm(TokenURL(m.client.APIBaseURL()), form, &resp); err != nil {
		return nil, errs.NewAuthError(fmt.Sprintf("credential exchange failed: %v", err), 0)
	}

	if resp.Error != "" && resp.Error != "ok" {
		m.logger.ErrorWithFields("credential exchange rejected", map[string]interface{}{
			"error":       resp.Error,
			"description": resp.ErrorDescription,
		})
		return nil, errs.NewAuthError(fmt.Sprintf("credential exchange rejected: %s: %s", resp.Error, resp.ErrorDescription), 0)
	}
	if resp.AccessToken == "" {
		return nil, errs.NewAuthError("credential exchange returned no token", 0)
	}

	m.current = &models.AccessToken{
		Value:     resp.AccessToken,
		TokenType: resp.TokenType,
		ExpiresIn: resp.ExpiresIn,
		IssuedAt:  issuedAt,
	}

	m.logger.InfoWithFields("access token refreshed", map[string]interface{}{
		"expires_in": resp.ExpiresIn,
		"token_type": resp.TokenType,
	})

	return m.current, nil
}

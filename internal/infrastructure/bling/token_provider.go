package bling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/domain/credential"
	"github.com/blingsync/backend/internal/domain/shared"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// TokenProvider exchanges refresh tokens against the Bling OAuth endpoint.
type TokenProvider struct {
	tokenURL   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTokenProvider creates a new TokenProvider
func NewTokenProvider(tokenURL string, timeout time.Duration, logger *zap.Logger) *TokenProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenProvider{
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// tokenResponse is the OAuth token endpoint payload
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
}

// RefreshToken exchanges refreshToken for a fresh token set. An invalid_grant
// rejection surfaces as credential.ErrConnectionExpired; transport and server
// failures are retryable.
func (p *TokenProvider) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*credential.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(clientID, clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, shared.Retryable(fmt.Errorf("%w: %v", syncdomain.ErrERPUnavailable, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, shared.Retryable(fmt.Errorf("%w: %v", syncdomain.ErrERPUnavailable, err))
	}

	var payload tokenResponse
	if unmarshalErr := json.Unmarshal(body, &payload); unmarshalErr != nil && resp.StatusCode < 500 {
		return nil, fmt.Errorf("%w: %v", syncdomain.ErrERPInvalidResponse, unmarshalErr)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, shared.Retryable(fmt.Errorf("%w: token endpoint status %d", syncdomain.ErrERPUnavailable, resp.StatusCode))
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		// invalid_grant: the refresh token was revoked or already rotated.
		// The tenant must re-authorize.
		p.logger.Warn("Bling rejected token refresh",
			zap.Int("status", resp.StatusCode),
			zap.String("oauth_error", payload.Error),
		)
		return nil, credential.ErrConnectionExpired
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: token endpoint status %d", syncdomain.ErrERPInvalidResponse, resp.StatusCode)
	}

	if payload.AccessToken == "" || payload.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token response missing tokens", syncdomain.ErrERPInvalidResponse)
	}

	tokens := &credential.TokenSet{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}
	if payload.Scope != "" {
		tokens.Scopes = strings.Fields(payload.Scope)
	}
	return tokens, nil
}

// Ensure TokenProvider implements credential.TokenProvider
var _ credential.TokenProvider = (*TokenProvider)(nil)

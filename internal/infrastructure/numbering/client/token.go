package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TokenSource supplies bearer tokens for backend calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed, pre-issued bearer token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", fmt.Errorf("empty static token")
	}
	return string(t), nil
}

// ClientCredentials exchanges a client id/secret for an access token at
// POST /api/v1/auth/token and caches it until shortly before it expires.
type ClientCredentials struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	// refreshSkew renews the token this long before its expiry.
	refreshSkew time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

type tokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type tokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Token implements TokenSource.
func (cc *ClientCredentials) Token(ctx context.Context) (string, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	now := time.Now
	if cc.now != nil {
		now = cc.now
	}
	skew := cc.refreshSkew
	if skew == 0 {
		skew = 30 * time.Second
	}

	if cc.token != "" && now().Add(skew).Before(cc.expiresAt) {
		return cc.token, nil
	}

	payload, err := json.Marshal(tokenRequest{ClientID: cc.ClientID, ClientSecret: cc.ClientSecret})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(cc.BaseURL, "/")+"/api/v1/auth/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := cc.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: %s", resp.Status)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response has no access token")
	}

	cc.token = tr.AccessToken
	cc.expiresAt = tr.ExpiresAt
	return cc.token, nil
}

package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"logibill/internal/core/apperror"
	"logibill/pkg/logger"
)

// Scopes granted to numbering clients.
const (
	ScopeRead  = "numbering:read"
	ScopeWrite = "numbering:write"
	ScopeAdmin = "numbering:admin"
	ScopeAll   = "*"
)

// Client is a registered API client.
type Client struct {
	ID         string
	SecretHash string // bcrypt
	Scopes     []string
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	GenerateAccessToken(clientID string, scopes []string) (string, time.Time, error)
}

// Token is an issued access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Service exchanges client credentials for access tokens.
type Service struct {
	clients map[string]Client
	issuer  TokenIssuer
}

// NewService creates an auth service for the given clients.
func NewService(issuer TokenIssuer, clients ...Client) *Service {
	byID := make(map[string]Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}
	return &Service{clients: byID, issuer: issuer}
}

// ClientsFromHashes builds full-access clients from an id -> bcrypt hash map.
func ClientsFromHashes(hashes map[string]string) []Client {
	clients := make([]Client, 0, len(hashes))
	for id, hash := range hashes {
		clients = append(clients, Client{ID: id, SecretHash: hash, Scopes: []string{ScopeAll}})
	}
	return clients
}

// IssueToken verifies clientSecret and returns a signed token.
func (s *Service) IssueToken(ctx context.Context, clientID, clientSecret string) (*Token, error) {
	client, ok := s.clients[clientID]
	if !ok {
		// Same cost as a wrong secret.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(clientSecret))
		logger.Warn(ctx, "token request for unknown client", "client_id", clientID)
		return nil, apperror.NewUnauthorized("invalid client credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(clientSecret)); err != nil {
		logger.Warn(ctx, "token request with wrong secret", "client_id", clientID)
		return nil, apperror.NewUnauthorized("invalid client credentials")
	}

	access, expiresAt, err := s.issuer.GenerateAccessToken(client.ID, client.Scopes)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	logger.Info(ctx, "access token issued", "client_id", clientID, "expires_at", expiresAt)
	return &Token{AccessToken: access, ExpiresAt: expiresAt}, nil
}

// HashSecret returns the bcrypt hash stored in the clients config.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("logibill"), bcrypt.DefaultCost)
	return hash
})

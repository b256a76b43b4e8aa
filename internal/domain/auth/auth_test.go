package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"logibill/internal/core/apperror"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	token, expiresAt, err := svc.GenerateAccessToken("billing-ui", []string{ScopeRead, ScopeWrite})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	client, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "billing-ui", client.ClientID)
	assert.Equal(t, []string{ScopeRead, ScopeWrite}, client.Scopes)
	assert.NotEmpty(t, client.SessionID)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(DefaultJWTConfig("other-secret"))
		token, _, err := other.GenerateAccessToken("billing-ui", nil)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewJWTService(DefaultJWTConfig("test-secret"))
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := past.GenerateAccessToken("billing-ui", nil)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		cfg := DefaultJWTConfig("test-secret")
		cfg.Issuer = "someone-else"
		token, _, err := NewJWTService(cfg).GenerateAccessToken("billing-ui", nil)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "logibill",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			ClientID: "billing-ui",
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ValidateToken(signed)
		assert.Error(t, err)
	})
}

func TestService_IssueToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	svc := NewService(jwtSvc, ClientsFromHashes(map[string]string{"numctl": string(hash)})...)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "numctl", "s3cret")
	require.NoError(t, err)
	client, err := jwtSvc.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "numctl", client.ClientID)
	assert.Equal(t, []string{ScopeAll}, client.Scopes)

	_, err = svc.IssueToken(ctx, "numctl", "wrong")
	require.Error(t, err)
	assert.Equal(t, 401, apperror.GetHTTPStatus(err))

	_, err = svc.IssueToken(ctx, "ghost", "s3cret")
	require.Error(t, err)
	assert.Equal(t, 401, apperror.GetHTTPStatus(err))
}

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

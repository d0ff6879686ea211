package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftly/server/internal/shared/config"
)

const testSecret = "test-secret"

func newVerifier(issuer string) *JWTVerifier {
	return NewJWTVerifier(&config.AuthConfig{JWTSecret: testSecret, Issuer: issuer})
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyToken(t *testing.T) {
	accountID := uuid.New()

	validClaims := Claims{
		Email: "ada@example.com",
		Name:  "Ada",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    "draftly-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	t.Run("valid token", func(t *testing.T) {
		v := newVerifier("draftly-idp")
		claims, err := v.VerifyToken(signToken(t, testSecret, validClaims))
		require.NoError(t, err)
		assert.Equal(t, accountID, claims.AccountID)
		assert.Equal(t, "ada@example.com", claims.Email)
		assert.Equal(t, "Ada", claims.Name)
	})

	t.Run("wrong secret", func(t *testing.T) {
		v := newVerifier("draftly-idp")
		_, err := v.VerifyToken(signToken(t, "other-secret", validClaims))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := validClaims
		expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		v := newVerifier("draftly-idp")
		_, err := v.VerifyToken(signToken(t, testSecret, expired))
		require.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		v := newVerifier("someone-else")
		_, err := v.VerifyToken(signToken(t, testSecret, validClaims))
		require.Error(t, err)
	})

	t.Run("non-uuid subject", func(t *testing.T) {
		bad := validClaims
		bad.Subject = "user-42"
		v := newVerifier("draftly-idp")
		_, err := v.VerifyToken(signToken(t, testSecret, bad))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		v := newVerifier("")
		_, err := v.VerifyToken("not.a.token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/coursekit-backend/internal/config"
)

func newManager(expiry time.Duration) *JWTManager {
	return NewJWTManager(&config.Config{
		App: config.AppConfig{Name: "CourseKit Test"},
		JWT: config.JWTConfig{
			Secret:            "test-secret-key-that-is-long-enough-1234",
			AccessTokenExpiry: expiry,
		},
	})
}

func TestGenerateAndValidate(t *testing.T) {
	manager := newManager(time.Hour)

	token, err := manager.GenerateAccessToken(42, "buyer@example.com", true)
	require.NoError(t, err)

	claims, err := manager.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "buyer@example.com", claims.Email)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "CourseKit Test", claims.Issuer)
}

func TestValidate_Expired(t *testing.T) {
	manager := newManager(-time.Minute)

	token, err := manager.GenerateAccessToken(1, "a@example.com", false)
	require.NoError(t, err)

	_, err = manager.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := newManager(time.Hour).GenerateAccessToken(1, "a@example.com", false)
	require.NoError(t, err)

	other := NewJWTManager(&config.Config{JWT: config.JWTConfig{Secret: "another-secret-key-that-is-long-enough"}})
	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RejectsOtherTokenTypes(t *testing.T) {
	manager := newManager(time.Hour)

	claims := &Claims{
		UserID:    7,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(manager.secret)
	require.NoError(t, err)

	_, err = manager.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	manager := newManager(time.Hour)

	claims := &Claims{
		UserID:    7,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(manager.secret)
	require.NoError(t, err)

	_, err = manager.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RejectsMissingUser(t *testing.T) {
	manager := newManager(time.Hour)

	token, err := manager.GenerateAccessToken(0, "nobody@example.com", false)
	require.NoError(t, err)

	_, err = manager.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc.def", ExtractTokenFromHeader("Bearer abc.def"))
	assert.Equal(t, "abc.def", ExtractTokenFromHeader("bearer abc.def"))
	assert.Empty(t, ExtractTokenFromHeader("Basic dXNlcjpwYXNz"))
	assert.Empty(t, ExtractTokenFromHeader("Bearer "))
	assert.Empty(t, ExtractTokenFromHeader(""))
}

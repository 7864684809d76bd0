package jwtutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 12, "ana")
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(12), claims.UserID)
	assert.Equal(t, "ana", claims.Username)
	assert.Equal(t, "12", claims.Subject)
}

func TestParseToken_Rejects(t *testing.T) {
	valid, err := GenerateToken("secret", time.Hour, 1, "ana")
	require.NoError(t, err)
	expired, err := GenerateToken("secret", -time.Minute, 1, "ana")
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]struct{ secret, token string }{
		"wrong secret": {"other", valid},
		"expired":      {"secret", expired},
		"alg none":     {"secret", none},
		"garbage":      {"secret", "not-a-token"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(tt.secret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestGenerateToken_EmptySecret(t *testing.T) {
	_, err := GenerateToken("", time.Hour, 1, "ana")
	assert.Error(t, err)
}

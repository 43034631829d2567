package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deviation-service/internal/model"
)

func signToken(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestParseRoundTrip(t *testing.T) {
	parser := NewParser("test-secret")
	userID := uuid.New()

	signed := signToken(t, "test-secret", &Claims{
		UserID:     userID,
		FullName:   "Ayşe Kaya",
		Role:       model.UserRoleQuality,
		Department: "Kalite",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := parser.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "Ayşe Kaya", claims.FullName)
	assert.Equal(t, model.UserRoleQuality, claims.Role)
	assert.Equal(t, "Kalite", claims.Department)
}

func TestParseWrongSecret(t *testing.T) {
	parser := NewParser("test-secret")
	signed := signToken(t, "other-secret", &Claims{UserID: uuid.New()})

	_, err := parser.Parse(signed)
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	parser := NewParser("test-secret")
	signed := signToken(t, "test-secret", &Claims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := parser.Parse(signed)
	assert.Error(t, err)
}

func TestParseGarbage(t *testing.T) {
	parser := NewParser("test-secret")
	_, err := parser.Parse("not-a-token")
	assert.Error(t, err)
}

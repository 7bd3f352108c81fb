package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hmis-api/internal/model"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", "hmis-api", time.Hour)
	user := &model.User{Base: model.Base{ID: uuid.New()}, Email: "nurse@example.com", Role: model.RoleNurse}

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.RoleNurse, claims.Role)
	assert.Equal(t, "nurse@example.com", claims.Email)
}

func TestValidateRejects(t *testing.T) {
	user := &model.User{Base: model.Base{ID: uuid.New()}, Role: model.RoleAdmin}

	other, err := NewJWTService("other-secret", "hmis-api", time.Hour).GenerateAccessToken(user)
	require.NoError(t, err)
	expired, err := NewJWTService("secret", "hmis-api", -time.Minute).GenerateAccessToken(user)
	require.NoError(t, err)
	wrongIssuer, err := NewJWTService("secret", "someone-else", time.Hour).GenerateAccessToken(user)
	require.NoError(t, err)

	svc := NewJWTService("secret", "hmis-api", time.Hour)
	for name, token := range map[string]string{
		"bad signature": other,
		"expired":       expired,
		"wrong issuer":  wrongIssuer,
		"garbage":       "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/drivematch-api/internal/models"
	appErrors "github.com/noah-isme/drivematch-api/pkg/errors"
)

func adminClaims(expiresIn time.Duration) *models.JWTClaims {
	now := time.Now()
	return &models.JWTClaims{
		UserID:    "user-1",
		CompanyID: "company-1",
		Role:      models.RoleAdmin,
		Email:     "admin@drivematch.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "drivematch-auth"})

	token, err := svc.Sign(adminClaims(time.Hour))
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "company-1", claims.CompanyID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "drivematch-auth", claims.Issuer)
}

func TestTokenServiceRejectsInvalidTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "drivematch-auth"})

	expired, err := svc.Sign(adminClaims(-time.Minute))
	require.NoError(t, err)

	foreign, err := NewTokenService(TokenConfig{Secret: "secret", Issuer: "someone-else"}).Sign(adminClaims(time.Hour))
	require.NoError(t, err)

	wrongKey, err := NewTokenService(TokenConfig{Secret: "other", Issuer: "drivematch-auth"}).Sign(adminClaims(time.Hour))
	require.NoError(t, err)

	unscoped := adminClaims(time.Hour)
	unscoped.CompanyID = ""
	noCompany, err := svc.Sign(unscoped)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"issuer":     foreign,
		"signature":  wrongKey,
		"no company": noCompany,
		"garbage":    "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
		})
	}
}

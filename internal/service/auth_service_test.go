package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/teg-intake-api/internal/models"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
)

func newAuthService(t *testing.T, password string) *AuthService {
	t.Helper()
	hash := ""
	if password != "" {
		raw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		hash = string(raw)
	}
	return NewAuthService(nil, nil, AuthConfig{
		Username:          "coordinador",
		PasswordHash:      hash,
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "teg-intake-api",
	})
}

func TestAuthServiceLoginIssuesAdminToken(t *testing.T) {
	svc := newAuthService(t, "s3creto")

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "coordinador", Password: "s3creto"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "coordinador", claims.Username)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(t, "s3creto")

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "coordinador", Password: "admin123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "otro", Password: "s3creto"})
	require.Error(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "coordinador"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginDisabledWithoutHash(t *testing.T) {
	svc := newAuthService(t, "")
	assert.False(t, svc.Enabled())

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "coordinador", Password: "x"})
	assert.Equal(t, appErrors.ErrServiceUnavailable.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsExpired(t *testing.T) {
	svc := newAuthService(t, "s3creto")
	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "coordinador", Password: "s3creto"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
}

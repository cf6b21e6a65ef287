package service_test

import (
	"context"
	"testing"

	"parkingcash/internal/config"
	"parkingcash/internal/dto"
	"parkingcash/internal/model"
	"parkingcash/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLogin(t *testing.T) {
	db := newMemDB()
	users := &fakeUserRepo{db: db}
	hash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &model.User{
		Username: "carmen", FullName: "Carmen Ruiz", PasswordHash: string(hash), Role: model.RoleWorker, IsActive: true,
	}))
	require.NoError(t, users.Create(context.Background(), &model.User{
		Username: "baja", PasswordHash: string(hash), Role: model.RoleWorker, IsActive: false,
	}))

	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 8}
	svc := service.NewAuthService(users, cfg)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Username: "carmen", Password: "1234"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 8*3600, resp.ExpiresIn)
	assert.Equal(t, model.RoleWorker, resp.User.Role)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims["user_id"])
	assert.Equal(t, "worker", claims["role"])

	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "carmen", Password: "mal"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "nadie", Password: "1234"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "baja", Password: "1234"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials, "inactive users cannot log in")
}

package service

import (
	"context"
	"testing"
	"time"

	"tutor_backend/internal/config"
	"tutor_backend/internal/model"
	"tutor_backend/internal/repository"
	"tutor_backend/internal/util"
	"tutor_backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_AuthenticateSyncsProfile(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(":memory:", "test")
	require.NoError(t, err)

	users := repository.NewUserRepository(db)
	cfg := config.JWTConfig{Secret: "identity-test-secret", Audience: "authenticated", AdminEmails: "Profe@Example.com"}
	identity := NewIdentityService(users, cfg)

	params := util.TokenParams{Secret: cfg.Secret, Audience: cfg.Audience}
	tok, err := util.GenerateJWT("profe-1", "profe@example.com", "", params, time.Hour)
	require.NoError(t, err)

	who, err := identity.Authenticate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "profe-1", who.UserID)
	assert.Equal(t, string(model.Admin), who.Role)

	stored, err := users.FindByID(ctx, "profe-1")
	require.NoError(t, err)
	assert.Equal(t, "profe@example.com", stored.Email)
	assert.Equal(t, model.Admin, stored.Role)

	tok, err = util.GenerateJWT("student-1", "alumno@example.com", "user", params, time.Hour)
	require.NoError(t, err)
	who, err = identity.Authenticate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, string(model.Student), who.Role)
}

func TestIdentity_RejectsBadTokens(t *testing.T) {
	db, err := database.OpenSQLite(":memory:", "test")
	require.NoError(t, err)
	identity := NewIdentityService(repository.NewUserRepository(db), config.JWTConfig{Secret: "right-secret", Audience: "authenticated"})

	wrongSecret, err := util.GenerateJWT("u1", "", "", util.TokenParams{Secret: "wrong-secret", Audience: "authenticated"}, time.Hour)
	require.NoError(t, err)
	_, err = identity.Authenticate(context.Background(), wrongSecret)
	assert.ErrorIs(t, err, util.ErrUnauthenticated)

	wrongAudience, err := util.GenerateJWT("u1", "", "", util.TokenParams{Secret: "right-secret", Audience: "other"}, time.Hour)
	require.NoError(t, err)
	_, err = identity.Authenticate(context.Background(), wrongAudience)
	assert.ErrorIs(t, err, util.ErrUnauthenticated)

	expired, err := util.GenerateJWT("u1", "", "", util.TokenParams{Secret: "right-secret", Audience: "authenticated"}, -time.Minute)
	require.NoError(t, err)
	_, err = identity.Authenticate(context.Background(), expired)
	assert.ErrorIs(t, err, util.ErrUnauthenticated)
}

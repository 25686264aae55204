package auth_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/auth"
	"github.com/pnp-dms/docflow-api/internal/config"
	"github.com/pnp-dms/docflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:      "test-secret-key-for-jwt-signing",
		Issuer:      "docflow-api-test",
		ExpiryHours: 1,
	}
}

func testUser(role domain.UserRole) *domain.User {
	return &domain.User{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		Name:      "Juan Dela Cruz",
		Email:     "juan.delacruz@pnp.gov.ph",
		Role:      role,
		Unit:      "Regional Headquarters",
		Rank:      "Police Major",
	}
}

func TestJWTManager_IssueAndValidate(t *testing.T) {
	manager := auth.NewJWTManager(testJWTConfig())
	user := testUser(domain.RoleAuthority)

	token, err := manager.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userCtx, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userCtx.UserID)
	assert.Equal(t, user.Name, userCtx.Name)
	assert.Equal(t, user.Email, userCtx.Email)
	assert.Equal(t, domain.RoleAuthority, userCtx.Role)
	assert.Equal(t, user.Unit, userCtx.Unit)
	assert.Equal(t, user.Rank, userCtx.Rank)
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	cfg.ExpiryHours = -1
	manager := auth.NewJWTManager(cfg)

	token, err := manager.Issue(testUser(domain.RolePersonnel))
	require.NoError(t, err)

	_, err = manager.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	manager := auth.NewJWTManager(testJWTConfig())
	token, err := manager.Issue(testUser(domain.RolePersonnel))
	require.NoError(t, err)

	otherCfg := testJWTConfig()
	otherCfg.Secret = "a-different-secret"
	_, err = auth.NewJWTManager(otherCfg).ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTManager_WrongIssuer(t *testing.T) {
	manager := auth.NewJWTManager(testJWTConfig())
	token, err := manager.Issue(testUser(domain.RolePersonnel))
	require.NoError(t, err)

	otherCfg := testJWTConfig()
	otherCfg.Issuer = "someone-else"
	_, err = auth.NewJWTManager(otherCfg).ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTManager_UnknownRole(t *testing.T) {
	manager := auth.NewJWTManager(testJWTConfig())
	user := testUser("superuser")

	token, err := manager.Issue(user)
	require.NoError(t, err)

	_, err = manager.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTManager_GarbageToken(t *testing.T) {
	manager := auth.NewJWTManager(testJWTConfig())
	_, err := manager.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

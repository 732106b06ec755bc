package service

import (
	"context"
	"testing"

	"strathub/internal/model"
	"strathub/internal/util"
	"strathub/pkg/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_StoresHashNotPassword(t *testing.T) {
	env := newTestEnv(t)
	auth := env.authService()

	resp, err := auth.Register(context.Background(), &model.RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.True(t, resp.User.IsActive)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	stored, err := env.users.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2hunter2", stored.PasswordHash)
	assert.True(t, crypto.CheckPassword("hunter2hunter2", stored.PasswordHash))
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t)
	auth := env.authService()
	env.seedUser(t, "alice@example.com")

	_, err := auth.Register(context.Background(), &model.RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice2",
		Password: "hunter2hunter2",
	})
	require.Error(t, err)
	appErr := util.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, 409, appErr.StatusCode)
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.authService().Register(context.Background(), &model.RegisterRequest{
		Email:    "bob@example.com",
		Username: "bob",
		Password: "short",
	})
	require.Error(t, err)
	appErr := util.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, util.ErrCodeValidation, appErr.Code)
}

func TestLogin_WrongPasswordIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	auth := env.authService()
	env.seedUser(t, "alice@example.com")

	_, err := auth.Login(context.Background(), &model.LoginRequest{
		Email:    "alice@example.com",
		Password: "not-the-password",
	})
	require.Error(t, err)
	appErr := util.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, 401, appErr.StatusCode)
	assert.Equal(t, util.ErrCodeInvalidCredentials, appErr.Code)
}

func TestLogin_UnknownEmailMatchesWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.authService().Login(context.Background(), &model.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever-password",
	})
	require.Error(t, err)
	appErr := util.GetAppError(err)
	require.NotNil(t, appErr)
	// Unknown email and wrong password are indistinguishable to callers.
	assert.Equal(t, 401, appErr.StatusCode)
	assert.Equal(t, util.ErrCodeInvalidCredentials, appErr.Code)
}

func TestLogin_IssuesTokenPair(t *testing.T) {
	env := newTestEnv(t)
	auth := env.authService()
	env.seedUser(t, "alice@example.com")

	resp, err := auth.Login(context.Background(), &model.LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-horse-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(15*60), resp.ExpiresIn)
	assert.Equal(t, "alice@example.com", resp.User.Email)
}

func TestRefreshToken_RejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	auth := env.authService()
	env.seedUser(t, "alice@example.com")

	resp, err := auth.Login(context.Background(), &model.LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-horse-1",
	})
	require.NoError(t, err)

	// An access token is a valid JWT but the wrong type for this endpoint.
	_, err = auth.RefreshToken(context.Background(), resp.AccessToken)
	require.Error(t, err)
	appErr := util.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, 401, appErr.StatusCode)
	assert.Equal(t, util.ErrCodeTokenInvalid, appErr.Code)
}

func TestRefreshToken_IssuesFreshPair(t *testing.T) {
	env := newTestEnv(t)
	auth := env.authService()
	env.seedUser(t, "alice@example.com")

	resp, err := auth.Login(context.Background(), &model.LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-horse-1",
	})
	require.NoError(t, err)

	refreshed, err := auth.RefreshToken(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEmpty(t, refreshed.RefreshToken)
	assert.Equal(t, "alice@example.com", refreshed.User.Email)
}

func TestValidateToken_ResolvesSubject(t *testing.T) {
	env := newTestEnv(t)
	auth := env.authService()
	user := env.seedUser(t, "alice@example.com")

	resp, err := auth.Login(context.Background(), &model.LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-horse-1",
	})
	require.NoError(t, err)

	resolved, err := auth.ValidateToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestValidateToken_RejectsRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	auth := env.authService()
	env.seedUser(t, "alice@example.com")

	resp, err := auth.Login(context.Background(), &model.LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-horse-1",
	})
	require.NoError(t, err)

	_, err = auth.ValidateToken(context.Background(), resp.RefreshToken)
	require.Error(t, err)
	appErr := util.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, 401, appErr.StatusCode)
}

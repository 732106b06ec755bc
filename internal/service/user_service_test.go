package service

import (
	"context"
	"testing"

	"strathub/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfile_OmitsCredentials(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice@example.com")
	env.grantPaperCreds(t, user.ID)

	profile, err := NewUserService(env.users).GetProfile(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, profile.ID)
	assert.Equal(t, "alice@example.com", profile.Email)
}

func TestIBKRStatus_TracksCredentialTriples(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice@example.com")
	svc := NewUserService(env.users)
	ctx := context.Background()

	status, err := svc.IBKRStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, status.PaperReady)
	assert.False(t, status.LiveReady)

	env.grantPaperCreds(t, user.ID)

	status, err = svc.IBKRStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, status.PaperReady)
	assert.False(t, status.LiveReady)

	status, err = svc.UpdateIBKRLive(ctx, user.ID, &model.UpdateIBKRLiveRequest{
		IBKRLiveUsername:  "live-user",
		IBKRLivePassword:  "live-pass",
		IBKRLiveAccountID: "U7654321",
	})
	require.NoError(t, err)
	assert.True(t, status.LiveReady)
}

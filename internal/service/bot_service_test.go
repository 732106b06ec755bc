package service

import (
	"context"
	"testing"

	"strathub/internal/model"
	"strathub/internal/repository"
	"strathub/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotCreate_StartsPending(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")

	bot := env.seedBot(t, owner.ID)

	assert.Equal(t, model.BotStatusPending, bot.Status)
	assert.Equal(t, owner.ID, bot.OwnerID)
	assert.Equal(t, "SPY", bot.Parameters["underlying_symbol"])
}

func TestBotCreate_RejectsUnknownParameters(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")

	_, err := NewBotService(env.bots).Create(context.Background(), owner.ID, &model.CreateBotRequest{
		Name:       "bad-bot",
		Strategy:   model.StrategyShortStrangle,
		Parameters: map[string]interface{}{"underlying_symbol": "SPY", "stirke_buffer_pct": 0.1},
	})
	require.Error(t, err)
	appErr := util.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, util.ErrCodeValidation, appErr.Code)
}

func TestBotGet_MasksOtherOwnersBots(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice@example.com")
	mallory := env.seedUser(t, "mallory@example.com")
	bot := env.seedBot(t, alice.ID)

	svc := NewBotService(env.bots)

	got, err := svc.Get(context.Background(), alice.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, bot.ID, got.ID)

	// Someone else's bot looks exactly like a missing one.
	_, err = svc.Get(context.Background(), mallory.ID, bot.ID)
	require.Error(t, err)
	appErr := util.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, 404, appErr.StatusCode)
	assert.Equal(t, util.ErrCodeBotNotFound, appErr.Code)
}

func TestBotUpdate_ResetsStatusToPending(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")
	bot := env.seedBot(t, owner.ID)

	require.NoError(t, env.bots.UpdateStatus(context.Background(), bot.ID, model.BotStatusBacktested))

	desc := "tweaked"
	updated, err := NewBotService(env.bots).Update(context.Background(), owner.ID, bot.ID, &model.UpdateBotRequest{
		Description: &desc,
	})
	require.NoError(t, err)
	assert.Equal(t, "tweaked", updated.Description)
	assert.Equal(t, model.BotStatusPending, updated.Status)
}

func TestBotUpdate_NoChangesKeepsStatus(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")
	bot := env.seedBot(t, owner.ID)

	require.NoError(t, env.bots.UpdateStatus(context.Background(), bot.ID, model.BotStatusBacktested))

	updated, err := NewBotService(env.bots).Update(context.Background(), owner.ID, bot.ID, &model.UpdateBotRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.BotStatusBacktested, updated.Status)
}

func TestBotToggle_FlipsLiveAndPaused(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")
	bot := env.seedBot(t, owner.ID)
	svc := NewBotService(env.bots)

	require.NoError(t, env.bots.UpdateStatus(context.Background(), bot.ID, model.BotStatusLive))

	paused, err := svc.Toggle(context.Background(), owner.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BotStatusPaused, paused.Status)

	live, err := svc.Toggle(context.Background(), owner.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BotStatusLive, live.Status)
}

func TestBotToggle_NoOpForOtherStates(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")
	bot := env.seedBot(t, owner.ID)
	svc := NewBotService(env.bots)

	require.NoError(t, env.bots.UpdateStatus(context.Background(), bot.ID, model.BotStatusStopped))

	got, err := svc.Toggle(context.Background(), owner.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BotStatusStopped, got.Status)

	stored, err := env.bots.GetByID(context.Background(), bot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BotStatusStopped, stored.Status)
}

func TestBotDelete_CascadesBacktestsAndTrades(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")
	bot := env.seedBot(t, owner.ID)
	ctx := context.Background()

	require.NoError(t, env.backtests.Create(ctx, &model.Backtest{
		ID:    uuid.New().String(),
		BotID: bot.ID,
	}))
	require.NoError(t, env.trades.Create(ctx, &model.Trade{
		ID:     uuid.New().String(),
		BotID:  bot.ID,
		Symbol: "SPY",
		Status: model.TradeStatusFilled,
	}))

	require.NoError(t, NewBotService(env.bots).Delete(ctx, owner.ID, bot.ID))

	_, err := env.bots.GetByID(ctx, bot.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = env.backtests.LatestByBot(ctx, bot.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	trades, err := env.trades.ListByBot(ctx, bot.ID)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestBotListPublic_OnlyRunningBots(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")
	running := env.seedBot(t, owner.ID)
	env.seedBot(t, owner.ID) // stays PENDING

	require.NoError(t, env.bots.UpdateStatus(context.Background(), running.ID, model.BotStatusLive))

	public, err := NewBotService(env.bots).ListPublic(context.Background())
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, running.ID, public[0].ID)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"strathub/internal/model"
	"strathub/internal/queue"
	"strathub/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func (e *testEnv) backtestService(q *fakeTradeQueue) *BacktestService {
	return NewBacktestService(e.bots, e.backtests, q, nopLog())
}

func backtestWindow() (time.Time, time.Time) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 3, 0)
}

func TestBacktestRun_EnqueuesAndFlipsStatus(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")
	bot := env.seedBot(t, owner.ID)
	q := &fakeTradeQueue{}
	svc := env.backtestService(q)
	start, end := backtestWindow()

	got, err := svc.Run(context.Background(), owner.ID, &model.RunBacktestRequest{
		BotID:            bot.ID,
		Strategy:         model.StrategyShortStrangle,
		BacktestingStart: start,
		BacktestingEnd:   end,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BotStatusBacktesting, got.Status)

	require.Len(t, q.tasks, 1)
	assert.Equal(t, queue.TaskBacktestRun, q.tasks[0].Type)

	var job model.BacktestJob
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload, &job))
	assert.Equal(t, bot.ID, job.BotID)
	assert.True(t, job.Start.Equal(start))
	assert.Equal(t, "SPY", job.Params["underlying_symbol"])
}

func TestBacktestRun_QueueFailureLeavesBotUntouched(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")
	bot := env.seedBot(t, owner.ID)
	svc := env.backtestService(&fakeTradeQueue{enqueueErr: errors.New("redis down")})
	start, end := backtestWindow()

	_, err := svc.Run(context.Background(), owner.ID, &model.RunBacktestRequest{
		BotID:            bot.ID,
		Strategy:         model.StrategyShortStrangle,
		BacktestingStart: start,
		BacktestingEnd:   end,
	})
	require.Error(t, err)
	appErr := util.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, 503, appErr.StatusCode)
	assert.Equal(t, util.ErrCodeQueueRejected, appErr.Code)

	stored, err := env.bots.GetByID(context.Background(), bot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BotStatusPending, stored.Status)
}

func TestBacktestRun_RejectsInvertedWindow(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")
	bot := env.seedBot(t, owner.ID)
	svc := env.backtestService(&fakeTradeQueue{})
	start, end := backtestWindow()

	_, err := svc.Run(context.Background(), owner.ID, &model.RunBacktestRequest{
		BotID:            bot.ID,
		Strategy:         model.StrategyShortStrangle,
		BacktestingStart: end,
		BacktestingEnd:   start,
	})
	require.Error(t, err)
	appErr := util.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, 400, appErr.StatusCode)
}

func TestBacktestLatestResult_NilWhenNoneYet(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")
	bot := env.seedBot(t, owner.ID)
	svc := env.backtestService(&fakeTradeQueue{})

	result, err := svc.LatestResult(context.Background(), owner.ID, bot.ID)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestBacktestLatestResult_ReturnsMostRecent(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "alice@example.com")
	bot := env.seedBot(t, owner.ID)
	ctx := context.Background()

	older := &model.Backtest{
		ID:        uuid.New().String(),
		BotID:     bot.ID,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Results:   datatypes.JSONMap{"total_return_pct": 1.0},
	}
	newer := &model.Backtest{
		ID:        uuid.New().String(),
		BotID:     bot.ID,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Results:   datatypes.JSONMap{"total_return_pct": 4.2},
	}
	require.NoError(t, env.backtests.Create(ctx, older))
	require.NoError(t, env.backtests.Create(ctx, newer))

	result, err := env.backtestService(&fakeTradeQueue{}).LatestResult(ctx, owner.ID, bot.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, newer.ID, result.ID)
}

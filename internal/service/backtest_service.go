package service

import (
	"context"

	"strathub/internal/model"
	"strathub/internal/queue"
	"strathub/internal/repository"
	"strathub/internal/strategy"
	"strathub/internal/util"
	"strathub/pkg/logger"

	"github.com/google/uuid"
)

// BacktestService queues backtest runs and serves their results.
type BacktestService struct {
	botRepo      *repository.BotRepository
	backtestRepo *repository.BacktestRepository
	producer     queue.Producer
	log          *logger.Logger
}

// NewBacktestService creates a new backtest service
func NewBacktestService(botRepo *repository.BotRepository, backtestRepo *repository.BacktestRepository, producer queue.Producer, log *logger.Logger) *BacktestService {
	return &BacktestService{
		botRepo:      botRepo,
		backtestRepo: backtestRepo,
		producer:     producer,
		log:          log,
	}
}

// Run validates and enqueues a backtest job for one of the caller's bots,
// then flips the bot to BACKTESTING. The status flip happens only after
// the enqueue succeeds so a queue failure leaves the bot untouched.
func (s *BacktestService) Run(ctx context.Context, ownerID string, req *model.RunBacktestRequest) (*model.Bot, error) {
	bot, err := s.botRepo.GetOwned(ctx, req.BotID, ownerID)
	if err != nil {
		return nil, util.NewAppError(404, util.ErrCodeBotNotFound, "Bot not found")
	}

	if req.Strategy != bot.Strategy {
		return nil, util.ErrBadRequest("Strategy does not match bot")
	}
	if !req.BacktestingEnd.After(req.BacktestingStart) {
		return nil, util.ErrBadRequest("Backtest end must be after start")
	}

	params := req.Params
	if params == nil {
		params = bot.Parameters
	}
	if err := strategy.ValidateParams(req.Strategy, params); err != nil {
		return nil, util.ErrValidation("Invalid strategy parameters: " + err.Error())
	}

	job := model.BacktestJob{
		BotID:    bot.ID,
		Strategy: req.Strategy,
		Start:    req.BacktestingStart,
		End:      req.BacktestingEnd,
		Params:   params,
	}
	task, err := queue.NewTask(queue.TaskBacktestRun, uuid.New().String(), job)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to build backtest job")
	}
	if err := s.producer.Enqueue(ctx, task); err != nil {
		return nil, util.NewAppError(503, util.ErrCodeQueueRejected, "Backtest queue unavailable")
	}

	if err := s.botRepo.UpdateStatus(ctx, bot.ID, model.BotStatusBacktesting); err != nil {
		// The job is already queued; surface the bot as-is and let the
		// worker's completion update reconcile the status.
		s.log.WithField("bot_id", bot.ID).Error("Failed to flip bot to BACKTESTING", err)
		return bot, nil
	}
	bot.Status = model.BotStatusBacktesting
	return bot, nil
}

// LatestResult returns the most recent backtest for one of the caller's
// bots, or nil when none has completed yet.
func (s *BacktestService) LatestResult(ctx context.Context, ownerID, botID string) (*model.Backtest, error) {
	if _, err := s.botRepo.GetOwned(ctx, botID, ownerID); err != nil {
		return nil, util.NewAppError(404, util.ErrCodeBotNotFound, "Bot not found")
	}

	backtest, err := s.backtestRepo.LatestByBot(ctx, botID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil
		}
		return nil, util.ErrInternalServer("Failed to load backtest")
	}
	return backtest, nil
}

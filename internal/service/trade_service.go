package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"strathub/internal/model"
	"strathub/internal/queue"
	"strathub/internal/repository"
	"strathub/internal/strategy"
	"strathub/internal/util"
	"strathub/pkg/logger"
	"strathub/pkg/redis"
)

// TradeQueue is the queue surface trade runs need: enqueue with dedup,
// plus claim release on stop.
type TradeQueue interface {
	Enqueue(ctx context.Context, task queue.Task) error
	Release(ctx context.Context, id string) error
}

// StopBroadcaster fans stop signals out to trade workers.
type StopBroadcaster interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// TradeJobID derives the deterministic task id for a bot's trade run.
// One live run per bot: a second run request collides on this id.
func TradeJobID(botID string) string {
	return fmt.Sprintf("trade_%s", botID)
}

// TradeService queues trading runs, stops them, and serves trade history.
type TradeService struct {
	botRepo   *repository.BotRepository
	tradeRepo *repository.TradeRepository
	userRepo  *repository.UserRepository
	queue     TradeQueue
	stop      StopBroadcaster
	log       *logger.Logger
}

// NewTradeService creates a new trade service
func NewTradeService(
	botRepo *repository.BotRepository,
	tradeRepo *repository.TradeRepository,
	userRepo *repository.UserRepository,
	tradeQueue TradeQueue,
	stop StopBroadcaster,
	log *logger.Logger,
) *TradeService {
	return &TradeService{
		botRepo:   botRepo,
		tradeRepo: tradeRepo,
		userRepo:  userRepo,
		queue:     tradeQueue,
		stop:      stop,
		log:       log,
	}
}

// Run queues a paper or live trading run for one of the caller's bots and
// flips it to LIVE. A bot already running collides on its deterministic
// job id and gets a conflict instead of a second runner.
func (s *TradeService) Run(ctx context.Context, ownerID string, req *model.RunTradeRequest) (*model.Bot, error) {
	bot, err := s.botRepo.GetOwned(ctx, req.BotID, ownerID)
	if err != nil {
		return nil, util.NewAppError(404, util.ErrCodeBotNotFound, "Bot not found")
	}
	if req.Strategy != bot.Strategy {
		return nil, util.ErrBadRequest("Strategy does not match bot")
	}

	user, err := s.userRepo.GetByID(ctx, ownerID)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to load user")
	}
	switch req.TradeType {
	case model.TradeModePaper:
		if !user.PaperReady() {
			return nil, util.ErrBadRequest("Paper trading credentials are not configured")
		}
	case model.TradeModeLive:
		if !user.LiveReady() {
			return nil, util.ErrBadRequest("Live trading credentials are not configured")
		}
	}

	params := req.Params
	if params == nil {
		params = bot.Parameters
	}
	if err := strategy.ValidateParams(req.Strategy, params); err != nil {
		return nil, util.ErrValidation("Invalid strategy parameters: " + err.Error())
	}

	job := model.TradeJob{
		BotID:     bot.ID,
		UserID:    ownerID,
		Strategy:  req.Strategy,
		TradeType: req.TradeType,
		Params:    params,
	}
	task, err := queue.NewTask(queue.TaskTradeRun, TradeJobID(bot.ID), job)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to build trade job")
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		if errors.Is(err, queue.ErrDuplicate) {
			return nil, util.ErrConflict("Bot already has a trading run")
		}
		return nil, util.NewAppError(503, util.ErrCodeQueueRejected, "Trade queue unavailable")
	}

	if err := s.botRepo.UpdateStatus(ctx, bot.ID, model.BotStatusLive); err != nil {
		s.log.WithField("bot_id", bot.ID).Error("Failed to flip bot to LIVE", err)
		return bot, nil
	}
	bot.Status = model.BotStatusLive
	return bot, nil
}

// Stop halts a running bot: status STOPPED, stop timestamp recorded, stop
// signal broadcast to workers, and the job claim released so the bot can
// run again later.
func (s *TradeService) Stop(ctx context.Context, ownerID, botID string) (*model.Bot, error) {
	bot, err := s.botRepo.GetOwned(ctx, botID, ownerID)
	if err != nil {
		return nil, util.NewAppError(404, util.ErrCodeBotNotFound, "Bot not found")
	}
	if bot.Status != model.BotStatusLive && bot.Status != model.BotStatusPaused {
		return nil, util.ErrConflict("Bot is not running")
	}

	now := time.Now()
	bot.Status = model.BotStatusStopped
	bot.StopAt = &now
	bot.UpdatedAt = now
	if err := s.botRepo.Update(ctx, bot); err != nil {
		return nil, util.ErrInternalServer("Failed to stop bot")
	}

	if err := s.stop.Publish(ctx, redis.StopChannel, bot.ID); err != nil {
		s.log.WithField("bot_id", bot.ID).Error("Failed to broadcast stop signal", err)
	}
	if err := s.queue.Release(ctx, TradeJobID(bot.ID)); err != nil {
		s.log.WithField("bot_id", bot.ID).Error("Failed to release trade job claim", err)
	}
	return bot, nil
}

// ListByOwner returns the caller's trade events across all bots.
func (s *TradeService) ListByOwner(ctx context.Context, ownerID string) ([]model.Trade, error) {
	trades, err := s.tradeRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to list trades")
	}
	return trades, nil
}

// ListByBot returns trade events for one of the caller's bots.
func (s *TradeService) ListByBot(ctx context.Context, ownerID, botID string) ([]model.Trade, error) {
	if _, err := s.botRepo.GetOwned(ctx, botID, ownerID); err != nil {
		return nil, util.NewAppError(404, util.ErrCodeBotNotFound, "Bot not found")
	}
	trades, err := s.tradeRepo.ListByBot(ctx, botID)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to list trades")
	}
	return trades, nil
}

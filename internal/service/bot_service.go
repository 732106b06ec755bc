package service

import (
	"context"
	"errors"
	"time"

	"strathub/internal/model"
	"strathub/internal/repository"
	"strathub/internal/strategy"
	"strathub/internal/util"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BotService handles bot CRUD with ownership scoping. Another user's bot
// is indistinguishable from a missing one.
type BotService struct {
	botRepo *repository.BotRepository
}

// NewBotService creates a new bot service
func NewBotService(botRepo *repository.BotRepository) *BotService {
	return &BotService{botRepo: botRepo}
}

// Create registers a new bot in PENDING state.
func (s *BotService) Create(ctx context.Context, ownerID string, req *model.CreateBotRequest) (*model.Bot, error) {
	if err := strategy.ValidateParams(req.Strategy, req.Parameters); err != nil {
		return nil, util.ErrValidation("Invalid strategy parameters: " + err.Error())
	}

	bot := &model.Bot{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Strategy:    req.Strategy,
		Parameters:  datatypes.JSONMap(req.Parameters),
		Status:      model.BotStatusPending,
		OwnerID:     ownerID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.botRepo.Create(ctx, bot); err != nil {
		return nil, util.ErrInternalServer("Failed to create bot")
	}
	return bot, nil
}

// Get returns one of the owner's bots.
func (s *BotService) Get(ctx context.Context, ownerID, botID string) (*model.Bot, error) {
	bot, err := s.botRepo.GetOwned(ctx, botID, ownerID)
	if err != nil {
		return nil, util.NewAppError(404, util.ErrCodeBotNotFound, "Bot not found")
	}
	return bot, nil
}

// List returns all of the owner's bots.
func (s *BotService) List(ctx context.Context, ownerID string) ([]model.Bot, error) {
	bots, err := s.botRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to list bots")
	}
	return bots, nil
}

// ListPublic returns running bots across all users in their public shape.
func (s *BotService) ListPublic(ctx context.Context) ([]model.PublicBot, error) {
	bots, err := s.botRepo.ListPublic(ctx)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to list public bots")
	}
	return bots, nil
}

// Update edits a bot's description or parameters. Any edit drops the bot
// back to PENDING: prior backtest results no longer vouch for it.
func (s *BotService) Update(ctx context.Context, ownerID, botID string, req *model.UpdateBotRequest) (*model.Bot, error) {
	bot, err := s.botRepo.GetOwned(ctx, botID, ownerID)
	if err != nil {
		return nil, util.NewAppError(404, util.ErrCodeBotNotFound, "Bot not found")
	}

	changed := false
	if req.Description != nil {
		bot.Description = *req.Description
		changed = true
	}
	if req.Parameters != nil {
		if err := strategy.ValidateParams(bot.Strategy, req.Parameters); err != nil {
			return nil, util.ErrValidation("Invalid strategy parameters: " + err.Error())
		}
		bot.Parameters = datatypes.JSONMap(req.Parameters)
		changed = true
	}
	if !changed {
		return bot, nil
	}

	bot.Status = model.BotStatusPending
	bot.UpdatedAt = time.Now()
	if err := s.botRepo.Update(ctx, bot); err != nil {
		return nil, util.ErrInternalServer("Failed to update bot")
	}
	return bot, nil
}

// Toggle flips a running bot between LIVE and PAUSED. Bots in any other
// state are returned unchanged.
func (s *BotService) Toggle(ctx context.Context, ownerID, botID string) (*model.Bot, error) {
	bot, err := s.botRepo.GetOwned(ctx, botID, ownerID)
	if err != nil {
		return nil, util.NewAppError(404, util.ErrCodeBotNotFound, "Bot not found")
	}

	switch bot.Status {
	case model.BotStatusLive:
		bot.Status = model.BotStatusPaused
	case model.BotStatusPaused:
		bot.Status = model.BotStatusLive
	default:
		return bot, nil
	}

	bot.UpdatedAt = time.Now()
	if err := s.botRepo.Update(ctx, bot); err != nil {
		return nil, util.ErrInternalServer("Failed to update bot")
	}
	return bot, nil
}

// Delete removes a bot together with its backtests and trades.
func (s *BotService) Delete(ctx context.Context, ownerID, botID string) error {
	if _, err := s.botRepo.GetOwned(ctx, botID, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return util.NewAppError(404, util.ErrCodeBotNotFound, "Bot not found")
		}
		return util.ErrInternalServer("Failed to load bot")
	}
	if err := s.botRepo.DeleteCascade(ctx, botID); err != nil {
		return util.ErrInternalServer("Failed to delete bot")
	}
	return nil
}

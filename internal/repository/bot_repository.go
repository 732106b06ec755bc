package repository

import (
	"context"
	"errors"

	"strathub/internal/model"

	"gorm.io/gorm"
)

// BotRepository persists Bot records.
type BotRepository struct {
	db *gorm.DB
}

// NewBotRepository creates a new bot repository.
func NewBotRepository(db *gorm.DB) *BotRepository {
	return &BotRepository{db: db}
}

// Create inserts a new bot.
func (r *BotRepository) Create(ctx context.Context, bot *model.Bot) error {
	return r.db.WithContext(ctx).Create(bot).Error
}

// GetByID fetches a bot by id regardless of owner.
func (r *BotRepository) GetByID(ctx context.Context, id string) (*model.Bot, error) {
	var bot model.Bot
	err := r.db.WithContext(ctx).First(&bot, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// GetOwned fetches a bot only when it belongs to the given owner. The
// ownership condition is part of the lookup itself, so a non-owned id
// reads as not-found rather than forbidden.
func (r *BotRepository) GetOwned(ctx context.Context, id, ownerID string) (*model.Bot, error) {
	var bot model.Bot
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&bot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// ListByOwner returns all bots owned by a user.
func (r *BotRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Bot, error) {
	var bots []model.Bot
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&bots).Error
	return bots, err
}

// ListPublic returns every LIVE or PAUSED bot joined with its owner's
// username. Intentionally unscoped: this backs the public listing.
func (r *BotRepository) ListPublic(ctx context.Context) ([]model.PublicBot, error) {
	var rows []model.PublicBot
	err := r.db.WithContext(ctx).Model(&model.Bot{}).
		Select("bots.id, bots.name, bots.description, bots.strategy, bots.status, bots.updated_at, bots.parameters, users.username AS owner_name").
		Joins("JOIN users ON users.id = bots.owner_id").
		Where("bots.status IN ?", []string{model.BotStatusLive, model.BotStatusPaused}).
		Scan(&rows).Error
	return rows, err
}

// Update persists changes to an existing bot.
func (r *BotRepository) Update(ctx context.Context, bot *model.Bot) error {
	return r.db.WithContext(ctx).Save(bot).Error
}

// UpdateStatus sets only the status column.
func (r *BotRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res := r.db.WithContext(ctx).Model(&model.Bot{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCascade removes a bot together with its backtests and trades in
// one transaction.
func (r *BotRepository) DeleteCascade(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bot_id = ?", id).Delete(&model.Backtest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id = ?", id).Delete(&model.Trade{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Bot{}, "id = ?", id).Error
	})
}

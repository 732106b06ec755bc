package repository

import (
	"context"
	"errors"

	"strathub/internal/model"

	"gorm.io/gorm"
)

// BacktestRepository persists Backtest records.
type BacktestRepository struct {
	db *gorm.DB
}

// NewBacktestRepository creates a new backtest repository.
func NewBacktestRepository(db *gorm.DB) *BacktestRepository {
	return &BacktestRepository{db: db}
}

// Create inserts a completed backtest run.
func (r *BacktestRepository) Create(ctx context.Context, backtest *model.Backtest) error {
	return r.db.WithContext(ctx).Create(backtest).Error
}

// LatestByBot returns the most recent backtest for a bot.
func (r *BacktestRepository) LatestByBot(ctx context.Context, botID string) (*model.Backtest, error) {
	var backtest model.Backtest
	err := r.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("created_at DESC").
		First(&backtest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &backtest, nil
}

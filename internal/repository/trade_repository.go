package repository

import (
	"context"

	"strathub/internal/model"

	"gorm.io/gorm"
)

// TradeRepository persists Trade event rows.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new trade repository.
func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create appends one order-lifecycle event.
func (r *TradeRepository) Create(ctx context.Context, trade *model.Trade) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

// ListByOwner returns every trade row belonging to the caller's bots.
func (r *TradeRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Trade, error) {
	var trades []model.Trade
	err := r.db.WithContext(ctx).Model(&model.Trade{}).
		Joins("JOIN bots ON bots.id = trades.bot_id").
		Where("bots.owner_id = ?", ownerID).
		Order("trades.event_timestamp DESC").
		Find(&trades).Error
	return trades, err
}

// NetValueByBot sums the signed cash flow of a bot's fills.
func (r *TradeRepository) NetValueByBot(ctx context.Context, botID string) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&model.Trade{}).
		Select("COALESCE(SUM(trade_value), 0)").
		Where("bot_id = ? AND status IN ?", botID, []string{model.TradeStatusFilled, model.TradeStatusPartialFill}).
		Scan(&total).Error
	return total, err
}

// ListByBot returns all trade rows for one bot.
func (r *TradeRepository) ListByBot(ctx context.Context, botID string) ([]model.Trade, error) {
	var trades []model.Trade
	err := r.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("event_timestamp ASC").
		Find(&trades).Error
	return trades, err
}

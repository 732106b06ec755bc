package model

import "time"

// Trade mode values.
const (
	TradeModePaper = "paper"
	TradeModeLive  = "live"
)

// Trade event status values mirrored from order lifecycle callbacks.
const (
	TradeStatusNew         = "NEW"
	TradeStatusPartialFill = "PARTIAL_FILL"
	TradeStatusFilled      = "FILLED"
	TradeStatusCanceled    = "CANCELED"
)

// Trade is one order-lifecycle event emitted by a running strategy.
// Append-only: rows are never mutated or deleted by the API.
type Trade struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	BotID          string    `gorm:"size:36;index" json:"bot_id"`
	EventTimestamp time.Time `json:"event_timestamp"`
	OrderID        string    `gorm:"size:36" json:"order_id"`
	Symbol         string    `gorm:"size:32" json:"symbol"`
	AssetType      string    `gorm:"size:36" json:"asset_type"`
	OptionRight    string    `gorm:"size:16" json:"option_right"`
	Expiration     time.Time `json:"expiration"`
	Strike         float64   `json:"strike"`
	Multiplier     int       `json:"multiplier"`
	Side           string    `gorm:"size:16" json:"side"`
	Quantity       float64   `json:"quantity"`
	Price          float64   `json:"price"`
	TradeValue     float64   `json:"trade_value"`
	Status         string    `gorm:"size:16" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// RunTradeRequest launches a paper or live trading run for a bot.
type RunTradeRequest struct {
	BotID     string                 `json:"bot_id" binding:"required"`
	Strategy  string                 `json:"strategy" binding:"required,oneof=wheel short_straddle short_strangle"`
	TradeType string                 `json:"trade_type" binding:"required,oneof=paper live"`
	Params    map[string]interface{} `json:"params"`
}

// TradeJob is the queue payload for a trading run. UserID identifies whose
// brokerage credentials the worker loads.
type TradeJob struct {
	BotID     string                 `json:"bot_id"`
	UserID    string                 `json:"user_id"`
	Strategy  string                 `json:"strategy"`
	TradeType string                 `json:"trade_type"`
	Params    map[string]interface{} `json:"params"`
}

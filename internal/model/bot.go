package model

import (
	"time"

	"gorm.io/datatypes"
)

// Bot status values. Status is the only real state machine in the system:
//
//	PENDING/BACKTESTED/STOPPED -> BACKTESTING  (backtest run)
//	BACKTESTING -> BACKTESTED                 (worker completion, best effort)
//	any -> LIVE                               (trade run)
//	LIVE <-> PAUSED                           (explicit toggle only)
//	any -> PENDING                            (on parameter/description edit)
//	LIVE/PAUSED -> STOPPED                    (trade stop)
const (
	BotStatusPending     = "PENDING"
	BotStatusBacktesting = "BACKTESTING"
	BotStatusBacktested  = "BACKTESTED"
	BotStatusLive        = "LIVE"
	BotStatusPaused      = "PAUSED"
	BotStatusStopped     = "STOPPED"
)

// Strategy tags. Each names one of the built-in strategy definitions.
const (
	StrategyWheel         = "wheel"
	StrategyShortStraddle = "short_straddle"
	StrategyShortStrangle = "short_strangle"
)

// ValidStrategy reports whether the tag names a built-in strategy.
func ValidStrategy(tag string) bool {
	switch tag {
	case StrategyWheel, StrategyShortStraddle, StrategyShortStrangle:
		return true
	}
	return false
}

// Bot pairs one of the built-in strategies with an owner and a parameter
// bag interpreted only by that strategy. The owner is immutable after
// creation.
type Bot struct {
	ID          string            `gorm:"primaryKey;size:36" json:"id"`
	Name        string            `gorm:"size:120;index" json:"name"`
	Description string            `gorm:"type:text" json:"description"`
	Strategy    string            `gorm:"size:120" json:"strategy"`
	Parameters  datatypes.JSONMap `json:"parameters"`

	Status string     `gorm:"size:32;default:PENDING" json:"bot_status"`
	StopAt *time.Time `json:"stop_at,omitempty"`

	PaperTradeReturn float64 `gorm:"default:0" json:"paper_trade_return"`
	LiveTradeReturn  float64 `gorm:"default:0" json:"live_trade_return"`

	OwnerID string `gorm:"size:36;index" json:"owner_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Backtests []Backtest `gorm:"foreignKey:BotID" json:"-"`
	Trades    []Trade    `gorm:"foreignKey:BotID" json:"-"`
}

// PublicBot is the shape of the public listing: bot plus owner username,
// no ownership filter.
type PublicBot struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Strategy    string            `json:"strategy"`
	Status      string            `json:"bot_status"`
	OwnerName   string            `json:"owner_name"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Parameters  datatypes.JSONMap `json:"parameters"`
}

// CreateBotRequest represents a bot creation request.
type CreateBotRequest struct {
	Name        string                 `json:"name" binding:"required,max=120"`
	Description string                 `json:"description"`
	Strategy    string                 `json:"strategy" binding:"required,oneof=wheel short_straddle short_strangle"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// UpdateBotRequest represents a partial bot update. Only description and
// parameters are mutable; any edit resets status to PENDING.
type UpdateBotRequest struct {
	Description *string                `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

// Backtest is a completed backtest run. Created only by the worker on job
// completion and never mutated afterward. The API surfaces only the most
// recent run per bot.
type Backtest struct {
	ID        string            `gorm:"primaryKey;size:36" json:"id"`
	BotID     string            `gorm:"size:36;index" json:"bot_id"`
	StartDate time.Time         `json:"start_date"`
	EndDate   time.Time         `json:"end_date"`
	CreatedAt time.Time         `json:"created_at"`
	Results   datatypes.JSONMap `json:"results"`
}

// RunBacktestRequest queues a backtest for a bot.
type RunBacktestRequest struct {
	BotID            string                 `json:"bot_id" binding:"required"`
	Strategy         string                 `json:"strategy" binding:"required,oneof=wheel short_straddle short_strangle"`
	BacktestingStart time.Time              `json:"backtesting_start" binding:"required"`
	BacktestingEnd   time.Time              `json:"backtesting_end" binding:"required"`
	Params           map[string]interface{} `json:"params"`
}

// BacktestJob is the queue payload for a backtest run.
type BacktestJob struct {
	BotID    string                 `json:"bot_id"`
	Strategy string                 `json:"strategy"`
	Start    time.Time              `json:"start"`
	End      time.Time              `json:"end"`
	Params   map[string]interface{} `json:"params"`
}

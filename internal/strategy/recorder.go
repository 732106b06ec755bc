package strategy

import (
	"context"
	"time"

	"strathub/internal/model"
	"strathub/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeWriter persists order-lifecycle events. Satisfied by the trade
// repository.
type TradeWriter interface {
	Create(ctx context.Context, trade *model.Trade) error
}

// Recorder mirrors a strategy's order events into trade rows. Persistence
// failures are logged and swallowed so a database hiccup never interrupts
// a live run.
type Recorder struct {
	trades TradeWriter
	botID  string
	log    *logger.Logger
}

// NewRecorder builds a recorder for one bot's run.
func NewRecorder(trades TradeWriter, botID string, log *logger.Logger) *Recorder {
	return &Recorder{trades: trades, botID: botID, log: log}
}

// Record writes one event as a trade row.
func (r *Recorder) Record(ctx context.Context, event OrderEvent) {
	trade := eventToTrade(r.botID, event)
	if err := r.trades.Create(ctx, trade); err != nil {
		r.log.WithFields(map[string]interface{}{
			"bot_id":   r.botID,
			"order_id": event.Order.ID,
			"status":   event.Status,
		}).Error("Failed to record trade event", err)
	}
}

// eventToTrade maps an order event onto the trade schema. Trade value is
// the signed cash flow: buys negative, sells positive, and only fills
// carry value.
func eventToTrade(botID string, event OrderEvent) *model.Trade {
	asset := event.Order.Asset

	multiplier := event.Multiplier
	if multiplier == 0 {
		multiplier = asset.Multiplier
	}
	if multiplier == 0 {
		multiplier = 1
	}

	value := decimal.Zero
	if event.Status == model.TradeStatusFilled || event.Status == model.TradeStatusPartialFill {
		value = decimal.NewFromFloat(event.Price).
			Mul(decimal.NewFromFloat(event.Quantity)).
			Mul(decimal.NewFromInt(int64(multiplier)))
		if event.Order.Side == SideBuyToClose {
			value = value.Neg()
		}
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	tradeValue, _ := value.Round(2).Float64()
	return &model.Trade{
		ID:             uuid.New().String(),
		BotID:          botID,
		EventTimestamp: ts,
		OrderID:        event.Order.ID,
		Symbol:         asset.Symbol,
		AssetType:      asset.Type,
		OptionRight:    asset.Right,
		Expiration:     asset.Expiration,
		Strike:         asset.Strike,
		Multiplier:     multiplier,
		Side:           event.Order.Side,
		Quantity:       event.Quantity,
		Price:          event.Price,
		TradeValue:     tradeValue,
		Status:         event.Status,
	}
}

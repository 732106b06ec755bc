package backtest

import (
	"context"
	"math"

	"strathub/internal/model"
	"strathub/internal/strategy"
	"strathub/pkg/logger"
)

// EquityPoint is one mark-to-market sample on the equity curve.
type EquityPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Result summarizes a completed backtest run.
type Result struct {
	Symbol          string        `json:"symbol"`
	StartDate       string        `json:"start_date"`
	EndDate         string        `json:"end_date"`
	StartingCapital float64       `json:"starting_capital"`
	FinalValue      float64       `json:"final_value"`
	TotalReturnPct  float64       `json:"total_return_pct"`
	MaxDrawdownPct  float64       `json:"max_drawdown_pct"`
	TradeCount      int           `json:"trade_count"`
	FeesPaid        float64       `json:"fees_paid"`
	EquityCurve     []EquityPoint `json:"equity_curve"`

	// UnderlyingLastClose is the symbol's most recent daily close at run
	// time, for comparing the tested window against today's market.
	UnderlyingLastClose float64 `json:"underlying_last_close,omitempty"`
}

// ToPayload flattens the result into plain JSON scalars for storage.
func (r *Result) ToPayload() map[string]interface{} {
	curve := make([]interface{}, 0, len(r.EquityCurve))
	for _, p := range r.EquityCurve {
		curve = append(curve, map[string]interface{}{"date": p.Date, "value": round2(p.Value)})
	}
	payload := map[string]interface{}{
		"symbol":           r.Symbol,
		"start_date":       r.StartDate,
		"end_date":         r.EndDate,
		"starting_capital": r.StartingCapital,
		"final_value":      round2(r.FinalValue),
		"total_return_pct": round2(r.TotalReturnPct),
		"max_drawdown_pct": round2(r.MaxDrawdownPct),
		"trade_count":      float64(r.TradeCount),
		"fees_paid":        round2(r.FeesPaid),
		"equity_curve":     curve,
	}
	if r.UnderlyingLastClose > 0 {
		payload["underlying_last_close"] = round2(r.UnderlyingLastClose)
	}
	return payload
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Run replays a strategy over the simulator's bar series: one interval
// per trading day, order events delivered after each interval, options
// settled as expirations pass.
func Run(ctx context.Context, sim *Simulator, strat strategy.Strategy, log *logger.Logger) (*Result, error) {
	result := &Result{
		Symbol:          sim.symbol,
		StartingCapital: StartingCapital,
	}
	if len(sim.bars) == 0 {
		result.FinalValue = StartingCapital
		return result, nil
	}
	result.StartDate = sim.bars[0].Date.Format("2006-01-02")
	result.EndDate = sim.bars[len(sim.bars)-1].Date.Format("2006-01-02")

	peak := StartingCapital
	for i := range sim.bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sim.cursor = i
		sim.settleExpirations()

		if err := strat.OnInterval(ctx, sim); err != nil {
			return nil, err
		}
		for _, event := range sim.drainEvents() {
			strat.OnOrderEvent(ctx, event)
			if event.Status == model.TradeStatusFilled {
				result.TradeCount++
			}
		}

		value := sim.portfolioValue()
		result.EquityCurve = append(result.EquityCurve, EquityPoint{
			Date:  sim.Now().Format("2006-01-02"),
			Value: value,
		})
		if value > peak {
			peak = value
		}
		if peak > 0 {
			if drawdown := (peak - value) / peak * 100; drawdown > result.MaxDrawdownPct {
				result.MaxDrawdownPct = drawdown
			}
		}
	}

	result.FinalValue = sim.portfolioValue()
	result.TotalReturnPct = (result.FinalValue - StartingCapital) / StartingCapital * 100
	result.FeesPaid = sim.fees

	log.Infof("Backtest complete for %s: final value %.2f, return %.2f%%, %d trades",
		result.Symbol, result.FinalValue, result.TotalReturnPct, result.TradeCount)
	return result, nil
}

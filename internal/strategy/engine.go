package strategy

import (
	"context"
	"sort"
	"time"
)

// Asset types.
const (
	AssetTypeStock  = "stock"
	AssetTypeOption = "option"
)

// Option rights.
const (
	RightCall = "CALL"
	RightPut  = "PUT"
)

// Order sides.
const (
	SideSellToOpen = "SELL_TO_OPEN"
	SideBuyToClose = "BUY_TO_CLOSE"
)

// Asset identifies a stock or a single option contract (one leg).
type Asset struct {
	Symbol     string
	Type       string
	Expiration time.Time
	Strike     float64
	Right      string
	Multiplier int
}

// Stock builds a stock asset.
func Stock(symbol string) Asset {
	return Asset{Symbol: symbol, Type: AssetTypeStock, Multiplier: 1}
}

// Option builds an option-contract asset.
func Option(symbol string, expiration time.Time, strike float64, right string) Asset {
	return Asset{
		Symbol:     symbol,
		Type:       AssetTypeOption,
		Expiration: expiration,
		Strike:     strike,
		Right:      right,
		Multiplier: 100,
	}
}

// Position is an open holding reported by the engine.
type Position struct {
	Asset    Asset
	Quantity float64
}

// Order is a request against the engine. Quantity is always positive; the
// side carries direction.
type Order struct {
	ID         string
	Asset      Asset
	Side       string
	Quantity   float64
	LimitPrice float64 // 0 means market
}

// Quote is a two-sided price.
type Quote struct {
	Bid float64
	Ask float64
}

// Mid returns the quote midpoint, or 0 when either side is missing.
func (q Quote) Mid() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0
	}
	return (q.Bid + q.Ask) / 2
}

// Chains holds the listed expirations and strikes for an underlying,
// keyed by expiration date in 2006-01-02 form.
type Chains struct {
	Calls map[string][]float64
	Puts  map[string][]float64
}

// StrikesFor returns the strike list for an expiration and right.
func (c *Chains) StrikesFor(expiration time.Time, right string) []float64 {
	key := expiration.Format("2006-01-02")
	if right == RightPut {
		return c.Puts[key]
	}
	return c.Calls[key]
}

// ExpirationOnOrAfter returns the earliest listed expiration at or after
// the target date, or the zero time when none qualifies.
func (c *Chains) ExpirationOnOrAfter(target time.Time, right string) time.Time {
	source := c.Calls
	if right == RightPut {
		source = c.Puts
	}
	keys := make([]string, 0, len(source))
	for k := range source {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	targetKey := target.Format("2006-01-02")
	for _, k := range keys {
		if k >= targetKey {
			exp, err := time.Parse("2006-01-02", k)
			if err != nil {
				continue
			}
			return exp
		}
	}
	return time.Time{}
}

// OrderEvent is one order-lifecycle transition delivered by the engine.
type OrderEvent struct {
	Order      Order
	Status     string // NEW, PARTIAL_FILL, FILLED, CANCELED
	Price      float64
	Quantity   float64
	Multiplier int
	Timestamp  time.Time
}

// Engine is the trading runtime a strategy drives: the live brokerage
// gateway in a trading run, the simulator in a backtest. Strategies treat
// it as an opaque collaborator.
type Engine interface {
	// Now is the engine clock: wall time live, simulated time in backtests.
	Now() time.Time
	Cash(ctx context.Context) (float64, error)
	Positions(ctx context.Context) ([]Position, error)
	LastPrice(ctx context.Context, asset Asset) (float64, error)
	Quote(ctx context.Context, asset Asset) (Quote, error)
	Chains(ctx context.Context, symbol string) (*Chains, error)
	// StrikeForDelta resolves the listed strike whose delta is nearest the
	// target. Delta sign follows convention: puts negative, calls positive.
	StrikeForDelta(ctx context.Context, symbol string, spot, targetDelta float64, expiration time.Time, right string) (float64, error)
	SubmitOrders(ctx context.Context, orders []*Order) error
}

// Strategy is one of the built-in strategy definitions. OnInterval runs
// once per trading interval; OnOrderEvent receives every order-lifecycle
// callback.
type Strategy interface {
	Name() string
	OnInterval(ctx context.Context, eng Engine) error
	OnOrderEvent(ctx context.Context, event OrderEvent)
}

// NearestStrike snaps a target to the closest listed strike. Returns 0
// when the list is empty.
func NearestStrike(strikes []float64, target float64) float64 {
	if len(strikes) == 0 {
		return 0
	}
	best := strikes[0]
	for _, s := range strikes[1:] {
		if abs(s-target) < abs(best-target) {
			best = s
		}
	}
	return best
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// openOptionLegs filters positions to option-type holdings, optionally on
// one underlying.
func openOptionLegs(positions []Position, symbol string) []Position {
	var legs []Position
	for _, p := range positions {
		if p.Asset.Type != AssetTypeOption {
			continue
		}
		if symbol != "" && p.Asset.Symbol != symbol {
			continue
		}
		legs = append(legs, p)
	}
	return legs
}

// daysToExpiration computes whole days between now and an expiry date.
func daysToExpiration(now, expiration time.Time) int {
	return int(expiration.Sub(now).Hours() / 24)
}

package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"strathub/internal/model"
	"strathub/internal/strategy"
	"strathub/pkg/polygon"
)

const (
	// StartingCapital is the fixed simulated account budget.
	StartingCapital = 100_000.0

	// feeRate is charged on notional per side.
	feeRate = 0.001

	// impliedVol drives the naive option pricing model.
	impliedVol = 0.20
)

// Simulator implements strategy.Engine over historical daily bars. Option
// chains come from listed contracts when supplied, otherwise from a
// synthetic grid around spot; option fills use a naive
// intrinsic-plus-time-value model.
type Simulator struct {
	symbol    string
	bars      []polygon.Bar
	contracts []polygon.Contract
	cursor    int

	cash      float64
	positions map[string]*strategy.Position
	fees      float64

	events []strategy.OrderEvent
}

// NewSimulator builds a simulator over a bar series. The series must be
// sorted ascending by date.
func NewSimulator(symbol string, bars []polygon.Bar) *Simulator {
	return &Simulator{
		symbol:    symbol,
		bars:      bars,
		cash:      StartingCapital,
		positions: map[string]*strategy.Position{},
	}
}

// SetListedContracts supplies real listed contracts for chain lookups.
// Without them Chains falls back to the synthetic grid.
func (s *Simulator) SetListedContracts(contracts []polygon.Contract) {
	s.contracts = contracts
}

func positionKey(asset strategy.Asset) string {
	if asset.Type == strategy.AssetTypeStock {
		return asset.Symbol
	}
	return fmt.Sprintf("%s|%s|%s|%g", asset.Symbol, asset.Expiration.Format("2006-01-02"), asset.Right, asset.Strike)
}

func (s *Simulator) Now() time.Time {
	return s.bars[s.cursor].Date
}

func (s *Simulator) spot() float64 {
	return s.bars[s.cursor].Close
}

func (s *Simulator) Cash(ctx context.Context) (float64, error) {
	return s.cash, nil
}

func (s *Simulator) Positions(ctx context.Context) ([]strategy.Position, error) {
	out := make([]strategy.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if p.Quantity != 0 {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Simulator) LastPrice(ctx context.Context, asset strategy.Asset) (float64, error) {
	if asset.Type == strategy.AssetTypeStock {
		if asset.Symbol != s.symbol {
			return 0, fmt.Errorf("no data for %s", asset.Symbol)
		}
		return s.spot(), nil
	}
	return s.optionPrice(asset), nil
}

func (s *Simulator) Quote(ctx context.Context, asset strategy.Asset) (strategy.Quote, error) {
	price, err := s.LastPrice(ctx, asset)
	if err != nil {
		return strategy.Quote{}, err
	}
	// Symmetric 2% spread around model price.
	return strategy.Quote{Bid: price * 0.99, Ask: price * 1.01}, nil
}

// Chains returns the listed expirations and strikes within the next 90
// days. Without listed contracts it generates weekly Friday expirations
// with strikes laid out around current spot.
func (s *Simulator) Chains(ctx context.Context, symbol string) (*strategy.Chains, error) {
	if symbol != s.symbol {
		return nil, fmt.Errorf("no chains for %s", symbol)
	}

	now := s.Now()
	horizon := now.AddDate(0, 0, 90)

	chains := &strategy.Chains{
		Calls: map[string][]float64{},
		Puts:  map[string][]float64{},
	}
	for _, contract := range s.contracts {
		if !contract.Expiration.After(now) || contract.Expiration.After(horizon) {
			continue
		}
		key := contract.Expiration.Format("2006-01-02")
		switch contract.Right {
		case "call":
			chains.Calls[key] = append(chains.Calls[key], contract.Strike)
		case "put":
			chains.Puts[key] = append(chains.Puts[key], contract.Strike)
		}
	}
	if len(chains.Calls) > 0 || len(chains.Puts) > 0 {
		for _, strikes := range chains.Calls {
			sort.Float64s(strikes)
		}
		for _, strikes := range chains.Puts {
			sort.Float64s(strikes)
		}
		return chains, nil
	}

	strikes := syntheticStrikes(s.spot())
	for d := now.AddDate(0, 0, 1); d.Before(horizon); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Friday {
			continue
		}
		key := d.Format("2006-01-02")
		chains.Calls[key] = strikes
		chains.Puts[key] = strikes
	}
	return chains, nil
}

// syntheticStrikes spaces strikes at ~1% of spot across ±30%.
func syntheticStrikes(spot float64) []float64 {
	step := math.Max(math.Round(spot/100), 1)
	var strikes []float64
	for k := math.Round(spot * 0.70); k <= spot*1.30; k += step {
		strikes = append(strikes, k)
	}
	return strikes
}

// StrikeForDelta inverts the pricing model's delta across the synthetic
// strike grid and returns the closest match.
func (s *Simulator) StrikeForDelta(ctx context.Context, symbol string, spot, targetDelta float64, expiration time.Time, right string) (float64, error) {
	if symbol != s.symbol {
		return 0, fmt.Errorf("no chains for %s", symbol)
	}

	years := yearsBetween(s.Now(), expiration)
	best, bestDiff := 0.0, math.MaxFloat64
	for _, strike := range syntheticStrikes(spot) {
		delta := modelDelta(spot, strike, years, right)
		if diff := math.Abs(delta - targetDelta); diff < bestDiff {
			best, bestDiff = strike, diff
		}
	}
	if best == 0 {
		return 0, fmt.Errorf("no strike for delta %g", targetDelta)
	}
	return best, nil
}

// SubmitOrders fills every order immediately at the model price (or the
// limit when one is set), charging the per-side fee on notional.
func (s *Simulator) SubmitOrders(ctx context.Context, orders []*strategy.Order) error {
	for _, order := range orders {
		price := order.LimitPrice
		if price <= 0 {
			p, err := s.LastPrice(ctx, order.Asset)
			if err != nil {
				return err
			}
			price = p
		}

		multiplier := order.Asset.Multiplier
		if multiplier == 0 {
			multiplier = 1
		}
		notional := price * order.Quantity * float64(multiplier)
		fee := notional * feeRate

		s.emit(strategy.OrderEvent{
			Order: *order, Status: model.TradeStatusNew, Multiplier: multiplier, Timestamp: s.Now(),
		})

		switch order.Side {
		case strategy.SideSellToOpen:
			s.cash += notional - fee
			s.adjustPosition(order.Asset, -order.Quantity)
		case strategy.SideBuyToClose:
			s.cash -= notional + fee
			s.adjustPosition(order.Asset, order.Quantity)
		default:
			return fmt.Errorf("unsupported order side %q", order.Side)
		}
		s.fees += fee

		s.emit(strategy.OrderEvent{
			Order: *order, Status: model.TradeStatusFilled, Price: price,
			Quantity: order.Quantity, Multiplier: multiplier, Timestamp: s.Now(),
		})
	}
	return nil
}

func (s *Simulator) emit(event strategy.OrderEvent) {
	s.events = append(s.events, event)
}

// drainEvents returns and clears the pending order events.
func (s *Simulator) drainEvents() []strategy.OrderEvent {
	events := s.events
	s.events = nil
	return events
}

func (s *Simulator) adjustPosition(asset strategy.Asset, delta float64) {
	key := positionKey(asset)
	pos, ok := s.positions[key]
	if !ok {
		pos = &strategy.Position{Asset: asset}
		s.positions[key] = pos
	}
	pos.Quantity += delta
	if pos.Quantity == 0 {
		delete(s.positions, key)
	}
}

// settleExpirations exercises or expires option positions whose expiry
// has passed. Short puts assign shares at strike; short calls deliver
// them away.
func (s *Simulator) settleExpirations() {
	now := s.Now()
	spot := s.spot()

	for key, pos := range s.positions {
		if pos.Asset.Type != strategy.AssetTypeOption || pos.Asset.Expiration.After(now) {
			continue
		}

		contracts := math.Abs(pos.Quantity)
		shares := contracts * float64(pos.Asset.Multiplier)
		strike := pos.Asset.Strike

		switch {
		case pos.Asset.Right == strategy.RightPut && spot < strike:
			// Assigned: buy shares at strike.
			s.cash -= strike * shares
			s.adjustPosition(strategy.Stock(pos.Asset.Symbol), shares)
		case pos.Asset.Right == strategy.RightCall && spot > strike:
			// Called away: deliver shares at strike.
			s.cash += strike * shares
			s.adjustPosition(strategy.Stock(pos.Asset.Symbol), -shares)
		}
		delete(s.positions, key)
	}
}

// portfolioValue marks the account to the current bar.
func (s *Simulator) portfolioValue() float64 {
	value := s.cash
	for _, pos := range s.positions {
		switch pos.Asset.Type {
		case strategy.AssetTypeStock:
			value += pos.Quantity * s.spot()
		case strategy.AssetTypeOption:
			value += pos.Quantity * s.optionPrice(pos.Asset) * float64(pos.Asset.Multiplier)
		}
	}
	return value
}

// optionPrice is a naive model: intrinsic value plus an ATM time-value
// approximation decayed by moneyness distance.
func (s *Simulator) optionPrice(asset strategy.Asset) float64 {
	spot := s.spot()
	years := yearsBetween(s.Now(), asset.Expiration)
	if years < 0 {
		years = 0
	}

	var intrinsic float64
	if asset.Right == strategy.RightCall {
		intrinsic = math.Max(spot-asset.Strike, 0)
	} else {
		intrinsic = math.Max(asset.Strike-spot, 0)
	}

	// Brenner-Subrahmanyam ATM approximation, decayed away from the money.
	atmTimeValue := 0.4 * spot * impliedVol * math.Sqrt(years)
	moneyness := math.Abs(asset.Strike-spot) / spot
	timeValue := atmTimeValue * math.Exp(-8*moneyness)

	price := intrinsic + timeValue
	if price < 0.01 {
		price = 0.01
	}
	return price
}

// modelDelta approximates Black-Scholes delta under the fixed vol.
func modelDelta(spot, strike, years float64, right string) float64 {
	if years <= 0 || strike <= 0 {
		years = 1.0 / 365
	}
	d1 := (math.Log(spot/strike) + 0.5*impliedVol*impliedVol*years) / (impliedVol * math.Sqrt(years))
	callDelta := 0.5 * (1 + math.Erf(d1/math.Sqrt2))
	if right == strategy.RightPut {
		return callDelta - 1
	}
	return callDelta
}

func yearsBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24 / 365
}

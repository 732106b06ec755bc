package strategy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"strathub/internal/model"
	"strathub/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine is a scripted engine for exercising strategies without a
// brokerage connection.
type fakeEngine struct {
	now        time.Time
	cash       float64
	positions  []Position
	lastPrices map[string]float64
	quotes     map[string]Quote
	chains     *Chains
	deltaBy    map[string]float64

	submitted [][]*Order
	submitErr error
}

func (f *fakeEngine) Now() time.Time { return f.now }

func (f *fakeEngine) Cash(ctx context.Context) (float64, error) { return f.cash, nil }

func (f *fakeEngine) Positions(ctx context.Context) ([]Position, error) {
	return f.positions, nil
}

func (f *fakeEngine) LastPrice(ctx context.Context, asset Asset) (float64, error) {
	price, ok := f.lastPrices[priceKey(asset)]
	if !ok {
		return 0, errors.New("no price")
	}
	return price, nil
}

func (f *fakeEngine) Quote(ctx context.Context, asset Asset) (Quote, error) {
	q, ok := f.quotes[priceKey(asset)]
	if !ok {
		return Quote{}, errors.New("no quote")
	}
	return q, nil
}

func (f *fakeEngine) Chains(ctx context.Context, symbol string) (*Chains, error) {
	if f.chains == nil {
		return nil, errors.New("no chains")
	}
	return f.chains, nil
}

func (f *fakeEngine) StrikeForDelta(ctx context.Context, symbol string, spot, targetDelta float64, expiration time.Time, right string) (float64, error) {
	strike, ok := f.deltaBy[right]
	if !ok {
		return 0, errors.New("no strike for delta")
	}
	return strike, nil
}

func (f *fakeEngine) SubmitOrders(ctx context.Context, orders []*Order) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, orders)
	return nil
}

func priceKey(asset Asset) string {
	if asset.Type == AssetTypeStock {
		return asset.Symbol
	}
	return fmt.Sprintf("%s|%s|%s|%g", asset.Symbol, asset.Expiration.Format("2006-01-02"), asset.Right, asset.Strike)
}

// memoryTrades collects recorded trades in memory.
type memoryTrades struct {
	rows []*model.Trade
	err  error
}

func (m *memoryTrades) Create(ctx context.Context, trade *model.Trade) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, trade)
	return nil
}

func testRecorder(trades *memoryTrades) *Recorder {
	return NewRecorder(trades, "bot-1", logger.Nop())
}

func chainsWith(expiry string, strikes ...float64) *Chains {
	return &Chains{
		Calls: map[string][]float64{expiry: strikes},
		Puts:  map[string][]float64{expiry: strikes},
	}
}

func TestValidateParams_RejectsUnknownKeys(t *testing.T) {
	err := ValidateParams(model.StrategyWheel, map[string]interface{}{
		"symbol":  "SPY",
		"bogus":   true,
		"dte_min": 21,
	})
	assert.Error(t, err)
}

func TestValidateParams_AcceptsIntegers(t *testing.T) {
	err := ValidateParams(model.StrategyShortStrangle, map[string]interface{}{
		"underlying_symbol": "QQQ",
		"dte_target":        45,
		"strike_buffer_pct": 0.07,
	})
	assert.NoError(t, err)
}

func TestDecodeStrangleParams_Defaults(t *testing.T) {
	p, err := DecodeStrangleParams(map[string]interface{}{"dte_target": float64(45)})
	require.NoError(t, err)
	assert.Equal(t, "SPY", p.UnderlyingSymbol)
	assert.Equal(t, 45, p.DTETarget)
	assert.Equal(t, 0.05, p.StrikeBufferPct)
	assert.Equal(t, 3, p.ExitDaysBeforeExp)
}

func TestNearestStrike(t *testing.T) {
	strikes := []float64{400, 405, 410, 415}
	assert.Equal(t, 410.0, NearestStrike(strikes, 411.2))
	assert.Equal(t, 400.0, NearestStrike(strikes, 10))
	assert.Equal(t, 0.0, NearestStrike(nil, 400))
}

func TestChains_ExpirationOnOrAfter(t *testing.T) {
	c := &Chains{Calls: map[string][]float64{
		"2026-09-04": {100},
		"2026-09-18": {100},
	}}
	target := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	exp := c.ExpirationOnOrAfter(target, RightCall)
	assert.Equal(t, "2026-09-18", exp.Format("2006-01-02"))

	past := c.ExpirationOnOrAfter(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), RightCall)
	assert.True(t, past.IsZero())
}

func TestShortStrangle_OpensBothLegs(t *testing.T) {
	now := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	expiry := "2026-09-04"
	eng := &fakeEngine{
		now:        now,
		lastPrices: map[string]float64{"SPY": 500},
		chains:     chainsWith(expiry, 450, 475, 500, 525, 550),
		quotes:     map[string]Quote{},
	}
	// Quote every option the strategy could ask for.
	expTime, _ := time.Parse("2006-01-02", expiry)
	for _, strike := range []float64{450, 475, 500, 525, 550} {
		for _, right := range []string{RightCall, RightPut} {
			eng.quotes[priceKey(Option("SPY", expTime, strike, right))] = Quote{Bid: 1.9, Ask: 2.1}
		}
	}

	trades := &memoryTrades{}
	p, err := DecodeStrangleParams(nil)
	require.NoError(t, err)
	s := NewShortStrangle(p, testRecorder(trades), logger.Nop())

	require.NoError(t, s.OnInterval(context.Background(), eng))
	require.Len(t, eng.submitted, 1)
	orders := eng.submitted[0]
	require.Len(t, orders, 2)

	assert.Equal(t, SideSellToOpen, orders[0].Side)
	assert.Equal(t, RightCall, orders[0].Asset.Right)
	assert.Equal(t, 525.0, orders[0].Asset.Strike) // 500 * 1.05
	assert.Equal(t, RightPut, orders[1].Asset.Right)
	assert.Equal(t, 475.0, orders[1].Asset.Strike) // 500 * 0.95

	// Second interval on the same day must not resubmit.
	eng.positions = nil
	require.NoError(t, s.OnInterval(context.Background(), eng))
	assert.Len(t, eng.submitted, 1)
}

func TestShortStrangle_ClosesNearExpiry(t *testing.T) {
	now := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	expiry := now.AddDate(0, 0, 2)
	eng := &fakeEngine{
		now: now,
		positions: []Position{
			{Asset: Option("SPY", expiry, 525, RightCall), Quantity: -1},
			{Asset: Option("SPY", expiry, 475, RightPut), Quantity: -1},
		},
	}

	p, err := DecodeStrangleParams(nil)
	require.NoError(t, err)
	s := NewShortStrangle(p, testRecorder(&memoryTrades{}), logger.Nop())

	require.NoError(t, s.OnInterval(context.Background(), eng))
	require.Len(t, eng.submitted, 1)
	for _, order := range eng.submitted[0] {
		assert.Equal(t, SideBuyToClose, order.Side)
		assert.Equal(t, 1.0, order.Quantity)
	}
}

func TestShortStrangle_HoldsWhenExpiryFar(t *testing.T) {
	now := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	eng := &fakeEngine{
		now: now,
		positions: []Position{
			{Asset: Option("SPY", now.AddDate(0, 0, 20), 525, RightCall), Quantity: -1},
		},
	}

	p, err := DecodeStrangleParams(nil)
	require.NoError(t, err)
	s := NewShortStrangle(p, testRecorder(&memoryTrades{}), logger.Nop())

	require.NoError(t, s.OnInterval(context.Background(), eng))
	assert.Empty(t, eng.submitted)
}

func TestShortStraddle_PicksLiquidATMStrike(t *testing.T) {
	now := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	expiry := "2026-08-14"
	expTime, _ := time.Parse("2006-01-02", expiry)
	eng := &fakeEngine{
		now:        now,
		lastPrices: map[string]float64{"SPY": 500},
		chains:     chainsWith(expiry, 495, 500, 510),
		quotes:     map[string]Quote{},
	}
	// The true ATM strike has no price data; 495 is the nearest liquid one.
	for _, strike := range []float64{495, 510} {
		for _, right := range []string{RightCall, RightPut} {
			leg := Option("SPY", expTime, strike, right)
			eng.lastPrices[priceKey(leg)] = 2.0
			eng.quotes[priceKey(leg)] = Quote{Bid: 1.9, Ask: 2.1}
		}
	}

	p, err := DecodeStraddleParams(nil)
	require.NoError(t, err)
	s := NewShortStraddle(p, testRecorder(&memoryTrades{}), logger.Nop())

	require.NoError(t, s.OnInterval(context.Background(), eng))
	require.Len(t, eng.submitted, 1)
	orders := eng.submitted[0]
	require.Len(t, orders, 2)
	assert.Equal(t, 495.0, orders[0].Asset.Strike)
	assert.Equal(t, orders[0].Asset.Strike, orders[1].Asset.Strike)
	// limit_type=mid puts a midpoint limit on both legs.
	assert.InDelta(t, 2.0, orders[0].LimitPrice, 1e-9)
}

func TestShortStraddle_OncePerDay(t *testing.T) {
	now := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	expiry := "2026-08-14"
	expTime, _ := time.Parse("2006-01-02", expiry)
	eng := &fakeEngine{
		now:        now,
		lastPrices: map[string]float64{"SPY": 500},
		chains:     chainsWith(expiry, 500),
		quotes:     map[string]Quote{},
	}
	for _, right := range []string{RightCall, RightPut} {
		leg := Option("SPY", expTime, 500, right)
		eng.lastPrices[priceKey(leg)] = 2.0
		eng.quotes[priceKey(leg)] = Quote{Bid: 1.9, Ask: 2.1}
	}

	p, err := DecodeStraddleParams(nil)
	require.NoError(t, err)
	s := NewShortStraddle(p, testRecorder(&memoryTrades{}), logger.Nop())

	require.NoError(t, s.OnInterval(context.Background(), eng))
	require.Len(t, eng.submitted, 1)

	// The opening order sits unfilled, so positions stay empty. A tick
	// later the same day must not resubmit the pair.
	require.NoError(t, s.OnInterval(context.Background(), eng))
	assert.Len(t, eng.submitted, 1)

	// The next day it may try again.
	eng.now = now.AddDate(0, 0, 1)
	require.NoError(t, s.OnInterval(context.Background(), eng))
	assert.Len(t, eng.submitted, 2)
}

func TestShortStraddle_ClosesWithinTwoDays(t *testing.T) {
	now := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	expiry := now.AddDate(0, 0, 1)
	eng := &fakeEngine{
		now:        now,
		lastPrices: map[string]float64{"SPY": 500},
		positions: []Position{
			{Asset: Option("SPY", expiry, 500, RightCall), Quantity: -2},
			{Asset: Option("SPY", expiry, 500, RightPut), Quantity: -2},
		},
	}

	p, err := DecodeStraddleParams(nil)
	require.NoError(t, err)
	s := NewShortStraddle(p, testRecorder(&memoryTrades{}), logger.Nop())

	require.NoError(t, s.OnInterval(context.Background(), eng))
	require.Len(t, eng.submitted, 1)
	require.Len(t, eng.submitted[0], 2)
	assert.Equal(t, 2.0, eng.submitted[0][0].Quantity)
	assert.Equal(t, SideBuyToClose, eng.submitted[0][0].Side)
}

func TestWheel_SellsCashSecuredPutWhenFlat(t *testing.T) {
	now := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	eng := &fakeEngine{
		now:        now,
		cash:       100_000,
		lastPrices: map[string]float64{"SPY": 500},
		chains:     chainsWith(now.AddDate(0, 0, 30).Format("2006-01-02"), 450, 475, 500),
		deltaBy:    map[string]float64{RightPut: 475, RightCall: 525},
	}

	p, err := DecodeWheelParams(nil)
	require.NoError(t, err)
	w := NewWheel(p, testRecorder(&memoryTrades{}), logger.Nop())

	require.NoError(t, w.OnInterval(context.Background(), eng))
	require.Len(t, eng.submitted, 1)
	order := eng.submitted[0][0]
	assert.Equal(t, RightPut, order.Asset.Right)
	assert.Equal(t, SideSellToOpen, order.Side)
	assert.Equal(t, 475.0, order.Asset.Strike)
}

func TestWheel_OncePerDay(t *testing.T) {
	now := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	eng := &fakeEngine{
		now:        now,
		cash:       100_000,
		lastPrices: map[string]float64{"SPY": 500},
		chains:     chainsWith(now.AddDate(0, 0, 30).Format("2006-01-02"), 450, 475, 500),
		deltaBy:    map[string]float64{RightPut: 475, RightCall: 525},
	}

	p, err := DecodeWheelParams(nil)
	require.NoError(t, err)
	w := NewWheel(p, testRecorder(&memoryTrades{}), logger.Nop())

	require.NoError(t, w.OnInterval(context.Background(), eng))
	require.Len(t, eng.submitted, 1)

	// The unfilled put is not a position yet; a same-day tick must not
	// stack a second order.
	require.NoError(t, w.OnInterval(context.Background(), eng))
	assert.Len(t, eng.submitted, 1)

	eng.now = now.AddDate(0, 0, 1)
	require.NoError(t, w.OnInterval(context.Background(), eng))
	assert.Len(t, eng.submitted, 2)
}

func TestWheel_SkipsPutWhenCashShort(t *testing.T) {
	now := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	eng := &fakeEngine{
		now:  now,
		cash: 10_000, // 475 * 100 needed
		lastPrices: map[string]float64{
			"SPY": 500,
		},
		chains:  chainsWith(now.AddDate(0, 0, 30).Format("2006-01-02"), 475),
		deltaBy: map[string]float64{RightPut: 475},
	}

	p, err := DecodeWheelParams(nil)
	require.NoError(t, err)
	w := NewWheel(p, testRecorder(&memoryTrades{}), logger.Nop())

	require.NoError(t, w.OnInterval(context.Background(), eng))
	assert.Empty(t, eng.submitted)
}

func TestWheel_SellsCoveredCallWithShares(t *testing.T) {
	now := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	eng := &fakeEngine{
		now:        now,
		cash:       5_000,
		lastPrices: map[string]float64{"SPY": 500},
		positions:  []Position{{Asset: Stock("SPY"), Quantity: 250}},
		chains:     chainsWith(now.AddDate(0, 0, 30).Format("2006-01-02"), 525),
		deltaBy:    map[string]float64{RightCall: 525},
	}

	p, err := DecodeWheelParams(map[string]interface{}{"contracts": float64(5)})
	require.NoError(t, err)
	w := NewWheel(p, testRecorder(&memoryTrades{}), logger.Nop())

	require.NoError(t, w.OnInterval(context.Background(), eng))
	require.Len(t, eng.submitted, 1)
	order := eng.submitted[0][0]
	assert.Equal(t, RightCall, order.Asset.Right)
	// 250 shares cover only 2 contracts even though 5 were requested.
	assert.Equal(t, 2.0, order.Quantity)
}

func TestWheel_IdlesWhileOptionOpen(t *testing.T) {
	now := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	eng := &fakeEngine{
		now:        now,
		lastPrices: map[string]float64{"SPY": 500},
		positions: []Position{
			{Asset: Option("SPY", now.AddDate(0, 0, 20), 475, RightPut), Quantity: -1},
		},
	}

	p, err := DecodeWheelParams(nil)
	require.NoError(t, err)
	w := NewWheel(p, testRecorder(&memoryTrades{}), logger.Nop())

	require.NoError(t, w.OnInterval(context.Background(), eng))
	assert.Empty(t, eng.submitted)
}

func TestRecorder_SignsTradeValue(t *testing.T) {
	trades := &memoryTrades{}
	rec := testRecorder(trades)
	expiry := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)

	sell := OrderEvent{
		Order:     Order{ID: "o1", Asset: Option("SPY", expiry, 525, RightCall), Side: SideSellToOpen},
		Status:    model.TradeStatusFilled,
		Price:     2.50,
		Quantity:  1,
		Timestamp: expiry.AddDate(0, -1, 0),
	}
	rec.Record(context.Background(), sell)

	buy := sell
	buy.Order.Side = SideBuyToClose
	buy.Status = model.TradeStatusFilled
	rec.Record(context.Background(), buy)

	registered := sell
	registered.Status = model.TradeStatusNew
	registered.Price = 0
	rec.Record(context.Background(), registered)

	require.Len(t, trades.rows, 3)
	assert.Equal(t, 250.0, trades.rows[0].TradeValue)
	assert.Equal(t, -250.0, trades.rows[1].TradeValue)
	assert.Equal(t, 0.0, trades.rows[2].TradeValue)
	assert.Equal(t, 100, trades.rows[0].Multiplier)
	assert.Equal(t, "bot-1", trades.rows[0].BotID)
}

func TestRecorder_SwallowsPersistenceErrors(t *testing.T) {
	trades := &memoryTrades{err: errors.New("db down")}
	rec := testRecorder(trades)

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), OrderEvent{
			Order:  Order{ID: "o1", Asset: Stock("SPY"), Side: SideSellToOpen},
			Status: model.TradeStatusNew,
		})
	})
}

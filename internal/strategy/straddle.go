package strategy

import (
	"context"
	"sort"
	"time"

	"strathub/internal/model"
	"strathub/pkg/logger"

	"github.com/google/uuid"
)

// straddleCloseDTE is the assignment-risk window: an open straddle is
// bought back once it is this close to expiry.
const straddleCloseDTE = 2

// ShortStraddle sells an ATM call and put at the same strike and buys the
// pair back within two days of expiration.
type ShortStraddle struct {
	params   StraddleParams
	recorder *Recorder
	log      *logger.Logger

	// lastAttempt guards against duplicate submissions within one day.
	lastAttempt string
}

// NewShortStraddle builds the strategy from decoded parameters.
func NewShortStraddle(params StraddleParams, recorder *Recorder, log *logger.Logger) *ShortStraddle {
	return &ShortStraddle{params: params, recorder: recorder, log: log}
}

func (s *ShortStraddle) Name() string { return model.StrategyShortStraddle }

func (s *ShortStraddle) OnInterval(ctx context.Context, eng Engine) error {
	now := eng.Now()
	underlying := Stock(s.params.UnderlyingSymbol)

	spot, err := eng.LastPrice(ctx, underlying)
	if err != nil || spot <= 0 {
		s.log.Warnf("Underlying price unavailable: %v", err)
		return nil
	}

	positions, err := eng.Positions(ctx)
	if err != nil {
		return err
	}
	legs := openOptionLegs(positions, "")

	if len(legs) > 0 {
		dte := daysToExpiration(now, legs[0].Asset.Expiration)
		s.log.Infof("Existing straddle expires in %d day(s)", dte)
		if dte <= straddleCloseDTE {
			s.log.Info("Closing straddle near expiration")
			orders := make([]*Order, 0, len(legs))
			for _, leg := range legs {
				orders = append(orders, &Order{
					ID:       uuid.New().String(),
					Asset:    leg.Asset,
					Side:     SideBuyToClose,
					Quantity: abs(leg.Quantity),
				})
			}
			return eng.SubmitOrders(ctx, orders)
		}
		return nil
	}

	today := now.Format("2006-01-02")
	if s.lastAttempt == today {
		s.log.Debug("Already attempted trade today, skipping")
		return nil
	}
	if err := s.openStraddle(ctx, eng, spot); err != nil {
		return err
	}
	s.lastAttempt = today
	return nil
}

func (s *ShortStraddle) openStraddle(ctx context.Context, eng Engine, spot float64) error {
	now := eng.Now()

	chains, err := eng.Chains(ctx, s.params.UnderlyingSymbol)
	if err != nil || chains == nil {
		s.log.Warnf("Could not fetch option chains: %v", err)
		return nil
	}

	target := now.AddDate(0, 0, s.params.DaysToExpiry)
	expiry := chains.ExpirationOnOrAfter(target, RightCall)
	if expiry.IsZero() {
		s.log.Warn("No suitable expiration found, skipping")
		return nil
	}

	strikes := chains.StrikesFor(expiry, RightCall)
	if len(strikes) == 0 {
		s.log.Warn("No strikes available for chosen expiry, skipping")
		return nil
	}

	strike, ok := s.findLiquidATMStrike(ctx, eng, strikes, spot, expiry)
	if !ok {
		s.log.Warn("Could not find a liquid ATM strike with price data, skipping")
		return nil
	}

	s.log.Infof("Opening new short straddle: exp %s | strike %g | underlying %.2f",
		expiry.Format("2006-01-02"), strike, spot)

	qty := float64(s.params.Contracts)
	orders := make([]*Order, 0, 2)
	for _, right := range []string{RightCall, RightPut} {
		leg := Option(s.params.UnderlyingSymbol, expiry, strike, right)
		order := &Order{ID: uuid.New().String(), Asset: leg, Side: SideSellToOpen, Quantity: qty}
		if s.params.LimitType == "mid" {
			quote, err := eng.Quote(ctx, leg)
			if err == nil && quote.Mid() > 0 {
				order.LimitPrice = quote.Mid()
			}
		}
		orders = append(orders, order)
	}
	return eng.SubmitOrders(ctx, orders)
}

// findLiquidATMStrike walks strikes by distance from spot and returns the
// nearest one within 5% that has price data for both the call and the put.
func (s *ShortStraddle) findLiquidATMStrike(ctx context.Context, eng Engine, strikes []float64, spot float64, expiry time.Time) (float64, bool) {
	sorted := append([]float64(nil), strikes...)
	sort.Slice(sorted, func(i, j int) bool {
		return abs(sorted[i]-spot) < abs(sorted[j]-spot)
	})
	for _, strike := range sorted {
		if abs(strike-spot)/spot > 0.05 {
			continue
		}
		call := Option(s.params.UnderlyingSymbol, expiry, strike, RightCall)
		put := Option(s.params.UnderlyingSymbol, expiry, strike, RightPut)
		if _, err := eng.LastPrice(ctx, call); err != nil {
			continue
		}
		if _, err := eng.LastPrice(ctx, put); err != nil {
			continue
		}
		return strike, true
	}
	return 0, false
}

func (s *ShortStraddle) OnOrderEvent(ctx context.Context, event OrderEvent) {
	s.recorder.Record(ctx, event)
}

package strategy

import (
	"context"

	"strathub/internal/model"
	"strathub/pkg/logger"

	"github.com/google/uuid"
)

// ShortStrangle sells an OTM call and put on the underlying and buys both
// legs back a few days before expiry to dodge assignment.
type ShortStrangle struct {
	params   StrangleParams
	recorder *Recorder
	log      *logger.Logger

	// lastAttempt guards against duplicate submissions within one day.
	lastAttempt string
}

// NewShortStrangle builds the strategy from decoded parameters.
func NewShortStrangle(params StrangleParams, recorder *Recorder, log *logger.Logger) *ShortStrangle {
	return &ShortStrangle{params: params, recorder: recorder, log: log}
}

func (s *ShortStrangle) Name() string { return model.StrategyShortStrangle }

func (s *ShortStrangle) OnInterval(ctx context.Context, eng Engine) error {
	now := eng.Now()
	s.log.Debugf("Daily short strangle check for %s", now.Format("2006-01-02"))

	positions, err := eng.Positions(ctx)
	if err != nil {
		return err
	}
	legs := openOptionLegs(positions, "")

	if len(legs) > 0 {
		dte := daysToExpiration(now, legs[0].Asset.Expiration)
		s.log.Infof("Existing strangle detected: %d days to expiry", dte)
		if dte <= s.params.ExitDaysBeforeExp {
			s.log.Info("Exiting strangle to reduce assignment risk")
			return s.closeLegs(ctx, eng, legs)
		}
		return nil
	}

	today := now.Format("2006-01-02")
	if s.lastAttempt == today {
		s.log.Debug("Already attempted trade today, skipping")
		return nil
	}
	if err := s.openStrangle(ctx, eng); err != nil {
		return err
	}
	s.lastAttempt = today
	return nil
}

func (s *ShortStrangle) closeLegs(ctx context.Context, eng Engine, legs []Position) error {
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

func (s *ShortStrangle) openStrangle(ctx context.Context, eng Engine) error {
	now := eng.Now()
	underlying := Stock(s.params.UnderlyingSymbol)

	spot, err := eng.LastPrice(ctx, underlying)
	if err != nil || spot <= 0 {
		s.log.Warnf("Underlying price unavailable: %v", err)
		return nil
	}

	chains, err := eng.Chains(ctx, s.params.UnderlyingSymbol)
	if err != nil || chains == nil {
		s.log.Warnf("Option chains unavailable: %v", err)
		return nil
	}

	target := now.AddDate(0, 0, s.params.DTETarget)
	expiry := chains.ExpirationOnOrAfter(target, RightCall)
	if expiry.IsZero() {
		s.log.Warn("No valid option expiration near target DTE, skipping")
		return nil
	}

	callStrikes := chains.StrikesFor(expiry, RightCall)
	putStrikes := chains.StrikesFor(expiry, RightPut)
	if len(callStrikes) == 0 || len(putStrikes) == 0 {
		s.log.Warnf("Strike lists missing for expiry %s, skipping", expiry.Format("2006-01-02"))
		return nil
	}

	callStrike := NearestStrike(callStrikes, spot*(1+s.params.StrikeBufferPct))
	putStrike := NearestStrike(putStrikes, spot*(1-s.params.StrikeBufferPct))

	callLeg := Option(s.params.UnderlyingSymbol, expiry, callStrike, RightCall)
	putLeg := Option(s.params.UnderlyingSymbol, expiry, putStrike, RightPut)

	callQuote, err := eng.Quote(ctx, callLeg)
	if err != nil || callQuote.Mid() == 0 {
		s.log.Warn("Call quote missing, skipping trade")
		return nil
	}
	putQuote, err := eng.Quote(ctx, putLeg)
	if err != nil || putQuote.Mid() == 0 {
		s.log.Warn("Put quote missing, skipping trade")
		return nil
	}

	qty := float64(s.params.Contracts)
	orders := []*Order{
		{ID: uuid.New().String(), Asset: callLeg, Side: SideSellToOpen, Quantity: qty},
		{ID: uuid.New().String(), Asset: putLeg, Side: SideSellToOpen, Quantity: qty},
	}
	if err := eng.SubmitOrders(ctx, orders); err != nil {
		return err
	}

	s.log.Infof("Submitted short strangle: sold %dx %gP and %dx %gC exp %s",
		s.params.Contracts, putStrike, s.params.Contracts, callStrike, expiry.Format("2006-01-02"))
	return nil
}

func (s *ShortStrangle) OnOrderEvent(ctx context.Context, event OrderEvent) {
	s.recorder.Record(ctx, event)
}

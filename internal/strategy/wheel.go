package strategy

import (
	"context"
	"time"

	"strathub/internal/model"
	"strathub/pkg/logger"

	"github.com/google/uuid"
)

// Wheel phases.
const (
	wheelCycleCashPut     = "cash_put"
	wheelCycleCoveredCall = "covered_call"
)

// Wheel runs the classic wheel: sell cash-secured puts until assigned,
// then sell covered calls against the shares until they are called away.
type Wheel struct {
	params   WheelParams
	recorder *Recorder
	log      *logger.Logger

	cycle string
	// lastAttempt guards against duplicate submissions within one day.
	lastAttempt string
}

// NewWheel builds the strategy from decoded parameters.
func NewWheel(params WheelParams, recorder *Recorder, log *logger.Logger) *Wheel {
	return &Wheel{params: params, recorder: recorder, log: log}
}

func (w *Wheel) Name() string { return model.StrategyWheel }

func (w *Wheel) OnInterval(ctx context.Context, eng Engine) error {
	now := eng.Now()
	w.log.Debugf("Wheel check for %s", now.Format("2006-01-02"))

	underlying := Stock(w.params.Symbol)
	spot, err := eng.LastPrice(ctx, underlying)
	if err != nil || spot <= 0 {
		w.log.Warnf("Underlying price unavailable: %v", err)
		return nil
	}

	positions, err := eng.Positions(ctx)
	if err != nil {
		return err
	}

	var sharesOwned float64
	for _, p := range positions {
		if p.Asset.Type == AssetTypeStock && p.Asset.Symbol == w.params.Symbol {
			sharesOwned = p.Quantity
		}
	}

	// While an option leg is open the wheel idles until it closes or expires.
	if legs := openOptionLegs(positions, w.params.Symbol); len(legs) > 0 {
		w.log.Info("Existing option position found, waiting until it closes or expires")
		return nil
	}

	today := now.Format("2006-01-02")
	if w.lastAttempt == today {
		w.log.Debug("Already attempted trade today, skipping")
		return nil
	}

	if sharesOwned < 100 {
		w.log.Infof("Holding %.0f shares, trying to sell a cash-secured put", sharesOwned)
		if err := w.sellCashSecuredPut(ctx, eng, spot); err != nil {
			return err
		}
		w.cycle = wheelCycleCashPut
		w.lastAttempt = today
		return nil
	}

	w.log.Infof("Holding %.0f shares, trying to sell a covered call", sharesOwned)
	if err := w.sellCoveredCall(ctx, eng, spot, sharesOwned); err != nil {
		return err
	}
	w.cycle = wheelCycleCoveredCall
	w.lastAttempt = today
	return nil
}

// selectExpiration picks an expiry inside the [dte_min, dte_max] window.
func (w *Wheel) selectExpiration(ctx context.Context, eng Engine, right string) (time.Time, bool) {
	now := eng.Now()

	chains, err := eng.Chains(ctx, w.params.Symbol)
	if err != nil || chains == nil {
		w.log.Warnf("Could not retrieve option chains: %v", err)
		return time.Time{}, false
	}

	earliest := now.AddDate(0, 0, w.params.DTEMin)
	latest := now.AddDate(0, 0, w.params.DTEMax)

	expiry := chains.ExpirationOnOrAfter(earliest, right)
	if expiry.IsZero() || expiry.After(latest) {
		w.log.Warn("No suitable expiration in desired DTE window")
		return time.Time{}, false
	}
	return expiry, true
}

func (w *Wheel) sellCashSecuredPut(ctx context.Context, eng Engine, spot float64) error {
	expiry, ok := w.selectExpiration(ctx, eng, RightPut)
	if !ok {
		return nil
	}

	// Puts carry negative delta.
	strike, err := eng.StrikeForDelta(ctx, w.params.Symbol, spot, -abs(w.params.TargetDelta), expiry, RightPut)
	if err != nil || strike <= 0 {
		w.log.Warnf("Could not find strike matching target delta for put: %v", err)
		return nil
	}

	cashNeeded := strike * 100 * float64(w.params.Contracts)
	cash, err := eng.Cash(ctx)
	if err != nil {
		return err
	}
	if cash < cashNeeded {
		w.log.Warnf("Not enough cash ($%.2f) for cash-secured put requiring $%.2f", cash, cashNeeded)
		return nil
	}

	order := &Order{
		ID:       uuid.New().String(),
		Asset:    Option(w.params.Symbol, expiry, strike, RightPut),
		Side:     SideSellToOpen,
		Quantity: float64(w.params.Contracts),
	}
	if err := eng.SubmitOrders(ctx, []*Order{order}); err != nil {
		return err
	}
	w.log.Infof("Placed order: SELL_TO_OPEN %d %g put exp %s", w.params.Contracts, strike, expiry.Format("2006-01-02"))
	return nil
}

func (w *Wheel) sellCoveredCall(ctx context.Context, eng Engine, spot, sharesOwned float64) error {
	expiry, ok := w.selectExpiration(ctx, eng, RightCall)
	if !ok {
		return nil
	}

	strike, err := eng.StrikeForDelta(ctx, w.params.Symbol, spot, abs(w.params.TargetDelta), expiry, RightCall)
	if err != nil || strike <= 0 {
		w.log.Warnf("Could not find strike matching target delta for call: %v", err)
		return nil
	}

	maxContracts := int(sharesOwned) / 100
	contracts := w.params.Contracts
	if maxContracts < contracts {
		contracts = maxContracts
	}
	if contracts == 0 {
		w.log.Info("Not enough shares to cover a contract")
		return nil
	}

	order := &Order{
		ID:       uuid.New().String(),
		Asset:    Option(w.params.Symbol, expiry, strike, RightCall),
		Side:     SideSellToOpen,
		Quantity: float64(contracts),
	}
	if err := eng.SubmitOrders(ctx, []*Order{order}); err != nil {
		return err
	}
	w.log.Infof("Placed order: SELL_TO_OPEN %d %g call exp %s", contracts, strike, expiry.Format("2006-01-02"))
	return nil
}

func (w *Wheel) OnOrderEvent(ctx context.Context, event OrderEvent) {
	w.recorder.Record(ctx, event)
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"strathub/internal/backtest"
	"strathub/internal/model"
	"strathub/internal/queue"
	"strathub/internal/repository"
	"strathub/internal/strategy"
	"strathub/pkg/logger"
	"strathub/pkg/polygon"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BacktestWorker runs queued backtests: historical bars from the market
// data API, the simulator as the engine, and the result persisted as the
// bot's latest backtest.
type BacktestWorker struct {
	bots       *repository.BotRepository
	backtests  *repository.BacktestRepository
	market     *polygon.Client
	reportsDir string
	log        *logger.Logger
}

// NewBacktestWorker creates a backtest worker.
func NewBacktestWorker(
	bots *repository.BotRepository,
	backtests *repository.BacktestRepository,
	market *polygon.Client,
	reportsDir string,
	log *logger.Logger,
) *BacktestWorker {
	return &BacktestWorker{
		bots:       bots,
		backtests:  backtests,
		market:     market,
		reportsDir: reportsDir,
		log:        log,
	}
}

// Handle processes one queued backtest task. A failed run flips the bot
// back to PENDING so the owner can fix the request and retry.
func (w *BacktestWorker) Handle(ctx context.Context, task queue.Task) {
	var job model.BacktestJob
	if err := json.Unmarshal(task.Payload, &job); err != nil {
		w.log.Error("Discarding malformed backtest job", err)
		return
	}

	log := w.log.WithFields(map[string]interface{}{
		"bot_id":   job.BotID,
		"strategy": job.Strategy,
	})
	log.Info("Backtest started")

	result, err := w.run(ctx, job)
	if err != nil {
		log.Error("Backtest failed", err)
		if err := w.bots.UpdateStatus(ctx, job.BotID, model.BotStatusPending); err != nil {
			log.Error("Failed to reset bot status after backtest failure", err)
		}
		return
	}

	record := &model.Backtest{
		ID:        uuid.New().String(),
		BotID:     job.BotID,
		StartDate: job.Start,
		EndDate:   job.End,
		CreatedAt: time.Now(),
		Results:   datatypes.JSONMap(result.ToPayload()),
	}
	if err := w.backtests.Create(ctx, record); err != nil {
		log.Error("Failed to persist backtest result", err)
		if err := w.bots.UpdateStatus(ctx, job.BotID, model.BotStatusPending); err != nil {
			log.Error("Failed to reset bot status after backtest failure", err)
		}
		return
	}

	// The HTML report is a convenience artifact; losing it does not fail
	// the run.
	if path, err := backtest.WriteReport(w.reportsDir, record.ID, result); err != nil {
		log.Error("Failed to write backtest report", err)
	} else {
		log.Infof("Backtest report written to %s", path)
	}

	if err := w.bots.UpdateStatus(ctx, job.BotID, model.BotStatusBacktested); err != nil {
		log.Error("Failed to flip bot to BACKTESTED", err)
	}
	log.Infof("Backtest finished: return %.2f%% over %d trades",
		result.TotalReturnPct, result.TradeCount)
}

func (w *BacktestWorker) run(ctx context.Context, job model.BacktestJob) (*backtest.Result, error) {
	symbol, err := strategy.UnderlyingSymbol(job.Strategy, job.Params)
	if err != nil {
		return nil, err
	}

	bars, err := w.market.DailyBars(ctx, symbol, job.Start, job.End)
	if err != nil {
		return nil, fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no market data for %s between %s and %s",
			symbol, job.Start.Format("2006-01-02"), job.End.Format("2006-01-02"))
	}

	// Backtest fills are synthetic; they never land in the trades table.
	recorder := strategy.NewRecorder(discardTrades{}, job.BotID, logger.Nop())
	strat, err := strategy.New(job.Strategy, job.Params, recorder, w.log)
	if err != nil {
		return nil, err
	}

	sim := backtest.NewSimulator(symbol, bars)
	// Real listed contracts give the simulator true expirations and
	// strikes; it falls back to its synthetic grid without them.
	if contracts, err := w.market.OptionContracts(ctx, symbol, job.Start, job.End.AddDate(0, 0, 90)); err != nil {
		w.log.Warnf("Option contract listing unavailable for %s: %v", symbol, err)
	} else {
		sim.SetListedContracts(contracts)
	}

	result, err := backtest.Run(ctx, sim, strat, w.log)
	if err != nil {
		return nil, err
	}
	if lastClose, err := w.market.LastClose(ctx, symbol); err == nil {
		result.UnderlyingLastClose = lastClose
	}
	return result, nil
}

// discardTrades drops trade rows during backtests.
type discardTrades struct{}

func (discardTrades) Create(context.Context, *model.Trade) error { return nil }

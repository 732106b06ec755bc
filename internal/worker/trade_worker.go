package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"strathub/internal/config"
	"strathub/internal/model"
	"strathub/internal/queue"
	"strathub/internal/repository"
	"strathub/internal/service"
	"strathub/internal/strategy"
	"strathub/pkg/ibkr"
	"strathub/pkg/logger"
	"strathub/pkg/redis"
)

// TradeWorker supervises live and paper trading runs. Each queued run
// gets its own goroutine driving the strategy against the owner's
// brokerage gateway session until the bot is stopped.
type TradeWorker struct {
	bots     *repository.BotRepository
	trades   *repository.TradeRepository
	users    *repository.UserRepository
	jobs     *queue.Queue
	gateway  config.GatewayConfig
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewTradeWorker creates a trade worker. The interval is how often each
// running strategy gets an OnInterval tick; strategies apply their own
// once-per-day guards on top of it.
func NewTradeWorker(
	bots *repository.BotRepository,
	trades *repository.TradeRepository,
	users *repository.UserRepository,
	jobs *queue.Queue,
	gateway config.GatewayConfig,
	interval time.Duration,
	log *logger.Logger,
) *TradeWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TradeWorker{
		bots:     bots,
		trades:   trades,
		users:    users,
		jobs:     jobs,
		gateway:  gateway,
		interval: interval,
		log:      log,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Handle launches a runner goroutine for one queued trading run, so the
// consumer loop stays free to pick up further jobs.
func (w *TradeWorker) Handle(ctx context.Context, task queue.Task) {
	var job model.TradeJob
	if err := json.Unmarshal(task.Payload, &job); err != nil {
		w.log.Error("Discarding malformed trade job", err)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	if prev, ok := w.cancels[job.BotID]; ok {
		prev()
	}
	w.cancels[job.BotID] = cancel
	w.mu.Unlock()

	go w.runBot(runCtx, job)
}

// ListenForStops subscribes to the stop channel and cancels the runner
// for each announced bot. Blocks until the context is canceled.
func (w *TradeWorker) ListenForStops(ctx context.Context, redisClient *redis.Client) {
	pubsub := redisClient.Subscribe(ctx, redis.StopChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.stopBot(msg.Payload)
		}
	}
}

func (w *TradeWorker) stopBot(botID string) {
	w.mu.Lock()
	cancel, ok := w.cancels[botID]
	delete(w.cancels, botID)
	w.mu.Unlock()

	if ok {
		w.log.WithField("bot_id", botID).Info("Stop signal received, cancelling runner")
		cancel()
	}
}

func (w *TradeWorker) runBot(ctx context.Context, job model.TradeJob) {
	log := w.log.WithFields(map[string]interface{}{
		"bot_id":     job.BotID,
		"strategy":   job.Strategy,
		"trade_type": job.TradeType,
	})

	defer func() {
		w.mu.Lock()
		delete(w.cancels, job.BotID)
		w.mu.Unlock()
	}()

	gatewayCfg, err := w.gatewayConfig(ctx, job)
	if err != nil {
		log.Error("Failed to build gateway session", err)
		w.abortRun(job, log)
		return
	}

	client := ibkr.NewClient(gatewayCfg)
	if err := client.Ping(ctx); err != nil {
		log.Error("Gateway unreachable", err)
		w.abortRun(job, log)
		return
	}

	recorder := strategy.NewRecorder(w.trades, job.BotID, log)
	strat, err := strategy.New(job.Strategy, job.Params, recorder, log)
	if err != nil {
		log.Error("Failed to build strategy", err)
		w.abortRun(job, log)
		return
	}
	engine := newGatewayEngine(client)

	stream := ibkr.NewOrderStream(gatewayCfg)
	stream.SetOrderEventHandler(func(event *ibkr.OrderEvent) {
		strat.OnOrderEvent(ctx, streamEvent(event))
	})
	stream.SetErrorHandler(func(err error) {
		log.Warnf("Order stream error: %v", err)
	})
	if err := stream.Connect(ctx); err != nil {
		log.Error("Failed to connect order stream", err)
		w.abortRun(job, log)
		return
	}
	defer stream.Close()

	log.Info("Trading run started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Trading run cancelled")
			w.recordReturn(job, log)
			return
		case <-ticker.C:
		}

		bot, err := w.bots.GetByID(ctx, job.BotID)
		if err != nil {
			log.Error("Bot disappeared, ending run", err)
			w.releaseClaim(job, log)
			return
		}

		// Refresh the dedup claim so it outlives its TTL for as long as
		// the run does.
		if err := w.jobs.ExtendClaim(ctx, service.TradeJobID(job.BotID)); err != nil {
			log.Warnf("Failed to refresh trade job claim: %v", err)
		}

		switch bot.Status {
		case model.BotStatusLive:
			if err := strat.OnInterval(ctx, engine); err != nil {
				log.Error("Strategy interval failed", err)
			}
		case model.BotStatusPaused:
			// Paused bots hold their positions and skip new decisions.
		default:
			log.Infof("Bot status is %s, ending run", bot.Status)
			w.recordReturn(job, log)
			w.releaseClaim(job, log)
			return
		}
	}
}

// gatewayConfig resolves the owner's credential triple for the run mode.
func (w *TradeWorker) gatewayConfig(ctx context.Context, job model.TradeJob) (ibkr.Config, error) {
	user, err := w.users.GetByID(ctx, job.UserID)
	if err != nil {
		return ibkr.Config{}, err
	}

	cfg := ibkr.Config{
		Host:       w.gateway.Host,
		Port:       w.gateway.PortForMode(job.TradeType),
		Production: job.TradeType == model.TradeModeLive,
	}
	if job.TradeType == model.TradeModeLive {
		cfg.Username = user.IBKRLiveUsername
		cfg.Password = user.IBKRLivePassword
		cfg.AccountID = user.IBKRLiveAccountID
	} else {
		cfg.Username = user.IBKRPaperUsername
		cfg.Password = user.IBKRPaperPassword
		cfg.AccountID = user.IBKRPaperAccountID
	}
	return cfg, nil
}

// recordReturn rolls the run's signed cash flow up onto the bot so the
// paper or live return figure reflects everything recorded so far.
func (w *TradeWorker) recordReturn(job model.TradeJob, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	total, err := w.trades.NetValueByBot(ctx, job.BotID)
	if err != nil {
		log.Error("Failed to sum trade value for run", err)
		return
	}

	bot, err := w.bots.GetByID(ctx, job.BotID)
	if err != nil {
		log.Error("Failed to load bot for return update", err)
		return
	}
	if job.TradeType == model.TradeModeLive {
		bot.LiveTradeReturn = total
	} else {
		bot.PaperTradeReturn = total
	}
	if err := w.bots.Update(ctx, bot); err != nil {
		log.Error("Failed to update trade return", err)
	}
}

// abortRun marks a run that never got going: the bot drops to STOPPED and
// the job claim is released so the owner can launch again.
func (w *TradeWorker) abortRun(job model.TradeJob, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.bots.UpdateStatus(ctx, job.BotID, model.BotStatusStopped); err != nil {
		log.Error("Failed to mark bot STOPPED after aborted run", err)
	}
	w.releaseClaimCtx(ctx, job, log)
}

func (w *TradeWorker) releaseClaim(job model.TradeJob, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.releaseClaimCtx(ctx, job, log)
}

func (w *TradeWorker) releaseClaimCtx(ctx context.Context, job model.TradeJob, log *logger.Logger) {
	if err := w.jobs.Release(ctx, service.TradeJobID(job.BotID)); err != nil {
		log.Error("Failed to release trade job claim", err)
	}
}

// streamEvent maps a gateway order update onto the strategy event shape.
func streamEvent(event *ibkr.OrderEvent) strategy.OrderEvent {
	asset := strategy.Stock(event.Symbol)
	if event.SecType == "OPT" {
		expiration, _ := time.Parse(expiryLayout, event.Expiry)
		asset = strategy.Option(event.Symbol, expiration, event.Strike, rightFromGateway(event.Right))
	}
	return strategy.OrderEvent{
		Order: strategy.Order{
			ID:    event.ClientOrderID,
			Asset: asset,
			Side:  event.Side,
		},
		Status:     event.Status,
		Price:      event.FillPrice,
		Quantity:   event.FillQuantity,
		Multiplier: event.Multiplier,
		Timestamp:  time.Unix(event.Timestamp, 0).UTC(),
	}
}

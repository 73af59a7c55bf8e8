package execution

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/flashscalper/broker"
	"github.com/rustyeddy/flashscalper/journal"
	"github.com/rustyeddy/flashscalper/market"
	"github.com/rustyeddy/flashscalper/pkg/id"
	"github.com/rustyeddy/flashscalper/risk"
)

// Observer receives one call per orchestrated action. action is "open" or
// "close"; outcome is "filled", "paper", "denied" or "failed".
type Observer interface {
	ObserveTrade(action, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveTrade(string, string) {}

type Options struct {
	Journal  journal.Journal
	Logger   *slog.Logger
	Observer Observer
}

// Executor turns signals into positions and positions into close trades.
// It keeps no state between calls.
type Executor struct {
	ex      broker.Exchange
	cfg     Config
	journal journal.Journal
	log     *slog.Logger
	obs     Observer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

func New(ex broker.Exchange, cfg Config, opts Options) *Executor {
	if cfg.LimitGrace <= 0 {
		cfg.LimitGrace = DefaultLimitGrace
	}
	e := &Executor{
		ex:      ex,
		cfg:     cfg,
		journal: opts.Journal,
		log:     opts.Logger,
		obs:     opts.Observer,
		now:     time.Now,
		sleep:   sleepCtx,
		newID:   id.New,
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.obs == nil {
		e.obs = nopObserver{}
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type OpenResult struct {
	Position journal.Position
	Trade    journal.Trade
}

type CloseResult struct {
	Trade     journal.Trade
	ExitPrice float64
	PnL       float64
	ROE       float64
	Paper     bool
}

func (e *Executor) recoverPanic(op, symbol string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	e.log.Error("unexpected failure", "op", op, "symbol", symbol, "panic", r)
	e.obs.ObserveTrade(op, "failed")
	*err = &PanicError{Op: op, Value: r}
}

func (s Signal) validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidSignal)
	}
	if s.Direction != journal.Long && s.Direction != journal.Short {
		return fmt.Errorf("%w: direction %q", ErrInvalidSignal, s.Direction)
	}
	return nil
}

func orderSide(s journal.Side) broker.Side {
	if s == journal.Short {
		return broker.Sell
	}
	return broker.Buy
}

func (e *Executor) markPrice(ctx context.Context, symbol string) (float64, error) {
	s, err := e.ex.MarketSummary(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("market summary %s: %w", symbol, err)
	}
	if s.MarkPrice <= 0 {
		return 0, fmt.Errorf("%w for %s", ErrNoPrice, symbol)
	}
	return s.MarkPrice, nil
}

func (e *Executor) rule(ctx context.Context, symbol string) *market.Rule {
	r, ok := e.ex.Market(ctx, symbol)
	if !ok {
		return nil
	}
	return &r
}

func (e *Executor) winRate(ctx context.Context, acct AccountState) *float64 {
	if acct.WinRate != nil || !e.cfg.Sizing.WinRateSizing || e.cfg.WinRateWindow <= 0 {
		return acct.WinRate
	}
	store, ok := e.journal.(journal.Store)
	if !ok {
		return nil
	}
	rate, ok, err := store.RecentWinRate(ctx, e.cfg.WinRateWindow)
	if err != nil {
		e.log.Warn("win rate unavailable", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &rate
}

// limitPrice returns the passive entry price for sig, or false when the
// signal has no level or the level is too far from mark.
func limitPrice(sig Signal, mark float64) (float64, bool) {
	var price float64
	switch {
	case sig.Direction == journal.Long && sig.Support != nil:
		price = *sig.Support * supportOffset
	case sig.Direction == journal.Short && sig.Resistance != nil:
		price = *sig.Resistance * resistanceOffset
	default:
		return 0, false
	}
	if price <= 0 || math.Abs(price-mark)/mark > limitProximity {
		return 0, false
	}
	return price, true
}

// Open sizes, gates and places an entry order for sig.
func (e *Executor) Open(ctx context.Context, sig Signal, acct AccountState) (res OpenResult, err error) {
	defer e.recoverPanic("open", sig.Symbol, &err)

	if err := sig.validate(); err != nil {
		e.obs.ObserveTrade("open", "denied")
		return OpenResult{}, err
	}

	mark, err := e.markPrice(ctx, sig.Symbol)
	if err != nil {
		e.fail("open", sig.Symbol, err)
		return OpenResult{}, err
	}
	rule := e.rule(ctx, sig.Symbol)

	sizing := risk.PositionSize(e.cfg.Sizing, risk.SizingInputs{
		Equity:     acct.Equity,
		Exposure:   acct.Exposure,
		Price:      mark,
		Confidence: sig.Confidence,
		WinRate:    e.winRate(ctx, acct),
	})
	qty := market.RoundQuantity(rule, sizing.Quantity)
	notional := qty * mark
	margin := risk.Margin(notional, e.cfg.Leverage)

	decision := risk.CanOpen(e.cfg.Gate, risk.GateInputs{
		Equity:          acct.Equity,
		CurrentExposure: acct.Exposure,
		EstimatedMargin: margin,
		OpenPositions:   acct.OpenPositions,
	})
	if !decision.Allowed {
		e.log.Info("position denied", "symbol", sig.Symbol, "reason", decision.Reason())
		e.obs.ObserveTrade("open", "denied")
		return OpenResult{}, &DeniedError{Decision: decision}
	}

	if minQty := market.MinQuantity(rule); sizing.Quantity < minQty {
		e.obs.ObserveTrade("open", "denied")
		return OpenResult{}, fmt.Errorf("%w: quantity %.8f < minimum %.8f for %s", ErrBelowMinimum, sizing.Quantity, minQty, sig.Symbol)
	}
	if rule != nil && rule.MinNotional > 0 && notional < rule.MinNotional {
		e.obs.ObserveTrade("open", "denied")
		return OpenResult{}, fmt.Errorf("%w: notional $%.2f < minimum $%.2f for %s", ErrBelowMinimum, notional, rule.MinNotional, sig.Symbol)
	}
	if rule != nil && rule.MaxOrderSize > 0 && qty > rule.MaxOrderSize {
		e.obs.ObserveTrade("open", "denied")
		return OpenResult{}, fmt.Errorf("%w: quantity %.8f > maximum %.8f for %s", ErrAboveMaximum, qty, rule.MaxOrderSize, sig.Symbol)
	}

	if err := e.ex.SetLeverage(ctx, sig.Symbol, e.cfg.Leverage); err != nil {
		e.log.Warn("set leverage failed", "symbol", sig.Symbol, "leverage", e.cfg.Leverage, "error", err)
	}

	mkt := broker.OrderRequest{
		Symbol: sig.Symbol,
		Side:   orderSide(sig.Direction),
		Type:   broker.Market,
		Size:   market.FormatQuantity(rule, qty),
	}

	var (
		fill     broker.OrderResult
		placeErr error
	)
	if price, ok := limitPrice(sig, mark); ok {
		limit := mkt
		limit.Type = broker.Limit
		limit.Price = market.FormatPrice(rule, price)
		limit.TimeInForce = broker.GTC

		fill, placeErr = e.ex.PlaceOrder(ctx, limit)
		if placeErr == nil {
			// resting order gets a fixed grace window; fills are reconciled downstream
			_ = e.sleep(ctx, e.cfg.LimitGrace)
		} else {
			e.log.Warn("limit order failed, using market", "symbol", sig.Symbol, "error", placeErr)
			fill, placeErr = e.ex.PlaceOrder(ctx, mkt)
		}
	} else {
		fill, placeErr = e.ex.PlaceOrder(ctx, mkt)
	}

	if placeErr != nil {
		if !e.paperEligible(placeErr) {
			e.fail("open", sig.Symbol, placeErr)
			return OpenResult{}, fmt.Errorf("place order: %w", placeErr)
		}
		e.log.Warn("venue unavailable, paper trading", "symbol", sig.Symbol, "error", placeErr)
		fill = paperFill(mkt, mark)
	}

	entry := fill.FilledPrice
	if entry <= 0 {
		entry = mark
	}
	size := fill.FilledSize
	if size <= 0 {
		size = qty
	}

	tpROE := TakeProfitROE(e.cfg.TakeProfit, sig, e.cfg.Leverage)
	tp := TakeProfitPrice(sig.Direction, entry, tpROE, e.cfg.Leverage)
	now := e.now()

	pos := journal.Position{
		ID:            e.newID(),
		AgentID:       e.cfg.AgentID,
		Symbol:        sig.Symbol,
		Side:          sig.Direction,
		Size:          size,
		EntryPrice:    entry,
		CurrentPrice:  entry,
		Leverage:      e.cfg.Leverage,
		MarginUsed:    risk.Margin(size*entry, e.cfg.Leverage),
		TakeProfit:    &tp,
		TakeProfitROE: tpROE,
		Signal: journal.SignalMeta{
			Confidence: sig.Confidence,
			Score:      sig.Score,
			Reasons:    append([]string(nil), sig.Reasons...),
			LLMAgreed:  sig.LLMAgreed,
		},
		OpenedAt: now,
		MaxHold:  e.cfg.MaxHold,
		Paper:    fill.Paper,
		OrderID:  fill.OrderID,
		Status:   journal.StatusOpen,
	}
	trade := journal.Trade{
		ID:         e.newID(),
		PositionID: pos.ID,
		Symbol:     sig.Symbol,
		Side:       sig.Direction,
		Type:       journal.Open,
		Quantity:   size,
		Price:      entry,
		Fees:       fill.Fees,
		Reason:     fmt.Sprintf("open %s %s @ %.4f (confidence %.0f)", sig.Direction, sig.Symbol, entry, sig.Confidence),
		ExecutedAt: now,
		Paper:      fill.Paper,
	}

	e.record(func(j journal.Journal) error { return j.RecordPosition(ctx, pos) })
	e.record(func(j journal.Journal) error { return j.RecordTrade(ctx, trade) })

	e.log.Info("position opened",
		"position_id", pos.ID,
		"symbol", pos.Symbol,
		"side", pos.Side,
		"size", pos.Size,
		"entry", pos.EntryPrice,
		"margin", pos.MarginUsed,
		"take_profit_roe", pos.TakeProfitROE,
		"paper", pos.Paper,
	)
	e.obs.ObserveTrade("open", outcome(fill))
	return OpenResult{Position: pos, Trade: trade}, nil
}

// Close exits pos with a reduce-only market order for its full size.
func (e *Executor) Close(ctx context.Context, pos journal.Position, reason string) (res CloseResult, err error) {
	defer e.recoverPanic("close", pos.Symbol, &err)

	if pos.ID == "" || pos.Symbol == "" || pos.Size <= 0 {
		e.obs.ObserveTrade("close", "denied")
		return CloseResult{}, fmt.Errorf("%w: id %q symbol %q size %v", ErrInvalidPosition, pos.ID, pos.Symbol, pos.Size)
	}
	if reason == "" {
		reason = "manual close"
	}

	mark, err := e.markPrice(ctx, pos.Symbol)
	if err != nil {
		e.fail("close", pos.Symbol, err)
		return CloseResult{}, err
	}
	rule := e.rule(ctx, pos.Symbol)

	req := broker.OrderRequest{
		Symbol:     pos.Symbol,
		Side:       orderSide(pos.Side).Opposite(),
		Type:       broker.Market,
		Size:       market.FormatQuantity(rule, pos.Size),
		ReduceOnly: true,
	}

	fill, placeErr := e.ex.PlaceOrder(ctx, req)
	if placeErr != nil {
		if !e.paperEligible(placeErr) {
			e.fail("close", pos.Symbol, placeErr)
			return CloseResult{}, fmt.Errorf("place close order: %w", placeErr)
		}
		e.log.Warn("venue unavailable, paper close", "symbol", pos.Symbol, "error", placeErr)
		fill = paperFill(req, mark)
	}

	exit := fill.FilledPrice
	if exit <= 0 {
		exit = mark
	}
	pnl := risk.RealizedPnL(pos.IsLong(), pos.EntryPrice, exit, pos.Size)
	roe := risk.ROE(pnl, pos.MarginUsed)
	now := e.now()

	trade := journal.Trade{
		ID:          e.newID(),
		PositionID:  pos.ID,
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		Type:        journal.Close,
		Quantity:    pos.Size,
		Price:       exit,
		RealizedPnL: pnl,
		Fees:        fill.Fees,
		Reason:      fmt.Sprintf("%s: pnl $%.2f (%.2f%% ROE)", reason, pnl, roe),
		ExecutedAt:  now,
		Paper:       fill.Paper,
	}

	e.record(func(j journal.Journal) error { return j.ClosePosition(ctx, pos.ID, exit, now) })
	e.record(func(j journal.Journal) error { return j.RecordTrade(ctx, trade) })

	e.log.Info("position closed",
		"position_id", pos.ID,
		"symbol", pos.Symbol,
		"exit", exit,
		"pnl", pnl,
		"roe", roe,
		"reason", reason,
		"paper", fill.Paper,
	)
	e.obs.ObserveTrade("close", outcome(fill))
	return CloseResult{Trade: trade, ExitPrice: exit, PnL: pnl, ROE: roe, Paper: fill.Paper}, nil
}

func (e *Executor) paperEligible(err error) bool {
	return e.cfg.PaperOnError && broker.IsUnavailable(err)
}

func (e *Executor) fail(op, symbol string, err error) {
	e.log.Error(op+" failed", "symbol", symbol, "error", err)
	e.obs.ObserveTrade(op, "failed")
}

// record writes to the journal. Journal failures are logged only.
func (e *Executor) record(write func(journal.Journal) error) {
	if e.journal == nil {
		return
	}
	if err := write(e.journal); err != nil {
		e.log.Error("journal write failed", "error", err)
	}
}

func outcome(fill broker.OrderResult) string {
	if fill.Paper {
		return "paper"
	}
	return "filled"
}

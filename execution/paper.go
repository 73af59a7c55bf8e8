package execution

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/rustyeddy/flashscalper/broker"
	"github.com/rustyeddy/flashscalper/market"
	"github.com/rustyeddy/flashscalper/pkg/id"
)

// paperFill simulates a full fill of req at price with zero fees.
func paperFill(req broker.OrderRequest, price float64) broker.OrderResult {
	size, _ := strconv.ParseFloat(req.Size, 64)
	return broker.OrderResult{
		OrderID:     "paper-" + id.New(),
		FilledPrice: price,
		FilledSize:  size,
		Paper:       true,
	}
}

// Fill is one simulated execution on a PaperExchange.
type Fill struct {
	OrderID    string
	Symbol     string
	Side       broker.Side
	Price      float64
	Size       float64
	ReduceOnly bool
}

// PaperExchange reads markets and prices from a live venue and fills every
// order locally. Buys fill at the ask and sells at the bid, falling back to
// mark when the book side is empty. Limit orders fill at their limit price.
type PaperExchange struct {
	data broker.Exchange
	log  *slog.Logger

	mu    sync.Mutex
	fills []Fill
}

var _ broker.Exchange = (*PaperExchange)(nil)

func NewPaperExchange(data broker.Exchange, log *slog.Logger) *PaperExchange {
	if log == nil {
		log = slog.Default()
	}
	return &PaperExchange{data: data, log: log}
}

func (p *PaperExchange) Market(ctx context.Context, symbol string) (market.Rule, bool) {
	return p.data.Market(ctx, symbol)
}

func (p *PaperExchange) MarketSummary(ctx context.Context, symbol string) (broker.MarketSummary, error) {
	return p.data.MarketSummary(ctx, symbol)
}

func (p *PaperExchange) SetLeverage(context.Context, string, float64) error { return nil }

func (p *PaperExchange) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	var price float64
	if req.Type == broker.Limit {
		v, err := strconv.ParseFloat(req.Price, 64)
		if err != nil {
			return broker.OrderResult{}, fmt.Errorf("paper order: bad price %q: %w", req.Price, err)
		}
		price = v
	} else {
		s, err := p.data.MarketSummary(ctx, req.Symbol)
		if err != nil {
			return broker.OrderResult{}, fmt.Errorf("paper order: %w", err)
		}
		price = s.MarkPrice
		if req.Side == broker.Buy && s.Ask > 0 {
			price = s.Ask
		}
		if req.Side == broker.Sell && s.Bid > 0 {
			price = s.Bid
		}
	}
	if price <= 0 {
		return broker.OrderResult{}, fmt.Errorf("paper order: %w for %s", ErrNoPrice, req.Symbol)
	}

	res := paperFill(req, price)

	p.mu.Lock()
	p.fills = append(p.fills, Fill{
		OrderID:    res.OrderID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Price:      res.FilledPrice,
		Size:       res.FilledSize,
		ReduceOnly: req.ReduceOnly,
	})
	p.mu.Unlock()

	p.log.Info("paper fill",
		"order_id", res.OrderID,
		"symbol", req.Symbol,
		"side", req.Side,
		"price", res.FilledPrice,
		"size", res.FilledSize,
	)
	return res, nil
}

// Fills returns a copy of every simulated fill so far.
func (p *PaperExchange) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Fill, len(p.fills))
	copy(out, p.fills)
	return out
}

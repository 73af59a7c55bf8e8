package paradex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rustyeddy/flashscalper/broker"
)

var _ broker.Exchange = (*Client)(nil)

type orderPayload struct {
	Market             string `json:"market"`
	Type               string `json:"type"`
	Side               string `json:"side"`
	Size               string `json:"size"`
	Price              string `json:"price,omitempty"`
	TimeInForce        string `json:"time_in_force,omitempty"`
	ReduceOnly         bool   `json:"reduce_only"`
	Signature          string `json:"signature"`
	SignatureTimestamp int64  `json:"signature_timestamp"`
}

type apiOrder struct {
	ID            string `json:"id"`
	Market        string `json:"market"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Size          string `json:"size"`
	Price         string `json:"price"`
	RemainingSize string `json:"remaining_size"`
	AvgFillPrice  string `json:"avg_fill_price"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"created_at"`
}

func (o apiOrder) order() broker.Order {
	return broker.Order{
		ID:            o.ID,
		Symbol:        o.Market,
		Side:          broker.Side(o.Side),
		Type:          broker.OrderType(o.Type),
		Size:          num(o.Size),
		Price:         num(o.Price),
		RemainingSize: num(o.RemainingSize),
		AvgFillPrice:  num(o.AvgFillPrice),
		Status:        o.Status,
		CreatedAt:     millis(o.CreatedAt),
	}
}

func validateOrder(req broker.OrderRequest) error {
	if req.Symbol == "" {
		return errors.New("order symbol is required")
	}
	if req.Side != broker.Buy && req.Side != broker.Sell {
		return fmt.Errorf("invalid order side %q", req.Side)
	}
	if num(req.Size) <= 0 {
		return fmt.Errorf("invalid order size %q", req.Size)
	}
	switch req.Type {
	case broker.Market:
	case broker.Limit:
		if num(req.Price) <= 0 {
			return fmt.Errorf("limit order needs a price, got %q", req.Price)
		}
	default:
		return fmt.Errorf("invalid order type %q", req.Type)
	}
	return nil
}

// PlaceOrder submits req as-is; size and price must already be quantized.
// Filled price is the average fill when the venue reports one, otherwise the
// order price, otherwise zero.
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return broker.OrderResult{}, err
	}

	p := orderPayload{
		Market:     req.Symbol,
		Type:       string(req.Type),
		Side:       string(req.Side),
		Size:       req.Size,
		ReduceOnly: req.ReduceOnly,
	}
	if req.Type == broker.Limit {
		p.Price = req.Price
		p.TimeInForce = string(req.TimeInForce)
		if p.TimeInForce == "" {
			p.TimeInForce = string(broker.GTC)
		}
	}
	p.SignatureTimestamp = c.now().UnixMilli()
	sig, err := sign(c.signer, orderTypedData(c.chainID, p.SignatureTimestamp, p))
	if err != nil {
		return broker.OrderResult{}, err
	}
	p.Signature = sig

	var o apiOrder
	err = c.do(ctx, request{method: http.MethodPost, path: "/v1/orders", body: p, auth: true}, &o)
	if err != nil {
		c.log.Error("order failed", "symbol", req.Symbol, "side", req.Side, "type", req.Type, "size", req.Size, "error", err)
		return broker.OrderResult{}, err
	}

	filled := num(o.AvgFillPrice)
	if filled == 0 {
		filled = num(o.Price)
	}
	c.log.Info("order placed", "id", o.ID, "symbol", req.Symbol, "side", req.Side, "type", req.Type,
		"size", req.Size, "status", o.Status)
	return broker.OrderResult{
		OrderID:     o.ID,
		FilledPrice: filled,
		FilledSize:  num(req.Size),
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("order id is required")
	}
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/v1/orders/" + url.PathEscape(id),
		route:  "/v1/orders/{id}",
		auth:   true,
	}, nil)
}

func (c *Client) OpenOrders(ctx context.Context) ([]broker.Order, error) {
	var resp results[apiOrder]
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/orders",
		query:  url.Values{"status": {"OPEN"}},
		auth:   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := make([]broker.Order, 0, len(resp.Results))
	for _, o := range resp.Results {
		out = append(out, o.order())
	}
	return out, nil
}

func (c *Client) Order(ctx context.Context, id string) (broker.Order, error) {
	var o apiOrder
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/orders/" + url.PathEscape(id),
		route:  "/v1/orders/{id}",
		auth:   true,
	}, &o)
	if err != nil {
		return broker.Order{}, err
	}
	return o.order(), nil
}

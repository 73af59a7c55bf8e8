package paradex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/flashscalper/market"
)

const (
	TestnetURL = "https://api.testnet.paradex.trade"
	ProdURL    = "https://api.prod.paradex.trade"

	TestnetChainID = "PRIVATE_SN_POTC_SEPOLIA"
	ProdChainID    = "PRIVATE_SN_PARACLEAR_MAINNET"

	// DefaultMinimumFundingUSD is quoted back to the operator when onboarding
	// is refused for lack of collateral.
	DefaultMinimumFundingUSD = 10.0

	maxAttempts = 4
)

// backoff holds the pause before attempts 2, 3 and 4.
var backoff = []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second}

// BaseURL maps an environment name to its REST endpoint.
func BaseURL(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "testnet", "":
		return TestnetURL, nil
	case "prod", "mainnet":
		return ProdURL, nil
	default:
		return "", fmt.Errorf("unknown paradex env %q (want testnet|prod)", env)
	}
}

// ChainID maps an environment name to the chain id bound into signatures.
func ChainID(env string) string {
	if u, _ := BaseURL(env); u == ProdURL {
		return ProdChainID
	}
	return TestnetChainID
}

// Observer receives one callback per HTTP attempt and per auth outcome.
type Observer interface {
	ObserveRequest(route, method string, status int, elapsed time.Duration)
	ObserveError(route string)
	ObserveAuth(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, string, int, time.Duration) {}
func (nopObserver) ObserveError(string)                               {}
func (nopObserver) ObserveAuth(string)                                {}

type Options struct {
	BaseURL         string
	ChainID         string
	Signer          Signer
	EthereumAccount string // sent when onboarding

	HTTPClient *http.Client
	Logger     *slog.Logger
	Observer   Observer

	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64
	RateBurst int

	MinimumFundingUSD float64
	CatalogTTL        time.Duration
}

// Client talks to one Paradex account. It owns the session token and the
// market catalog; both are safe for concurrent use.
type Client struct {
	baseURL    string
	chainID    string
	signer     Signer
	ethAccount string
	httpClient *http.Client
	log        *slog.Logger
	obs        Observer
	limiter    *rate.Limiter
	minFunding float64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	session   session
	authGroup singleflight.Group
	catalog   *market.Catalog
}

func New(opts Options) (*Client, error) {
	if opts.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = TestnetURL
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if opts.ChainID == "" {
		opts.ChainID = TestnetChainID
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.MinimumFundingUSD <= 0 {
		opts.MinimumFundingUSD = DefaultMinimumFundingUSD
	}

	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		chainID:    opts.ChainID,
		signer:     opts.Signer,
		ethAccount: opts.EthereumAccount,
		httpClient: opts.HTTPClient,
		log:        opts.Logger.With("component", "paradex"),
		obs:        opts.Observer,
		minFunding: opts.MinimumFundingUSD,
		now:        time.Now,
		sleep:      sleepCtx,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	c.catalog = market.NewCatalog(c.fetchMarkets, opts.CatalogTTL, c.log)

	c.log.Info("paradex client initialized", "base_url", c.baseURL, "account", c.signer.Account())
	return c, nil
}

// Catalog exposes the market rule cache owned by the client.
func (c *Client) Catalog() *market.Catalog { return c.catalog }

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

// request describes one logical call. sign, when set, adds signed headers and
// runs again on every attempt so timestamps stay fresh.
type request struct {
	method   string
	path     string
	route    string // low-cardinality label, e.g. /v1/orders/{id}
	query    url.Values
	body     any
	auth     bool
	sign     func(h http.Header, body []byte) error
	classify func(status int, body string) error
}

// do runs req with up to four attempts. Authenticated calls re-validate the
// bearer token before each attempt.
func (c *Client) do(ctx context.Context, req request, out any) error {
	if req.route == "" {
		req.route = req.path
	}
	var payload []byte
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", req.method, req.path, err)
		}
		payload = b
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if serr := c.sleep(ctx, backoff[attempt-2]); serr != nil {
				return fmt.Errorf("%s %s: %w (last error: %w)", req.method, req.path, serr, err)
			}
		}
		err = c.attempt(ctx, req, payload, out)
		if err == nil {
			return nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
		c.log.Debug("request failed", "method", req.method, "path", req.path, "attempt", attempt, "error", err)
	}
	return fmt.Errorf("%s %s failed after %d attempts: %w", req.method, req.path, maxAttempts, err)
}

func (c *Client) attempt(ctx context.Context, req request, payload []byte, out any) error {
	var token string
	if req.auth {
		t, err := c.token(ctx)
		if err != nil {
			return &authError{err: err}
		}
		token = t
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return err
	}
	hreq.Header.Set("Accept", "application/json")
	if payload != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}
	if req.sign != nil {
		if err := req.sign(hreq.Header, payload); err != nil {
			return err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(hreq)
	if err != nil {
		c.obs.ObserveRequest(req.route, req.method, 0, time.Since(start))
		c.obs.ObserveError(req.route)
		return &TransportError{Method: req.method, Path: req.path, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	c.obs.ObserveRequest(req.route, req.method, resp.StatusCode, time.Since(start))
	if err != nil {
		c.obs.ObserveError(req.route)
		return &TransportError{Method: req.method, Path: req.path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.obs.ObserveError(req.route)
		text := strings.TrimSpace(string(b))
		if resp.StatusCode == http.StatusUnauthorized && req.auth {
			c.invalidate()
		}
		if req.classify != nil {
			if cerr := req.classify(resp.StatusCode, text); cerr != nil {
				return cerr
			}
		}
		return &APIError{Method: req.method, Path: req.path, Status: resp.StatusCode, Body: text}
	}

	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	return nil
}

// num parses an API decimal string; blanks and garbage read as zero.
func num(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

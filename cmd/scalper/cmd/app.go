package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/flashscalper/broker"
	"github.com/rustyeddy/flashscalper/broker/paradex"
	"github.com/rustyeddy/flashscalper/config"
	"github.com/rustyeddy/flashscalper/execution"
	"github.com/rustyeddy/flashscalper/journal"
	"github.com/rustyeddy/flashscalper/metrics"
	"github.com/rustyeddy/flashscalper/pkg/logging"
)

// app holds everything a command needs. Build it with newApp and release
// it with close.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Prometheus
	client  *paradex.Client
	exch    broker.Exchange
	journal journal.Journal
	exec    *execution.Executor

	closers []func() error
}

// loadConfig resolves the config file, environment and any flags the user
// set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := map[string]any{}
	if cmd.Flags().Changed("log-level") {
		overrides["log.level"] = logLevel
	}
	if cmd.Flags().Changed("metrics-addr") {
		overrides["metrics.addr"] = metricsAddr
	}
	if dryRun {
		overrides["journal.type"] = "memory"
		overrides["journal.redis_url"] = ""
	}
	return config.Load(cfgFile, overrides)
}

// newApp wires logging, metrics, the exchange client, the journal and the
// executor. With needAuth false and no credentials configured the client
// only serves public endpoints.
func newApp(cmd *cobra.Command, needAuth bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled && !dryRun {
		return nil, errors.New("trading disabled (enabled: false); use --dry to paper trade")
	}

	log, logCloser, err := logging.New(cfg.Logging())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}
	a.closers = append(a.closers, logCloser.Close)

	if err := a.connect(needAuth); err != nil {
		a.close()
		return nil, err
	}
	if err := a.openJournal(cmd.Context()); err != nil {
		a.close()
		return nil, err
	}
	if cfg.Metrics.Addr != "" {
		a.serveMetrics(cfg.Metrics.Addr)
	}

	a.exec = execution.New(a.exch, cfg.Execution(), execution.Options{
		Journal:  a.journal,
		Logger:   log,
		Observer: a.metrics,
	})
	return a, nil
}

func (a *app) connect(needAuth bool) error {
	signer, err := a.cfg.Signer()
	if err != nil {
		if needAuth && !dryRun {
			return err
		}
		if signer, err = publicSigner(); err != nil {
			return err
		}
	}

	opts, err := a.cfg.Client(signer)
	if err != nil {
		return err
	}
	opts.Logger = a.log
	opts.Observer = a.metrics

	a.client, err = paradex.New(opts)
	if err != nil {
		return fmt.Errorf("paradex client: %w", err)
	}
	a.exch = a.client
	if dryRun {
		a.exch = execution.NewPaperExchange(a.client, a.log)
	}
	return nil
}

// publicSigner is a throwaway key for clients that never authenticate.
func publicSigner() (*paradex.KeySigner, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return paradex.NewKeySigner("public", hex.EncodeToString(seed))
}

func (a *app) openJournal(ctx context.Context) error {
	jc := a.cfg.Journal

	var (
		store journal.Store
		err   error
	)
	switch jc.Type {
	case "memory":
		a.journal = journal.NewMemory()
		return nil
	case "csv":
		a.journal, err = journal.NewCSV(jc.Dir)
		if err != nil {
			return fmt.Errorf("csv journal: %w", err)
		}
		a.closers = append(a.closers, a.journal.Close)
		return nil
	case "sqlite":
		store, err = journal.NewSQLite(jc.Path)
	case "postgres":
		store, err = journal.NewPostgres(ctx, jc.DSN)
	default:
		return fmt.Errorf("unknown journal type %q", jc.Type)
	}
	if err != nil {
		return fmt.Errorf("%s journal: %w", jc.Type, err)
	}
	a.closers = append(a.closers, store.Close)

	if jc.RedisURL != "" {
		ropts, err := redis.ParseURL(jc.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(ropts)
		a.closers = append(a.closers, rdb.Close)
		store = journal.NewCached(store, rdb, jc.CacheTTL)
	}

	a.journal = store
	a.log.Info("journal opened", "type", jc.Type, "cached", jc.RedisURL != "")
	return nil
}

func (a *app) serveMetrics(addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	a.log.Info("serving metrics", "addr", addr)

	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// store returns the journal as a readable store, if it is one.
func (a *app) store() (journal.Store, bool) {
	s, ok := a.journal.(journal.Store)
	return s, ok
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rankwise/internal/engine"
	"github.com/sells-group/rankwise/internal/notify"
	"github.com/sells-group/rankwise/internal/resilience"
	"github.com/sells-group/rankwise/internal/store"
	"github.com/sells-group/rankwise/internal/volume"
	"github.com/sells-group/rankwise/internal/weights"
	"github.com/sells-group/rankwise/pkg/notion"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "rankwise.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func weightsSource(st store.Store) weights.Source {
	if cfg.Engine.WeightsSource == "store" {
		return weights.StoreSource{Store: st}
	}
	return weights.FileSource{Path: cfg.Engine.WeightsPath}
}

func buildNotifier() notify.Notifier {
	n := notify.Multi{notify.LogNotifier{}}
	if cfg.Notify.WebhookURL != "" {
		n = append(n, notify.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.NotionToken != "" {
		n = append(n, notify.NewNotionNotifier(
			notion.NewClient(cfg.Notify.NotionToken),
			cfg.Notify.NotionSummaryDB,
			cfg.Notify.NotionReportDB,
		))
	}
	return n
}

func buildVolumeProvider() volume.Provider {
	if !cfg.Volume.Enabled {
		return nil
	}
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Volume.MaxAttempts
	retry.OnRetry = resilience.RetryLogger("volume")
	return volume.NewHTTPProvider(cfg.Volume.BaseURL, cfg.Volume.APIKey,
		volume.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Volume.TimeoutSecs) * time.Second}),
		volume.WithMinInterval(time.Duration(cfg.Volume.MinIntervalMs)*time.Millisecond),
		volume.WithRetry(retry),
		volume.WithCircuitBreaker(resilience.NewCircuitBreaker("volume", cfg.Volume.FailureThreshold, time.Minute)),
	)
}

func buildOrchestrator(st store.Store) *engine.Orchestrator {
	opts := []engine.Option{
		engine.WithNotifier(buildNotifier()),
		engine.WithConcurrency(cfg.Engine.Concurrency),
		engine.WithKeywordWorkers(cfg.Engine.KeywordWorkers),
		engine.WithMonthlyReportDay(cfg.Engine.MonthlyReportDay),
	}
	if p := buildVolumeProvider(); p != nil {
		opts = append(opts, engine.WithVolumeProvider(p))
	}
	return engine.New(st, weightsSource(st), opts...)
}

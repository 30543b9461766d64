package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libredis "bessanalytics/backend/libs/redis"
	"bessanalytics/backend/services/bess-service/internal/cache"
	"bessanalytics/backend/services/bess-service/internal/config"
	httpserver "bessanalytics/backend/services/bess-service/internal/http"
	"bessanalytics/backend/services/bess-service/internal/http/handlers"
	"bessanalytics/backend/services/bess-service/internal/http/middleware"
	"bessanalytics/backend/services/bess-service/internal/ingestion"
	"bessanalytics/backend/services/bess-service/internal/observability"
	"bessanalytics/backend/services/bess-service/internal/service"
	"bessanalytics/backend/services/bess-service/internal/ws"
)

// App wires bess service dependencies.
type App struct {
	cfg        *config.Config
	server     *httpserver.Server
	service    *service.BessService
	hub        *ws.Hub
	store      *Store
	redis      *goredis.Client
	logger     *zap.Logger
	cancelFeed context.CancelFunc
}

// New constructs application components.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg

	store, err := OpenStore(ctx, cfg, a.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = store

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	strategy, err := ingestion.StrategyByName(cfg.Ingestion.ScalarMerge)
	if err != nil {
		return err
	}
	pipeline := ingestion.NewPipeline(store.Repo, a.logger.Named("ingestion"),
		ingestion.WithMerger(ingestion.NewMerger(strategy)),
		ingestion.WithObserver(metrics),
	)

	a.hub = ws.NewHub(metrics.SetFeedClients)
	opts := []service.Option{service.WithFeed(a.hub)}

	if cfg.CacheEnabled() {
		client, err := libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		opts = append(opts, service.WithCache(cache.NewDashboardCache(client, cfg.Redis.TTL)))
	} else {
		a.logger.Info("dashboard cache disabled")
	}

	a.service = service.NewBessService(store.Repo, pipeline, a.logger, opts...)

	feedCtx, cancel := context.WithCancel(context.Background())
	a.cancelFeed = cancel
	feed := ws.NewServer(feedCtx, a.hub, a.service.FeedSnapshot, cfg.Feed.WriteTimeout, cfg.Feed.PingInterval, a.logger.Named("feed"))

	routes := httpserver.Routes{
		Assets:     handlers.NewAssetsHandlers(a.service, a.logger),
		Health:     handlers.NewHealthHandler(),
		Feed:       http.HandlerFunc(feed.HandleWS),
		Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Instrument: metrics.Instrument,
	}

	router := httpserver.NewRouter(routes)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, a.logger,
		middleware.Recover(a.logger),
		middleware.RequestLogger(a.logger),
	)

	a.logger.Info("bess service configured",
		zap.String("driver", cfg.Database.Driver),
		zap.String("scalar_merge", strategy.Name()),
		zap.Bool("cache", cfg.CacheEnabled()),
	)
	return nil
}

// Run seeds an empty store, then serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if _, _, err := a.service.Seed(ctx, a.cfg.Ingestion.SeedFile); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.cancelFeed != nil {
		a.cancelFeed()
	}
	if a.hub != nil {
		a.hub.CloseAll()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}

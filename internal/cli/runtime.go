package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cimillas/live-commerce/internal/app"
	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/config"
	"github.com/cimillas/live-commerce/internal/salessheet"
	"github.com/cimillas/live-commerce/internal/storage/memory"
	"github.com/cimillas/live-commerce/internal/storage/postgres"
	transporthttp "github.com/cimillas/live-commerce/internal/transport/http"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// repositories is one storage backend seen through the app interfaces.
type repositories struct {
	sessions app.SessionRepository
	cart     app.CartRepository
	pricing  app.PricingRepository
	credit   app.CreditRepository
	orders   app.OrderRepository
	catalog  app.CatalogRepository
	// pinger is nil for the memory store, which is always reachable.
	pinger transporthttp.Pinger
}

// runtime is the fully wired process shared by serve and sweep.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	events   broadcast.Broadcaster
	redisHub *broadcast.RedisHub
	sessions *app.SessionService
	services transporthttp.Services
	closers  []func()
}

func newRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger, seed bool) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	repos, err := rt.openRepositories(ctx, seed)
	if err != nil {
		return nil, err
	}
	if err := rt.openBroadcaster(); err != nil {
		rt.Close()
		return nil, err
	}
	tag, err := cfg.LanguageTag()
	if err != nil {
		rt.Close()
		return nil, err
	}

	clk := clock.NewSystem()
	pickList := app.NewPickListService(repos.sessions, repos.cart, clk,
		app.WithLogger(logger), app.WithPublisher(rt.events))
	opts := []app.Option{
		app.WithLogger(logger),
		app.WithPublisher(rt.events),
		app.WithPickListNotifier(pickList),
		app.WithLifecyclePolicy(cfg.LifecyclePolicy()),
		app.WithSessionTimeout(cfg.SessionTimeout),
		app.WithWarningLead(cfg.WarningLead),
		app.WithApproachingPercent(cfg.CreditApproachingPercent),
	}

	pricing := app.NewPricingService(repos.pricing, repos.sessions, repos.cart, clk, opts...)
	cart := app.NewCartService(repos.cart, pricing, clk, opts...)
	rt.sessions = app.NewSessionService(repos.sessions, clk, opts...)
	credit := app.NewCreditService(repos.credit, repos.sessions, cart, opts...)

	rt.services = transporthttp.Services{
		Sessions:     rt.sessions,
		Ender:        app.NewConversionService(repos.orders, credit, clk, opts...),
		Cart:         cart,
		Pricing:      pricing,
		Credit:       credit,
		PickList:     pickList,
		SalesSheet:   app.NewSalesSheetService(repos.sessions, cart, salessheet.NewRenderer(tag), cfg.Currency, clk),
		Interactions: app.NewInteractionService(repos.sessions, repos.cart, pricing, cart, credit, clk, opts...),
		Catalog:      app.NewCatalogService(repos.catalog),
		Events:       rt.events,
		Store:        repos.pinger,
		Stream: transporthttp.StreamConfig{
			Heartbeat: cfg.HeartbeatInterval,
			Clock:     clk,
			Logger:    logger,
		},
	}
	return rt, nil
}

func (rt *runtime) openRepositories(ctx context.Context, seed bool) (repositories, error) {
	if rt.cfg.Store == config.StoreMemory {
		store := memory.New()
		if seed {
			store.SeedDemo()
			rt.logger.Info("seeded demo catalog", "client_id", memory.DemoClientID, "host_id", memory.DemoHostID)
		}
		rt.logger.Warn("using in-memory store; data is lost on exit")
		return repositories{
			sessions: store,
			cart:     store,
			pricing:  store,
			credit:   store,
			orders:   store,
			catalog:  store,
		}, nil
	}

	if seed {
		rt.logger.Warn("--seed only applies to STORE=memory; ignoring")
	}
	pool, err := connect(ctx, rt.cfg.DatabaseURL)
	if err != nil {
		return repositories{}, err
	}
	rt.closers = append(rt.closers, pool.Close)
	return repositories{
		sessions: postgres.NewSessionRepository(pool),
		cart:     postgres.NewCartRepository(pool),
		pricing:  postgres.NewPricingRepository(pool),
		credit:   postgres.NewCreditRepository(pool),
		orders:   postgres.NewOrderRepository(pool),
		catalog:  postgres.NewCatalogRepository(pool),
		pinger:   pool,
	}, nil
}

// openBroadcaster picks the Redis-backed hub when REDIS_URL is set so events
// reach viewers connected to other instances. The relay is started by serve.
func (rt *runtime) openBroadcaster() error {
	if rt.cfg.RedisURL == "" {
		rt.events = broadcast.NewHub(rt.logger)
		return nil
	}

	redisOpts, err := redis.ParseURL(rt.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(redisOpts)
	rt.redisHub = broadcast.NewRedisHub(client, rt.logger)
	rt.events = rt.redisHub
	rt.closers = append(rt.closers, func() {
		if err := rt.redisHub.Close(); err != nil {
			rt.logger.Warn("close redis relay", "error", err)
		}
		if err := client.Close(); err != nil {
			rt.logger.Warn("close redis client", "error", err)
		}
	})
	return nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

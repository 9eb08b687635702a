package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grocery/internal/auth"
	"grocery/internal/cache"
	"grocery/internal/config"
	"grocery/internal/db"
	"grocery/internal/handlers"
	"grocery/internal/logging"
	"grocery/internal/metrics"
	"grocery/internal/models"
	"grocery/internal/notify"
	"grocery/internal/order"
	"grocery/internal/repo"
	"grocery/internal/repo/memory"
)

// stores groups the persistence ports for whichever STORE_DRIVER is configured.
type stores struct {
	catalog interface {
		order.CatalogStore
		handlers.ItemLister
	}
	orders interface {
		order.OrderStore
		handlers.OrderReader
	}
	users auth.UserStore
	tx    order.Transactor
	close func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.MustNewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	m := metrics.New()

	var catalog cache.Catalog = cache.Nop{}
	if cfg.RedisURL != "" {
		client, err := cache.Dial(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("catalog_cache_disabled", zap.Error(err))
		} else {
			defer func() { _ = client.Close() }()
			catalog = cache.NewRedisCatalog(client, cfg.CatalogCacheTTL,
				cache.WithLogger(logger),
				cache.WithRecorder(m),
			)
		}
	}

	var sinks []notify.Sink
	if cfg.NotificationsEnabled() {
		tg, err := notify.NewTelegramSink(cfg.BotToken, cfg.AdminChatID)
		if err != nil {
			logger.Warn("telegram_notifications_disabled", zap.Error(err))
		} else {
			sinks = append(sinks, tg)
		}
	}
	dispatcher := notify.NewDispatcher(logger, 0, sinks...)
	dispatcher.Start(ctx)

	engine := order.NewEngine(st.catalog, st.orders, st.tx,
		order.WithConflictRetries(cfg.OrderConflictRetries),
		order.WithLogger(logger),
		order.WithRecorder(m),
		order.WithPlacedHook(func(ctx context.Context, p *order.Placement) {
			if err := catalog.Invalidate(ctx); err != nil {
				logging.FromContextOr(ctx, logger).Warn("catalog_cache_invalidate_failed", zap.Error(err))
			}
			if len(sinks) > 0 {
				dispatcher.Publish(notify.OrderPlacedFrom(p.Order, p.Items))
			}
		}),
	)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	router := handlers.NewRouter(handlers.Deps{
		Logger:         logger,
		Observer:       m,
		MetricsHandler: m.Handler(),
		Verifier:       issuer,
		Auth:           auth.NewService(st.users, issuer, logger),
		Placer:         engine,
		Items:          st.catalog,
		Catalog:        catalog,
		Orders:         st.orders,
		RequestTimeout: cfg.RequestTimeout,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_server_starting", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal_received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("notify_dispatcher_stop_timeout", zap.Error(err))
	}
	logger.Info("server_stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		store := memory.NewStore()
		if err := seedCatalog(ctx, store); err != nil {
			return nil, err
		}
		logger.Info("memory_store_ready")
		return &stores{
			catalog: store,
			orders:  store,
			users:   store,
			tx:      store,
			close:   func() error { return nil },
		}, nil
	}

	conn, err := db.NewPostgresDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &stores{
		catalog: repo.NewItemRepo(conn),
		orders:  repo.NewOrderRepo(conn),
		users:   repo.NewUserRepo(conn),
		tx:      repo.NewTxManager(conn),
		close:   conn.Close,
	}, nil
}

// seedCatalog gives the memory store the same starter catalog the SQL seed migration loads.
func seedCatalog(ctx context.Context, store *memory.Store) error {
	starter := []struct {
		name  string
		price string
		qty   int
	}{
		{"Milk 1L", "1.29", 120},
		{"Whole Wheat Bread", "2.49", 60},
		{"Free Range Eggs (12)", "3.99", 80},
		{"Bananas (1kg)", "1.10", 150},
		{"Cheddar Cheese 200g", "2.75", 40},
	}
	for _, s := range starter {
		item := models.GroceryItem{Name: s.name, Price: decimal.RequireFromString(s.price), Quantity: s.qty}
		if err := store.CreateItem(ctx, &item); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}
	return nil
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/quangtdn/storeledger/internal/adapter/audit"
	"github.com/quangtdn/storeledger/internal/adapter/handler"
	"github.com/quangtdn/storeledger/internal/adapter/storage"
	"github.com/quangtdn/storeledger/internal/config"
	"github.com/quangtdn/storeledger/internal/core/service"
	"github.com/quangtdn/storeledger/internal/event"
	"github.com/quangtdn/storeledger/internal/gateway"
	"github.com/quangtdn/storeledger/internal/logging"
	"github.com/quangtdn/storeledger/internal/port"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error().Err(err).Msg("failed to load config")
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Record store: MySQL when a DSN is configured, in-memory otherwise.
	var store port.RecordStore
	if cfg.MySQL.DSN != "" {
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			logging.Error().Err(err).Msg("failed to open mysql")
			os.Exit(1)
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnLifetime)
		if err := db.PingContext(ctx); err != nil {
			logging.Error().Err(err).Msg("failed to ping mysql")
			os.Exit(1)
		}
		defer db.Close()
		store = storage.NewMySQLStore(db)
		logging.Info().Msg("connected to mysql")
	} else {
		store = storage.NewMemoryStore()
		logging.Warn().Msg("no mysql dsn configured, using in-memory record store")
	}

	bus := event.NewBus(cfg.Bus.ObserverBufferSize)

	var ledgerOpts []service.LedgerOption
	ledgerOpts = append(ledgerOpts, service.WithWriteRetries(cfg.Ledger.WriteRetries))

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logging.Error().Err(err).Msg("failed to connect redis")
			os.Exit(1)
		}
		defer rdb.Close()
		ledgerOpts = append(ledgerOpts, service.WithQuantityCache(storage.NewRedisCache(rdb, cfg.Redis.CacheTTL)))
		logging.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	if cfg.Kafka.Enabled {
		publisher := audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		ledgerOpts = append(ledgerOpts, service.WithAuditPublisher(publisher))
		logging.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("audit trail enabled")
	}

	registry := storage.NewMemoryRegistry()
	ledger := service.NewLedger(store, bus, cfg.Ledger.LowStockThreshold, ledgerOpts...)
	coordinator := service.NewTransferCoordinator(ledger, registry, bus)
	query := service.NewQueryService(store, registry, registry)
	hub := gateway.NewHub(bus)
	defer hub.Close()

	httpHandler := handler.NewHTTPHandler(ledger, coordinator, query, hub)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpHandler.Router(),
	}

	go func() {
		logging.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("http shutdown error")
	}
	logging.Info().Msg("server stopped")
}

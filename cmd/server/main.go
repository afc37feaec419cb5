package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"vrfraffle/internal/keeper"
	"vrfraffle/internal/notify"
	"vrfraffle/internal/oracle"
	"vrfraffle/internal/oracle/mock"
	"vrfraffle/internal/oracle/remote"
	"vrfraffle/internal/platform/config"
	"vrfraffle/internal/platform/httpserver"
	"vrfraffle/internal/platform/logger"
	"vrfraffle/internal/platform/redis"
	raffleMetrics "vrfraffle/internal/raffle/metrics"
	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/service"
	"vrfraffle/internal/raffle/store"
	"vrfraffle/internal/raffle/store/memory"
	"vrfraffle/internal/raffle/store/postgres"
	"vrfraffle/internal/raffle/store/sqlite"
)

// mockBaseFee is what the development coordinator charges per fulfilment.
var mockBaseFee = big.NewInt(250_000_000_000_000_000)

type raffleStore interface {
	store.Store
	store.Outbox
}

// main wires config, storage, the oracle and the background workers, then
// serves HTTP until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "raffle: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st, health, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		coordinator oracle.Coordinator
		devOracle   *mock.Coordinator
	)
	if cfg.Network.Development {
		devOracle = mock.New(cfg.Network.Coordinator, mockBaseFee, mock.WithLogger(log))
		coordinator = devOracle
	} else {
		coordinator = remote.New(cfg.Oracle.URL, cfg.Server.PublicURL+"/oracle/fulfillments", cfg.Oracle.Timeout,
			remote.WithLogger(log))
	}

	svc, err := service.New(st, coordinator, cfg.RaffleAddress,
		service.WithLogger(log),
		service.WithMetrics(raffleMetrics.NewWithRegistry(reg)),
		service.WithTracer(otel.Tracer("vrfraffle/raffle")),
	)
	if err != nil {
		return err
	}

	subID := cfg.Network.SubscriptionID
	if devOracle != nil {
		if subID, err = bootstrapMock(ctx, devOracle, svc, cfg); err != nil {
			return err
		}
	}

	deployed, err := svc.Deploy(ctx, service.DeployParams{
		EntranceFee: cfg.Network.EntranceFee,
		Interval:    cfg.Network.Interval,
		Oracle: models.OracleBinding{
			Coordinator:          cfg.Network.Coordinator,
			GasLane:              cfg.Network.GasLane,
			SubscriptionID:       subID,
			CallbackGasLimit:     cfg.Network.CallbackGasLimit,
			NumWords:             models.NumWords,
			RequestConfirmations: models.RequestConfirmations,
		},
	})
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "raffle ready",
		"network", cfg.Network.Name,
		"address", svc.Address().Hex(),
		"state", string(deployed.State),
		"store", cfg.Store.Driver,
	)

	lease, leaseHealth, closeLease, err := openLease(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeLease()

	publisher, err := openPublisher(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	srv := httpserver.New(cfg.Server, newRouter(routerDeps{
		cfg:     cfg,
		service: svc,
		logger:  log,
		reg:     reg,
		health:  allHealthy(health, leaseHealth),
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "http server listening", "addr", cfg.Server.Addr)
		return httpserver.Run(gctx, srv)
	})
	g.Go(func() error {
		return keeper.New(svc,
			keeper.WithLease(lease),
			keeper.WithInterval(cfg.Keeper.Interval),
			keeper.WithLogger(log),
		).Run(gctx)
	})
	g.Go(func() error {
		return notify.NewRelay(st, publisher,
			notify.WithLogger(log),
			notify.WithMetrics(notify.NewMetrics(reg)),
		).Run(gctx)
	})
	if devOracle != nil {
		g.Go(func() error {
			return devOracle.AutoFulfill(gctx, cfg.Oracle.FulfillEvery)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("raffle stopped")
	return nil
}

// bootstrapMock creates and funds a subscription and registers the raffle as
// its consumer.
func bootstrapMock(ctx context.Context, c *mock.Coordinator, svc *service.Service, cfg config.Config) (uint64, error) {
	subID := c.CreateSubscription(ctx)
	if err := c.FundSubscription(ctx, subID, cfg.Oracle.SubscriptionFunding); err != nil {
		return 0, fmt.Errorf("fund mock subscription: %w", err)
	}
	if err := c.AddConsumer(ctx, subID, svc.Address(), svc); err != nil {
		return 0, fmt.Errorf("register raffle consumer: %w", err)
	}
	return subID, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (raffleStore, func(context.Context) error, func(), error) {
	switch cfg.Driver {
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return postgres.New(db), db.PingContext, func() { _ = db.Close() }, nil
	case config.StoreSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, noHealthCheck, func() { _ = st.Close() }, nil
	default:
		log.Warn("using in-memory store; raffle state is lost on restart")
		return memory.New(), noHealthCheck, func() {}, nil
	}
}

func noHealthCheck(context.Context) error { return nil }

func openLease(ctx context.Context, cfg config.RedisConfig) (keeper.Lease, func(context.Context) error, func(), error) {
	client, err := redis.New(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if client == nil {
		return keeper.NewLocalLease(), noHealthCheck, func() {}, nil
	}
	health := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return keeper.NewRedisLease(client, ""), health, func() { _ = client.Close() }, nil
}

func allHealthy(checks ...func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func openPublisher(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (notify.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return notify.NewLogPublisher(log), nil
	}
	return notify.NewKafka(ctx, cfg.Brokers, cfg.Topic, notify.WithKafkaLogger(log))
}

package cmd

import (
	"context"
	"fmt"
	"net/http"

	"powerball/config"
	"powerball/database"
	"powerball/events"
	"powerball/infrastructure"
	"powerball/repository"
	"powerball/service"
	"powerball/source"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// app holds the wired core shared by every subcommand that touches the store
type app struct {
	cfg      *config.Config
	db       *database.DB
	bus      *events.Bus
	source   *source.Client
	sync     *service.SyncService
	query    *service.QueryService
	redis    *redis.Client
	nats     *infrastructure.NATSClient
	cleanups []func()
}

// newSourceClient builds the feed client from configuration
func newSourceClient(cfg *config.Config) *source.Client {
	return source.NewClient(source.Config{
		APIURL:          cfg.SourceAPIURL,
		Companies:       cfg.SourceAPICompanies,
		HTMLBase:        cfg.SourceHTMLBase,
		Timeout:         cfg.SourceTimeout,
		MaxRetries:      cfg.SourceMaxRetries,
		RetryBackoff:    cfg.SourceRetryBackoff,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
		Location:        cfg.Location(),
	}, &http.Client{Timeout: cfg.SourceTimeout})
}

// newApp connects the store and optional infrastructure and builds the services
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	a.cleanups = append(a.cleanups, db.Close)

	a.bus = events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, a.bus)
	draws := repository.NewDrawRepository(db)
	runs := repository.NewSyncRunRepository(db)

	var guard service.SyncGuard = service.NewLocalSyncGuard()
	if cfg.RedisURL != "" {
		client, err := infrastructure.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		a.cleanups = append(a.cleanups, func() { client.Close() })
		guard = service.ChainGuards(guard, infrastructure.NewRedisSyncLock(client, cfg.SyncLockTTL))
		log.Info("Cross-process sync lock enabled")
	}

	if cfg.NATSServers != "" {
		if err := a.connectNATS(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.source = newSourceClient(cfg)
	a.sync = service.NewSyncService(a.source, uowFactory, draws, runs, guard, a.bus, service.SyncConfig{
		StartYear:  cfg.StartYear,
		StaleAfter: cfg.StaleAfter,
		Location:   cfg.Location(),
	})
	a.query = service.NewQueryService(draws, runs)

	log.Info("Services initialized successfully")
	return a, nil
}

func (a *app) connectNATS(ctx context.Context) error {
	client := infrastructure.NewNATSClient(a.cfg.NATSServers)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	a.nats = client
	a.cleanups = append(a.cleanups, func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Warn("Failed to close NATS connection")
		}
	})

	publisher := infrastructure.NewNATSEventPublisher(client)
	if err := client.EnsureStream(infrastructure.EventStreamName, publisher.Subjects()); err != nil {
		return err
	}
	publisher.SubscribeTo(a.bus)
	log.Info("Publishing events to NATS")
	return nil
}

// Close releases connections in reverse order
func (a *app) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/cart"
	"github.com/fjod/shopsphere/internal/catalog"
	"github.com/fjod/shopsphere/internal/config"
	"github.com/fjod/shopsphere/internal/events"
	"github.com/fjod/shopsphere/internal/logger"
	"github.com/fjod/shopsphere/internal/session"
	"github.com/fjod/shopsphere/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app is everything a command needs, wired from the config.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	redis   *redis.Client
	store   storage.Store
	client  *api.Client
	session *session.Session
	cart    *cart.Store
	catalog *catalog.Catalog
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.profile != "" {
		cfg.Profile = flags.profile
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}

// newApp opens the profile storage and builds the client stack on top of it.
// pretty selects console logging for interactive commands.
func newApp(flags *globalFlags, pretty bool) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg: cfg,
		log: logger.New(cfg.LogLevel, pretty),
	}

	if cfg.Storage == config.StorageRedis || cfg.CatalogCache == "redis" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}

	a.store, err = openStorage(cfg, a.redis, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}

	// The client reads the token from the session it authenticates.
	var sess *session.Session
	a.client = api.New(cfg.APIBaseURL, a.log,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithCircuitBreaker("shopsphere-api", cfg.BreakerFailures, cfg.BreakerCooldown),
		api.WithTokenSource(api.TokenFunc(func() string { return sess.Token() })),
	)
	sess = session.New(a.store, a.client, a.log)
	a.session = sess
	a.cart = cart.New(a.store, a.log)
	a.catalog = catalog.New(a.client, productCache(cfg, a.redis), a.log)
	return a, nil
}

func openStorage(cfg *config.Config, rdb *redis.Client, log zerolog.Logger) (storage.Store, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return storage.NewMemoryStore(), nil
	case config.StorageFile:
		fs, err := storage.NewFileStore(cfg.ProfileDir(), log)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.StorageSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := storage.NewSQLiteStore(filepath.Join(cfg.DataDir, cfg.Profile+".db"), cfg.StoragePoll, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.StorageRedis:
		if rdb == nil {
			return nil, errors.New("redis storage needs a redis client")
		}
		return storage.NewRedisStore(rdb, cfg.Profile, log), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
}

func productCache(cfg *config.Config, rdb *redis.Client) catalog.ProductCache {
	switch cfg.CatalogCache {
	case "none":
		return catalog.NopCache{}
	case "redis":
		if rdb != nil {
			return catalog.NewRedisCache(rdb, cfg.CatalogTTL)
		}
	}
	return catalog.NewMemoryCache(cfg.CatalogTTL)
}

// startPublisher returns the checkout event publisher. With no brokers
// configured events are dropped. stop flushes queued events and closes the
// writer.
func (a *app) startPublisher(ctx context.Context) (pub events.Publisher, stop func()) {
	if len(a.cfg.KafkaBrokers) == 0 {
		return events.Nop{}, func() {}
	}

	p := events.NewKafkaPublisher(events.NewKafkaWriter(a.cfg.KafkaTopic, a.cfg.KafkaBrokers...), a.log)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	return p, func() {
		cancel()
		<-done
		if err := p.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close event writer")
		}
	}
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close storage")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close redis")
		}
	}
}

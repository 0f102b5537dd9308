package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"goplay/internal/adapters"
	"goplay/internal/bootstrap"
	"goplay/internal/delivery/broadcast"
	repo "goplay/internal/repository"
	authuc "goplay/internal/usecase/auth"
	gameuc "goplay/internal/usecase/game"
	"goplay/internal/usecase/registry"
)

// app holds every long lived component, built once and passed by reference.
type app struct {
	cfg      *bootstrap.Config
	log      *zap.SugaredLogger
	mongo    *adapters.AdapterMongo
	redis    *adapters.AdapterRedis
	games    *repo.GameRepository
	registry *registry.Registry
	hub      *broadcast.Hub
	gameUC   *gameuc.GameUseCase
	identity *authuc.IdentityUseCase
}

func NewLogger(level string) (*zap.SugaredLogger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := bootstrap.Setup(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("setup configuration: %w", err)
	}

	log, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	a.mongo = adapters.NewAdapterMongo(cfg, log)
	if err = a.mongo.Init(ctx); err != nil {
		return nil, err
	}

	a.redis = adapters.NewAdapterRedis(cfg, log)
	if err = a.redis.Init(ctx); err != nil {
		_ = a.mongo.Close(ctx)
		return nil, err
	}

	a.games = repo.NewGameRepository(log, a.mongo.Database, cfg.StoreTimeout)
	if err = a.games.EnsureIndexes(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}

	a.registry = registry.New(registry.Config{
		Capacity:         cfg.RegistryCapacity,
		TTL:              cfg.SessionTTL,
		EvictionInterval: cfg.EvictionInterval,
		WaitingTimeout:   cfg.WaitingTimeout,
		CleanupInterval:  cfg.CleanupInterval,
		StoreTimeout:     cfg.StoreTimeout,
	}, a.games, log)

	a.hub = broadcast.NewHub(log)

	var publisher gameuc.Publisher = a.hub
	if cfg.BroadcastMode == bootstrap.BroadcastRedis {
		publisher = broadcast.NewRedisPublisher(a.redis.GetClient())
	}

	a.gameUC = gameuc.NewGameUseCase(
		a.games,
		repo.NewSGFStorage(a.redis.GetClient()),
		repo.NewMongoUserStorage(a.mongo.Database, cfg.StoreTimeout),
		a.registry,
		publisher,
		log,
		cfg.DefaultKomi,
	)
	a.identity = authuc.NewIdentityUseCase(repo.NewSessionRedisStorage(a.redis.GetClient()))

	return a, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.redis.Close(); err != nil {
		a.log.Warnw("close redis", "err", err)
	}
	if err := a.mongo.Close(ctx); err != nil {
		a.log.Warnw("close mongodb", "err", err)
	}
	_ = a.log.Sync()
}

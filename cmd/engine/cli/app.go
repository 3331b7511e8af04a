package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"binarymlm/internal/cache"
	"binarymlm/internal/config"
	"binarymlm/internal/database"
	"binarymlm/internal/ledger"
	"binarymlm/internal/matching"
	"binarymlm/internal/metrics"
	"binarymlm/internal/notify"
	"binarymlm/internal/otp"
	"binarymlm/internal/payout"
	"binarymlm/internal/tree"
	"binarymlm/internal/wallet"
)

// app holds the wired components shared by every command.
type app struct {
	db         *gorm.DB
	redis      *redis.Client
	registry   *prometheus.Registry
	dispatcher *notify.Dispatcher
	tree       *tree.Engine
	otp        *otp.Service
	wallet     *wallet.Service
	matching   *matching.Engine
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisEnabled {
		rdb, err = database.ConnectRedis(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("could not connect to redis: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollectors(reg)

	sinks := []notify.Sink{notify.LogSink{}}
	if cfg.BotToken != "" {
		tg, err := notify.NewTelegram(cfg.BotToken, cfg.AdminChatID,
			notify.EventMatchingCompleted, notify.EventTransactionFailed, notify.EventMemberRegistered)
		if err != nil {
			return nil, fmt.Errorf("could not create telegram sink: %w", err)
		}
		sinks = append(sinks, tg)
	}
	if cfg.PayoutGatewayURL != "" {
		sinks = append(sinks, payout.NewForwarder(payout.NewClient(cfg.PayoutGatewayURL, cfg.PayoutGatewayKey)))
	}
	dispatcher := notify.NewDispatcher(cfg.NotifyBuffer, m, sinks...)

	var walletCache cache.WalletCache = cache.NewMemory(cfg.WalletCacheTTL, m)
	if rdb != nil {
		walletCache = cache.NewRedis(rdb, cfg.WalletCacheTTL, m)
	}

	ledgerEngine := ledger.NewEngine(db, dispatcher, walletCache, m)
	serializer := ledger.NewSerializer(cfg.RetryAttempts, cfg.RetryDelay, m)
	treeEngine := tree.NewEngine(db, dispatcher, m)
	otpService := otp.NewService(db, otp.LogMailer{}, cfg.OTPTTL)

	walletCfg := wallet.Config{
		ConvertDeduction:    cfg.ConvertDeduction,
		PayoutDeduction:     cfg.PayoutDeduction,
		ActivationPrice:     cfg.ActivationPrice,
		ActivationDeduction: cfg.ActivationDeduct,
		ActivationLimit:     cfg.ActivationLimit,
		LimitIncreaseCost:   cfg.LimitIncreaseCost,
		LimitIncreaseGrant:  cfg.LimitIncreaseGrant,
	}

	matchingCfg := matching.DefaultConfig()
	matchingCfg.RewardRate = cfg.RewardRate
	matchingCfg.MaxReward = cfg.MaxReward

	return &app{
		db:         db,
		redis:      rdb,
		registry:   reg,
		dispatcher: dispatcher,
		tree:       treeEngine,
		otp:        otpService,
		wallet:     wallet.NewService(db, ledgerEngine, serializer, walletCache, otpService, treeEngine, walletCfg),
		matching:   matching.NewEngine(db, ledgerEngine, serializer, dispatcher, m, matchingCfg),
	}, nil
}

// start begins event delivery; close waits for it after ctx is done.
func (a *app) start(ctx context.Context) {
	a.dispatcher.Start(ctx)
}

func (a *app) close() {
	a.dispatcher.Wait()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

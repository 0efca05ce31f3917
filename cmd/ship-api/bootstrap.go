package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gaexpress/shipline/config"
	shipmentsapi "github.com/gaexpress/shipline/internal/api/shipments_api"
	"github.com/gaexpress/shipline/internal/broker/kafka"
	"github.com/gaexpress/shipline/internal/cache/rediscache"
	"github.com/gaexpress/shipline/internal/integrations/advisor"
	"github.com/gaexpress/shipline/internal/integrations/advisor/fake"
	"github.com/gaexpress/shipline/internal/integrations/advisor/geminiadvisor"
	"github.com/gaexpress/shipline/internal/metrics"
	"github.com/gaexpress/shipline/internal/services/shipments"
	"github.com/gaexpress/shipline/internal/storage/pgshipment"
)

type shipAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    shipAPIOpts
	api     *shipmentsapi.ShipmentsAPI
	closeDB func()
}

func mustBootstrapShipAPI() *shipAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.ShipLine.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	cacheTTL := time.Duration(cfg.ShipLine.CurrentStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	advicePerMin := int64(cfg.ShipLine.AdviceRateLimitPerMinute)
	if advicePerMin <= 0 {
		advicePerMin = 5
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	svc := shipments.New(st, rc, producer, cacheTTL)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Без ключа Gemini работаем на локальной заглушке. Удобно для демо и стендов.
	var adv advisor.Client
	if cfg.Gemini.APIKey != "" {
		adv, err = geminiadvisor.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			cancel()
			st.Close()
			panic(fmt.Sprintf("gemini client: %v", err))
		}
	} else {
		adv = fake.New()
	}

	metrics.Register()

	api := shipmentsapi.New(svc, adv).WithRateLimiter(rl, advicePerMin, time.Minute)

	return &shipAPIApp{
		ctx:     ctx,
		cancel:  cancel,
		opts:    shipAPIOpts{httpAddr: httpAddr},
		api:     api,
		closeDB: st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgshipment.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgshipment.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *shipAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *shipAPIApp) Run() error {
	return runShipAPI(a.ctx, a.opts, a.api)
}

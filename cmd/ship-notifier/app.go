package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gaexpress/shipline/config"
	"github.com/gaexpress/shipline/internal/broker/kafka"
	"github.com/gaexpress/shipline/internal/broker/messages"
	"github.com/gaexpress/shipline/internal/metrics"
	"github.com/gaexpress/shipline/internal/notify/smtpmail"
	"github.com/gaexpress/shipline/internal/services/notifier"
)

type notifierConsumer interface {
	Consume(ctx context.Context, handler func(topic string, key, value []byte) error) error
	Close() error
}

type notifierFactories struct {
	newMailer   func(cfg *config.Config) notifier.Mailer
	newConsumer func(cfg *config.Config, groupID string) notifierConsumer

	onHTTPListen func(addr string)
}

func defaultNotifierFactories() notifierFactories {
	return notifierFactories{
		newMailer: func(cfg *config.Config) notifier.Mailer {
			return smtpmail.New(smtpmail.Config{
				Host:       cfg.SMTP.Host,
				Port:       cfg.SMTP.Port,
				Username:   cfg.SMTP.Username,
				Password:   cfg.SMTP.Password,
				From:       cfg.SMTP.From,
				AdminEmail: cfg.SMTP.AdminEmail,
			})
		},
		newConsumer: func(cfg *config.Config, groupID string) notifierConsumer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			topics := []string{
				messages.TopicShipmentSubmitted,
				messages.TopicStatusChanged,
				messages.TopicContactRequested,
			}
			return kafka.NewConsumer(brokers, topics, groupID)
		},
	}
}

func RunShipNotifier(ctx context.Context, cfg *config.Config, f notifierFactories) error {
	groupID := cfg.ShipLine.KafkaConsumerGroup
	if groupID == "" {
		groupID = "ship-notifier"
	}
	httpAddr := cfg.ShipLine.NotifierHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}

	metrics.Register()

	svc := notifier.New(f.newMailer(cfg))

	consumer := f.newConsumer(cfg, groupID)
	defer func() { _ = consumer.Close() }()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runNotifierHTTPServer(ctx, notifierHTTPOpts{
			httpAddr: httpAddr,
			svc:      svc,
			onListen: f.onHTTPListen,
		})
	}()

	slog.Info("notifier consumer started", "group", groupID)
	consumeErr := make(chan error, 1)
	go func() { consumeErr <- consumer.Consume(ctx, svc.Handle) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-consumeErr:
		return err
	case err := <-httpErr:
		return err
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"disorderbook/api/rest"
	"disorderbook/infra/config"
	"disorderbook/infra/feed"
	"disorderbook/infra/logging"
	"disorderbook/jobs/broadcaster"
	"disorderbook/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the gateway config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := logging.New(cfg.Logging.Dir, "gateway", cfg.Logging.Level, true)

	// ---------------- Feed hub ----------------

	hub := feed.NewHub[feed.Event]()

	// ---------------- Books ----------------

	registry := service.NewRegistry(hub, logger)
	for _, b := range cfg.Books {
		registry.Open(b.Venue, b.Symbol)
	}

	// ---------------- Metrics ----------------

	metrics := rest.NewMetrics()

	go func() {
		sub := hub.Subscribe(cfg.Feed.Buffer)
		for ev := range sub.C() {
			switch ev.Kind {
			case feed.KindTicker:
				metrics.Tickers.Inc()
			case feed.KindExecution:
				metrics.Executions.Inc()
			}
		}
	}()

	// ---------------- Kafka mirror ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Enabled {
		bc, err := broadcaster.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			log.Fatalf("kafka broadcaster init failed: %v", err)
		}
		defer bc.Close()
		go bc.Run(ctx, hub.Subscribe(cfg.Feed.Buffer))
	}

	// ---------------- HTTP ----------------

	server := rest.NewServer(registry, hub, metrics, cfg.Feed.Buffer, logger)

	logger.Info("gateway listening", "addr", cfg.Listen)
	if err := http.ListenAndServe(cfg.Listen, server.Handler()); err != nil {
		log.Fatalf("http server exited: %v", err)
	}
}

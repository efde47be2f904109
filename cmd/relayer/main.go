package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ckbrelay/internal/application"
	"ckbrelay/internal/calldata"
	"ckbrelay/internal/config"
	"ckbrelay/internal/infrastructure/ckbrpc"
	"ckbrelay/internal/infrastructure/kafka"
	"ckbrelay/internal/infrastructure/logging"
	"ckbrelay/internal/infrastructure/storage"
	"ckbrelay/internal/infrastructure/telemetry"
	"ckbrelay/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	if err := cfg.RequireRPC(); err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/relayer.log"
	}
	logWriter, err := logging.Init(logging.Config{
		Service:    "relayer",
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       logFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
	} else if logWriter != nil {
		defer logWriter.Close()
	}

	store, err := storage.Open(cfg)
	if err != nil {
		slog.Error("state db error", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	rpcClient, err := ckbrpc.NewClient(ckbrpc.Config{URL: cfg.CKBRPCURL})
	if err != nil {
		slog.Error("rpc error", "err", err)
		os.Exit(1)
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:     cfg.KafkaBrokers,
		TopicPrefix: cfg.KafkaTopicPrefix,
	})
	if err != nil {
		slog.Error("kafka error", "err", err)
		os.Exit(1)
	}
	defer producer.Close()

	shutdownTracing, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "ckbrelay-relayer",
		ServiceVersion: version,
		Endpoint:       cfg.OtelEndpoint,
	})
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	metrics := httpapi.NewMetrics()
	if last, ok, err := store.LastRelayedBlock(context.Background()); err == nil && ok {
		metrics.SetLastRelayed(last)
	}

	relayer, err := application.NewRelayer(rpcClient, producer, store, calldata.NewABIEncoder(), relayObserver{metrics}, application.RelayerConfig{
		StartBlock:    cfg.StartBlock,
		Confirmations: cfg.Confirmations,
		PollInterval:  cfg.PollInterval,
		BatchSize:     cfg.BatchSize,
		RelayHeaders:  cfg.RelayHeaders,
		RelayCells:    cfg.RelayCells,
	})
	if err != nil {
		slog.Error("relayer error", "err", err)
		os.Exit(1)
	}

	httpServer, err := httpapi.NewServer(cfg, httpapi.Deps{
		State:     store,
		Chain:     rpcClient,
		Publisher: producer,
	}, metrics, httpapi.BuildInfo{Version: version, Commit: commit, BuildTime: buildTime})
	if err != nil {
		slog.Error("http server error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
			slog.Error("http server error", "err", err)
			cancel()
		}
	}()

	slog.Info("relay started",
		"rpc", cfg.CKBRPCURL,
		"start", cfg.StartBlock,
		"confirmations", cfg.Confirmations,
		"batch", cfg.BatchSize,
		"headers", cfg.RelayHeaders,
		"cells", cfg.RelayCells,
	)
	if err := relayer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("relay stopped", "err", err)
		os.Exit(1)
	}
}

type relayObserver struct {
	metrics *httpapi.Metrics
}

func (o relayObserver) OnTipBlock(block uint64) {
	o.metrics.OnTipBlock(block)
}

func (o relayObserver) OnBatchRelayed(fromBlock, toBlock uint64, headers, cells int) {
	o.metrics.OnBatchRelayed(fromBlock, toBlock, headers, cells)
	slog.Info("relay batch",
		"from", fromBlock,
		"to", toBlock,
		"headers", headers,
		"cells", cells,
	)
}

func (o relayObserver) OnRollback(fromBlock uint64, blocks int) {
	o.metrics.OnRollback(fromBlock, blocks)
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ckbrelay/internal/application"
	"ckbrelay/internal/calldata"
	"ckbrelay/internal/config"
	ckbkafka "ckbrelay/internal/infrastructure/kafka"
	"ckbrelay/internal/infrastructure/logging"
	"ckbrelay/internal/infrastructure/storage"
	"ckbrelay/internal/infrastructure/telemetry"
	"ckbrelay/internal/interfaces/httpapi"

	"github.com/segmentio/kafka-go"
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

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/auditor.log"
	}
	logWriter, err := logging.Init(logging.Config{
		Service:    "auditor",
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
		slog.Error("db error", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	shutdownTracing, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "ckbrelay-auditor",
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
	httpServer, err := httpapi.NewServer(cfg, httpapi.Deps{
		State: store,
		Calls: store,
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

	var wg sync.WaitGroup
	contracts := calldata.Contracts()
	readers := make([]*kafka.Reader, 0, len(contracts))
	for _, contract := range contracts {
		topic := ckbkafka.TopicFor(cfg.KafkaTopicPrefix, string(contract))
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaGroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
		readers = append(readers, reader)

		auditor, err := application.NewAuditor(reader, store, metrics, application.AuditorConfig{
			BatchSize:     int(cfg.BatchSize),
			FlushInterval: cfg.PollInterval,
		})
		if err != nil {
			slog.Error("auditor error", "err", err)
			os.Exit(1)
		}

		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			if err := auditor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("audit stream stopped", "topic", topic, "err", err)
				cancel()
			}
		}(topic)
	}

	slog.Info("audit streaming started", "topics", len(readers), "group", cfg.KafkaGroupID)
	<-ctx.Done()
	wg.Wait()
	for _, reader := range readers {
		_ = reader.Close()
	}
}

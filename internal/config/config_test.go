package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(EnvMap{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBDriver != DriverMySQL {
		t.Errorf("driver %q", cfg.DBDriver)
	}
	if cfg.BatchSize != 20 || cfg.Confirmations != 24 {
		t.Errorf("batch %d confirmations %d", cfg.BatchSize, cfg.Confirmations)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("poll interval %s", cfg.PollInterval)
	}
	if !cfg.RelayHeaders || !cfg.RelayCells {
		t.Errorf("relay flags %v %v", cfg.RelayHeaders, cfg.RelayCells)
	}
	if cfg.KafkaTopicPrefix != "ckbrelay-calls" || cfg.KafkaGroupID != "ckbrelay-audit" {
		t.Errorf("kafka %q %q", cfg.KafkaTopicPrefix, cfg.KafkaGroupID)
	}
	if err := cfg.RequireRPC(); err == nil {
		t.Error("expected missing rpc url error")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(EnvMap{
		"CKB_RPC_URL":     " http://127.0.0.1:8114 ",
		"DB_DRIVER":       "SQLite",
		"SQLITE_PATH":     "/tmp/relay.db",
		"START_BLOCK":     "100",
		"CONFIRMATIONS":   "0",
		"BATCH_SIZE":      "5",
		"POLL_INTERVAL":   "250ms",
		"KAFKA_BROKERS":   "a:9092, b:9092,",
		"RELAY_CELLS":     "false",
		"LOG_MAX_SIZE_MB": "10",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CKBRPCURL != "http://127.0.0.1:8114" || cfg.RequireRPC() != nil {
		t.Errorf("rpc url %q", cfg.CKBRPCURL)
	}
	if cfg.DBDriver != DriverSQLite || cfg.SQLitePath != "/tmp/relay.db" {
		t.Errorf("sqlite %q %q", cfg.DBDriver, cfg.SQLitePath)
	}
	if cfg.StartBlock != 100 || cfg.Confirmations != 0 || cfg.BatchSize != 5 {
		t.Errorf("range %d %d %d", cfg.StartBlock, cfg.Confirmations, cfg.BatchSize)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("poll %s", cfg.PollInterval)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Errorf("brokers %v", cfg.KafkaBrokers)
	}
	if cfg.RelayCells || !cfg.RelayHeaders {
		t.Errorf("relay flags %v %v", cfg.RelayHeaders, cfg.RelayCells)
	}
	if cfg.LogMaxSizeMB != 10 {
		t.Errorf("log size %d", cfg.LogMaxSizeMB)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []EnvMap{
		{"START_BLOCK": "-1"},
		{"BATCH_SIZE": "0"},
		{"POLL_INTERVAL": "soon"},
		{"DB_DRIVER": "postgres"},
		{"RELAY_CELLS": "maybe"},
		{"RELAY_CELLS": "false", "RELAY_HEADERS": "false"},
	}
	for _, env := range tests {
		if _, err := Load(env); err == nil {
			t.Errorf("expected error for %v", env)
		}
	}
	if _, err := Load(nil); err == nil {
		t.Error("expected error for nil source")
	}
}

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"ckbrelay/internal/config"
)

func TestOpenSQLite(t *testing.T) {
	store, err := Open(config.Config{
		DBDriver:   config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "relay.db"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, ok, err := store.LastRelayedBlock(context.Background()); err != nil || ok {
		t.Fatalf("fresh store ok=%v err=%v", ok, err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(config.Config{DBDriver: "postgres"}); err == nil {
		t.Fatal("expected error")
	}
}

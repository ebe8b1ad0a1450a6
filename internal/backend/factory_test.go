package backend

import (
	"context"
	"path/filepath"
	"testing"

	"gestao/internal/auth"
	"gestao/internal/config"
	"gestao/internal/remote/memory"
	"gestao/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", AMQPURL: "amqp://h", AMQPExchange: "gestao"}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if bc.Type != SQLiteBackend || bc.SQLiteDBPath != "x.db" || bc.AMQPExchange != "gestao" {
		t.Errorf("unexpected config %+v", bc)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sqlite amqp without exchange", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db", AMQPURL: "amqp://h"}, true},
		{"memory with amqp", Config{Type: MemoryBackend, AMQPURL: "amqp://h"}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if _, ok := res.Store.(*memory.Store); !ok {
		t.Errorf("Store = %T", res.Store)
	}
	if _, ok := res.Users.(*auth.MemoryUserStore); !ok {
		t.Errorf("Users = %T", res.Users)
	}
	if res.Consume != nil || res.Ready != nil {
		t.Error("memory backend has no fan-out or readiness check")
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gestao.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if _, ok := res.Store.(*storage.SQLiteRepository); !ok {
		t.Errorf("Store = %T", res.Store)
	}
	if res.Users != res.Store.(auth.UserStore) {
		t.Error("sqlite backend should serve users from the same repository")
	}
	if err := res.Ready(context.Background()); err != nil {
		t.Errorf("Ready: %v", err)
	}
	if res.Consume != nil {
		t.Error("fan-out enabled without AMQP_URL")
	}
}

func TestBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 2 || got[0] != "memory" || got[1] != "sqlite" {
		t.Errorf("GetBackendTypeStrings = %v", got)
	}
}

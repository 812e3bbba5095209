package server

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.CacheDir = t.TempDir()
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewServerRequiresConfigAndLogger(t *testing.T) {
	if _, err := NewServer(nil, testLogger()); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewServer(testConfig(t), nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport = "carrier-pigeon"
	if _, err := NewServer(cfg, testLogger()); err == nil {
		t.Error("expected error for invalid transport")
	}
}

func TestServerLifecycleOrdering(t *testing.T) {
	srv, err := NewServer(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	if err := srv.RegisterTools(); err == nil {
		t.Error("RegisterTools before Initialize should fail")
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("Start before Initialize should fail")
	}

	if err := srv.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := srv.Initialize(context.Background()); err == nil {
		t.Error("second Initialize should fail")
	}

	if err := srv.RegisterTools(); err != nil {
		t.Errorf("RegisterTools: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestInitializeRehydratesIndexFromCache(t *testing.T) {
	cfg := testConfig(t)

	srv, err := NewServer(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// A fresh install has nothing cached and nothing indexed.
	if got := srv.service.CachedCount(); got != 0 {
		t.Errorf("CachedCount() = %d, want 0", got)
	}
}

package liftoff

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tfkr-ae/liftoff/domain"
)

func TestWithLogger(t *testing.T) {
	t.Run("sets custom logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		server := newTestServer(t, "http://127.0.0.1:1", WithLogger(logger))
		if server.Logger != logger {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", logger, server.Logger)
		}

		server.Logger.Info("test log message")
		if !strings.Contains(buf.String(), "test log message") {
			t.Fatalf("\nwanted:\nlog output containing 'test log message'\ngot:\n%q", buf.String())
		}
	})

	t.Run("handles nil logger safely", func(t *testing.T) {
		server := newTestServer(t, "http://127.0.0.1:1", WithLogger(nil))
		if server.Logger == nil {
			t.Fatalf("\nwanted:\nnon-nil logger\ngot:\nnil")
		}

		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("\nwanted:\nno panic\ngot:\n%v", r)
			}
		}()
		server.Logger.Info("safe check")
	})
}

func TestWithConfigDir(t *testing.T) {
	t.Run("writes the defaults on first run", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "liftoff")
		server, err := New(WithConfigDir(dir))
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		defer server.Close()

		if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
			t.Fatalf("\nwanted:\nconfig.yaml\ngot:\n%v", err)
		}
		if server.Config.ConfigDir != dir {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", dir, server.Config.ConfigDir)
		}
		if server.Config.Port != "8080" || server.Config.SessionTTL != 30*time.Minute {
			t.Fatalf("\nwanted:\ndefaults\ngot:\n%+v", server.Config)
		}
	})

	t.Run("reads overrides from config.yaml", func(t *testing.T) {
		dir := t.TempDir()
		content := "port: \"9191\"\nsession_ttl: 5m\nupstream_url: http://127.0.0.1:1/launches\npretty_html: true\nlog_level: debug\n"
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		server, err := New(WithConfigDir(dir))
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		defer server.Close()

		cfg := server.Config
		if cfg.Port != "9191" || cfg.SessionTTL != 5*time.Minute || !cfg.PrettyHTML {
			t.Fatalf("\nwanted:\noverrides\ngot:\n%+v", cfg)
		}
		if cfg.Level() != slog.LevelDebug {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", slog.LevelDebug, cfg.Level())
		}
		if server.Upstream.URL != "http://127.0.0.1:1/launches" {
			t.Fatalf("\nwanted:\nconfigured upstream\ngot:\n%s", server.Upstream.URL)
		}
		if cfg.Address != "127.0.0.1" {
			t.Fatalf("\nwanted:\ndefault address\ngot:\n%s", cfg.Address)
		}
	})

	t.Run("persists Set", func(t *testing.T) {
		dir := t.TempDir()
		server, err := New(WithConfigDir(dir))
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		defer server.Close()

		if err := server.Config.Set("port", "7070"); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if server.Config.Port != "7070" {
			t.Fatalf("\nwanted:\n7070\ngot:\n%s", server.Config.Port)
		}

		reloaded, err := New(WithConfigDir(dir))
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		defer reloaded.Close()
		if reloaded.Config.Port != "7070" {
			t.Fatalf("\nwanted:\n7070\ngot:\n%s", reloaded.Config.Port)
		}
	})

	t.Run("rejects Set without a file", func(t *testing.T) {
		if err := DefaultConfig().Set("port", "1"); err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
	})
}

func TestConfigAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "::1"
	if got := cfg.Addr(); got != "[::1]:8080" {
		t.Fatalf("\nwanted:\n[::1]:8080\ngot:\n%s", got)
	}
	cfg.LogLevel = "loud"
	if cfg.Level() != slog.LevelInfo {
		t.Fatalf("\nwanted:\n%v\ngot:\n%v", slog.LevelInfo, cfg.Level())
	}
}

type closeCounter struct {
	Repository
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestWithRepo(t *testing.T) {
	t.Run("closes the previous repository", func(t *testing.T) {
		first := &closeCounter{}
		second := setupTestRepo(t)
		server := newTestServer(t, "http://127.0.0.1:1", WithRepo(first), WithRepo(second))

		if first.closed != 1 {
			t.Fatalf("\nwanted:\n1\ngot:\n%d", first.closed)
		}
		if server.Repo != second {
			t.Fatalf("\nwanted:\nsecond repository\ngot:\n%v", server.Repo)
		}
	})
}

func TestHandlerOptions(t *testing.T) {
	noopLog := func(domain.Log) error { return nil }
	noopFetch := func(domain.Fetch) error { return nil }

	tests := []struct {
		name    string
		options []func(*Server) error
	}{
		{
			name:    "rejects a second log handler",
			options: []func(*Server) error{WithLogHandler(noopLog), WithLogHandler(noopLog)},
		},
		{
			name:    "rejects a second fetch handler",
			options: []func(*Server) error{WithFetchHandler(noopFetch), WithFetchHandler(noopFetch)},
		},
		{
			name:    "rejects a nil config",
			options: []func(*Server) error{WithConfig(nil)},
		},
		{
			name:    "rejects a nil registry",
			options: []func(*Server) error{WithRegistry(nil)},
		},
		{
			name:    "rejects a missing key pair",
			options: []func(*Server) error{WithTLS(filepath.Join(t.TempDir(), "cert.pem"), filepath.Join(t.TempDir(), "key.pem"))},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.options...); err == nil {
				t.Fatalf("\nwanted:\nerror\ngot:\nnil")
			}
		})
	}
}

func TestWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	newTestServer(t, "http://127.0.0.1:1", WithRegistry(registry))

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
	}
	for _, family := range families {
		if family.GetName() == "liftoff_dashboard_sessions" {
			return
		}
	}
	t.Fatalf("\nwanted:\nliftoff_dashboard_sessions\ngot:\n%d families", len(families))
}

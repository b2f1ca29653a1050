package liftoff

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tfkr-ae/liftoff/dashboard"
	"github.com/tfkr-ae/liftoff/domain"
	"github.com/tfkr-ae/liftoff/upstream"
)

// WithOptions applies a series of configuration functions to the server instance.
// Each option function can modify the server configuration and return an error if it fails.
func (server *Server) WithOptions(options ...func(*Server) error) error {
	for _, option := range options {
		err := option(server)
		if err != nil {
			return fmt.Errorf("applying option on liftoff : %w", err)
		}
	}
	return nil
}

// WithConfigDir configures the server to use the specified configuration directory.
// It creates the directory if it doesn't exist and reads config.yaml from it, writing
// the defaults on first run.
func WithConfigDir(appConfigDir string) func(*Server) error {
	return func(server *Server) error {
		cfg, err := LoadConfig(appConfigDir)
		if err != nil {
			return err
		}
		server.Config = cfg
		return nil
	}
}

// WithConfig replaces the configuration without touching the file system.
func WithConfig(cfg *Config) func(*Server) error {
	return func(server *Server) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		server.Config = cfg
		return nil
	}
}

// WithLogger sets the structured logger, a nil logger keeps the discard logger.
func WithLogger(logger *slog.Logger) func(*Server) error {
	return func(server *Server) error {
		if logger == nil {
			server.Logger = slog.New(slog.DiscardHandler)
			return nil
		}
		server.Logger = logger
		return nil
	}
}

// WithRepo sets the audit repository, closing a previously set one.
func WithRepo(repo Repository) func(*Server) error {
	return func(server *Server) error {
		if server.Repo != nil {
			if err := server.Repo.Close(); err != nil {
				return fmt.Errorf("closing previous repository : %w", err)
			}
			server.Repo = nil
		}
		server.Repo = repo
		return nil
	}
}

// WithUpstream replaces the upstream client built from the configuration.
func WithUpstream(client *upstream.Client) func(*Server) error {
	return func(server *Server) error {
		if client == nil {
			return errors.New("upstream client is nil")
		}
		server.Upstream = client
		return nil
	}
}

// WithRenderer replaces the default page renderer.
func WithRenderer(renderer *dashboard.Renderer) func(*Server) error {
	return func(server *Server) error {
		if renderer == nil {
			return errors.New("renderer is nil")
		}
		server.Renderer = renderer
		return nil
	}
}

// WithRegistry registers the metrics on registry instead of a private one.
func WithRegistry(registry *prometheus.Registry) func(*Server) error {
	return func(server *Server) error {
		if registry == nil {
			return errors.New("registry is nil")
		}
		server.Registry = registry
		return nil
	}
}

// WithTLS loads a certificate and key so the listener also accepts HTTPS.
func WithTLS(certFile, keyFile string) func(*Server) error {
	return func(server *Server) error {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return fmt.Errorf("loading key pair %s : %w", certFile, err)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
			NextProtos:   []string{"http/1.1"},
		}
		return nil
	}
}

// WithLogHandler takes a handler function that will be executed on each stored log
func WithLogHandler(handler func(log domain.Log) error) func(*Server) error {
	return func(server *Server) error {
		if server.OnLog != nil {
			return errors.New("server already has a log handler defined")
		}
		server.OnLog = handler
		return nil
	}
}

// WithFetchHandler takes a handler function that will be executed on each stored fetch
func WithFetchHandler(handler func(fetch domain.Fetch) error) func(*Server) error {
	return func(server *Server) error {
		if server.OnFetch != nil {
			return errors.New("server already has a fetch handler defined")
		}
		server.OnFetch = handler
		return nil
	}
}

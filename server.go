// Package liftoff serves a dashboard of recent SpaceX launches and a proxy endpoint
// for the ten most recent launch records. It is designed to be embedded: the
// server is assembled from functional options and exposes its router so callers
// can mount it behind their own listener.
//
// The core functionality includes:
//   - Per-session dashboard views rendered on the server
//   - A pass-through proxy endpoint over the upstream launch listing
//   - An asynchronous audit log of every upstream fetch, stored in SQLite
//   - Prometheus metrics for fetches and sessions
//   - A single listener serving HTTP and, when configured, HTTPS
package liftoff

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tfkr-ae/liftoff/dashboard"
	"github.com/tfkr-ae/liftoff/domain"
	"github.com/tfkr-ae/liftoff/listener"
	"github.com/tfkr-ae/liftoff/upstream"
)

// auditBuffer is the capacity of the audit write queue
const auditBuffer = 64

var (
	// ErrServerClosed is returned when serving a closed server
	ErrServerClosed = errors.New("liftoff server is closed")

	// ErrInvalidLevel is returned by WriteLog for an unknown level
	ErrInvalidLevel = errors.New("level should be either: debug, info, warn, error")
)

// Repository defines the audit storage consumed by the server.
type Repository interface {
	domain.FetchRepository
	domain.LogRepository
	domain.StatsRepository
	Close() error
}

// Server orchestrates the dashboard, the proxy endpoint and the audit writer.
type Server struct {
	Config       *Config                        // Service configuration
	Logger       *slog.Logger                   // Structured logger
	Repo         Repository                     // Audit repository, nil when auditing is disabled
	Upstream     *upstream.Client               // Upstream launch listing client
	Sessions     *dashboard.Sessions            // Live dashboard views
	Renderer     *dashboard.Renderer            // Page renderer
	Registry     *prometheus.Registry           // Metrics registry exposed on /metrics
	Metrics      *Metrics                       // Fetch and session metrics
	TLSConfig    *tls.Config                    // Enables HTTPS on the listener when set
	AuditChannel chan any                       // Audit write queue of *domain.Fetch and *domain.Log items
	OnLog        func(log domain.Log) error     // Function to be ran on each written log
	OnFetch      func(fetch domain.Fetch) error // Function to be ran on each recorded fetch

	router     chi.Router
	httpServer *http.Server
	writerDone chan struct{}
	mu         sync.RWMutex
	closed     bool
}

// New creates a Server with the default configuration and applies the options.
// The audit writer starts immediately so that handlers can be exercised without Serve.
func New(options ...func(*Server) error) (*Server, error) {
	server := &Server{
		Config:       DefaultConfig(),
		Logger:       slog.New(slog.DiscardHandler),
		Registry:     prometheus.NewRegistry(),
		AuditChannel: make(chan any, auditBuffer),
		writerDone:   make(chan struct{}),
	}
	if err := server.WithOptions(options...); err != nil {
		return nil, err
	}

	if server.Upstream == nil {
		client, err := server.newUpstream()
		if err != nil {
			return nil, err
		}
		server.Upstream = client
	}
	if server.Renderer == nil {
		renderer, err := dashboard.NewRenderer(dashboard.WithPrettyHTML(server.Config.PrettyHTML))
		if err != nil {
			return nil, fmt.Errorf("creating renderer : %w", err)
		}
		server.Renderer = renderer
	}
	server.Metrics = NewMetrics(server.Registry, server.sessionCount)
	server.Sessions = dashboard.NewSessions(
		dashboard.FetcherFunc(server.fetchForDashboard),
		server.Config.SessionLimit,
		server.Config.SessionTTL,
		server.Logger,
	)
	server.router = server.routes()

	go server.WriteToDB()
	return server, nil
}

func (server *Server) newUpstream() (*upstream.Client, error) {
	options := []func(*upstream.Client) error{
		upstream.WithLogger(server.Logger),
		upstream.WithUserAgent("liftoff"),
	}
	if server.Config.UpstreamTimeout > 0 {
		options = append(options, upstream.WithTimeout(server.Config.UpstreamTimeout))
	}
	if server.Config.ChromeFingerprint {
		options = append(options, upstream.WithChromeFingerprint())
	}
	client, err := upstream.New(server.Config.UpstreamURL, options...)
	if err != nil {
		return nil, fmt.Errorf("creating upstream client : %w", err)
	}
	return client, nil
}

func (server *Server) sessionCount() float64 {
	if server.Sessions == nil {
		return 0
	}
	return float64(server.Sessions.Len())
}

// Handler returns the router serving every liftoff route.
func (server *Server) Handler() http.Handler {
	return server.router
}

// enqueue hands an item to the audit writer. Items are dropped when auditing is disabled or the server is closed.
func (server *Server) enqueue(item any) {
	server.mu.RLock()
	defer server.mu.RUnlock()
	if server.closed || server.Repo == nil {
		return
	}
	server.AuditChannel <- item
}

// WriteToDB drains the audit queue into the repository until the queue is closed.
func (server *Server) WriteToDB() {
	defer close(server.writerDone)
	for item := range server.AuditChannel {
		switch castItem := item.(type) {
		case *domain.Fetch:
			if err := server.Repo.InsertFetch(castItem); err != nil {
				server.Logger.Error("inserting fetch", "fetch_id", castItem.ID, "error", err)
				continue
			}
			if server.OnFetch != nil {
				server.OnFetch(*castItem)
			}
		case *domain.Log:
			if err := server.Repo.InsertLog(castItem); err != nil {
				server.Logger.Error("inserting log", "log_id", castItem.ID, "error", err)
				continue
			}
			if server.OnLog != nil {
				server.OnLog(*castItem)
			}
		default:
			server.Logger.Warn("unknown audit item", "type", fmt.Sprintf("%T", castItem))
		}
	}
}

// WriteLog logs the message and queues it for the audit repository.
func (server *Server) WriteLog(level string, message string, options ...func(log *domain.Log) error) error {
	var slogLevel slog.Level
	switch level {
	case "DEBUG":
		slogLevel = slog.LevelDebug
	case "INFO":
		slogLevel = slog.LevelInfo
	case "WARN":
		slogLevel = slog.LevelWarn
	case "ERROR":
		slogLevel = slog.LevelError
	default:
		return ErrInvalidLevel
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating new uuid : %w", err)
	}
	log := &domain.Log{
		ID:        id,
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
	for _, option := range options {
		if err := option(log); err != nil {
			return fmt.Errorf("applying log option : %w", err)
		}
	}

	attrs := make([]any, 0, 2*len(log.Context)+4)
	for key, value := range log.Context {
		attrs = append(attrs, key, value)
	}
	if log.FetchID != nil {
		attrs = append(attrs, "fetch_id", log.FetchID.String())
	}
	if log.SessionID != nil {
		attrs = append(attrs, "session_id", log.SessionID.String())
	}
	server.Logger.Log(context.Background(), slogLevel, message, attrs...)

	server.enqueue(log)
	return nil
}

// GetListener opens the TCP listener for the configured address.
// HTTPS is accepted on the same port when a TLS configuration is set.
func (server *Server) GetListener() (net.Listener, error) {
	raw, err := net.Listen("tcp", server.Config.Addr())
	if err != nil {
		return nil, fmt.Errorf("setting up listener on %s : %w", server.Config.Addr(), err)
	}
	var l net.Listener = raw
	if server.TLSConfig != nil {
		l = listener.NewSniffListener(raw, server.TLSConfig)
	}
	return listener.NewResilientListener(l, server.Logger), nil
}

// Serve accepts connections on l until the server is closed.
func (server *Server) Serve(l net.Listener) error {
	server.mu.Lock()
	if server.closed {
		server.mu.Unlock()
		return ErrServerClosed
	}
	server.httpServer = &http.Server{
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(server.Logger.Handler(), slog.LevelWarn),
	}
	httpServer := server.httpServer
	server.mu.Unlock()

	server.WriteLog("INFO", fmt.Sprintf("liftoff started on %s", l.Addr()))
	if err := httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http : %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests, then closes the server.
func (server *Server) Shutdown(ctx context.Context) error {
	server.mu.RLock()
	httpServer := server.httpServer
	server.mu.RUnlock()

	var shutdownErr error
	if httpServer != nil {
		shutdownErr = httpServer.Shutdown(ctx)
	}
	return errors.Join(shutdownErr, server.Close())
}

// Close unmounts every session, drains the audit queue and closes the repository. It is idempotent.
func (server *Server) Close() error {
	server.mu.Lock()
	if server.closed {
		server.mu.Unlock()
		return nil
	}
	server.closed = true
	close(server.AuditChannel)
	server.mu.Unlock()

	server.Sessions.Close()
	<-server.writerDone

	if server.Repo != nil {
		if err := server.Repo.Close(); err != nil {
			return fmt.Errorf("closing repository : %w", err)
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tfkr-ae/liftoff"
	"github.com/tfkr-ae/liftoff/db"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("address", "", "Listen address, overrides the config file")
	serveCmd.Flags().StringP("port", "p", "", "Listen port, overrides the config file")
	serveCmd.Flags().Bool("no-audit", false, "Do not persist fetches and logs")
}

// withFlags applies the command line overrides on top of the loaded configuration.
func withFlags(cmd *cobra.Command) func(*liftoff.Server) error {
	return func(server *liftoff.Server) error {
		if address, _ := cmd.Flags().GetString("address"); address != "" {
			server.Config.Address = address
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			server.Config.Port = port
		}
		if noAudit, _ := cmd.Flags().GetBool("no-audit"); noAudit {
			server.Config.AuditEnabled = false
		}
		return nil
	}
}

// withJSONLogger logs to stderr at the configured level.
func withJSONLogger() func(*liftoff.Server) error {
	return func(server *liftoff.Server) error {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: server.Config.Level()}))
		return liftoff.WithLogger(logger)(server)
	}
}

// withAudit opens the audit database in the config directory when auditing is enabled.
func withAudit() func(*liftoff.Server) error {
	return func(server *liftoff.Server) error {
		if !server.Config.AuditEnabled {
			return nil
		}
		conn, err := db.New(filepath.Join(server.Config.ConfigDir, server.Config.DBName))
		if err != nil {
			return fmt.Errorf("opening audit database : %w", err)
		}
		return liftoff.WithRepo(db.NewRepository(conn))(server)
	}
}

func withConfiguredTLS() func(*liftoff.Server) error {
	return func(server *liftoff.Server) error {
		if server.Config.TLSCert == "" || server.Config.TLSKey == "" {
			return nil
		}
		return liftoff.WithTLS(server.Config.TLSCert, server.Config.TLSKey)(server)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	server, err := liftoff.New(
		liftoff.WithConfigDir(configDir(cmd)),
		withFlags(cmd),
		withJSONLogger(),
		withAudit(),
		withConfiguredTLS(),
	)
	if err != nil {
		return err
	}

	l, err := server.GetListener()
	if err != nil {
		server.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(l)
	})
	g.Go(func() error {
		<-ctx.Done()
		server.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

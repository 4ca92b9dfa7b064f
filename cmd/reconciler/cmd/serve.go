package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-reconciliation-service/cmd/reconciler/config"
	"ledger-reconciliation-service/internal/api"
	"ledger-reconciliation-service/internal/session"
	"ledger-reconciliation-service/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes the upload, reconcile, show, export and reset workflow over
HTTP. Each browser session keeps its uploaded datasets and latest result
in the session store until it expires.

Examples:
  reconciler serve
  reconciler serve --addr :9000 --allowed-origins https://books.example.com
  reconciler serve --session-store sqlite --session-db /var/lib/reconciler/sessions.db --session-ttl 8h`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	serveCmd.Flags().StringSlice("allowed-origins", api.DefaultConfig().AllowedOrigins, "origins allowed to call the API")
	serveCmd.Flags().String("session-store", config.StoreMemory, "session store: memory, sqlite")
	serveCmd.Flags().String("session-db", "reconciler-sessions.db", "sqlite database path for the sqlite session store")
	serveCmd.Flags().Duration("session-ttl", session.DefaultTTL, "how long an idle session is kept")
	serveCmd.Flags().Duration("purge-interval", 10*time.Minute, "how often expired sessions are removed")

	for _, name := range []string{"addr", "allowed-origins", "session-store", "session-db", "session-ttl", "purge-interval"} {
		_ = viper.BindPFlag(name, serveCmd.Flags().Lookup(name))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger().WithComponent("serve")

	service, err := newService()
	if err != nil {
		return err
	}

	ttl := viper.GetDuration("session-ttl")
	serverConfig, err := config.CreateServerConfig(
		viper.GetString("addr"),
		viper.GetStringSlice("allowed-origins"),
		ttl,
		viper.GetInt("max-upload-mb"),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := config.OpenSessionStore(ctx, viper.GetString("session-store"), viper.GetString("session-db"), ttl)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	manager := session.NewManager(store, service)
	server := api.NewServer(serverConfig, manager, log)

	go purgeSessions(ctx, manager, viper.GetDuration("purge-interval"), log)

	// Handle graceful shutdown
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		log.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		stop()
		<-done
		return err
	}

	<-done
	log.Info("Server stopped")
	return nil
}

func purgeSessions(ctx context.Context, manager *session.Manager, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := manager.Purge(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("Failed to purge expired sessions")
			}
		}
	}
}

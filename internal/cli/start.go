package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/agupredict/internal/config"
	"github.com/haskel/agupredict/internal/forecast"
	"github.com/haskel/agupredict/internal/invoker"
	"github.com/haskel/agupredict/internal/logger"
	"github.com/haskel/agupredict/internal/metrics"
	"github.com/haskel/agupredict/internal/server"
	"github.com/haskel/agupredict/internal/stats"
	"github.com/haskel/agupredict/internal/storage"
)

// statsAlpha is the smoothing factor of the invocation averages.
const statsAlpha = 0.2

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the agupredict server",
	Long: `Start the agupredict server in foreground mode.

The scripts directory comes from scripts.dir in the config file or from
PYTHON_SCRIPT_PATH. The server refuses to start without one.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve(cfgFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	log.Info("agupredict starting",
		"version", Version,
		"config", cfgFile,
		"scripts_dir", cfg.Scripts.Dir,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inv := invoker.New(invoker.OptionsFromConfig(cfg.Scripts), log)

	tracker := stats.NewTracker(statsAlpha)
	inv.Observe(tracker.Record)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		inv.Observe(m.ObserveInvocation)
	}

	var store *storage.Storage
	if cfg.Persistence.Enabled {
		store = storage.New(cfg.Persistence.DataDir, cfg.FlushInterval(), log)

		if err := store.Load(); err != nil {
			log.Warn("failed to load persisted stats", "error", err)
		}

		if n := store.OperationCount(); n > 0 {
			tracker.LoadStats(store.AllStats())
			log.Info("loaded persisted stats", "operations", n)
		}

		tracker.SetObserver(store.UpdateOperation)
		store.Start(ctx)
	}

	if cfg.Server.PIDFile != "" {
		if err := writePIDFile(cfg.Server.PIDFile); err != nil {
			log.Warn("failed to write PID file", "error", err)
		} else {
			defer os.Remove(cfg.Server.PIDFile)
		}
	}

	svc := forecast.NewService(inv, cfg.Scripts, log)
	srv := server.New(cfg, svc, tracker, m, log, Version)

	sighupCh := make(chan os.Signal, 1)
	sigCh := make(chan os.Signal, 1)
	shutdownDone := make(chan struct{})

	signal.Notify(sighupCh, syscall.SIGHUP)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			select {
			case <-sighupCh:
				log.Info("SIGHUP received, reloading configuration")

				newCfg, err := config.Resolve(cfgFile)
				if err != nil {
					log.Error("invalid configuration, reload aborted", "error", err)
					continue
				}

				srv.ReloadConfig(newCfg)
			case <-shutdownDone:
				return
			}
		}
	}()

	go func() {
		<-sigCh

		log.Info("shutdown signal received")

		signal.Stop(sighupCh)
		signal.Stop(sigCh)
		close(shutdownDone)

		// In-flight requests keep their scripts running until done or
		// until the script timeout fires, so allow for a full one.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Scripts.Timeout()+10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}

		if store != nil {
			if err := store.Stop(); err != nil {
				log.Error("storage shutdown error", "error", err)
			}
		}

		cancel()
	}()

	log.Info("agupredict ready", "addr", srv.Addr())

	if err := srv.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	<-ctx.Done()
	log.Info("agupredict stopped")
	return nil
}

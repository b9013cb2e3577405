package cmd

import (
	"bimvault/internal/config"
	"bimvault/internal/daemon"
	"bimvault/internal/logger"
	"bimvault/internal/model"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled backups and the control API",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	runner := daemon.NewRunner(func(ctx context.Context, trigger string) (*model.RunReport, error) {
		return executeRun(ctx, trigger, nil)
	}, cfg.Interval, clock.WallClock)

	// Only the interval is applied hot; credentials and storage are read
	// at the start of each pass from the snapshot loaded on boot.
	config.Watch(func(updated *config.Config) {
		runner.SetInterval(updated.Interval)
	})

	go runner.Loop(ctx)

	srv := daemon.NewServer(runner, cfg.DaemonPort)
	srv.Start()

	logger.Log.Info("bimvault daemon started",
		zap.Int("port", cfg.DaemonPort),
		zap.Duration("interval", cfg.Interval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info("shutting down",
			zap.String("signal", sig.String()))
	case <-srv.StopCh():
		logger.Log.Info("stop requested via API")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

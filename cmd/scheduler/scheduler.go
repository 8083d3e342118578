// Package scheduler implements the daemon command: a daily crawl plus the
// status HTTP server.
package scheduler

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/fincrawl/cmd/common"
	"github.com/jonesrussell/fincrawl/internal/api"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

// shutdownTimeout bounds how long Stop waits for an in-flight run.
const shutdownTimeout = 10 * time.Minute

const serverShutdownTimeout = 10 * time.Second

// Command returns the daemon command.
func Command(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		Aliases: []string{"scheduler"},
		Short:   "Crawl now and then once a day at the configured time",
		Long: `Start the daily scheduler. One run happens immediately, then one per day at
--hour:--minute. An interrupt stops the schedule and waits for a run in
progress to finish before exiting. A second interrupt exits immediately.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), version)
		},
	}

	cmd.Flags().Int("hour", 0, "hour of the daily run (0-23)")
	cmd.Flags().Int("minute", 0, "minute of the daily run (0-59)")
	cmd.Flags().Bool("no-server", false, "do not start the status HTTP server")
	_ = viper.BindPFlag("schedule.hour", cmd.Flags().Lookup("hour"))
	_ = viper.BindPFlag("schedule.minute", cmd.Flags().Lookup("minute"))
	_ = viper.BindPFlag("server.disabled", cmd.Flags().Lookup("no-server"))

	return cmd
}

func run(parent context.Context, version string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	cfg := deps.Config
	log := deps.Logger

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// The eager run blocks Start; a second signal must still kill the process.
	go releaseOnDone(ctx, stop)

	app, err := common.NewApp(ctx, deps)
	if err != nil {
		return err
	}
	defer app.Close()

	var (
		server *api.Server
		errCh  <-chan error
	)
	if cfg.Server.Enabled && !viper.GetBool("server.disabled") {
		server = api.NewServer(api.Config{
			Addr:         cfg.Server.Addr,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			Debug:        cfg.App.Debug,
			Version:      version,
		}, app.Scheduler, app.Registry, log.With(logger.String("component", "api")))
		errCh = server.StartAsync()
	}

	if err = app.Scheduler.Start(ctx, cfg.Schedule.Hour, cfg.Schedule.Minute); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err = <-errCh:
		if err != nil {
			log.Error("HTTP server failed", logger.Error(err))
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := app.Scheduler.Stop(stopCtx); stopErr != nil {
		log.Warn("Scheduler did not stop cleanly", logger.Error(stopErr))
	}

	if server != nil {
		srvCtx, srvCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer srvCancel()
		if shutdownErr := server.Shutdown(srvCtx); shutdownErr != nil {
			log.Warn("HTTP server shutdown failed", logger.Error(shutdownErr))
		}
	}

	return err
}

// releaseOnDone calls stop once ctx is done, restoring default signal handling.
func releaseOnDone(ctx context.Context, stop context.CancelFunc) {
	<-ctx.Done()
	stop()
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duet-backup/core/loader"
	"duet-backup/core/server"
	"duet-backup/feature/status"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var startInterval time.Duration

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run backups on a schedule",
	Long: `Runs a backup pass every backup.interval, starting one interval after the
last backup found on the branch. With a zero interval a single pass runs.
When server.enabled is set the status API is served alongside.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		interval := time.Duration(-1)
		if cmd.Flags().Changed("interval") {
			interval = startInterval
		}
		sched := a.scheduler(interval)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)

		if a.cfg.Server.Enabled {
			mgr := loader.NewManager()
			mgr.Register(status.NewFeature(sched, a.engine, a.logger))

			app, err := server.NewApp(a.cfg.Server, mgr, a.logger)
			if err != nil {
				return err
			}
			g.Go(func() error {
				return server.Serve(gctx, app, a.cfg.Server, a.logger)
			})
		}

		g.Go(func() error {
			// The server stops with the scheduler.
			defer cancel()
			return sched.Run(gctx)
		})

		err = g.Wait()
		if err == nil {
			a.logger.Info("Stopped")
		} else {
			a.logger.Debug("Stopped with error", zap.Error(err))
		}
		return err
	},
}

func init() {
	startCmd.Flags().DurationVar(&startInterval, "interval", 0, "override backup.interval (e.g. 6h, 0 for a single pass)")
	RootCmd.AddCommand(startCmd)
}

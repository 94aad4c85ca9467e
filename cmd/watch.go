package main

import (
	"time"

	"github.com/spf13/cobra"

	"codeagents/internal/bootstrap"
	domain "codeagents/internal/domain/analysis"
)

var watchInterval time.Duration

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-analyze a directory periodically until interrupted",
		Long: `Re-analyze a directory on an interval and monitor API key age.

Serves Prometheus metrics on /metrics when METRICS_ADDR is set.
Stops on SIGINT or SIGTERM after the current scan finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().DurationVarP(&watchInterval, "interval", "i", 0,
		"Scan interval (default: workers.watch_interval, env: WATCH_INTERVAL)")
	cmd.Flags().StringVarP(&outputFormat, "format", "o", formatText, "Output format: text or json")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	failOn = failOnNone
	if err := validateOutputFlags(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := newContainer()
	if err != nil {
		return err
	}
	defer c.Shutdown()

	out := cmd.OutOrStdout()
	err = c.InitWatch(bootstrap.WatchOptions{
		Dir:      args[0],
		Interval: watchInterval,
		OnReport: func(report *domain.Report) {
			if err := writeReport(out, outputFormat, report); err != nil {
				c.Log.Warnw("Failed to write report", "error", err)
			}
		},
	})
	if err != nil {
		return err
	}

	if err := c.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		c.Log.Info("Shutting down...")
	case <-c.Context.Done():
		c.Log.Warn("Stopping after a fatal component error")
	}
	return nil
}

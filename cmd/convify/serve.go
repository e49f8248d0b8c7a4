package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"convify/internal/daemon"
	"convify/internal/deps"
	"convify/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd, ctx)
		},
	}
}

func runDaemonProcess(cmd *cobra.Command, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	statuses := deps.CheckBinaries(signalCtx, deps.Requirements(cfg))
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		logging.WarnWithContext(logger, "required tools missing", "dependency_missing",
			logging.String("missing", strings.Join(missing, ", ")),
			logging.String(logging.FieldErrorHint, "install the listed tools or fix youtube.ytdlp_binary"),
			logging.String(logging.FieldImpact, "conversions fail and /v1/health reports DOWN"),
		)
	}

	d, err := daemon.New(signalCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer func() {
		if closeErr := d.Close(); closeErr != nil {
			logger.Warn("daemon close failed", logging.Error(closeErr))
		}
	}()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	status := d.Status()
	fmt.Fprintf(cmd.OutOrStdout(), "Convify daemon running (pid %d)\n", status.PID)
	if status.APIAddress != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "API listening on http://%s\n", status.APIAddress)
	}

	<-signalCtx.Done()
	d.Stop()
	fmt.Fprintln(cmd.OutOrStdout(), "Convify daemon stopped")
	return nil
}

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tapedeck/internal/daemon"
	"tapedeck/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the job worker and HTTP API for a project",
		Args:  cobra.NoArgs,
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

	p, err := ctx.openProject(signalCtx, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	d, err := daemon.New(p, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving project %s on http://%s\n", p.Paths.Slug, d.Addr())

	select {
	case <-signalCtx.Done():
		logger.Info("tapedeck daemon shutting down", logging.Event("daemon_shutdown"))
		return nil
	case err := <-d.Errors():
		return err
	}
}

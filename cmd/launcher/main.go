package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/node-launcher/cmd/flags"
	"github.com/ruteri/node-launcher/launcher"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "launcher",
		Usage: "Start a local node and keep it running until interrupted",
		Flags: flags.CommonFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			node, err := launcher.Launch(ctx, flags.LaunchOptions(cCtx, logger))
			if err != nil {
				logger.Error("Failed to launch node", "err", err)
				return err
			}

			state := node.State()
			logger.Info("Node is running, press Ctrl+C to stop",
				"httpPort", state.HTTPPort(),
				"publicKey", state.PublicKey(),
				"dataDir", state.DataDir())

			select {
			case <-ctx.Done():
				logger.Info("Shutdown signal received")
			case <-node.Done():
				logger.Info("Node exited")
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), flags.StopTimeout)
			defer cancel()
			if err := node.Close(stopCtx); err != nil {
				logger.Error("Node shutdown failed", "err", err)
				return err
			}
			logger.Info("Node shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		var stepErr *launcher.StepError
		if errors.As(err, &stepErr) {
			fmt.Fprintf(os.Stderr, "launcher: %s failed: %v\n", stepErr.Step, stepErr.Err)
			if stepErr.Path != "" {
				fmt.Fprintf(os.Stderr, "launcher: path: %s\n", stepErr.Path)
			}
		} else {
			fmt.Fprintf(os.Stderr, "launcher: %v\n", err)
		}
		os.Exit(1)
	}
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cheesecave/backend/internal/agent"
	"cheesecave/backend/internal/config"
	"cheesecave/backend/internal/hardware"
	"cheesecave/backend/internal/shared/helpers"
	"cheesecave/backend/pkg/console"
	"cheesecave/backend/pkg/utils"
)

func main() {
	sigCtx, sigCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer sigCancel()

	config, err := config.New()
	if err != nil {
		fatalIfErr(slog.Default(), fmt.Errorf("failed to create config: %w", err))
	}

	defer func() {
		if err := config.Close(); err != nil {
			slog.Default().Error("failed to close config", utils.ErrAttr(err))
		}
	}()

	logger := helpers.GetLogger(config)
	logger.Log(sigCtx, console.LevelBanner, "Cheese Cave device app.")

	hw, err := hardware.Open(logger, config)
	fatalIfErr(logger, err)

	defer utils.LogOnError(logger, hw.Close, "failed to release hardware")

	a, err := agent.New(logger, config, hw)
	if err != nil {
		utils.LogOnError(logger, hw.Close, "failed to release hardware")
		fatalIfErr(logger, err)
	}

	if config.ExitOnEnter && console.IsTerminal(os.Stdin) {
		go waitForEnter(logger, sigCancel)
	}

	// Returns once the signal context is done
	a.Run(sigCtx)

	logger.Info("device app exited gracefully")
}

func waitForEnter(l *slog.Logger, cancel context.CancelFunc) {
	l.Info("Press Enter to exit")

	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		l.Warn("stopped reading console", utils.ErrAttr(err))
		return
	}

	l.Info("Enter pressed, shutting down...")
	cancel()
}

func fatalIfErr(l *slog.Logger, err error) {
	if err == nil {
		return
	}

	l.Error("error", utils.ErrAttr(err))
	os.Exit(1)
}

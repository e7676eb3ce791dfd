package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cheesecave/backend/internal/config"
	"cheesecave/backend/internal/hub"
	hubapi "cheesecave/backend/internal/hub/api"
	apicommon "cheesecave/backend/internal/shared/api"
	"cheesecave/backend/internal/shared/helpers"
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

	//  MQTT Broker
	mqttAddr := fmt.Sprintf(":%d", config.MQTTBrokerPort)
	mqttBroker, emulator, err := hub.NewServer(logger, mqttAddr)
	fatalIfErr(logger, err)

	go func() {
		logger.Info("MQTT broker listening", slog.String("address", mqttAddr))

		if err := mqttBroker.Serve(); err != nil {
			logger.Error("MQTT broker failed", utils.ErrAttr(err))
			sigCancel()
		}
	}()

	// HTTP Server
	mw := apicommon.NewMiddlewareHandler(logger)
	router := hubapi.NewHandler(logger, emulator).Router(mw)

	httpServer := apicommon.NewHTTPServer(logger, fmt.Sprintf(":%d", config.Port), router)
	httpServer.StartOnBackground(sigCancel)

	// Wait for signal (either OS or some failure)
	<-sigCtx.Done()
	logger.Info("received signal, shutting down...")

	if err := httpServer.ShutdownWithDefaultTimeout(); err != nil {
		logger.Error("http server shutdown failed", utils.ErrAttr(err))
	}

	logger.Info("mqtt broker shutting down...")

	if err := mqttBroker.Close(); err != nil {
		logger.Error("mqtt broker shutdown failed", utils.ErrAttr(err))
	}

	logger.Info("hub exited gracefully")
}

func fatalIfErr(l *slog.Logger, err error) {
	if err == nil {
		return
	}

	l.Error("error", utils.ErrAttr(err))
	os.Exit(1)
}

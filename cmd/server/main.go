package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/app"
	"github.com/wadjakorntonsri/go-linkpage/pkg/config"
	"github.com/wadjakorntonsri/go-linkpage/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.IsProduction())

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to start")
	}
	defer application.Close()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      application.Handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("graceful shutdown failed")
		}
	}()

	logger.WithField("port", cfg.Port).Info("server starting")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server stopped")
	}
	logger.Info("server stopped")
}

// Package main запускает автономный HTTP-сервис расчёта процентов.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/fincalc/internal/config"
	"github.com/mmeshcher/fincalc/internal/handler"
	"github.com/mmeshcher/fincalc/internal/server"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.ParseEngine()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	srv := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           handler.SetupEngineRouter(logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, srv, logger); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

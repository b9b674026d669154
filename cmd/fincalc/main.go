// Package main запускает HTTP-сервер сервиса расчёта процентов с историей.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/fincalc/internal/calcclient"
	"github.com/mmeshcher/fincalc/internal/calculator"
	"github.com/mmeshcher/fincalc/internal/config"
	"github.com/mmeshcher/fincalc/internal/handler"
	"github.com/mmeshcher/fincalc/internal/history"
	"github.com/mmeshcher/fincalc/internal/identity"
	"github.com/mmeshcher/fincalc/internal/middleware"
	"github.com/mmeshcher/fincalc/internal/repository"
	"github.com/mmeshcher/fincalc/internal/server"
	"github.com/mmeshcher/fincalc/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.Open(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var calc service.Calculator = calculator.Engine{}
	if cfg.CalcServiceAddress != "" {
		calc = calcclient.NewClient(cfg.CalcServiceAddress)
	}

	projector := history.NewProjector(repo, logger)

	svc := service.NewService(repo, calc, projector, logger)
	defer svc.Close()

	var (
		signIn    middleware.SignInStarter
		completer handler.SignInCompleter
	)
	if cfg.OAuth.Enabled() {
		provider := identity.NewOAuthProvider(identity.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			AuthURL:      cfg.OAuth.AuthURL,
			TokenURL:     cfg.OAuth.TokenURL,
			UserInfoURL:  cfg.OAuth.UserInfoURL,
		})
		signIn = provider
		completer = provider
	} else {
		sugar.Warn("oauth is not configured, sign in is disabled")
	}

	sessions := middleware.NewSessionMiddleware(cfg.SessionSecret, cfg.SessionTTL, cfg.SessionTimeout, signIn, logger)
	h := handler.NewHandler(svc, projector, completer, logger, sessions)

	baseCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()

	srv := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	// Потоки истории не завершаются сами, поэтому Shutdown отменяет их контекст.
	srv.RegisterOnShutdown(cancelStreams)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, srv, logger); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

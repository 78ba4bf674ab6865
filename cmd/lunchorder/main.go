// Package main запускает HTTP-сервер сервиса корпоративных обедов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/lunchorder-system/internal/aggregator"
	"github.com/mmeshcher/lunchorder-system/internal/clock"
	"github.com/mmeshcher/lunchorder-system/internal/config"
	"github.com/mmeshcher/lunchorder-system/internal/handler"
	"github.com/mmeshcher/lunchorder-system/internal/lobby"
	"github.com/mmeshcher/lunchorder-system/internal/model"
	"github.com/mmeshcher/lunchorder-system/internal/notify"
	"github.com/mmeshcher/lunchorder-system/internal/repository"
	"github.com/mmeshcher/lunchorder-system/internal/scheduler"
	"github.com/mmeshcher/lunchorder-system/internal/service"
)

// notifier объединяет уведомления ресторанам и участникам лобби.
type notifier interface {
	SendGroupOrder(ctx context.Context, notice model.GroupOrderNotice) error
	NotifyLobbyCancelled(ctx context.Context, chatID int64, slotTime string) error
}

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	clk, err := clock.New(cfg.Timezone)
	if err != nil {
		sugar.Fatalw("timezone error", "error", err.Error())
	}

	var sink notifier = notify.Noop{}
	if cfg.TelegramToken != "" {
		tg, err := notify.New(cfg.TelegramToken, logger)
		if err != nil {
			sugar.Fatalw("telegram initialization error", "error", err.Error())
		}
		sink = tg
	} else {
		sugar.Warn("telegram token is not set, notifications are disabled")
	}

	slots := cfg.Slots()

	lobbyEngine := lobby.New(repo, slots, cfg.LobbyLeadMinutes, cfg.MinLobbyParticipants, logger)
	aggEngine := aggregator.New(repo, sink, slots, cfg.OrderLeadMinutes, logger)

	sched := scheduler.New(lobbyEngine, aggEngine, sink, clk,
		time.Duration(cfg.CheckIntervalSeconds)*time.Second, logger)

	svc := service.NewService(repo, lobbyEngine, clk, slots)

	h := handler.NewHandler(svc, logger)
	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового планировщика дедлайнов
	sched.Start(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting lunchorder server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

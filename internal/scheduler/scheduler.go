// Package scheduler содержит периодический драйвер дедлайнов слотов доставки.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/lunchorder-system/internal/lobby"
)

// Clock выдаёт текущую дату и минуты с полуночи в настроенном часовом поясе.
type Clock interface {
	Today() string
	NowMinutes() int
}

// LobbySweeper отменяет лобби, не набравшие кворум к своему дедлайну.
type LobbySweeper interface {
	SweepDeadlines(ctx context.Context, nowMinutes int, today string) []lobby.Cancellation
}

// OrderAggregator собирает ожидающие заказы в групповые после дедлайна.
type OrderAggregator interface {
	Aggregate(ctx context.Context, nowMinutes int, today string)
}

// Notifier уведомляет пользователей об отмене их броней лобби.
type Notifier interface {
	NotifyLobbyCancelled(ctx context.Context, chatID int64, slotTime string) error
}

// Scheduler раз в интервал прогоняет обе проверки дедлайнов: сначала лобби,
// затем агрегацию заказов. Состояние между тиками живёт только в хранилище.
type Scheduler struct {
	lobby    LobbySweeper
	agg      OrderAggregator
	notifier Notifier
	clk      Clock
	interval time.Duration
	logger   *zap.Logger

	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// New создаёт планировщик с указанным интервалом проверки.
func New(lobbySweeper LobbySweeper, agg OrderAggregator, notifier Notifier, clk Clock, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		lobby:    lobbySweeper,
		agg:      agg,
		notifier: notifier,
		clk:      clk,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start запускает фоновый цикл: один прогон сразу, далее по таймеру.
// Останавливается по Stop или по отмене родительского контекста.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)

		s.RunAll(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunAll(ctx)
			}
		}
	}()
}

// Stop отменяет таймер. Начатые записи в хранилище завершаются сами,
// дренирования нет.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		<-s.done
	})
}

// RunAll выполняет один тик: обе проверки по очереди, каждая со своей
// защитой от паники, чтобы сбой одной не ломал другую и будущие тики.
func (s *Scheduler) RunAll(ctx context.Context) {
	start := time.Now()
	tickRuns.Inc()

	now := s.clk.NowMinutes()
	today := s.clk.Today()

	s.runProtected("lobby", func() {
		cancelled := s.lobby.SweepDeadlines(ctx, now, today)
		s.notifyCancelled(ctx, cancelled)
	})

	s.runProtected("aggregation", func() {
		s.agg.Aggregate(ctx, now, today)
	})

	tickDuration.Observe(time.Since(start).Seconds())
}

func (s *Scheduler) notifyCancelled(ctx context.Context, cancelled []lobby.Cancellation) {
	for _, c := range cancelled {
		for _, u := range c.Users {
			if err := s.notifier.NotifyLobbyCancelled(ctx, u.TelegramChatID, c.SlotTime); err != nil {
				s.logger.Error("notify lobby cancelled failed",
					zap.Int64("userID", u.ID),
					zap.String("slot", c.SlotTime),
					zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) runProtected(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			sweepPanics.Inc()
			s.logger.Error("sweep panicked", zap.String("sweep", name), zap.Any("panic", r))
		}
	}()

	fn()
}

// Package lobby реализует кворумную логику лобби слотов доставки.
package lobby

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/lunchorder-system/internal/model"
	"github.com/mmeshcher/lunchorder-system/internal/repository"
	"github.com/mmeshcher/lunchorder-system/internal/schedule"
)

// Repository описывает контракт доступа к броням, используемый движком лобби.
type Repository interface {
	AddReservation(ctx context.Context, res model.LobbyReservation) error
	RemoveReservation(ctx context.Context, res model.LobbyReservation) error
	CountReservations(ctx context.Context, key model.SlotKey) (int, error)
	ReservationUsers(ctx context.Context, key model.SlotKey) ([]model.User, error)
	DeleteReservations(ctx context.Context, key model.SlotKey) error
	ReservedPairs(ctx context.Context, slot, date string) ([]repository.Pair, error)
}

// Cancellation описывает отменённое лобби и пользователей для уведомления.
type Cancellation struct {
	Key      model.SlotKey
	SlotTime string
	Users    []model.User
}

// Engine управляет бронями лобби и отменой недобравших кворум слотов.
type Engine struct {
	repo            Repository
	slots           []model.Slot
	leadMinutes     int
	minParticipants int
	logger          *zap.Logger
}

// New создаёт движок лобби.
func New(repo Repository, slots []model.Slot, leadMinutes, minParticipants int, logger *zap.Logger) *Engine {
	return &Engine{
		repo:            repo,
		slots:           slots,
		leadMinutes:     leadMinutes,
		minParticipants: minParticipants,
		logger:          logger,
	}
}

// Join добавляет бронь пользователя. Повторный вызов — no-op.
func (e *Engine) Join(ctx context.Context, key model.SlotKey, userID int64) error {
	return e.repo.AddReservation(ctx, model.LobbyReservation{
		BuildingID:   key.BuildingID,
		RestaurantID: key.RestaurantID,
		DeliverySlot: key.DeliverySlot,
		OrderDate:    key.OrderDate,
		UserID:       userID,
	})
}

// Leave удаляет бронь пользователя. Отсутствующая бронь — no-op.
func (e *Engine) Leave(ctx context.Context, key model.SlotKey, userID int64) error {
	return e.repo.RemoveReservation(ctx, model.LobbyReservation{
		BuildingID:   key.BuildingID,
		RestaurantID: key.RestaurantID,
		DeliverySlot: key.DeliverySlot,
		OrderDate:    key.OrderDate,
		UserID:       userID,
	})
}

// Count возвращает число броней на ключ.
func (e *Engine) Count(ctx context.Context, key model.SlotKey) (int, error) {
	return e.repo.CountReservations(ctx, key)
}

// IsActivated сообщает, набрало ли лобби кворум, и возвращает текущее число
// броней. Активация всегда вычисляется из живого счётчика, отдельного
// статуса у лобби нет.
func (e *Engine) IsActivated(ctx context.Context, key model.SlotKey) (bool, int, error) {
	count, err := e.repo.CountReservations(ctx, key)
	if err != nil {
		return false, 0, err
	}
	return count >= e.minParticipants, count, nil
}

// SweepDeadlines отменяет лобби, не набравшие кворум к своему дедлайну.
// Возвращает список отмен с пользователями для уведомления. Ошибки по
// отдельным слотам и парам логируются и не прерывают обход остальных.
func (e *Engine) SweepDeadlines(ctx context.Context, nowMinutes int, today string) []Cancellation {
	var cancelled []Cancellation

	for _, slot := range e.slots {
		past, err := schedule.IsPast(slot.ID, e.leadMinutes, nowMinutes)
		if err != nil {
			e.logger.Error("lobby sweep: bad slot", zap.String("slot", slot.ID), zap.Error(err))
			continue
		}
		if !past {
			continue
		}

		pairs, err := e.repo.ReservedPairs(ctx, slot.ID, today)
		if err != nil {
			e.logger.Error("lobby sweep: list reserved pairs",
				zap.String("slot", slot.ID), zap.Error(err))
			continue
		}

		for _, pair := range pairs {
			key := model.SlotKey{
				RestaurantID: pair.RestaurantID,
				BuildingID:   pair.BuildingID,
				DeliverySlot: slot.ID,
				OrderDate:    today,
			}

			c, err := e.cancelIfUnderQuorum(ctx, key, slot.Time)
			if err != nil {
				e.logger.Error("lobby sweep: cancel lobby",
					zap.String("slot", slot.ID),
					zap.Int64("restaurant", key.RestaurantID),
					zap.Int64("building", key.BuildingID),
					zap.Error(err))
				continue
			}
			if c != nil {
				cancelled = append(cancelled, *c)
			}
		}
	}

	return cancelled
}

// cancelIfUnderQuorum удаляет брони ключа, если их больше нуля, но меньше
// кворума. Возвращает nil, если лобби пустое или кворум набран.
func (e *Engine) cancelIfUnderQuorum(ctx context.Context, key model.SlotKey, slotTime string) (*Cancellation, error) {
	count, err := e.repo.CountReservations(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("count reservations: %w", err)
	}

	if count == 0 || count >= e.minParticipants {
		return nil, nil
	}

	users, err := e.repo.ReservationUsers(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list reservation users: %w", err)
	}

	if err := e.repo.DeleteReservations(ctx, key); err != nil {
		return nil, fmt.Errorf("delete reservations: %w", err)
	}

	lobbiesCancelled.Inc()
	e.logger.Info("lobby cancelled: quorum not reached",
		zap.String("slot", key.DeliverySlot),
		zap.Int64("restaurant", key.RestaurantID),
		zap.Int64("building", key.BuildingID),
		zap.Int("count", count),
		zap.Int("required", e.minParticipants))

	return &Cancellation{Key: key, SlotTime: slotTime, Users: users}, nil
}

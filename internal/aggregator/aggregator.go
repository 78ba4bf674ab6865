// Package aggregator собирает ожидающие индивидуальные заказы в групповые
// после наступления дедлайна слота.
package aggregator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/lunchorder-system/internal/model"
	"github.com/mmeshcher/lunchorder-system/internal/repository"
	"github.com/mmeshcher/lunchorder-system/internal/schedule"
)

// Repository описывает контракт доступа к данным, используемый агрегатором.
type Repository interface {
	PendingPairs(ctx context.Context, slot, date string) ([]repository.Pair, error)
	PendingOrders(ctx context.Context, key model.SlotKey) ([]model.Order, error)
	GroupOrderExists(ctx context.Context, key model.SlotKey) (bool, error)
	CreateGroupOrder(ctx context.Context, g *model.GroupOrder) error
	GetRestaurant(ctx context.Context, id int64) (*model.Restaurant, error)
	GetBuilding(ctx context.Context, id int64) (*model.Building, error)
}

// Notifier отправляет ресторану сводку нового группового заказа.
// Доставка best-effort: ошибка логируется и не откатывает создание заказа.
type Notifier interface {
	SendGroupOrder(ctx context.Context, notice model.GroupOrderNotice) error
}

// Engine превращает ожидающие заказы в групповые по одному на ключ
// (ресторан, здание, слот, дата).
type Engine struct {
	repo        Repository
	notifier    Notifier
	slots       []model.Slot
	leadMinutes int
	logger      *zap.Logger
}

// New создаёт движок агрегации.
func New(repo Repository, notifier Notifier, slots []model.Slot, leadMinutes int, logger *zap.Logger) *Engine {
	return &Engine{
		repo:        repo,
		notifier:    notifier,
		slots:       slots,
		leadMinutes: leadMinutes,
		logger:      logger,
	}
}

// Aggregate обходит слоты с прошедшим дедлайном заказа и создаёт групповые
// заказы. Ошибки по отдельным слотам и парам логируются и не прерывают
// обход остальных; повторный запуск безопасен.
func (e *Engine) Aggregate(ctx context.Context, nowMinutes int, today string) {
	for _, slot := range e.slots {
		past, err := schedule.IsPast(slot.ID, e.leadMinutes, nowMinutes)
		if err != nil {
			e.logger.Error("aggregate: bad slot", zap.String("slot", slot.ID), zap.Error(err))
			continue
		}
		if !past {
			continue
		}

		pairs, err := e.repo.PendingPairs(ctx, slot.ID, today)
		if err != nil {
			e.logger.Error("aggregate: list pending pairs",
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

			if err := e.aggregateKey(ctx, key); err != nil {
				e.logger.Error("aggregate: key failed",
					zap.String("slot", key.DeliverySlot),
					zap.Int64("restaurant", key.RestaurantID),
					zap.Int64("building", key.BuildingID),
					zap.Error(err))
			}
		}
	}
}

// aggregateKey создаёт ровно один групповой заказ для ключа. Существующий
// групповой заказ означает, что ключ уже обработан предыдущим тиком.
func (e *Engine) aggregateKey(ctx context.Context, key model.SlotKey) error {
	exists, err := e.repo.GroupOrderExists(ctx, key)
	if err != nil {
		return fmt.Errorf("check group order: %w", err)
	}
	if exists {
		return nil
	}

	// Перечитываем живой список: заказы могли отмениться после выборки пар.
	orders, err := e.repo.PendingOrders(ctx, key)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}
	if len(orders) == 0 {
		return nil
	}

	restaurant, err := e.repo.GetRestaurant(ctx, key.RestaurantID)
	if err != nil {
		if errors.Is(err, repository.ErrRestaurantNotFound) {
			e.logger.Warn("aggregate: restaurant missing, orders left pending",
				zap.Int64("restaurant", key.RestaurantID),
				zap.String("slot", key.DeliverySlot))
			return nil
		}
		return fmt.Errorf("get restaurant: %w", err)
	}

	building, err := e.repo.GetBuilding(ctx, key.BuildingID)
	if err != nil {
		if errors.Is(err, repository.ErrBuildingNotFound) {
			e.logger.Warn("aggregate: building missing, orders left pending",
				zap.Int64("building", key.BuildingID),
				zap.String("slot", key.DeliverySlot))
			return nil
		}
		return fmt.Errorf("get building: %w", err)
	}

	group := &model.GroupOrder{
		ID:           uuid.NewString(),
		RestaurantID: key.RestaurantID,
		BuildingID:   key.BuildingID,
		DeliverySlot: key.DeliverySlot,
		OrderDate:    key.OrderDate,
		Status:       model.GroupOrderStatusPendingRestaurant,
	}

	if err := e.repo.CreateGroupOrder(ctx, group); err != nil {
		// Параллельный тик успел создать заказ первым: ключ уже обработан.
		if errors.Is(err, repository.ErrGroupOrderExists) {
			return nil
		}
		return fmt.Errorf("create group order: %w", err)
	}

	groupOrdersCreated.Inc()

	var total int64
	for _, o := range orders {
		total += o.TotalPrice
	}

	e.logger.Info("group order created",
		zap.String("groupOrderID", group.ID),
		zap.String("slot", key.DeliverySlot),
		zap.Int64("restaurant", key.RestaurantID),
		zap.Int64("building", key.BuildingID),
		zap.Int("participants", len(orders)),
		zap.Int64("total", total))

	notice := model.GroupOrderNotice{
		RestaurantChatID: restaurant.TelegramChatID,
		RestaurantName:   restaurant.Name,
		BuildingName:     building.Name,
		DeliverySlot:     key.DeliverySlot,
		GroupOrderID:     group.ID,
		Orders:           orders,
		TotalAmount:      total,
		ParticipantCount: len(orders),
	}

	// Уведомление не откатывает созданный заказ: его можно повторить вручную
	// по списку ожидающих групповых заказов.
	if err := e.notifier.SendGroupOrder(ctx, notice); err != nil {
		notifyFailures.Inc()
		e.logger.Error("aggregate: notify restaurant failed",
			zap.String("groupOrderID", group.ID),
			zap.Error(err))
	}

	return nil
}

// Package service реализует бизнес-логику сервиса обедов.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmeshcher/lunchorder-system/internal/lobby"
	"github.com/mmeshcher/lunchorder-system/internal/model"
	"github.com/mmeshcher/lunchorder-system/internal/repository"
)

// ErrActiveOrderExists возвращается, когда у пользователя уже есть активный заказ на этот ключ.
var (
	ErrActiveOrderExists = errors.New("active order already exists")
	// ErrUnknownSlot возвращается для слота, отсутствующего в конфигурации.
	ErrUnknownSlot = errors.New("unknown delivery slot")
	// ErrEmptyOrder возвращается для заказа без позиций.
	ErrEmptyOrder = errors.New("order has no items")
	// ErrOrderNotOwned возвращается при попытке отменить чужой заказ.
	ErrOrderNotOwned = errors.New("order belongs to another user")
	// ErrOrderNotActive возвращается при попытке отменить уже завершённый заказ.
	ErrOrderNotActive = errors.New("order is not active")
	// ErrGroupOrderDecided возвращается, если ресторан уже принял решение по групповому заказу.
	ErrGroupOrderDecided = errors.New("group order already decided")
)

// Clock выдаёт текущую дату в настроенном часовом поясе.
type Clock interface {
	Today() string
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrderByID(ctx context.Context, id string) (*model.Order, error)
	FindActiveOrder(ctx context.Context, userID int64, key model.SlotKey) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error
	UpdateOrdersStatusByKey(ctx context.Context, key model.SlotKey, from, to model.OrderStatus) error
	GetGroupOrderByID(ctx context.Context, id string) (*model.GroupOrder, error)
	UpdateGroupOrderStatus(ctx context.Context, id string, status model.GroupOrderStatus) error
	GetPendingGroupOrders(ctx context.Context) ([]model.GroupOrder, error)
}

// Service содержит бизнес-логику оформления заказов и лобби.
type Service struct {
	repo  Repository
	lobby *lobby.Engine
	clk   Clock
	slots []model.Slot
}

// NewService создаёт новый сервис.
func NewService(repo Repository, lobbyEngine *lobby.Engine, clk Clock, slots []model.Slot) *Service {
	return &Service{
		repo:  repo,
		lobby: lobbyEngine,
		clk:   clk,
		slots: slots,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) knownSlot(slot string) bool {
	for _, sl := range s.slots {
		if sl.ID == slot {
			return true
		}
	}
	return false
}

// CreateOrder оформляет индивидуальный заказ на сегодняшнюю дату.
// На один ключ (ресторан, здание, слот, дата) у пользователя может быть
// не более одного активного заказа; проверка выполняется перед вставкой.
func (s *Service) CreateOrder(ctx context.Context, userID, restaurantID, buildingID int64, slot string, items []model.OrderItem) (*model.Order, error) {
	if !s.knownSlot(slot) {
		return nil, ErrUnknownSlot
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	key := model.SlotKey{
		RestaurantID: restaurantID,
		BuildingID:   buildingID,
		DeliverySlot: slot,
		OrderDate:    s.clk.Today(),
	}

	existing, err := s.repo.FindActiveOrder(ctx, userID, key)
	if err != nil && !errors.Is(err, repository.ErrOrderNotFound) {
		return nil, fmt.Errorf("find active order: %w", err)
	}
	if existing != nil {
		return nil, ErrActiveOrderExists
	}

	var total int64
	for _, item := range items {
		total += item.Price * int64(item.Quantity)
	}

	order := &model.Order{
		ID:           uuid.NewString(),
		UserID:       userID,
		RestaurantID: restaurantID,
		BuildingID:   buildingID,
		DeliverySlot: slot,
		OrderDate:    key.OrderDate,
		Items:        items,
		TotalPrice:   total,
		Status:       model.OrderStatusPending,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

// CancelOrder отменяет активный заказ пользователя. После отмены пользователь
// может оформить новый заказ на тот же слот.
func (s *Service) CancelOrder(ctx context.Context, userID int64, orderID string) error {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrOrderNotOwned
	}
	if !order.Status.Active() {
		return ErrOrderNotActive
	}

	return s.repo.UpdateOrderStatus(ctx, orderID, model.OrderStatusCancelled)
}

// GetOrdersByUser возвращает список заказов пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// JoinLobby добавляет бронь пользователя в лобби слота на сегодня.
func (s *Service) JoinLobby(ctx context.Context, userID, restaurantID, buildingID int64, slot string) error {
	if !s.knownSlot(slot) {
		return ErrUnknownSlot
	}
	return s.lobby.Join(ctx, s.todayKey(restaurantID, buildingID, slot), userID)
}

// LeaveLobby удаляет бронь пользователя из лобби слота на сегодня.
func (s *Service) LeaveLobby(ctx context.Context, userID, restaurantID, buildingID int64, slot string) error {
	if !s.knownSlot(slot) {
		return ErrUnknownSlot
	}
	return s.lobby.Leave(ctx, s.todayKey(restaurantID, buildingID, slot), userID)
}

// LobbyStatus возвращает текущее число броней и признак активации лобби.
// Активация всегда вычисляется из живого счётчика.
func (s *Service) LobbyStatus(ctx context.Context, restaurantID, buildingID int64, slot string) (bool, int, error) {
	if !s.knownSlot(slot) {
		return false, 0, ErrUnknownSlot
	}
	return s.lobby.IsActivated(ctx, s.todayKey(restaurantID, buildingID, slot))
}

func (s *Service) todayKey(restaurantID, buildingID int64, slot string) model.SlotKey {
	return model.SlotKey{
		RestaurantID: restaurantID,
		BuildingID:   buildingID,
		DeliverySlot: slot,
		OrderDate:    s.clk.Today(),
	}
}

// AcceptGroupOrder фиксирует согласие ресторана: групповой заказ становится
// принятым, его ожидающие заказы подтверждаются рестораном.
func (s *Service) AcceptGroupOrder(ctx context.Context, groupOrderID string) error {
	return s.decideGroupOrder(ctx, groupOrderID, model.GroupOrderStatusAccepted, model.OrderStatusRestaurantConfirmed)
}

// RejectGroupOrder фиксирует отказ ресторана: групповой заказ отклоняется,
// его ожидающие заказы отменяются.
func (s *Service) RejectGroupOrder(ctx context.Context, groupOrderID string) error {
	return s.decideGroupOrder(ctx, groupOrderID, model.GroupOrderStatusRejected, model.OrderStatusCancelled)
}

func (s *Service) decideGroupOrder(ctx context.Context, groupOrderID string, groupStatus model.GroupOrderStatus, orderStatus model.OrderStatus) error {
	group, err := s.repo.GetGroupOrderByID(ctx, groupOrderID)
	if err != nil {
		return err
	}
	if group.Status != model.GroupOrderStatusPendingRestaurant {
		return ErrGroupOrderDecided
	}

	if err := s.repo.UpdateGroupOrderStatus(ctx, groupOrderID, groupStatus); err != nil {
		return fmt.Errorf("update group order: %w", err)
	}

	key := model.SlotKey{
		RestaurantID: group.RestaurantID,
		BuildingID:   group.BuildingID,
		DeliverySlot: group.DeliverySlot,
		OrderDate:    group.OrderDate,
	}
	if err := s.repo.UpdateOrdersStatusByKey(ctx, key, model.OrderStatusPending, orderStatus); err != nil {
		return fmt.Errorf("update member orders: %w", err)
	}

	return nil
}

// GetPendingGroupOrders возвращает групповые заказы, ожидающие решения
// ресторана. Используется и для ручного повтора уведомлений.
func (s *Service) GetPendingGroupOrders(ctx context.Context) ([]model.GroupOrder, error) {
	return s.repo.GetPendingGroupOrders(ctx)
}

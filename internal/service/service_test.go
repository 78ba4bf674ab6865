package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/lunchorder-system/internal/lobby"
	"github.com/mmeshcher/lunchorder-system/internal/model"
	"github.com/mmeshcher/lunchorder-system/internal/repository"
)

type stubRepo struct {
	orders      map[string]*model.Order
	groupOrders map[string]*model.GroupOrder

	createErr error

	statusUpdates map[string]model.OrderStatus
	bulkUpdates   []model.SlotKey
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		orders:        make(map[string]*model.Order),
		groupOrders:   make(map[string]*model.GroupOrder),
		statusUpdates: make(map[string]model.OrderStatus),
	}
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateOrder(ctx context.Context, o *model.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *stubRepo) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (s *stubRepo) FindActiveOrder(ctx context.Context, userID int64, key model.SlotKey) (*model.Order, error) {
	for _, o := range s.orders {
		if o.UserID == userID && o.RestaurantID == key.RestaurantID && o.BuildingID == key.BuildingID &&
			o.DeliverySlot == key.DeliverySlot && o.OrderDate == key.OrderDate && o.Status.Active() {
			return o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (s *stubRepo) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	var res []model.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (s *stubRepo) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error {
	o, ok := s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	s.statusUpdates[id] = status
	return nil
}

func (s *stubRepo) UpdateOrdersStatusByKey(ctx context.Context, key model.SlotKey, from, to model.OrderStatus) error {
	s.bulkUpdates = append(s.bulkUpdates, key)
	for _, o := range s.orders {
		if o.RestaurantID == key.RestaurantID && o.BuildingID == key.BuildingID &&
			o.DeliverySlot == key.DeliverySlot && o.OrderDate == key.OrderDate && o.Status == from {
			o.Status = to
		}
	}
	return nil
}

func (s *stubRepo) GetGroupOrderByID(ctx context.Context, id string) (*model.GroupOrder, error) {
	g, ok := s.groupOrders[id]
	if !ok {
		return nil, repository.ErrGroupOrderNotFound
	}
	return g, nil
}

func (s *stubRepo) UpdateGroupOrderStatus(ctx context.Context, id string, status model.GroupOrderStatus) error {
	g, ok := s.groupOrders[id]
	if !ok {
		return repository.ErrGroupOrderNotFound
	}
	g.Status = status
	return nil
}

func (s *stubRepo) GetPendingGroupOrders(ctx context.Context) ([]model.GroupOrder, error) {
	var res []model.GroupOrder
	for _, g := range s.groupOrders {
		if g.Status == model.GroupOrderStatusPendingRestaurant {
			res = append(res, *g)
		}
	}
	return res, nil
}

type lobbyStubRepo struct {
	reservations map[model.LobbyReservation]bool
}

func (s *lobbyStubRepo) AddReservation(ctx context.Context, res model.LobbyReservation) error {
	s.reservations[res] = true
	return nil
}

func (s *lobbyStubRepo) RemoveReservation(ctx context.Context, res model.LobbyReservation) error {
	delete(s.reservations, res)
	return nil
}

func (s *lobbyStubRepo) CountReservations(ctx context.Context, key model.SlotKey) (int, error) {
	count := 0
	for res := range s.reservations {
		if res.RestaurantID == key.RestaurantID && res.BuildingID == key.BuildingID &&
			res.DeliverySlot == key.DeliverySlot && res.OrderDate == key.OrderDate {
			count++
		}
	}
	return count, nil
}

func (s *lobbyStubRepo) ReservationUsers(ctx context.Context, key model.SlotKey) ([]model.User, error) {
	return nil, nil
}

func (s *lobbyStubRepo) DeleteReservations(ctx context.Context, key model.SlotKey) error {
	return nil
}

func (s *lobbyStubRepo) ReservedPairs(ctx context.Context, slot, date string) ([]repository.Pair, error) {
	return nil, nil
}

type stubClock struct{}

func (stubClock) Today() string { return "2026-02-10" }

var testSlots = []model.Slot{{ID: "13:00", Time: "13:00"}, {ID: "18:45", Time: "18:45"}}

func newTestService(repo Repository) *Service {
	lobbyRepo := &lobbyStubRepo{reservations: make(map[model.LobbyReservation]bool)}
	engine := lobby.New(lobbyRepo, testSlots, 150, 2, zap.NewNop())
	return NewService(repo, engine, stubClock{}, testSlots)
}

var testItems = []model.OrderItem{
	{Name: "Борщ", Price: 15000, Quantity: 1},
	{Name: "Компот", Price: 5000, Quantity: 2},
}

func TestCreateOrder(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), 1, 7, 3, "13:00", testItems)
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if order.Status != model.OrderStatusPending {
		t.Fatalf("status = %q, want pending", order.Status)
	}
	if order.TotalPrice != 25000 {
		t.Fatalf("totalPrice = %d, want 25000", order.TotalPrice)
	}
	if order.OrderDate != "2026-02-10" {
		t.Fatalf("orderDate = %q, want today", order.OrderDate)
	}
	if order.ID == "" {
		t.Fatalf("order must get an id")
	}
}

func TestCreateOrder_UnknownSlot(t *testing.T) {
	svc := newTestService(newStubRepo())

	_, err := svc.CreateOrder(context.Background(), 1, 7, 3, "03:15", testItems)
	if !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot, got %v", err)
	}
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc := newTestService(newStubRepo())

	_, err := svc.CreateOrder(context.Background(), 1, 7, 3, "13:00", nil)
	if !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}
}

func TestCreateOrder_DuplicateActiveRejected(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)

	if _, err := svc.CreateOrder(context.Background(), 1, 7, 3, "13:00", testItems); err != nil {
		t.Fatalf("first CreateOrder error: %v", err)
	}

	_, err := svc.CreateOrder(context.Background(), 1, 7, 3, "13:00", testItems)
	if !errors.Is(err, ErrActiveOrderExists) {
		t.Fatalf("expected ErrActiveOrderExists, got %v", err)
	}

	// Другой слот — другой ключ, заказ допустим.
	if _, err := svc.CreateOrder(context.Background(), 1, 7, 3, "18:45", testItems); err != nil {
		t.Fatalf("CreateOrder for another slot error: %v", err)
	}
}

func TestCancelOrder_AllowsNewOrder(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), 1, 7, 3, "13:00", testItems)
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if err := svc.CancelOrder(context.Background(), 1, order.ID); err != nil {
		t.Fatalf("CancelOrder error: %v", err)
	}

	// После отмены активного заказа нет и новый оформляется свободно.
	if _, err := svc.CreateOrder(context.Background(), 1, 7, 3, "13:00", testItems); err != nil {
		t.Fatalf("CreateOrder after cancel error: %v", err)
	}
}

func TestCancelOrder_ForeignOrderRejected(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), 1, 7, 3, "13:00", testItems)
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	err = svc.CancelOrder(context.Background(), 2, order.ID)
	if !errors.Is(err, ErrOrderNotOwned) {
		t.Fatalf("expected ErrOrderNotOwned, got %v", err)
	}
}

func TestCancelOrder_AlreadyCancelled(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), 1, 7, 3, "13:00", testItems)
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if err := svc.CancelOrder(context.Background(), 1, order.ID); err != nil {
		t.Fatalf("CancelOrder error: %v", err)
	}

	err = svc.CancelOrder(context.Background(), 1, order.ID)
	if !errors.Is(err, ErrOrderNotActive) {
		t.Fatalf("expected ErrOrderNotActive, got %v", err)
	}
}

func TestLobbyStatus_DerivedFromCount(t *testing.T) {
	svc := newTestService(newStubRepo())
	ctx := context.Background()

	if err := svc.JoinLobby(ctx, 1, 7, 3, "13:00"); err != nil {
		t.Fatalf("JoinLobby error: %v", err)
	}

	activated, count, err := svc.LobbyStatus(ctx, 7, 3, "13:00")
	if err != nil {
		t.Fatalf("LobbyStatus error: %v", err)
	}
	if activated || count != 1 {
		t.Fatalf("LobbyStatus = (%v, %d), want (false, 1)", activated, count)
	}

	if err := svc.JoinLobby(ctx, 2, 7, 3, "13:00"); err != nil {
		t.Fatalf("JoinLobby error: %v", err)
	}

	activated, count, err = svc.LobbyStatus(ctx, 7, 3, "13:00")
	if err != nil {
		t.Fatalf("LobbyStatus error: %v", err)
	}
	if !activated || count != 2 {
		t.Fatalf("LobbyStatus = (%v, %d), want (true, 2)", activated, count)
	}

	if err := svc.LeaveLobby(ctx, 2, 7, 3, "13:00"); err != nil {
		t.Fatalf("LeaveLobby error: %v", err)
	}

	activated, count, err = svc.LobbyStatus(ctx, 7, 3, "13:00")
	if err != nil {
		t.Fatalf("LobbyStatus error: %v", err)
	}
	if activated || count != 1 {
		t.Fatalf("LobbyStatus = (%v, %d), want (false, 1)", activated, count)
	}
}

func TestAcceptGroupOrder(t *testing.T) {
	repo := newStubRepo()
	repo.groupOrders["g-1"] = &model.GroupOrder{
		ID:           "g-1",
		RestaurantID: 7,
		BuildingID:   3,
		DeliverySlot: "13:00",
		OrderDate:    "2026-02-10",
		Status:       model.GroupOrderStatusPendingRestaurant,
	}
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), 1, 7, 3, "13:00", testItems)
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if err := svc.AcceptGroupOrder(context.Background(), "g-1"); err != nil {
		t.Fatalf("AcceptGroupOrder error: %v", err)
	}

	if repo.groupOrders["g-1"].Status != model.GroupOrderStatusAccepted {
		t.Fatalf("group status = %q, want accepted", repo.groupOrders["g-1"].Status)
	}
	if repo.orders[order.ID].Status != model.OrderStatusRestaurantConfirmed {
		t.Fatalf("order status = %q, want restaurant_confirmed", repo.orders[order.ID].Status)
	}
}

func TestRejectGroupOrder_CancelsMembers(t *testing.T) {
	repo := newStubRepo()
	repo.groupOrders["g-1"] = &model.GroupOrder{
		ID:           "g-1",
		RestaurantID: 7,
		BuildingID:   3,
		DeliverySlot: "13:00",
		OrderDate:    "2026-02-10",
		Status:       model.GroupOrderStatusPendingRestaurant,
	}
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), 1, 7, 3, "13:00", testItems)
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if err := svc.RejectGroupOrder(context.Background(), "g-1"); err != nil {
		t.Fatalf("RejectGroupOrder error: %v", err)
	}

	if repo.orders[order.ID].Status != model.OrderStatusCancelled {
		t.Fatalf("order status = %q, want cancelled", repo.orders[order.ID].Status)
	}
}

func TestAcceptGroupOrder_AlreadyDecided(t *testing.T) {
	repo := newStubRepo()
	repo.groupOrders["g-1"] = &model.GroupOrder{
		ID:     "g-1",
		Status: model.GroupOrderStatusRejected,
	}
	svc := newTestService(repo)

	err := svc.AcceptGroupOrder(context.Background(), "g-1")
	if !errors.Is(err, ErrGroupOrderDecided) {
		t.Fatalf("expected ErrGroupOrderDecided, got %v", err)
	}
}

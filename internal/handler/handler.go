// Package handler содержит HTTP-обработчики API сервиса обедов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/lunchorder-system/internal/middleware"
	"github.com/mmeshcher/lunchorder-system/internal/model"
	"github.com/mmeshcher/lunchorder-system/internal/repository"
	"github.com/mmeshcher/lunchorder-system/internal/service"
	"github.com/mmeshcher/lunchorder-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateOrder(ctx context.Context, userID, restaurantID, buildingID int64, slot string, items []model.OrderItem) (*model.Order, error)
	CancelOrder(ctx context.Context, userID int64, orderID string) error
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	JoinLobby(ctx context.Context, userID, restaurantID, buildingID int64, slot string) error
	LeaveLobby(ctx context.Context, userID, restaurantID, buildingID int64, slot string) error
	LobbyStatus(ctx context.Context, restaurantID, buildingID int64, slot string) (bool, int, error)
	AcceptGroupOrder(ctx context.Context, groupOrderID string) error
	RejectGroupOrder(ctx context.Context, groupOrderID string) error
	GetPendingGroupOrders(ctx context.Context) ([]model.GroupOrder, error)
}

// Handler реализует HTTP-обработчики API сервиса обедов.
type Handler struct {
	service  Service
	logger   *zap.Logger
	validate *validator.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service:  s,
		logger:   logger,
		validate: validator.New(),
	}
}

type orderItemRequest struct {
	Name     string `json:"name" validate:"required"`
	Price    int64  `json:"price" validate:"gt=0"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type createOrderRequest struct {
	RestaurantID int64              `json:"restaurant_id" validate:"required,gt=0"`
	BuildingID   int64              `json:"building_id" validate:"required,gt=0"`
	DeliverySlot string             `json:"delivery_slot" validate:"required"`
	Items        []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type orderResponse struct {
	ID           string            `json:"id"`
	RestaurantID int64             `json:"restaurant_id"`
	BuildingID   int64             `json:"building_id"`
	DeliverySlot string            `json:"delivery_slot"`
	OrderDate    string            `json:"order_date"`
	Items        []model.OrderItem `json:"items"`
	TotalPrice   int64             `json:"total_price"`
	Status       string            `json:"status"`
	CreatedAt    string            `json:"created_at"`
}

func toOrderResponse(o model.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		RestaurantID: o.RestaurantID,
		BuildingID:   o.BuildingID,
		DeliverySlot: o.DeliverySlot,
		OrderDate:    o.OrderDate,
		Items:        o.Items,
		TotalPrice:   o.TotalPrice,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
	}
}

// CreateOrder оформляет индивидуальный заказ текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidSlotID(req.DeliverySlot) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, model.OrderItem{Name: item.Name, Price: item.Price, Quantity: item.Quantity})
	}

	order, err := h.service.CreateOrder(r.Context(), userID, req.RestaurantID, req.BuildingID, req.DeliverySlot, items)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrActiveOrderExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, service.ErrUnknownSlot), errors.Is(err, service.ErrEmptyOrder):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		default:
			h.logger.Error("create order error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(toOrderResponse(*order)); err != nil {
		h.logger.Error("encode order error", zap.Error(err))
	}
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// CancelOrder отменяет активный заказ текущего пользователя.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID := chi.URLParam(r, "id")

	err := h.service.CancelOrder(r.Context(), userID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrOrderNotOwned):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case errors.Is(err, service.ErrOrderNotActive):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("cancel order error", zap.Error(err), zap.String("order", orderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

type lobbyRequest struct {
	RestaurantID int64  `json:"restaurant_id" validate:"required,gt=0"`
	BuildingID   int64  `json:"building_id" validate:"required,gt=0"`
	DeliverySlot string `json:"delivery_slot" validate:"required"`
}

func (h *Handler) decodeLobbyRequest(w http.ResponseWriter, r *http.Request) (*lobbyRequest, bool) {
	var req lobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, false
	}
	if !validation.IsValidSlotID(req.DeliverySlot) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return nil, false
	}
	return &req, true
}

// JoinLobby добавляет бронь текущего пользователя в лобби слота.
func (h *Handler) JoinLobby(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	req, ok := h.decodeLobbyRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.JoinLobby(r.Context(), userID, req.RestaurantID, req.BuildingID, req.DeliverySlot); err != nil {
		if errors.Is(err, service.ErrUnknownSlot) {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("join lobby error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// LeaveLobby удаляет бронь текущего пользователя из лобби слота.
func (h *Handler) LeaveLobby(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	req, ok := h.decodeLobbyRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.LeaveLobby(r.Context(), userID, req.RestaurantID, req.BuildingID, req.DeliverySlot); err != nil {
		if errors.Is(err, service.ErrUnknownSlot) {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("leave lobby error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type lobbyStatusResponse struct {
	Activated bool `json:"activated"`
	Count     int  `json:"count"`
}

// LobbyStatus возвращает число броней и признак активации лобби слота.
func (h *Handler) LobbyStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, errR := parseIDParam(r, "restaurant_id")
	buildingID, errB := parseIDParam(r, "building_id")
	slot := r.URL.Query().Get("delivery_slot")

	if errR != nil || errB != nil || !validation.IsValidSlotID(slot) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	activated, count, err := h.service.LobbyStatus(r.Context(), restaurantID, buildingID, slot)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSlot) {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("lobby status error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(lobbyStatusResponse{Activated: activated, Count: count}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type groupOrderResponse struct {
	ID           string `json:"id"`
	RestaurantID int64  `json:"restaurant_id"`
	BuildingID   int64  `json:"building_id"`
	DeliverySlot string `json:"delivery_slot"`
	OrderDate    string `json:"order_date"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// GetPendingGroupOrders возвращает групповые заказы, ожидающие решения ресторана.
func (h *Handler) GetPendingGroupOrders(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.GetPendingGroupOrders(r.Context())
	if err != nil {
		h.logger.Error("pending group orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(groups) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]groupOrderResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, groupOrderResponse{
			ID:           g.ID,
			RestaurantID: g.RestaurantID,
			BuildingID:   g.BuildingID,
			DeliverySlot: g.DeliverySlot,
			OrderDate:    g.OrderDate,
			Status:       string(g.Status),
			CreatedAt:    g.CreatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// AcceptGroupOrder фиксирует согласие ресторана на групповой заказ.
func (h *Handler) AcceptGroupOrder(w http.ResponseWriter, r *http.Request) {
	h.decideGroupOrder(w, r, h.service.AcceptGroupOrder)
}

// RejectGroupOrder фиксирует отказ ресторана от группового заказа.
func (h *Handler) RejectGroupOrder(w http.ResponseWriter, r *http.Request) {
	h.decideGroupOrder(w, r, h.service.RejectGroupOrder)
}

func (h *Handler) decideGroupOrder(w http.ResponseWriter, r *http.Request, decide func(context.Context, string) error) {
	groupOrderID := chi.URLParam(r, "id")

	err := decide(r.Context(), groupOrderID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrGroupOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrGroupOrderDecided):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("decide group order error", zap.Error(err), zap.String("groupOrder", groupOrderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("id must be positive")
	}
	return id, nil
}

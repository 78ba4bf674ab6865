// Package model содержит доменные сущности сервиса корпоративных обедов.
package model

import "time"

// User представляет сотрудника, оформляющего заказы через телеграм-бота.
type User struct {
	ID             int64
	TelegramID     int64
	TelegramChatID int64
	Name           string
	CreatedAt      time.Time
}

// Restaurant описывает ресторан-партнёра и его канал уведомлений.
type Restaurant struct {
	ID             int64
	Name           string
	TelegramChatID int64
	CreatedAt      time.Time
}

// Building описывает офисное здание, в которое выполняется доставка.
type Building struct {
	ID        int64
	Name      string
	Address   string
	CreatedAt time.Time
}

// Slot описывает слот доставки из конфигурации. Идентификатором служит
// время в формате HH:MM.
type Slot struct {
	ID   string
	Time string
}

// OrderStatus описывает статус обработки индивидуального заказа.
type OrderStatus string

const (
	OrderStatusPending             OrderStatus = "pending"
	OrderStatusConfirmed           OrderStatus = "confirmed"
	OrderStatusRestaurantConfirmed OrderStatus = "restaurant_confirmed"
	OrderStatusPreparing           OrderStatus = "preparing"
	OrderStatusReady               OrderStatus = "ready"
	OrderStatusDelivered           OrderStatus = "delivered"
	OrderStatusCancelled           OrderStatus = "cancelled"
)

// Active сообщает, считается ли заказ в этом статусе активным.
// У пользователя может быть не более одного активного заказа на ключ
// (ресторан, здание, слот, дата).
func (s OrderStatus) Active() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusRestaurantConfirmed,
		OrderStatusPreparing, OrderStatusReady:
		return true
	}
	return false
}

// OrderItem описывает одну позицию заказа. Цена хранится в копейках.
type OrderItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Order описывает индивидуальный заказ пользователя. Суммы в копейках.
type Order struct {
	ID           string
	UserID       int64
	RestaurantID int64
	BuildingID   int64
	DeliverySlot string
	OrderDate    string
	Items        []OrderItem
	TotalPrice   int64
	Status       OrderStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GroupOrderStatus описывает статус группового заказа на стороне ресторана.
type GroupOrderStatus string

const (
	GroupOrderStatusPendingRestaurant GroupOrderStatus = "pending_restaurant"
	GroupOrderStatusAccepted          GroupOrderStatus = "accepted"
	GroupOrderStatusRejected          GroupOrderStatus = "rejected"
)

// GroupOrder агрегирует все ожидающие заказы по одному ключу
// (ресторан, здание, слот, дата). Не более одного на ключ.
type GroupOrder struct {
	ID           string
	RestaurantID int64
	BuildingID   int64
	DeliverySlot string
	OrderDate    string
	Status       GroupOrderStatus
	CreatedAt    time.Time
}

// SlotKey идентифицирует один агрегируемый набор заказов или лобби.
type SlotKey struct {
	RestaurantID int64
	BuildingID   int64
	DeliverySlot string
	OrderDate    string
}

// LobbyReservation представляет бронь пользователя на слот доставки
// до оформления заказа. Уникальна по (здание, ресторан, слот, дата, пользователь).
type LobbyReservation struct {
	BuildingID   int64
	RestaurantID int64
	DeliverySlot string
	OrderDate    string
	UserID       int64
}

// GroupOrderNotice содержит данные для уведомления ресторана о новом
// групповом заказе.
type GroupOrderNotice struct {
	RestaurantChatID int64
	RestaurantName   string
	BuildingName     string
	DeliverySlot     string
	GroupOrderID     string
	Orders           []Order
	TotalAmount      int64
	ParticipantCount int
}

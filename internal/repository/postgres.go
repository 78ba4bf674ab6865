// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/lunchorder-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrOrderNotFound возвращается, если заказ не найден.
var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrGroupOrderExists возвращается при попытке создать второй групповой заказ на тот же ключ.
	ErrGroupOrderExists = errors.New("group order already exists")
	// ErrGroupOrderNotFound возвращается, если групповой заказ не найден.
	ErrGroupOrderNotFound = errors.New("group order not found")
	// ErrRestaurantNotFound возвращается, если ресторан не найден.
	ErrRestaurantNotFound = errors.New("restaurant not found")
	// ErrBuildingNotFound возвращается, если здание не найдено.
	ErrBuildingNotFound = errors.New("building not found")
)

// Pair описывает пару (ресторан, здание), по которой есть ожидающие заказы.
type Pair struct {
	RestaurantID int64
	BuildingID   int64
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure и Deadlocks.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateOrder сохраняет новый индивидуальный заказ.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO orders (id, user_id, restaurant_id, building_id, delivery_slot, order_date, items, total_price, status)
		 VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9)`,
		o.ID, o.UserID, o.RestaurantID, o.BuildingID, o.DeliverySlot, o.OrderDate, items, o.TotalPrice, string(o.Status),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, restaurant_id, building_id, delivery_slot,
	to_char(order_date, 'YYYY-MM-DD'), items, total_price, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o         model.Order
		orderDate *string
		items     []byte
		status    string
	)

	err := row.Scan(&o.ID, &o.UserID, &o.RestaurantID, &o.BuildingID, &o.DeliverySlot,
		&orderDate, &items, &o.TotalPrice, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if orderDate != nil {
		o.OrderDate = *orderDate
	}
	o.Status = model.OrderStatus(status)

	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
	}

	return &o, nil
}

// GetOrderByID возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// FindActiveOrder возвращает активный заказ пользователя на указанный ключ
// (ресторан, здание, слот, дата), если он существует.
func (r *PostgresRepository) FindActiveOrder(ctx context.Context, userID int64, key model.SlotKey) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1 AND restaurant_id = $2 AND building_id = $3
		   AND delivery_slot = $4 AND order_date = $5::date
		   AND status IN ('pending', 'confirmed', 'restaurant_confirmed', 'preparing', 'ready')
		 LIMIT 1`,
		userID, key.RestaurantID, key.BuildingID, key.DeliverySlot, key.OrderDate,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("find active order: %w", err)
	}
	return o, nil
}

// GetOrdersByUser возвращает список заказов пользователя.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus обновляет статус заказа.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// PendingPairs возвращает различные пары (ресторан, здание), по которым есть
// ожидающие заказы на указанный слот и дату. Для старых строк без order_date
// используется дата создания.
func (r *PostgresRepository) PendingPairs(ctx context.Context, slot, date string) ([]Pair, error) {
	var pairs []Pair

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT DISTINCT restaurant_id, building_id
			 FROM orders
			 WHERE status = 'pending' AND delivery_slot = $1
			   AND (order_date = $2::date OR (order_date IS NULL AND date(created_at) = $2::date))`,
			slot, date,
		)
		if err != nil {
			return fmt.Errorf("select pending pairs: %w", err)
		}
		defer rows.Close()

		pairs = pairs[:0]
		for rows.Next() {
			var p Pair
			if err := rows.Scan(&p.RestaurantID, &p.BuildingID); err != nil {
				return fmt.Errorf("scan pair: %w", err)
			}
			pairs = append(pairs, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return pairs, nil
}

// PendingOrders возвращает ожидающие заказы по ключу (ресторан, здание, слот, дата).
func (r *PostgresRepository) PendingOrders(ctx context.Context, key model.SlotKey) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE status = 'pending' AND restaurant_id = $1 AND building_id = $2 AND delivery_slot = $3
		   AND (order_date = $4::date OR (order_date IS NULL AND date(created_at) = $4::date))
		 ORDER BY created_at`,
		key.RestaurantID, key.BuildingID, key.DeliverySlot, key.OrderDate,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// UpdateOrdersStatusByKey переводит все заказы ключа из одного статуса в другой.
func (r *PostgresRepository) UpdateOrdersStatusByKey(ctx context.Context, key model.SlotKey, from, to model.OrderStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $5, updated_at = now()
		 WHERE restaurant_id = $1 AND building_id = $2 AND delivery_slot = $3
		   AND (order_date = $4::date OR (order_date IS NULL AND date(created_at) = $4::date))
		   AND status = $6`,
		key.RestaurantID, key.BuildingID, key.DeliverySlot, key.OrderDate, string(to), string(from),
	)
	if err != nil {
		return fmt.Errorf("update orders by key: %w", err)
	}
	return nil
}

// GroupOrderExists сообщает, существует ли групповой заказ на указанный ключ.
func (r *PostgresRepository) GroupOrderExists(ctx context.Context, key model.SlotKey) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM group_orders
			WHERE restaurant_id = $1 AND building_id = $2 AND delivery_slot = $3 AND order_date = $4::date
		 )`,
		key.RestaurantID, key.BuildingID, key.DeliverySlot, key.OrderDate,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check group order: %w", err)
	}
	return exists, nil
}

// CreateGroupOrder создаёт групповой заказ. Уникальность ключа обеспечивается
// ограничением БД: конфликт превращается в ErrGroupOrderExists.
func (r *PostgresRepository) CreateGroupOrder(ctx context.Context, g *model.GroupOrder) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO group_orders (id, restaurant_id, building_id, delivery_slot, order_date, status)
		 VALUES ($1, $2, $3, $4, $5::date, $6)`,
		g.ID, g.RestaurantID, g.BuildingID, g.DeliverySlot, g.OrderDate, string(g.Status),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrGroupOrderExists
		}
		return fmt.Errorf("insert group order: %w", err)
	}
	return nil
}

func scanGroupOrder(row pgx.Row) (*model.GroupOrder, error) {
	var (
		g      model.GroupOrder
		status string
	)
	err := row.Scan(&g.ID, &g.RestaurantID, &g.BuildingID, &g.DeliverySlot, &g.OrderDate, &status, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.Status = model.GroupOrderStatus(status)
	return &g, nil
}

const groupOrderColumns = `id, restaurant_id, building_id, delivery_slot,
	to_char(order_date, 'YYYY-MM-DD'), status, created_at`

// GetGroupOrderByID возвращает групповой заказ по идентификатору.
func (r *PostgresRepository) GetGroupOrderByID(ctx context.Context, id string) (*model.GroupOrder, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+groupOrderColumns+` FROM group_orders WHERE id = $1`, id)

	g, err := scanGroupOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupOrderNotFound
		}
		return nil, fmt.Errorf("get group order: %w", err)
	}
	return g, nil
}

// UpdateGroupOrderStatus обновляет статус группового заказа.
func (r *PostgresRepository) UpdateGroupOrderStatus(ctx context.Context, id string, status model.GroupOrderStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE group_orders SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update group order: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrGroupOrderNotFound
	}
	return nil
}

// GetPendingGroupOrders возвращает групповые заказы, ожидающие решения ресторана.
func (r *PostgresRepository) GetPendingGroupOrders(ctx context.Context) ([]model.GroupOrder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+groupOrderColumns+`
		 FROM group_orders
		 WHERE status = 'pending_restaurant'
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending group orders: %w", err)
	}
	defer rows.Close()

	var res []model.GroupOrder
	for rows.Next() {
		g, err := scanGroupOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group order: %w", err)
		}
		res = append(res, *g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AddReservation добавляет бронь в лобби. Повторная бронь того же пользователя
// на тот же ключ игнорируется.
func (r *PostgresRepository) AddReservation(ctx context.Context, res model.LobbyReservation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO lobby_reservations (building_id, restaurant_id, delivery_slot, order_date, user_id)
		 VALUES ($1, $2, $3, $4::date, $5)
		 ON CONFLICT DO NOTHING`,
		res.BuildingID, res.RestaurantID, res.DeliverySlot, res.OrderDate, res.UserID,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// RemoveReservation удаляет бронь пользователя. Отсутствующая бронь не ошибка.
func (r *PostgresRepository) RemoveReservation(ctx context.Context, res model.LobbyReservation) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM lobby_reservations
		 WHERE building_id = $1 AND restaurant_id = $2 AND delivery_slot = $3
		   AND order_date = $4::date AND user_id = $5`,
		res.BuildingID, res.RestaurantID, res.DeliverySlot, res.OrderDate, res.UserID,
	)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

// CountReservations возвращает число броней на ключ (здание, ресторан, слот, дата).
func (r *PostgresRepository) CountReservations(ctx context.Context, key model.SlotKey) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM lobby_reservations
		 WHERE building_id = $1 AND restaurant_id = $2 AND delivery_slot = $3 AND order_date = $4::date`,
		key.BuildingID, key.RestaurantID, key.DeliverySlot, key.OrderDate,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return count, nil
}

// ReservationUsers возвращает пользователей, забронировавших указанный ключ.
func (r *PostgresRepository) ReservationUsers(ctx context.Context, key model.SlotKey) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.telegram_id, u.telegram_chat_id, u.name, u.created_at
		 FROM lobby_reservations lr
		 JOIN users u ON u.id = lr.user_id
		 WHERE lr.building_id = $1 AND lr.restaurant_id = $2 AND lr.delivery_slot = $3 AND lr.order_date = $4::date`,
		key.BuildingID, key.RestaurantID, key.DeliverySlot, key.OrderDate,
	)
	if err != nil {
		return nil, fmt.Errorf("select reservation users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.TelegramChatID, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

// DeleteReservations удаляет все брони ключа (здание, ресторан, слот, дата).
func (r *PostgresRepository) DeleteReservations(ctx context.Context, key model.SlotKey) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM lobby_reservations
		 WHERE building_id = $1 AND restaurant_id = $2 AND delivery_slot = $3 AND order_date = $4::date`,
		key.BuildingID, key.RestaurantID, key.DeliverySlot, key.OrderDate,
	)
	if err != nil {
		return fmt.Errorf("delete reservations: %w", err)
	}
	return nil
}

// ReservedPairs возвращает различные пары (ресторан, здание), по которым есть
// брони на указанный слот и дату.
func (r *PostgresRepository) ReservedPairs(ctx context.Context, slot, date string) ([]Pair, error) {
	var pairs []Pair

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT DISTINCT restaurant_id, building_id
			 FROM lobby_reservations
			 WHERE delivery_slot = $1 AND order_date = $2::date`,
			slot, date,
		)
		if err != nil {
			return fmt.Errorf("select reserved pairs: %w", err)
		}
		defer rows.Close()

		pairs = pairs[:0]
		for rows.Next() {
			var p Pair
			if err := rows.Scan(&p.RestaurantID, &p.BuildingID); err != nil {
				return fmt.Errorf("scan pair: %w", err)
			}
			pairs = append(pairs, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return pairs, nil
}

// GetRestaurant возвращает ресторан по идентификатору.
func (r *PostgresRepository) GetRestaurant(ctx context.Context, id int64) (*model.Restaurant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, telegram_chat_id, created_at FROM restaurants WHERE id = $1`, id)

	var rest model.Restaurant
	err := row.Scan(&rest.ID, &rest.Name, &rest.TelegramChatID, &rest.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	return &rest, nil
}

// GetBuilding возвращает здание по идентификатору.
func (r *PostgresRepository) GetBuilding(ctx context.Context, id int64) (*model.Building, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, address, created_at FROM buildings WHERE id = $1`, id)

	var b model.Building
	err := row.Scan(&b.ID, &b.Name, &b.Address, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBuildingNotFound
		}
		return nil, fmt.Errorf("get building: %w", err)
	}
	return &b, nil
}

package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quickbite/orderflow/internal/db"
	"github.com/quickbite/orderflow/internal/fault"
)

// Repository is the durable order ledger: the source of truth for order state.
type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	// CreateTx inserts the order, all its lines and the initial history row
	// inside the caller's transaction.
	CreateTx(ctx context.Context, tx pgx.Tx, o *Order) error
	GetByID(ctx context.Context, orderID string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	History(ctx context.Context, orderID string) ([]HistoryEntry, error)
	// UpdateStatusTx moves the order from exactly `from` to `to` and appends a
	// history row. A concurrent writer that got there first makes the update
	// match zero rows; the caller then receives a stale-state conflict
	// carrying the authoritative current status.
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, orderID string, from, to Status, changedBy, note string) error
	SetAgentTx(ctx context.Context, tx pgx.Tx, orderID string, agentID *string) error
	// SetPaymentStatus moves payment status forward; paid is sticky. Returns
	// whether a row actually changed, so repeated reconciliation is a no-op.
	SetPaymentStatus(ctx context.Context, orderID string, status PaymentStatus) (bool, error)
}

type PostgresRepository struct {
	pool db.Pool
}

func NewPostgresRepository(pool db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, pgx.TxOptions{})
}

func (r *PostgresRepository) CreateTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO orders (id, customer_id, restaurant_id, order_type, status,
		                    total_amount, delivery_address, customer_phone,
		                    payment_method, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, o.ID, o.CustomerID, o.RestaurantID, o.Type, o.Status, o.TotalAmount,
		o.DeliveryAddress, o.CustomerPhone, o.PaymentMethod, o.PaymentStatus,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, ln := range o.Lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_lines (id, order_id, menu_item_id, item_name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.NewString(), o.ID, ln.MenuItemID, ln.ItemName, ln.UnitPrice, ln.Quantity)
		if err != nil {
			return fmt.Errorf("insert order_line: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_history (id, order_id, status, changed_by, note)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), o.ID, o.Status, o.CustomerID, "order placed")
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, restaurant_id, order_type, status, total_amount,
		       delivery_address, customer_phone, payment_method, payment_status,
		       assigned_agent_id, created_at, updated_at
		FROM orders WHERE id = $1
	`, orderID).Scan(&o.ID, &o.CustomerID, &o.RestaurantID, &o.Type, &o.Status,
		&o.TotalAmount, &o.DeliveryAddress, &o.CustomerPhone, &o.PaymentMethod,
		&o.PaymentStatus, &o.AssignedAgentID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT menu_item_id, item_name, unit_price, quantity
		FROM order_lines WHERE order_id = $1 ORDER BY id
	`, o.ID)
	if err != nil {
		return nil, fmt.Errorf("select order_lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ln Line
		if err := rows.Scan(&ln.MenuItemID, &ln.ItemName, &ln.UnitPrice, &ln.Quantity); err != nil {
			return nil, fmt.Errorf("scan order_line: %w", err)
		}
		o.Lines = append(o.Lines, ln)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return &o, nil
}

func (r *PostgresRepository) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, customer_id, restaurant_id, order_type, status, total_amount,
		       delivery_address, customer_phone, payment_method, payment_status,
		       assigned_agent_id, created_at, updated_at
		FROM orders WHERE customer_id = $1 ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.RestaurantID, &o.Type, &o.Status,
			&o.TotalAmount, &o.DeliveryAddress, &o.CustomerPhone, &o.PaymentMethod,
			&o.PaymentStatus, &o.AssignedAgentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return orders, nil
}

func (r *PostgresRepository) History(ctx context.Context, orderID string) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, changed_by, note, changed_at
		FROM order_status_history WHERE order_id = $1 ORDER BY changed_at
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select status history: %w", err)
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.Status, &h.ChangedBy, &h.Note, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return history, nil
}

func (r *PostgresRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, orderID string, from, to Status, changedBy, note string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, orderID, from, to)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var current Status
		if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fault.NotFound("order_not_found", "order does not exist")
			}
			return fmt.Errorf("select current status: %w", err)
		}
		return fault.Conflict("stale_status",
			"order moved to "+string(current)+" by a concurrent update").
			With("current_status", string(current))
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_history (id, order_id, status, changed_by, note)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), orderID, to, changedBy, note)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	return nil
}

func (r *PostgresRepository) SetAgentTx(ctx context.Context, tx pgx.Tx, orderID string, agentID *string) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET assigned_agent_id = $2, updated_at = now() WHERE id = $1
	`, orderID, agentID)
	if err != nil {
		return fmt.Errorf("set agent: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetPaymentStatus(ctx context.Context, orderID string, status PaymentStatus) (bool, error) {
	// Forward-only: paid is never overwritten, regardless of the arrival order
	// of polls and callbacks.
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = now()
		WHERE id = $1 AND payment_status <> 'paid' AND payment_status <> $2
	`, orderID, status)
	if err != nil {
		return false, fmt.Errorf("set payment status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

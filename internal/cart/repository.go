package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quickbite/orderflow/internal/db"
)

type Repository interface {
	// Get returns the open cart for the (customer, restaurant) pair, or nil
	// when none exists.
	Get(ctx context.Context, customerID, restaurantID string) (*Cart, error)
	AddItem(ctx context.Context, customerID, restaurantID string, item Item) (*Cart, error)
	// SetItemQuantity sets an item's quantity; zero removes the item.
	SetItemQuantity(ctx context.Context, customerID, restaurantID, menuItemID string, quantity int) (*Cart, error)
	Clear(ctx context.Context, customerID, restaurantID string) error
	// DrainTx empties the cart inside the caller's transaction so the drain
	// commits or rolls back together with the order insert.
	DrainTx(ctx context.Context, tx pgx.Tx, cartID string) error
}

type PostgresRepository struct {
	pool db.Pool
}

func NewPostgresRepository(pool db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, customerID, restaurantID string) (*Cart, error) {
	var c Cart
	err := r.pool.QueryRow(ctx,
		`SELECT id, customer_id, restaurant_id, updated_at
		 FROM carts WHERE customer_id = $1 AND restaurant_id = $2`,
		customerID, restaurantID,
	).Scan(&c.ID, &c.CustomerID, &c.RestaurantID, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select cart: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT menu_item_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY menu_item_id`,
		c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart_items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.MenuItemID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart_item: %w", err)
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return &c, nil
}

func (r *PostgresRepository) AddItem(ctx context.Context, customerID, restaurantID string, item Item) (*Cart, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cartID string
	err = tx.QueryRow(ctx, `
		INSERT INTO carts (id, customer_id, restaurant_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (customer_id, restaurant_id)
		DO UPDATE SET updated_at = now()
		RETURNING id
	`, uuid.NewString(), customerID, restaurantID).Scan(&cartID)
	if err != nil {
		return nil, fmt.Errorf("upsert cart: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, menu_item_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, menu_item_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, uuid.NewString(), cartID, item.MenuItemID, item.Quantity)
	if err != nil {
		return nil, fmt.Errorf("upsert cart_item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return r.Get(ctx, customerID, restaurantID)
}

func (r *PostgresRepository) SetItemQuantity(ctx context.Context, customerID, restaurantID, menuItemID string, quantity int) (*Cart, error) {
	c, err := r.Get(ctx, customerID, restaurantID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	if quantity <= 0 {
		_, err = r.pool.Exec(ctx,
			`DELETE FROM cart_items WHERE cart_id = $1 AND menu_item_id = $2`,
			c.ID, menuItemID,
		)
	} else {
		_, err = r.pool.Exec(ctx, `
			UPDATE cart_items SET quantity = $3
			WHERE cart_id = $1 AND menu_item_id = $2
		`, c.ID, menuItemID, quantity)
	}
	if err != nil {
		return nil, fmt.Errorf("update cart_item: %w", err)
	}

	return r.Get(ctx, customerID, restaurantID)
}

func (r *PostgresRepository) Clear(ctx context.Context, customerID, restaurantID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM carts WHERE customer_id = $1 AND restaurant_id = $2`,
		customerID, restaurantID,
	)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DrainTx(ctx context.Context, tx pgx.Tx, cartID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("drain cart: %w", err)
	}
	return nil
}

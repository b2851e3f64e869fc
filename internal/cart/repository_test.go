package cart

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestRepositoryGet_WithItems(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, customer_id, restaurant_id, updated_at`).
		WithArgs("cust-1", "rest-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "customer_id", "restaurant_id", "updated_at"}).
			AddRow("cart-1", "cust-1", "rest-1", now))

	mock.ExpectQuery(`SELECT menu_item_id, quantity FROM cart_items`).
		WithArgs("cart-1").
		WillReturnRows(pgxmock.NewRows([]string{"menu_item_id", "quantity"}).
			AddRow("pizza", 2).
			AddRow("salad", 1))

	c, err := repo.Get(context.Background(), "cust-1", "rest-1")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, "cart-1", c.ID)
	require.Len(t, c.Items, 2)
	require.Equal(t, Item{MenuItemID: "pizza", Quantity: 2}, c.Items[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGet_NoCart(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectQuery(`SELECT id, customer_id, restaurant_id, updated_at`).
		WithArgs("cust-1", "rest-1").
		WillReturnError(pgx.ErrNoRows)

	c, err := repo.Get(context.Background(), "cust-1", "rest-1")
	require.NoError(t, err)
	require.Nil(t, c)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryAddItem_UpsertsInOneTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO carts`).
		WithArgs(pgxmock.AnyArg(), "cust-1", "rest-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("cart-1"))
	mock.ExpectExec(`INSERT INTO cart_items`).
		WithArgs(pgxmock.AnyArg(), "cart-1", "pizza", 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	// AddItem reloads the cart after committing
	mock.ExpectQuery(`SELECT id, customer_id, restaurant_id, updated_at`).
		WithArgs("cust-1", "rest-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "customer_id", "restaurant_id", "updated_at"}).
			AddRow("cart-1", "cust-1", "rest-1", now))
	mock.ExpectQuery(`SELECT menu_item_id, quantity FROM cart_items`).
		WithArgs("cart-1").
		WillReturnRows(pgxmock.NewRows([]string{"menu_item_id", "quantity"}).
			AddRow("pizza", 2))

	c, err := repo.AddItem(context.Background(), "cust-1", "rest-1", Item{MenuItemID: "pizza", Quantity: 2})
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, 2, c.Items[0].Quantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySetItemQuantity_ZeroDeletes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	now := time.Now()

	cartRows := func() *pgxmock.Rows {
		return pgxmock.NewRows([]string{"id", "customer_id", "restaurant_id", "updated_at"}).
			AddRow("cart-1", "cust-1", "rest-1", now)
	}

	mock.ExpectQuery(`SELECT id, customer_id, restaurant_id, updated_at`).
		WithArgs("cust-1", "rest-1").
		WillReturnRows(cartRows())
	mock.ExpectQuery(`SELECT menu_item_id, quantity FROM cart_items`).
		WithArgs("cart-1").
		WillReturnRows(pgxmock.NewRows([]string{"menu_item_id", "quantity"}).AddRow("pizza", 2))

	mock.ExpectExec(`DELETE FROM cart_items`).
		WithArgs("cart-1", "pizza").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	mock.ExpectQuery(`SELECT id, customer_id, restaurant_id, updated_at`).
		WithArgs("cust-1", "rest-1").
		WillReturnRows(cartRows())
	mock.ExpectQuery(`SELECT menu_item_id, quantity FROM cart_items`).
		WithArgs("cart-1").
		WillReturnRows(pgxmock.NewRows([]string{"menu_item_id", "quantity"}))

	c, err := repo.SetItemQuantity(context.Background(), "cust-1", "rest-1", "pizza", 0)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Empty(t, c.Items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryClear(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectExec(`DELETE FROM carts`).
		WithArgs("cust-1", "rest-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Clear(context.Background(), "cust-1", "rest-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDrainTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM carts WHERE id = \$1`).
		WithArgs("cart-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	tx, err := mock.BeginTx(context.Background(), pgx.TxOptions{})
	require.NoError(t, err)

	require.NoError(t, repo.DrainTx(context.Background(), tx, "cart-1"))
	require.NoError(t, tx.Commit(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

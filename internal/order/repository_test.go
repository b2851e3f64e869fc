package order

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/orderflow/internal/fault"
)

func TestRepositoryCreateTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	now := time.Now()

	o := &Order{
		CustomerID:    "cust-1",
		RestaurantID:  "rest-1",
		Type:          TypeDelivery,
		Status:        StatusReceived,
		TotalAmount:   3500,
		CustomerPhone: "256771234567",
		PaymentMethod: PaymentMobileMoney,
		PaymentStatus: PaymentUnpaid,
		Lines: []Line{
			{MenuItemID: "pizza", ItemName: "Margherita", UnitPrice: 1000, Quantity: 2},
			{MenuItemID: "salad", ItemName: "Caesar Salad", UnitPrice: 1500, Quantity: 1},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(pgxmock.AnyArg(), o.CustomerID, o.RestaurantID, o.Type, o.Status,
			o.TotalAmount, o.DeliveryAddress, o.CustomerPhone, o.PaymentMethod, o.PaymentStatus).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO order_lines`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "pizza", "Margherita", 1000.0, 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO order_lines`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "salad", "Caesar Salad", 1500.0, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO order_status_history`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), StatusReceived, "cust-1", "order placed").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.CreateTx(context.Background(), tx, o))
	require.NotEmpty(t, o.ID)
	require.NoError(t, tx.Commit(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectQuery(`SELECT id, customer_id, restaurant_id`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	o, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, o)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateStatusTx_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders SET status`).
		WithArgs("order-1", StatusReceived, StatusInPrep).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO order_status_history`).
		WithArgs(pgxmock.AnyArg(), "order-1", StatusInPrep, "staff-1", "starting prep").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatusTx(context.Background(), tx,
		"order-1", StatusReceived, StatusInPrep, "staff-1", "starting prep"))
	require.NoError(t, tx.Commit(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateStatusTx_StaleStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders SET status`).
		WithArgs("order-1", StatusReceived, StatusInPrep).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM orders`).
		WithArgs("order-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusCancelled))
	mock.ExpectRollback()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatusTx(context.Background(), tx,
		"order-1", StatusReceived, StatusInPrep, "staff-1", "")
	require.Error(t, err)
	require.NoError(t, tx.Rollback(context.Background()))

	fe, ok := fault.As(err)
	require.True(t, ok)
	assert.Equal(t, "stale_status", fe.Code)
	assert.Equal(t, "cancelled", fe.Meta["current_status"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateStatusTx_UnknownOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders SET status`).
		WithArgs("ghost", StatusReceived, StatusInPrep).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM orders`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatusTx(context.Background(), tx,
		"ghost", StatusReceived, StatusInPrep, "staff-1", "")
	require.NoError(t, tx.Rollback(context.Background()))
	assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySetPaymentStatus_PaidIsSticky(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	// first write flips the row
	mock.ExpectExec(`UPDATE orders SET payment_status`).
		WithArgs("order-1", PaymentPaid).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	// a later pending report matches zero rows because paid is guarded in SQL
	mock.ExpectExec(`UPDATE orders SET payment_status`).
		WithArgs("order-1", PaymentPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	changed, err := repo.SetPaymentStatus(context.Background(), "order-1", PaymentPaid)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.SetPaymentStatus(context.Background(), "order-1", PaymentPending)
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`SELECT status, changed_by, note, changed_at`).
		WithArgs("order-1").
		WillReturnRows(pgxmock.NewRows([]string{"status", "changed_by", "note", "changed_at"}).
			AddRow(StatusReceived, "cust-1", "order placed", now).
			AddRow(StatusInPrep, "staff-1", "starting prep", now.Add(time.Minute)))

	history, err := repo.History(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, StatusReceived, history[0].Status)
	assert.Equal(t, StatusInPrep, history[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quickbite/orderflow/internal/db"
)

type Repository interface {
	Create(ctx context.Context, a *Attempt) error
	GetByID(ctx context.Context, id string) (*Attempt, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*Attempt, error)
	ListByOrder(ctx context.Context, orderID string) ([]Attempt, error)
	// MergeStatus moves the attempt forward. Terminal states are never
	// overwritten; the returned bool reports whether a row changed, making
	// repeated reconciliation (poll racing callback) a no-op.
	MergeStatus(ctx context.Context, externalRef string, status Status, gatewayRef string) (*Attempt, bool, error)
}

type PostgresRepository struct {
	pool db.Pool
}

func NewPostgresRepository(pool db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const attemptColumns = `id, order_id, user_id, amount, phone_number, status,
	external_ref, gateway_ref, operator, created_at, updated_at`

func scanAttempt(row pgx.Row) (*Attempt, error) {
	var a Attempt
	err := row.Scan(&a.ID, &a.OrderID, &a.UserID, &a.Amount, &a.PhoneNumber,
		&a.Status, &a.ExternalRef, &a.GatewayRef, &a.Operator, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, a *Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO payments (id, order_id, user_id, amount, phone_number,
		                      status, external_ref, gateway_ref, operator)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, a.ID, a.OrderID, a.UserID, a.Amount, a.PhoneNumber, a.Status,
		a.ExternalRef, a.GatewayRef, a.Operator,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM payments WHERE id = $1`, id))
}

func (r *PostgresRepository) GetByExternalRef(ctx context.Context, externalRef string) (*Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM payments WHERE external_ref = $1`, externalRef))
}

func (r *PostgresRepository) ListByOrder(ctx context.Context, orderID string) ([]Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at DESC`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

func (r *PostgresRepository) MergeStatus(ctx context.Context, externalRef string, status Status, gatewayRef string) (*Attempt, bool, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx, `
		UPDATE payments
		SET status = $2,
		    gateway_ref = CASE WHEN $3 <> '' THEN $3 ELSE gateway_ref END,
		    updated_at = now()
		WHERE external_ref = $1 AND status = 'pending' AND status <> $2
		RETURNING `+attemptColumns,
		externalRef, status, gatewayRef))
	if err != nil {
		return nil, false, fmt.Errorf("merge payment status: %w", err)
	}
	if a != nil {
		return a, true, nil
	}

	// No row moved: either unknown reference or already terminal / unchanged.
	existing, err := r.GetByExternalRef(ctx, externalRef)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quickbite/orderflow/internal/db"
)

type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	GetByID(ctx context.Context, id string) (*Assignment, error)
	GetByOrderID(ctx context.Context, orderID string) (*Assignment, error)
	// EnsureForOrderTx creates the assignment row for an order if missing and
	// returns it locked (FOR UPDATE) so concurrent assigns serialize on it.
	EnsureForOrderTx(ctx context.Context, tx pgx.Tx, orderID string) (*Assignment, error)
	// LockTx loads the assignment by id with a row lock.
	LockTx(ctx context.Context, tx pgx.Tx, id string) (*Assignment, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, a *Assignment) error
	AppendMilestoneTx(ctx context.Context, tx pgx.Tx, assignmentID string, status Status, note string) error
	GetAgent(ctx context.Context, agentID string) (*Agent, error)
	ListAgents(ctx context.Context) ([]Agent, error)
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

const assignmentColumns = `id, order_id, agent_id, status, accepted, created_at, updated_at`

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.OrderID, &a.AgentID, &a.Status, &a.Accepted, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	return &a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Assignment, error) {
	a, err := scanAssignment(r.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM delivery_assignments WHERE id = $1`, id))
	if err != nil || a == nil {
		return a, err
	}
	if err := r.loadMilestones(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresRepository) GetByOrderID(ctx context.Context, orderID string) (*Assignment, error) {
	a, err := scanAssignment(r.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM delivery_assignments WHERE order_id = $1`, orderID))
	if err != nil || a == nil {
		return a, err
	}
	if err := r.loadMilestones(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresRepository) loadMilestones(ctx context.Context, a *Assignment) error {
	rows, err := r.pool.Query(ctx, `
		SELECT status, note, created_at
		FROM delivery_milestones WHERE assignment_id = $1 ORDER BY created_at
	`, a.ID)
	if err != nil {
		return fmt.Errorf("select milestones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Milestone
		if err := rows.Scan(&m.Status, &m.Note, &m.CreatedAt); err != nil {
			return fmt.Errorf("scan milestone: %w", err)
		}
		a.Milestones = append(a.Milestones, m)
	}
	return rows.Err()
}

func (r *PostgresRepository) EnsureForOrderTx(ctx context.Context, tx pgx.Tx, orderID string) (*Assignment, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO delivery_assignments (id, order_id)
		VALUES ($1, $2)
		ON CONFLICT (order_id) DO NOTHING
	`, uuid.NewString(), orderID)
	if err != nil {
		return nil, fmt.Errorf("ensure assignment: %w", err)
	}

	return scanAssignment(tx.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM delivery_assignments WHERE order_id = $1 FOR UPDATE`,
		orderID))
}

func (r *PostgresRepository) LockTx(ctx context.Context, tx pgx.Tx, id string) (*Assignment, error) {
	return scanAssignment(tx.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM delivery_assignments WHERE id = $1 FOR UPDATE`, id))
}

func (r *PostgresRepository) UpdateTx(ctx context.Context, tx pgx.Tx, a *Assignment) error {
	_, err := tx.Exec(ctx, `
		UPDATE delivery_assignments
		SET agent_id = $2, status = $3, accepted = $4, updated_at = now()
		WHERE id = $1
	`, a.ID, a.AgentID, a.Status, a.Accepted)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AppendMilestoneTx(ctx context.Context, tx pgx.Tx, assignmentID string, status Status, note string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO delivery_milestones (id, assignment_id, status, note)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), assignmentID, status, note)
	if err != nil {
		return fmt.Errorf("append milestone: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	var a Agent
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, phone, available FROM delivery_agents WHERE id = $1`,
		agentID,
	).Scan(&a.ID, &a.Name, &a.Phone, &a.Available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select agent: %w", err)
	}
	return &a, nil
}

func (r *PostgresRepository) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, phone, available FROM delivery_agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Phone, &a.Available); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"restaurant-orders/internal/domain"
)

type ordersPG struct {
	pool *pgxpool.Pool
}

func NewOrdersPG(pool *pgxpool.Pool) Orders { return &ordersPG{pool: pool} }

func (r *ordersPG) Create(ctx context.Context, o domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders (id, table_id, customer_name, created_at, items, status, prep_started_at, estimated_prep_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.Table, o.CustomerName, o.CreatedAt, items, string(o.Status), o.PrepStartedAt, o.EstimatedPrepMinutes)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return nil
}

func (r *ordersPG) GetByID(ctx context.Context, id string) (domain.Order, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, table_id, customer_name, created_at, items, status, prep_started_at, estimated_prep_minutes
		FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err == pgx.ErrNoRows {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("select order %s: %w", id, err)
	}
	return o, true, nil
}

func (r *ordersPG) List(ctx context.Context, status domain.Status) ([]domain.Order, error) {
	q := `SELECT id, table_id, customer_name, created_at, items, status, prep_started_at, estimated_prep_minutes
		FROM orders`
	args := []any{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *ordersPG) UpdateStatus(ctx context.Context, id string, status domain.Status, prepStartedAt *time.Time, estimatedPrepMinutes *int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    prep_started_at = COALESCE($3, prep_started_at),
		    estimated_prep_minutes = COALESCE($4, estimated_prep_minutes)
		WHERE id = $1`,
		id, string(status), prepStartedAt, estimatedPrepMinutes)
	if err != nil {
		return fmt.Errorf("update status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s not found", id)
	}
	return nil
}

func (r *ordersPG) ReplaceItems(ctx context.Context, o domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET table_id = $2, customer_name = $3, items = $4 WHERE id = $1`,
		o.ID, o.Table, o.CustomerName, items)
	if err != nil {
		return fmt.Errorf("replace items %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s not found", o.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o      domain.Order
		items  []byte
		status string
	)
	if err := row.Scan(&o.ID, &o.Table, &o.CustomerName, &o.CreatedAt, &items, &status, &o.PrepStartedAt, &o.EstimatedPrepMinutes); err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.Status(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal items: %w", err)
	}
	return o, nil
}

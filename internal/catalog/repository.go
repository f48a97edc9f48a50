package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/db"
)

type Repository interface {
	Insert(ctx context.Context, vt VariantType) error
	List(ctx context.Context) ([]VariantType, error)
	GetByName(ctx context.Context, name string) (VariantType, error)
}

type PostgresRepository struct {
	pool db.Querier
}

func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Insert(ctx context.Context, vt VariantType) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO variant_types (id, name, sort_order, created_at)
		VALUES ($1, $2, $3, $4)
	`, vt.ID, vt.Name, vt.SortOrder, vt.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateType
		}
		return fmt.Errorf("insert variant type: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]VariantType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, sort_order, created_at
		FROM variant_types
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("select variant types: %w", err)
	}
	defer rows.Close()

	var types []VariantType
	for rows.Next() {
		var vt VariantType
		if err := rows.Scan(&vt.ID, &vt.Name, &vt.SortOrder, &vt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan variant type: %w", err)
		}
		types = append(types, vt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return types, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (VariantType, error) {
	var vt VariantType
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, sort_order, created_at
		FROM variant_types
		WHERE name = $1
	`, name).Scan(&vt.ID, &vt.Name, &vt.SortOrder, &vt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VariantType{}, ErrTypeNotFound
		}
		return VariantType{}, fmt.Errorf("select variant type: %w", err)
	}
	return vt, nil
}

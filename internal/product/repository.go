package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/db"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrUnknownType    = errors.New("unknown variant type")
	ErrInvalidProduct = errors.New("invalid product")
)

type Product struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	MandatoryTypes []string  `json:"mandatoryTypes"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Repository is the product catalog collaborator backed by postgres. The engine
// only reads from it; Create exists for admin seeding.
type Repository struct {
	pool db.DBPool
}

func NewRepository(pool db.DBPool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a product and its mandatory variant dimensions in one transaction.
func (r *Repository) Create(ctx context.Context, name string, mandatoryTypes []string) (Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	typeNames := dedupe(mandatoryTypes)

	p := Product{
		ID:             uuid.NewString(),
		Name:           name,
		MandatoryTypes: typeNames,
		CreatedAt:      time.Now().UTC(),
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO products (id, name, created_at)
		VALUES ($1, $2, $3)
	`, p.ID, p.Name, p.CreatedAt); err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}

	if len(typeNames) > 0 {
		tag, err := tx.Exec(ctx, `
			INSERT INTO product_variant_types (product_id, variant_type_id)
			SELECT $1, id FROM variant_types WHERE name = ANY($2)
		`, p.ID, typeNames)
		if err != nil {
			return Product{}, fmt.Errorf("insert product variant types: %w", err)
		}
		if tag.RowsAffected() != int64(len(typeNames)) {
			return Product{}, fmt.Errorf("%w: one of %v is not registered", ErrUnknownType, typeNames)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Product{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (r *Repository) Exists(ctx context.Context, productID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select product: %w", err)
	}
	return exists, nil
}

// MandatoryTypes returns the names of the variant types the product requires in every selection.
func (r *Repository) MandatoryTypes(ctx context.Context, productID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT vt.name
		FROM product_variant_types pvt
		JOIN variant_types vt ON vt.id = pvt.variant_type_id
		WHERE pvt.product_id = $1
		ORDER BY vt.sort_order, vt.name
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("select mandatory types: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan mandatory type: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return names, nil
}

func (r *Repository) Get(ctx context.Context, productID string) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("select product: %w", err)
	}

	p.MandatoryTypes, err = r.MandatoryTypes(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

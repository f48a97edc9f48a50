package variant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/db"
)

// Store persists values and combinations. Create must rely on the storage layer's
// uniqueness of (product, content key) among active combinations.
type Store interface {
	FindActive(ctx context.Context, productID, contentKey string) (string, error)
	Create(ctx context.Context, nc NewCombination) (string, error)
	UpsertValue(ctx context.Context, v Value) (Value, error)
	Get(ctx context.Context, combinationID string) (Combination, error)
	ListByProduct(ctx context.Context, productID string) ([]Combination, error)
	SetPriceDelta(ctx context.Context, combinationID string, delta decimal.Decimal) error
	Archive(ctx context.Context, combinationID string) error
}

type PostgresStore struct {
	pool db.DBPool
}

func NewPostgresStore(pool db.DBPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindActive(ctx context.Context, productID, contentKey string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM variant_combinations
		WHERE product_id = $1 AND content_key = $2 AND active
	`, productID, contentKey).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUnknownCombination
		}
		return "", fmt.Errorf("select combination: %w", err)
	}
	return id, nil
}

// Create inserts any missing values, the combination and its members in one transaction.
func (s *PostgresStore) Create(ctx context.Context, nc NewCombination) (string, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	valueIDs := make([]string, 0, len(nc.Pairs))
	for _, p := range nc.Pairs {
		v, err := upsertValue(ctx, tx, Value{
			ID:        newID(),
			ProductID: nc.ProductID,
			TypeID:    p.TypeID,
			TypeName:  p.TypeName,
			Label:     p.Label,
		})
		if err != nil {
			return "", err
		}
		valueIDs = append(valueIDs, v.ID)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO variant_combinations (id, product_id, content_key, active, created_at)
		VALUES ($1, $2, $3, TRUE, $4)
	`, nc.ID, nc.ProductID, nc.ContentKey, nc.CreatedAt)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return "", ErrDuplicateCombination
		case db.IsForeignKeyViolation(err):
			return "", ErrProductNotFound
		}
		return "", fmt.Errorf("insert combination: %w", err)
	}

	for i, valueID := range valueIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO variant_combination_members (combination_id, variant_value_id, position)
			VALUES ($1, $2, $3)
		`, nc.ID, valueID, i); err != nil {
			return "", fmt.Errorf("insert combination member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if db.IsUniqueViolation(err) {
			return "", ErrDuplicateCombination
		}
		return "", fmt.Errorf("commit: %w", err)
	}
	return nc.ID, nil
}

func (s *PostgresStore) UpsertValue(ctx context.Context, v Value) (Value, error) {
	return upsertValue(ctx, s.pool, v)
}

// upsertValue returns the existing row for (product, type, label) when there is one.
// A non-empty ColorHex overwrites the stored one.
func upsertValue(ctx context.Context, q db.Querier, v Value) (Value, error) {
	err := q.QueryRow(ctx, `
		INSERT INTO variant_values (id, product_id, variant_type_id, label, color_hex)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (product_id, variant_type_id, label)
		DO UPDATE SET color_hex = COALESCE(EXCLUDED.color_hex, variant_values.color_hex)
		RETURNING id, COALESCE(color_hex, '')
	`, v.ID, v.ProductID, v.TypeID, v.Label, v.ColorHex).Scan(&v.ID, &v.ColorHex)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Value{}, ErrProductNotFound
		}
		return Value{}, fmt.Errorf("upsert variant value: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) Get(ctx context.Context, combinationID string) (Combination, error) {
	var (
		c     Combination
		delta string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, product_id, content_key, price_delta::text, active, created_at
		FROM variant_combinations
		WHERE id = $1
	`, combinationID).Scan(&c.ID, &c.ProductID, &c.ContentKey, &delta, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Combination{}, ErrUnknownCombination
		}
		return Combination{}, fmt.Errorf("select combination: %w", err)
	}
	if c.PriceDelta, err = decimal.NewFromString(delta); err != nil {
		return Combination{}, fmt.Errorf("parse price delta %q: %w", delta, err)
	}

	c.Members, err = s.members(ctx, c.ID)
	if err != nil {
		return Combination{}, err
	}
	return c, nil
}

func (s *PostgresStore) members(ctx context.Context, combinationID string) ([]Value, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.id, v.product_id, v.variant_type_id, vt.name, v.label, COALESCE(v.color_hex, '')
		FROM variant_combination_members m
		JOIN variant_values v ON v.id = m.variant_value_id
		JOIN variant_types vt ON vt.id = v.variant_type_id
		WHERE m.combination_id = $1
		ORDER BY m.position
	`, combinationID)
	if err != nil {
		return nil, fmt.Errorf("select combination members: %w", err)
	}
	defer rows.Close()

	members := []Value{}
	for rows.Next() {
		var v Value
		if err := rows.Scan(&v.ID, &v.ProductID, &v.TypeID, &v.TypeName, &v.Label, &v.ColorHex); err != nil {
			return nil, fmt.Errorf("scan combination member: %w", err)
		}
		members = append(members, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return members, nil
}

func (s *PostgresStore) ListByProduct(ctx context.Context, productID string) ([]Combination, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, content_key, price_delta::text, active, created_at
		FROM variant_combinations
		WHERE product_id = $1
		ORDER BY created_at, id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("select combinations: %w", err)
	}

	var combos []Combination
	for rows.Next() {
		var (
			c     Combination
			delta string
		)
		if err := rows.Scan(&c.ID, &c.ProductID, &c.ContentKey, &delta, &c.Active, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan combination: %w", err)
		}
		if c.PriceDelta, err = decimal.NewFromString(delta); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse price delta %q: %w", delta, err)
		}
		combos = append(combos, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for i := range combos {
		if combos[i].Members, err = s.members(ctx, combos[i].ID); err != nil {
			return nil, err
		}
	}
	return combos, nil
}

func (s *PostgresStore) SetPriceDelta(ctx context.Context, combinationID string, delta decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE variant_combinations SET price_delta = $2::numeric WHERE id = $1
	`, combinationID, delta.StringFixed(2))
	if err != nil {
		return fmt.Errorf("update price delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownCombination
	}
	return nil
}

// Archive soft-deletes a combination. Its movements and reservations stay untouched.
func (s *PostgresStore) Archive(ctx context.Context, combinationID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE variant_combinations
		SET active = FALSE, archived_at = COALESCE(archived_at, now())
		WHERE id = $1
	`, combinationID)
	if err != nil {
		return fmt.Errorf("archive combination: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownCombination
	}
	return nil
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/db"
)

const defaultPageSize = 200

// Ledger is the append-only supply ledger and the only writer of supply_movements.
// Stock is never stored; it is the sum of a combination's movement deltas.
type Ledger struct {
	pool     db.DBPool
	logger   zerolog.Logger
	pageSize int
}

func New(pool db.DBPool, logger zerolog.Logger) *Ledger {
	return &Ledger{
		pool:     pool,
		logger:   logger.With().Str("component", "supply-ledger").Logger(),
		pageSize: defaultPageSize,
	}
}

func (l *Ledger) CurrentStock(ctx context.Context, combinationID string) (int64, error) {
	var stock int64
	err := l.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(m.delta), 0)
		FROM variant_combinations c
		LEFT JOIN supply_movements m ON m.combination_id = c.id
		WHERE c.id = $1
		GROUP BY c.id
	`, combinationID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUnknownCombination
		}
		return 0, fmt.Errorf("sum movements: %w", err)
	}
	return stock, nil
}

// RecordMovement appends one movement in its own transaction.
func (l *Ledger) RecordMovement(ctx context.Context, in MovementInput) (Receipt, error) {
	if err := validate(in); err != nil {
		return Receipt{}, err
	}

	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Receipt{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := l.RecordMovementTx(ctx, tx, in)
	if err != nil {
		return Receipt{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, fmt.Errorf("commit movement: %w", err)
	}
	return rec, nil
}

// RecordMovementTx appends one movement inside the caller's transaction. The
// combination row stays locked until tx ends, which serializes every balance
// check and insert for that combination.
func (l *Ledger) RecordMovementTx(ctx context.Context, tx pgx.Tx, in MovementInput) (Receipt, error) {
	if err := validate(in); err != nil {
		return Receipt{}, err
	}

	var active bool
	err := tx.QueryRow(ctx, `
		SELECT active FROM variant_combinations WHERE id = $1 FOR UPDATE
	`, in.CombinationID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, ErrUnknownCombination
		}
		return Receipt{}, fmt.Errorf("lock combination: %w", err)
	}
	if !active && (in.Reason == ReasonRestock || in.Reason == ReasonOrderReservation) {
		return Receipt{}, fmt.Errorf("%w: %s", ErrCombinationInactive, in.CombinationID)
	}

	var balance int64
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(delta), 0) FROM supply_movements WHERE combination_id = $1
	`, in.CombinationID).Scan(&balance); err != nil {
		return Receipt{}, fmt.Errorf("sum movements: %w", err)
	}

	if balance+in.Delta < 0 {
		return Receipt{}, &InsufficientStockError{
			CombinationID: in.CombinationID,
			Available:     balance,
			Requested:     -in.Delta,
		}
	}

	id := uuid.NewString()
	var recordedAt time.Time
	if err := tx.QueryRow(ctx, `
		INSERT INTO supply_movements (id, combination_id, delta, reason, order_line_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING created_at
	`, id, in.CombinationID, in.Delta, string(in.Reason), in.OrderLineID).Scan(&recordedAt); err != nil {
		return Receipt{}, fmt.Errorf("insert movement: %w", err)
	}

	rec := Receipt{MovementID: id, Balance: balance + in.Delta, RecordedAt: recordedAt}
	l.logger.Debug().
		Str("combination_id", in.CombinationID).
		Str("movement_id", id).
		Str("reason", string(in.Reason)).
		Int64("delta", in.Delta).
		Int64("balance", rec.Balance).
		Msg("movement recorded")
	return rec, nil
}

// History yields the combination's movements oldest first, reading one page at a
// time. Every range over the returned sequence starts again from the first movement.
func (l *Ledger) History(ctx context.Context, combinationID string) iter.Seq2[Movement, error] {
	return func(yield func(Movement, error) bool) {
		var exists bool
		if err := l.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM variant_combinations WHERE id = $1)
		`, combinationID).Scan(&exists); err != nil {
			yield(Movement{}, fmt.Errorf("select combination: %w", err))
			return
		}
		if !exists {
			yield(Movement{}, ErrUnknownCombination)
			return
		}

		var last *Movement
		for {
			page, err := l.page(ctx, combinationID, last)
			if err != nil {
				yield(Movement{}, err)
				return
			}
			for _, m := range page {
				if !yield(m, nil) {
					return
				}
			}
			if len(page) < l.pageSize {
				return
			}
			last = &page[len(page)-1]
		}
	}
}

func (l *Ledger) page(ctx context.Context, combinationID string, after *Movement) ([]Movement, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		rows, err = l.pool.Query(ctx, `
			SELECT seq, id, combination_id, delta, reason, COALESCE(order_line_id, ''), created_at
			FROM supply_movements
			WHERE combination_id = $1
			ORDER BY created_at, seq
			LIMIT $2
		`, combinationID, l.pageSize)
	} else {
		rows, err = l.pool.Query(ctx, `
			SELECT seq, id, combination_id, delta, reason, COALESCE(order_line_id, ''), created_at
			FROM supply_movements
			WHERE combination_id = $1 AND (created_at, seq) > ($2, $3)
			ORDER BY created_at, seq
			LIMIT $4
		`, combinationID, after.CreatedAt, after.Seq, l.pageSize)
	}
	if err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	defer rows.Close()

	page := make([]Movement, 0, l.pageSize)
	for rows.Next() {
		var (
			m      Movement
			reason string
		)
		if err := rows.Scan(&m.Seq, &m.ID, &m.CombinationID, &m.Delta, &reason, &m.OrderLineID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.Reason = Reason(reason)
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return page, nil
}

func validate(in MovementInput) error {
	if in.CombinationID == "" {
		return fmt.Errorf("%w: combination id is required", ErrInvalidMovement)
	}
	if !in.Reason.Valid() {
		return fmt.Errorf("%w: unknown reason %q", ErrInvalidMovement, in.Reason)
	}
	if in.Delta == 0 {
		return fmt.Errorf("%w: delta must not be zero", ErrInvalidMovement)
	}
	if in.Delta > math.MaxInt32 || in.Delta < math.MinInt32 {
		return fmt.Errorf("%w: delta %d out of range", ErrInvalidMovement, in.Delta)
	}

	switch in.Reason {
	case ReasonRestock:
		if in.Delta < 0 {
			return fmt.Errorf("%w: restock must be positive", ErrInvalidMovement)
		}
	case ReasonOrderReservation:
		if in.Delta > 0 {
			return fmt.Errorf("%w: order reservation must be negative", ErrInvalidMovement)
		}
	case ReasonOrderCancellation:
		if in.Delta < 0 {
			return fmt.Errorf("%w: order cancellation must be positive", ErrInvalidMovement)
		}
	}

	orderLinked := in.Reason == ReasonOrderReservation || in.Reason == ReasonOrderCancellation
	if orderLinked && in.OrderLineID == "" {
		return fmt.Errorf("%w: %s requires an order line", ErrInvalidMovement, in.Reason)
	}
	return nil
}

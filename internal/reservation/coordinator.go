package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/ledger"
)

// MovementRecorder appends ledger movements inside an open transaction.
type MovementRecorder interface {
	RecordMovementTx(ctx context.Context, tx pgx.Tx, in ledger.MovementInput) (ledger.Receipt, error)
}

// Notifier is told about every committed state change.
type Notifier interface {
	ReservationChanged(ctx context.Context, r Reservation) error
}

// Coordinator drives the per order line state machine. Each transition runs in
// one transaction together with its ledger movement.
type Coordinator struct {
	pool     db.DBPool
	ledger   MovementRecorder
	notifier Notifier
	logger   zerolog.Logger
}

func NewCoordinator(pool db.DBPool, recorder MovementRecorder, notifier Notifier, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		pool:     pool,
		ledger:   recorder,
		notifier: notifier,
		logger:   logger.With().Str("component", "reservation-coordinator").Logger(),
	}
}

const selectColumns = `
	SELECT order_line_id, combination_id, quantity, state,
		COALESCE(reject_reason, ''), COALESCE(reserve_movement_id, ''), COALESCE(release_movement_id, ''),
		created_at, updated_at
	FROM order_line_reservations
`

func scanReservation(row pgx.Row) (Reservation, error) {
	var (
		r     Reservation
		state string
	)
	err := row.Scan(&r.OrderLineID, &r.CombinationID, &r.Quantity, &state,
		&r.RejectReason, &r.ReserveMovementID, &r.ReleaseMovementID, &r.CreatedAt, &r.UpdatedAt)
	r.State = State(state)
	return r, err
}

// Reserve takes quantity units of combinationID for orderLineID. Insufficient
// stock is a REJECTED result, not an error. Repeating a call with the same
// arguments returns the stored result without touching the ledger.
func (c *Coordinator) Reserve(ctx context.Context, orderLineID, combinationID string, quantity int) (Result, error) {
	orderLineID = strings.TrimSpace(orderLineID)
	combinationID = strings.TrimSpace(combinationID)
	if orderLineID == "" || combinationID == "" {
		return Result{}, fmt.Errorf("%w: order line and combination are required", ErrInvalidArgument)
	}
	if quantity <= 0 {
		return Result{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockLine(ctx, tx, orderLineID); err != nil {
		return Result{}, err
	}

	existing, err := scanReservation(tx.QueryRow(ctx, selectColumns+`WHERE order_line_id = $1 FOR UPDATE`, orderLineID))
	switch {
	case err == nil:
		return replay(existing, combinationID, quantity)
	case !errors.Is(err, pgx.ErrNoRows):
		return Result{}, fmt.Errorf("lock order line: %w", err)
	}

	r := Reservation{
		OrderLineID:   orderLineID,
		CombinationID: combinationID,
		Quantity:      quantity,
		State:         StateReserved,
	}

	var cancelled bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM order_line_cancellations WHERE order_line_id = $1)
	`, orderLineID).Scan(&cancelled); err != nil {
		return Result{}, fmt.Errorf("check cancellation: %w", err)
	}

	if cancelled {
		r.State = StateRejected
		r.RejectReason = ReasonLineCancelled
	} else {
		receipt, err := c.ledger.RecordMovementTx(ctx, tx, ledger.MovementInput{
			CombinationID: combinationID,
			Delta:         -int64(quantity),
			Reason:        ledger.ReasonOrderReservation,
			OrderLineID:   orderLineID,
		})
		switch {
		case err == nil:
			r.ReserveMovementID = receipt.MovementID
		case errors.Is(err, ledger.ErrInsufficientStock):
			r.State = StateRejected
			r.RejectReason = ReasonInsufficientStock
		case errors.Is(err, ledger.ErrCombinationInactive):
			r.State = StateRejected
			r.RejectReason = ReasonCombinationInactive
		default:
			return Result{}, err
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO order_line_reservations
			(order_line_id, combination_id, quantity, state, reject_reason, reserve_movement_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at, updated_at
	`, r.OrderLineID, r.CombinationID, r.Quantity, string(r.State), r.RejectReason, r.ReserveMovementID).
		Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			// A concurrent call for the same line committed first.
			_ = tx.Rollback(ctx)
			stored, getErr := c.Get(ctx, orderLineID)
			if getErr != nil {
				return Result{}, getErr
			}
			return replay(stored, combinationID, quantity)
		}
		if db.IsForeignKeyViolation(err) {
			return Result{}, fmt.Errorf("%w: %s", ledger.ErrUnknownCombination, combinationID)
		}
		return Result{}, fmt.Errorf("insert reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit reservation: %w", err)
	}

	ev := c.logger.Info()
	if r.State == StateRejected {
		ev = c.logger.Warn().Str("reason", r.RejectReason)
	}
	ev.Str("order_line_id", orderLineID).
		Str("combination_id", combinationID).
		Int("quantity", quantity).
		Str("state", string(r.State)).
		Msg("order line reservation recorded")

	c.notify(ctx, r)
	return r.Result(), nil
}

func replay(stored Reservation, combinationID string, quantity int) (Result, error) {
	if stored.CombinationID != combinationID || stored.Quantity != quantity {
		return Result{}, fmt.Errorf("%w: %s", ErrLineConflict, stored.OrderLineID)
	}
	return stored.Result(), nil
}

// Release returns the units of a RESERVED line to stock with a compensating
// order-cancellation movement.
func (c *Coordinator) Release(ctx context.Context, orderLineID string) error {
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r, err := scanReservation(tx.QueryRow(ctx, selectColumns+`WHERE order_line_id = $1 FOR UPDATE`, orderLineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotReserved, orderLineID)
		}
		return fmt.Errorf("lock order line: %w", err)
	}
	return c.release(ctx, tx, r)
}

// Cancel ends an order line on behalf of the order side. A RESERVED line is
// released. A line with no reservation yet is remembered, and a later Reserve
// for it is REJECTED without touching stock.
func (c *Coordinator) Cancel(ctx context.Context, orderLineID string) error {
	orderLineID = strings.TrimSpace(orderLineID)
	if orderLineID == "" {
		return fmt.Errorf("%w: order line is required", ErrInvalidArgument)
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockLine(ctx, tx, orderLineID); err != nil {
		return err
	}

	r, err := scanReservation(tx.QueryRow(ctx, selectColumns+`WHERE order_line_id = $1 FOR UPDATE`, orderLineID))
	switch {
	case err == nil:
		return c.release(ctx, tx, r)
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("lock order line: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_line_cancellations (order_line_id)
		VALUES ($1)
		ON CONFLICT (order_line_id) DO NOTHING
	`, orderLineID); err != nil {
		return fmt.Errorf("record cancellation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cancellation: %w", err)
	}

	c.logger.Info().Str("order_line_id", orderLineID).Msg("order line cancelled before reservation")
	return nil
}

// release moves the locked line r from RESERVED to RELEASED and commits tx.
func (c *Coordinator) release(ctx context.Context, tx pgx.Tx, r Reservation) error {
	if r.State != StateReserved {
		return fmt.Errorf("%w: %s is %s", ErrNotReserved, r.OrderLineID, r.State)
	}

	receipt, err := c.ledger.RecordMovementTx(ctx, tx, ledger.MovementInput{
		CombinationID: r.CombinationID,
		Delta:         int64(r.Quantity),
		Reason:        ledger.ReasonOrderCancellation,
		OrderLineID:   r.OrderLineID,
	})
	if err != nil {
		return err
	}

	if err := tx.QueryRow(ctx, `
		UPDATE order_line_reservations
		SET state = $2, release_movement_id = $3, updated_at = now()
		WHERE order_line_id = $1
		RETURNING updated_at
	`, r.OrderLineID, string(StateReleased), receipt.MovementID).Scan(&r.UpdatedAt); err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit release: %w", err)
	}

	r.State = StateReleased
	r.ReleaseMovementID = receipt.MovementID
	c.logger.Info().
		Str("order_line_id", r.OrderLineID).
		Str("combination_id", r.CombinationID).
		Int("quantity", r.Quantity).
		Msg("order line released")

	c.notify(ctx, r)
	return nil
}

// lockLine serializes Reserve and Cancel for one order line, including lines
// that have no row yet. The lock is released when tx ends.
func lockLine(ctx context.Context, tx pgx.Tx, orderLineID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, orderLineID); err != nil {
		return fmt.Errorf("lock order line %s: %w", orderLineID, err)
	}
	return nil
}

// Fulfill marks a RESERVED line delivered. Stock was taken at reservation time.
func (c *Coordinator) Fulfill(ctx context.Context, orderLineID string) error {
	r, err := scanReservation(c.pool.QueryRow(ctx, `
		UPDATE order_line_reservations
		SET state = $2, updated_at = now()
		WHERE order_line_id = $1 AND state = $3
		RETURNING order_line_id, combination_id, quantity, state,
			COALESCE(reject_reason, ''), COALESCE(reserve_movement_id, ''), COALESCE(release_movement_id, ''),
			created_at, updated_at
	`, orderLineID, string(StateFulfilled), string(StateReserved)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotReserved, orderLineID)
		}
		return fmt.Errorf("fulfill reservation: %w", err)
	}

	c.logger.Info().Str("order_line_id", orderLineID).Msg("order line fulfilled")
	c.notify(ctx, r)
	return nil
}

func (c *Coordinator) Get(ctx context.Context, orderLineID string) (Reservation, error) {
	r, err := scanReservation(c.pool.QueryRow(ctx, selectColumns+`WHERE order_line_id = $1`, orderLineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrReservationNotFound
		}
		return Reservation{}, fmt.Errorf("select reservation: %w", err)
	}
	return r, nil
}

func (c *Coordinator) notify(ctx context.Context, r Reservation) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.ReservationChanged(ctx, r); err != nil {
		c.logger.Error().Err(err).
			Str("order_line_id", r.OrderLineID).
			Str("state", string(r.State)).
			Msg("failed to publish reservation change")
	}
}

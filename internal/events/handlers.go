package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/reservation"
)

// HandlerFunc processes one message body. A returned error NACKs the message
// and it is dead-lettered by the consumer.
type HandlerFunc func(ctx context.Context, body []byte) error

// LineReserver is the order line side of the reservation coordinator.
type LineReserver interface {
	Reserve(ctx context.Context, orderLineID, combinationID string, quantity int) (reservation.Result, error)
	Cancel(ctx context.Context, orderLineID string) error
	Fulfill(ctx context.Context, orderLineID string) error
}

// Checkpoints stores the last processed sequence per consumer and partition.
type Checkpoints interface {
	GetLastSequence(ctx context.Context, consumerName, partitionKey string) (int64, bool, error)
	UpsertLastSequence(ctx context.Context, consumerName, partitionKey string, newSeq int64) error
}

const (
	orderLinePlacedConsumer    = "variant-inventory-order-line-placed"
	orderLineCancelledConsumer = "variant-inventory-order-line-cancelled"
	orderLineDeliveredConsumer = "variant-inventory-order-line-delivered"
)

type Handlers struct {
	lines       LineReserver
	checkpoints Checkpoints
	logger      zerolog.Logger
}

func NewHandlers(lines LineReserver, checkpoints Checkpoints, logger zerolog.Logger) *Handlers {
	return &Handlers{
		lines:       lines,
		checkpoints: checkpoints,
		logger:      logger.With().Str("component", "order-line-handlers").Logger(),
	}
}

// Bindings maps each consumed routing key to its handler.
func (h *Handlers) Bindings() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		OrderLinePlacedRoutingKey:    h.OrderLinePlaced,
		OrderLineCancelledRoutingKey: h.OrderLineCancelled,
		OrderLineDeliveredRoutingKey: h.OrderLineDelivered,
	}
}

// OrderLinePlaced reserves stock for the line. A REJECTED outcome is not an error.
func (h *Handlers) OrderLinePlaced(ctx context.Context, body []byte) error {
	var msg OrderLinePlaced
	env, err := decode(body, EventTypeOrderLinePlaced, &msg)
	if err != nil {
		return err
	}
	if msg.OrderLineID == "" || msg.CombinationID == "" {
		return fmt.Errorf("missing orderLineId or combinationId")
	}

	return h.once(ctx, orderLinePlacedConsumer, env, msg.OrderLineID, func(ctx context.Context) error {
		res, err := h.lines.Reserve(ctx, msg.OrderLineID, msg.CombinationID, msg.Quantity)
		if err != nil {
			return fmt.Errorf("reserve order line %s: %w", msg.OrderLineID, err)
		}
		h.logger.Info().
			Str("order_id", msg.OrderID).
			Str("order_line_id", msg.OrderLineID).
			Str("state", string(res.State)).
			Msg("order line placed")
		return nil
	})
}

// OrderLineCancelled cancels the line. A RESERVED line is released; a line not
// placed yet is remembered so a late placed event cannot take stock. A line in
// a terminal state has nothing to compensate and the message is acknowledged.
func (h *Handlers) OrderLineCancelled(ctx context.Context, body []byte) error {
	var msg OrderLineCancelled
	env, err := decode(body, EventTypeOrderLineCancelled, &msg)
	if err != nil {
		return err
	}
	if msg.OrderLineID == "" {
		return fmt.Errorf("missing orderLineId")
	}

	return h.once(ctx, orderLineCancelledConsumer, env, msg.OrderLineID, func(ctx context.Context) error {
		err := h.lines.Cancel(ctx, msg.OrderLineID)
		if errors.Is(err, reservation.ErrNotReserved) {
			h.logger.Info().Str("order_line_id", msg.OrderLineID).Msg("cancelled line holds no reservation")
			return nil
		}
		if err != nil {
			return fmt.Errorf("cancel order line %s: %w", msg.OrderLineID, err)
		}
		return nil
	})
}

func (h *Handlers) OrderLineDelivered(ctx context.Context, body []byte) error {
	var msg OrderLineDelivered
	env, err := decode(body, EventTypeOrderLineDelivered, &msg)
	if err != nil {
		return err
	}
	if msg.OrderLineID == "" {
		return fmt.Errorf("missing orderLineId")
	}

	return h.once(ctx, orderLineDeliveredConsumer, env, msg.OrderLineID, func(ctx context.Context) error {
		err := h.lines.Fulfill(ctx, msg.OrderLineID)
		if errors.Is(err, reservation.ErrNotReserved) {
			h.logger.Warn().Str("order_line_id", msg.OrderLineID).Msg("delivered line holds no reservation")
			return nil
		}
		if err != nil {
			return fmt.Errorf("fulfill order line %s: %w", msg.OrderLineID, err)
		}
		return nil
	})
}

// once skips envelopes at or below the stored checkpoint and advances the
// checkpoint after apply succeeds. Bare payloads are always applied; the
// coordinator is idempotent per order line.
func (h *Handlers) once(ctx context.Context, consumer string, env *EventEnvelope, lineID string, apply func(context.Context) error) error {
	if env == nil || env.Sequence == 0 {
		return apply(ctx)
	}

	partitionKey := env.PartitionKey
	lastSeq, ok, err := h.checkpoints.GetLastSequence(ctx, consumer, partitionKey)
	if err != nil {
		return err
	}
	if ok {
		if env.Sequence <= lastSeq {
			h.logger.Info().
				Str("order_line_id", lineID).
				Str("partition", partitionKey).
				Int64("seq", env.Sequence).
				Int64("last", lastSeq).
				Msg("skip duplicate")
			return nil
		}
		if env.Sequence > lastSeq+1 {
			h.logger.Warn().
				Str("partition", partitionKey).
				Int64("seq", env.Sequence).
				Int64("last", lastSeq).
				Msg("sequence gap")
		}
	}

	ctx = WithMeta(ctx, EventMeta{CorrelationID: env.CorrelationID, CausationID: env.EventID})
	if err := apply(ctx); err != nil {
		return err
	}
	return h.checkpoints.UpsertLastSequence(ctx, consumer, partitionKey, env.Sequence)
}

// decode fills out from either an envelope or a bare payload. The envelope is
// nil for a bare payload.
func decode(body []byte, eventName string, out any) (*EventEnvelope, error) {
	env, enveloped, err := parseEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", eventName, err)
	}
	if !enveloped {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", eventName, err)
		}
		return nil, nil
	}

	if err := env.Validate(eventName, 1); err != nil {
		return nil, fmt.Errorf("invalid %s envelope: %w", eventName, err)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", eventName, err)
	}
	return &env, nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/reservation"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// SequenceSource hands out per partition sequence numbers.
type SequenceSource interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

type Publisher struct {
	ch                 Channel
	seq                SequenceSource
	publishEnveloped   bool
	producerIdentifier string
	publishTimeout     time.Duration
	now                func() time.Time
	logger             zerolog.Logger
}

type PublisherOptions struct {
	PublishEnveloped bool
	Producer         string
}

func NewPublisher(conn *amqp.Connection, seq SequenceSource, opts PublisherOptions, logger zerolog.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, seq, opts, logger), nil
}

func newPublisher(ch Channel, seq SequenceSource, opts PublisherOptions, logger zerolog.Logger) *Publisher {
	producer := opts.Producer
	if producer == "" {
		producer = serviceName
	}
	return &Publisher{
		ch:                 ch,
		seq:                seq,
		publishEnveloped:   opts.PublishEnveloped,
		producerIdentifier: producer,
		publishTimeout:     3 * time.Second,
		now:                func() time.Time { return time.Now().UTC() },
		logger:             logger.With().Str("component", "event-publisher").Logger(),
	}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// ReservationChanged publishes the event matching the reservation's new state.
// The order line id is the partition key, so events for one line stay ordered.
func (p *Publisher) ReservationChanged(ctx context.Context, r reservation.Reservation) error {
	contract, ok := reservationContracts[r.State]
	if !ok {
		return fmt.Errorf("no event for reservation state %q", r.State)
	}

	timestamp := p.now()
	payload := newReservationPayload(r, timestamp)

	var (
		body []byte
		err  error
	)
	if !p.publishEnveloped {
		body, err = json.Marshal(LegacyReservationEvent{EventType: contract.eventName, ReservationPayload: payload})
		if err != nil {
			return fmt.Errorf("marshal %s: %w", contract.eventName, err)
		}
		return p.publishJSON(ctx, contract.routingKey, body)
	}

	seq, err := p.seq.NextSequence(ctx, r.OrderLineID)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	env := newReservationEvent(metaFrom(ctx), contract.eventName, seq, p.producerIdentifier, payload, timestamp)
	body, err = json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", contract.eventName, err)
	}

	if err := p.publishJSON(ctx, contract.routingKey, body); err != nil {
		return err
	}
	p.logger.Debug().
		Str("event", contract.eventName).
		Str("order_line_id", r.OrderLineID).
		Int64("sequence", seq).
		Msg("event published")
	return nil
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func newReservationEvent(meta EventMeta, eventName string, seq int64, producer string, payload ReservationPayload, occurredAt time.Time) ReservationEvent {
	correlationID := meta.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return ReservationEvent{
		EventEnvelope: EventEnvelope{
			EventName:     eventName,
			EventVersion:  1,
			EventID:       uuid.NewString(),
			CorrelationID: correlationID,
			CausationID:   meta.CausationID,
			Producer:      producer,
			PartitionKey:  payload.OrderLineID,
			Sequence:      seq,
			OccurredAt:    occurredAt,
			Schema:        reservationSchema(eventName),
		},
		Payload: payload,
	}
}

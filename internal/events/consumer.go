package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const consumerPrefetch = 16

// StartConsumers declares one durable queue per routing key, bound to the
// events exchange with its own dead-letter queue, and starts a consume loop
// for each. Loops stop when ctx is done or the returned channel closes.
func StartConsumers(ctx context.Context, conn *amqp.Connection, bindings map[string]HandlerFunc, logger zerolog.Logger) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}

	for routingKey, handler := range bindings {
		msgs, err := declareAndConsume(ch, routingKey)
		if err != nil {
			_ = ch.Close()
			return nil, err
		}
		go consumeLoop(ctx, routingKey, msgs, handler, logger)
	}
	return ch, nil
}

func declareAndConsume(ch *amqp.Channel, routingKey string) (<-chan amqp.Delivery, error) {
	queue := queueName(routingKey)
	dlq := deadLetterQueueName(routingKey)

	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare %s: %w", dlq, err)
	}
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlq,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("declare %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, routingKey, EventsExchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind %s: %w", queue, err)
	}

	msgs, err := ch.Consume(
		queue,
		queue, // consumer tag
		false, // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return msgs, nil
}

func consumeLoop(ctx context.Context, routingKey string, msgs <-chan amqp.Delivery, handler HandlerFunc, logger zerolog.Logger) {
	log := logger.With().Str("routing_key", routingKey).Logger()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping consumer")
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Info().Msg("messages channel closed")
				return
			}

			if err := handler(ctx, msg.Body); err != nil {
				log.Error().Err(err).Str("message_id", msg.MessageId).Msg("handle message")
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

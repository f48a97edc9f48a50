package events

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "ecommerce.events"

	OrderLinePlacedRoutingKey    = "order.line.placed.v1"
	OrderLineCancelledRoutingKey = "order.line.cancelled.v1"
	OrderLineDeliveredRoutingKey = "order.line.delivered.v1"

	ReservationReservedRoutingKey  = "reservation.reserved.v1"
	ReservationRejectedRoutingKey  = "reservation.rejected.v1"
	ReservationReleasedRoutingKey  = "reservation.released.v1"
	ReservationFulfilledRoutingKey = "reservation.fulfilled.v1"

	serviceName = "variant-inventory-go"
)

func serviceQueue(service, routingKey string) string {
	return service + "." + routingKey
}

func queueName(routingKey string) string {
	return serviceQueue(serviceName, routingKey)
}

func deadLetterQueueName(routingKey string) string {
	return queueName(routingKey) + ".dlq"
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

package events

import (
	"time"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/reservation"
)

const (
	EventTypeReservationReserved  = "ReservationReserved"
	EventTypeReservationRejected  = "ReservationRejected"
	EventTypeReservationReleased  = "ReservationReleased"
	EventTypeReservationFulfilled = "ReservationFulfilled"

	reservationSchemaPrefix = "contracts/events/inventory/"
)

type reservationContract struct {
	eventName  string
	routingKey string
}

var reservationContracts = map[reservation.State]reservationContract{
	reservation.StateReserved:  {EventTypeReservationReserved, ReservationReservedRoutingKey},
	reservation.StateRejected:  {EventTypeReservationRejected, ReservationRejectedRoutingKey},
	reservation.StateReleased:  {EventTypeReservationReleased, ReservationReleasedRoutingKey},
	reservation.StateFulfilled: {EventTypeReservationFulfilled, ReservationFulfilledRoutingKey},
}

func reservationSchema(eventName string) string {
	return reservationSchemaPrefix + eventName + ".v1.payload.schema.json"
}

type ReservationPayload struct {
	OrderLineID   string    `json:"orderLineId"`
	CombinationID string    `json:"combinationId"`
	Quantity      int       `json:"quantity"`
	State         string    `json:"state"`
	Reason        string    `json:"reason,omitempty"`
	MovementID    string    `json:"movementId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReservationEvent is the enveloped form. Its Payload shadows the raw envelope payload.
type ReservationEvent struct {
	EventEnvelope
	Payload ReservationPayload `json:"payload"`
}

// LegacyReservationEvent is published when envelopes are switched off.
type LegacyReservationEvent struct {
	EventType string `json:"eventType"`
	ReservationPayload
}

func newReservationPayload(r reservation.Reservation, at time.Time) ReservationPayload {
	movementID := r.ReserveMovementID
	if r.State == reservation.StateReleased {
		movementID = r.ReleaseMovementID
	}
	return ReservationPayload{
		OrderLineID:   r.OrderLineID,
		CombinationID: r.CombinationID,
		Quantity:      r.Quantity,
		State:         string(r.State),
		Reason:        r.RejectReason,
		MovementID:    movementID,
		Timestamp:     at,
	}
}

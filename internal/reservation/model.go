package reservation

import (
	"errors"
	"time"
)

type State string

const (
	StatePending   State = "PENDING"
	StateReserved  State = "RESERVED"
	StateRejected  State = "REJECTED"
	StateReleased  State = "RELEASED"
	StateFulfilled State = "FULFILLED"
)

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateReleased || s == StateFulfilled
}

const (
	ReasonInsufficientStock   = "insufficient-stock"
	ReasonCombinationInactive = "combination-inactive"
	ReasonLineCancelled       = "order-line-cancelled"
)

var (
	ErrNotReserved         = errors.New("order line is not reserved")
	ErrLineConflict        = errors.New("order line already reserved with different parameters")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidArgument     = errors.New("invalid reservation request")
)

type Result struct {
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// Reservation is the stored state of one order line.
type Reservation struct {
	OrderLineID       string    `json:"orderLineId"`
	CombinationID     string    `json:"combinationId"`
	Quantity          int       `json:"quantity"`
	State             State     `json:"state"`
	RejectReason      string    `json:"rejectReason,omitempty"`
	ReserveMovementID string    `json:"reserveMovementId,omitempty"`
	ReleaseMovementID string    `json:"releaseMovementId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (r Reservation) Result() Result {
	return Result{State: r.State, Reason: r.RejectReason}
}

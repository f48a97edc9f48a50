package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/variant"
)

type Reason string

const (
	ReasonRestock           Reason = "restock"
	ReasonOrderReservation  Reason = "order-reservation"
	ReasonOrderCancellation Reason = "order-cancellation"
	ReasonManualAdjustment  Reason = "manual-adjustment"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonRestock, ReasonOrderReservation, ReasonOrderCancellation, ReasonManualAdjustment:
		return true
	}
	return false
}

var (
	ErrUnknownCombination  = variant.ErrUnknownCombination
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidMovement     = errors.New("invalid movement")
	ErrCombinationInactive = errors.New("combination is archived")
)

// InsufficientStockError is returned when a movement would take a balance below zero.
// errors.Is(err, ErrInsufficientStock) holds for it.
type InsufficientStockError struct {
	CombinationID string
	Available     int64
	Requested     int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for combination %s: available %d, requested %d", e.CombinationID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Movement is one immutable stock change.
type Movement struct {
	ID            string    `json:"id"`
	Seq           int64     `json:"seq"`
	CombinationID string    `json:"combinationId"`
	Delta         int64     `json:"delta"`
	Reason        Reason    `json:"reason"`
	OrderLineID   string    `json:"orderLineId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type MovementInput struct {
	CombinationID string
	Delta         int64
	Reason        Reason
	OrderLineID   string
}

// Receipt reports a recorded movement and the balance right after it.
type Receipt struct {
	MovementID string    `json:"movementId"`
	Balance    int64     `json:"balance"`
	RecordedAt time.Time `json:"recordedAt"`
}

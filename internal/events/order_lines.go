package events

// OrderLinePlaced asks for stock to be reserved for one order line.
type OrderLinePlaced struct {
	OrderID       string `json:"orderId"`
	OrderLineID   string `json:"orderLineId"`
	CombinationID string `json:"combinationId"`
	Quantity      int    `json:"quantity"`
}

// OrderLineCancelled and OrderLineDelivered only name the line.
type OrderLineCancelled struct {
	OrderID     string `json:"orderId"`
	OrderLineID string `json:"orderLineId"`
}

type OrderLineDelivered struct {
	OrderID     string `json:"orderId"`
	OrderLineID string `json:"orderLineId"`
}

const (
	EventTypeOrderLinePlaced    = "OrderLinePlaced"
	EventTypeOrderLineCancelled = "OrderLineCancelled"
	EventTypeOrderLineDelivered = "OrderLineDelivered"
)

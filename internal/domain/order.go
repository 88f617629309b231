package domain

import "time"

// OrderStatus tracks an order through payment and fulfilment
type OrderStatus int

const (
	OrderInvalid         OrderStatus = -1
	OrderCreated         OrderStatus = 1
	OrderPaymentReceived OrderStatus = 2
	OrderShipped         OrderStatus = 3
	OrderDelivered       OrderStatus = 4
	OrderRefunded        OrderStatus = 5
	OrderVoided          OrderStatus = 6
)

var orderStatusNames = map[OrderStatus]string{
	OrderInvalid:         "INVALID",
	OrderCreated:         "CREATED",
	OrderPaymentReceived: "PAYMENT_RECEIVED",
	OrderShipped:         "SHIPPED",
	OrderDelivered:       "DELIVERED",
	OrderRefunded:        "REFUNDED",
	OrderVoided:          "VOIDED",
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderCreated:         {OrderPaymentReceived, OrderVoided},
	OrderPaymentReceived: {OrderShipped, OrderRefunded},
	OrderShipped:         {OrderDelivered},
	OrderDelivered:       {OrderRefunded},
}

func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return "INVALID"
}

// CanTransitionTo reports whether next is a legal successor of s.
// REFUNDED and VOIDED are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a purchase placed directly against the store
type Order struct {
	ID          int64       `json:"id" db:"id"`
	UserID      int64       `json:"user" db:"user_id"`
	Status      OrderStatus `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created" db:"created_at"`
	LastUpdated time.Time   `json:"last_updated" db:"last_updated"`
	Items       []OrderItem `json:"items,omitempty"`
}

// OrderItem is one line of an order
type OrderItem struct {
	ID       int64 `json:"id" db:"id"`
	OrderID  int64 `json:"order_id" db:"order_id"`
	ItemID   int64 `json:"item" db:"item_id"`
	Quantity int   `json:"quantity" db:"quantity"`
}

package domain

import "time"

// Order is a keyed record in the order-tracking subsystem. OrderNumber is
// unique; it shares no relationship with the mail entities.
type Order struct {
	ID          string    `json:"id"`
	OrderNumber int64     `json:"order_number"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

package order

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/avolkov/mailhub/internal/domain"
	"github.com/avolkov/mailhub/internal/repository"
)

// Service is a thin keyed record store for order tracking. It shares no code
// path with the mail services.
type Service struct {
	orders repository.OrderRepository
	logger *slog.Logger
}

// New returns an order service.
func New(orders repository.OrderRepository, logger *slog.Logger) Service {
	return Service{orders: orders, logger: logger}
}

var (
	// ErrDuplicateOrderNumber is returned when the order number is taken.
	ErrDuplicateOrderNumber = errors.New("order with this number already exists")

	errOrderNumberRequired = errors.New("order number must be positive")
)

// CreateInput carries order creation attributes.
type CreateInput struct {
	OrderNumber int64   `json:"order_number"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Create stores a new order. The store's insert-if-absent guard makes the
// duplicate check safe under concurrent requests.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Order, error) {
	if input.OrderNumber <= 0 {
		return nil, errOrderNumberRequired
	}
	order := &domain.Order{
		ID:          uuid.NewString(),
		OrderNumber: input.OrderNumber,
		Description: input.Description,
		Amount:      input.Amount,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicateOrderNumber
		}
		return nil, err
	}
	s.logger.Info("order created", "order_number", order.OrderNumber)
	return order, nil
}

// Get fetches an order by its unique number.
func (s Service) Get(ctx context.Context, number int64) (*domain.Order, error) {
	return s.orders.GetOrderByNumber(ctx, number)
}

package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/avolkov/mailhub/internal/domain"
	"github.com/avolkov/mailhub/internal/repository"
)

const keyPrefix = "mailhub:orders:"

// OrderStore persists order records as JSON documents in Redis, keyed by
// order number. SETNX makes the uniqueness check atomic with the insert.
type OrderStore struct {
	client  *redis.Client
	timeout time.Duration
}

var _ repository.OrderRepository = (*OrderStore)(nil)

// NewOrderStore connects to Redis and verifies the connection with a ping.
func NewOrderStore(addr, password string, db int) (*OrderStore, error) {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &OrderStore{client: client, timeout: 250 * time.Millisecond}, nil
}

// Close releases the underlying connection.
func (s *OrderStore) Close() {
	if s.client != nil {
		_ = s.client.Close()
	}
}

func orderKey(number int64) string {
	return keyPrefix + strconv.FormatInt(number, 10)
}

// CreateOrder stores an order document. An existing key with the same order
// number yields ErrConflict and leaves the original record untouched.
func (s *OrderStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stored, err := s.client.SetNX(ctx, orderKey(order.OrderNumber), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("store order: %w", err)
	}
	if !stored {
		return repository.ErrConflict
	}
	return nil
}

// GetOrderByNumber fetches an order document by its unique number.
func (s *OrderStore) GetOrderByNumber(ctx context.Context, number int64) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	payload, err := s.client.Get(ctx, orderKey(number)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	var order domain.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &order, nil
}

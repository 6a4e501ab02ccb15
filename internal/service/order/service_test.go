package order

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/avolkov/mailhub/internal/repository"
	"github.com/avolkov/mailhub/internal/repository/memory"
)

func TestCreateAndGetOrder(t *testing.T) {
	svc := newService()

	created, err := svc.Create(context.Background(), CreateInput{
		OrderNumber: 1001,
		Description: "keyboard",
		Amount:      59.90,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	found, err := svc.Get(context.Background(), 1001)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found.Description != "keyboard" || found.Amount != 59.90 {
		t.Fatalf("unexpected order: %+v", found)
	}
}

func TestCreateRejectsDuplicateNumber(t *testing.T) {
	svc := newService()
	if _, err := svc.Create(context.Background(), CreateInput{OrderNumber: 1001}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateInput{OrderNumber: 1001}); !errors.Is(err, ErrDuplicateOrderNumber) {
		t.Fatalf("expected ErrDuplicateOrderNumber, got %v", err)
	}
}

func TestCreateRejectsNonPositiveNumber(t *testing.T) {
	svc := newService()
	for _, number := range []int64{0, -5} {
		if _, err := svc.Create(context.Background(), CreateInput{OrderNumber: number}); err == nil {
			t.Fatalf("expected order number %d to be rejected", number)
		}
	}
}

func TestGetUnknownOrder(t *testing.T) {
	svc := newService()
	if _, err := svc.Get(context.Background(), 404); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func newService() Service {
	return New(memory.NewStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

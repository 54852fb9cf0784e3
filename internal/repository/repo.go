package repository

import (
	"context"
	"time"

	"restaurant-orders/internal/domain"
)

// Orders is the persistence contract for the canonical order document.
type Orders interface {
	// Create inserts a new order. Re-inserting an existing id is a no-op,
	// so redelivered creation events stay idempotent.
	Create(ctx context.Context, o domain.Order) error
	GetByID(ctx context.Context, id string) (domain.Order, bool, error)
	// List returns orders, optionally filtered by status ("" means all).
	List(ctx context.Context, status domain.Status) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, prepStartedAt *time.Time, estimatedPrepMinutes *int) error
	// ReplaceItems swaps the item list (and customer/table) wholesale.
	ReplaceItems(ctx context.Context, o domain.Order) error
}

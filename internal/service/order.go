package service

import (
	"context"
	"fmt"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
)

// OrderStore is the part of the Entity Store order history needs.
type OrderStore interface {
	repository.OrderRepository
	repository.StatsRepository
}

// OrderService serves order history and the admin dashboard.
type OrderService struct {
	store OrderStore
}

func NewOrderService(store OrderStore) *OrderService {
	return &OrderService{store: store}
}

// ListOwn returns userID's orders, oldest first.
func (s *OrderService) ListOwn(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := s.store.ListOrders(ctx, repository.ListOptions{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) GetOwn(ctx context.Context, userID, id string) (*model.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, apperror.NotFound("order", id)
	}
	return o, nil
}

func (s *OrderService) ListAll(ctx context.Context) ([]model.Order, error) {
	orders, err := s.store.ListOrders(ctx, repository.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) Stats(ctx context.Context) (model.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return model.Stats{}, fmt.Errorf("counting stats: %w", err)
	}
	return st, nil
}

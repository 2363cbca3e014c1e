package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
)

// CartStore is the part of the Entity Store the cart needs.
type CartStore interface {
	repository.CartRepository
	repository.TrialRepository
	repository.ModelRepository
	repository.FabricRepository
}

// AddCartItem is a request to keep a trial. ModelID and FabricID must be
// the ones the trial was generated from. A zero Quantity means
// model.DefaultQuantity.
type AddCartItem struct {
	TrialID  string
	ModelID  string
	FabricID string
	Quantity int
}

// CartLine is a cart item with its catalog entries attached. Model or Fabric
// is nil when the entry no longer exists.
type CartLine struct {
	model.CartItem
	Model  *model.Model  `json:"model"`
	Fabric *model.Fabric `json:"fabric"`
}

// CartService manages a user's cart and turns it into an order.
//
// Only completed trials that belong to the caller can be added, and the
// price is never stored on the item: it is read from the fabric at checkout
// time, inside the store's checkout transaction.
type CartService struct {
	store  CartStore
	logger *slog.Logger
}

// NewCartService returns a CartService backed by store.
func NewCartService(store CartStore, logger *slog.Logger) *CartService {
	return &CartService{store: store, logger: logger}
}

// Add keeps one of the user's completed trials. Adding the same trial twice
// creates two separate items.
func (s *CartService) Add(ctx context.Context, userID string, in AddCartItem) (*model.CartItem, error) {
	in.TrialID = strings.TrimSpace(in.TrialID)
	in.ModelID = strings.TrimSpace(in.ModelID)
	in.FabricID = strings.TrimSpace(in.FabricID)
	switch {
	case in.TrialID == "":
		return nil, apperror.ValidationFailed("trialId", "trial id is required")
	case in.ModelID == "":
		return nil, apperror.ValidationFailed("modelId", "model id is required")
	case in.FabricID == "":
		return nil, apperror.ValidationFailed("fabricId", "fabric id is required")
	case in.Quantity < 0:
		return nil, apperror.ValidationFailed("quantity", "quantity must be positive")
	}

	trial, err := s.store.GetTrial(ctx, in.TrialID)
	if err != nil {
		return nil, err
	}
	if trial.UserID != userID {
		return nil, apperror.NotFound("trial", in.TrialID)
	}
	if trial.ModelID != in.ModelID || trial.FabricID != in.FabricID {
		return nil, apperror.ValidationFailed("trialId", "model and fabric must match the trial")
	}
	if trial.Status != model.TrialCompleted {
		return nil, apperror.ValidationFailed("trialId", "only completed trials can be added to the cart")
	}

	item := &model.CartItem{
		UserID:   userID,
		TrialID:  in.TrialID,
		ModelID:  in.ModelID,
		FabricID: in.FabricID,
		Quantity: in.Quantity,
	}
	if err := s.store.AddCartItem(ctx, item); err != nil {
		return nil, fmt.Errorf("adding cart item: %w", err)
	}

	s.logger.Info("cart item added",
		slog.String("userID", userID),
		slog.String("itemID", item.ID),
		slog.String("trialID", item.TrialID),
	)
	return item, nil
}

func (s *CartService) List(ctx context.Context, userID string) ([]CartLine, error) {
	items, err := s.store.ListCartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart: %w", err)
	}

	lines := make([]CartLine, 0, len(items))
	for _, it := range items {
		line := CartLine{CartItem: it}
		if line.Model, err = s.store.GetModel(ctx, it.ModelID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("loading cart model: %w", err)
		}
		if line.Fabric, err = s.store.GetFabric(ctx, it.FabricID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("loading cart fabric: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Remove deletes one of the user's items. Another user's item is NotFound.
func (s *CartService) Remove(ctx context.Context, userID, itemID string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return apperror.ValidationFailed("id", "cart item id is required")
	}
	if err := s.store.RemoveCartItem(ctx, userID, itemID); err != nil {
		return err
	}
	s.logger.Info("cart item removed", slog.String("userID", userID), slog.String("itemID", itemID))
	return nil
}

// Checkout turns the whole cart into a completed order in one atomic step.
func (s *CartService) Checkout(ctx context.Context, userID string) (*model.Order, error) {
	order, err := s.store.CheckoutCart(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("checkout failed", slog.String("userID", userID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("checking out: %w", err)
	}

	s.logger.Info("order placed",
		slog.String("userID", userID),
		slog.String("orderID", order.ID),
		slog.Int("items", len(order.Items)),
		slog.Int("totalAmount", order.TotalAmount),
	)
	return order, nil
}

// Package repository defines the Entity Store contract.
//
// Two backends implement it: repository/memory (process-local, the default)
// and repository/sqlite (durable). Both follow the same rules:
//   - Create methods assign a fresh xid and CreatedAt on the passed struct.
//   - Reads return copies; mutating a returned value never changes the store.
//   - Missing ids are reported as apperror.ErrNotFound.
package repository

import (
	"context"

	"github.com/sakif/fitting-room/internal/model"
)

// ListOptions narrows a list call. Zero values mean "no filter".
type ListOptions struct {
	UserID string
	Status model.TrialStatus // trials only
}

// UserRepository stores users. Emails are matched case-insensitively.
type UserRepository interface {
	// CreateUser fails with apperror.ErrConflict if ExternalID is taken.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)
}

type ModelRepository interface {
	CreateModel(ctx context.Context, m *model.Model) error
	GetModel(ctx context.Context, id string) (*model.Model, error)
	ListModels(ctx context.Context) ([]model.Model, error)
}

type FabricRepository interface {
	CreateFabric(ctx context.Context, f *model.Fabric) error
	GetFabric(ctx context.Context, id string) (*model.Fabric, error)
	ListFabrics(ctx context.Context) ([]model.Fabric, error)
}

// TrialRepository stores try-on trials and their single terminal
// transition.
type TrialRepository interface {
	// CreateTrial always stores the trial as pending with an empty image.
	CreateTrial(ctx context.Context, t *model.Trial) error
	GetTrial(ctx context.Context, id string) (*model.Trial, error)
	ListTrials(ctx context.Context, opts ListOptions) ([]model.Trial, error)
	// FinishTrial moves a pending trial to a terminal status. It fails with
	// apperror.ErrConflict if the trial already left pending, so each trial
	// transitions at most once.
	FinishTrial(ctx context.Context, id string, status model.TrialStatus, imageURL string) (*model.Trial, error)
}

// CartRepository stores cart items and performs checkout.
type CartRepository interface {
	AddCartItem(ctx context.Context, item *model.CartItem) error
	ListCartItems(ctx context.Context, userID string) ([]model.CartItem, error)
	// RemoveCartItem deletes an item only if userID owns it; otherwise it
	// reports apperror.ErrNotFound.
	RemoveCartItem(ctx context.Context, userID, itemID string) error
	// CheckoutCart atomically snapshots the user's cart, prices it, stores
	// the order and clears the cart. An empty cart is apperror.ErrValidation.
	CheckoutCart(ctx context.Context, userID string) (*model.Order, error)
}

type OrderRepository interface {
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, opts ListOptions) ([]model.Order, error)
}

// StatsRepository counts rows for the admin and user dashboards.
type StatsRepository interface {
	Stats(ctx context.Context) (model.Stats, error)
	UserStats(ctx context.Context, userID string) (model.UserStats, error)
}

// Store is the full Entity Store.
type Store interface {
	UserRepository
	ModelRepository
	FabricRepository
	TrialRepository
	CartRepository
	OrderRepository
	StatsRepository
	Close() error
}

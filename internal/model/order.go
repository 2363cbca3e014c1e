package model

import (
	"slices"
	"time"
)

// CartItem is a kept trial awaiting checkout. The same trial may appear in
// several items; the cart does not deduplicate.
type CartItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TrialID   string    `json:"trialId"`
	ModelID   string    `json:"modelId"`
	FabricID  string    `json:"fabricId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// DefaultQuantity is used when a cart item is added without one.
const DefaultQuantity = 1

// OrderStatus is the state of an order. Orders are written once at checkout
// and never change, so completed is the only state they take.
type OrderStatus string

const OrderCompleted OrderStatus = "completed"

// OrderItem is a cart line frozen into an order.
type OrderItem struct {
	TrialID  string `json:"trialId"`
	ModelID  string `json:"modelId"`
	FabricID string `json:"fabricId"`
	Quantity int    `json:"quantity"`
}

// Order is immutable once created.
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Items       []OrderItem `json:"items"`
	TotalAmount int         `json:"totalAmount"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (o Order) Clone() Order {
	c := o
	c.Items = slices.Clone(o.Items)
	return c
}

// NewOrderFromCart snapshots cart items into an order. prices maps fabric
// id to unit price; a fabric missing from prices contributes 0 to the total.
// The caller assigns ID and CreatedAt.
func NewOrderFromCart(userID string, items []CartItem, prices map[string]int) Order {
	order := Order{
		UserID: userID,
		Items:  make([]OrderItem, 0, len(items)),
		Status: OrderCompleted,
	}
	for _, it := range items {
		order.Items = append(order.Items, OrderItem{
			TrialID:  it.TrialID,
			ModelID:  it.ModelID,
			FabricID: it.FabricID,
			Quantity: it.Quantity,
		})
		order.TotalAmount += prices[it.FabricID] * it.Quantity
	}
	return order
}

// Stats are the catalog-wide counters shown on the admin dashboard.
type Stats struct {
	TotalUsers   int `json:"totalUsers"`
	TotalModels  int `json:"totalModels"`
	TotalFabrics int `json:"totalFabrics"`
	TotalOrders  int `json:"totalOrders"`
	TotalTrials  int `json:"totalTrials"`
}

// UserStats are the per-user counters shown on the dashboard.
type UserStats struct {
	Trials    int `json:"trials"`
	CartItems int `json:"cartItems"`
}

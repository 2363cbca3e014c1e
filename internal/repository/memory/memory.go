// Package memory is the process-local Entity Store.
//
// Every table is a map guarded by one RWMutex. Values go in and come out as
// copies, so callers can never reach the stored structs. Multi-step
// operations (user uniqueness, trial finishing, checkout) run under the
// write lock, which makes them atomic with respect to every other call.
//
// Nothing here is durable: a restart loses all data. Use repository/sqlite
// when that matters.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store keeps every entity in maps guarded by one RWMutex.
type Store struct {
	mu        sync.RWMutex
	users     map[string]model.User
	models    map[string]model.Model
	fabrics   map[string]model.Fabric
	trials    map[string]model.Trial
	cartItems map[string]model.CartItem
	orders    map[string]model.Order

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:     make(map[string]model.User),
		models:    make(map[string]model.Model),
		fabrics:   make(map[string]model.Fabric),
		trials:    make(map[string]model.Trial),
		cartItems: make(map[string]model.CartItem),
		orders:    make(map[string]model.Order),
		now:       time.Now,
	}
}

// Close is a no-op; it exists to satisfy repository.Store.
func (s *Store) Close() error { return nil }

func newID() string { return xid.New().String() }

// sortedValues returns map values ordered by creation, oldest first.
// xids embed a timestamp and a counter, so ID order is creation order.
func sortedValues[V any](m map[string]V, keep func(V) bool) []V {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if keep == nil || keep(v) {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b string) int { return cmp.Compare(a, b) })

	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// =========================================================================
// USERS
// =========================================================================

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ExternalID == user.ExternalID {
			return apperror.Conflict("user", user.ExternalID)
		}
	}

	user.ID = newID()
	user.CreatedAt = s.now()
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	s.users[user.ID] = user.Clone()
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	c := u.Clone()
	return &c, nil
}

func (s *Store) GetUserByExternalID(_ context.Context, externalID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ExternalID == externalID {
			c := u.Clone()
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", externalID)
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range sortedValues(s.users, nil) {
		if strings.EqualFold(u.Email, email) {
			c := u.Clone()
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (s *Store) UpdateUser(_ context.Context, id string, patch model.UserPatch) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	patch.Apply(&u)
	s.users[id] = u.Clone()

	c := u.Clone()
	return &c, nil
}

// =========================================================================
// CATALOG
// =========================================================================

func (s *Store) CreateModel(_ context.Context, m *model.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = newID()
	m.CreatedAt = s.now()
	s.models[m.ID] = m.Clone()
	return nil
}

func (s *Store) GetModel(_ context.Context, id string) (*model.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[id]
	if !ok {
		return nil, apperror.NotFound("model", id)
	}
	c := m.Clone()
	return &c, nil
}

func (s *Store) ListModels(_ context.Context) ([]model.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := sortedValues(s.models, nil)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out, nil
}

func (s *Store) CreateFabric(_ context.Context, f *model.Fabric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.ID = newID()
	f.CreatedAt = s.now()
	s.fabrics[f.ID] = f.Clone()
	return nil
}

func (s *Store) GetFabric(_ context.Context, id string) (*model.Fabric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.fabrics[id]
	if !ok {
		return nil, apperror.NotFound("fabric", id)
	}
	c := f.Clone()
	return &c, nil
}

func (s *Store) ListFabrics(_ context.Context) ([]model.Fabric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := sortedValues(s.fabrics, nil)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out, nil
}

// =========================================================================
// TRIALS
// =========================================================================

func (s *Store) CreateTrial(_ context.Context, t *model.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = newID()
	t.CreatedAt = s.now()
	t.Status = model.TrialPending
	t.ImageURL = ""
	s.trials[t.ID] = *t
	return nil
}

func (s *Store) GetTrial(_ context.Context, id string) (*model.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trials[id]
	if !ok {
		return nil, apperror.NotFound("trial", id)
	}
	return &t, nil
}

func (s *Store) ListTrials(_ context.Context, opts repository.ListOptions) ([]model.Trial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedValues(s.trials, func(t model.Trial) bool {
		return (opts.UserID == "" || t.UserID == opts.UserID) &&
			(opts.Status == "" || t.Status == opts.Status)
	}), nil
}

func (s *Store) FinishTrial(_ context.Context, id string, status model.TrialStatus, imageURL string) (*model.Trial, error) {
	if !status.Terminal() {
		return nil, apperror.ValidationFailed("status", "trial can only finish as completed or failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trials[id]
	if !ok {
		return nil, apperror.NotFound("trial", id)
	}
	if t.Status != model.TrialPending {
		return nil, apperror.Conflict("trial", id)
	}

	t.Status = status
	if status == model.TrialCompleted {
		t.ImageURL = imageURL
	}
	s.trials[id] = t
	return &t, nil
}

// =========================================================================
// CART & ORDERS
// =========================================================================

func (s *Store) AddCartItem(_ context.Context, item *model.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = newID()
	item.CreatedAt = s.now()
	if item.Quantity <= 0 {
		item.Quantity = model.DefaultQuantity
	}
	s.cartItems[item.ID] = *item
	return nil
}

func (s *Store) ListCartItems(_ context.Context, userID string) ([]model.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cartOf(userID), nil
}

// cartOf must be called with s.mu held.
func (s *Store) cartOf(userID string) []model.CartItem {
	return sortedValues(s.cartItems, func(it model.CartItem) bool { return it.UserID == userID })
}

func (s *Store) RemoveCartItem(_ context.Context, userID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.cartItems[itemID]
	if !ok || it.UserID != userID {
		return apperror.NotFound("cart item", itemID)
	}
	delete(s.cartItems, itemID)
	return nil
}

func (s *Store) CheckoutCart(_ context.Context, userID string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.cartOf(userID)
	if len(items) == 0 {
		return nil, apperror.ValidationFailed("cart", "cart is empty")
	}

	prices := make(map[string]int, len(items))
	for _, it := range items {
		if f, ok := s.fabrics[it.FabricID]; ok {
			prices[it.FabricID] = f.Price
		}
	}

	order := model.NewOrderFromCart(userID, items, prices)
	order.ID = newID()
	order.CreatedAt = s.now()
	s.orders[order.ID] = order.Clone()

	for _, it := range items {
		delete(s.cartItems, it.ID)
	}
	return &order, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, apperror.NotFound("order", id)
	}
	c := o.Clone()
	return &c, nil
}

func (s *Store) ListOrders(_ context.Context, opts repository.ListOptions) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := sortedValues(s.orders, func(o model.Order) bool {
		return opts.UserID == "" || o.UserID == opts.UserID
	})
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out, nil
}

// =========================================================================
// STATS
// =========================================================================

func (s *Store) Stats(_ context.Context) (model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.Stats{
		TotalUsers:   len(s.users),
		TotalModels:  len(s.models),
		TotalFabrics: len(s.fabrics),
		TotalOrders:  len(s.orders),
		TotalTrials:  len(s.trials),
	}, nil
}

func (s *Store) UserStats(_ context.Context, userID string) (model.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st model.UserStats
	for _, t := range s.trials {
		if t.UserID == userID {
			st.Trials++
		}
	}
	for _, it := range s.cartItems {
		if it.UserID == userID {
			st.CartItems++
		}
	}
	return st, nil
}

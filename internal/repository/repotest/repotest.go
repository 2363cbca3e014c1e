// Package repotest is a conformance suite for repository.Store
// implementations. Each backend's tests call Run with a constructor that
// returns a fresh, empty store.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
)

// Run executes every contract test against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s repository.Store)
	}{
		{"CreateUserAssignsIDAndDefaults", testCreateUser},
		{"CreateUserRejectsDuplicateSubject", testCreateUserDuplicate},
		{"ConcurrentCreateUserKeepsSubjectUnique", testCreateUserConcurrent},
		{"UserLookups", testUserLookups},
		{"UpdateUserPartial", testUpdateUser},
		{"UpdateUserNotFound", testUpdateUserNotFound},
		{"ReadsReturnCopies", testReadsReturnCopies},
		{"ModelRoundTrip", testModelRoundTrip},
		{"FabricRoundTrip", testFabricRoundTrip},
		{"CatalogNotFound", testCatalogNotFound},
		{"TrialLifecycle", testTrialLifecycle},
		{"FinishTrialOnlyOnce", testFinishTrialOnce},
		{"FinishTrialRejectsPending", testFinishTrialRejectsPending},
		{"ListTrialsFilters", testListTrialsFilters},
		{"CartAllowsDuplicates", testCartDuplicates},
		{"RemoveCartItemScopedToOwner", testRemoveCartItemOwner},
		{"CheckoutTotalsAndClears", testCheckout},
		{"CheckoutEmptyCart", testCheckoutEmpty},
		{"ConcurrentCheckoutBillsOnce", testCheckoutConcurrent},
		{"Stats", testStats},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func createUser(t *testing.T, s repository.Store, subject string) *model.User {
	t.Helper()
	u := &model.User{ExternalID: subject, Email: subject + "@example.test", Name: subject}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func createFabric(t *testing.T, s repository.Store, name string, price int) *model.Fabric {
	t.Helper()
	f := &model.Fabric{
		Name:      name,
		ImageURL:  "https://storage.example.test/" + name + ".jpg",
		Texture:   model.TextureCotton,
		SkinTones: []model.SkinTone{model.SkinToneFair},
		Price:     price,
	}
	require.NoError(t, s.CreateFabric(context.Background(), f))
	return f
}

func createTrial(t *testing.T, s repository.Store, userID string) *model.Trial {
	t.Helper()
	tr := &model.Trial{UserID: userID, ModelID: "m1", FabricID: "f1"}
	require.NoError(t, s.CreateTrial(context.Background(), tr))
	return tr
}

func testCreateUser(t *testing.T, s repository.Store) {
	u := createUser(t, s, "sub-1")

	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, model.RoleUser, u.Role)

	got, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", got.ExternalID)
	assert.Nil(t, got.BodyShape)
	assert.Nil(t, got.PhotoURL)
}

func testCreateUserDuplicate(t *testing.T, s repository.Store) {
	createUser(t, s, "sub-1")

	err := s.CreateUser(context.Background(), &model.User{ExternalID: "sub-1", Email: "x@example.test", Name: "x"})
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalUsers)
}

func testCreateUserConcurrent(t *testing.T, s repository.Store) {
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.CreateUser(context.Background(), &model.User{ExternalID: "race", Email: "r@example.test", Name: "r"})
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)
	}
	assert.Equal(t, 1, created)
}

func testUserLookups(t *testing.T, s repository.Store) {
	u := createUser(t, s, "sub-1")
	ctx := context.Background()

	byExt, err := s.GetUserByExternalID(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byExt.ID)

	byEmail, err := s.GetUserByEmail(ctx, "SUB-1@example.test")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = s.GetUserByExternalID(ctx, "nobody")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = s.GetUserByID(ctx, "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func testUpdateUser(t *testing.T, s repository.Store) {
	u := createUser(t, s, "sub-1")
	ctx := context.Background()

	updated, err := s.UpdateUser(ctx, u.ID, model.UserPatch{
		PhotoURL:     model.Ptr("https://storage.example.test/me.jpg"),
		Height:       model.Ptr(170),
		BodyShape:    model.Ptr(model.BodyShapeHourglass),
		SkinTone:     model.Ptr(model.SkinToneOlive),
		ColorPalette: []string{"emerald", "gold"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", updated.Name, "unset fields stay")
	assert.Equal(t, 170, *updated.Height)

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BodyShapeHourglass, *got.BodyShape)
	assert.Equal(t, model.SkinToneOlive, *got.SkinTone)
	assert.Equal(t, []string{"emerald", "gold"}, got.ColorPalette)
	assert.Equal(t, "https://storage.example.test/me.jpg", *got.PhotoURL)
	assert.Nil(t, got.Age)

	promoted, err := s.UpdateUser(ctx, u.ID, model.UserPatch{Role: model.Ptr(model.RoleAdmin)})
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin())

	_, err = s.UpdateUser(ctx, u.ID, model.UserPatch{PhotoURL: model.Ptr("")})
	require.NoError(t, err)
	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PhotoURL, "empty photo clears it")
	assert.Equal(t, 170, *got.Height)
}

func testUpdateUserNotFound(t *testing.T, s repository.Store) {
	_, err := s.UpdateUser(context.Background(), "missing", model.UserPatch{Name: model.Ptr("x")})
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
}

func testReadsReturnCopies(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := createUser(t, s, "sub-1")
	_, err := s.UpdateUser(ctx, u.ID, model.UserPatch{ColorPalette: []string{"navy"}})
	require.NoError(t, err)

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	got.Name = "mutated"
	got.ColorPalette[0] = "mutated"

	again, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", again.Name)
	assert.Equal(t, []string{"navy"}, again.ColorPalette)

	f := createFabric(t, s, "linen", 10)
	list, err := s.ListFabrics(ctx)
	require.NoError(t, err)
	list[0].SkinTones[0] = model.SkinToneDeep

	fresh, err := s.GetFabric(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.SkinTone{model.SkinToneFair}, fresh.SkinTones)
}

func testModelRoundTrip(t *testing.T, s repository.Store) {
	ctx := context.Background()
	m := &model.Model{
		Name:        "Classic Summer Dress",
		ImageURL:    "https://storage.example.test/dress.jpg",
		Category:    model.CategoryCasual,
		BodyShapes:  []model.BodyShape{model.BodyShapePear, model.BodyShapeRectangle},
		Description: model.Ptr("Light and breezy"),
	}
	require.NoError(t, s.CreateModel(ctx, m))
	require.NotEmpty(t, m.ID)
	require.False(t, m.CreatedAt.IsZero())

	got, err := s.GetModel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Name, got.Name)
	assert.Equal(t, m.ImageURL, got.ImageURL)
	assert.Equal(t, m.Category, got.Category)
	assert.Equal(t, m.BodyShapes, got.BodyShapes)
	assert.Equal(t, *m.Description, *got.Description)
	assert.True(t, m.CreatedAt.Equal(got.CreatedAt))

	all, err := s.ListModels(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testFabricRoundTrip(t *testing.T, s repository.Store) {
	ctx := context.Background()
	f := &model.Fabric{
		Name:       "Luxe Silk Ivory",
		ImageURL:   "https://storage.example.test/silk.jpg",
		Texture:    model.TextureSilk,
		SkinTones:  []model.SkinTone{model.SkinToneFair, model.SkinToneOlive},
		Price:      89,
		RetailerID: model.Ptr("retailer-7"),
	}
	require.NoError(t, s.CreateFabric(ctx, f))

	got, err := s.GetFabric(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Name, got.Name)
	assert.Equal(t, f.Texture, got.Texture)
	assert.Equal(t, f.SkinTones, got.SkinTones)
	assert.Equal(t, 89, got.Price)
	assert.Equal(t, "retailer-7", *got.RetailerID)
	assert.Nil(t, got.Description)
	assert.True(t, f.CreatedAt.Equal(got.CreatedAt))
}

func testCatalogNotFound(t *testing.T, s repository.Store) {
	_, err := s.GetModel(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = s.GetFabric(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = s.GetOrder(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func testTrialLifecycle(t *testing.T, s repository.Store) {
	ctx := context.Background()
	tr := &model.Trial{UserID: "u1", ModelID: "m1", FabricID: "f1", ImageURL: "ignored", Status: model.TrialCompleted}
	require.NoError(t, s.CreateTrial(ctx, tr))

	assert.Equal(t, model.TrialPending, tr.Status, "new trials always start pending")
	assert.Empty(t, tr.ImageURL)

	done, err := s.FinishTrial(ctx, tr.ID, model.TrialCompleted, "https://img.example.test/out.png")
	require.NoError(t, err)
	assert.Equal(t, model.TrialCompleted, done.Status)

	got, err := s.GetTrial(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TrialCompleted, got.Status)
	assert.Equal(t, "https://img.example.test/out.png", got.ImageURL)
}

func testFinishTrialOnce(t *testing.T, s repository.Store) {
	ctx := context.Background()
	tr := createTrial(t, s, "u1")

	_, err := s.FinishTrial(ctx, tr.ID, model.TrialFailed, "")
	require.NoError(t, err)

	_, err = s.FinishTrial(ctx, tr.ID, model.TrialCompleted, "https://img.example.test/late.png")
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	got, err := s.GetTrial(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TrialFailed, got.Status)
	assert.Empty(t, got.ImageURL)

	_, err = s.FinishTrial(ctx, "missing", model.TrialFailed, "")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func testFinishTrialRejectsPending(t *testing.T, s repository.Store) {
	tr := createTrial(t, s, "u1")
	_, err := s.FinishTrial(context.Background(), tr.ID, model.TrialPending, "")
	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
}

func testListTrialsFilters(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a1 := createTrial(t, s, "alice")
	createTrial(t, s, "alice")
	createTrial(t, s, "bob")
	_, err := s.FinishTrial(ctx, a1.ID, model.TrialFailed, "")
	require.NoError(t, err)

	all, err := s.ListTrials(ctx, repository.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	alice, err := s.ListTrials(ctx, repository.ListOptions{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, alice, 2)
	assert.Equal(t, a1.ID, alice[0].ID, "oldest first")

	pending, err := s.ListTrials(ctx, repository.ListOptions{UserID: "alice", Status: model.TrialPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func testCartDuplicates(t *testing.T, s repository.Store) {
	ctx := context.Background()
	first := &model.CartItem{UserID: "u1", TrialID: "t1", ModelID: "m1", FabricID: "f1"}
	second := &model.CartItem{UserID: "u1", TrialID: "t1", ModelID: "m1", FabricID: "f1"}
	require.NoError(t, s.AddCartItem(ctx, first))
	require.NoError(t, s.AddCartItem(ctx, second))

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, model.DefaultQuantity, first.Quantity)

	items, err := s.ListCartItems(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func testRemoveCartItemOwner(t *testing.T, s repository.Store) {
	ctx := context.Background()
	item := &model.CartItem{UserID: "owner", TrialID: "t1", ModelID: "m1", FabricID: "f1"}
	require.NoError(t, s.AddCartItem(ctx, item))

	err := s.RemoveCartItem(ctx, "intruder", item.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)

	items, err := s.ListCartItems(ctx, "owner")
	require.NoError(t, err)
	assert.Len(t, items, 1, "another user's delete must not remove the item")

	require.NoError(t, s.RemoveCartItem(ctx, "owner", item.ID))
	items, err = s.ListCartItems(ctx, "owner")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testCheckout(t *testing.T, s repository.Store) {
	ctx := context.Background()
	f20 := createFabric(t, s, "f20", 20)
	f30 := createFabric(t, s, "f30", 30)
	f50 := createFabric(t, s, "f50", 50)

	for _, it := range []model.CartItem{
		{UserID: "u1", TrialID: "t1", ModelID: "m1", FabricID: f20.ID, Quantity: 1},
		{UserID: "u1", TrialID: "t2", ModelID: "m1", FabricID: f30.ID, Quantity: 2},
		{UserID: "u1", TrialID: "t3", ModelID: "m2", FabricID: f50.ID, Quantity: 1},
		{UserID: "u2", TrialID: "t9", ModelID: "m2", FabricID: f50.ID, Quantity: 1},
	} {
		require.NoError(t, s.AddCartItem(ctx, &it))
	}

	order, err := s.CheckoutCart(ctx, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 150, order.TotalAmount)
	assert.Equal(t, model.OrderCompleted, order.Status)
	assert.Len(t, order.Items, 3)

	items, err := s.ListCartItems(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	others, err := s.ListCartItems(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, others, 1, "checkout must not touch other carts")

	stored, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Items, stored.Items)

	orders, err := s.ListOrders(ctx, repository.ListOptions{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func testCheckoutEmpty(t *testing.T, s repository.Store) {
	_, err := s.CheckoutCart(context.Background(), "u1")
	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)

	orders, err := s.ListOrders(context.Background(), repository.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func testCheckoutConcurrent(t *testing.T, s repository.Store) {
	ctx := context.Background()
	f := createFabric(t, s, "f10", 10)
	for range 3 {
		require.NoError(t, s.AddCartItem(ctx, &model.CartItem{UserID: "u1", TrialID: "t", ModelID: "m", FabricID: f.ID}))
	}

	const n = 4
	var wg sync.WaitGroup
	results := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CheckoutCart(ctx, "u1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one checkout may bill the cart")

	orders, err := s.ListOrders(ctx, repository.ListOptions{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 30, orders[0].TotalAmount)
}

func testStats(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := createUser(t, s, "sub-1")
	createUser(t, s, "sub-2")
	createFabric(t, s, "f", 5)
	createTrial(t, s, u.ID)
	createTrial(t, s, u.ID)
	require.NoError(t, s.AddCartItem(ctx, &model.CartItem{UserID: u.ID, TrialID: "t", ModelID: "m", FabricID: "f"}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{TotalUsers: 2, TotalFabrics: 1, TotalTrials: 2}, st)

	us, err := s.UserStats(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserStats{Trials: 2, CartItems: 1}, us)
}

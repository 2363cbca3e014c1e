package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/model"
)

// trialFor stores a trial for userID and moves it to status.
func (fx *fixture) trialFor(t *testing.T, userID string, m, f int, status model.TrialStatus) *model.Trial {
	t.Helper()
	ctx := context.Background()
	tr := &model.Trial{UserID: userID, ModelID: fx.models[m].ID, FabricID: fx.fabrics[f].ID}
	require.NoError(t, fx.store.CreateTrial(ctx, tr))
	if status == model.TrialPending {
		return tr
	}
	done, err := fx.store.FinishTrial(ctx, tr.ID, status, "https://cdn.example.test/"+tr.ID+".png")
	require.NoError(t, err)
	return done
}

func addFor(tr *model.Trial, qty int) AddCartItem {
	return AddCartItem{TrialID: tr.ID, ModelID: tr.ModelID, FabricID: tr.FabricID, Quantity: qty}
}

func TestCartAdd_Checks(t *testing.T) {
	fx := newFixture(t, nil)
	svc := NewCartService(fx.store, discard)
	ctx := context.Background()

	completed := fx.trialFor(t, fx.user.ID, 0, 0, model.TrialCompleted)
	pending := fx.trialFor(t, fx.user.ID, 0, 1, model.TrialPending)
	failed := fx.trialFor(t, fx.user.ID, 1, 1, model.TrialFailed)
	foreign := fx.trialFor(t, "someone-else", 0, 0, model.TrialCompleted)

	mismatched := addFor(completed, 1)
	mismatched.FabricID = fx.fabrics[2].ID

	tests := []struct {
		name string
		in   AddCartItem
		want error
	}{
		{"missing trial id", AddCartItem{ModelID: "m", FabricID: "f"}, apperror.ErrValidation},
		{"negative quantity", AddCartItem{TrialID: completed.ID, ModelID: completed.ModelID, FabricID: completed.FabricID, Quantity: -1}, apperror.ErrValidation},
		{"unknown trial", AddCartItem{TrialID: "nope", ModelID: "m", FabricID: "f"}, apperror.ErrNotFound},
		{"someone else's trial", addFor(foreign, 1), apperror.ErrNotFound},
		{"ids do not match trial", mismatched, apperror.ErrValidation},
		{"pending trial", addFor(pending, 1), apperror.ErrValidation},
		{"failed trial", addFor(failed, 1), apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(ctx, fx.user.ID, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	lines, err := svc.List(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCart_AddListAndDuplicates(t *testing.T) {
	fx := newFixture(t, nil)
	svc := NewCartService(fx.store, discard)
	ctx := context.Background()

	tr := fx.trialFor(t, fx.user.ID, 1, 2, model.TrialCompleted)

	first, err := svc.Add(ctx, fx.user.ID, addFor(tr, 0))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultQuantity, first.Quantity)

	second, err := svc.Add(ctx, fx.user.ID, addFor(tr, 2))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	lines, err := svc.List(ctx, fx.user.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, l := range lines {
		require.NotNil(t, l.Model)
		require.NotNil(t, l.Fabric)
		assert.Equal(t, "Blazer", l.Model.Name)
		assert.Equal(t, "Fabric C", l.Fabric.Name)
	}

	other, err := svc.List(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCart_Remove(t *testing.T) {
	fx := newFixture(t, nil)
	svc := NewCartService(fx.store, discard)
	ctx := context.Background()

	item, err := svc.Add(ctx, fx.user.ID, addFor(fx.trialFor(t, fx.user.ID, 0, 0, model.TrialCompleted), 1))
	require.NoError(t, err)

	err = svc.Remove(ctx, "someone-else", item.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "only the owner can remove an item")

	require.NoError(t, svc.Remove(ctx, fx.user.ID, item.ID))
	err = svc.Remove(ctx, fx.user.ID, item.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	assert.ErrorIs(t, svc.Remove(ctx, fx.user.ID, " "), apperror.ErrValidation)
}

func TestCheckout(t *testing.T) {
	fx := newFixture(t, nil)
	carts := NewCartService(fx.store, discard)
	orders := NewOrderService(fx.store)
	ctx := context.Background()

	_, err := carts.Checkout(ctx, fx.user.ID)
	assert.ErrorIs(t, err, apperror.ErrValidation, "empty cart")

	// 2×20 + 1×30 + 2×20 + 1×50
	a := fx.trialFor(t, fx.user.ID, 0, 0, model.TrialCompleted)
	b := fx.trialFor(t, fx.user.ID, 1, 1, model.TrialCompleted)
	c := fx.trialFor(t, fx.user.ID, 2, 2, model.TrialCompleted)
	for _, in := range []AddCartItem{addFor(a, 2), addFor(b, 1), addFor(a, 2), addFor(c, 1)} {
		_, err := carts.Add(ctx, fx.user.ID, in)
		require.NoError(t, err)
	}

	order, err := carts.Checkout(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 160, order.TotalAmount)
	assert.Equal(t, model.OrderCompleted, order.Status)
	require.Len(t, order.Items, 4)
	assert.Equal(t, a.ID, order.Items[0].TrialID)

	lines, err := carts.List(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Empty(t, lines, "checkout clears the cart")

	_, err = carts.Checkout(ctx, fx.user.ID)
	assert.ErrorIs(t, err, apperror.ErrValidation, "a second checkout finds an empty cart")

	own, err := orders.ListOwn(ctx, fx.user.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, order.ID, own[0].ID)

	got, err := orders.GetOwn(ctx, fx.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 160, got.TotalAmount)

	_, err = orders.GetOwn(ctx, "someone-else", order.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	all, err := orders.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	st, err := orders.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{TotalUsers: 1, TotalModels: 3, TotalFabrics: 3, TotalOrders: 1, TotalTrials: 3}, st)
}

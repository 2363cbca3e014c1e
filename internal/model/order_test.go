package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderFromCart(t *testing.T) {
	items := []CartItem{
		{TrialID: "t1", ModelID: "m1", FabricID: "cotton", Quantity: 1},
		{TrialID: "t2", ModelID: "m1", FabricID: "silk", Quantity: 2},
		{TrialID: "t3", ModelID: "m2", FabricID: "wool", Quantity: 1},
	}
	prices := map[string]int{"cotton": 20, "silk": 30, "wool": 50}

	order := NewOrderFromCart("u1", items, prices)

	assert.Equal(t, "u1", order.UserID)
	assert.Equal(t, 150, order.TotalAmount)
	assert.Equal(t, OrderCompleted, order.Status)
	assert.Len(t, order.Items, 3)
	assert.Equal(t, OrderItem{TrialID: "t2", ModelID: "m1", FabricID: "silk", Quantity: 2}, order.Items[1])
}

func TestNewOrderFromCart_MissingFabricCountsZero(t *testing.T) {
	items := []CartItem{
		{TrialID: "t1", FabricID: "gone", Quantity: 3},
		{TrialID: "t2", FabricID: "silk", Quantity: 1},
	}

	order := NewOrderFromCart("u1", items, map[string]int{"silk": 30})

	assert.Equal(t, 30, order.TotalAmount)
	assert.Len(t, order.Items, 2)
}

func TestTrialStatusTerminal(t *testing.T) {
	assert.False(t, TrialPending.Terminal())
	assert.True(t, TrialCompleted.Terminal())
	assert.True(t, TrialFailed.Terminal())
}

func TestUserCloneIsDeep(t *testing.T) {
	u := User{
		ID:           "u1",
		PhotoURL:     Ptr("https://example.test/a.jpg"),
		ColorPalette: []string{"navy", "coral"},
	}

	c := u.Clone()
	*c.PhotoURL = "changed"
	c.ColorPalette[0] = "red"

	assert.Equal(t, "https://example.test/a.jpg", *u.PhotoURL)
	assert.Equal(t, "navy", u.ColorPalette[0])
}

func TestUserPatchApply(t *testing.T) {
	u := User{Name: "Ada", Role: RoleUser}

	UserPatch{
		Age:       Ptr(34),
		BodyShape: Ptr(BodyShapePear),
	}.Apply(&u)

	assert.Equal(t, "Ada", u.Name, "nil fields must be left alone")
	assert.Equal(t, 34, *u.Age)
	assert.Equal(t, BodyShapePear, *u.BodyShape)
	assert.Nil(t, u.SkinTone)
}

func TestEnumerationsValid(t *testing.T) {
	assert.True(t, BodyShapeInvertedTriangle.Valid())
	assert.False(t, BodyShape("triangle").Valid())
	assert.True(t, SkinToneDeep.Valid())
	assert.False(t, SkinTone("").Valid())
	assert.True(t, CategorySportswear.Valid())
	assert.False(t, Category("streetwear").Valid())
	assert.True(t, TextureVelvet.Valid())
	assert.False(t, Texture("leather").Valid())
}

func TestFabricPromptDescription(t *testing.T) {
	f := Fabric{Name: "Luxe Silk Ivory", Texture: TextureSilk}
	assert.Equal(t, "silk Luxe Silk Ivory", f.PromptDescription())
}

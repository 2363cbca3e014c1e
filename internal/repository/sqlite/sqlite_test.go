package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
	"github.com/sakif/fitting-room/internal/repository/repotest"
)

// newTestDB opens a fresh in-memory database that is closed when the test
// ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStoreContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Store {
		return newTestDB(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitting-room.db")
	ctx := context.Background()

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	user := &model.User{ExternalID: "sub-1", Email: "a@example.test", Name: "A"}
	if err := db.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	fabric := &model.Fabric{Name: "Denim", ImageURL: "https://x.test/d.jpg", Texture: model.TextureDenim, Price: 55}
	if err := db.CreateFabric(ctx, fabric); err != nil {
		t.Fatalf("CreateFabric() error = %v", err)
	}
	if err := db.AddCartItem(ctx, &model.CartItem{UserID: user.ID, TrialID: "t1", ModelID: "m1", FabricID: fabric.ID, Quantity: 2}); err != nil {
		t.Fatalf("AddCartItem() error = %v", err)
	}
	order, err := db.CheckoutCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("CheckoutCart() error = %v", err)
	}
	db.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetUserByExternalID(ctx, "sub-1")
	if err != nil {
		t.Fatalf("GetUserByExternalID() after reopen error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("user id = %q, want %q", got.ID, user.ID)
	}

	stored, err := reopened.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder() after reopen error = %v", err)
	}
	if stored.TotalAmount != 110 {
		t.Errorf("TotalAmount = %d, want 110", stored.TotalAmount)
	}
	if len(stored.Items) != 1 || stored.Items[0].Quantity != 2 {
		t.Errorf("Items = %+v, want one line with quantity 2", stored.Items)
	}
}

func TestNullableFieldsStayNull(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := &model.User{ExternalID: "sub-1", Email: "a@example.test", Name: "A"}
	if err := db.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	got, err := db.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Age != nil || got.SkinTone != nil || got.ColorPalette != nil {
		t.Errorf("unset profile fields should come back nil, got %+v", got)
	}
}

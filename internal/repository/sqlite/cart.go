package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
)

const (
	cartColumns  = `id, user_id, trial_id, model_id, fabric_id, quantity, created_at`
	orderColumns = `id, user_id, items, total_amount, status, created_at`
)

func (db *DB) AddCartItem(ctx context.Context, item *model.CartItem) error {
	item.ID = xid.New().String()
	item.CreatedAt = time.Now()
	if item.Quantity <= 0 {
		item.Quantity = model.DefaultQuantity
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO cart_items (`+cartColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.TrialID, item.ModelID, item.FabricID, item.Quantity, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding cart item: %w", err)
	}
	return nil
}

func (db *DB) ListCartItems(ctx context.Context, userID string) ([]model.CartItem, error) {
	return listCart(ctx, db.conn, userID)
}

func listCart(ctx context.Context, q querier, userID string) ([]model.CartItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+cartColumns+` FROM cart_items WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cart items: %w", err)
	}
	defer rows.Close()

	items := []model.CartItem{}
	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.TrialID, &it.ModelID, &it.FabricID, &it.Quantity, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning cart item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cart items: %w", err)
	}
	return items, nil
}

func (db *DB) RemoveCartItem(ctx context.Context, userID, itemID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = ? AND user_id = ?`, itemID, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting cart item %s: %w", itemID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("cart item", itemID)
	}
	return nil
}

// CheckoutCart reads the cart, prices it, inserts the order and deletes the
// cart rows in one transaction. The delete only removes the rows that were
// read, so an item added after the snapshot would survive for the next order.
func (db *DB) CheckoutCart(ctx context.Context, userID string) (*model.Order, error) {
	var order model.Order

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		items, err := listCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperror.ValidationFailed("cart", "cart is empty")
		}

		prices := make(map[string]int, len(items))
		for _, it := range items {
			if _, seen := prices[it.FabricID]; seen {
				continue
			}
			var price int
			err := tx.QueryRowContext(ctx, `SELECT price FROM fabrics WHERE id = ?`, it.FabricID).Scan(&price)
			switch {
			case err == sql.ErrNoRows:
				prices[it.FabricID] = 0
			case err != nil:
				return fmt.Errorf("sqlite: pricing fabric %s: %w", it.FabricID, err)
			default:
				prices[it.FabricID] = price
			}
		}

		order = model.NewOrderFromCart(userID, items, prices)
		order.ID = xid.New().String()
		order.CreatedAt = time.Now()

		encoded, err := encodeJSON(order.Items)
		if err != nil {
			return fmt.Errorf("sqlite: encoding order items: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			order.ID, order.UserID, encoded, order.TotalAmount, string(order.Status), order.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting order: %w", err)
		}

		for _, it := range items {
			if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ?`, it.ID); err != nil {
				return fmt.Errorf("sqlite: clearing cart item %s: %w", it.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (db *DB) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("order", id)
		}
		return nil, fmt.Errorf("sqlite: getting order %s: %w", id, err)
	}
	return o, nil
}

func (db *DB) ListOrders(ctx context.Context, opts repository.ListOptions) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if opts.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, opts.UserID)
	}
	query += ` ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row scanner) (*model.Order, error) {
	var o model.Order
	var items sql.NullString
	var status string
	if err := row.Scan(&o.ID, &o.UserID, &items, &o.TotalAmount, &status, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if err := decodeJSON(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decoding order items: %w", err)
	}
	return &o, nil
}

func (db *DB) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM models),
			(SELECT COUNT(*) FROM fabrics),
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM trials)`,
	).Scan(&st.TotalUsers, &st.TotalModels, &st.TotalFabrics, &st.TotalOrders, &st.TotalTrials)
	if err != nil {
		return model.Stats{}, fmt.Errorf("sqlite: counting stats: %w", err)
	}
	return st, nil
}

func (db *DB) UserStats(ctx context.Context, userID string) (model.UserStats, error) {
	var st model.UserStats
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM trials WHERE user_id = ?),
			(SELECT COUNT(*) FROM cart_items WHERE user_id = ?)`,
		userID, userID,
	).Scan(&st.Trials, &st.CartItems)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("sqlite: counting user stats: %w", err)
	}
	return st, nil
}

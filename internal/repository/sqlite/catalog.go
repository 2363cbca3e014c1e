package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/model"
)

const (
	modelColumns  = `id, name, image_url, category, body_shapes, description, created_at`
	fabricColumns = `id, name, image_url, texture, skin_tones, price, retailer_id, description, created_at`
)

func (db *DB) CreateModel(ctx context.Context, m *model.Model) error {
	m.ID = xid.New().String()
	m.CreatedAt = time.Now()

	shapes, err := encodeJSON(nonNil(m.BodyShapes))
	if err != nil {
		return fmt.Errorf("sqlite: encoding body shapes: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO models (`+modelColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.Name,
		m.ImageURL,
		string(m.Category),
		shapes,
		nullString(m.Description),
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating model: %w", err)
	}
	return nil
}

func (db *DB) GetModel(ctx context.Context, id string) (*model.Model, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM models WHERE id = ?`, id)

	m, err := scanModel(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("model", id)
		}
		return nil, fmt.Errorf("sqlite: getting model %s: %w", id, err)
	}
	return m, nil
}

func (db *DB) ListModels(ctx context.Context) ([]model.Model, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+modelColumns+` FROM models ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing models: %w", err)
	}
	defer rows.Close()

	models := []model.Model{}
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning model row: %w", err)
		}
		models = append(models, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating models: %w", err)
	}
	return models, nil
}

func scanModel(row scanner) (*model.Model, error) {
	var m model.Model
	var category string
	var shapes, desc sql.NullString
	if err := row.Scan(&m.ID, &m.Name, &m.ImageURL, &category, &shapes, &desc, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Category = model.Category(category)
	m.Description = stringPtr(desc)
	if err := decodeJSON(shapes, &m.BodyShapes); err != nil {
		return nil, fmt.Errorf("decoding body shapes: %w", err)
	}
	return &m, nil
}

func (db *DB) CreateFabric(ctx context.Context, f *model.Fabric) error {
	f.ID = xid.New().String()
	f.CreatedAt = time.Now()

	tones, err := encodeJSON(nonNil(f.SkinTones))
	if err != nil {
		return fmt.Errorf("sqlite: encoding skin tones: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO fabrics (`+fabricColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID,
		f.Name,
		f.ImageURL,
		string(f.Texture),
		tones,
		f.Price,
		nullString(f.RetailerID),
		nullString(f.Description),
		f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating fabric: %w", err)
	}
	return nil
}

func (db *DB) GetFabric(ctx context.Context, id string) (*model.Fabric, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+fabricColumns+` FROM fabrics WHERE id = ?`, id)

	f, err := scanFabric(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("fabric", id)
		}
		return nil, fmt.Errorf("sqlite: getting fabric %s: %w", id, err)
	}
	return f, nil
}

func (db *DB) ListFabrics(ctx context.Context) ([]model.Fabric, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+fabricColumns+` FROM fabrics ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing fabrics: %w", err)
	}
	defer rows.Close()

	fabrics := []model.Fabric{}
	for rows.Next() {
		f, err := scanFabric(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning fabric row: %w", err)
		}
		fabrics = append(fabrics, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating fabrics: %w", err)
	}
	return fabrics, nil
}

func scanFabric(row scanner) (*model.Fabric, error) {
	var f model.Fabric
	var texture string
	var tones, retailer, desc sql.NullString
	if err := row.Scan(&f.ID, &f.Name, &f.ImageURL, &texture, &tones, &f.Price, &retailer, &desc, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.Texture = model.Texture(texture)
	f.RetailerID = stringPtr(retailer)
	f.Description = stringPtr(desc)
	if err := decodeJSON(tones, &f.SkinTones); err != nil {
		return nil, fmt.Errorf("decoding skin tones: %w", err)
	}
	return &f, nil
}

// nonNil makes an absent list encode as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

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

const userColumns = `id, external_id, email, name, photo_url, age, height, weight,
	body_shape, skin_tone, color_palette, role, created_at`

// CreateUser inserts a new user. The UNIQUE index on external_id turns a
// second insert for the same subject into apperror.ErrConflict, even when
// two syncs race.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now()
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	palette, err := encodePalette(user.ColorPalette)
	if err != nil {
		return fmt.Errorf("sqlite: encoding color palette: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.ExternalID,
		user.Email,
		user.Name,
		nullString(user.PhotoURL),
		nullInt(user.Age),
		nullInt(user.Height),
		nullInt(user.Weight),
		nullString((*string)(user.BodyShape)),
		nullString((*string)(user.SkinTone)),
		palette,
		string(user.Role),
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.ExternalID)
		}
		return fmt.Errorf("sqlite: inserting user (externalID=%s): %w", user.ExternalID, err)
	}

	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUserWhere(ctx, db.conn, "id = ?", id)
}

func (db *DB) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return db.getUserWhere(ctx, db.conn, "external_id = ?", externalID)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUserWhere(ctx, db.conn, "email = ? COLLATE NOCASE ORDER BY created_at LIMIT 1", email)
}

// UpdateUser reads, patches and writes the row in one transaction.
func (db *DB) UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	var updated *model.User

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		u, err := db.getUserWhere(ctx, tx, "id = ?", id)
		if err != nil {
			return err
		}
		patch.Apply(u)

		palette, err := encodePalette(u.ColorPalette)
		if err != nil {
			return fmt.Errorf("sqlite: encoding color palette: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE users
			 SET name = ?, photo_url = ?, age = ?, height = ?, weight = ?,
			     body_shape = ?, skin_tone = ?, color_palette = ?, role = ?
			 WHERE id = ?`,
			u.Name,
			nullString(u.PhotoURL),
			nullInt(u.Age),
			nullInt(u.Height),
			nullInt(u.Weight),
			nullString((*string)(u.BodyShape)),
			nullString((*string)(u.SkinTone)),
			palette,
			string(u.Role),
			id,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", id, err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// querier is the part of *sql.DB and *sql.Tx the readers need.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (db *DB) getUserWhere(ctx context.Context, q querier, where string, arg any) (*model.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user %v: %w", arg, err)
	}
	return u, nil
}

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	var photo, shape, tone, pal sql.NullString
	var age, height, weight sql.NullInt64
	var role string
	if err := row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.Name,
		&photo,
		&age,
		&height,
		&weight,
		&shape,
		&tone,
		&pal,
		&role,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}

	u.PhotoURL = stringPtr(photo)
	u.Age = intPtr(age)
	u.Height = intPtr(height)
	u.Weight = intPtr(weight)
	if shape.Valid {
		u.BodyShape = model.Ptr(model.BodyShape(shape.String))
	}
	if tone.Valid {
		u.SkinTone = model.Ptr(model.SkinTone(tone.String))
	}
	if err := decodeJSON(pal, &u.ColorPalette); err != nil {
		return nil, fmt.Errorf("decoding color palette: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// encodePalette keeps "no palette" as NULL rather than "null".
func encodePalette(p []string) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	s, err := encodeJSON(p)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

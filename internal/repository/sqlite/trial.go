package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/fitting-room/internal/apperror"
	"github.com/sakif/fitting-room/internal/model"
	"github.com/sakif/fitting-room/internal/repository"
)

const trialColumns = `id, user_id, model_id, fabric_id, image_url, status, created_at`

func (db *DB) CreateTrial(ctx context.Context, t *model.Trial) error {
	t.ID = xid.New().String()
	t.CreatedAt = time.Now()
	t.Status = model.TrialPending
	t.ImageURL = ""

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO trials (`+trialColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ModelID, t.FabricID, t.ImageURL, string(t.Status), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating trial: %w", err)
	}
	return nil
}

func (db *DB) GetTrial(ctx context.Context, id string) (*model.Trial, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+trialColumns+` FROM trials WHERE id = ?`, id)

	t, err := scanTrial(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("trial", id)
		}
		return nil, fmt.Errorf("sqlite: getting trial %s: %w", id, err)
	}
	return t, nil
}

func (db *DB) ListTrials(ctx context.Context, opts repository.ListOptions) ([]model.Trial, error) {
	var where []string
	var args []any
	if opts.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}

	query := `SELECT ` + trialColumns + ` FROM trials`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing trials: %w", err)
	}
	defer rows.Close()

	trials := []model.Trial{}
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning trial row: %w", err)
		}
		trials = append(trials, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating trials: %w", err)
	}
	return trials, nil
}

// FinishTrial is a conditional UPDATE: the WHERE clause only matches a
// pending row, so a second finish affects zero rows and reports a conflict.
func (db *DB) FinishTrial(ctx context.Context, id string, status model.TrialStatus, imageURL string) (*model.Trial, error) {
	if !status.Terminal() {
		return nil, apperror.ValidationFailed("status", "trial can only finish as completed or failed")
	}
	if status != model.TrialCompleted {
		imageURL = ""
	}

	var finished *model.Trial
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE trials SET status = ?, image_url = ? WHERE id = ? AND status = ?`,
			string(status), imageURL, id, string(model.TrialPending),
		)
		if err != nil {
			return fmt.Errorf("sqlite: finishing trial %s: %w", id, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}

		row := tx.QueryRowContext(ctx, `SELECT `+trialColumns+` FROM trials WHERE id = ?`, id)
		t, err := scanTrial(row)
		if err == sql.ErrNoRows {
			return apperror.NotFound("trial", id)
		}
		if err != nil {
			return fmt.Errorf("sqlite: reading trial %s: %w", id, err)
		}
		if n == 0 {
			return apperror.Conflict("trial", id)
		}
		finished = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finished, nil
}

func scanTrial(row scanner) (*model.Trial, error) {
	var t model.Trial
	var status string
	if err := row.Scan(&t.ID, &t.UserID, &t.ModelID, &t.FabricID, &t.ImageURL, &status, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = model.TrialStatus(status)
	return &t, nil
}

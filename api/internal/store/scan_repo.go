package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ScanRepo struct{ DB *sql.DB }

func NewScanRepo(db *sql.DB) *ScanRepo { return &ScanRepo{DB: db} }

type ScanRow struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id"`
	ImageHash string    `json:"image_hash,omitempty"`
	Topic     string    `json:"topic"`
	Variables []string  `json:"variables"`
	Source    string    `json:"source"`
}

// Insert stores a classification and returns its generated id.
func (r *ScanRepo) Insert(ctx context.Context, row ScanRow) (string, error) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.Variables == nil {
		row.Variables = []string{}
	}
	vars, _ := json.Marshal(row.Variables)
	const q = `
insert into scans (id, user_id, image_hash, topic, variables, source)
values ($1,$2,$3,$4,$5,$6)`
	_, err := r.DB.ExecContext(ctx, q, row.ID, row.UserID, row.ImageHash, row.Topic, vars, row.Source)
	return row.ID, err
}

// FindByHash returns the newest vision classification of the same image.
// Keyword guesses and text-driven answers never match. With maxAge > 0
// older rows count as missing.
func (r *ScanRepo) FindByHash(ctx context.Context, imageHash string, maxAge time.Duration) (*ScanRow, error) {
	const q = `
select id, created_at, user_id, image_hash, topic, variables, source
from scans
where image_hash = $1 and image_hash <> '' and topic <> 'Unknown' and source = 'vision'
order by created_at desc
limit 1`
	row, err := scanOne(r.DB.QueryRowContext(ctx, q, imageHash))
	if err != nil {
		return nil, err
	}
	if maxAge > 0 && time.Since(row.CreatedAt) > maxAge {
		return nil, ErrNotFound
	}
	return row, nil
}

// ListByUser returns the newest scans of a user.
func (r *ScanRepo) ListByUser(ctx context.Context, userID string, limit int) ([]ScanRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const q = `
select id, created_at, user_id, image_hash, topic, variables, source
from scans
where user_id = $1
order by created_at desc
limit $2`
	rows, err := r.DB.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ScanRow{}
	for rows.Next() {
		row, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(s rowScanner) (*ScanRow, error) {
	var (
		row  ScanRow
		vars []byte
	)
	if err := s.Scan(&row.ID, &row.CreatedAt, &row.UserID, &row.ImageHash, &row.Topic, &vars, &row.Source); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(vars, &row.Variables); err != nil || row.Variables == nil {
		row.Variables = []string{}
	}
	return &row, nil
}

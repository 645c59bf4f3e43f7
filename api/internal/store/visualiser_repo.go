package store

import (
	"context"
	"database/sql"
	"encoding/json"
)

// VisualiserRepo keeps the last parameters a user set per template.
type VisualiserRepo struct{ DB *sql.DB }

func NewVisualiserRepo(db *sql.DB) *VisualiserRepo { return &VisualiserRepo{DB: db} }

func (r *VisualiserRepo) Get(ctx context.Context, userID, templateID string) (map[string]float64, error) {
	const q = `select parameters from visualiser_states where user_id=$1 and template_id=$2`
	var js []byte
	if err := r.DB.QueryRowContext(ctx, q, userID, templateID).Scan(&js); err != nil {
		return nil, err
	}
	out := map[string]float64{}
	if err := json.Unmarshal(js, &out); err != nil {
		return nil, sql.ErrNoRows
	}
	return out, nil
}

func (r *VisualiserRepo) Save(ctx context.Context, userID, templateID string, params map[string]float64) error {
	js, err := json.Marshal(params)
	if err != nil {
		return err
	}
	const q = `
insert into visualiser_states(user_id, template_id, parameters)
values ($1,$2,$3)
on conflict (user_id, template_id)
do update set parameters=excluded.parameters, updated_at=now()`
	_, err = r.DB.ExecContext(ctx, q, userID, templateID, js)
	return err
}

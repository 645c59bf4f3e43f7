package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// NotesRepo caches generated notes per (topic, variables, engine).
type NotesRepo struct{ DB *sql.DB }

func NewNotesRepo(db *sql.DB) *NotesRepo { return &NotesRepo{DB: db} }

// Find decodes a cached notes payload into out. Rows older than maxAge and
// broken JSON both count as missing.
func (r *NotesRepo) Find(ctx context.Context, topic string, vars []string, engine string, maxAge time.Duration, out any) error {
	const q = `select notes_json, created_at
	           from notes_cache
	           where topic=$1 and vars_key=$2 and engine=$3`
	var (
		js []byte
		ts time.Time
	)
	if err := r.DB.QueryRowContext(ctx, q, topic, VarsKey(vars), engine).Scan(&js, &ts); err != nil {
		return err
	}
	if maxAge > 0 && time.Since(ts) > maxAge {
		return sql.ErrNoRows
	}
	if err := json.Unmarshal(js, out); err != nil {
		return sql.ErrNoRows
	}
	return nil
}

// Upsert stores or refreshes a notes payload.
func (r *NotesRepo) Upsert(ctx context.Context, topic string, vars []string, engine string, notes any) error {
	js, err := json.Marshal(notes)
	if err != nil {
		return err
	}
	const q = `
insert into notes_cache(topic, vars_key, engine, notes_json)
values ($1,$2,$3,$4)
on conflict (topic, vars_key, engine)
do update set notes_json=excluded.notes_json, created_at=now()`
	_, err = r.DB.ExecContext(ctx, q, topic, VarsKey(vars), engine, js)
	return err
}

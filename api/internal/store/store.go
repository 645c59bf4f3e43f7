// Package store persists study history in Postgres through database/sql
// and the pgx stdlib driver.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"sort"
	"strings"
)

var ErrNotFound = sql.ErrNoRows

const schemaDDL = `
create table if not exists scans (
  id          uuid primary key,
  created_at  timestamptz not null default now(),
  user_id     text not null default '',
  image_hash  text not null default '',
  topic       text not null,
  variables   jsonb not null default '[]',
  source      text not null default ''
);
create index if not exists scans_user_created_idx on scans (user_id, created_at desc);
create index if not exists scans_image_hash_idx on scans (image_hash);

create table if not exists notes_cache (
  topic       text not null,
  vars_key    text not null,
  engine      text not null,
  notes_json  jsonb not null,
  created_at  timestamptz not null default now(),
  primary key (topic, vars_key, engine)
);

create table if not exists visualiser_states (
  user_id      text not null,
  template_id  text not null,
  parameters   jsonb not null,
  updated_at   timestamptz not null default now(),
  primary key (user_id, template_id)
);`

// EnsureSchema creates the tables on first start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaDDL)
	return err
}

// HashBytes is the cache key for uploaded images.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// VarsKey is an order-insensitive key for a variable list.
func VarsKey(vars []string) string {
	norm := make([]string, 0, len(vars))
	for _, v := range vars {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			norm = append(norm, v)
		}
	}
	sort.Strings(norm)
	return strings.Join(norm, ",")
}

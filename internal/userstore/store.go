// Package userstore is the Postgres-backed credentials store for multi-user
// deployments. Gym login passwords are encrypted at rest; a row is resolved
// per user alias at the start of each invocation.
package userstore

import (
	"context"
	"fmt"
	"time"

	"github.com/example/gym-booking-assistant/internal/creds"
	"github.com/example/gym-booking-assistant/internal/crypto"
	"github.com/example/gym-booking-assistant/internal/db"
)

type Store struct {
	db   *db.DB
	aead *crypto.AEAD
}

func New(d *db.DB, aead *crypto.AEAD) *Store {
	return &Store{db: d, aead: aead}
}

// Upsert stores or replaces the credentials for an alias.
func (s *Store) Upsert(ctx context.Context, c creds.Credentials) error {
	if c.Alias == "" {
		return creds.ErrAliasRequired
	}
	enc, err := s.aead.EncryptToString(c.Password)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}
	return s.db.Exec(ctx, `
		INSERT INTO gym_users (alias, gym_user_id, login_username, login_password_enc)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (alias) DO UPDATE
		SET gym_user_id=$2, login_username=$3, login_password_enc=$4, updated_at=now()
	`, c.Alias, c.GymUserID, c.Username, enc)
}

// Resolve implements creds.Source.
func (s *Store) Resolve(ctx context.Context, alias string) (creds.Credentials, error) {
	if alias == "" {
		return creds.Credentials{}, creds.ErrAliasRequired
	}
	var c creds.Credentials
	var enc string
	err := s.db.QueryRow(ctx, `
		SELECT alias, gym_user_id, login_username, login_password_enc
		FROM gym_users WHERE alias=$1
	`, alias).Scan(&c.Alias, &c.GymUserID, &c.Username, &enc)
	if err != nil {
		return creds.Credentials{}, db.WrapNotFound(err)
	}
	c.Password, err = s.aead.DecryptString(enc)
	if err != nil {
		return creds.Credentials{}, fmt.Errorf("decrypt password for %s: %w", alias, err)
	}
	return c, nil
}

// User is a listing row; passwords never leave the store in clear text.
type User struct {
	Alias     string
	GymUserID string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT alias, gym_user_id, login_username, created_at, updated_at
		FROM gym_users ORDER BY alias
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Alias, &u.GymUserID, &u.Username, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/gym-booking-assistant/internal/config"
	"github.com/example/gym-booking-assistant/internal/creds"
	"github.com/example/gym-booking-assistant/internal/crypto"
	"github.com/example/gym-booking-assistant/internal/db"
	"github.com/example/gym-booking-assistant/internal/logging"
	"github.com/example/gym-booking-assistant/internal/migrate"
	"github.com/example/gym-booking-assistant/internal/userstore"
)

func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, log, nil
}

// openStore connects to the credentials database, applies migrations and
// returns the store plus its cleanup.
func openStore(ctx context.Context, cfg config.Config) (*userstore.Store, func(), error) {
	if cfg.CredentialsKey == "" {
		return nil, nil, fmt.Errorf("CREDENTIALS_KEY is required with DATABASE_URL")
	}
	key, err := crypto.KeyFromBase64(cfg.CredentialsKey)
	if err != nil {
		return nil, nil, fmt.Errorf("CREDENTIALS_KEY: %w", err)
	}
	aead, err := crypto.New(key)
	if err != nil {
		return nil, nil, err
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, nil, err
	}
	return userstore.New(d, aead), d.Close, nil
}

// credsSource picks the credentials source: the per-alias store when a
// database is configured, otherwise the shared single-user credentials from
// the environment. The store is nil in single-user mode.
func credsSource(ctx context.Context, cfg config.Config) (creds.Source, *userstore.Store, func(), error) {
	if !cfg.MultiUser() {
		if cfg.LoginUsername == "" || cfg.LoginPassword == "" {
			return nil, nil, nil, fmt.Errorf("LOGIN_USERNAME and LOGIN_PASSWORD are required without DATABASE_URL")
		}
		static := creds.Static{
			Username:  cfg.LoginUsername,
			Password:  cfg.LoginPassword,
			GymUserID: cfg.GymUserID,
		}
		return static, nil, func() {}, nil
	}
	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, store, cleanup, nil
}

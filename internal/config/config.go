// Package config loads service configuration from the environment. A local
// .env file is honoured when present so demo setups need no shell exports.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the service reads at startup.
type Config struct {
	Addr string

	// PGDSN selects the Postgres backend. Empty means the in-memory stores,
	// which is the demo default.
	PGDSN string

	AuthSecret   string
	PHIMasterKey string

	TokenTTL         time.Duration
	LoginMaxAttempts int
	LockWindow       time.Duration
	BcryptCost       int

	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64

	// AdminEmail and AdminPassword bootstrap the first admin account at
	// startup when both are set. Optional; useful for demo deployments.
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from the environment, merging in a .env file if
// one exists next to the binary.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:             getenv("CARDIOAI_ADDR", ":8080"),
		PGDSN:            os.Getenv("CARDIOAI_PG_DSN"),
		AuthSecret:       os.Getenv("CARDIOAI_AUTH_SECRET"),
		PHIMasterKey:     os.Getenv("CARDIOAI_PHI_MASTER_KEY"),
		TokenTTL:         15 * time.Minute,
		LoginMaxAttempts: 5,
		LockWindow:       30 * time.Minute,
		BcryptCost:       10,
		RateBurst:        20,
		RatePerSecond:    10,
		MaxBodyBytes:     1 << 20,
		AdminEmail:       os.Getenv("CARDIOAI_ADMIN_EMAIL"),
		AdminPassword:    os.Getenv("CARDIOAI_ADMIN_PASSWORD"),
	}

	var err error
	if cfg.TokenTTL, err = getduration("CARDIOAI_TOKEN_TTL", cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockWindow, err = getduration("CARDIOAI_LOCK_WINDOW", cfg.LockWindow); err != nil {
		return Config{}, err
	}
	if cfg.LoginMaxAttempts, err = getint("CARDIOAI_LOGIN_MAX_ATTEMPTS", cfg.LoginMaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = getint("CARDIOAI_BCRYPT_COST", cfg.BcryptCost); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = getint("CARDIOAI_RATE_BURST", cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSecond, err = getint("CARDIOAI_RATE_PER_SECOND", cfg.RatePerSecond); err != nil {
		return Config{}, err
	}
	maxBody, err := getint("CARDIOAI_MAX_BODY_BYTES", int(cfg.MaxBodyBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBodyBytes = int64(maxBody)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the service assumes. Missing
// key material is fatal: the service must never fall back to a built-in
// secret or store PHI unencrypted.
func (c Config) Validate() error {
	if c.AuthSecret == "" {
		return fmt.Errorf("config: CARDIOAI_AUTH_SECRET is required")
	}
	if c.PHIMasterKey == "" {
		return fmt.Errorf("config: CARDIOAI_PHI_MASTER_KEY is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: CARDIOAI_TOKEN_TTL must be positive")
	}
	if c.LoginMaxAttempts <= 0 {
		return fmt.Errorf("config: CARDIOAI_LOGIN_MAX_ATTEMPTS must be positive")
	}
	if c.LockWindow <= 0 {
		return fmt.Errorf("config: CARDIOAI_LOCK_WINDOW must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: CARDIOAI_MAX_BODY_BYTES must be positive")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getduration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// Package config loads service configuration from MINTGATE_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/holiman/uint256"

	"mintgate.org/internal/sale"
)

// Config holds everything cmd/api needs to assemble the service.
type Config struct {
	Addr         string // listen address
	PGDSN        string // optional; empty disables the journal
	Owner        string
	AuthorityKey string // hex ed25519 public key
	BaseURI      string
	MaxTotal     uint64
	Whitelist    sale.Params
	Public       sale.Params
}

// Load reads and validates the full configuration.
func Load() (Config, error) {
	cfg := Config{
		Addr:         envDefault("MINTGATE_ADDR", ":8080"),
		PGDSN:        os.Getenv("MINTGATE_PG_DSN"),
		Owner:        os.Getenv("MINTGATE_OWNER"),
		AuthorityKey: os.Getenv("MINTGATE_AUTHORITY_KEY"),
		BaseURI:      os.Getenv("MINTGATE_BASE_URI"),
	}
	if cfg.Owner == "" {
		return Config{}, fmt.Errorf("MINTGATE_OWNER is required")
	}
	if cfg.AuthorityKey == "" {
		return Config{}, fmt.Errorf("MINTGATE_AUTHORITY_KEY is required")
	}

	maxTotal, err := envUint("MINTGATE_MAX_TOTAL")
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTotal = maxTotal

	cfg.Whitelist, err = phaseParams("MINTGATE_WHITELIST")
	if err != nil {
		return Config{}, err
	}
	cfg.Public, err = phaseParams("MINTGATE_PUBLIC")
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func phaseParams(prefix string) (sale.Params, error) {
	start, err := envTime(prefix + "_START")
	if err != nil {
		return sale.Params{}, err
	}
	end, err := envTime(prefix + "_END")
	if err != nil {
		return sale.Params{}, err
	}
	price, err := envAmount(prefix + "_PRICE")
	if err != nil {
		return sale.Params{}, err
	}
	userMax, err := envUint(prefix + "_USER_MAX")
	if err != nil {
		return sale.Params{}, err
	}
	totalMax, err := envUint(prefix + "_TOTAL_MAX")
	if err != nil {
		return sale.Params{}, err
	}
	p := sale.Params{
		Start:        start,
		End:          end,
		Price:        price,
		UserMaxBuys:  userMax,
		TotalMaxBuys: totalMax,
	}
	if err := p.Validate(); err != nil {
		return sale.Params{}, fmt.Errorf("%s: %w", prefix, err)
	}
	return p, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envUint(key string) (uint64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a non-negative integer: %w", key, err)
	}
	return v, nil
}

func envTime(key string) (time.Time, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339: %w", key, err)
	}
	return t, nil
}

func envAmount(key string) (*uint256.Int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, fmt.Errorf("%s is required", key)
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a decimal integer: %w", key, err)
	}
	return v, nil
}

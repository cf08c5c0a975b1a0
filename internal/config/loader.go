package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if GATEWATCH_CONFIG is set
//  3. env (prefix GATEWATCH_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("GATEWATCH_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: GATEWATCH_ADDR, GATEWATCH_QUEUE_SIZE, ...
	// Map env keys like GATEWATCH_QUEUE_SIZE -> queue_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("GATEWATCH_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "gatewatch_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ReviewThreshold <= 0 || c.ReviewThreshold > 1:
		return fmt.Errorf("%w: review_threshold must be in (0, 1]", ErrInvalidConfig)
	case c.AutoThreshold < c.ReviewThreshold || c.AutoThreshold > 1:
		return fmt.Errorf("%w: auto_threshold must be in [review_threshold, 1]", ErrInvalidConfig)
	case c.MorningEnd >= c.EveningStart:
		return fmt.Errorf("%w: morning_end must precede evening_start", ErrInvalidConfig)
	case c.SignatureDimension <= 0:
		return fmt.Errorf("%w: signature_dimension must be positive", ErrInvalidConfig)
	case len(c.CameraIDs) == 0:
		return fmt.Errorf("%w: at least one camera id is required", ErrInvalidConfig)
	}
	return nil
}

package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/costlink/costlink/internal/common"
)

// Load builds the configuration from a viper instance, layering file values
// over the defaults, and validates the result. A nil error guarantees the
// returned config is usable for the life of the process.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()

	if v != nil {
		if err := v.UnmarshalKey("matching", cfg); err != nil {
			return nil, common.NewConfigError("matching",
				fmt.Errorf("%w: %v", common.ErrInvalidConfig, err))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// EnvPrefix prefixes every environment override; "__" separates levels,
	// e.g. WAREHOUSE_WAREHOUSE__POSTGRES__HOST
	EnvPrefix = "WAREHOUSE_"

	// DefaultConfigFile is read when no explicit file is given and it exists
	DefaultConfigFile = "warehouse.yaml"

	// DefaultEnvFile is loaded into the environment before overrides are read
	DefaultEnvFile = ".env"
)

// flagKeys maps CLI flag names to configuration keys
var flagKeys = map[string]string{
	"format":            "format",
	"log-level":         "logging.level",
	"log-format":        "logging.format",
	"driver":            "warehouse.driver",
	"sqlite-path":       "warehouse.sqlite.path",
	"source":            "source.kind",
	"source-dir":        "source.dir",
	"require-resolvers": "cleansing.require_resolvers",
	"cron":              "schedule.cron",
	"push-gateway":      "metrics.push_gateway",
}

// Options controls where configuration is read from
type Options struct {
	File    string         // explicit YAML file; DefaultConfigFile is used when empty and present
	EnvFile string         // dotenv file; DefaultEnvFile is used when empty and present
	Flags   *pflag.FlagSet // explicitly set flags override everything else
}

// Load builds the configuration. Precedence (highest to lowest):
// flags > environment > YAML file > defaults
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	cfgFile, err := resolveFile(opts.File, DefaultConfigFile)
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	envFile, err := resolveFile(opts.EnvFile, DefaultEnvFile)
	if err != nil {
		return nil, err
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey transforms WAREHOUSE_SOURCE__S3__BUCKET into source.s3.bucket
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// resolveFile returns the explicit path, which must exist, or the fallback if it exists
func resolveFile(explicit, fallback string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	if _, err := os.Stat(fallback); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config file %s: %w", fallback, err)
	}
	return fallback, nil
}

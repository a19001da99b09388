// Package config loads pybundle settings from an optional YAML file, a .env
// file and PYBUNDLE_* environment variables, and validates them against an
// embedded JSON schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidConfig indicates the merged settings violate the schema.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "PYBUNDLE"

//go:embed schema.json
var schema []byte

// Config holds all pybundle settings.
type Config struct {
	Resolver ResolverConfig `json:"resolver" mapstructure:"resolver"`
	Bundle   BundleConfig   `json:"bundle"   mapstructure:"bundle"`
	Strip    StripConfig    `json:"strip"    mapstructure:"strip"`
	Logging  LoggingConfig  `json:"logging"  mapstructure:"logging"`
	Watch    WatchConfig    `json:"watch"    mapstructure:"watch"`
}

// ResolverConfig configures static module resolution.
type ResolverConfig struct {
	Paths         []string `json:"paths"          mapstructure:"paths"`
	External      []string `json:"external"       mapstructure:"external"`
	CacheSize     int      `json:"cache_size"     mapstructure:"cache_size"`
	Strict        bool     `json:"strict"         mapstructure:"strict"`
	UsePythonPath bool     `json:"use_pythonpath" mapstructure:"use_pythonpath"`
}

// BundleConfig configures bundling.
type BundleConfig struct {
	DropMainGuards bool `json:"drop_main_guards" mapstructure:"drop_main_guards"`
	AllowCycles    bool `json:"allow_cycles"     mapstructure:"allow_cycles"`
}

// StripConfig configures annotation stripping.
type StripConfig struct {
	Modules       []string `json:"modules"        mapstructure:"modules"`
	Jobs          int      `json:"jobs"           mapstructure:"jobs"`
	AllParameters bool     `json:"all_parameters" mapstructure:"all_parameters"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `json:"level"  mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// WatchConfig configures `bundle --watch`.
type WatchConfig struct {
	Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
}

// LoadConfig loads configuration. An explicit configPath must exist;
// otherwise pybundle.yaml is looked up in ., ./config and
// $HOME/.config/pybundle, and its absence is not an error. A .env file in the
// working directory is loaded into the environment first, without
// overriding variables that are already set.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env file is the common case.
	_ = godotenv.Load()

	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("pybundle")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("$HOME/.config/pybundle")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, validateErr
	}

	return &config, nil
}

// Default returns the built-in configuration, ignoring files and environment.
func Default() *Config {
	return &Config{
		Resolver: ResolverConfig{
			CacheSize:     DefaultResolverCacheSize,
			Strict:        DefaultResolverStrict,
			UsePythonPath: DefaultResolverUsePythonPath,
		},
		Bundle: BundleConfig{
			DropMainGuards: DefaultBundleDropMainGuards,
			AllowCycles:    DefaultBundleAllowCycles,
		},
		Strip: StripConfig{
			Modules:       append([]string(nil), DefaultStripModules...),
			Jobs:          DefaultStripJobs,
			AllParameters: DefaultStripAllParameters,
		},
		Logging: LoggingConfig{
			Level:  DefaultLoggingLevel,
			Format: DefaultLoggingFormat,
		},
		Watch: WatchConfig{Debounce: DefaultWatchDebounce},
	}
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("resolver.paths", []string{})
	viperCfg.SetDefault("resolver.external", []string{})
	viperCfg.SetDefault("resolver.cache_size", DefaultResolverCacheSize)
	viperCfg.SetDefault("resolver.strict", DefaultResolverStrict)
	viperCfg.SetDefault("resolver.use_pythonpath", DefaultResolverUsePythonPath)

	viperCfg.SetDefault("bundle.drop_main_guards", DefaultBundleDropMainGuards)
	viperCfg.SetDefault("bundle.allow_cycles", DefaultBundleAllowCycles)

	viperCfg.SetDefault("strip.modules", DefaultStripModules)
	viperCfg.SetDefault("strip.jobs", DefaultStripJobs)
	viperCfg.SetDefault("strip.all_parameters", DefaultStripAllParameters)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	viperCfg.SetDefault("watch.debounce", DefaultWatchDebounce.String())
}

// validateConfig checks the decoded settings against the embedded schema.
func validateConfig(config *Config) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.Field()+": "+verr.Description())
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

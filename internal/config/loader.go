// Package config loads the ambient configuration for cmd/wgtopo: where
// the Key Store file lives, how it's encrypted, what interface name
// Emission should assume, and how the process logs. It never configures
// the Engine itself, which takes no configuration beyond its function
// arguments (spec.md §5).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the CLI process's full configuration, loaded from a file
// (YAML, TOML, or JSON — whatever viper's format detection picks) with
// WGTOPO_-prefixed environment variable overrides.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	KeyStore KeyStoreConfig `mapstructure:"keystore"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	CLI      CLIConfig      `mapstructure:"cli"`
}

// EngineConfig configures the one knob Build takes outside the document
// and Key Store: the interface name used in generated relay post_up/
// post_down commands (spec.md §4.7).
type EngineConfig struct {
	InterfaceName string `mapstructure:"interface_name"`
}

// KeyStoreConfig locates and optionally encrypts the persisted key
// material (spec.md §6).
type KeyStoreConfig struct {
	Path              string `mapstructure:"path"`
	EncryptionKey     string `mapstructure:"encryption_key"`
	EncryptionKeyFile string `mapstructure:"encryption_key_file"`
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// CLIConfig holds defaults for cmd/wgtopo's flags so a config file can set
// them once instead of repeating them on every invocation.
type CLIConfig struct {
	DefaultDocument string `mapstructure:"default_document"`
	OutputDir       string `mapstructure:"output_dir"`
}

func defaults() Config {
	return Config{
		Engine:   EngineConfig{InterfaceName: "wg0"},
		KeyStore: KeyStoreConfig{Path: "wgtopo-keystore.json"},
		Logger: LoggerConfig{
			Level:            "info",
			Encoding:         "console",
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		},
		CLI: CLIConfig{OutputDir: "."},
	}
}

// Load reads path (if non-empty) and overlays WGTOPO_-prefixed
// environment variables on top of the built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WGTOPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about, so each key is bound to
	// its environment variable explicitly (e.g. WGTOPO_KEYSTORE_PATH).
	for _, key := range []string{
		"engine.interface_name",
		"keystore.path", "keystore.encryption_key", "keystore.encryption_key_file",
		"logger.level", "logger.encoding", "logger.output_paths", "logger.error_output_paths",
		"cli.default_document", "cli.output_dir",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: binding %q: %w", key, err)
		}
	}

	cfg := defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: applying environment defaults: %w", err)
	}

	if path == "" {
		return &cfg, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling %q: %w", path, err)
	}

	return &cfg, nil
}

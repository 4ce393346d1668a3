// Package config loads gateway configuration from flags, environment and
// an optional config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// NetworkConfig describes one configured network.
type NetworkConfig struct {
	// Kind selects the chain adapter: "evm" or "solana".
	Kind   string `mapstructure:"kind"`
	RPCURL string `mapstructure:"rpc"`
	// WrappedNativeSymbol picks the base token when one side of a pair is
	// the wrapped native asset (WBNB, WETH, WSOL, ...).
	WrappedNativeSymbol string `mapstructure:"wrapped-native-symbol"`
	// DefaultWallet is used by listing when no owner is given.
	DefaultWallet string `mapstructure:"default-wallet"`

	// EVM deployment addresses.
	PositionManager string `mapstructure:"position-manager"`
	Factory         string `mapstructure:"factory"`
	// PrivateKey signs close transactions on EVM networks.
	PrivateKey string `mapstructure:"private-key"`

	// Solana program id and known mint symbols.
	ProgramID    string            `mapstructure:"program-id"`
	TokenSymbols map[string]string `mapstructure:"token-symbols"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Networks       map[string]NetworkConfig
	PGDSN          string
	EnumerateLimit int
	LogLevel       string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLMMGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("enumerate-limit", 200)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	networks := map[string]NetworkConfig{}
	if v.IsSet("networks") {
		if err := v.UnmarshalKey("networks", &networks); err != nil {
			return Config{}, fmt.Errorf("parse networks: %w", err)
		}
	}

	cfg := Config{
		Networks:       networks,
		PGDSN:          v.GetString("pg-dsn"),
		EnumerateLimit: v.GetInt("enumerate-limit"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	for name, net := range c.Networks {
		switch net.Kind {
		case "evm":
			if net.PositionManager == "" || net.Factory == "" {
				return fmt.Errorf("network %s: position-manager and factory are required", name)
			}
		case "solana":
			if net.ProgramID == "" {
				return fmt.Errorf("network %s: program-id is required", name)
			}
		default:
			return fmt.Errorf("network %s: unknown kind %q", name, net.Kind)
		}
		if net.RPCURL == "" {
			return fmt.Errorf("network %s: rpc is required", name)
		}
	}
	return nil
}

// Network returns the named network config.
func (c Config) Network(name string) (NetworkConfig, error) {
	net, ok := c.Networks[name]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("network %q is not configured", name)
	}
	return net, nil
}

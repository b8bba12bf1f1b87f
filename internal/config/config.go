package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Trading  TradingConfig
	UI       UIConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// TradingConfig holds simulation and risk settings.
type TradingConfig struct {
	SlippageBps int `mapstructure:"slippage_bps"`
	FeeBps      int `mapstructure:"fee_bps"`
	Operator    string // user name assumed at startup
}

// UIConfig holds presentation settings.
type UIConfig struct {
	PageSize       int    `mapstructure:"page_size"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
	Timezone       string
}

// Load reads configuration from file and env. Env var overrides use prefix TRADEFARM_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "tradefarm", "tradefarm.db"))
	v.SetDefault("trading.slippage_bps", 5)
	v.SetDefault("trading.fee_bps", 10)
	v.SetDefault("trading.operator", "admin")
	v.SetDefault("ui.page_size", 10)
	v.SetDefault("ui.currency_symbol", "$")
	v.SetDefault("ui.timezone", "UTC")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("TRADEFARM_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "tradefarm"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("TRADEFARM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.UI.PageSize < 1 {
		c.UI.PageSize = 10
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if
// needed. Used by the TUI settings view for non-sensitive preferences;
// exchange secrets belong in the secrets store, never here.
func Save(cfg Config) error {
	path := os.Getenv("TRADEFARM_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "tradefarm", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("trading.slippage_bps", cfg.Trading.SlippageBps)
	v.Set("trading.fee_bps", cfg.Trading.FeeBps)
	v.Set("trading.operator", cfg.Trading.Operator)
	v.Set("ui.page_size", cfg.UI.PageSize)
	v.Set("ui.currency_symbol", cfg.UI.CurrencySymbol)
	v.Set("ui.timezone", cfg.UI.Timezone)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

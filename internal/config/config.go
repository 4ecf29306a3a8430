// Package config provides Viper-based configuration loading for the battle server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// BattleServerConfig holds the gRPC listener settings of the battle service.
type BattleServerConfig struct {
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (b BattleServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.GRPCHost, b.GRPCPort)
}

// BattleConfig holds engine tuning knobs that are deployment concerns rather than formula constants.
type BattleConfig struct {
	// SessionIdleTimeout is how long an untouched raid session stays cached.
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	// SweepInterval is how often idle sessions are evicted.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// DuelMaxTurns is the turn cap of the stateless duel variant.
	DuelMaxTurns int `mapstructure:"duel_max_turns"`
	// SetupTimeout is the window a raid may wait for precomputed tables.
	SetupTimeout time.Duration `mapstructure:"setup_timeout"`
	// SetupPollInterval is the polling cadence of AwaitSetup.
	SetupPollInterval time.Duration `mapstructure:"setup_poll_interval"`
	// TerminalWriteAttempts bounds the retries of the final persisted write.
	TerminalWriteAttempts uint `mapstructure:"terminal_write_attempts"`
	// TerminalWriteBackoff is the initial retry interval of the final write.
	TerminalWriteBackoff time.Duration `mapstructure:"terminal_write_backoff"`
	// MaxPartySize is used when a boss does not declare its own party limit.
	MaxPartySize int `mapstructure:"max_party_size"`
}

// PrecomputeConfig holds settings of the generative setup step.
type PrecomputeConfig struct {
	// Enabled turns the Anthropic-backed generator on; when false every raid receives default tables.
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// Config is the top-level application configuration.
type Config struct {
	Database     DatabaseConfig     `mapstructure:"database"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	BattleServer BattleServerConfig `mapstructure:"battleserver"`
	Battle       BattleConfig       `mapstructure:"battle"`
	Precompute   PrecomputeConfig   `mapstructure:"precompute"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateBattleServer(c.BattleServer); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateBattle(c.Battle); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validatePrecompute(c.Precompute); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBattleServer(b BattleServerConfig) error {
	var errs []string
	if b.GRPCHost == "" {
		errs = append(errs, "battleserver.grpc_host must not be empty")
	}
	if b.GRPCPort < 1 || b.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("battleserver.grpc_port must be 1-65535, got %d", b.GRPCPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBattle(b BattleConfig) error {
	var errs []string
	if b.SessionIdleTimeout <= 0 {
		errs = append(errs, "battle.session_idle_timeout must be positive")
	}
	if b.SweepInterval <= 0 {
		errs = append(errs, "battle.sweep_interval must be positive")
	}
	if b.DuelMaxTurns < 1 {
		errs = append(errs, fmt.Sprintf("battle.duel_max_turns must be >= 1, got %d", b.DuelMaxTurns))
	}
	if b.SetupTimeout <= 0 {
		errs = append(errs, "battle.setup_timeout must be positive")
	}
	if b.SetupPollInterval <= 0 || b.SetupPollInterval > b.SetupTimeout {
		errs = append(errs, "battle.setup_poll_interval must be positive and not exceed battle.setup_timeout")
	}
	if b.TerminalWriteAttempts < 1 {
		errs = append(errs, "battle.terminal_write_attempts must be >= 1")
	}
	if b.TerminalWriteBackoff < 0 {
		errs = append(errs, "battle.terminal_write_backoff must not be negative")
	}
	if b.MaxPartySize < 1 {
		errs = append(errs, fmt.Sprintf("battle.max_party_size must be >= 1, got %d", b.MaxPartySize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePrecompute(p PrecomputeConfig) error {
	if !p.Enabled {
		return nil
	}
	var errs []string
	if p.APIKey == "" {
		errs = append(errs, "precompute.api_key must not be empty when precompute.enabled is set")
	}
	if p.Model == "" {
		errs = append(errs, "precompute.model must not be empty")
	}
	if p.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("precompute.max_tokens must be >= 1, got %d", p.MaxTokens))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with RAID_ prefix
	v.SetEnvPrefix("RAID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance carrying only the built-in defaults.
//
// Postcondition: LoadFromViper(Defaults()) succeeds.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "raid")
	v.SetDefault("database.password", "raid")
	v.SetDefault("database.name", "raid")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("battleserver.grpc_host", "127.0.0.1")
	v.SetDefault("battleserver.grpc_port", 50061)

	v.SetDefault("battle.session_idle_timeout", "30m")
	v.SetDefault("battle.sweep_interval", "1m")
	v.SetDefault("battle.duel_max_turns", 3)
	v.SetDefault("battle.setup_timeout", "60s")
	v.SetDefault("battle.setup_poll_interval", "1s")
	v.SetDefault("battle.terminal_write_attempts", 5)
	v.SetDefault("battle.terminal_write_backoff", "100ms")
	v.SetDefault("battle.max_party_size", 3)

	v.SetDefault("precompute.enabled", false)
	v.SetDefault("precompute.model", "claude-sonnet-4-5")
	v.SetDefault("precompute.max_tokens", 2048)
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
)

// Config is everything the daemon loads at startup.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Vault   VaultConfig   `json:"vault"`
	Venue   VenueConfig   `json:"venue"`
	Audit   AuditConfig   `json:"audit"`
	Auth    AuthConfig    `json:"auth"`
	Alerts  AlertConfig   `json:"alerts"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig controls the API listener.
type ServerConfig struct {
	Address string `json:"address"`
}

// VaultConfig fixes the vault's roles and risk limits. Monetary fields are
// decimal strings so amounts survive JSON without float truncation.
type VaultConfig struct {
	Owner    string `json:"owner"`
	Guardian string `json:"guardian"`
	Agent    string `json:"agent"`

	Signers               []string `json:"signers"`
	RequiredConfirmations int      `json:"required_confirmations"`

	ReferenceAsset string `json:"reference_asset"`
	VaultAddress   string `json:"vault_address"`

	MinDeposit         string `json:"min_deposit"`
	SingleTxCap        string `json:"single_tx_cap"`
	DailyCap           string `json:"daily_cap"`
	PerformanceFeeBps  uint32 `json:"performance_fee_bps"`
	DefaultSlippageBps uint32 `json:"default_slippage_bps"`
	LiquidityPolicy    string `json:"liquidity_policy"`

	ApprovedProtocols []string `json:"approved_protocols"`

	PegGuard       bool   `json:"peg_guard"`
	DepegThreshold string `json:"depeg_threshold,omitempty"`
}

// VenueConfig selects the trading venue and signing identity.
type VenueConfig struct {
	// DefinitionsFile points at the YAML venue catalogue.
	DefinitionsFile string `json:"definitions_file"`
	// Name selects a venue from the catalogue. Empty runs the vault in
	// book-entry mode with no chain connection.
	Name string `json:"name"`
	// PrivateKeyEnv names the environment variable holding the signer key.
	PrivateKeyEnv string `json:"private_key_env"`
}

// AuditConfig wires the journal's downstream publishers.
type AuditConfig struct {
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisStream   string `json:"redis_stream,omitempty"`
	RabbitMQURL   string `json:"rabbitmq_url,omitempty"`
	MySQLDSN      string `json:"mysql_dsn,omitempty"`
	ChannelBuffer int    `json:"channel_buffer"`
}

// AuthConfig holds the static API keyring.
type AuthConfig struct {
	Mode string          `json:"mode"`
	Keys []AuthKeyConfig `json:"keys,omitempty"`
}

// AuthKeyConfig pairs an API key with the caller it authenticates.
type AuthKeyConfig struct {
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Roles   []string `json:"roles"`
}

// AlertConfig routes critical vault events.
type AlertConfig struct {
	WebhookURL string `json:"webhook_url,omitempty"`
}

// LoggingConfig controls the service and audit logs.
type LoggingConfig struct {
	Level        string `json:"level"`
	AuditFile    string `json:"audit_file"`
	MaxSizeMB    int    `json:"max_size_mb"`
	MaxBackups   int    `json:"max_backups"`
	MaxAgeDays   int    `json:"max_age_days"`
	JSONConsole  bool   `json:"json_console"`
	AddSource    bool   `json:"add_source"`
	DisableAudit bool   `json:"disable_audit"`
}

// Load parses the JSON configuration at path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	return &cfg, nil
}

func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Venue.DefinitionsFile == "" {
		c.Venue.DefinitionsFile = filepath.Join(baseDir, "venues.yaml")
	} else if !filepath.IsAbs(c.Venue.DefinitionsFile) {
		c.Venue.DefinitionsFile = filepath.Join(baseDir, c.Venue.DefinitionsFile)
	}
	if c.Audit.RedisStream == "" {
		c.Audit.RedisStream = "aegis:audit"
	}
	if c.Audit.ChannelBuffer <= 0 {
		c.Audit.ChannelBuffer = 256
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = "disabled"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.AuditFile == "" {
		c.Logging.AuditFile = filepath.Join(baseDir, "logs", "audit.log")
	} else if !filepath.IsAbs(c.Logging.AuditFile) {
		c.Logging.AuditFile = filepath.Join(baseDir, c.Logging.AuditFile)
	}
}

// Amount parses a decimal string into a big integer, nil for empty input.
func Amount(raw string) (*big.Int, error) {
	if raw == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

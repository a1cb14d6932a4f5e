package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/cayc/incubator/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// URIConfig holds gateway configuration
type URIConfig struct {
	IPFSGateway    string `mapstructure:"ipfs_gateway"`
	ArweaveGateway string `mapstructure:"arweave_gateway"`
}

// EthereumConfig holds Ethereum-specific configuration
type EthereumConfig struct {
	RPCURL              string        `mapstructure:"rpc_url"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	ReceiptTimeout      time.Duration `mapstructure:"receipt_timeout"`
}

// WalletConfig selects the signing backend
type WalletConfig struct {
	KeystoreDir    string        `mapstructure:"keystore_dir"`
	SignerEndpoint string        `mapstructure:"signer_endpoint"`
	WatchInterval  time.Duration `mapstructure:"watch_interval"`
}

// NotifierConfig holds the mail relay client configuration
type NotifierConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	Recipient   string        `mapstructure:"recipient"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// OwnershipConfig holds ownership discovery configuration
type OwnershipConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	MaxAge         time.Duration `mapstructure:"max_age"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string          `mapstructure:"host"`
	Port           int             `mapstructure:"port"`
	ReadTimeout    int             `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout   int             `mapstructure:"write_timeout"` // in seconds
	IdleTimeout    int             `mapstructure:"idle_timeout"`  // in seconds
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	MaxBodyBytes   int64           `mapstructure:"max_body_bytes"`
	TrustedProxies []string        `mapstructure:"trusted_proxies"` // empty trusts no proxy headers
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig holds the per-client budget of the relay, zero requests disables it
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// SMTPConfig holds the outgoing mail server configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// IncubatorConfig holds configuration for the incubator client
type IncubatorConfig struct {
	BaseConfig `mapstructure:",squash"`
	// Closed shows the chamber as temporarily closed and refuses incubation
	Closed    bool            `mapstructure:"closed"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	URI       URIConfig       `mapstructure:"uri"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Ownership OwnershipConfig `mapstructure:"ownership"`
}

// RelayConfig holds configuration for the mail relay
type RelayConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	SMTP       SMTPConfig     `mapstructure:"smtp"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
}

// LoadIncubatorConfig loads configuration for the incubator client
func LoadIncubatorConfig(configFile string, envPath string) (*IncubatorConfig, error) {
	v := configureViper("incubator", configFile, envPath)

	// Set defaults
	v.SetDefault("closed", false)
	v.SetDefault("ethereum.receipt_poll_interval", "2s")
	v.SetDefault("ethereum.receipt_timeout", "10m")
	v.SetDefault("wallet.watch_interval", "5s")
	v.SetDefault("uri.ipfs_gateway", "https://gateway.pinata.cloud")
	v.SetDefault("uri.arweave_gateway", "https://arweave.net")
	v.SetDefault("notifier.endpoint", domain.NotificationEndpoint)
	v.SetDefault("notifier.recipient", domain.NotificationRecipient)
	v.SetDefault("notifier.max_attempts", 3)
	v.SetDefault("notifier.retry_delay", "0s")
	v.SetDefault("notifier.http_timeout", "30s")
	v.SetDefault("ownership.concurrency", 8)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg IncubatorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if cfg.Ethereum.RPCURL == "" {
		return nil, errors.New("ethereum.rpc_url is required")
	}
	if cfg.Notifier.MaxAttempts < 1 {
		return nil, errors.New("notifier.max_attempts must be at least 1")
	}

	return &cfg, nil
}

// LoadRelayConfig loads configuration for the mail relay
func LoadRelayConfig(configFile string, envPath string) (*RelayConfig, error) {
	v := configureViper("mail-relay", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("server.allowed_origins", []string{"https://cayc-incubation.vercel.app"})
	v.SetDefault("server.max_body_bytes", 64*1024)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.rate_limit.requests_per_minute", 10)
	v.SetDefault("server.rate_limit.burst", 5)
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "INCUBATIONS")
	v.SetDefault("nats.connection_name", "cayc-mail-relay")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg RelayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if cfg.SMTP.Username == "" {
		return nil, errors.New("smtp.username is required")
	}
	if cfg.SMTP.Password == "" {
		return nil, errors.New("smtp.password is required")
	}

	return &cfg, nil
}

// readConfig reads the config file, a missing file falls back to environment variables
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/incubator/, cmd/mail-relay/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("INCUBATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)

	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		"closed",
		// Ethereum
		"ethereum.rpc_url",
		"ethereum.receipt_poll_interval",
		"ethereum.receipt_timeout",
		// Wallet
		"wallet.keystore_dir",
		"wallet.signer_endpoint",
		"wallet.watch_interval",
		// URI
		"uri.ipfs_gateway",
		"uri.arweave_gateway",
		// Notifier
		"notifier.endpoint",
		"notifier.recipient",
		"notifier.max_attempts",
		"notifier.retry_delay",
		"notifier.http_timeout",
		// Ownership
		"ownership.concurrency",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.allowed_origins",
		"server.max_body_bytes",
		"server.trusted_proxies",
		"server.rate_limit.requests_per_minute",
		"server.rate_limit.burst",
		// SMTP
		"smtp.host",
		"smtp.port",
		"smtp.username",
		"smtp.password",
		"smtp.from",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.max_age",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// Enabled reports whether a database is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != "" && c.DBName != ""
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

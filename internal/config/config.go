// Package config defines the top-level configuration for the swap router
// and provides validation helpers.
package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SWAPROUTER_* environment variables.
type Config struct {
	Chain     ChainConfig     `toml:"chain"`
	Contracts ContractsConfig `toml:"contracts"`
	Compiler  CompilerConfig  `toml:"compiler"`
	RFQT      RFQTConfig      `toml:"rfqt"`
	Signer    SignerConfig    `toml:"signer"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ChainConfig identifies the exchange deployment orders are built for.
type ChainConfig struct {
	ChainID         int    `toml:"chain_id"`
	ExchangeAddress string `toml:"exchange_address"`
}

// ContractsConfig holds the bridge contracts used to settle non-native fills.
// An empty address disables the venue.
type ContractsConfig struct {
	Eth2DaiBridge      string `toml:"eth2dai_bridge"`
	KyberBridge        string `toml:"kyber_bridge"`
	UniswapBridge      string `toml:"uniswap_bridge"`
	CurveBridge        string `toml:"curve_bridge"`
	DexForwarderBridge string `toml:"dex_forwarder_bridge"`
	LiquidityProvider  string `toml:"liquidity_provider"`
}

// CompilerConfig controls order compilation.
type CompilerConfig struct {
	// Slippage is a decimal fraction such as "0.0005".
	Slippage          string   `toml:"slippage"`
	BatchBridgeOrders bool     `toml:"batch_bridge_orders"`
	OrderTTL          duration `toml:"order_ttl"`
	// Compile mode inputs.
	PathFile    string `toml:"path_file"`
	Side        string `toml:"side"`
	InputToken  string `toml:"input_token"`
	OutputToken string `toml:"output_token"`
}

// RFQTConfig holds the market-maker roster and request defaults.
type RFQTConfig struct {
	MakerEndpoints []string `toml:"maker_endpoints"`
	APIKey         string   `toml:"api_key"`
	TakerAddress   string   `toml:"taker_address"`
	Timeout        duration `toml:"timeout"`
	CacheTTL       duration `toml:"cache_ttl"`
	// RateLimitPerMinute bounds rounds per API key; 0 disables the limit.
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`

	// Quote mode pair.
	MakerToken string `toml:"maker_token"`
	TakerToken string `toml:"taker_token"`
	Side       string `toml:"side"`
	Amount     string `toml:"amount"`
}

// SignerConfig holds the optional key used to sign orders locally.
type SignerConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled            bool     `toml:"enabled"`
	Port               int      `toml:"port"`
	CORSOrigins        []string `toml:"cors_origins"`
	APIKeys            []string `toml:"api_keys"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	// TrustedProxies lists the proxy IPs or CIDRs allowed to set
	// X-Forwarded-For and X-Real-IP.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:         1,
			ExchangeAddress: "0x61935cbdd02287b511119ddb11aeb42f1593b7ef",
		},
		Compiler: CompilerConfig{
			Slippage:          "0.0005",
			BatchBridgeOrders: true,
			OrderTTL:          duration{time.Hour},
			Side:              "sell",
		},
		RFQT: RFQTConfig{
			Timeout:            duration{time.Second},
			CacheTTL:           duration{2 * time.Second},
			RateLimitPerMinute: 120,
			Side:               "sell",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "swaprouter",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "swaprouter-rounds",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:            true,
			Port:               8000,
			CORSOrigins:        []string{"http://localhost:3000"},
			RateLimitPerMinute: 600,
		},
		Notify: NotifyConfig{
			Events: []string{"rfq_empty", "compile_failed"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"compile": true,
	"quote":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, compile, quote)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if !common.IsHexAddress(c.Chain.ExchangeAddress) {
		errs = append(errs, fmt.Sprintf("chain: exchange_address %q is not an address", c.Chain.ExchangeAddress))
	}

	// Contracts
	for name, addr := range map[string]string{
		"eth2dai_bridge":       c.Contracts.Eth2DaiBridge,
		"kyber_bridge":         c.Contracts.KyberBridge,
		"uniswap_bridge":       c.Contracts.UniswapBridge,
		"curve_bridge":         c.Contracts.CurveBridge,
		"dex_forwarder_bridge": c.Contracts.DexForwarderBridge,
		"liquidity_provider":   c.Contracts.LiquidityProvider,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("contracts: %s %q is not an address", name, addr))
		}
	}

	// Compiler
	tol, err := decimal.NewFromString(c.Compiler.Slippage)
	if err != nil || tol.IsNegative() || tol.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Sprintf("compiler: slippage %q must be a decimal in [0, 1)", c.Compiler.Slippage))
	}
	if c.Compiler.OrderTTL.Duration <= 0 {
		errs = append(errs, "compiler: order_ttl must be > 0")
	}
	if strings.EqualFold(c.Mode, "compile") {
		if c.Compiler.PathFile == "" {
			errs = append(errs, "compiler: path_file is required for mode compile")
		}
		if !common.IsHexAddress(c.Compiler.InputToken) || !common.IsHexAddress(c.Compiler.OutputToken) {
			errs = append(errs, "compiler: input_token and output_token must be addresses for mode compile")
		}
		if c.Compiler.Side != "buy" && c.Compiler.Side != "sell" {
			errs = append(errs, fmt.Sprintf("compiler: side must be buy or sell, got %q", c.Compiler.Side))
		}
	}

	// RFQ-T
	for _, ep := range c.RFQT.MakerEndpoints {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("rfqt: maker endpoint %q must be an http(s) URL", ep))
		}
	}
	if c.RFQT.Timeout.Duration <= 0 {
		errs = append(errs, "rfqt: timeout must be > 0")
	}
	if c.RFQT.RateLimitPerMinute < 0 {
		errs = append(errs, "rfqt: rate_limit_per_minute must be >= 0")
	}
	if c.RFQT.TakerAddress != "" && !common.IsHexAddress(c.RFQT.TakerAddress) {
		errs = append(errs, fmt.Sprintf("rfqt: taker_address %q is not an address", c.RFQT.TakerAddress))
	}
	if strings.EqualFold(c.Mode, "quote") {
		if len(c.RFQT.MakerEndpoints) == 0 {
			errs = append(errs, "rfqt: maker_endpoints must not be empty for mode quote")
		}
		if !common.IsHexAddress(c.RFQT.MakerToken) || !common.IsHexAddress(c.RFQT.TakerToken) {
			errs = append(errs, "rfqt: maker_token and taker_token must be addresses for mode quote")
		}
		if c.RFQT.Side != "buy" && c.RFQT.Side != "sell" {
			errs = append(errs, fmt.Sprintf("rfqt: side must be buy or sell, got %q", c.RFQT.Side))
		}
		if c.RFQT.Amount == "" {
			errs = append(errs, "rfqt: amount is required for mode quote")
		}
	}

	// Signer
	if c.Signer.EncryptedKeyPath != "" && c.Signer.KeyPassword == "" {
		errs = append(errs, "signer: key_password is required when encrypted_key_path is set")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		for _, p := range c.Server.TrustedProxies {
			if !validProxy(p) {
				errs = append(errs, fmt.Sprintf("server: trusted proxy %q is not an IP or CIDR", p))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

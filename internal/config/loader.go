package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SWAPROUTER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
//
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SWAPROUTER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setInt(&cfg.Chain.ChainID, "SWAPROUTER_CHAIN_ID")
	setStr(&cfg.Chain.ExchangeAddress, "SWAPROUTER_CHAIN_EXCHANGE_ADDRESS")

	// ── Contracts ──
	setStr(&cfg.Contracts.Eth2DaiBridge, "SWAPROUTER_CONTRACTS_ETH2DAI_BRIDGE")
	setStr(&cfg.Contracts.KyberBridge, "SWAPROUTER_CONTRACTS_KYBER_BRIDGE")
	setStr(&cfg.Contracts.UniswapBridge, "SWAPROUTER_CONTRACTS_UNISWAP_BRIDGE")
	setStr(&cfg.Contracts.CurveBridge, "SWAPROUTER_CONTRACTS_CURVE_BRIDGE")
	setStr(&cfg.Contracts.DexForwarderBridge, "SWAPROUTER_CONTRACTS_DEX_FORWARDER_BRIDGE")
	setStr(&cfg.Contracts.LiquidityProvider, "SWAPROUTER_CONTRACTS_LIQUIDITY_PROVIDER")

	// ── Compiler ──
	setStr(&cfg.Compiler.Slippage, "SWAPROUTER_COMPILER_SLIPPAGE")
	setBool(&cfg.Compiler.BatchBridgeOrders, "SWAPROUTER_COMPILER_BATCH_BRIDGE_ORDERS")
	setDuration(&cfg.Compiler.OrderTTL, "SWAPROUTER_COMPILER_ORDER_TTL")
	setStr(&cfg.Compiler.PathFile, "SWAPROUTER_COMPILER_PATH_FILE")
	setStr(&cfg.Compiler.Side, "SWAPROUTER_COMPILER_SIDE")
	setStr(&cfg.Compiler.InputToken, "SWAPROUTER_COMPILER_INPUT_TOKEN")
	setStr(&cfg.Compiler.OutputToken, "SWAPROUTER_COMPILER_OUTPUT_TOKEN")

	// ── RFQ-T ──
	setStringSlice(&cfg.RFQT.MakerEndpoints, "SWAPROUTER_RFQT_MAKER_ENDPOINTS")
	setStr(&cfg.RFQT.APIKey, "SWAPROUTER_RFQT_API_KEY")
	setStr(&cfg.RFQT.TakerAddress, "SWAPROUTER_RFQT_TAKER_ADDRESS")
	setDuration(&cfg.RFQT.Timeout, "SWAPROUTER_RFQT_TIMEOUT")
	setDuration(&cfg.RFQT.CacheTTL, "SWAPROUTER_RFQT_CACHE_TTL")
	setInt(&cfg.RFQT.RateLimitPerMinute, "SWAPROUTER_RFQT_RATE_LIMIT_PER_MINUTE")
	setStr(&cfg.RFQT.MakerToken, "SWAPROUTER_RFQT_MAKER_TOKEN")
	setStr(&cfg.RFQT.TakerToken, "SWAPROUTER_RFQT_TAKER_TOKEN")
	setStr(&cfg.RFQT.Side, "SWAPROUTER_RFQT_SIDE")
	setStr(&cfg.RFQT.Amount, "SWAPROUTER_RFQT_AMOUNT")

	// ── Signer ──
	setStr(&cfg.Signer.PrivateKey, "SWAPROUTER_SIGNER_PRIVATE_KEY")
	setStr(&cfg.Signer.EncryptedKeyPath, "SWAPROUTER_SIGNER_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Signer.KeyPassword, "SWAPROUTER_SIGNER_KEY_PASSWORD")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SWAPROUTER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SWAPROUTER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SWAPROUTER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SWAPROUTER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SWAPROUTER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SWAPROUTER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SWAPROUTER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SWAPROUTER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SWAPROUTER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SWAPROUTER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SWAPROUTER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SWAPROUTER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SWAPROUTER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SWAPROUTER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SWAPROUTER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SWAPROUTER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SWAPROUTER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SWAPROUTER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SWAPROUTER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SWAPROUTER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SWAPROUTER_S3_REGION")
	setStr(&cfg.S3.Bucket, "SWAPROUTER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SWAPROUTER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SWAPROUTER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SWAPROUTER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SWAPROUTER_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SWAPROUTER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SWAPROUTER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SWAPROUTER_SERVER_CORS_ORIGINS")
	setStringSlice(&cfg.Server.APIKeys, "SWAPROUTER_SERVER_API_KEYS")
	setStringSlice(&cfg.Server.TrustedProxies, "SWAPROUTER_SERVER_TRUSTED_PROXIES")
	setInt(&cfg.Server.RateLimitPerMinute, "SWAPROUTER_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SWAPROUTER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SWAPROUTER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SWAPROUTER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SWAPROUTER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SWAPROUTER_MODE")
	setStr(&cfg.LogLevel, "SWAPROUTER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

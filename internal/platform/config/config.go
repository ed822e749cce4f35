package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the gateway reads from the environment so main
// stays lean. Zero values fall back to development defaults.
type Config struct {
	Addr string

	// Payment policy.
	PriceSats      int64
	PaymentTimeout time.Duration
	InvoiceExpiry  time.Duration
	PollInterval   time.Duration
	ReaperInterval time.Duration
	SettledTTL     time.Duration

	// CollectorPubkey is the identity receipts must be issued by.
	CollectorPubkey string

	// Trust oracle selection: "static" uses the seeded in-process set,
	// "relay" queries an external web-of-trust relay.
	TrustMode     string
	TrustSeeds    []string
	RelayURL      string
	TrustCacheTTL time.Duration

	// Admission sink selection: "memory", "postgres" or "relay".
	SinkMode       string
	PostgresDSN    string
	RelayIngestURL string

	// Invoice gateway selection: "lnd" or "fake" (development).
	GatewayMode    string
	LNDURL         string
	LNDMacaroonHex string
	LNDInsecure    bool

	Redis RedisConfig

	KafkaBrokers []string
	KafkaTopic   string

	JWTSigningKey string
}

// RedisConfig holds connection settings for the settled-keys store. An
// empty URL means Redis is not configured and the in-memory store is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds the gateway config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("ZAPGATE_ADDR", ":8080"),
		PriceSats:       envInt64("ZAPGATE_PRICE_SATS", 1000),
		PaymentTimeout:  envDuration("ZAPGATE_PAYMENT_TIMEOUT", 5*time.Minute),
		InvoiceExpiry:   envDuration("ZAPGATE_INVOICE_EXPIRY", 5*time.Minute),
		PollInterval:    envDuration("ZAPGATE_POLL_INTERVAL", 5*time.Second),
		ReaperInterval:  envDuration("ZAPGATE_REAPER_INTERVAL", time.Minute),
		SettledTTL:      envDuration("ZAPGATE_SETTLED_TTL", 24*time.Hour),
		CollectorPubkey: os.Getenv("ZAPGATE_COLLECTOR_PUBKEY"),
		TrustMode:       envOr("ZAPGATE_TRUST_MODE", "static"),
		RelayURL:        os.Getenv("ZAPGATE_RELAY_URL"),
		TrustCacheTTL:   envDuration("ZAPGATE_TRUST_CACHE_TTL", time.Minute),
		SinkMode:        envOr("ZAPGATE_SINK_MODE", "memory"),
		PostgresDSN:     os.Getenv("ZAPGATE_POSTGRES_DSN"),
		RelayIngestURL:  os.Getenv("ZAPGATE_RELAY_INGEST_URL"),
		GatewayMode:     envOr("ZAPGATE_GATEWAY_MODE", "fake"),
		LNDURL:          os.Getenv("ZAPGATE_LND_URL"),
		LNDMacaroonHex:  os.Getenv("ZAPGATE_LND_MACAROON_HEX"),
		LNDInsecure:     os.Getenv("ZAPGATE_LND_INSECURE") == "true",
		KafkaTopic:      envOr("ZAPGATE_KAFKA_TOPIC", "zapgate.notifications"),
		JWTSigningKey:   envOr("ZAPGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Redis: RedisConfig{
			URL:          os.Getenv("ZAPGATE_REDIS_URL"),
			PoolSize:     int(envInt64("ZAPGATE_REDIS_POOL_SIZE", 10)),
			MinIdleConns: int(envInt64("ZAPGATE_REDIS_MIN_IDLE", 2)),
			DialTimeout:  envDuration("ZAPGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ZAPGATE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("ZAPGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	if seeds := os.Getenv("ZAPGATE_TRUST_SEEDS"); seeds != "" {
		cfg.TrustSeeds = splitNonEmpty(seeds)
	}
	if brokers := os.Getenv("ZAPGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitNonEmpty(brokers)
	}
	return cfg
}

// PriceMsat returns the configured price in millisatoshis, the unit payment
// intents quote.
func (c Config) PriceMsat() int64 {
	return c.PriceSats * 1000
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

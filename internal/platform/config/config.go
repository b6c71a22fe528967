package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process level configuration.
type Config struct {
	Addr          string
	MirrorDSN     string
	AuthorityDSN  string
	AuthorityURL  string
	CryptoSecret  string
	JWTSigningKey string
	APIKeyHash    string
	RedisAddr     string
	KafkaBrokers  []string
	AuditTopic    string
}

// RosterCacheTTL bounds how stale a cached roster fetch may be.
var RosterCacheTTL = 5 * time.Minute

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("ROSTERSYNC_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	secret := os.Getenv("ROSTERSYNC_CRYPTO_SECRET")
	if secret == "" {
		// Development default, must be overridden in production.
		secret = "dev-crypto-secret-change-me"
	}

	jwtSigningKey := os.Getenv("ROSTERSYNC_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("ROSTERSYNC_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	topic := os.Getenv("ROSTERSYNC_AUDIT_TOPIC")
	if topic == "" {
		topic = "rostersync.audit"
	}

	return Config{
		Addr:          addr,
		MirrorDSN:     os.Getenv("ROSTERSYNC_MIRROR_DSN"),
		AuthorityDSN:  os.Getenv("ROSTERSYNC_AUTHORITY_DSN"),
		AuthorityURL:  os.Getenv("ROSTERSYNC_AUTHORITY_URL"),
		CryptoSecret:  secret,
		JWTSigningKey: jwtSigningKey,
		APIKeyHash:    os.Getenv("ROSTERSYNC_API_KEY_HASH"),
		RedisAddr:     os.Getenv("ROSTERSYNC_REDIS_ADDR"),
		KafkaBrokers:  brokers,
		AuditTopic:    topic,
	}
}

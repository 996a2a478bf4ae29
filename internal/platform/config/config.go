package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration. Persistence and messaging
// backends are optional: leaving DATABASE_URL unset runs on in-memory stores,
// leaving KAFKA_BROKERS unset keeps the audit trail in memory.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisAddr     string
	KafkaBrokers  []string
	AuditTopic    string
	JWTSigningKey string
}

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
var ShutdownTimeout = 10 * time.Second

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("FORTAUDIT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("FORTAUDIT_AUDIT_TOPIC")
	if topic == "" {
		topic = "fortaudit.audit-trail"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:          addr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		KafkaBrokers:  brokers,
		AuditTopic:    topic,
		JWTSigningKey: jwtSigningKey,
	}
}

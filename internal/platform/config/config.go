// Package config loads process configuration from APIHUB_* environment
// variables and the environment catalogue from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. APIHUB_ADDR.
const Prefix = "APIHUB"

// DevSigningKey is the fallback token signing key. It is refused outside
// local development.
const DevSigningKey = "dev-secret-key-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr        string `envconfig:"ADDR" default:":8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// EnvironmentsFile points at the YAML environment catalogue. When empty
	// the built-in catalogue is used.
	EnvironmentsFile string `envconfig:"ENVIRONMENTS_FILE"`

	Auth     Auth     `envconfig:"AUTH"`
	Mongo    Mongo    `envconfig:"MONGO"`
	Redis    Redis    `envconfig:"REDIS"`
	Kafka    Kafka    `envconfig:"KAFKA"`
	Identity Identity `envconfig:"IDENTITY"`
	Breaker  Breaker  `envconfig:"BREAKER"`

	// EncryptionKey protects personal data at rest. MemberKeySecret keys the
	// blind index used to look up applications and teams by member email.
	EncryptionKey   string `envconfig:"ENCRYPTION_KEY"`
	MemberKeySecret string `envconfig:"MEMBER_KEY_SECRET"`

	LockTTL time.Duration `envconfig:"LOCK_TTL" default:"30s"`
}

type Auth struct {
	SigningKey string `envconfig:"SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	Issuer     string `envconfig:"ISSUER" default:"apihub-portal"`
	Audience   string `envconfig:"AUDIENCE" default:"apihub"`
}

// Mongo is optional; without a URI the in-memory stores are used.
type Mongo struct {
	URI      string `envconfig:"URI"`
	Database string `envconfig:"DATABASE" default:"apihub"`
}

// Redis is optional; without a URL sagas are serialized per process only.
type Redis struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	LockPrefix   string        `envconfig:"LOCK_PREFIX" default:"apihub:lock:"`
}

// Kafka is optional; without brokers events stay in the event store and
// notifications are only logged.
type Kafka struct {
	Brokers            string        `envconfig:"BROKERS"`
	Acks               string        `envconfig:"ACKS" default:"all"`
	Retries            int           `envconfig:"RETRIES" default:"3"`
	DeliveryTimeout    time.Duration `envconfig:"DELIVERY_TIMEOUT" default:"30s"`
	EventsTopic        string        `envconfig:"EVENTS_TOPIC" default:"apihub.events"`
	NotificationsTopic string        `envconfig:"NOTIFICATIONS_TOPIC" default:"apihub.notifications"`
}

// Identity configures calls to the identity system. Per-environment base
// URLs and keys live in the environment catalogue.
type Identity struct {
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
	// InMemory replaces the identity system with a process-local fake.
	InMemory bool `envconfig:"IN_MEMORY" default:"false"`
}

// Breaker configures the per-environment circuit breakers.
type Breaker struct {
	FailureThreshold int           `envconfig:"FAILURE_THRESHOLD" default:"5"`
	SuccessThreshold int           `envconfig:"SUCCESS_THRESHOLD" default:"3"`
	Cooldown         time.Duration `envconfig:"COOLDOWN" default:"30s"`
	Window           time.Duration `envconfig:"WINDOW" default:"1m"`
}

// FromEnv reads the configuration and validates it.
func FromEnv() (Server, error) {
	var cfg Server
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Server{}, fmt.Errorf("read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// IsLocal reports whether the process runs in local development.
func (s Server) IsLocal() bool {
	return s.Environment == "local" || s.Environment == "test"
}

func (s Server) Validate() error {
	var errs []error
	if s.Addr == "" {
		errs = append(errs, errors.New("APIHUB_ADDR must not be empty"))
	}
	if !s.IsLocal() {
		if s.Auth.SigningKey == DevSigningKey {
			errs = append(errs, errors.New("APIHUB_AUTH_SIGNING_KEY must be set outside local development"))
		}
		if s.Mongo.URI != "" && s.EncryptionKey == "" {
			errs = append(errs, errors.New("APIHUB_ENCRYPTION_KEY is required when Mongo is configured"))
		}
		if s.Mongo.URI != "" && s.MemberKeySecret == "" {
			errs = append(errs, errors.New("APIHUB_MEMBER_KEY_SECRET is required when Mongo is configured"))
		}
	}
	if s.Breaker.FailureThreshold < 1 || s.Breaker.SuccessThreshold < 1 {
		errs = append(errs, errors.New("breaker thresholds must be positive"))
	}
	return errors.Join(errs...)
}

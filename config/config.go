// Package config reads the cart's settings from GOMARKET_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

const (
	defaultNamespace      = "GoMarket"
	defaultRedisAddr      = "localhost:6379"
	defaultSubjectPrefix  = "gomarket.cart"
	defaultWorkers        = 4
	defaultPersistTimeout = 5 * time.Second
	defaultLogLevel       = "info"
)

var (
	ErrUnknownBackend   = errors.New("config: unknown storage backend")
	ErrPostgresDSN      = errors.New("config: GOMARKET_POSTGRES_DSN is required for the postgres backend")
	ErrWorkers          = errors.New("config: GOMARKET_WORKERS must be greater than zero")
	ErrPersistTimeout   = errors.New("config: GOMARKET_PERSIST_TIMEOUT must be positive")
	ErrNamespaceInvalid = errors.New("config: GOMARKET_NAMESPACE must not contain ':'")
)

type Config struct {
	Namespace string
	Backend   Backend

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	Workers        int
	PersistTimeout time.Duration

	Currency stripe.Currency

	LogLevel       string
	LogDevelopment bool
}

func Default() Config {
	return Config{
		Namespace:      defaultNamespace,
		Backend:        BackendMemory,
		RedisAddr:      defaultRedisAddr,
		NATSSubject:    defaultSubjectPrefix,
		Workers:        defaultWorkers,
		PersistTimeout: defaultPersistTimeout,
		Currency:       stripe.CurrencyUSD,
		LogLevel:       defaultLogLevel,
	}
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads settings through lookup, starting from Default. Setting GOMARKET_REDIS_ADDR
// without GOMARKET_STORAGE selects the redis backend.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("GOMARKET_NAMESPACE"); ok {
		cfg.Namespace = v
	}
	if v, ok := get("GOMARKET_REDIS_ADDR"); ok {
		cfg.RedisAddr = v
		// 有指定 Redis 位址但沒選 backend 時，預設用 Redis
		cfg.Backend = BackendRedis
	}
	if v, ok := get("GOMARKET_STORAGE"); ok {
		cfg.Backend = Backend(strings.ToLower(v))
	}
	if v, ok := get("GOMARKET_REDIS_PASSWORD"); ok {
		cfg.RedisPassword = v
	}
	if v, ok := get("GOMARKET_REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: GOMARKET_REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}
	if v, ok := get("GOMARKET_POSTGRES_DSN"); ok {
		cfg.PostgresDSN = v
	}
	if v, ok := get("GOMARKET_NATS_URL"); ok {
		cfg.NATSURL = v
	}
	if v, ok := get("GOMARKET_NATS_SUBJECT"); ok {
		cfg.NATSSubject = v
	}
	if v, ok := get("GOMARKET_WORKERS"); ok {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: GOMARKET_WORKERS: %w", err)
		}
		cfg.Workers = workers
	}
	if v, ok := get("GOMARKET_PERSIST_TIMEOUT"); ok {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: GOMARKET_PERSIST_TIMEOUT: %w", err)
		}
		cfg.PersistTimeout = timeout
	}
	if v, ok := get("GOMARKET_CURRENCY"); ok {
		cfg.Currency = stripe.Currency(strings.ToLower(v))
	}
	if v, ok := get("GOMARKET_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("GOMARKET_LOG_DEVELOPMENT"); ok {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: GOMARKET_LOG_DEVELOPMENT: %w", err)
		}
		cfg.LogDevelopment = dev
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return ErrPostgresDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	if strings.Contains(c.Namespace, ":") {
		return ErrNamespaceInvalid
	}
	if c.Workers <= 0 {
		return ErrWorkers
	}
	if c.PersistTimeout <= 0 {
		return ErrPersistTimeout
	}
	return nil
}

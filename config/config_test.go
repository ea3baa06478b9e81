package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(envLookup(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "GoMarket", cfg.Namespace)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.PersistTimeout)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(envLookup(map[string]string{
		"GOMARKET_NAMESPACE":       "Staging",
		"GOMARKET_STORAGE":         "Redis",
		"GOMARKET_REDIS_ADDR":      "redis:6380",
		"GOMARKET_REDIS_PASSWORD":  "secret",
		"GOMARKET_REDIS_DB":        "2",
		"GOMARKET_NATS_URL":        "nats://nats:4222",
		"GOMARKET_NATS_SUBJECT":    "staging.cart",
		"GOMARKET_WORKERS":         "8",
		"GOMARKET_PERSIST_TIMEOUT": "750ms",
		"GOMARKET_CURRENCY":        "EUR",
		"GOMARKET_LOG_LEVEL":       "debug",
		"GOMARKET_LOG_DEVELOPMENT": "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, Config{
		Namespace:      "Staging",
		Backend:        BackendRedis,
		RedisAddr:      "redis:6380",
		RedisPassword:  "secret",
		RedisDB:        2,
		NATSURL:        "nats://nats:4222",
		NATSSubject:    "staging.cart",
		Workers:        8,
		PersistTimeout: 750 * time.Millisecond,
		Currency:       stripe.CurrencyEUR,
		LogLevel:       "debug",
		LogDevelopment: true,
	}, cfg)
}

func TestLoadFrom_RedisAddrSelectsRedis(t *testing.T) {
	cfg, err := LoadFrom(envLookup(map[string]string{"GOMARKET_REDIS_ADDR": "redis:6379"}))
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)

	cfg, err = LoadFrom(envLookup(map[string]string{
		"GOMARKET_REDIS_ADDR": "redis:6379",
		"GOMARKET_STORAGE":    "memory",
	}))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
}

func TestLoadFrom_BlankValuesKeepDefaults(t *testing.T) {
	cfg, err := LoadFrom(envLookup(map[string]string{"GOMARKET_NAMESPACE": "  "}))
	require.NoError(t, err)
	assert.Equal(t, "GoMarket", cfg.Namespace)
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{name: "unknown backend", env: map[string]string{"GOMARKET_STORAGE": "sqlite"}, want: ErrUnknownBackend},
		{name: "postgres without dsn", env: map[string]string{"GOMARKET_STORAGE": "postgres"}, want: ErrPostgresDSN},
		{name: "zero workers", env: map[string]string{"GOMARKET_WORKERS": "0"}, want: ErrWorkers},
		{name: "negative timeout", env: map[string]string{"GOMARKET_PERSIST_TIMEOUT": "-1s"}, want: ErrPersistTimeout},
		{name: "namespace with colon", env: map[string]string{"GOMARKET_NAMESPACE": "a:b"}, want: ErrNamespaceInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(envLookup(tt.env))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	for _, name := range []string{"GOMARKET_REDIS_DB", "GOMARKET_WORKERS", "GOMARKET_PERSIST_TIMEOUT", "GOMARKET_LOG_DEVELOPMENT"} {
		_, err := LoadFrom(envLookup(map[string]string{name: "not-a-value"}))
		assert.ErrorContains(t, err, name)
	}
}

func TestLoadFrom_PostgresWithDSN(t *testing.T) {
	cfg, err := LoadFrom(envLookup(map[string]string{
		"GOMARKET_STORAGE":      "postgres",
		"GOMARKET_POSTGRES_DSN": "postgres://localhost/gomarket",
	}))
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Backend)
}

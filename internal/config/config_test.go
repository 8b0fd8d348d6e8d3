package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/marketsync/internal/errors"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.ServerHost)
				assert.Equal(t, 8080, cfg.ServerPort)
				assert.Equal(t, "postgres", cfg.DBDriver)
				assert.Equal(t, 25, cfg.DBMaxOpenConnections)
				assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, time.Minute, cfg.OutboxFastInterval)
				assert.Equal(t, 5*time.Minute, cfg.OutboxSlowInterval)
				assert.Equal(t, 100, cfg.OutboxBatchSize)
				assert.Equal(t, 10, cfg.OutboxSubBatchSize)
				assert.Equal(t, 5, cfg.OutboxMaxAttempts)
				assert.Equal(t, 30*time.Second, cfg.OutboxBackoffBase)
				assert.Equal(t, time.Hour, cfg.OutboxBackoffMax)
				assert.Equal(t, 30*time.Second, cfg.RemoteTimeout)
				assert.Equal(t, "marketsync", cfg.MetricsNamespace)
				assert.Empty(t, cfg.OperatorTokenHash)
			},
		},
		{
			name: "load custom outbox configuration",
			envVars: map[string]string{
				"OUTBOX_FAST_INTERVAL_SECONDS": "15",
				"OUTBOX_SLOW_INTERVAL_SECONDS": "120",
				"OUTBOX_BATCH_SIZE":            "20",
				"OUTBOX_MAX_ATTEMPTS":          "3",
				"OUTBOX_WRITER_ROLE":           "outbox_writer",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 15*time.Second, cfg.OutboxFastInterval)
				assert.Equal(t, 2*time.Minute, cfg.OutboxSlowInterval)
				assert.Equal(t, 20, cfg.OutboxBatchSize)
				assert.Equal(t, 3, cfg.OutboxMaxAttempts)
				assert.Equal(t, "outbox_writer", cfg.OutboxWriterRole)
			},
		},
		{
			name: "load custom remote configuration",
			envVars: map[string]string{
				"REMOTE_BASE_URL":           "https://remote.example.com/api/1.1",
				"REMOTE_API_TOKEN":          "token",
				"REMOTE_TIMEOUT_SECONDS":    "10",
				"REMOTE_RATE_LIMIT_PER_SEC": "2.5",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://remote.example.com/api/1.1", cfg.RemoteBaseURL)
				assert.Equal(t, "token", cfg.RemoteAPIToken)
				assert.Equal(t, 10*time.Second, cfg.RemoteTimeout)
				assert.Equal(t, 2.5, cfg.RemoteRateLimitPerSec)
			},
		},
		{
			name: "load custom database configuration",
			envVars: map[string]string{
				"DB_DRIVER":            "mysql",
				"DB_CONNECTION_STRING": "user:password@tcp(localhost:3306)/testdb",
				"DB_CONN_MAX_LIFETIME": "10",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "mysql", cfg.DBDriver)
				assert.Equal(t, "user:password@tcp(localhost:3306)/testdb", cfg.DBConnectionString)
				assert.Equal(t, 10*time.Minute, cfg.DBConnMaxLifetime)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()

			for key, value := range tt.envVars {
				err := os.Setenv(key, value)
				require.NoError(t, err)
			}

			cfg := Load()

			tt.validate(t, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		os.Clearenv()
		cfg := Load()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unsupported driver", func(t *testing.T) {
		os.Clearenv()
		cfg := Load()
		cfg.DBDriver = "sqlite"

		err := cfg.Validate()
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("backoff max below base", func(t *testing.T) {
		os.Clearenv()
		cfg := Load()
		cfg.OutboxBackoffMax = time.Second

		assert.Error(t, cfg.Validate())
	})

	t.Run("processing timeout shorter than remote timeout", func(t *testing.T) {
		os.Clearenv()
		cfg := Load()
		cfg.OutboxProcessingTimeout = 5 * time.Second

		assert.Error(t, cfg.Validate())
	})

	t.Run("processing timeout shorter than a full dispatch run", func(t *testing.T) {
		os.Clearenv()
		cfg := Load()
		cfg.OutboxBatchTimeout = 50 * time.Second
		cfg.RemoteTimeout = 30 * time.Second
		cfg.OutboxProcessingTimeout = 60 * time.Second

		assert.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidInput)

		cfg.OutboxProcessingTimeout = 80 * time.Second
		assert.NoError(t, cfg.Validate())
	})

	t.Run("invalid writer role", func(t *testing.T) {
		os.Clearenv()
		cfg := Load()
		cfg.OutboxWriterRole = "writer; DROP TABLE outbox_entries"

		assert.Error(t, cfg.Validate())
	})

	t.Run("ciphertext requires kms key uri", func(t *testing.T) {
		os.Clearenv()
		cfg := Load()
		cfg.RemoteAPITokenCiphertext = "c2VjcmV0"

		assert.Error(t, cfg.Validate())

		cfg.KMSKeyURI = "base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4="
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_GetGinMode(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	assert.Equal(t, "debug", cfg.GetGinMode())

	cfg.LogLevel = "warn"
	assert.Equal(t, "release", cfg.GetGinMode())
}

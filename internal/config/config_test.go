package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	testChdir(t, t.TempDir())
	for _, key := range []string{"POSTGRES_URL", "KAFKA_BROKERS", "RATE_LIMIT_RPS", "IMPORT_WINDOW"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Empty(t, cfg.PostgresURL)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 24*time.Hour, cfg.ImportWindow)
	require.Equal(t, 70.0, cfg.DefaultBodyWeightKg)
	require.Equal(t, 20.0, cfg.RateLimitRPS)
}

func TestLoadFromEnvironment(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("DLQ_MAX_RETRIES", "9")
	t.Setenv("DEFAULT_BODY_WEIGHT_KG", "82.5")
	t.Setenv("LOG_FORMAT_JSON", "true")
	t.Setenv("DLQ_BASE_DELAY", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, 9, cfg.DLQMaxRetries)
	require.Equal(t, 82.5, cfg.DefaultBodyWeightKg)
	require.True(t, cfg.LogFormatJSON)
	require.Equal(t, time.Minute, cfg.DLQBaseDelay)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FITNESS_API_TIMEOUT=3s\nJWT_ISSUER=from-file\n"), 0o600))
	t.Setenv("JWT_ISSUER", "from-env")
	t.Setenv("FITNESS_API_TIMEOUT", "")
	os.Unsetenv("FITNESS_API_TIMEOUT")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.FitnessAPITimeout)
	require.Equal(t, "from-env", cfg.JWTIssuer)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

// testChdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PROGRESSION_JWT_SECRET", testSecret)

	cfg, err := Load(nil, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite://progression.db", cfg.DatabaseURL)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 8081, cfg.AuthPort)
	assert.Equal(t, 8888, cfg.WSPort)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Empty(t, cfg.TLSCertFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(10), cfg.CoinPickupValue)
	assert.Equal(t, 5*time.Second, cfg.SaveInterval)
}

func TestLoad_EnvFileAndFlags(t *testing.T) {
	t.Setenv("PROGRESSION_LOG_LEVEL", "warn")
	envFile := filepath.Join(t.TempDir(), "test.env")
	contents := "PROGRESSION_JWT_SECRET=" + testSecret + "\nPROGRESSION_DATABASE_URL=memory://\nPROGRESSION_COIN_PICKUP_VALUE=25\n"
	require.NoError(t, os.WriteFile(envFile, []byte(contents), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("PROGRESSION_JWT_SECRET")
		os.Unsetenv("PROGRESSION_DATABASE_URL")
		os.Unsetenv("PROGRESSION_COIN_PICKUP_VALUE")
	})

	cfg, err := Load([]string{"--log-level", "debug", "--ws-port", "9000"}, envFile)
	require.NoError(t, err)
	assert.Equal(t, "memory://", cfg.DatabaseURL)
	assert.Equal(t, int64(25), cfg.CoinPickupValue)
	assert.Equal(t, "debug", cfg.LogLevel, "flags override the environment")
	assert.Equal(t, 9000, cfg.WSPort)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "missing secret", env: map[string]string{}},
		{name: "bad log level", env: map[string]string{"PROGRESSION_JWT_SECRET": testSecret, "PROGRESSION_LOG_LEVEL": "loud"}},
		{name: "bad duration", env: map[string]string{"PROGRESSION_JWT_SECRET": testSecret, "PROGRESSION_SAVE_INTERVAL": "soon"}},
		{name: "cert without key", env: map[string]string{"PROGRESSION_JWT_SECRET": testSecret, "PROGRESSION_TLS_CERT_FILE": "cert.pem"}},
		{name: "bad port flag", env: map[string]string{"PROGRESSION_JWT_SECRET": testSecret}, args: []string{"--api-port", "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PROGRESSION_JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args, filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

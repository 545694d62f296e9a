package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validServeConfig() Config {
	return Config{timeout: time.Second, port: 8080, loginRate: 10}
}

func TestConfig_ValidateServe(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"tls pair", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, ""},
		{"cert only", func(c *Config) { c.tlsCert = "cert.pem" }, "both --tls-cert and --tls-key"},
		{"key only", func(c *Config) { c.tlsKey = "key.pem" }, "both --tls-cert and --tls-key"},
		{"port zero", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 65536 }, "invalid port"},
		{"no login attempts", func(c *Config) { c.loginRate = 0 }, "invalid login rate"},
		{"zero timeout", func(c *Config) { c.timeout = 0 }, "invalid timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validServeConfig()
			tt.mutate(&cfg)

			err := cfg.validateServe()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Scheme(t *testing.T) {
	cfg := validServeConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func testFlags() (*pflag.FlagSet, *Config) {
	cfg := &Config{}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.DurationVar(&cfg.timeout, "timeout", 20*time.Second, "")
	flags.IntVar(&cfg.loginRate, "login-rate", 10, "")
	flags.IntVar(&cfg.port, "port", 8080, "")
	flags.BoolVar(&cfg.verbose, "verbose", false, "")

	return flags, cfg
}

func TestBindEnv(t *testing.T) {
	t.Setenv("TABOOSTAFF_TIMEOUT", "3s")
	t.Setenv("TABOOSTAFF_LOGIN_RATE", "4")
	t.Setenv("TABOOSTAFF_PORT", "1")
	t.Setenv("TABOOSTAFF_VERBOSE", "true")

	flags, cfg := testFlags()
	require.NoError(t, flags.Parse([]string{"--port", "9000"}))

	require.NoError(t, bindEnv(flags))

	assert.Equal(t, 3*time.Second, cfg.timeout)
	assert.Equal(t, 4, cfg.loginRate)
	assert.Equal(t, 9000, cfg.port, "flags on the command line win over the environment")
	assert.True(t, cfg.verbose)
}

func TestBindEnv_Unset(t *testing.T) {
	flags, cfg := testFlags()
	require.NoError(t, flags.Parse(nil))

	require.NoError(t, bindEnv(flags))

	assert.Equal(t, 20*time.Second, cfg.timeout)
	assert.Equal(t, 8080, cfg.port)
}

func TestBindEnv_BadValue(t *testing.T) {
	t.Setenv("TABOOSTAFF_PORT", "eighty")

	flags, _ := testFlags()
	require.NoError(t, flags.Parse(nil))

	err := bindEnv(flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TABOOSTAFF_PORT")
}

func TestLoadEnvFile(t *testing.T) {
	// Registered with t.Setenv so the originals come back afterwards.
	t.Setenv("TABOOSTAFF_TEST_LOADED", "")
	require.NoError(t, os.Unsetenv("TABOOSTAFF_TEST_LOADED"))
	t.Setenv("TABOOSTAFF_TEST_KEPT", "mine")

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TABOOSTAFF_TEST_LOADED=yes\nTABOOSTAFF_TEST_KEPT=theirs\n"), 0o600))

	require.NoError(t, loadEnvFile(path))

	assert.Equal(t, "yes", os.Getenv("TABOOSTAFF_TEST_LOADED"))
	assert.Equal(t, "mine", os.Getenv("TABOOSTAFF_TEST_KEPT"), "variables already set win")

	assert.NoError(t, loadEnvFile(filepath.Join(dir, "missing.env")))
	assert.NoError(t, loadEnvFile(""))
}

func TestEnvHint(t *testing.T) {
	assert.Equal(t, "(env: TABOOSTAFF_BACKEND_URL)", envHint("backend-url"))
	assert.Equal(t, "(env: TABOOSTAFF_PORT)", envHint("port"))
}

func TestNewCmd_Version(t *testing.T) {
	cmd := newCmd(&Config{})
	assert.Equal(t, releaseVersion, cmd.Version)

	for _, name := range []string{"login", "logout", "whoami", "decks", "category", "deck", "workbook", "password", "admin-reset", "play", "serve"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

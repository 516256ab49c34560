package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/gateway"
	"github.com/vyrodovalexey/loangw/internal/observability"
	"github.com/vyrodovalexey/loangw/internal/secrets"
)

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("LOANGW_TEST_VALUE", "set")

	assert.Equal(t, "set", getEnvOrDefault("LOANGW_TEST_VALUE", "default"))
	assert.Equal(t, "default", getEnvOrDefault("LOANGW_TEST_UNSET", "default"))
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{value: "", def: true, want: true},
		{value: "true", want: true},
		{value: "YES", want: true},
		{value: "1", want: true},
		{value: "on", want: true},
		{value: "false", def: true, want: false},
		{value: "off", def: true, want: false},
		{value: "maybe", def: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("LOANGW_TEST_BOOL", tt.value)
			assert.Equal(t, tt.want, getEnvBool("LOANGW_TEST_BOOL", tt.def))
		})
	}
}

func TestParseFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("GATEWAY_CONFIG_PATH", "")
		t.Setenv("GATEWAY_LOG_LEVEL", "")

		flags, err := parseFlags(nil)
		require.NoError(t, err)
		assert.Equal(t, defaultConfigPath, flags.configPath)
		assert.Empty(t, flags.logLevel)
		assert.False(t, flags.showVersion)
	})

	t.Run("environment fallbacks", func(t *testing.T) {
		t.Setenv("GATEWAY_CONFIG_PATH", "/etc/loangw.yaml")
		t.Setenv("GATEWAY_LOG_LEVEL", "debug")
		t.Setenv("GATEWAY_LOG_FORMAT", "console")

		flags, err := parseFlags(nil)
		require.NoError(t, err)
		assert.Equal(t, "/etc/loangw.yaml", flags.configPath)
		assert.Equal(t, "debug", flags.logLevel)
		assert.Equal(t, "console", flags.logFormat)
	})

	t.Run("flags win over environment", func(t *testing.T) {
		t.Setenv("GATEWAY_LOG_LEVEL", "debug")

		flags, err := parseFlags([]string{"-log-level", "warn", "-config", "", "-version"})
		require.NoError(t, err)
		assert.Equal(t, "warn", flags.logLevel)
		assert.Empty(t, flags.configPath)
		assert.True(t, flags.showVersion)
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := parseFlags([]string{"-bogus"})
		assert.Error(t, err)
	})
}

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf)

	assert.Contains(t, buf.String(), "loangw version dev")
	assert.Contains(t, buf.String(), "Git commit: unknown")
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		cfg, err := loadAndValidateConfig("")
		require.NoError(t, err)
		assert.Len(t, cfg.Services, 6)
		assert.Len(t, cfg.Routes, 8)
	})

	t.Run("file over defaults", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 9000
rateLimit:
  store: memory
`)
		cfg, err := loadAndValidateConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, config.StoreMemory, cfg.RateLimit.Store)
		assert.Len(t, cfg.Services, 6)
	})

	t.Run("shipped config", func(t *testing.T) {
		cfg, err := loadAndValidateConfig(filepath.Join("..", "..", defaultConfigPath))
		require.NoError(t, err)
		assert.Len(t, cfg.Services, 6)
		assert.Len(t, cfg.Routes, 8)
		assert.Equal(t, "rate_limit:", cfg.RateLimit.KeyPrefix)
		assert.False(t, cfg.Auth.Vault.Enabled)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadAndValidateConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorContains(t, err, "failed to load configuration")
	})

	t.Run("invalid config", func(t *testing.T) {
		path := writeConfig(t, `
routes:
  - prefix: /api/ghost
    service: ghost
`)
		_, err := loadAndValidateConfig(path)
		assert.ErrorContains(t, err, "invalid configuration")
		assert.ErrorContains(t, err, `unknown service "ghost"`)
	})
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestInitApplication_MemoryStore(t *testing.T) {
	cfg := appConfig(t)
	cfg.RateLimit.Store = config.StoreMemory

	app, err := initApplication(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { app.release(context.Background(), observability.NopLogger()) })

	require.NotNil(t, app.gateway)
	require.NotNil(t, app.limiter)
	assert.Equal(t, gateway.StateStopped, app.gateway.State())

	res, err := app.limiter.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestInitApplication_RedisWithFallback(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := appConfig(t)
	cfg.RateLimit.Redis.URL = "redis://" + mr.Addr() + "/0"

	app, err := initApplication(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { app.release(context.Background(), observability.NopLogger()) })

	res, err := app.limiter.Allow(context.Background(), "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.True(t, mr.Exists("rate_limit:10.0.0.2"))
}

func TestInitApplication_RateLimitDisabled(t *testing.T) {
	cfg := appConfig(t)
	cfg.RateLimit.Enabled = false

	app, err := initApplication(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { app.release(context.Background(), observability.NopLogger()) })

	assert.Nil(t, app.limiter)
}

func TestInitApplication_Errors(t *testing.T) {
	t.Run("no signing key", func(t *testing.T) {
		cfg := appConfig(t)
		cfg.Auth.SecretKey = ""

		_, err := initApplication(context.Background(), cfg, observability.NopLogger())
		assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
	})

	t.Run("bad redis url", func(t *testing.T) {
		cfg := appConfig(t)
		cfg.RateLimit.Redis.URL = "not-a-url"

		_, err := initApplication(context.Background(), cfg, observability.NopLogger())
		assert.ErrorContains(t, err, "invalid redis url")
	})
}

func TestWaitForShutdown(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := observability.NewLoggerFromZap(zap.New(core))

	cfg := appConfig(t)
	cfg.RateLimit.Store = config.StoreMemory
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = config.Duration(5 * time.Second)

	app, err := initApplication(context.Background(), cfg, logger)
	require.NoError(t, err)
	require.NoError(t, app.gateway.Start(context.Background()))
	require.Equal(t, gateway.StateRunning, app.gateway.State())

	sigCh := make(chan os.Signal, 1)
	sigCh <- syscall.SIGTERM

	done := make(chan struct{})
	go func() {
		waitForShutdown(app, sigCh, logger)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	assert.Equal(t, gateway.StateStopped, app.gateway.State())
	assert.Equal(t, 1, logs.FilterMessage("received shutdown signal").Len())
	assert.Equal(t, 1, logs.FilterMessage("gateway stopped").Len())
	assert.Zero(t, logs.FilterMessage("failed to stop gateway gracefully").Len())
}

func appConfig(t *testing.T) *config.GatewayConfig {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Auth.SecretKey = "test-signing-key"
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

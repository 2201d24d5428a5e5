package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, int64(100*1024*1024), cfg.Server.MaxUploadBytes())
	assert.Equal(t, 200.0, cfg.Engine.DPI)
	assert.Equal(t, 0.2, cfg.Engine.Threshold)
	assert.Equal(t, 3, cfg.Engine.Workers)
	assert.Equal(t, 5, cfg.Engine.OwnerQuota)
	assert.Equal(t, 10*time.Minute, cfg.Engine.Staleness.Std())
	assert.Equal(t, 24*time.Hour, cfg.Engine.GuestRetention.Std())
	assert.Equal(t, "remote", cfg.Detector.Kind)
	assert.Equal(t, 2, cfg.Detector.Remote.PoolSize)
	assert.Equal(t, "local", cfg.Storage.Ephemeral.Kind)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen: ":9999"
  max_upload_mb: 25
engine:
  dpi: 150
  staleness: 5m
detector:
  kind: remote
  remote:
    endpoint: "http://model:9090"
    pool_size: 4
storage:
  durable:
    kind: minio
  minio:
    endpoint: "minio:9000"
    bucket_name: "components"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Listen)
	assert.Equal(t, 25, cfg.Server.MaxUploadMB)
	assert.Equal(t, 150.0, cfg.Engine.DPI)
	assert.Equal(t, 5*time.Minute, cfg.Engine.Staleness.Std())
	assert.Equal(t, 4, cfg.Detector.Remote.PoolSize)
	assert.Equal(t, "minio", cfg.Storage.Durable.Kind)
	assert.Equal(t, "components", cfg.Storage.Minio.BucketName)

	// Untouched settings keep their defaults.
	assert.Equal(t, 0.2, cfg.Engine.Threshold)
	assert.Equal(t, "local", cfg.Storage.Ephemeral.Kind)
}

func TestEnvOverridesFileAndDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen: ":9999"
`)
	t.Setenv("SERVER_LISTEN", ":7777")
	t.Setenv("ENGINE_DPI", "300")
	t.Setenv("ENGINE_GUEST_RETENTION", "48h")
	t.Setenv("ENGINE_OWNER_QUOTA", "10")
	t.Setenv("DETECTOR_ENDPOINT", "http://sidecar:9001")
	t.Setenv("SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Listen)
	assert.Equal(t, 300.0, cfg.Engine.DPI)
	assert.Equal(t, 48*time.Hour, cfg.Engine.GuestRetention.Std())
	assert.Equal(t, 10, cfg.Engine.OwnerQuota)
	assert.Equal(t, "http://sidecar:9001", cfg.Detector.Remote.Endpoint)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Storage.Minio.UseSSL)
}

func TestTextractSettingsFollowAWSUnlessOverridden(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY", "ak")
	t.Setenv("AWS_SECRET_KEY", "sk")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Detector.Textract.Region)
	assert.Equal(t, "ak", cfg.Detector.Textract.AccessKey)

	t.Setenv("TEXTRACT_REGION", "eu-west-1")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Detector.Textract.Region)
	assert.Equal(t, "us-east-1", cfg.Storage.S3.Region)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, "server: [not a map"))
		assert.Error(t, err)
	})

	t.Run("bad duration in yaml", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, "engine:\n  staleness: soon\n"))
		assert.Error(t, err)
	})

	t.Run("bad integer in env", func(t *testing.T) {
		t.Setenv("ENGINE_WORKERS", "many")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("bad duration in env", func(t *testing.T) {
		t.Setenv("ENGINE_STALENESS", "soon")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Server.Listen = "" }},
		{"zero upload cap", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"zero workers", func(c *Config) { c.Engine.Workers = 0 }},
		{"threshold above one", func(c *Config) { c.Engine.Threshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.Engine.Threshold = -0.1 }},
		{"remote without endpoint", func(c *Config) { c.Detector.Remote.Endpoint = "" }},
		{"unknown detector kind", func(c *Config) { c.Detector.Kind = "psychic" }},
		{"textract without region", func(c *Config) {
			c.Detector.Kind = "textract"
			c.Detector.Textract.Region = ""
		}},
		{"local tier without root", func(c *Config) { c.Storage.Ephemeral.Root = "" }},
		{"minio tier without endpoint", func(c *Config) { c.Storage.Durable.Kind = "minio" }},
		{"s3 tier without bucket", func(c *Config) { c.Storage.Durable.Kind = "s3" }},
		{"unknown storage kind", func(c *Config) { c.Storage.Durable.Kind = "tape" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("threshold zero is allowed", func(t *testing.T) {
		cfg := Default()
		cfg.Engine.Threshold = 0
		assert.NoError(t, cfg.Validate())
	})
}

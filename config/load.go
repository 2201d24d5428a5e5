package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration: defaults, then the YAML file at path (or
// $CONFIG_FILE) when one is given, then environment variables. A .env file
// in the working directory is folded into the environment first, without
// overriding variables that are already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("SERVER_LISTEN", &c.Server.Listen)
	envList("SERVER_CORS_ORIGINS", &c.Server.CORSOrigins)
	envString("LOG_LEVEL", &c.Logging.Level)
	envString("LOG_ENCODING", &c.Logging.Encoding)
	envString("LOG_FILE", &c.Logging.File)

	envString("STORAGE_EPHEMERAL_KIND", &c.Storage.Ephemeral.Kind)
	envString("STORAGE_EPHEMERAL_ROOT", &c.Storage.Ephemeral.Root)
	envString("STORAGE_DURABLE_KIND", &c.Storage.Durable.Kind)
	envString("STORAGE_DURABLE_ROOT", &c.Storage.Durable.Root)

	envString("MINIO_ENDPOINT", &c.Storage.Minio.Endpoint)
	envString("MINIO_ACCESS_KEY", &c.Storage.Minio.AccessKey)
	envString("MINIO_SECRET_KEY", &c.Storage.Minio.SecretKey)
	envString("MINIO_BUCKET_NAME", &c.Storage.Minio.BucketName)
	envString("MINIO_REGION", &c.Storage.Minio.Region)

	envString("AWS_REGION", &c.Storage.S3.Region)
	envString("AWS_ACCESS_KEY", &c.Storage.S3.AccessKey)
	envString("AWS_SECRET_KEY", &c.Storage.S3.SecretKey)
	envString("AWS_S3_BUCKET_NAME", &c.Storage.S3.BucketName)
	envString("AWS_ENDPOINT", &c.Storage.S3.Endpoint)

	// Textract shares the AWS account used for S3 unless overridden.
	envString("AWS_REGION", &c.Detector.Textract.Region)
	envString("AWS_ACCESS_KEY", &c.Detector.Textract.AccessKey)
	envString("AWS_SECRET_KEY", &c.Detector.Textract.SecretKey)
	envString("TEXTRACT_REGION", &c.Detector.Textract.Region)
	envString("TEXTRACT_ACCESS_KEY", &c.Detector.Textract.AccessKey)
	envString("TEXTRACT_SECRET_KEY", &c.Detector.Textract.SecretKey)

	envString("DETECTOR_KIND", &c.Detector.Kind)
	envString("DETECTOR_ENDPOINT", &c.Detector.Remote.Endpoint)
	envString("DETECTOR_MODEL", &c.Detector.Remote.Model)

	for key, target := range map[string]*int{
		"SERVER_MAX_UPLOAD_MB": &c.Server.MaxUploadMB,
		"DETECTOR_POOL_SIZE":   &c.Detector.Remote.PoolSize,
		"ENGINE_WORKERS":       &c.Engine.Workers,
		"ENGINE_QUEUE_SIZE":    &c.Engine.QueueSize,
		"ENGINE_OWNER_QUOTA":   &c.Engine.OwnerQuota,
	} {
		if err := envInt(key, target); err != nil {
			return err
		}
	}

	for key, target := range map[string]*float64{
		"ENGINE_DPI":       &c.Engine.DPI,
		"ENGINE_THRESHOLD": &c.Engine.Threshold,
	} {
		if err := envFloat(key, target); err != nil {
			return err
		}
	}

	for key, target := range map[string]*Duration{
		"SERVER_SHUTDOWN_TIMEOUT":     &c.Server.ShutdownTimeout,
		"DETECTOR_ACQUIRE_TIMEOUT":    &c.Detector.Remote.AcquireTimeout,
		"DETECTOR_REQUEST_TIMEOUT":    &c.Detector.Remote.RequestTimeout,
		"ENGINE_STALENESS":            &c.Engine.Staleness,
		"ENGINE_REAPER_INTERVAL":      &c.Engine.ReaperInterval,
		"ENGINE_GUEST_RETENTION":      &c.Engine.GuestRetention,
		"ENGINE_GUEST_SWEEP_INTERVAL": &c.Engine.GuestSweepInterval,
	} {
		if err := envDuration(key, target); err != nil {
			return err
		}
	}

	if err := envBool("MINIO_USE_SSL", &c.Storage.Minio.UseSSL); err != nil {
		return err
	}
	return nil
}

func envString(key string, target *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = v
	}
}

func envList(key string, target *[]string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) > 0 {
		*target = items
	}
}

func envInt(key string, target *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*target = parsed
	return nil
}

func envFloat(key string, target *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: invalid number %q", key, v)
	}
	*target = parsed
	return nil
}

func envBool(key string, target *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	*target = parsed
	return nil
}

func envDuration(key string, target *Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, v)
	}
	*target = Duration(parsed)
	return nil
}

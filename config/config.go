// Package config assembles the service configuration from defaults, an
// optional YAML file and environment overrides, in that order.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts YAML and environment values in time.ParseDuration form,
// for example "90s" or "10m".
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) { return d.String(), nil }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Detector DetectorConfig `yaml:"detector"`
	Engine   EngineConfig   `yaml:"engine"`
}

// ServerConfig covers the HTTP surface.
type ServerConfig struct {
	Listen          string   `yaml:"listen"`
	MaxUploadMB     int      `yaml:"max_upload_mb"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// MaxUploadBytes is the upload cap in bytes.
func (c ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// LoggingConfig selects level and sinks. A non-empty File adds a rotated
// log file next to stdout.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
	File     string `yaml:"file"`
}

// StorageConfig wires the two tiers. Minio and S3 settings are shared
// between tiers that select those kinds.
type StorageConfig struct {
	Ephemeral TierConfig    `yaml:"ephemeral"`
	Durable   TierConfig    `yaml:"durable"`
	Minio     MinioSettings `yaml:"minio"`
	S3        S3Settings    `yaml:"s3"`
}

// TierConfig picks a backend for one tier. Root applies to the local kind.
type TierConfig struct {
	Kind string `yaml:"kind"`
	Root string `yaml:"root"`
}

type MinioSettings struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	BucketName string `yaml:"bucket_name"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
}

type S3Settings struct {
	Region     string `yaml:"region"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	BucketName string `yaml:"bucket_name"`
	Endpoint   string `yaml:"endpoint"`
}

// DetectorConfig selects the layout model backend.
type DetectorConfig struct {
	Kind     string           `yaml:"kind"`
	Remote   RemoteSettings   `yaml:"remote"`
	Textract TextractSettings `yaml:"textract"`
}

type RemoteSettings struct {
	Endpoint       string   `yaml:"endpoint"`
	Model          string   `yaml:"model"`
	PoolSize       int      `yaml:"pool_size"`
	AcquireTimeout Duration `yaml:"acquire_timeout"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

type TextractSettings struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// EngineConfig tunes job processing.
type EngineConfig struct {
	Workers            int      `yaml:"workers"`
	QueueSize          int      `yaml:"queue_size"`
	DPI                float64  `yaml:"dpi"`
	Threshold          float64  `yaml:"threshold"`
	Staleness          Duration `yaml:"staleness"`
	ReaperInterval     Duration `yaml:"reaper_interval"`
	GuestRetention     Duration `yaml:"guest_retention"`
	GuestSweepInterval Duration `yaml:"guest_sweep_interval"`
	OwnerQuota         int      `yaml:"owner_quota"`
}

// Default returns the configuration the service runs with when nothing else
// is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":8080",
			MaxUploadMB:     100,
			ShutdownTimeout: Duration(15 * time.Second),
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Storage: StorageConfig{
			Ephemeral: TierConfig{Kind: "local", Root: "data/ephemeral"},
			Durable:   TierConfig{Kind: "local", Root: "data/durable"},
		},
		Detector: DetectorConfig{
			Kind: "remote",
			Remote: RemoteSettings{
				Endpoint:       "http://localhost:9090",
				Model:          "doclayout-yolo",
				PoolSize:       2,
				AcquireTimeout: Duration(30 * time.Second),
				RequestTimeout: Duration(120 * time.Second),
			},
		},
		Engine: EngineConfig{
			Workers:            3,
			QueueSize:          128,
			DPI:                200,
			Threshold:          0.2,
			Staleness:          Duration(10 * time.Minute),
			ReaperInterval:     Duration(time.Minute),
			GuestRetention:     Duration(24 * time.Hour),
			GuestSweepInterval: Duration(time.Hour),
			OwnerQuota:         5,
		},
	}
}

// Validate rejects configurations the service cannot start with. It runs
// after all sources are merged.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive")
	}
	if c.Engine.QueueSize <= 0 {
		return fmt.Errorf("engine.queue_size must be positive")
	}
	if c.Engine.DPI <= 0 {
		return fmt.Errorf("engine.dpi must be positive")
	}
	if c.Engine.Threshold < 0 || c.Engine.Threshold > 1 {
		return fmt.Errorf("engine.threshold must be within [0, 1]")
	}
	if c.Engine.OwnerQuota <= 0 {
		return fmt.Errorf("engine.owner_quota must be positive")
	}

	switch c.Detector.Kind {
	case "remote":
		if c.Detector.Remote.Endpoint == "" {
			return fmt.Errorf("detector.remote.endpoint is required for the remote detector")
		}
	case "textract":
		if c.Detector.Textract.Region == "" {
			return fmt.Errorf("detector.textract.region is required for the textract detector")
		}
	default:
		return fmt.Errorf("unknown detector kind %q", c.Detector.Kind)
	}

	for name, tier := range map[string]TierConfig{
		"storage.ephemeral": c.Storage.Ephemeral,
		"storage.durable":   c.Storage.Durable,
	} {
		switch tier.Kind {
		case "local":
			if tier.Root == "" {
				return fmt.Errorf("%s.root is required for the local backend", name)
			}
		case "minio":
			if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.BucketName == "" {
				return fmt.Errorf("storage.minio.endpoint and bucket_name are required when %s uses minio", name)
			}
		case "s3":
			if c.Storage.S3.BucketName == "" || c.Storage.S3.Region == "" {
				return fmt.Errorf("storage.s3.bucket_name and region are required when %s uses s3", name)
			}
		default:
			return fmt.Errorf("unknown storage kind %q for %s", tier.Kind, name)
		}
	}
	return nil
}

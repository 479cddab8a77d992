package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultListen is the default HTTP listen address.
	DefaultListen = ":8080"

	// DefaultDatabasePath is the default SQLite database path.
	DefaultDatabasePath = "./data/snapforge.db"

	// DefaultStoragePath is the default local blob storage root.
	DefaultStoragePath = "./data/uploads"

	// DefaultThumbSize is the default thumbnail bounding size in pixels.
	DefaultThumbSize = 150

	// DefaultThumbQuality is the default thumbnail JPEG quality.
	DefaultThumbQuality = 60

	// DefaultMaxUploadSize is the default upload size ceiling in bytes.
	DefaultMaxUploadSize = 50 * 1024 * 1024

	// DefaultMaxGalleries is the default per-user gallery quota.
	DefaultMaxGalleries = 10
)

// Config is the root configuration for snapforge.
type Config struct {
	Global   GlobalConfig   `yaml:"global"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Images   ImagesConfig   `yaml:"images"`
	Users    UsersConfig    `yaml:"users"`
	SMTP     SMTPConfig     `yaml:"smtp,omitempty"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Auth    RateLimitTier `yaml:"auth,omitempty"`
	API     RateLimitTier `yaml:"api,omitempty"`
}

// RateLimitTier defines request limits for a specific tier.
type RateLimitTier struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty"`
}

// StorageConfig selects the blob storage backend. Exactly one backend is
// active per process.
type StorageConfig struct {
	Type  string              `yaml:"type"`
	Local *LocalStorageConfig `yaml:"local,omitempty"`
	S3    *S3StorageConfig    `yaml:"s3,omitempty"`
}

// LocalStorageConfig stores blobs under a base directory on disk.
type LocalStorageConfig struct {
	Path string `yaml:"path"`
}

// S3StorageConfig contains S3-compatible object storage settings.
type S3StorageConfig struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// ImagesConfig contains image processing defaults.
type ImagesConfig struct {
	ThumbSize        int      `yaml:"thumb_size"`
	ThumbQuality     int      `yaml:"thumb_quality"`
	MaxUploadSize    int64    `yaml:"max_upload_size"`
	AllowedMimeTypes []string `yaml:"allowed_mime_types,omitempty"`
}

// UsersConfig contains user account defaults.
type UsersConfig struct {
	DefaultMaxGalleries int `yaml:"default_max_galleries"`
}

// SMTPConfig contains mail relay settings for invitation notifications.
type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	From     string `yaml:"from,omitempty"`
	StartTLS bool   `yaml:"starttls"`
}

// defaultAllowedMimeTypes is the upload allow-list.
var defaultAllowedMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
}

// Load reads and parses a configuration file from the given path. An empty
// path yields the built-in defaults, so the server can start with no config
// file at all.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}

	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultDatabasePath
	}

	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}

	if c.Storage.Local == nil {
		c.Storage.Local = &LocalStorageConfig{}
	}

	if c.Storage.Local.Path == "" {
		c.Storage.Local.Path = DefaultStoragePath
	}

	if c.Images.ThumbSize == 0 {
		c.Images.ThumbSize = DefaultThumbSize
	}

	if c.Images.ThumbQuality == 0 {
		c.Images.ThumbQuality = DefaultThumbQuality
	}

	if c.Images.MaxUploadSize == 0 {
		c.Images.MaxUploadSize = DefaultMaxUploadSize
	}

	if len(c.Images.AllowedMimeTypes) == 0 {
		c.Images.AllowedMimeTypes = append(
			[]string(nil), defaultAllowedMimeTypes...,
		)
	}

	if c.Users.DefaultMaxGalleries == 0 {
		c.Users.DefaultMaxGalleries = DefaultMaxGalleries
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
}

// applyEnvOverrides overrides selected options from environment variables so
// containerized deployments can avoid mounting a config file for secrets.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SNAPFORGE_LOG_LEVEL"); v != "" {
		c.Global.LogLevel = v
	}

	if v := os.Getenv("SNAPFORGE_LISTEN"); v != "" {
		c.Server.Listen = v
	}

	if v := os.Getenv("SNAPFORGE_BASE_URL"); v != "" {
		c.Global.BaseURL = v
	}

	if v := os.Getenv("SNAPFORGE_DATABASE_PATH"); v != "" {
		c.Database.SQLite.Path = v
	}

	if v := os.Getenv("SNAPFORGE_STORAGE_PATH"); v != "" {
		c.Storage.Local.Path = v
	}

	if v := os.Getenv("SNAPFORGE_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}

	if c.Storage.S3 == nil &&
		(os.Getenv("SNAPFORGE_S3_BUCKET") != "" ||
			os.Getenv("SNAPFORGE_S3_ENDPOINT") != "") {
		c.Storage.S3 = &S3StorageConfig{}
	}

	if c.Storage.S3 != nil {
		if v := os.Getenv("SNAPFORGE_S3_BUCKET"); v != "" {
			c.Storage.S3.Bucket = v
		}

		if v := os.Getenv("SNAPFORGE_S3_ENDPOINT"); v != "" {
			c.Storage.S3.EndpointURL = v
		}

		if v := os.Getenv("SNAPFORGE_S3_REGION"); v != "" {
			c.Storage.S3.Region = v
		}

		if v := os.Getenv("SNAPFORGE_S3_ACCESS_KEY"); v != "" {
			c.Storage.S3.AccessKeyID = v
		}

		if v := os.Getenv("SNAPFORGE_S3_SECRET_KEY"); v != "" {
			c.Storage.S3.SecretAccessKey = v
		}
	}

	if v := os.Getenv("SNAPFORGE_SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}

	if v := os.Getenv("SNAPFORGE_MAX_UPLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Images.MaxUploadSize = n
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	default:
		return fmt.Errorf(
			"unsupported database driver %q", c.Database.Driver,
		)
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.Local == nil || c.Storage.Local.Path == "" {
			return fmt.Errorf("storage.local.path is required")
		}
	case "s3":
		if c.Storage.S3 == nil || c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	if c.Images.ThumbSize < 1 {
		return fmt.Errorf("images.thumb_size must be positive")
	}

	if c.Images.ThumbQuality < 1 || c.Images.ThumbQuality > 100 {
		return fmt.Errorf("images.thumb_quality must be 1-100")
	}

	if c.SMTP.Enabled {
		if c.SMTP.Host == "" {
			return fmt.Errorf("smtp.host is required when smtp is enabled")
		}

		if c.SMTP.From == "" {
			return fmt.Errorf("smtp.from is required when smtp is enabled")
		}
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/not-nullexception/render-thumbnails/internal/thumbs"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig
	MinIO    MinIOConfig
	Thumb    ThumbConfig
	Batch    BatchConfig
	Log      LogConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConnections int
	MinConnections int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	SSL       bool
	Location  string
}

// ThumbConfig holds the sizes every file is rendered at.
type ThumbConfig struct {
	Limits  []thumbs.Size
	Gallery thumbs.Size
	MaxArea int64
	Quality int
	Force   bool
}

type BatchConfig struct {
	Size int
}

type LogConfig struct {
	Level string
}

type MetricsConfig struct {
	Pushgateway string
	Job         string
}

type TracingConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// ConnectionString generates the connection string for the PostgreSQL database
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// Sizes returns the general limits followed by the gallery size.
func (c *ThumbConfig) Sizes() []thumbs.Size {
	sizes := make([]thumbs.Size, 0, len(c.Limits)+1)
	sizes = append(sizes, c.Limits...)
	return append(sizes, c.Gallery)
}

// Load returns the application configuration from the given env file, the
// environment and, when flags is not nil, the command line.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	if configFile == "" {
		configFile = ".env"
	}
	viper.SetConfigFile(configFile)
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if flags != nil {
		if err := bindFlags(flags); err != nil {
			return nil, fmt.Errorf("error binding flags: %w", err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		promoteFileKeys()
	}

	var config Config
	if err := unmarshalConfig(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// isNotFound reports a missing config file. SetConfigFile makes viper return
// the raw fs error instead of ConfigFileNotFoundError.
func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// promoteFileKeys exposes THUMB_LIMITS style keys read from the env file under
// their dotted names. Environment variables and flags still take precedence.
func promoteFileKeys() {
	for _, key := range viper.AllKeys() {
		if !strings.Contains(key, "_") {
			continue
		}
		viper.SetDefault(strings.ReplaceAll(key, "_", "."), viper.Get(key))
	}
}

func bindFlags(flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"batch.size":  "batch-size",
		"thumb.force": "force",
		"log.level":   "log-level",
	}
	for key, name := range bindings {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults() {
	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "wiki")
	viper.SetDefault("database.password", "wiki")
	viper.SetDefault("database.dbname", "wiki")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max.connections", 4)
	viper.SetDefault("database.min.connections", 1)

	// MinIO defaults
	viper.SetDefault("minio.endpoint", "localhost:9000")
	viper.SetDefault("minio.access.key", "minioadmin")
	viper.SetDefault("minio.secret.key", "minioadmin")
	viper.SetDefault("minio.bucket", "wiki-local-public")
	viper.SetDefault("minio.ssl", false)
	viper.SetDefault("minio.location", "us-east-1")

	// Thumbnail defaults
	viper.SetDefault("thumb.limits", "320x240,640x480,800x600,1024x768,1280x1024,2560x2048")
	viper.SetDefault("gallery.width", 120)
	viper.SetDefault("gallery.height", 120)
	viper.SetDefault("thumb.max.area", int64(10000*10000))
	viper.SetDefault("thumb.quality", 80)
	viper.SetDefault("thumb.force", false)

	viper.SetDefault("batch.size", 10)

	// Log defaults
	viper.SetDefault("log.level", "info")

	viper.SetDefault("metrics.pushgateway", "")
	viper.SetDefault("metrics.job", "render_thumbnails")

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4317")
	viper.SetDefault("tracing.service.name", "render-thumbnails")
	viper.SetDefault("tracing.service.version", "1.0.0")
	viper.SetDefault("tracing.environment", "production")
}

func unmarshalConfig(config *Config) error {
	// Database config
	config.Database.Host = viper.GetString("database.host")
	config.Database.Port = viper.GetInt("database.port")
	config.Database.User = viper.GetString("database.user")
	config.Database.Password = viper.GetString("database.password")
	config.Database.DBName = viper.GetString("database.dbname")
	config.Database.SSLMode = viper.GetString("database.sslmode")
	config.Database.MaxConnections = viper.GetInt("database.max.connections")
	config.Database.MinConnections = viper.GetInt("database.min.connections")

	// MinIO config
	config.MinIO.Endpoint = viper.GetString("minio.endpoint")
	config.MinIO.AccessKey = viper.GetString("minio.access.key")
	config.MinIO.SecretKey = viper.GetString("minio.secret.key")
	config.MinIO.Bucket = viper.GetString("minio.bucket")
	config.MinIO.SSL = viper.GetBool("minio.ssl")
	config.MinIO.Location = viper.GetString("minio.location")

	// Thumbnail config
	limits, err := thumbs.ParseSizes(viper.GetString("thumb.limits"))
	if err != nil {
		return fmt.Errorf("invalid thumb.limits: %w", err)
	}
	config.Thumb.Limits = limits
	gallery, err := thumbs.NewSize(viper.GetInt("gallery.width"), viper.GetInt("gallery.height"))
	if err != nil {
		return fmt.Errorf("invalid gallery size: %w", err)
	}
	config.Thumb.Gallery = gallery
	config.Thumb.MaxArea = viper.GetInt64("thumb.max.area")
	config.Thumb.Quality = viper.GetInt("thumb.quality")
	if config.Thumb.Quality <= 0 || config.Thumb.Quality > 100 {
		config.Thumb.Quality = 80
	}
	config.Thumb.Force = viper.GetBool("thumb.force")

	config.Batch.Size = viper.GetInt("batch.size")
	if config.Batch.Size <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", config.Batch.Size)
	}

	// Log config
	config.Log.Level = viper.GetString("log.level")

	config.Metrics.Pushgateway = viper.GetString("metrics.pushgateway")
	config.Metrics.Job = viper.GetString("metrics.job")

	config.Tracing.Enabled = viper.GetBool("tracing.enabled")
	config.Tracing.Endpoint = viper.GetString("tracing.endpoint")
	config.Tracing.ServiceName = viper.GetString("tracing.service.name")
	config.Tracing.ServiceVersion = viper.GetString("tracing.service.version")
	config.Tracing.Environment = viper.GetString("tracing.environment")

	return nil
}

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// SettingsFileEnv names an optional config file (yaml, toml or json) read before the environment.
const SettingsFileEnv = "FYTDL_SETTINGS"

type Config struct {
	// WebServer Configuration
	WebServerPort int `mapstructure:"WEBSERVER_PORT"`

	// Database Configuration
	DatabaseDSN     string `mapstructure:"DATABASE_DSN" validate:"required"`
	DatabaseRetries int    `mapstructure:"DATABASE_RETRIES"`

	// Encryption of credentials carried in download options
	EncryptionKey    string `mapstructure:"ENCRYPTION_KEY" validate:"required,len=64,hexadecimal"`
	EncryptionCipher string `mapstructure:"ENCRYPTION_CIPHER" validate:"oneof=chacha20-poly1305 xchacha20-poly1305 aes-256-gcm"`

	LogLevel string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	Ytdl   YtdlConfig
	Worker WorkerConfig
}

// YtdlConfig holds the defaults applied to every download's extractor options.
type YtdlConfig struct {
	Binary                string `mapstructure:"YTDL_BINARY"`
	BaseDownloadPath      string `mapstructure:"YTDL_BASE_DOWNLOAD_PATH" validate:"required"`
	DefaultOutputTemplate string `mapstructure:"YTDL_DEFAULT_OUTPUT_TEMPLATE" validate:"required"`
	DownloadArchive       string `mapstructure:"YTDL_DOWNLOAD_ARCHIVE"`
	ArchiveBackend        string `mapstructure:"YTDL_ARCHIVE_BACKEND" validate:"oneof=postgres file memory"`
	ArchiveDir            string `mapstructure:"YTDL_ARCHIVE_DIR"`
}

type WorkerConfig struct {
	Concurrency           int           `mapstructure:"WORKER_CONCURRENCY" validate:"gte=1,lte=64"`
	FailureThreshold      int           `mapstructure:"FAILURE_THRESHOLD" validate:"gte=1"`
	ProgressFlushInterval time.Duration `mapstructure:"PROGRESS_FLUSH_INTERVAL" validate:"gte=0"`
	PollInterval          time.Duration `mapstructure:"QUEUE_POLL_INTERVAL" validate:"gt=0"`
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag != "" {
			viper.BindEnv(tag)
		}

		// Nested structs are squashed: their keys live at the top level.
		if field.Type.Kind() == reflect.Struct && tag == "" {
			nestedTyp := fieldVal.Type()
			for j := 0; j < fieldVal.NumField(); j++ {
				nestedTag := nestedTyp.Field(j).Tag.Get("mapstructure")
				if nestedTag != "" {
					viper.BindEnv(nestedTag)
				}
			}
		}
	}
}

func setDefaults() {
	viper.SetDefault("WEBSERVER_PORT", 8080)
	viper.SetDefault("DATABASE_RETRIES", 10)
	viper.SetDefault("ENCRYPTION_CIPHER", "chacha20-poly1305")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("YTDL_BINARY", "yt-dlp")
	viper.SetDefault("YTDL_BASE_DOWNLOAD_PATH", "/var/run/fytdl/downloads")
	viper.SetDefault("YTDL_DEFAULT_OUTPUT_TEMPLATE", "%(title)s-%(id)s.%(ext)s")
	viper.SetDefault("YTDL_ARCHIVE_BACKEND", "postgres")
	viper.SetDefault("YTDL_ARCHIVE_DIR", "/var/run/fytdl/archives")

	viper.SetDefault("WORKER_CONCURRENCY", 2)
	viper.SetDefault("FAILURE_THRESHOLD", 3)
	viper.SetDefault("PROGRESS_FLUSH_INTERVAL", "0s")
	viper.SetDefault("QUEUE_POLL_INTERVAL", "5s")
}

func LoadConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()
	setDefaults()

	if path := strings.TrimSpace(os.Getenv(SettingsFileEnv)); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		slog.Info("Read configuration file", "path", viper.ConfigFileUsed())
	}

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Squashed sections are decoded from the same flat key space.
	if err := viper.Unmarshal(&cfg.Ytdl); err != nil {
		return nil, fmt.Errorf("unmarshal ytdl config: %w", err)
	}
	if err := viper.Unmarshal(&cfg.Worker); err != nil {
		return nil, fmt.Errorf("unmarshal worker config: %w", err)
	}

	slog.Info("Loaded configuration", "config", cfg.Redacted())

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Redacted returns a copy safe to print or log.
func (c Config) Redacted() Config {
	if c.EncryptionKey != "" {
		c.EncryptionKey = "<redacted>"
	}
	if c.DatabaseDSN != "" {
		c.DatabaseDSN = redactDSN(c.DatabaseDSN)
	}
	return c
}

func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "<redacted>" + dsn[at:]
}

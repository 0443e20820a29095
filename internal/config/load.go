package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. FILESERVER_UPLOAD_MAX_SIZE.
const EnvPrefix = "FILESERVER"

// DefaultMaxUploadSize is the default upload ceiling in bytes (50 MiB).
const DefaultMaxUploadSize int64 = 52428800

// keys without defaults still need an explicit binding so that Unmarshal
// picks them up from the environment.
var boundKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"upload.s3.bucket",
	"upload.s3.region",
	"upload.s3.endpoint",
	"upload.s3.access_key_id",
	"upload.s3.secret_access_key",
	"upload.s3.prefix",
	"queue.consumer_name",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.api_prefix", "/api")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("auth.access_token_lifetime_minutes", 30)
	v.SetDefault("auth.refresh_token_lifetime_minutes", 7*24*60)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_size", DefaultMaxUploadSize)
	v.SetDefault("upload.backend", "local")

	v.SetDefault("queue.broker_url", "memory://")
	v.SetDefault("queue.result_backend_url", "memory://")
	v.SetDefault("queue.result_expiry", "1h")
	v.SetDefault("queue.worker_count", 2)
	v.SetDefault("queue.queue_size", 100)
	v.SetDefault("queue.consumer_group", "fileserver-workers")
}

// Load configuration from defaults, an optional config.yaml in the working
// directory and environment variables. Environment variables take precedence.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range boundKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Queue.ConsumerName == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		cfg.Queue.ConsumerName = host
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags plus the cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Upload.Backend == "s3" && cfg.Upload.S3.Bucket == "" {
		return fmt.Errorf("config validation failed: upload.s3.bucket is required for the s3 backend")
	}

	return nil
}

package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Upload   UploadConfig   `mapstructure:"upload" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port           int      `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel       string   `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	APIPrefix      string   `mapstructure:"api_prefix" validate:"required,startswith=/"`
	AllowedOrigins []string `mapstructure:"allowed_origins" validate:"required,min=1"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret" validate:"required,min=32"`
	AccessTokenLifetimeMinutes  int    `mapstructure:"access_token_lifetime_minutes" validate:"required,gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
	BcryptCost                  int    `mapstructure:"bcrypt_cost" validate:"required,gte=4,lte=31"`
}

// UploadConfig controls where uploaded bytes are written and how large they may be.
type UploadConfig struct {
	Dir     string   `mapstructure:"dir" validate:"required_if=Backend local"`
	MaxSize int64    `mapstructure:"max_size" validate:"required,gt=0"`
	Backend string   `mapstructure:"backend" validate:"required,oneof=local s3"`
	S3      S3Config `mapstructure:"s3"`
}

// S3Config configures the S3-compatible blob backend. Endpoint is only set
// for MinIO or other non-AWS deployments.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
}

// QueueConfig configures the task broker, the result backend and the worker pool.
//
// BrokerURL schemes: memory://, redis://, rediss://, kafka://host:port[,host:port]/topic.
// ResultBackendURL schemes: memory://, redis://, rediss://.
type QueueConfig struct {
	BrokerURL        string        `mapstructure:"broker_url" validate:"required"`
	ResultBackendURL string        `mapstructure:"result_backend_url" validate:"required"`
	ResultExpiry     time.Duration `mapstructure:"result_expiry" validate:"required,gt=0"`
	WorkerCount      int           `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize        int           `mapstructure:"queue_size" validate:"required,gt=0"`
	ConsumerGroup    string        `mapstructure:"consumer_group" validate:"required"`
	ConsumerName     string        `mapstructure:"consumer_name"`
}

// AccessTokenLifetime returns the access token lifetime as a duration.
func (c AuthConfig) AccessTokenLifetime() time.Duration {
	return time.Duration(c.AccessTokenLifetimeMinutes) * time.Minute
}

// RefreshTokenLifetime returns the refresh token lifetime as a duration.
func (c AuthConfig) RefreshTokenLifetime() time.Duration {
	return time.Duration(c.RefreshTokenLifetimeMinutes) * time.Minute
}

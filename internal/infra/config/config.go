package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	OTP       OTPSettings       `mapstructure:"otp"`
	Download  DownloadSettings  `mapstructure:"download"`
	Blob      BlobSettings      `mapstructure:"blob"`
	Mail      MailSettings      `mapstructure:"mail"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Name               string   `mapstructure:"name"`
	Env                string   `mapstructure:"env"`
	Host               string   `mapstructure:"host"`
	Port               int      `mapstructure:"port"`
	BaseURL            string   `mapstructure:"base_url"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// DSN renders the pgx connection string.
func (s PostgresSettings) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Database, s.SSLMode)
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// KafkaSettings configures the Kafka producer and fulfilment consumer
type KafkaSettings struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	Async         bool     `mapstructure:"async"`
}

type JWTSettings struct {
	KeyDirectory   string        `mapstructure:"key_directory"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// OTPSettings configures one-time-code issuance and verification
type OTPSettings struct {
	TTL         time.Duration `mapstructure:"ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// DownloadSettings configures download token and presign lifetimes
type DownloadSettings struct {
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	PresignTTL time.Duration `mapstructure:"presign_ttl"`
}

// BlobSettings configures the object-store presigner
type BlobSettings struct {
	Endpoint string `mapstructure:"endpoint"`
	Bucket   string `mapstructure:"bucket"`
	Secret   string `mapstructure:"secret"`
}

// MailSettings configures outbound email identity
type MailSettings struct {
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	SendOTPMaxAttempts  int           `mapstructure:"send_otp_max_attempts"`
	VerifyMaxAttempts   int           `mapstructure:"verify_max_attempts"`
	DownloadMaxAttempts int           `mapstructure:"download_max_attempts"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("BM")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.base_url",
		"app.cors_allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"kafka.enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.consumer_group",
		"kafka.async",
		"jwt.key_directory",
		"jwt.issuer",
		"jwt.access_token_ttl",
		"otp.ttl",
		"otp.max_attempts",
		"download.token_ttl",
		"download.presign_ttl",
		"blob.endpoint",
		"blob.bucket",
		"blob.secret",
		"mail.from_address",
		"mail.from_name",
		"rate_limit.window_duration",
		"rate_limit.send_otp_max_attempts",
		"rate_limit.verify_max_attempts",
		"rate_limit.download_max_attempts",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bundle-market")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.base_url", "http://localhost:3000")
	v.SetDefault("app.cors_allowed_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "market")
	v.SetDefault("postgres.password", "market_password")
	v.SetDefault("postgres.database", "market")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "market")
	v.SetDefault("kafka.consumer_group", "market-fulfillment")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.key_directory", "")
	v.SetDefault("jwt.issuer", "bundle-market")
	v.SetDefault("jwt.access_token_ttl", "15m")

	v.SetDefault("otp.ttl", "10m")
	v.SetDefault("otp.max_attempts", 5)

	v.SetDefault("download.token_ttl", "24h")
	v.SetDefault("download.presign_ttl", "1h")

	v.SetDefault("blob.endpoint", "http://localhost:9000")
	v.SetDefault("blob.bucket", "bundle-assets")
	v.SetDefault("blob.secret", "dev-presign-secret")

	v.SetDefault("mail.from_address", "noreply@bundle-market.local")
	v.SetDefault("mail.from_name", "Bundle Market")

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.send_otp_max_attempts", 3)
	v.SetDefault("rate_limit.verify_max_attempts", 10)
	v.SetDefault("rate_limit.download_max_attempts", 30)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "BM_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

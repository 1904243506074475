package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	OIDC      OIDCConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Capture   CaptureConfig
	Encode    EncodeConfig
	Webhook   WebhookConfig
	Stream    StreamConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

// OIDCConfig points at the identity provider whose signing keys verify
// API tokens. Empty issuer disables JWKS verification and the HMAC
// secret alone is used.
type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type RateLimitConfig struct {
	SessionsPerHour     int
	DestinationsPerHour int
}

type StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type CaptureConfig struct {
	Concurrency        int
	MaxAttempts        int
	MaxDuration        time.Duration
	RetryBackoffBase   time.Duration
	RetryBackoffCap    time.Duration
	RosterPollInterval time.Duration
	EngineCommand      []string
	TransientRoster    bool
	OutputFormat       string
	WorkDir            string
}

type EncodeConfig struct {
	Concurrency      int
	MaxAttempts      int
	MaxDuration      time.Duration
	FFmpegPath       string
	FFprobePath      string
	StagingDir       string
	DefaultQuality   string
	RetryBackoffBase time.Duration
	RetryBackoffCap  time.Duration
}

type WebhookConfig struct {
	Timeout        time.Duration
	DefaultRetries int
	BackoffBase    time.Duration
}

type StreamConfig struct {
	ChunkInterval time.Duration
	MaxChunkBytes int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("oidc.issuer", "")
	viper.SetDefault("oidc.client_id", "")
	viper.SetDefault("ratelimit.sessions_per_hour", 30)
	viper.SetDefault("ratelimit.destinations_per_hour", 60)
	viper.SetDefault("storage.bucket_name", "meetscribe-recordings")
	viper.SetDefault("capture.concurrency", 2)
	viper.SetDefault("capture.max_attempts", 3)
	viper.SetDefault("capture.max_duration", "4h")
	viper.SetDefault("capture.retry_backoff_base", "5s")
	viper.SetDefault("capture.retry_backoff_cap", "10m")
	viper.SetDefault("capture.roster_poll_interval", "2s")
	viper.SetDefault("capture.engine_command", []string{"meetscribe-bot"})
	viper.SetDefault("capture.transient_roster", false)
	viper.SetDefault("capture.output_format", "mp4")
	viper.SetDefault("capture.work_dir", "/tmp/meetscribe")
	viper.SetDefault("encode.concurrency", 4)
	viper.SetDefault("encode.max_attempts", 3)
	viper.SetDefault("encode.max_duration", "2h")
	viper.SetDefault("encode.ffmpeg_path", "ffmpeg")
	viper.SetDefault("encode.ffprobe_path", "ffprobe")
	viper.SetDefault("encode.staging_dir", "/tmp/meetscribe")
	viper.SetDefault("encode.default_quality", "balanced")
	viper.SetDefault("encode.retry_backoff_base", "5s")
	viper.SetDefault("encode.retry_backoff_cap", "10m")
	viper.SetDefault("webhook.timeout", "10s")
	viper.SetDefault("webhook.default_retries", 5)
	viper.SetDefault("webhook.backoff_base", "1s")
	viper.SetDefault("stream.chunk_interval", "3s")
	viper.SetDefault("stream.max_chunk_bytes", 1<<20)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		OIDC: OIDCConfig{
			Issuer:   viper.GetString("oidc.issuer"),
			ClientID: viper.GetString("oidc.client_id"),
		},
		RateLimit: RateLimitConfig{
			SessionsPerHour:     viper.GetInt("ratelimit.sessions_per_hour"),
			DestinationsPerHour: viper.GetInt("ratelimit.destinations_per_hour"),
		},
		Storage: StorageConfig{
			AccountID:       viper.GetString("storage.account_id"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		Capture: CaptureConfig{
			Concurrency:        viper.GetInt("capture.concurrency"),
			MaxAttempts:        viper.GetInt("capture.max_attempts"),
			MaxDuration:        viper.GetDuration("capture.max_duration"),
			RetryBackoffBase:   viper.GetDuration("capture.retry_backoff_base"),
			RetryBackoffCap:    viper.GetDuration("capture.retry_backoff_cap"),
			RosterPollInterval: viper.GetDuration("capture.roster_poll_interval"),
			EngineCommand:      viper.GetStringSlice("capture.engine_command"),
			TransientRoster:    viper.GetBool("capture.transient_roster"),
			OutputFormat:       viper.GetString("capture.output_format"),
			WorkDir:            viper.GetString("capture.work_dir"),
		},
		Encode: EncodeConfig{
			Concurrency:      viper.GetInt("encode.concurrency"),
			MaxAttempts:      viper.GetInt("encode.max_attempts"),
			MaxDuration:      viper.GetDuration("encode.max_duration"),
			FFmpegPath:       viper.GetString("encode.ffmpeg_path"),
			FFprobePath:      viper.GetString("encode.ffprobe_path"),
			StagingDir:       viper.GetString("encode.staging_dir"),
			DefaultQuality:   viper.GetString("encode.default_quality"),
			RetryBackoffBase: viper.GetDuration("encode.retry_backoff_base"),
			RetryBackoffCap:  viper.GetDuration("encode.retry_backoff_cap"),
		},
		Webhook: WebhookConfig{
			Timeout:        viper.GetDuration("webhook.timeout"),
			DefaultRetries: viper.GetInt("webhook.default_retries"),
			BackoffBase:    viper.GetDuration("webhook.backoff_base"),
		},
		Stream: StreamConfig{
			ChunkInterval: viper.GetDuration("stream.chunk_interval"),
			MaxChunkBytes: viper.GetInt("stream.max_chunk_bytes"),
		},
	}

	return cfg, nil
}

package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	WhatsApp  WhatsAppConfig
	Media     MediaConfig
	Agent     AgentConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Database      string
	Schema        string
	MigrationsDir string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Expiry int // in minutes, used by cmd/admintoken
}

// WhatsAppConfig holds the Cloud API credentials and webhook secrets
type WhatsAppConfig struct {
	APIBase       string
	Token         string
	PhoneNumberID string
	VerifyToken   string
	AppSecret     string
	HTTPTimeout   time.Duration
}

// MediaConfig selects the media host: S3 when a bucket and credentials are set, local disk otherwise
type MediaConfig struct {
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string
	S3PublicURL        string
	LocalDir           string
	PublicBaseURL      string
}

// AgentConfig tunes the conversational inventory assistant
type AgentConfig struct {
	SessionBackend string // memory or redis
	StateTimeout   time.Duration
	Debounce       time.Duration
	MediaTargetTTL time.Duration
	ProcessTimeout time.Duration
	ImageMaxBytes  int64
	VideoMaxBytes  int64
	VideoMaxSecs   int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// UsesS3 reports whether uploads go to S3 rather than local disk
func (m MediaConfig) UsesS3() bool {
	return m.S3Bucket != "" && m.AWSAccessKeyID != ""
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_MIGRATIONS_DIR", "migrations")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_EXPIRY", 60)
	viper.SetDefault("WHATSAPP_API_BASE", "https://graph.facebook.com/v19.0")
	viper.SetDefault("WHATSAPP_HTTP_TIMEOUT", "15s")
	viper.SetDefault("AWS_REGION", "ap-south-1")
	viper.SetDefault("MEDIA_LOCAL_DIR", "uploads")
	viper.SetDefault("MEDIA_PUBLIC_BASE_URL", "http://localhost:8080/media")
	viper.SetDefault("AGENT_SESSION_BACKEND", "memory")
	viper.SetDefault("AGENT_STATE_TIMEOUT", "10m")
	viper.SetDefault("AGENT_DEBOUNCE", "3s")
	viper.SetDefault("AGENT_MEDIA_TARGET_TTL", "5m")
	viper.SetDefault("AGENT_PROCESS_TIMEOUT", "60s")
	viper.SetDefault("AGENT_IMAGE_MAX_BYTES", 2*1024*1024)
	viper.SetDefault("AGENT_VIDEO_MAX_BYTES", 64*1024*1024)
	viper.SetDefault("AGENT_VIDEO_MAX_SECONDS", 20)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 60)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:          viper.GetString("DB_HOST"),
			Port:          viper.GetString("DB_PORT"),
			User:          viper.GetString("DB_USER"),
			Password:      viper.GetString("DB_PASSWORD"),
			Database:      viper.GetString("DB_DATABASE"),
			Schema:        viper.GetString("DB_SCHEMA"),
			MigrationsDir: viper.GetString("DB_MIGRATIONS_DIR"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
			Expiry: viper.GetInt("JWT_EXPIRY"),
		},
		WhatsApp: WhatsAppConfig{
			APIBase:       viper.GetString("WHATSAPP_API_BASE"),
			Token:         viper.GetString("WHATSAPP_TOKEN"),
			PhoneNumberID: viper.GetString("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:   viper.GetString("WHATSAPP_VERIFY_TOKEN"),
			AppSecret:     viper.GetString("WHATSAPP_APP_SECRET"),
			HTTPTimeout:   viper.GetDuration("WHATSAPP_HTTP_TIMEOUT"),
		},
		Media: MediaConfig{
			AWSRegion:          viper.GetString("AWS_REGION"),
			AWSAccessKeyID:     viper.GetString("AWS_ACCESS_KEY_ID"),
			AWSSecretAccessKey: viper.GetString("AWS_SECRET_ACCESS_KEY"),
			S3Bucket:           viper.GetString("AWS_S3_BUCKET"),
			S3PublicURL:        viper.GetString("AWS_S3_PUBLIC_URL"),
			LocalDir:           viper.GetString("MEDIA_LOCAL_DIR"),
			PublicBaseURL:      viper.GetString("MEDIA_PUBLIC_BASE_URL"),
		},
		Agent: AgentConfig{
			SessionBackend: viper.GetString("AGENT_SESSION_BACKEND"),
			StateTimeout:   viper.GetDuration("AGENT_STATE_TIMEOUT"),
			Debounce:       viper.GetDuration("AGENT_DEBOUNCE"),
			MediaTargetTTL: viper.GetDuration("AGENT_MEDIA_TARGET_TTL"),
			ProcessTimeout: viper.GetDuration("AGENT_PROCESS_TIMEOUT"),
			ImageMaxBytes:  viper.GetInt64("AGENT_IMAGE_MAX_BYTES"),
			VideoMaxBytes:  viper.GetInt64("AGENT_VIDEO_MAX_BYTES"),
			VideoMaxSecs:   viper.GetInt("AGENT_VIDEO_MAX_SECONDS"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}
}

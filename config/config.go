package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	WebRTC   WebRTCConfig
	Realtime RealtimeConfig
	Paystack PaystackConfig
	Email    EmailConfig
	Sweeper  SweeperConfig
	AWS      AWSConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	FrontendURL        string // used to build payment callback URLs
	RunBackground      bool   // run email worker + sweeper inside the API process
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// WebRTCConfig holds STUN/TURN servers handed to mesh clients.
type WebRTCConfig struct {
	ICEUrls        []string // comma-separated in env
	TURNUsername   string
	TURNCredential string
}

// RealtimeConfig controls the room layer.
type RealtimeConfig struct {
	// PresenceStore is "memory" (single process) or "redis" (shared across processes).
	PresenceStore   string
	PresenceTTL     time.Duration
	WSRequireAuth   bool
	SendBufferSize  int
	MaxMessageBytes int64
}

// PaystackConfig for lesson-fee checkout.
type PaystackConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
	Currency  string
}

// EmailConfig for confirmation emails. Empty APIKey selects the console mailer.
type EmailConfig struct {
	FromAddress string
	FromName    string
	APIKey      string // SendGrid
}

// SweeperConfig controls the subscription expiry sweep.
type SweeperConfig struct {
	Interval time.Duration
	// AlignMidnight delays the first run to the next local midnight.
	AlignMidnight bool
	LockTTL       time.Duration
}

// AWSConfig holds credentials and the bucket used for sweep reports.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ReportsBucket   string
}

// LogConfig is passed to pkg/logger.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "5001"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			FrontendURL:        strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
			RunBackground:      getEnvBool("RUN_BACKGROUND_JOBS", true),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "yare"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		WebRTC: WebRTCConfig{
			ICEUrls:        splitTrim(getEnv("WEBRTC_ICE_URLS", "stun:stun.l.google.com:19302"), ","),
			TURNUsername:   getEnv("WEBRTC_TURN_USERNAME", ""),
			TURNCredential: getEnv("WEBRTC_TURN_CREDENTIAL", ""),
		},
		Realtime: RealtimeConfig{
			PresenceStore:   strings.ToLower(getEnv("PRESENCE_STORE", "memory")),
			PresenceTTL:     getEnvDuration("PRESENCE_TTL", 12*time.Hour),
			WSRequireAuth:   getEnvBool("WS_REQUIRE_AUTH", false),
			SendBufferSize:  getEnvInt("WS_SEND_BUFFER", 256),
			MaxMessageBytes: int64(getEnvInt("WS_MAX_MESSAGE_BYTES", 65536)),
		},
		Paystack: PaystackConfig{
			SecretKey: getEnv("PAYSTACK_SECRET_KEY", ""),
			BaseURL:   strings.TrimRight(getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"), "/"),
			Timeout:   getEnvDuration("PAYSTACK_TIMEOUT", 15*time.Second),
			Currency:  getEnv("PAYSTACK_CURRENCY", "NGN"),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@yare.ng"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Yare Learning Hub"),
			APIKey:      getEnv("SENDGRID_API_KEY", ""),
		},
		Sweeper: SweeperConfig{
			Interval:      getEnvDuration("SWEEP_INTERVAL", 24*time.Hour),
			AlignMidnight: getEnvBool("SWEEP_ALIGN_MIDNIGHT", true),
			LockTTL:       getEnvDuration("SWEEP_LOCK_TTL", 30*time.Minute),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ReportsBucket:   getEnv("AWS_S3_REPORTS_BUCKET", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	if cfg.Realtime.PresenceStore != "memory" && cfg.Realtime.PresenceStore != "redis" {
		return nil, fmt.Errorf("PRESENCE_STORE must be memory or redis, got %q", cfg.Realtime.PresenceStore)
	}
	if cfg.Realtime.PresenceStore == "redis" && !cfg.Redis.Enabled {
		return nil, fmt.Errorf("PRESENCE_STORE=redis requires REDIS_ENABLED")
	}
	if cfg.Sweeper.Interval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

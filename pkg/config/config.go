package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	QueueBackendMemory   = "memory"
	QueueBackendPostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	GradeAPI     GradeAPIConfig
	GradesCache  GradesCacheConfig
	Grading      GradingConfig
	OfflineQueue OfflineQueueConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GradeAPIConfig points at the external grade persistence API.
type GradeAPIConfig struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	HealthURL     string
	ProbeInterval time.Duration
	RateLimit     float64
	RateBurst     int
}

// GradesCacheConfig governs caching of persisted grades fetched per assessment.
type GradesCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// GradingConfig tunes bulk operations and saves.
type GradingConfig struct {
	SaveConcurrency int
	ClampScores     bool
	StartOnline     bool
}

// OfflineQueueConfig selects the queue backend and flush worker behaviour.
type OfflineQueueConfig struct {
	Backend         string
	FlushWorkers    int
	FlushRetries    int
	FlushRetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	baseURL := strings.TrimRight(v.GetString("GRADE_API_BASE_URL"), "/")
	healthURL := v.GetString("GRADE_API_HEALTH_URL")
	if healthURL == "" && baseURL != "" {
		healthURL = baseURL + "/health"
	}
	cfg.GradeAPI = GradeAPIConfig{
		BaseURL:       baseURL,
		Token:         v.GetString("GRADE_API_TOKEN"),
		Timeout:       parseDuration(v.GetString("GRADE_API_TIMEOUT"), 10*time.Second),
		HealthURL:     healthURL,
		ProbeInterval: parseDuration(v.GetString("GRADE_API_PROBE_INTERVAL"), 15*time.Second),
		RateLimit:     v.GetFloat64("GRADE_API_RATE_LIMIT"),
		RateBurst:     v.GetInt("GRADE_API_RATE_BURST"),
	}

	cfg.GradesCache = GradesCacheConfig{
		Enabled: v.GetBool("ENABLE_GRADES_CACHE"),
		TTL:     parseDuration(v.GetString("GRADES_CACHE_TTL"), 2*time.Minute),
	}

	concurrency := v.GetInt("GRADING_SAVE_CONCURRENCY")
	if concurrency <= 0 {
		concurrency = 1
	}
	cfg.Grading = GradingConfig{
		SaveConcurrency: concurrency,
		ClampScores:     v.GetBool("GRADING_CLAMP_SCORES"),
		StartOnline:     v.GetBool("GRADING_START_ONLINE"),
	}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("OFFLINE_QUEUE_BACKEND")))
	if backend != QueueBackendPostgres {
		backend = QueueBackendMemory
	}
	cfg.OfflineQueue = OfflineQueueConfig{
		Backend:         backend,
		FlushWorkers:    v.GetInt("OFFLINE_FLUSH_WORKERS"),
		FlushRetries:    v.GetInt("OFFLINE_FLUSH_RETRIES"),
		FlushRetryDelay: parseDuration(v.GetString("OFFLINE_FLUSH_RETRY_DELAY"), 5*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "gradesync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRADE_API_BASE_URL", "http://localhost:3000/api")
	v.SetDefault("GRADE_API_TOKEN", "")
	v.SetDefault("GRADE_API_TIMEOUT", "10s")
	v.SetDefault("GRADE_API_HEALTH_URL", "")
	v.SetDefault("GRADE_API_PROBE_INTERVAL", "15s")
	v.SetDefault("GRADE_API_RATE_LIMIT", 0)
	v.SetDefault("GRADE_API_RATE_BURST", 5)

	v.SetDefault("ENABLE_GRADES_CACHE", false)
	v.SetDefault("GRADES_CACHE_TTL", "2m")

	v.SetDefault("GRADING_SAVE_CONCURRENCY", 1)
	v.SetDefault("GRADING_CLAMP_SCORES", false)
	v.SetDefault("GRADING_START_ONLINE", true)

	v.SetDefault("OFFLINE_QUEUE_BACKEND", QueueBackendMemory)
	v.SetDefault("OFFLINE_FLUSH_WORKERS", 1)
	v.SetDefault("OFFLINE_FLUSH_RETRIES", 3)
	v.SetDefault("OFFLINE_FLUSH_RETRY_DELAY", "5s")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

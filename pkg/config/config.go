package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Metrics       MetricsConfig
	Substitution  SubstitutionConfig
	Notifications NotificationConfig
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	AutoMigrate    bool
	MigrationTable string
}

type RedisConfig struct {
	Enabled  bool
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

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// SubstitutionConfig carries the recommendation scoring knobs.
type SubstitutionConfig struct {
	WeightAvailability float64
	WeightWorkload     float64
	WeightSubject      float64
	WeightAttendance   float64
	WorkloadCeiling    float64
	DefaultAttendance  float64
	MaxResults         int
	IncludeUnavailable bool
	CacheTTL           time.Duration
	// SubjectFamilies overrides the built-in family table, e.g.
	// "mathematics:algebra|geometry;science:physics|chemistry".
	SubjectFamilies string
}

// NotificationConfig governs the asynchronous notification dispatcher.
type NotificationConfig struct {
	Enabled       bool
	Workers       int
	Retries       int
	RetryDelay    time.Duration
	ChannelPrefix string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		Name:           v.GetString("DB_NAME"),
		SSLMode:        v.GetString("DB_SSL_MODE"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:    v.GetBool("MIGRATIONS_AUTO"),
		MigrationTable: v.GetString("MIGRATIONS_TABLE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
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

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
		Path:    v.GetString("METRICS_PATH"),
	}

	cfg.Substitution = SubstitutionConfig{
		WeightAvailability: v.GetFloat64("SUBSTITUTION_WEIGHT_AVAILABILITY"),
		WeightWorkload:     v.GetFloat64("SUBSTITUTION_WEIGHT_WORKLOAD"),
		WeightSubject:      v.GetFloat64("SUBSTITUTION_WEIGHT_SUBJECT"),
		WeightAttendance:   v.GetFloat64("SUBSTITUTION_WEIGHT_ATTENDANCE"),
		WorkloadCeiling:    v.GetFloat64("SUBSTITUTION_WORKLOAD_CEILING"),
		DefaultAttendance:  v.GetFloat64("SUBSTITUTION_DEFAULT_ATTENDANCE"),
		MaxResults:         v.GetInt("SUBSTITUTION_MAX_RESULTS"),
		IncludeUnavailable: v.GetBool("SUBSTITUTION_INCLUDE_UNAVAILABLE"),
		CacheTTL:           parseDuration(v.GetString("SUBSTITUTION_RECOMMENDATION_CACHE_TTL"), time.Minute),
		SubjectFamilies:    v.GetString("SUBSTITUTION_SUBJECT_FAMILIES"),
	}

	cfg.Notifications = NotificationConfig{
		Enabled:       v.GetBool("ENABLE_NOTIFICATIONS"),
		Workers:       v.GetInt("NOTIFICATIONS_WORKERS"),
		Retries:       v.GetInt("NOTIFICATIONS_RETRIES"),
		RetryDelay:    parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), time.Second),
		ChannelPrefix: v.GetString("NOTIFICATIONS_CHANNEL_PREFIX"),
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
	v.SetDefault("DB_NAME", "substitutions")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("MIGRATIONS_AUTO", false)
	v.SetDefault("MIGRATIONS_TABLE", "goose_db_version")

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	v.SetDefault("SUBSTITUTION_WEIGHT_AVAILABILITY", 0.40)
	v.SetDefault("SUBSTITUTION_WEIGHT_WORKLOAD", 0.25)
	v.SetDefault("SUBSTITUTION_WEIGHT_SUBJECT", 0.20)
	v.SetDefault("SUBSTITUTION_WEIGHT_ATTENDANCE", 0.15)
	v.SetDefault("SUBSTITUTION_WORKLOAD_CEILING", 35)
	v.SetDefault("SUBSTITUTION_DEFAULT_ATTENDANCE", 0.8)
	v.SetDefault("SUBSTITUTION_MAX_RESULTS", 5)
	v.SetDefault("SUBSTITUTION_INCLUDE_UNAVAILABLE", true)
	v.SetDefault("SUBSTITUTION_RECOMMENDATION_CACHE_TTL", "1m")
	v.SetDefault("SUBSTITUTION_SUBJECT_FAMILIES", "")

	v.SetDefault("ENABLE_NOTIFICATIONS", true)
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "1s")
	v.SetDefault("NOTIFICATIONS_CHANNEL_PREFIX", "notifications")
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

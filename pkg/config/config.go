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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	SMTP        SMTPConfig
	Delivery    DeliveryConfig
	Scheduler   SchedulerConfig
	Engagement  EngagementConfig
	Dashboard   DashboardConfig
	Targeting   TargetingConfig
	Maintenance MaintenanceConfig
	Supervisors SupervisorConfig
	Exports     ExportsConfig
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
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SMTPConfig configures the outbound mail relay used by the email channel.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// DeliveryConfig tunes the announcement delivery workers.
type DeliveryConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	DefaultBatchSize  int
	MaxRetryAttempts  int
}

// SchedulerConfig controls the scheduled-publication ticker.
type SchedulerConfig struct {
	Enabled      bool
	TickInterval time.Duration
}

// EngagementConfig governs cache behaviour for engagement analytics reads.
type EngagementConfig struct {
	CacheTTL time.Duration
}

// DashboardConfig governs supervisor dashboard exposure and cache tuning.
type DashboardConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// TargetingConfig caps audience preview sizes server-side.
type TargetingConfig struct {
	MaxPreviewSize int
}

// MaintenanceConfig gates the maintenance request endpoints.
type MaintenanceConfig struct {
	Enabled bool
}

// SupervisorConfig locates the permission template file loaded at startup.
type SupervisorConfig struct {
	Enabled          bool
	TemplateFile     string
	DashboardRefresh time.Duration
}

// ExportsConfig controls export artifact storage and signed URLs.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
	}

	cfg.Delivery = DeliveryConfig{
		WorkerConcurrency: v.GetInt("DELIVERY_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("DELIVERY_WORKER_RETRIES"),
		DefaultBatchSize:  v.GetInt("DELIVERY_DEFAULT_BATCH_SIZE"),
		MaxRetryAttempts:  v.GetInt("DELIVERY_MAX_RETRY_ATTEMPTS"),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:      v.GetBool("ENABLE_SCHEDULER"),
		TickInterval: parseDuration(v.GetString("SCHEDULER_TICK_INTERVAL"), time.Minute),
	}

	cfg.Engagement = EngagementConfig{
		CacheTTL: parseDuration(v.GetString("ENGAGEMENT_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Dashboard = DashboardConfig{
		Enabled:  v.GetBool("ENABLE_DASHBOARD"),
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Targeting = TargetingConfig{
		MaxPreviewSize: v.GetInt("TARGETING_MAX_PREVIEW_SIZE"),
	}

	cfg.Maintenance = MaintenanceConfig{
		Enabled: v.GetBool("ENABLE_MAINTENANCE"),
	}

	cfg.Supervisors = SupervisorConfig{
		Enabled:          v.GetBool("ENABLE_SUPERVISORS"),
		TemplateFile:     v.GetString("SUPERVISOR_TEMPLATE_FILE"),
		DashboardRefresh: parseDuration(v.GetString("SUPERVISOR_DASHBOARD_REFRESH"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "residence")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SMTP_PORT", 587)

	v.SetDefault("DELIVERY_WORKER_CONCURRENCY", 4)
	v.SetDefault("DELIVERY_WORKER_RETRIES", 3)
	v.SetDefault("DELIVERY_DEFAULT_BATCH_SIZE", 100)
	v.SetDefault("DELIVERY_MAX_RETRY_ATTEMPTS", 3)

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("ENABLE_DASHBOARD", true)
	v.SetDefault("ENABLE_MAINTENANCE", true)
	v.SetDefault("ENABLE_SUPERVISORS", true)

	v.SetDefault("TARGETING_MAX_PREVIEW_SIZE", 500)

	v.SetDefault("SUPERVISOR_TEMPLATE_FILE", "configs/permission_templates.yaml")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./data/exports")
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
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

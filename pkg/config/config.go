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

// Storage drivers supported for uploaded files.
const (
	StorageDriverLocal = "local"
	StorageDriverOSS   = "oss"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	CORS      CORSConfig
	Log       LogConfig
	Practicum PracticumConfig
	Uploads   UploadsConfig
	OSS       OSSConfig
	Mail      MailConfig
	System    SystemConfig
	Scheduler SchedulerConfig
	Dashboard DashboardConfig
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

// SessionConfig controls cookie sessions stored in Redis.
type SessionConfig struct {
	Secret        string
	CookieName    string
	CookieDomain  string
	CookieSecure  bool
	TTL           time.Duration
	RememberTTL   time.Duration
	IdleTimeout   time.Duration
	MismatchLimit int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PracticumConfig holds the business windows of the observation flow.
type PracticumConfig struct {
	SchoolWindowDays       int
	SchoolChangeWindowDays int
	FeedbackMinAccountAge  time.Duration
}

// UploadsConfig describes where uploaded files live and what is accepted.
type UploadsConfig struct {
	Driver                string
	LocalDir              string
	PublicBaseURL         string
	LessonPlanMaxBytes    int64
	LessonPlanMIMEs       []string
	ProfileImageMaxBytes  int64
	ProfileImageDimension int
}

// OSSConfig configures the Aliyun object storage backend.
type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	PublicBaseURL   string
}

// MailConfig configures outbound email.
type MailConfig struct {
	SendGridKey   string
	FromEmail     string
	AppName       string
	ResetURLBase  string
	ResetTokenTTL time.Duration
}

// SystemConfig governs the operations panel.
type SystemConfig struct {
	ResetChallengeTTL     time.Duration
	RequireResetChallenge bool
	BootstrapAdminID      string
	BootstrapAdminEmail   string
	BootstrapAdminPass    string
	BackupDir             string
	BackupSignedSecret    string
	BackupSignedTTL       time.Duration
	BackupWorkers         int
	BackupRetries         int
	BackupRetention       time.Duration
	StatusCacheTTL        time.Duration
}

// SchedulerConfig holds cron expressions for maintenance jobs.
type SchedulerConfig struct {
	Enabled           bool
	PeriodCloserSpec  string
	BackupCleanupSpec string
}

// DashboardConfig governs dashboard cache tuning.
type DashboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
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

	cfg.Session = SessionConfig{
		Secret:        v.GetString("SESSION_SECRET"),
		CookieName:    v.GetString("SESSION_COOKIE_NAME"),
		CookieDomain:  v.GetString("SESSION_COOKIE_DOMAIN"),
		CookieSecure:  v.GetBool("SESSION_COOKIE_SECURE"),
		TTL:           parseDuration(v.GetString("SESSION_TTL"), 48*time.Hour),
		RememberTTL:   parseDuration(v.GetString("SESSION_REMEMBER_TTL"), 15*24*time.Hour),
		IdleTimeout:   parseDuration(v.GetString("SESSION_IDLE_TIMEOUT"), 2*time.Hour),
		MismatchLimit: v.GetInt("SESSION_MISMATCH_LIMIT"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Practicum = PracticumConfig{
		SchoolWindowDays:       v.GetInt("PRACTICUM_SCHOOL_WINDOW_DAYS"),
		SchoolChangeWindowDays: v.GetInt("PRACTICUM_SCHOOL_CHANGE_WINDOW_DAYS"),
		FeedbackMinAccountAge:  parseDuration(v.GetString("PRACTICUM_FEEDBACK_MIN_ACCOUNT_AGE"), 72*time.Hour),
	}

	lessonPlanMax := v.GetInt64("UPLOADS_LESSON_PLAN_MAX_BYTES")
	if lessonPlanMax <= 0 {
		lessonPlanMax = 20 * 1024 * 1024
	}
	profileMax := v.GetInt64("UPLOADS_PROFILE_IMAGE_MAX_BYTES")
	if profileMax <= 0 {
		profileMax = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		Driver:                strings.ToLower(v.GetString("UPLOADS_DRIVER")),
		LocalDir:              v.GetString("UPLOADS_LOCAL_DIR"),
		PublicBaseURL:         v.GetString("UPLOADS_PUBLIC_BASE_URL"),
		LessonPlanMaxBytes:    lessonPlanMax,
		LessonPlanMIMEs:       splitAndTrim(v.GetString("UPLOADS_LESSON_PLAN_MIME_TYPES")),
		ProfileImageMaxBytes:  profileMax,
		ProfileImageDimension: v.GetInt("UPLOADS_PROFILE_IMAGE_DIMENSION"),
	}

	cfg.OSS = OSSConfig{
		Endpoint:        v.GetString("ALI_OSS_ENDPOINT"),
		AccessKeyID:     v.GetString("ALI_OSS_ACCESS_KEY"),
		AccessKeySecret: v.GetString("ALI_OSS_SECRET_KEY"),
		Bucket:          v.GetString("ALI_OSS_BUCKET"),
		PublicBaseURL:   v.GetString("ALI_OSS_PUBLIC_BASE"),
	}

	cfg.Mail = MailConfig{
		SendGridKey:   v.GetString("SENDGRID_API_KEY"),
		FromEmail:     v.GetString("MAIL_FROM_EMAIL"),
		AppName:       v.GetString("MAIL_APP_NAME"),
		ResetURLBase:  v.GetString("MAIL_RESET_URL_BASE"),
		ResetTokenTTL: parseDuration(v.GetString("PASSWORD_RESET_TOKEN_TTL"), time.Hour),
	}

	cfg.System = SystemConfig{
		ResetChallengeTTL:     parseDuration(v.GetString("SYSTEM_RESET_CHALLENGE_TTL"), 10*time.Minute),
		RequireResetChallenge: v.GetBool("SYSTEM_RESET_REQUIRE_CHALLENGE"),
		BootstrapAdminID:      v.GetString("SYSTEM_BOOTSTRAP_ADMIN_ID"),
		BootstrapAdminEmail:   v.GetString("SYSTEM_BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPass:    v.GetString("SYSTEM_BOOTSTRAP_ADMIN_PASSWORD"),
		BackupDir:             v.GetString("SYSTEM_BACKUP_DIR"),
		BackupSignedSecret:    v.GetString("SYSTEM_BACKUP_SIGNED_URL_SECRET"),
		BackupSignedTTL:       parseDuration(v.GetString("SYSTEM_BACKUP_SIGNED_URL_TTL"), 30*time.Minute),
		BackupWorkers:         v.GetInt("SYSTEM_BACKUP_WORKERS"),
		BackupRetries:         v.GetInt("SYSTEM_BACKUP_RETRIES"),
		BackupRetention:       parseDuration(v.GetString("SYSTEM_BACKUP_RETENTION"), 7*24*time.Hour),
		StatusCacheTTL:        parseDuration(v.GetString("SYSTEM_STATUS_CACHE_TTL"), 30*time.Second),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:           v.GetBool("ENABLE_SCHEDULER"),
		PeriodCloserSpec:  v.GetString("SCHEDULER_PERIOD_CLOSER_SPEC"),
		BackupCleanupSpec: v.GetString("SCHEDULER_BACKUP_CLEANUP_SPEC"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheEnabled: v.GetBool("ENABLE_DASHBOARD_CACHE"),
		CacheTTL:     parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "practicum")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_SECRET", "dev_session_secret")
	v.SetDefault("SESSION_COOKIE_NAME", "practicum_sid")
	v.SetDefault("SESSION_COOKIE_DOMAIN", "")
	v.SetDefault("SESSION_COOKIE_SECURE", false)
	v.SetDefault("SESSION_TTL", "48h")
	v.SetDefault("SESSION_REMEMBER_TTL", "360h")
	v.SetDefault("SESSION_IDLE_TIMEOUT", "2h")
	v.SetDefault("SESSION_MISMATCH_LIMIT", 3)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PRACTICUM_SCHOOL_WINDOW_DAYS", 15)
	v.SetDefault("PRACTICUM_SCHOOL_CHANGE_WINDOW_DAYS", 7)
	v.SetDefault("PRACTICUM_FEEDBACK_MIN_ACCOUNT_AGE", "72h")

	v.SetDefault("UPLOADS_DRIVER", StorageDriverLocal)
	v.SetDefault("UPLOADS_LOCAL_DIR", "./uploads")
	v.SetDefault("UPLOADS_PUBLIC_BASE_URL", "/uploads")
	v.SetDefault("UPLOADS_LESSON_PLAN_MAX_BYTES", 20*1024*1024)
	v.SetDefault("UPLOADS_LESSON_PLAN_MIME_TYPES", "application/pdf,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document,application/vnd.ms-powerpoint,application/vnd.openxmlformats-officedocument.presentationml.presentation")
	v.SetDefault("UPLOADS_PROFILE_IMAGE_MAX_BYTES", 5*1024*1024)
	v.SetDefault("UPLOADS_PROFILE_IMAGE_DIMENSION", 512)

	v.SetDefault("MAIL_FROM_EMAIL", "no-reply@practicum.local")
	v.SetDefault("MAIL_APP_NAME", "Practicum")
	v.SetDefault("MAIL_RESET_URL_BASE", "http://localhost:8080/reset-password")
	v.SetDefault("PASSWORD_RESET_TOKEN_TTL", "1h")

	v.SetDefault("SYSTEM_RESET_CHALLENGE_TTL", "10m")
	v.SetDefault("SYSTEM_RESET_REQUIRE_CHALLENGE", true)
	v.SetDefault("SYSTEM_BOOTSTRAP_ADMIN_ID", "A0001")
	v.SetDefault("SYSTEM_BOOTSTRAP_ADMIN_EMAIL", "admin@practicum.local")
	v.SetDefault("SYSTEM_BOOTSTRAP_ADMIN_PASSWORD", "changeme")
	v.SetDefault("SYSTEM_BACKUP_DIR", "./backups")
	v.SetDefault("SYSTEM_BACKUP_SIGNED_URL_SECRET", "dev_backup_secret")
	v.SetDefault("SYSTEM_BACKUP_SIGNED_URL_TTL", "30m")
	v.SetDefault("SYSTEM_BACKUP_WORKERS", 1)
	v.SetDefault("SYSTEM_BACKUP_RETRIES", 3)
	v.SetDefault("SYSTEM_BACKUP_RETENTION", "168h")
	v.SetDefault("SYSTEM_STATUS_CACHE_TTL", "30s")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_PERIOD_CLOSER_SPEC", "@every 1h")
	v.SetDefault("SCHEDULER_BACKUP_CLEANUP_SPEC", "@daily")

	v.SetDefault("ENABLE_DASHBOARD_CACHE", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
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

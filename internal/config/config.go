package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from its environment.
type Config struct {
	Port           string
	DBDriver       string
	DBPath         string
	DatabaseURL    string
	LogLevel       string
	LogFormat      string
	SessionTTL     time.Duration
	Location       *time.Location
	WeeklyReset    bool
	WeeklyInterval time.Duration
	AuthRateLimit  int
	SecureCookie   bool
	AllowedOrigins []string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	Backup BackupConfig
}

// BackupConfig configures encrypted SQLite snapshots to S3-compatible storage.
type BackupConfig struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string
	Prefix     string
	Retention  time.Duration
	// Interval schedules backups from serve. Zero disables the schedule.
	Interval time.Duration
}

// Load reads envFile into the environment when it exists, without
// overriding variables that are already set, and then builds a Config.
// An empty envFile skips the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Port:        getEnv("CHORECHAMP_PORT", "8080"),
		DBDriver:    strings.ToLower(getEnv("CHORECHAMP_DB_DRIVER", "sqlite")),
		DBPath:      getEnv("CHORECHAMP_DB_PATH", "chorechamp.db"),
		DatabaseURL: getEnv("CHORECHAMP_DATABASE_URL", ""),
		LogLevel:    getEnv("CHORECHAMP_LOG_LEVEL", "info"),
		LogFormat:   getEnv("CHORECHAMP_LOG_FORMAT", "text"),

		VAPIDPublicKey:  getEnv("CHORECHAMP_VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("CHORECHAMP_VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    getEnv("CHORECHAMP_VAPID_SUBJECT", "mailto:admin@chorechamp.local"),

		Backup: BackupConfig{
			Endpoint:   getEnv("CHORECHAMP_BACKUP_S3_ENDPOINT", ""),
			Bucket:     getEnv("CHORECHAMP_BACKUP_S3_BUCKET", ""),
			Region:     getEnv("CHORECHAMP_BACKUP_S3_REGION", "us-east-1"),
			AccessKey:  getEnv("CHORECHAMP_BACKUP_S3_ACCESS_KEY", ""),
			SecretKey:  getEnv("CHORECHAMP_BACKUP_S3_SECRET_KEY", ""),
			Passphrase: getEnv("CHORECHAMP_BACKUP_PASSPHRASE", ""),
			Prefix:     getEnv("CHORECHAMP_BACKUP_PREFIX", "chorechamp"),
		},
	}

	var err error
	if cfg.SessionTTL, err = getDuration("CHORECHAMP_SESSION_TTL", 720*time.Hour); err != nil {
		return nil, err
	}
	if cfg.WeeklyInterval, err = getDuration("CHORECHAMP_WEEKLY_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.WeeklyReset, err = getBool("CHORECHAMP_WEEKLY_RESET", true); err != nil {
		return nil, err
	}
	if cfg.SecureCookie, err = getBool("CHORECHAMP_SECURE_COOKIE", false); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimit, err = getInt("CHORECHAMP_AUTH_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.Backup.Retention, err = getDuration("CHORECHAMP_BACKUP_RETENTION", 720*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Backup.Interval, err = getDuration("CHORECHAMP_BACKUP_INTERVAL", 0); err != nil {
		return nil, err
	}

	tz := getEnv("CHORECHAMP_TIMEZONE", "Local")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("CHORECHAMP_TIMEZONE: %w", err)
	}

	for _, o := range strings.Split(getEnv("CHORECHAMP_ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the chosen driver has what it needs to connect and
// that push keys come as a pair.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "memory":
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("CHORECHAMP_DB_PATH is required for sqlite")
		}
	case "postgres", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("CHORECHAMP_DATABASE_URL is required for %s", c.DBDriver)
		}
	default:
		return fmt.Errorf("unknown CHORECHAMP_DB_DRIVER %q", c.DBDriver)
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return errors.New("CHORECHAMP_VAPID_PUBLIC_KEY and CHORECHAMP_VAPID_PRIVATE_KEY must be set together")
	}
	if c.Backup.Interval > 0 && c.DBDriver != "sqlite" {
		return errors.New("CHORECHAMP_BACKUP_INTERVAL requires the sqlite driver")
	}
	if c.WeeklyReset && c.WeeklyInterval <= 0 {
		return errors.New("CHORECHAMP_WEEKLY_INTERVAL must be positive")
	}
	return nil
}

// PushEnabled reports whether Web Push keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

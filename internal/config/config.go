package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Auth    AuthConfig
	App     AppConfig
	Archive ArchiveConfig
}

// AuthConfig holds the client-credentials grant parameters. All four fields
// are required; Load fails when any is missing instead of letting the remote
// endpoint reject the run later.
type AuthConfig struct {
	URL          string
	ClientID     string
	ClientSecret string
	Scope        string
}

type AppConfig struct {
	Prefix    string
	OutputDir string
	LogFile   string
	LogLevel  string
}

// ArchiveConfig configures the optional mirror of downloaded reports into an
// S3-compatible bucket. The mirror is active only when Enabled returns true.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

func (c ArchiveConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// DateFormat is the calendar format of target dates (MM-DD-YYYY).
const DateFormat = "01-02-2006"

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("PREFIX", "FirstCreditPaymentByItem")
	v.SetDefault("OUTPUT_DIR", ".")
	v.SetDefault("LOG_FILE", "new_log.log")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ARCHIVE_REGION", "us-east-1")
	v.SetDefault("ARCHIVE_USE_SSL", true)

	v.AutomaticEnv()

	cfg := &Config{
		Auth: AuthConfig{
			URL:          v.GetString("AUTH_URL"),
			ClientID:     v.GetString("CLIENT_ID"),
			ClientSecret: v.GetString("CLIENT_SECRET"),
			Scope:        v.GetString("SCOPE"),
		},
		App: AppConfig{
			Prefix:    v.GetString("PREFIX"),
			OutputDir: v.GetString("OUTPUT_DIR"),
			LogFile:   v.GetString("LOG_FILE"),
			LogLevel:  v.GetString("LOG_LEVEL"),
		},
		Archive: ArchiveConfig{
			Endpoint:  v.GetString("ARCHIVE_ENDPOINT"),
			AccessKey: v.GetString("ARCHIVE_ACCESS_KEY"),
			SecretKey: v.GetString("ARCHIVE_SECRET_KEY"),
			Bucket:    v.GetString("ARCHIVE_BUCKET"),
			Region:    v.GetString("ARCHIVE_REGION"),
			UseSSL:    v.GetBool("ARCHIVE_USE_SSL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := ensureDir(cfg.App.OutputDir); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	for name, value := range map[string]string{
		"AUTH_URL":      c.Auth.URL,
		"CLIENT_ID":     c.Auth.ClientID,
		"CLIENT_SECRET": c.Auth.ClientSecret,
		"SCOPE":         c.Auth.Scope,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateDates checks that every target date is in MM-DD-YYYY form. Order is
// preserved by the caller; this only rejects malformed entries.
func ValidateDates(dates []string) error {
	if len(dates) == 0 {
		return fmt.Errorf("at least one target date is required")
	}
	for _, d := range dates {
		if _, err := time.Parse(DateFormat, d); err != nil {
			return fmt.Errorf("invalid target date %q: expected MM-DD-YYYY", d)
		}
	}
	return nil
}

func ensureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

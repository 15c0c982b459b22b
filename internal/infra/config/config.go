package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve on minimal images

	"github.com/joho/godotenv"
)

const (
	ProviderPeriskope = "periskope"
	ProviderConsole   = "console"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL    string
	DBMaxOpenConns int
	LogLevel       string
	Environment    string
	HTTPAddr       string
	Timezone       *time.Location

	MessageProvider     string
	PeriskopeAPIKey     string
	PeriskopePhone      string
	PeriskopeBaseURL    string
	PeriskopeChatSuffix string
	PeriskopeTimeout    time.Duration
	PhoneCountryCode    string
	AdminPhone          string // optional; empty disables the admin summary

	CronSpecDailyReminder string
	Reminder              ReminderConfig

	RazorpayKeySecret string // optional; empty disables payment verification

	TelegramToken   string // optional; empty disables the admin bot
	AdminTelegramID int64

	OTLPEndpoint string // optional; empty disables trace export
}

// ReminderConfig holds the eligibility window and dispatch knobs of the daily job.
type ReminderConfig struct {
	LookaheadDays     int
	ExpiredWindowDays int
	NotifyExpired     bool
	AuditPolicySkips  bool
	MaxCohort         int
	SendConcurrency   int
	SummaryDisplayMax int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.DBMaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	tzName := getEnv("APP_TIMEZONE", "Asia/Kolkata")
	cfg.Timezone, err = time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", tzName, err)
	}

	cfg.MessageProvider = strings.ToLower(getEnv("MESSAGE_PROVIDER", ProviderPeriskope))
	switch cfg.MessageProvider {
	case ProviderPeriskope:
		cfg.PeriskopeAPIKey = os.Getenv("PERISKOPE_API_KEY")
		if cfg.PeriskopeAPIKey == "" {
			return nil, fmt.Errorf("PERISKOPE_API_KEY is not set")
		}
		cfg.PeriskopePhone = os.Getenv("PERISKOPE_PHONE")
		if cfg.PeriskopePhone == "" {
			return nil, fmt.Errorf("PERISKOPE_PHONE is not set")
		}
	case ProviderConsole:
	default:
		return nil, fmt.Errorf("unknown MESSAGE_PROVIDER %q", cfg.MessageProvider)
	}
	cfg.PeriskopeBaseURL = getEnv("PERISKOPE_BASE_URL", "https://api.periskope.app/v1")
	cfg.PeriskopeChatSuffix = getEnv("PERISKOPE_CHAT_SUFFIX", "c.us")
	if cfg.PeriskopeTimeout, err = getDuration("PERISKOPE_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	cfg.PhoneCountryCode = getEnv("PHONE_COUNTRY_CODE", "91")
	cfg.AdminPhone = os.Getenv("ADMIN_PHONE")

	cfg.CronSpecDailyReminder = getEnv("CRON_SPEC_DAILY_REMINDER", "0 9 * * *") // Default: 9 AM daily

	r := &cfg.Reminder
	if r.LookaheadDays, err = getInt("REMINDER_LOOKAHEAD_DAYS", 2); err != nil {
		return nil, err
	}
	if r.LookaheadDays < 1 {
		return nil, fmt.Errorf("REMINDER_LOOKAHEAD_DAYS must be positive, got %d", r.LookaheadDays)
	}
	if r.ExpiredWindowDays, err = getInt("REMINDER_EXPIRED_WINDOW_DAYS", 7); err != nil {
		return nil, err
	}
	if r.NotifyExpired, err = getBool("REMINDER_NOTIFY_EXPIRED", false); err != nil {
		return nil, err
	}
	if r.AuditPolicySkips, err = getBool("REMINDER_AUDIT_POLICY_SKIPS", false); err != nil {
		return nil, err
	}
	if r.MaxCohort, err = getInt("REMINDER_MAX_COHORT", 500); err != nil {
		return nil, err
	}
	if r.SendConcurrency, err = getInt("REMINDER_SEND_CONCURRENCY", 1); err != nil {
		return nil, err
	}
	if r.SendConcurrency < 1 {
		r.SendConcurrency = 1
	}
	if r.SummaryDisplayMax, err = getInt("REMINDER_SUMMARY_DISPLAY_MAX", 10); err != nil {
		return nil, err
	}

	cfg.RazorpayKeySecret = os.Getenv("RAZORPAY_KEY_SECRET")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
		}
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Port           string
	AppID          string
	DefaultCountry string
	Countries      []string
	CronSchedule   string
	EnableCron     bool
	Timezone       *time.Location
	StoreURL       string
	DiscordWebhook string
	LookupBaseURL  string
	StoreBaseURL   string
	AllowedOrigins []string
	LogLevel       slog.Level
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	appID := strings.TrimSpace(getenv("APP_ID", "1190307500"))
	if !IsAppID(appID) {
		return nil, fmt.Errorf("APP_ID %q must be a numeric App Store id", appID)
	}

	defaultCountry := strings.ToLower(getenv("DEFAULT_COUNTRY", "vn"))
	if !IsCountryCode(defaultCountry) {
		return nil, fmt.Errorf("DEFAULT_COUNTRY %q is not a two-letter country code", defaultCountry)
	}

	countries, err := parseCountries(getenv("COUNTRIES", "vn,us"))
	if err != nil {
		return nil, err
	}

	schedule := getenv("CRON_SCHEDULE", "*/10 * * * *")
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("CRON_SCHEDULE %q: %w", schedule, err)
	}

	tz, err := time.LoadLocation(getenv("TIMEZONE", "Asia/Bangkok"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	var allowedOrigins []string
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowedOrigins = append(allowedOrigins, o)
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	return &Config{
		Port:           getenv("PORT", "3000"),
		AppID:          appID,
		DefaultCountry: defaultCountry,
		Countries:      countries,
		CronSchedule:   schedule,
		EnableCron:     os.Getenv("ENABLE_CRON") != "false",
		Timezone:       tz,
		StoreURL:       getenv("STORE_URL", "memory://"),
		DiscordWebhook: os.Getenv("DISCORD_WEBHOOK"),
		LookupBaseURL:  strings.TrimRight(getenv("LOOKUP_BASE_URL", "https://itunes.apple.com"), "/"),
		StoreBaseURL:   strings.TrimRight(getenv("STORE_BASE_URL", "https://apps.apple.com"), "/"),
		AllowedOrigins: allowedOrigins,
		LogLevel:       level,
	}, nil
}

// LangFor returns the listing language used when polling a country.
func LangFor(country string) string {
	if strings.EqualFold(country, "vn") {
		return "vi"
	}
	return "en"
}

func parseCountries(raw string) ([]string, error) {
	var out []string
	for _, c := range strings.Split(raw, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if !IsCountryCode(c) {
			return nil, fmt.Errorf("COUNTRIES: %q is not a two-letter country code", c)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("COUNTRIES must list at least one country")
	}
	return out, nil
}

// IsCountryCode reports whether s is a lower-case two-letter code.
func IsCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// IsAppID reports whether s is a numeric App Store id.
func IsAppID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var langTag = regexp.MustCompile(`^[A-Za-z]{2,3}(-[A-Za-z0-9]{2,8})*$`)

// IsLang reports whether s looks like a language tag such as "vi" or "en-US".
func IsLang(s string) bool {
	return langTag.MatchString(s)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

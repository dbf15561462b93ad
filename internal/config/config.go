package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pauljones0/rental-watch-bot/internal/pricing"
	"github.com/pauljones0/rental-watch-bot/internal/validator"
)

const (
	defaultCity      = "utrecht"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config is built once at startup and shared read-only by every component.
type Config struct {
	SearchURL          string `validate:"required,url"`
	MaxPages           int    `validate:"min=1,max=20"`
	MinPrice           int    `validate:"gte=0"`
	MaxPrice           int    `validate:"gte=0"`
	PriceFilterEnabled bool
	PollInterval       time.Duration
	FetchTimeout       time.Duration
	FetchMode          string   `validate:"oneof=http browser"`
	UserAgent          string   `validate:"required"`
	AllowedDomains     []string `validate:"min=1,dive,required"`
	SelectorsPath      string

	StateBackend string `validate:"oneof=file firestore postgres"`
	SeenFile     string `validate:"required_if=StateBackend file"`
	ProjectID    string `validate:"required_if=StateBackend firestore"`
	DatabaseURL  string `validate:"required_if=StateBackend postgres"`

	Notifier          string `validate:"oneof=telegram discord email"`
	TelegramBotToken  string `validate:"required_if=Notifier telegram"`
	TelegramChatID    string `validate:"required_if=Notifier telegram"`
	DiscordWebhookURL string `validate:"required_if=Notifier discord,omitempty,url"`
	SMTPHost          string `validate:"required_if=Notifier email"`
	SMTPPort          int    `validate:"required_if=Notifier email"`
	SenderEmail       string `validate:"required_if=Notifier email,omitempty,email"`
	EmailPassword     string `validate:"required_if=Notifier email"`
	ReceiverEmail     string `validate:"required_if=Notifier email,omitempty,email"`

	GeminiAPIKey string
	GeminiModel  string

	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`
}

// Load reads configuration from the environment (and a .env file when present).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded, using process environment", "error", err)
	}

	city := getEnv("CITY", defaultCity)
	searchURL := getEnv("CITY_URL", "https://www.pararius.com/apartments/"+strings.ToLower(city))

	maxPages, err := getEnvInt("MAX_PAGES", 1)
	if err != nil {
		return nil, err
	}
	minPrice, err := getEnvInt("MIN_PRICE", 1000)
	if err != nil {
		return nil, err
	}
	maxPrice, err := getEnvInt("MAX_PRICE", 1500)
	if err != nil {
		return nil, err
	}
	priceFilter, err := getEnvBool("PRICE_FILTER", true)
	if err != nil {
		return nil, err
	}

	pollInterval, err := loadPollInterval()
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := getEnvDuration("FETCH_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	if fetchTimeout <= 0 {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT %s: must be positive", fetchTimeout)
	}

	smtpPort, err := getEnvInt("SMTP_PORT", 465)
	if err != nil {
		return nil, err
	}

	notifier := strings.ToLower(getEnv("NOTIFIER", "telegram"))
	if notifier == "discord" && os.Getenv("DISCORD_WEBHOOK_URL") == "" {
		slog.Warn("NOTIFIER=discord but DISCORD_WEBHOOK_URL is not set")
	}

	cfg := &Config{
		SearchURL:          searchURL,
		MaxPages:           maxPages,
		MinPrice:           minPrice,
		MaxPrice:           maxPrice,
		PriceFilterEnabled: priceFilter,
		PollInterval:       pollInterval,
		FetchTimeout:       fetchTimeout,
		FetchMode:          strings.ToLower(getEnv("FETCH_MODE", "http")),
		UserAgent:          getEnv("USER_AGENT", defaultUserAgent),
		AllowedDomains:     splitList(getEnv("ALLOWED_DOMAINS", "pararius.com,pararius.nl")),
		SelectorsPath:      os.Getenv("SELECTORS_CONFIG_PATH"),

		StateBackend: strings.ToLower(getEnv("STATE_BACKEND", "file")),
		SeenFile:     getEnv("SEEN_FILE", "data/seen_properties.json"),
		ProjectID:    os.Getenv("GOOGLE_CLOUD_PROJECT"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		Notifier:          notifier,
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		SMTPHost:          getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:          smtpPort,
		SenderEmail:       os.Getenv("SENDER_EMAIL"),
		EmailPassword:     os.Getenv("EMAIL_PASSWORD"),
		ReceiverEmail:     os.Getenv("RECEIVER_EMAIL"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		Port:      getEnv("PORT", "8080"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	v := validator.New()
	if err := v.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	// The bounds only have to be ordered when the filter is applied.
	if cfg.PriceFilterEnabled {
		if err := v.ValidateVar(cfg.MaxPrice, fmt.Sprintf("gte=%d", cfg.MinPrice)); err != nil {
			return nil, fmt.Errorf("invalid configuration: MAX_PRICE %d is below MIN_PRICE %d: %w", cfg.MaxPrice, cfg.MinPrice, err)
		}
	}
	return cfg, nil
}

// PriceRange returns the configured filter window.
func (c *Config) PriceRange() pricing.Range {
	return pricing.Range{Min: c.MinPrice, Max: c.MaxPrice, Enabled: c.PriceFilterEnabled}
}

// SearchLabel derives a display name from the search URL, e.g. ".../apartments/den-haag" -> "Den Haag".
func (c *Config) SearchLabel() string {
	u, err := url.Parse(c.SearchURL)
	if err != nil {
		return c.SearchURL
	}
	last := path.Base(strings.TrimRight(u.Path, "/"))
	if last == "" || last == "." || last == "/" {
		return u.Host
	}
	words := strings.Fields(strings.ReplaceAll(last, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// loadPollInterval reads POLL_INTERVAL, falling back to the legacy SLEEP_MINUTES.
func loadPollInterval() (time.Duration, error) {
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid POLL_INTERVAL %q: %w", v, err)
		}
		if d < 0 {
			return 0, fmt.Errorf("invalid POLL_INTERVAL %q: must not be negative", v)
		}
		return d, nil
	}
	minutes, err := getEnvInt("SLEEP_MINUTES", 5)
	if err != nil {
		return 0, err
	}
	if minutes < 0 {
		return 0, fmt.Errorf("invalid SLEEP_MINUTES %d: must not be negative", minutes)
	}
	return time.Duration(minutes) * time.Minute, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

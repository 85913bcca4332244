package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	DBPath   string
	Twilio   TwilioConfig
	Prompt   PromptConfig
	Redis    RedisConfig
	Log      LogConfig
	Region   string
	Location *time.Location
}

type ServerConfig struct {
	Port      string
	BaseURL   string
	SecretKey string
}

type TwilioConfig struct {
	AccountSID      string
	AuthToken       string
	PhoneNumber     string
	ValidateWebhook bool
}

// Configured reports whether outbound SMS can be sent.
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.PhoneNumber != ""
}

type PromptConfig struct {
	Hour   int
	Minute int
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	intVar := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	validate, err := getEnvBool("TWILIO_VALIDATE_WEBHOOK", authToken != "")
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      getEnv("PORT", "8080"),
			BaseURL:   strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
			SecretKey: os.Getenv("SECRET_KEY"),
		},
		DBPath: getEnv("DB_PATH", "moodtracker.db"),
		Twilio: TwilioConfig{
			AccountSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:       authToken,
			PhoneNumber:     os.Getenv("TWILIO_PHONE_NUMBER"),
			ValidateWebhook: validate,
		},
		Prompt: PromptConfig{
			Hour:   intVar("PROMPT_HOUR", 12),
			Minute: intVar("PROMPT_MINUTE", 58),
		},
		Redis: loadRedisConfig(intVar),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Region: strings.ToUpper(getEnv("DEFAULT_REGION", "US")),
	}

	loc, err := loadLocation(os.Getenv("TIMEZONE"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Location = loc

	if cfg.Prompt.Hour < 0 || cfg.Prompt.Hour > 23 {
		errs = append(errs, fmt.Errorf("PROMPT_HOUR must be 0-23, got %d", cfg.Prompt.Hour))
	}
	if cfg.Prompt.Minute < 0 || cfg.Prompt.Minute > 59 {
		errs = append(errs, fmt.Errorf("PROMPT_MINUTE must be 0-59, got %d", cfg.Prompt.Minute))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// ValidateServe checks the settings only the web server needs.
func (c *Config) ValidateServe() error {
	if c.Server.SecretKey == "" {
		return errors.New("SECRET_KEY is required")
	}
	if c.Twilio.ValidateWebhook && c.Twilio.AuthToken == "" {
		return errors.New("TWILIO_VALIDATE_WEBHOOK requires TWILIO_AUTH_TOKEN")
	}
	return nil
}

func loadRedisConfig(intVar func(string, int) int) RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}
	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intVar("REDIS_DB", 0),
	}
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("invalid bool for env %s: %q", key, v)
	}
	return b, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	LogLevel       string
	Env            string
	APIBaseURL     string
	APITimeout     time.Duration
	StorageDriver  string
	StorageProfile string
	DB             DBConfig
	Kafka          KafkaConfig
	Login          LoginConfig
}

// LoginConfig throttles the login routes per client address
type LoginConfig struct {
	Burst             float64
	PerMinute         float64
	TrustForwardedFor bool
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// KafkaConfig holds the broker settings for notification and session relays
type KafkaConfig struct {
	Enabled            bool
	Brokers            []string
	NotificationsTopic string
	SessionTopic       string
	ConsumerGroup      string
}

// DefaultAPIBaseURL is the production API endpoint
const DefaultAPIBaseURL = "https://api.getmethis.com"

// getEnv retrieves the value of an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

// Load reads .env (when present) and the environment and returns a Config struct.
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	return FromEnv()
}

// FromEnv builds a Config from the current environment only
func FromEnv() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))

	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))

	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	timeout, err := time.ParseDuration(getEnv("API_TIMEOUT", "30s"))

	if err != nil {
		return nil, fmt.Errorf("invalid API_TIMEOUT: %w", err)
	}

	kafkaEnabled, err := strconv.ParseBool(getEnv("KAFKA_ENABLED", "false"))

	if err != nil {
		return nil, fmt.Errorf("invalid KAFKA_ENABLED: %w", err)
	}

	burst, err := strconv.ParseFloat(getEnv("LOGIN_RATE_BURST", "5"), 64)

	if err != nil || burst < 1 {
		return nil, fmt.Errorf("invalid LOGIN_RATE_BURST %q", getEnv("LOGIN_RATE_BURST", "5"))
	}

	perMinute, err := strconv.ParseFloat(getEnv("LOGIN_RATE_PER_MINUTE", "5"), 64)

	if err != nil || perMinute <= 0 {
		return nil, fmt.Errorf("invalid LOGIN_RATE_PER_MINUTE %q", getEnv("LOGIN_RATE_PER_MINUTE", "5"))
	}

	trustFwd, err := strconv.ParseBool(getEnv("TRUST_FORWARDED_FOR", "false"))

	if err != nil {
		return nil, fmt.Errorf("invalid TRUST_FORWARDED_FOR: %w", err)
	}

	driver := strings.ToLower(getEnv("STORAGE_DRIVER", "memory"))

	if driver != "memory" && driver != "postgres" {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q: want memory or postgres", driver)
	}

	return &Config{
		Port:           port,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Env:            getEnv("APP_ENV", "development"),
		APIBaseURL:     strings.TrimRight(getEnv("API_BASE_URL", DefaultAPIBaseURL), "/"),
		APITimeout:     timeout,
		StorageDriver:  driver,
		StorageProfile: getEnv("STORAGE_PROFILE", "default"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "getmethis_dashboard"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Enabled:            kafkaEnabled,
			Brokers:            splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			NotificationsTopic: getEnv("KAFKA_NOTIFICATIONS_TOPIC", "dashboard.notifications"),
			SessionTopic:       getEnv("KAFKA_SESSION_TOPIC", "dashboard.session"),
			ConsumerGroup:      getEnv("KAFKA_CONSUMER_GROUP", "dashboard-"+getEnv("STORAGE_PROFILE", "default")),
		},
		Login: LoginConfig{
			Burst:             burst,
			PerMinute:         perMinute,
			TrustForwardedFor: trustFwd,
		},
	}, nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

func splitList(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

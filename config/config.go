package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultStartURL = "https://auto.ria.com/uk/search/?indexName=auto,order_auto,newauto_search" +
	"&categories.main.id=1&country.import.usa.not=-1&price.currency=1" +
	"&abroad.not=0&custom.not=1&page=0&size=100"

type Config struct {
	StartURL       string
	Concurrency    int
	RequestTimeout time.Duration
	RequestDelay   time.Duration
	MaxRetries     int
	Headless       bool
	LogLevel       string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ScrapeTime string
	DumpTime   string
	Timezone   string
	DumpDir    string
}

// Load reads configuration from the environment, with an optional .env file
// and the documented defaults. Timeout and delay values are given in seconds
// (REQUEST_DELAY accepts fractions).
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("START_URL", defaultStartURL)
	v.SetDefault("CONCURRENCY", 5)
	v.SetDefault("REQUEST_TIMEOUT", 30)
	v.SetDefault("REQUEST_DELAY", 1.0)
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("HEADLESS", true)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("POSTGRES_HOST", "db")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "autoria")
	v.SetDefault("POSTGRES_SSLMODE", "disable")

	v.SetDefault("SCRAPE_SCHEDULE_TIME", "12:00")
	v.SetDefault("DUMP_SCHEDULE_TIME", "00:00")
	v.SetDefault("TIMEZONE", "Europe/Kiev")
	v.SetDefault("DUMP_DIR", "dumps")

	cfg := &Config{
		StartURL:       v.GetString("START_URL"),
		Concurrency:    v.GetInt("CONCURRENCY"),
		RequestTimeout: time.Duration(v.GetInt("REQUEST_TIMEOUT")) * time.Second,
		RequestDelay:   time.Duration(v.GetFloat64("REQUEST_DELAY") * float64(time.Second)),
		MaxRetries:     v.GetInt("MAX_RETRIES"),
		Headless:       v.GetBool("HEADLESS"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		DBHost:         v.GetString("POSTGRES_HOST"),
		DBPort:         v.GetInt("POSTGRES_PORT"),
		DBUser:         v.GetString("POSTGRES_USER"),
		DBPassword:     v.GetString("POSTGRES_PASSWORD"),
		DBName:         v.GetString("POSTGRES_DB"),
		DBSSLMode:      v.GetString("POSTGRES_SSLMODE"),
		ScrapeTime:     v.GetString("SCRAPE_SCHEDULE_TIME"),
		DumpTime:       v.GetString("DUMP_SCHEDULE_TIME"),
		Timezone:       v.GetString("TIMEZONE"),
		DumpDir:        v.GetString("DUMP_DIR"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.StartURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("START_URL %q is not an absolute URL", c.StartURL)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("CONCURRENCY must be positive, got %d", c.Concurrency)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.RequestTimeout)
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("REQUEST_DELAY must not be negative, got %v", c.RequestDelay)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone for scheduling.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

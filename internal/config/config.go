package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

var validate = validator.New()

type AppConfig struct {
	// NATSURL is the data layer server both devices connect to.
	NATSURL string `validate:"required,url"`
	// Subject carries sync batches between producer and display.
	Subject string `validate:"required"`

	// ConnectTimeout bounds connection acquisition per inbound batch.
	ConnectTimeout time.Duration `validate:"gt=0"`

	// StorePath selects the durable sqlite store; empty keeps state in memory.
	StorePath string

	// QueueSize bounds inbound batches waiting for the sync handler.
	QueueSize int `validate:"gt=0"`

	// HostTickInterval is the host's coarse tick used in ambient mode.
	HostTickInterval time.Duration `validate:"gt=0"`

	// TimeZone is the face's default zone; empty uses the system zone.
	TimeZone string

	OpenWeatherAPIKey string
	Location          weather.Location

	LogLevel string `validate:"oneof=debug info warn error"`
	Port     string `validate:"required,numeric"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.Subject = getenvDefault("SYNC_SUBJECT", "wearable.data")

	timeout, err := time.ParseDuration(getenvDefault("CONNECT_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONNECT_TIMEOUT: %w", err)
	}
	cfg.ConnectTimeout = timeout

	tick, err := time.ParseDuration(getenvDefault("HOST_TICK_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid HOST_TICK_INTERVAL: %w", err)
	}
	cfg.HostTickInterval = tick

	cfg.StorePath = os.Getenv("STORE_PATH")
	cfg.QueueSize = getenvInt("QUEUE_SIZE", 64)
	cfg.TimeZone = os.Getenv("TIME_ZONE")
	if cfg.TimeZone != "" {
		if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
			return nil, fmt.Errorf("invalid TIME_ZONE: %w", err)
		}
	}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.Location = weather.Location{
		City:    os.Getenv("WEATHER_LOCATION_CITY"),
		Country: os.Getenv("WEATHER_LOCATION_COUNTRY"),
	}

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Zone returns the configured default time zone.
func (c *AppConfig) Zone() *time.Location {
	if c.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

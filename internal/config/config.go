// Package config загружает настройки киоска из переменных окружения
// (и необязательного файла .env)
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"vote-kiosk/internal/device"
	"vote-kiosk/internal/scheduler"
)

// DefaultDeviceID идентификатор прошивки по умолчанию
const DefaultDeviceID = "aec29976-de35-472c-9d4d-5264c71e42be"

// Config содержит конфигурацию процесса киоска
type Config struct {
	ServerBaseURL string
	DeviceID      string
	DBPath        string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StatusAddr string

	MQTTBroker string
	MQTTTopic  string

	Intervals   scheduler.Intervals
	HTTPTimeout time.Duration
	ButtonHold  time.Duration

	LogLevel  slog.Level
	LogFormat string
	Input     string
}

// Load читает .env (если есть) и переменные окружения
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv собирает конфигурацию из окружения процесса
func FromEnv() (Config, error) {
	var errs []error
	cfg := Config{
		ServerBaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080/api"),
		DeviceID:      getEnv("DEVICE_ID", DefaultDeviceID),
		DBPath:        getEnv("DB_PATH", "kiosk.db"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0, &errs),
		StatusAddr:    getEnv("STATUS_ADDR", ":9090"),
		MQTTBroker:    getEnv("MQTT_BROKER", ""),
		MQTTTopic:     getEnv("MQTT_TOPIC", "kiosk/feedback"),
		Intervals: scheduler.Intervals{
			Sync:          getEnvDuration("SYNC_INTERVAL", scheduler.DefaultSyncInterval, &errs),
			PollFetch:     getEnvDuration("POLL_FETCH_INTERVAL", scheduler.DefaultPollFetchInterval, &errs),
			IdleWait:      getEnvDuration("IDLE_WAIT", scheduler.DefaultIdleWait, &errs),
			PostVoteDelay: getEnvDuration("POST_VOTE_DELAY", scheduler.DefaultPostVoteDelay, &errs),
		},
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second, &errs),
		ButtonHold:  getEnvDuration("BUTTON_HOLD", device.DefaultHold, &errs),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "text")),
		Input:       strings.ToLower(getEnv("INPUT", "stdin")),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c Config) Validate() error {
	var errs []error
	if _, err := uuid.Parse(c.DeviceID); err != nil {
		errs = append(errs, fmt.Errorf("DEVICE_ID %q is not a UUID: %w", c.DeviceID, err))
	}
	if u, err := url.Parse(c.ServerBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("SERVER_BASE_URL %q must be an absolute URL", c.ServerBaseURL))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	for name, d := range map[string]time.Duration{
		"SYNC_INTERVAL":       c.Intervals.Sync,
		"POLL_FETCH_INTERVAL": c.Intervals.PollFetch,
		"IDLE_WAIT":           c.Intervals.IdleWait,
		"HTTP_TIMEOUT":        c.HTTPTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %s", name, d))
		}
	}
	if c.Intervals.PostVoteDelay < 0 {
		errs = append(errs, fmt.Errorf("POST_VOTE_DELAY must be >= 0, got %s", c.Intervals.PostVoteDelay))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	switch c.Input {
	case "stdin", "none":
	default:
		errs = append(errs, fmt.Errorf("INPUT must be stdin or none, got %q", c.Input))
	}
	return errors.Join(errs...)
}

// NewLogger создает slog логгер по настройкам LOG_LEVEL и LOG_FORMAT
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения
func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

// getEnvDuration принимает как "30s", так и целые миллисекунды
func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

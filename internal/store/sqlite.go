// Package store хранит конфигурацию устройства в локальной SQLite базе,
// заменяя энергонезависимую память киоска
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"vote-kiosk/internal/models"
)

// ErrNotFound конфигурация еще не сохранялась
var ErrNotFound = errors.New("device config not found")

const schema = `
CREATE TABLE IF NOT EXISTS device_config (
    device_id TEXT PRIMARY KEY,
    poll_interval_ms INTEGER NOT NULL CHECK (poll_interval_ms > 0),
    display_timeout_ms INTEGER NOT NULL CHECK (display_timeout_ms > 0),
    confidence_threshold REAL NOT NULL CHECK (confidence_threshold >= 0),
    anomaly_threshold REAL NOT NULL CHECK (anomaly_threshold >= 0),
    is_enabled INTEGER NOT NULL DEFAULT 1,
    updated_at TIMESTAMP NOT NULL
);
`

// SQLiteStore хранилище конфигурации одного устройства
type SQLiteStore struct {
	db       *sql.DB
	deviceID string
}

// Open открывает базу по пути path (":memory:" для тестов) и создает схему
func Open(path, deviceID string) (*SQLiteStore, error) {
	if deviceID == "" {
		return nil, errors.New("device id required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config db: %w", err)
	}
	// один писатель: цикл устройства
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db, deviceID: deviceID}, nil
}

// Load возвращает сохраненную конфигурацию или значения по умолчанию
// при первом запуске
func (s *SQLiteStore) Load(ctx context.Context) (models.DeviceConfig, error) {
	cfg, err := s.get(ctx)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultDeviceConfig(s.deviceID), nil
	}
	return cfg, err
}

func (s *SQLiteStore) get(ctx context.Context) (models.DeviceConfig, error) {
	var cfg models.DeviceConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, poll_interval_ms, display_timeout_ms,
		       confidence_threshold, anomaly_threshold, is_enabled
		FROM device_config WHERE device_id = ?`, s.deviceID).
		Scan(&cfg.DeviceID, &cfg.PollIntervalMs, &cfg.DisplayTimeoutMs,
			&cfg.ConfidenceThreshold, &cfg.AnomalyThreshold, &cfg.IsEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DeviceConfig{}, ErrNotFound
	}
	if err != nil {
		return models.DeviceConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Save сохраняет конфигурацию целиком
func (s *SQLiteStore) Save(ctx context.Context, cfg models.DeviceConfig) error {
	if cfg.DeviceID != s.deviceID {
		return fmt.Errorf("config belongs to device %q, store is bound to %q", cfg.DeviceID, s.deviceID)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_config (device_id, poll_interval_ms, display_timeout_ms,
		    confidence_threshold, anomaly_threshold, is_enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
		    poll_interval_ms = excluded.poll_interval_ms,
		    display_timeout_ms = excluded.display_timeout_ms,
		    confidence_threshold = excluded.confidence_threshold,
		    anomaly_threshold = excluded.anomaly_threshold,
		    is_enabled = excluded.is_enabled,
		    updated_at = excluded.updated_at`,
		cfg.DeviceID, cfg.PollIntervalMs, cfg.DisplayTimeoutMs,
		cfg.ConfidenceThreshold, cfg.AnomalyThreshold, cfg.IsEnabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Close закрывает базу
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package models

import (
	"fmt"
	"time"
)

// Значения по умолчанию для первого запуска устройства
const (
	DefaultPollIntervalMs      int64   = 30000
	DefaultDisplayTimeoutMs    int64   = 120000
	DefaultConfidenceThreshold float64 = 0.6
	DefaultAnomalyThreshold    float64 = 2.5
)

// DeviceConfig идентичность устройства и настраиваемые пороги
type DeviceConfig struct {
	DeviceID            string  `json:"deviceId"`
	PollIntervalMs      int64   `json:"pollIntervalMs"`
	DisplayTimeoutMs    int64   `json:"displayTimeoutMs"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	AnomalyThreshold    float64 `json:"anomalyThreshold"`
	IsEnabled           bool    `json:"isEnabled"`
}

// DefaultDeviceConfig возвращает конфигурацию по умолчанию для устройства
func DefaultDeviceConfig(deviceID string) DeviceConfig {
	return DeviceConfig{
		DeviceID:            deviceID,
		PollIntervalMs:      DefaultPollIntervalMs,
		DisplayTimeoutMs:    DefaultDisplayTimeoutMs,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		AnomalyThreshold:    DefaultAnomalyThreshold,
		IsEnabled:           true,
	}
}

// DisplayTimeout время ожидания ввода
func (c DeviceConfig) DisplayTimeout() time.Duration {
	return time.Duration(c.DisplayTimeoutMs) * time.Millisecond
}

// PollInterval интервал опроса, назначенный сервером
func (c DeviceConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Validate проверяет инварианты конфигурации
func (c DeviceConfig) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("device id required")
	}
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("pollIntervalMs must be > 0, got %d", c.PollIntervalMs)
	}
	if c.DisplayTimeoutMs <= 0 {
		return fmt.Errorf("displayTimeoutMs must be > 0, got %d", c.DisplayTimeoutMs)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidenceThreshold must be in [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.AnomalyThreshold < 0 {
		return fmt.Errorf("anomalyThreshold must be >= 0, got %v", c.AnomalyThreshold)
	}
	return nil
}

// PartialConfig конфигурация из ответа сервера. nil означает, что поле
// в ответе отсутствовало
type PartialConfig struct {
	PollIntervalMs      *int64   `json:"pollIntervalMs,omitempty"`
	DisplayTimeoutMs    *int64   `json:"displayTimeoutMs,omitempty"`
	ConfidenceThreshold *float64 `json:"confidenceThreshold,omitempty"`
	AnomalyThreshold    *float64 `json:"anomalyThreshold,omitempty"`
	IsEnabled           *bool    `json:"isEnabled,omitempty"`
	ConfigVersion       *int     `json:"configVersion,omitempty"`
}

// Merge накладывает присутствующие поля на текущую конфигурацию.
// Недопустимые значения пропускаются и возвращаются списком, чтобы
// инварианты DeviceConfig сохранялись всегда
func (c DeviceConfig) Merge(p PartialConfig) (DeviceConfig, []string) {
	merged := c
	var rejected []string

	if p.PollIntervalMs != nil {
		if *p.PollIntervalMs > 0 {
			merged.PollIntervalMs = *p.PollIntervalMs
		} else {
			rejected = append(rejected, "pollIntervalMs")
		}
	}
	if p.DisplayTimeoutMs != nil {
		if *p.DisplayTimeoutMs > 0 {
			merged.DisplayTimeoutMs = *p.DisplayTimeoutMs
		} else {
			rejected = append(rejected, "displayTimeoutMs")
		}
	}
	if p.ConfidenceThreshold != nil {
		if v := *p.ConfidenceThreshold; v >= 0 && v <= 1 {
			merged.ConfidenceThreshold = v
		} else {
			rejected = append(rejected, "confidenceThreshold")
		}
	}
	if p.AnomalyThreshold != nil {
		if *p.AnomalyThreshold >= 0 {
			merged.AnomalyThreshold = *p.AnomalyThreshold
		} else {
			rejected = append(rejected, "anomalyThreshold")
		}
	}
	if p.IsEnabled != nil {
		merged.IsEnabled = *p.IsEnabled
	}

	return merged, rejected
}

package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"
)

const (
	// DefaultProbeAttempts бюджет попыток подключения за одну итерацию
	DefaultProbeAttempts = 20
	// DefaultProbeDelay пауза между попытками
	DefaultProbeDelay = 500 * time.Millisecond
)

// Sleeper пауза между попытками, обычно device.Clock
type Sleeper interface {
	Sleep(d time.Duration)
}

// Prober проверяет, что до сервера есть сетевой путь. Никогда не ждет
// дольше Attempts*Delay плюс таймауты соединения
type Prober struct {
	Attempts int
	Delay    time.Duration
	dial     func(ctx context.Context) error
	sleeper  Sleeper
	logger   *slog.Logger
	online   bool
}

// NewProber создает проверку TCP доступности хоста из baseURL
func NewProber(baseURL string, sleeper Sleeper, logger *slog.Logger) (*Prober, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server url %q has no host", baseURL)
	}
	addr := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		addr = net.JoinHostPort(u.Hostname(), port)
	}

	dialer := &net.Dialer{Timeout: 2 * time.Second}
	dial := func(ctx context.Context) error {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}
	return newProber(dial, sleeper, logger), nil
}

func newProber(dial func(ctx context.Context) error, sleeper Sleeper, logger *slog.Logger) *Prober {
	return &Prober{
		Attempts: DefaultProbeAttempts,
		Delay:    DefaultProbeDelay,
		dial:     dial,
		sleeper:  sleeper,
		logger:   logger,
	}
}

// Connected проверяет связь, повторяя попытки в пределах бюджета
func (p *Prober) Connected(ctx context.Context) bool {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			break
		}
		if err = p.dial(ctx); err == nil {
			if !p.online {
				p.logger.Info("server reachable", "attempts", i+1)
			}
			p.online = true
			return true
		}
		if i < attempts-1 {
			p.sleeper.Sleep(p.Delay)
		}
	}

	if p.online || err != nil {
		p.logger.Warn("server unreachable", "attempts", attempts, "error", err)
	}
	p.online = false
	return false
}

package device

import (
	"bufio"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"vote-kiosk/internal/models"
)

// DefaultHold сколько держится нажатие, введенное строкой
const DefaultHold = 300 * time.Millisecond

// LineInput эмулирует кнопки строками "1".."5" из потока ввода.
// Нажатие удерживается hold и снимается после первого чтения
type LineInput struct {
	mu        sync.Mutex
	slot      int
	pressedAt time.Time
	hold      time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewLineInput создает эмулятор кнопок с удержанием hold
func NewLineInput(hold time.Duration, logger *slog.Logger) *LineInput {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &LineInput{
		hold:   hold,
		now:    time.Now,
		logger: logger,
	}
}

// Listen читает строки из r, пока поток не закончится
func (in *LineInput) Listen(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		slot, err := strconv.Atoi(line)
		if err != nil || slot < 1 || slot > ButtonCount {
			in.logger.Warn("ignored input line", "line", line)
			continue
		}
		in.Press(slot)
	}
	if err := scanner.Err(); err != nil {
		in.logger.Error("input stream failed", "error", err)
	}
}

// Press нажимает кнопку. Пока предыдущее нажатие удерживается, новое
// игнорируется: засчитывается только первое
func (in *LineInput) Press(slot int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	now := in.now()
	if in.slot != 0 && now.Sub(in.pressedAt) < in.hold {
		return
	}
	in.slot = slot
	in.pressedAt = now
}

func (in *LineInput) IsRatingPressed(slot int) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.slot == 0 {
		return false
	}
	if in.now().Sub(in.pressedAt) >= in.hold {
		in.slot = 0
		return false
	}
	if in.slot != slot {
		return false
	}
	in.slot = 0
	return true
}

// LogFeedback заменяет светодиоды записями в журнал
type LogFeedback struct {
	Logger *slog.Logger
}

func (f LogFeedback) Success() { f.Logger.Info("vote accepted", "led", "vote_ok") }

func (f LogFeedback) Error() { f.Logger.Warn("vote error", "led", "error") }

// LogDisplay выводит опрос в журнал вместо экрана
type LogDisplay struct {
	Logger *slog.Logger
}

func (d LogDisplay) Show(poll models.ActivePoll) {
	scale := poll.MaxRatingScale
	if scale <= 0 {
		scale = models.DefaultMaxRatingScale
	}
	buttons := scale
	if buttons > ButtonCount {
		buttons = ButtonCount
	}
	d.Logger.Info("poll displayed",
		"title", poll.Title,
		"question", poll.Question,
		"scale", scale,
		"stars", strings.Repeat("*", buttons),
	)
}

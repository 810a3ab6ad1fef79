// Package remote реализует обмен киоска с сервером опросов по HTTP:
// синхронизацию конфигурации, получение активного опроса и отправку голосов
package remote

import (
	"errors"
	"fmt"
)

// Status категория результата обращения к серверу. Ядро не смотрит
// на транспортные коды глубже этой классификации
type Status int

const (
	StatusSuccess Status = iota
	StatusServerError
	StatusUnreachable
	StatusMalformedResponse
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusServerError:
		return "server_error"
	case StatusUnreachable:
		return "unreachable"
	case StatusMalformedResponse:
		return "malformed_response"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Error ошибка обращения к серверу с категорией
type Error struct {
	Op     string
	Status Status
	// Code HTTP код, если ответ был получен
	Code int
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Status)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// StatusOf классифицирует произвольную ошибку. nil означает успех,
// ошибки без категории считаются недоступностью сервера
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Status
	}
	return StatusUnreachable
}

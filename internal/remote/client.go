package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vote-kiosk/internal/models"
)

const (
	defaultPollTitle    = "Untitled"
	defaultPollQuestion = "No question"
	pollStatusActive    = "ACTIVE"

	// maxBodyBytes ограничение на размер ответа сервера
	maxBodyBytes = 1 << 20
)

// Client HTTP клиент сервера опросов
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient создает клиент для baseURL вида http://host:8080/api
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// syncResponse конверт ответа GET /iot/sync/{deviceId}
type syncResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		KioskID  string                `json:"kioskId"`
		Location string                `json:"location"`
		Config   *models.PartialConfig `json:"config"`
	} `json:"data"`
}

// pollResponse элемент массива GET /polls?status=ACTIVE
type pollResponse struct {
	ID             *string `json:"id"`
	Title          *string `json:"title"`
	Question       *string `json:"question"`
	RatingMaxScale *int    `json:"rating_max_scale"`
	Status         string  `json:"status"`
}

// FetchConfig получает конфигурацию устройства. Отсутствующие в ответе
// поля остаются nil
func (c *Client) FetchConfig(ctx context.Context, deviceID string) (models.PartialConfig, error) {
	const op = "fetch config"

	body, err := c.do(ctx, op, http.MethodGet, "/iot/sync/"+url.PathEscape(deviceID), nil)
	if err != nil {
		return models.PartialConfig{}, err
	}

	var resp syncResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.PartialConfig{}, &Error{Op: op, Status: StatusMalformedResponse, Err: err}
	}
	if !resp.Success {
		return models.PartialConfig{}, &Error{Op: op, Status: StatusServerError, Err: fmt.Errorf("server reported failure: %s", resp.Message)}
	}
	if resp.Data == nil || resp.Data.Config == nil {
		return models.PartialConfig{}, nil
	}
	return *resp.Data.Config, nil
}

// FetchActivePoll получает текущий активный опрос. nil без ошибки означает,
// что активных опросов нет
func (c *Client) FetchActivePoll(ctx context.Context) (*models.ActivePoll, error) {
	const op = "fetch poll"

	body, err := c.do(ctx, op, http.MethodGet, "/polls?status="+pollStatusActive, nil)
	if err != nil {
		return nil, err
	}

	var polls []pollResponse
	if err := json.Unmarshal(body, &polls); err != nil {
		return nil, &Error{Op: op, Status: StatusMalformedResponse, Err: err}
	}
	if len(polls) == 0 {
		return nil, nil
	}

	p := polls[0]
	poll := &models.ActivePoll{
		Title:          defaultPollTitle,
		Question:       defaultPollQuestion,
		MaxRatingScale: models.DefaultMaxRatingScale,
		IsActive:       p.Status == pollStatusActive,
	}
	if p.ID != nil {
		poll.ID = *p.ID
	}
	if p.Title != nil {
		poll.Title = *p.Title
	}
	if p.Question != nil {
		poll.Question = *p.Question
	}
	if p.RatingMaxScale != nil && *p.RatingMaxScale > 0 {
		poll.MaxRatingScale = *p.RatingMaxScale
	}
	return poll, nil
}

// SubmitVote отправляет голос. Повторов нет: при ошибке голос теряется,
// вызывающий обязан сообщить об этом
func (c *Client) SubmitVote(ctx context.Context, rec models.VoteRecord) error {
	const op = "submit vote"

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}
	_, err = c.do(ctx, op, http.MethodPost, "/iot/votes", payload)
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &Error{Op: op, Status: StatusUnreachable, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Status: StatusUnreachable, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.logger.Debug("remote call", "op", op, "method", method, "path", path,
		"status", resp.StatusCode, "latency", time.Since(start))
	if err != nil {
		return nil, &Error{Op: op, Status: StatusUnreachable, Code: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Op: op, Status: StatusServerError, Code: resp.StatusCode}
	}
	return body, nil
}

// Package api — HTTP/websocket клиент сервера репликации.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/iudanet/doorsync/pkg/api"
)

// ProbeTimeout — таймаут пробы связности.
const ProbeTimeout = 5 * time.Second

var (
	// ErrUnauthorized — сервер отверг токен; нужна повторная регистрация.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict — push отклонён бизнес-правилом коллекции.
	ErrConflict = errors.New("push conflict")
	// ErrServerUnavailable — проба связности не прошла.
	ErrServerUnavailable = errors.New("server unavailable")
)

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient  *http.Client
	probeClient *http.Client
	baseURL     string

	mu    sync.RWMutex
	token string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Отдельный клиент с коротким таймаутом: проба должна быстро
		// сказать "офлайн", а не висеть 30 секунд.
		probeClient: &http.Client{
			Timeout: ProbeTimeout,
		},
	}
}

// SetToken запоминает токен доступа для последующих запросов.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token возвращает текущий токен доступа.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Probe проверяет доступность сервера через health endpoint.
// Возвращает ErrServerUnavailable, если сервер не ответил "ok" за
// ProbeTimeout.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := c.probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrServerUnavailable, resp.StatusCode)
	}
	return nil
}

// IssueToken регистрирует дверь и получает токен доступа.
// Полученный токен запоминается в клиенте.
func (c *Client) IssueToken(ctx context.Context, req api.TokenRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/token", req, &resp); err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	c.SetToken(resp.AccessToken)
	return &resp, nil
}

// Pull запрашивает очередную страницу коллекции после чекпоинта.
func (c *Client) Pull(ctx context.Context, collection string, req api.PullRequest) (*api.PullResponse, error) {
	var resp api.PullResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/pull/"+collection, req, &resp); err != nil {
		return nil, fmt.Errorf("pull %s failed: %w", collection, err)
	}
	return &resp, nil
}

// Push отправляет батч изменений коллекции.
func (c *Client) Push(ctx context.Context, collection string, req api.PushRequest) (*api.PushResponse, error) {
	var resp api.PushResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/push/"+collection, req, &resp); err != nil {
		return nil, fmt.Errorf("push %s failed: %w", collection, err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		message := string(respBody)
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			message = errResp.Message
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, message)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", ErrConflict, message)
		}
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, message)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

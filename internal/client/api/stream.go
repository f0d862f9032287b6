package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/iudanet/doorsync/pkg/api"
)

// Stream подключается к live-потоку коллекции и вызывает handler на
// каждом батче. Блокируется до разрыва соединения или отмены контекста;
// переподключение — забота вызывающего.
func (c *Client) Stream(ctx context.Context, collection, doorID string, handler func(api.PullResponse)) error {
	wsURL, err := c.streamURL(collection, doorID)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("stream dial %s: %w", collection, err)
	}
	defer conn.Close()

	// Отмена контекста рвёт блокирующий ReadJSON.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var msg api.PullResponse
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream read %s: %w", collection, err)
		}
		handler(msg)
	}
}

// streamURL строит websocket-адрес потока. Токен передаётся query-параметром:
// заголовки при websocket-подключении доступны не во всех средах.
func (c *Client) streamURL(collection, doorID string) (string, error) {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	u, err := url.Parse(base + "/api/v1/stream/" + collection)
	if err != nil {
		return "", fmt.Errorf("bad stream url: %w", err)
	}
	q := u.Query()
	if doorID != "" {
		q.Set("door_id", doorID)
	}
	if token := c.Token(); token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

package speech

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/educhain/assistant/backend/pkg/log"
)

// Dialer opens websocket connections to the speech endpoints, retrying transient failures.
type Dialer struct {
	HandshakeTimeout time.Duration
	MaxAttempts      int
	Backoff          time.Duration
}

// DefaultDialer returns the dial settings used by the Volcengine clients.
func DefaultDialer() *Dialer {
	return &Dialer{
		HandshakeTimeout: 30 * time.Second,
		MaxAttempts:      3,
		Backoff:          time.Second,
	}
}

// Dial connects to url. Handshake rejections are returned at once; network errors are
// retried with a linear backoff.
func (d *Dialer) Dial(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
	ws := &websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}

	attempts := d.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, resp, err := ws.DialContext(ctx, url, header)
		if err == nil {
			if logID := resp.Header.Get("X-Tt-Logid"); logID != "" {
				l := log.Component("speech")
				l.Debug().Str("logid", logID).Str("url", url).Msg("speech websocket connected")
			}
			return conn, nil
		}

		if resp != nil {
			return nil, fmt.Errorf("websocket handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		lastErr = err
		if ctx.Err() != nil || !IsRetryableError(err) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * d.Backoff):
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("websocket dial failed after %d attempts: %w", attempts, lastErr)
}

// IsRetryableError reports whether err is worth another dial.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err, websocket.CloseAbnormalClosure, websocket.CloseGoingAway) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Package push provides the persistent delivery transport behind the
// notification channel: a websocket client subscribed to the principal's
// topic, plus an in-memory implementation for tests and offline development.
package push

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/cmrsapp/console/core"
	"github.com/cmrsapp/console/core/notification"
)

// WebsocketTransport maintains one websocket subscription to the notification
// service. Lost connections are redialed forever at a fixed delay; there is no
// backoff and no retry cap. Liveness is checked with pings every heartbeat
// interval.
type WebsocketTransport struct {
	dialer         *websocket.Dialer
	logger         core.Logger
	baseURL        string
	reconnectDelay time.Duration
	heartbeat      time.Duration

	mu         sync.Mutex
	cancel     context.CancelFunc
	conn       *websocket.Conn
	subscribed bool
	closed     bool
}

var _ notification.Transport = (*WebsocketTransport)(nil)

func NewWebsocketTransport(conf *core.Config, logger core.Logger) *WebsocketTransport {
	base := strings.TrimRight(conf.Services.NotificationBaseURL, "/")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return &WebsocketTransport{
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:         logger,
		baseURL:        base,
		reconnectDelay: conf.Notification.ReconnectDelay,
		heartbeat:      conf.Notification.HeartbeatDelta,
	}
}

// Subscribe starts the connection loop for the identifier's topic and returns
// immediately. Connectivity flips are reported through up; each received
// payload goes to onMessage. A transport subscribes at most once.
func (t *WebsocketTransport) Subscribe(identifier string, onMessage func(payload []byte), up func(connected bool)) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("push transport closed")
	}
	if t.subscribed {
		t.mu.Unlock()
		return errors.New("push transport already subscribed")
	}
	t.subscribed = true
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(ctx, t.baseURL+"/ws-notifications/"+identifier, onMessage, up)
	return nil
}

// Close tears the subscription down deterministically: the connection loop
// stops and any open socket is closed.
func (t *WebsocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.cancel != nil {
		t.cancel()
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

func (t *WebsocketTransport) run(ctx context.Context, url string, onMessage func([]byte), up func(bool)) {
	for {
		conn, resp, err := t.dialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn("push dial failed, retrying", err)
			up(false)
			if !t.sleep(ctx) {
				return
			}
			continue
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			conn.Close()
			return
		}
		t.conn = conn
		t.mu.Unlock()

		up(true)
		t.pump(ctx, conn, onMessage)
		conn.Close()
		if ctx.Err() != nil {
			return
		}

		t.logger.Warn("push connection lost, reconnecting")
		up(false)
		if !t.sleep(ctx) {
			return
		}
	}
}

// pump reads the socket until it fails. Pings go out every heartbeat; a pong
// must arrive within two heartbeats or the read deadline kills the connection.
func (t *WebsocketTransport) pump(ctx context.Context, conn *websocket.Conn, onMessage func([]byte)) {
	deadline := func() time.Time { return time.Now().Add(2 * t.heartbeat) }
	_ = conn.SetReadDeadline(deadline())
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(deadline()) })

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(t.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.heartbeat)); err != nil {
					return
				}
			case <-pingDone:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		onMessage(payload)
	}
}

func (t *WebsocketTransport) sleep(ctx context.Context) bool {
	select {
	case <-time.After(t.reconnectDelay):
		return true
	case <-ctx.Done():
		return false
	}
}

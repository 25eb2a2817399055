package comfy

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"loom/internal/logging"
)

const wsReconnectDelay = 5 * time.Second

// ProgressListener maintains a WebSocket subscription to the engine's event
// feed and forwards decoded events to a callback. The connection is re-dialed
// after failures until the context is cancelled.
type ProgressListener struct {
	endpoint string
	logger   *slog.Logger
	dialer   *websocket.Dialer
}

// NewProgressListener builds a listener for the engine at baseURL,
// authenticated (for event routing) by clientID.
func NewProgressListener(baseURL, clientID string, logger *slog.Logger) (*ProgressListener, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("progress listener: parse base url: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("progress listener: unsupported scheme %q", parsed.Scheme)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/ws"
	query := parsed.Query()
	query.Set("clientId", strings.TrimSpace(clientID))
	parsed.RawQuery = query.Encode()

	if logger == nil {
		logger = logging.NewNop()
	}
	return &ProgressListener{
		endpoint: parsed.String(),
		logger:   logging.WithComponent(logger, "engine-ws"),
		dialer:   websocket.DefaultDialer,
	}, nil
}

// Run connects and forwards events until ctx is cancelled. Dial and read
// failures are logged and retried; Run only returns the context's error.
func (l *ProgressListener) Run(ctx context.Context, handle func(ProgressEvent)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, _, err := l.dialer.DialContext(ctx, l.endpoint, nil)
		if err != nil {
			l.logger.Warn("engine websocket dial failed",
				logging.Error(err),
				slog.String("endpoint", l.endpoint))
			if err := sleepCtx(ctx, wsReconnectDelay); err != nil {
				return err
			}
			continue
		}
		l.logger.Info("engine websocket connected", slog.String("endpoint", l.endpoint))
		l.readLoop(ctx, conn, handle)
	}
}

func (l *ProgressListener) readLoop(ctx context.Context, conn *websocket.Conn, handle func(ProgressEvent)) {
	defer conn.Close()
	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				l.logger.Warn("engine websocket read failed", logging.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			// Binary frames carry preview images; the queue service polls
			// /history for final outputs instead.
			continue
		}
		event, ok := decodeProgressEvent(payload)
		if !ok {
			continue
		}
		handle(event)
	}
}

func decodeProgressEvent(payload []byte) (ProgressEvent, bool) {
	var frame struct {
		Type string `json:"type"`
		Data struct {
			PromptID string `json:"prompt_id"`
			Node     string `json:"node"`
			Value    int    `json:"value"`
			Max      int    `json:"max"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		return ProgressEvent{}, false
	}
	switch frame.Type {
	case "executing", "progress", "execution_error", "status":
	default:
		return ProgressEvent{}, false
	}
	return ProgressEvent{
		Type:     frame.Type,
		PromptID: frame.Data.PromptID,
		NodeID:   frame.Data.Node,
		Value:    frame.Data.Value,
		Max:      frame.Data.Max,
	}, true
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

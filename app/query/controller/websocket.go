package controller

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mortality-signals/signalsx/pkg/redis"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // "run.completed", "error", "info"
	Payload interface{} `json:"payload"` // Event-specific data
}

// HandleWebSocket upgrades the HTTP connection to WebSocket and streams
// pipeline run-completion events from the Redis run events stream.
//
// Server sends:
// - {"type": "run.completed", "payload": {...}}
// - {"type": "info", "payload": {"message": "..."}}
// - {"type": "error", "payload": {"message": "..."}}
//
// IMPORTANT: All goroutines have panic recovery to prevent crashes.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Check if Redis is available
	if c.App.RedisClient == nil {
		http.Error(w, "Real-time events not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		err := conn.Close()
		if err != nil {
			c.App.Logger.Error("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	// Create cancellable context for this connection
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Channel for outgoing messages
	send := make(chan ServerMessage, 256)

	// Wait group to coordinate goroutines
	var wg sync.WaitGroup

	// Start the Redis stream reader with panic recovery
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in Redis stream reader goroutine",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("remote_addr", r.RemoteAddr))
				// Signal shutdown on panic
				cancel()
			}
		}()
		c.streamRunEvents(ctx, send)
	}()

	// Start ping ticker (keep-alive) with panic recovery
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in ping ticker goroutine",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("remote_addr", r.RemoteAddr))
				// Signal shutdown on panic
				cancel()
			}
		}()
		c.sendPings(ctx, conn)
	}()

	// Start message writer with panic recovery
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in message writer goroutine",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("remote_addr", r.RemoteAddr))
				// Signal shutdown on panic
				cancel()
			}
		}()
		c.writeMessages(conn, send)
	}()

	// Read messages from the client for close detection.
	// This blocks until the connection closes.
	c.readClientMessages(ctx, conn, cancel)

	// Connection closed - cleanup
	close(send)
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// streamRunEvents tails the run events stream and forwards new entries to the
// send channel. The feed starts at the stream tail: clients see runs that
// complete after they connect, historical data comes from the REST endpoints.
//
// This function implements automatic reconnection with exponential backoff:
// - If the Redis connection is lost, it will retry with increasing delays
// - Clients are notified when Redis is unavailable
// - Automatically resumes tailing when Redis recovers
// - Respects context cancellation for clean shutdown
func (c *Controller) streamRunEvents(ctx context.Context, send chan<- ServerMessage) {
	// Retry configuration
	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
		backoffFactor  = 2.0
		jitterFactor   = 0.1 // 10% jitter
	)

	backoff := initialBackoff
	attemptNum := 0
	lastID := "$"

	for {
		// Check if context is cancelled before attempting connection
		select {
		case <-ctx.Done():
			c.App.Logger.Info("Run event stream cancelled")
			return
		default:
		}

		attemptNum++

		// Tail the stream until the connection fails
		tailErr := c.tailRunEvents(ctx, send, &lastID)

		// If context was cancelled, exit cleanly
		if ctx.Err() != nil {
			c.App.Logger.Info("Run event stream cancelled")
			return
		}

		c.App.Logger.Warn("Run event stream read failed, will retry",
			zap.Error(tailErr),
			zap.Int("attempt", attemptNum),
			zap.Duration("backoff", backoff))

		// Notify client that Redis is unavailable
		select {
		case send <- ServerMessage{
			Type: "error",
			Payload: map[string]interface{}{
				"message":     "Redis connection lost, attempting to reconnect...",
				"retryIn":     backoff.Seconds(),
				"attempt":     attemptNum,
				"recoverable": true,
			},
		}:
		case <-ctx.Done():
			return
		}

		// Wait before retrying (with context cancellation check)
		select {
		case <-time.After(backoff):
			// Continue to retry
		case <-ctx.Done():
			c.App.Logger.Info("Run event stream cancelled during backoff")
			return
		}

		// Calculate next backoff with exponential increase and jitter
		backoff = CalculateNextBackoff(backoff, maxBackoff, backoffFactor, jitterFactor)
	}
}

// tailRunEvents blocks on the run events stream, forwarding entries until a
// read fails or the context is cancelled. lastID is updated in place so a
// reconnect resumes where the previous read left off.
func (c *Controller) tailRunEvents(ctx context.Context, send chan<- ServerMessage, lastID *string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := c.App.RedisClient.XRead(ctx, []string{redis.RunEventsStream}, []string{*lastID}, 100, 5*time.Second)
		if err != nil {
			// Nil means the blocking read timed out with no new entries
			if errors.Is(err, goredis.Nil) {
				continue
			}
			return err
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				*lastID = msg.ID
				c.forwardStreamEntry(ctx, send, msg)
			}
		}
	}
}

// forwardStreamEntry converts one stream entry into a ServerMessage.
func (c *Controller) forwardStreamEntry(ctx context.Context, send chan<- ServerMessage, msg goredis.XMessage) {
	eventType, _ := msg.Values["type"].(string)
	if eventType == "" {
		c.App.Logger.Warn("Stream entry missing event type", zap.String("id", msg.ID))
		return
	}

	raw, _ := msg.Values["payload"].(string)
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		c.App.Logger.Error("Failed to parse run event payload",
			zap.Error(err),
			zap.String("id", msg.ID))
		return
	}

	select {
	case send <- ServerMessage{Type: eventType, Payload: payload}:
	case <-ctx.Done():
	}
}

// CalculateNextBackoff calculates the next backoff duration with exponential growth and jitter.
// Exported for testing.
func CalculateNextBackoff(current, max time.Duration, factor, jitterFactor float64) time.Duration {
	// Calculate exponential increase
	next := time.Duration(float64(current) * factor)

	// Cap at maximum
	if next > max {
		next = max
	}

	// Add jitter: random value between -jitterFactor and +jitterFactor
	// This prevents all clients from retrying at exactly the same time
	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	nextWithJitter := time.Duration(float64(next) + jitter)

	// Ensure we never go below initial or above max
	if nextWithJitter < current {
		nextWithJitter = current
	}
	if nextWithJitter > max {
		nextWithJitter = max
	}

	return nextWithJitter
}

// sendPings sends periodic WebSocket ping frames to keep the connection alive.
// The client will automatically respond with pong frames, which resets the read deadline.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Send WebSocket PING frame (not a JSON message)
			// Client will automatically respond with PONG, resetting read deadline
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Error("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// writeMessages writes messages from the send channel to the WebSocket connection.
func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage) {
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Error("Failed to write WebSocket message", zap.Error(err))
			return
		}
	}
}

// readClientMessages reads from the WebSocket connection to detect closure.
// The feed is one-way; anything the client sends is discarded.
func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	// Set a read deadline for detecting dead connections
	err := conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	if err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}

	// Set pong handler to reset read deadline
	conn.SetPongHandler(func(string) error {
		err := conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if err != nil {
			c.App.Logger.Error("Failed to reset read deadline", zap.Error(err))
			return err
		}
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.App.Logger.Error("WebSocket read error", zap.Error(err))
				}
				cancel() // Signal shutdown
				return
			}

			// Reset read deadline after successful read
			if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
				c.App.Logger.Error("Failed to reset read deadline", zap.Error(err))
				return
			}
		}
	}
}

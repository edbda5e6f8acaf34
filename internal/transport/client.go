package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/navikt/roomswitch/internal/config"
	"github.com/navikt/roomswitch/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ErrClosed is returned for commands issued after the connection went away
var ErrClosed = errors.New("transport connection closed")

// CommandError is a command the gateway acknowledged with an error
type CommandError struct {
	Type    string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("transport %s failed: %s", e.Type, e.Message)
}

// Client is a Transport backed by a websocket connection to the transport gateway
type Client struct {
	serverURL      string
	codec          Codec
	requestTimeout time.Duration
	logger         *slog.Logger

	conn     *websocket.Conn
	outgoing chan *Envelope
	events   chan RawEvent
	done     chan struct{}

	mu      sync.Mutex
	pending map[string]chan *Envelope

	closeOnce sync.Once
}

// NewClient creates a gateway client; Connect must be called before use
func NewClient(cfg config.TransportConfig, logger *slog.Logger) (*Client, error) {
	codec, err := CodecFor(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		serverURL:      cfg.URL,
		codec:          codec,
		requestTimeout: cfg.RequestTimeout,
		logger:         logger.With("component", "transport"),
		outgoing:       make(chan *Envelope, 16),
		events:         make(chan RawEvent, 64),
		done:           make(chan struct{}),
		pending:        make(map[string]chan *Envelope),
	}, nil
}

// Connect establishes the websocket connection and starts the pumps
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid transport URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to transport: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.logger.Info("connected to transport gateway", "url", u.Redacted(), "codec", c.codec.Name())

	go c.readPump()
	go c.writePump()

	return nil
}

// Alive reports whether the connection is up; it serves as a readiness check
func (c *Client) Alive(ctx context.Context) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if c.conn == nil {
		return errors.New("transport not connected")
	}
	return nil
}

// Events returns the ordered event stream
func (c *Client) Events() <-chan RawEvent {
	return c.events
}

// Close shuts the connection down and fails any command still waiting for an ack
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			c.conn.Close()
		}
	})
}

// readPump reads frames, resolving acks and forwarding events in order
func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.events)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("transport read failed", "error", err)
			}
			return
		}

		var env Envelope
		if err := c.codec.Unmarshal(data, &env); err != nil {
			c.logger.Warn("discarding undecodable transport frame", "error", err)
			continue
		}

		if env.Type == TypeAck {
			c.resolve(&env)
			continue
		}

		// Blocking send: events are never dropped or reordered
		select {
		case c.events <- RawEvent{Name: env.Type, Payload: env.Payload}:
		case <-c.done:
			return
		}
	}
}

// writePump writes queued commands and sends periodic pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.outgoing:
			data, err := c.codec.Marshal(env)
			if err != nil {
				c.fail(env.ID, err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.MessageType(), data); err != nil {
				c.logger.Error("transport write failed", "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

// call sends a command and waits for its ack
func (c *Client) call(ctx context.Context, typ string, payload any) error {
	var body json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", typ, err)
		}
		body = data
	}

	if _, ok := ctx.Deadline(); !ok && c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	env := &Envelope{ID: uuid.NewString(), Type: typ, Payload: body}
	ack := make(chan *Envelope, 1)

	c.mu.Lock()
	c.pending[env.ID] = ack
	c.mu.Unlock()
	defer c.forget(env.ID)

	select {
	case c.outgoing <- env:
	case <-ctx.Done():
		return fmt.Errorf("transport %s not sent: %w", typ, ctx.Err())
	case <-c.done:
		return ErrClosed
	}

	select {
	case reply := <-ack:
		if reply.Error != "" {
			return &CommandError{Type: typ, Message: reply.Error}
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("transport %s not acknowledged: %w", typ, ctx.Err())
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) resolve(env *Envelope) {
	c.mu.Lock()
	ack, ok := c.pending[env.ID]
	delete(c.pending, env.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("ack for unknown command", "id", env.ID)
		return
	}
	ack <- env
}

// fail resolves a command locally when it could not be put on the wire
func (c *Client) fail(id string, err error) {
	c.resolve(&Envelope{ID: id, Type: TypeAck, Error: err.Error()})
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Join joins the configured room
func (c *Client) Join(ctx context.Context, cfg JoinConfig) error {
	return c.call(ctx, TypeJoin, cfg)
}

// Leave leaves the current room
func (c *Client) Leave(ctx context.Context) error {
	return c.call(ctx, TypeLeave, nil)
}

// ToggleMic flips the local microphone
func (c *Client) ToggleMic(ctx context.Context) error {
	return c.call(ctx, TypeToggleMic, nil)
}

// ToggleWebcam flips the local camera
func (c *Client) ToggleWebcam(ctx context.Context) error {
	return c.call(ctx, TypeToggleWebcam, nil)
}

// RequestMediaRelay asks the destination room to accept our media
func (c *Client) RequestMediaRelay(ctx context.Context, req RelayRequest) error {
	return c.call(ctx, TypeRequestMediaRelay, req)
}

// StopMediaRelay ends the relay to destination
func (c *Client) StopMediaRelay(ctx context.Context, destination models.RoomID) error {
	return c.call(ctx, TypeStopMediaRelay, StopRelayRequest{DestinationMeetingID: destination})
}

// RespondToMediaRelay answers an inbound relay request
func (c *Client) RespondToMediaRelay(ctx context.Context, source models.RoomID, decision models.Decision) error {
	return c.call(ctx, TypeRespondToMediaRelay, RelayResponse{SourceMeetingID: source, Decision: decision})
}

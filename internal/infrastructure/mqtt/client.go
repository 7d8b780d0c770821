package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sunpath/solarbridge/internal/infrastructure/config"
)

// Config describes one broker session.
//
// The bridge runs two independent sessions (source and destination). They
// may point at the same physical broker but never share subscription state.
type Config struct {
	// Broker holds host, port, TLS, client ID and credentials.
	Broker config.BrokerConfig

	// Role identifies the session ("source" or "destination") and selects
	// the status topic the session announces itself on.
	Role string

	// QoS is the default quality of service for status publishes.
	QoS int

	// Reconnect holds the backoff bounds for the retry loop.
	Reconnect config.ReconnectConfig
}

// ConnState is the connection lifecycle state of a broker session.
//
// Transitions are driven by transport callbacks:
//
//	Disconnected → Connecting → Connected → Reconnecting → Connected → …
//
// Subscription replay is the transition action into Connected.
type ConnState int32

const (
	// StateDisconnected means no session exists (initial state, or after Close).
	StateDisconnected ConnState = iota

	// StateConnecting means the initial connection attempt is in progress.
	StateConnecting

	// StateConnected means the session is established.
	StateConnected

	// StateReconnecting means the session was lost and the retry loop is running.
	StateReconnecting
)

// String returns the state name for logging.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Client wraps paho.mqtt.golang with solarbridge-specific functionality.
//
// It provides connection management, message publishing, subscription
// handling, and automatic reconnection with bounded backoff. Connection
// failures never crash the process; the client retries and replays its
// subscription set after every successful (re)connect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     Config

	// subscriptions tracks active subscriptions for replay on reconnect.
	// Keyed by topic, so repeated reconnects never accumulate duplicates.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// state tracks the connection lifecycle.
	state   ConnState
	stateMu sync.RWMutex

	// Callbacks for connection events (optional, set via SetOnConnect/SetOnDisconnect).
	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for replay on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run synchronously on the transport callback path, so the whole
// inbound pipeline (routing, buffering, load modification, publish) must
// be fast enough not to starve the callback goroutine.
//
// Parameters:
//   - topic: The topic the message was received on
//   - payload: The raw message payload
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a session with the configured MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures Last Will and Testament (LWT) for offline detection
//  3. Sets up auto-reconnect with bounded backoff
//  4. Attempts initial connection with timeout
//  5. Publishes online status to solarbridge/system/status/<role>
//
// Connect is idempotent at the paho level: connecting an already
// connected session is a no-op.
//
// Parameters:
//   - cfg: Session configuration (broker, role, QoS, reconnect bounds)
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If initial connection fails within timeout
func Connect(cfg Config) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		subscriptions: make(map[string]subscription),
		state:         StateConnecting,
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.setState(StateReconnecting)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		c.setState(StateDisconnected)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		c.setState(StateDisconnected)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Set connected state immediately after the successful connect. The
	// OnConnectHandler runs asynchronously and may not have executed yet;
	// it still handles subscription replay and status publishing.
	c.setState(StateConnected)

	return c, nil
}

// handleConnect runs on every transition into Connected.
func (c *Client) handleConnect() {
	c.setState(StateConnected)

	// Replay the full subscription set. The broker does not retain
	// subscriptions across a TCP-level reconnect.
	c.replaySubscriptions()

	c.publishOnlineStatus()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleConnectionLost runs when an established session drops. The paho
// auto-reconnect loop takes over, so the next state is Reconnecting.
func (c *Client) handleConnectionLost(err error) {
	c.setState(StateReconnecting)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// replaySubscriptions re-subscribes to all tracked topics after reconnect.
func (c *Client) replaySubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		// Errors during replay are ignored; a failed replay surfaces as
		// missing traffic and the next reconnect retries the full set.
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// publishOnlineStatus announces the session on its role status topic.
func (c *Client) publishOnlineStatus() {
	topic := Topics{}.SystemStatus(c.cfg.Role)
	payload := buildOnlinePayload(c.cfg.Broker.ClientID)
	c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
}

// Close gracefully disconnects from the MQTT broker.
//
// It performs:
//  1. Publishes graceful offline status (different from LWT crash status)
//  2. Waits for pending publish operations
//  3. Disconnects from broker
//
// Returns:
//   - error: If disconnect fails (connection already closed is not an error)
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		topic := Topics{}.SystemStatus(c.cfg.Role)
		payload := buildOfflinePayload(c.cfg.Broker.ClientID)
		token := c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	// Disconnect with quiesce period for pending operations
	c.client.Disconnect(defaultDisconnectQuiesce)

	c.setState(StateDisconnected)

	return nil
}

// HealthCheck verifies the MQTT connection is alive and functioning.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// State returns the current connection lifecycle state.
func (c *Client) State() ConnState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// setState records a connection state transition.
func (c *Client) setState(s ConnState) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// IsConnected reports whether the session is currently established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected && c.client != nil && c.client.IsConnected()
}

// Role returns the configured session role ("source" or "destination").
func (c *Client) Role() string {
	return c.cfg.Role
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}

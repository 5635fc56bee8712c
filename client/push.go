package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConnState is the liveness state of the push channel.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

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

// ErrAuthRejected reports that the broker refused the credential. The client
// stops retrying; the user has to re-authenticate before another Connect is
// meaningful.
var ErrAuthRejected = errors.New("push channel authentication rejected")

const defaultRetryDelay = 5 * time.Second

// PushConfig configures a PushClient.
type PushConfig struct {
	// URL of the websocket endpoint, e.g. "wss://host/ws/notifications".
	URL string
	// RetryDelay is the fixed delay between reconnect attempts. Defaults to 5s.
	RetryDelay time.Duration
	// OnNotification receives every decoded pushed notification.
	OnNotification func(Notification)
	// OnConnect fires after each successful (re)connection, before any frames
	// are delivered. The cache hooks its reconciliation fetch here.
	OnConnect func()
	// OnAuthRejected fires once when the broker rejects the credential.
	OnAuthRejected func(error)
	Logger         *zerolog.Logger
	Dialer         *websocket.Dialer
}

// PushClient maintains one live, authenticated, subscribe-only websocket to
// the notification broker. Transport failures are retried on a fixed delay for
// as long as the session holds a credential; an explicit Disconnect, or an
// authentication rejection, is terminal.
type PushClient struct {
	cfg    PushConfig
	logger zerolog.Logger

	mu     sync.Mutex
	userID string
	token  string
	state  ConnState
	conn   *websocket.Conn
	stop   chan struct{}
}

// NewPushClient creates a push client. Connect must be called to go live.
func NewPushClient(cfg PushConfig) *PushClient {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &PushClient{
		cfg:    cfg,
		logger: logger.With().Str("component", "push_client").Logger(),
		state:  StateDisconnected,
	}
}

// Connect establishes the channel for the given identity. Missing userID or
// token makes this a silent no-op: the not-yet-authenticated state is normal,
// not an error. Calling Connect again for the same user while live is a no-op;
// for a different user, the old channel is torn down first so a stale
// subscription can never deliver someone else's notifications.
func (p *PushClient) Connect(userID, token string) {
	if userID == "" || token == "" {
		return
	}

	p.mu.Lock()
	if p.stop != nil {
		if p.userID == userID {
			p.mu.Unlock()
			return
		}
		p.teardownLocked()
	}

	p.userID = userID
	p.token = token
	p.state = StateConnecting
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	p.logger.Info().Str("userId", userID).Msg("push channel connecting")
	go p.run(stop, token)
}

// Disconnect tears down the channel and stops any reconnect attempts.
// Idempotent.
func (p *PushClient) Disconnect() {
	p.mu.Lock()
	p.teardownLocked()
	p.userID = ""
	p.token = ""
	p.mu.Unlock()
}

// teardownLocked closes the active session. Callers hold p.mu.
func (p *PushClient) teardownLocked() {
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.state = StateDisconnected
}

// IsConnected reports liveness. Diagnostic only.
func (p *PushClient) IsConnected() bool {
	return p.State() == StateConnected
}

// State returns the current connection state.
func (p *PushClient) State() ConnState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// UserID returns the identity the channel is bound to, or "".
func (p *PushClient) UserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return ""
	}
	return p.userID
}

func (p *PushClient) run(stop chan struct{}, token string) {
	attempt := 0
	for {
		conn, resp, err := p.cfg.Dialer.Dial(p.cfg.URL+"?token="+token, nil)
		if stopped(stop) {
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				p.authRejected(stop)
				return
			}
			attempt++
			// Transient transport failure: fixed-delay retry, no user-facing
			// error for the first attempts.
			p.logger.Debug().Err(err).Int("attempt", attempt).Msg("push channel dial failed, retrying")
			if !p.waitRetry(stop) {
				return
			}
			continue
		}

		p.mu.Lock()
		if p.stop != stop {
			p.mu.Unlock()
			conn.Close()
			return
		}
		p.conn = conn
		p.state = StateConnected
		p.mu.Unlock()

		attempt = 0
		p.logger.Info().Msg("push channel connected")
		if p.cfg.OnConnect != nil {
			p.cfg.OnConnect()
		}

		terminal := p.readLoop(conn, stop)
		conn.Close()
		if terminal || stopped(stop) {
			return
		}

		p.mu.Lock()
		if p.stop != stop {
			p.mu.Unlock()
			return
		}
		p.conn = nil
		p.state = StateReconnecting
		p.mu.Unlock()

		p.logger.Warn().Msg("push channel lost, reconnecting")
		if !p.waitRetry(stop) {
			return
		}
	}
}

// readLoop consumes frames until the connection dies. It returns true when
// the session must not be retried (auth rejection).
func (p *PushClient) readLoop(conn *websocket.Conn, stop chan struct{}) bool {
	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data,omitempty"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return false
		}

		switch frame.Event {
		case "connected":
			// Greeting frame, nothing to do.
		case "unauthorized":
			p.authRejected(stop)
			return true
		case "notification":
			var w wireNotification
			if err := json.Unmarshal(frame.Data, &w); err != nil {
				// A malformed payload is dropped; it must never kill the
				// connection or corrupt the cache.
				p.logger.Error().Err(err).Msg("dropping malformed push payload")
				continue
			}
			if p.cfg.OnNotification != nil {
				p.cfg.OnNotification(w.toNotification())
			}
		default:
			p.logger.Debug().Str("event", frame.Event).Msg("ignoring unknown push frame")
		}
	}
}

func (p *PushClient) authRejected(stop chan struct{}) {
	p.mu.Lock()
	if p.stop == stop {
		p.teardownLocked()
	}
	p.mu.Unlock()

	p.logger.Warn().Msg("push channel credential rejected, giving up")
	if p.cfg.OnAuthRejected != nil {
		p.cfg.OnAuthRejected(ErrAuthRejected)
	}
}

// waitRetry sleeps the fixed retry delay. It returns false when the session
// was stopped while waiting, so an in-flight reconnect aborts instead of
// completing a stale connection.
func (p *PushClient) waitRetry(stop chan struct{}) bool {
	select {
	case <-stop:
		return false
	case <-time.After(p.cfg.RetryDelay):
		return true
	}
}

func stopped(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// Manager owns the process-wide push connection, keyed by user identity. It
// guarantees at most one live channel per identity and tears the old channel
// down before binding a new one, covering the admin-and-customer-in-one-browser
// identity switch.
type Manager struct {
	mu      sync.Mutex
	factory func() *PushClient
	current *PushClient
	userID  string
}

// NewManager creates a manager. factory builds a fresh PushClient per bound
// identity, keeping connection lifecycle testable.
func NewManager(factory func() *PushClient) *Manager {
	return &Manager{factory: factory}
}

// Connect binds the channel to the given identity, replacing any channel bound
// to a different one. No-op without credentials or when already bound.
func (m *Manager) Connect(userID, token string) {
	if userID == "" || token == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if m.userID == userID {
			m.current.Connect(userID, token)
			return
		}
		m.current.Disconnect()
		m.current = nil
	}

	m.current = m.factory()
	m.userID = userID
	m.current.Connect(userID, token)
}

// Disconnect tears down the current channel, if any. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Disconnect()
		m.current = nil
	}
	m.userID = ""
}

// IsConnected reports whether the managed channel is live.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()
	return current != nil && current.IsConnected()
}

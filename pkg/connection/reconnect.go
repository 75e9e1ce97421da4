package connection

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Manager errors.
var (
	ErrAlreadyConnected = errors.New("already connected")
	ErrManagerClosed    = errors.New("connection manager closed")
)

// State represents the managed connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a dial is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates automatic redialing is in progress.
	StateReconnecting

	// StateClosed indicates the manager has been shut down.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// DialFunc establishes one connection attempt.
type DialFunc func(ctx context.Context) (*Connection, error)

// redialTimeout bounds each automatic redial attempt.
const redialTimeout = 30 * time.Second

// Manager tracks connection state and redials automatically with
// backoff when the connection is lost.
type Manager struct {
	mu    sync.RWMutex
	state State
	conn  *Connection

	dial          DialFunc
	backoff       *Backoff
	autoReconnect bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectCh chan struct{}

	onStateChange  func(oldState, newState State)
	onConnected    func(*Connection)
	onDisconnected func()
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a manager that connects with dial. Automatic
// reconnection is enabled by default; call StartReconnectLoop to make
// it live.
func NewManager(dial DialFunc, backoff BackoffConfig) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		state:         StateDisconnected,
		dial:          dial,
		backoff:       NewBackoff(backoff),
		autoReconnect: true,
		ctx:           ctx,
		cancel:        cancel,
		reconnectCh:   make(chan struct{}, 1),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Connection returns the live connection, if any.
func (m *Manager) Connection() (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn, m.conn != nil && m.state == StateConnected
}

// SetAutoReconnect enables or disables automatic redialing.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// Connect dials once. It returns ErrAlreadyConnected on a live
// connection and ErrManagerClosed after Close.
func (m *Manager) Connect(ctx context.Context) (*Connection, error) {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return nil, ErrAlreadyConnected
	case StateClosed:
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	old := m.state
	m.state = StateConnecting
	m.mu.Unlock()
	m.notifyState(old, StateConnecting)

	conn, err := m.dial(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		m.notifyState(StateConnecting, StateDisconnected)
		return nil, err
	}

	m.adopt(conn, StateConnecting)
	return conn, nil
}

// ConnectionLost reports that the live connection failed. The broken
// connection is closed and, when auto-reconnect is on, redialing
// starts.
func (m *Manager) ConnectionLost() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	m.conn = nil
	auto := m.autoReconnect
	next := StateDisconnected
	if auto {
		next = StateReconnecting
	}
	m.state = next
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	m.notifyState(StateConnected, next)
	if m.onDisconnected != nil {
		m.onDisconnected()
	}
	if auto {
		select {
		case m.reconnectCh <- struct{}{}:
		default:
		}
	}
}

// StartReconnectLoop starts the background redial goroutine. Call once.
func (m *Manager) StartReconnectLoop() {
	m.wg.Add(1)
	go m.reconnectLoop()
}

// Close shuts the manager down, closing any live connection and
// stopping the redial loop.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	old := m.state
	m.state = StateClosed
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	m.notifyState(old, StateClosed)
	m.cancel()
	m.wg.Wait()
}

// adopt installs a freshly dialed connection.
func (m *Manager) adopt(conn *Connection, from State) {
	m.mu.Lock()
	m.conn = conn
	m.state = StateConnected
	m.mu.Unlock()
	m.backoff.Reset()

	m.notifyState(from, StateConnected)
	if m.onConnected != nil {
		m.onConnected(conn)
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.redial()
		}
	}
}

// redial attempts to reconnect until success, Close, or a state change
// that makes redialing moot.
func (m *Manager) redial() {
	for {
		m.mu.RLock()
		state := m.state
		m.mu.RUnlock()
		if state != StateReconnecting {
			return
		}

		delay := m.backoff.Next()
		if m.onReconnecting != nil {
			m.onReconnecting(m.backoff.Attempts(), delay)
		}

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(m.ctx, redialTimeout)
		conn, err := m.dial(ctx)
		cancel()
		if err != nil {
			continue
		}

		m.mu.Lock()
		if m.state != StateReconnecting {
			m.mu.Unlock()
			conn.Close()
			return
		}
		m.mu.Unlock()

		m.adopt(conn, StateReconnecting)
		return
	}
}

func (m *Manager) notifyState(oldState, newState State) {
	if m.onStateChange != nil {
		m.onStateChange(oldState, newState)
	}
}

// OnStateChange sets a callback for state transitions. Set callbacks
// before StartReconnectLoop.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.onStateChange = fn
}

// OnConnected sets a callback invoked with each new live connection.
func (m *Manager) OnConnected(fn func(*Connection)) {
	m.onConnected = fn
}

// OnDisconnected sets a callback invoked on connection loss.
func (m *Manager) OnDisconnected(fn func()) {
	m.onDisconnected = fn
}

// OnReconnecting sets a callback invoked before each redial wait.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.onReconnecting = fn
}

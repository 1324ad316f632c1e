// Package manager orchestrates the per-connection lifecycle: it owns the
// registry, sessions, presence, router, pipeline, and hooks, and is the
// sole entry point bound to the network listener.
package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"chat-core/internal/auth"
	"chat-core/internal/command"
	"chat-core/internal/connection"
	"chat-core/internal/hooks"
	"chat-core/internal/models"
	"chat-core/internal/presence"
	"chat-core/internal/queue"
	"chat-core/internal/router"
	"chat-core/internal/session"
	"chat-core/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options carries the tunables the manager needs beyond its
// collaborators.
type Options struct {
	HealthCheckInterval time.Duration
	SessionIdleTimeout  time.Duration
}

// Deps are the collaborators the manager drives. Queue and Relations are
// optional.
type Deps struct {
	Auth      *auth.Service
	Registry  *connection.Registry
	Sessions  *session.Manager
	Presence  *presence.Tracker
	Router    *router.Router
	Pipeline  *command.Pipeline
	Hooks     *hooks.Registry
	Queue     queue.Queue
	Relations store.RelationStore
	Log       zerolog.Logger
}

// Manager drives the per-connection state machine:
// CONNECTING → AUTHENTICATING → REGISTERED → ACTIVE → CLOSING → CLOSED.
type Manager struct {
	deps Deps
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	onDisconnect  func(userID, connID string)
	stateObserver func(connID string, s State)
}

func New(deps Deps, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = 10 * time.Second
	}
	if opts.SessionIdleTimeout <= 0 {
		opts.SessionIdleTimeout = 30 * time.Minute
	}
	return &Manager{
		deps:   deps,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnDisconnect registers a callback invoked after a connection reaches
// CLOSED.
func (m *Manager) OnDisconnect(fn func(userID, connID string)) {
	m.mu.Lock()
	m.onDisconnect = fn
	m.mu.Unlock()
}

// ObserveStates registers a callback invoked on every state transition.
func (m *Manager) ObserveStates(fn func(connID string, s State)) {
	m.mu.Lock()
	m.stateObserver = fn
	m.mu.Unlock()
}

func (m *Manager) setState(connID string, s State) {
	m.mu.Lock()
	observer := m.stateObserver
	m.mu.Unlock()
	if observer != nil {
		observer(connID, s)
	}
}

// HandleConnection authenticates the handshake token and, on success,
// runs the connection until it closes. It blocks for the lifetime of the
// connection; callers run it in its own goroutine.
func (m *Manager) HandleConnection(transport connection.Transport, token, deviceID string) error {
	m.wg.Add(1)
	defer m.wg.Done()

	identity, err := m.deps.Auth.Authenticate(token)
	if err != nil {
		// The connection never gained an identity; it moves directly
		// from AUTHENTICATING to CLOSING.
		handshakeID := uuid.NewString()
		m.setState(handshakeID, StateConnecting)
		m.setState(handshakeID, StateAuthenticating)
		m.rejectHandshake(transport, err)
		m.setState(handshakeID, StateClosing)
		m.setState(handshakeID, StateClosed)
		return err
	}

	conn := connection.New(transport, identity.UserID, deviceID)
	m.setState(conn.ID, StateConnecting)
	m.setState(conn.ID, StateAuthenticating)
	m.setState(conn.ID, StateRegistered)
	m.register(conn)

	m.setState(conn.ID, StateActive)
	m.readLoop(conn)

	m.setState(conn.ID, StateClosing)
	m.teardown(conn)
	m.setState(conn.ID, StateClosed)
	return nil
}

// rejectHandshake explains the auth failure best-effort, then closes
// with a policy-violation code. Never a generic 500.
func (m *Manager) rejectHandshake(transport connection.Transport, authErr error) {
	reason := "authentication failed"
	var ae *auth.AuthError
	if errors.As(authErr, &ae) {
		reason = ae.Code
	}

	if data, err := models.NewServerNotice("authentication failed: "+reason, "").Encode(); err == nil {
		_ = transport.WriteMessage(data)
	}
	_ = transport.Close(connection.ClosePolicyViolation, reason)

	m.deps.Log.Warn().Err(authErr).Msg("rejected connection")
}

// register inserts the connection everywhere: registry (with eviction),
// session, presence, hooks, JOIN broadcast, backlog drain.
func (m *Manager) register(conn *connection.Conn) {
	user := conn.UserID

	pre := hooks.NewContext(hooks.PreConnect)
	pre.UserID = user
	pre.ConnID = conn.ID
	m.deps.Hooks.Run(hooks.PreConnect, pre)

	// A second simultaneous login is not rejected: the registry evicts
	// the stalest prior connection so silent client crashes need no
	// manual intervention.
	if evicted := m.deps.Registry.Register(conn); evicted != nil {
		m.evict(evicted)
	}

	m.deps.Sessions.Create(user)
	m.deps.Presence.Register(user, conn.ID)

	post := hooks.NewContext(hooks.PostConnect)
	post.UserID = user
	post.ConnID = conn.ID
	m.deps.Hooks.Run(hooks.PostConnect, post)

	postAuth := hooks.NewContext(hooks.PostAuthenticate)
	postAuth.UserID = user
	postAuth.ConnID = conn.ID
	m.deps.Hooks.Run(hooks.PostAuthenticate, postAuth)

	m.deps.Router.NotifyUserJoined(m.ctx, user)
	m.deliverBacklog(conn)

	m.deps.Log.Info().
		Str("user", user).
		Str("conn", conn.ID).
		Str("device", conn.DeviceID).
		Msg("connection active")
}

func (m *Manager) evict(evicted *connection.Conn) {
	notice := models.NewServerNotice(
		"disconnected: signed in from another device", evicted.UserID)
	if data, err := notice.Encode(); err == nil {
		_ = evicted.Send(data)
	}
	_ = evicted.Close(connection.ClosePolicyViolation, "connection limit reached")
	// The evicted goroutine's read fails next and runs the normal
	// teardown; the registry entry is already gone.
}

func (m *Manager) deliverBacklog(conn *connection.Conn) {
	if m.deps.Queue == nil {
		return
	}
	backlog, err := m.deps.Queue.Drain(m.ctx, conn.UserID)
	if err != nil {
		m.deps.Log.Error().Err(err).Str("user", conn.UserID).Msg("backlog drain failed")
		return
	}
	for i := range backlog {
		data, err := backlog[i].Encode()
		if err != nil {
			continue
		}
		if err := conn.Send(data); err != nil {
			return
		}
	}
	if len(backlog) > 0 {
		m.deps.Log.Info().
			Str("user", conn.UserID).
			Int("count", len(backlog)).
			Msg("delivered offline backlog")
	}
}

// readLoop processes inbound frames strictly in arrival order until the
// transport fails or the frame is a protocol error.
func (m *Manager) readLoop(conn *connection.Conn) {
	for {
		data, err := conn.Read()
		if err != nil {
			return
		}

		msg, err := models.Decode(data)
		if err != nil {
			m.deps.Log.Warn().
				Err(err).
				Str("user", conn.UserID).
				Str("conn", conn.ID).
				Msg("undecodable frame")
			_ = conn.Close(connection.CloseProtocolError, "malformed message")
			return
		}
		// The authenticated identity is authoritative for the sender.
		msg.Sender = conn.UserID

		switch msg.Type {
		case models.TypeJoin:
			// Join was handled when the connection went active.
		case models.TypeHeartbeat:
			m.handleHeartbeat(conn)
		default:
			m.handleMessage(conn, msg)
		}
	}
}

func (m *Manager) handleHeartbeat(conn *connection.Conn) {
	conn.Touch()
	m.deps.Sessions.Touch(conn.UserID)
	m.deps.Presence.Touch(conn.UserID, conn.ID)
	if err := m.deps.Router.SendPong(conn); err != nil {
		m.deps.Log.Debug().Err(err).Str("conn", conn.ID).Msg("pong failed")
	}
}

func (m *Manager) handleMessage(conn *connection.Conn, msg *models.Message) {
	m.deps.Sessions.Touch(conn.UserID)

	out := m.deps.Pipeline.Process(msg.Content, msg.Sender, msg.Target)

	if out.Target != "" {
		m.sendDirected(conn, out)
		return
	}

	m.deps.Router.Broadcast(m.ctx, out, conn.UserID)
	m.persist(out)
}

func (m *Manager) sendDirected(conn *connection.Conn, msg *models.Message) {
	if m.deps.Relations != nil && msg.Sender != models.SystemSender && msg.Target != msg.Sender {
		related, err := m.deps.Relations.AreRelated(m.ctx, msg.Sender, msg.Target)
		if err != nil {
			m.deps.Log.Error().Err(err).Msg("relation check failed, delivering anyway")
		} else if !related {
			notice := models.NewServerNotice(
				"cannot message "+msg.Target+": not in your contacts", msg.Sender)
			m.deps.Router.SendToUser(m.ctx, notice, msg.Sender)
			return
		}
	}

	result := m.deps.Router.SendToUser(m.ctx, msg, msg.Target)
	if result.Status == models.StatusFailed {
		m.deps.Log.Warn().
			Str("user", msg.Target).
			Str("error", result.Error).
			Msg("directed delivery failed")
	}
	m.persist(msg)
}

func (m *Manager) persist(msg *models.Message) {
	if m.deps.Relations == nil || msg.Type != models.TypeText || msg.Sender == models.SystemSender {
		return
	}
	if err := m.deps.Relations.AppendMessage(m.ctx, msg); err != nil {
		m.deps.Log.Error().Err(err).Msg("message append failed")
	}
}

// teardown removes the connection's bookkeeping and, when it was the
// user's last device, broadcasts LEAVE. The session stays for the idle
// sweep so brief reconnects keep their activity record.
func (m *Manager) teardown(conn *connection.Conn) {
	user := conn.UserID

	pre := hooks.NewContext(hooks.PreDisconnect)
	pre.UserID = user
	pre.ConnID = conn.ID
	m.deps.Hooks.Run(hooks.PreDisconnect, pre)

	m.deps.Registry.Unregister(user, conn.ID)
	m.deps.Presence.Unregister(user, conn.ID)
	_ = conn.Close(connection.CloseNormal, "")

	if !m.deps.Registry.IsOnline(user) {
		m.deps.Router.NotifyUserLeft(m.ctx, user)
	}

	post := hooks.NewContext(hooks.PostDisconnect)
	post.UserID = user
	post.ConnID = conn.ID
	m.deps.Hooks.Run(hooks.PostDisconnect, post)

	m.mu.Lock()
	callback := m.onDisconnect
	m.mu.Unlock()
	if callback != nil {
		callback(user, conn.ID)
	}

	m.deps.Log.Info().Str("user", user).Str("conn", conn.ID).Msg("connection closed")
}

// RunHealthMonitor prunes stale presence entries and sweeps idle
// sessions until the manager shuts down. Run it in its own goroutine.
func (m *Manager) RunHealthMonitor() {
	ticker := time.NewTicker(m.opts.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.healthSweep()
		}
	}
}

func (m *Manager) healthSweep() {
	for _, stale := range m.deps.Presence.PruneStale(time.Now()) {
		if conn := m.deps.Registry.Find(stale.UserID, stale.ConnID); conn != nil {
			// Closing the socket unblocks the read loop, which runs
			// the normal teardown.
			_ = conn.Close(connection.CloseGoingAway, "heartbeat timeout")
		}
	}

	for _, user := range m.deps.Sessions.CleanupInactive(m.opts.SessionIdleTimeout) {
		for _, conn := range m.deps.Registry.Get(user) {
			_ = conn.Close(connection.CloseGoingAway, "idle timeout")
		}
		m.deps.Log.Info().Str("user", user).Msg("idle session ended")
	}
}

// Shutdown closes every connection and waits, bounded by ctx, for the
// per-connection goroutines to finish. A stuck send cannot block it past
// the deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	for _, conns := range m.deps.Registry.All() {
		for _, conn := range conns {
			_ = conn.Close(connection.CloseGoingAway, "server shutting down")
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.deps.Log.Info().Msg("connection manager drained")
		return nil
	case <-ctx.Done():
		m.deps.Log.Warn().Msg("shutdown timeout reached with connections still draining")
		return ctx.Err()
	}
}

package shell

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"roomchat/internal/app/protocol"
	"roomchat/internal/pkg/logx"
)

const (
	// DefaultHeartbeatInterval is the heartbeat cadence, well inside the server's stale threshold.
	DefaultHeartbeatInterval = 25 * time.Second

	// DefaultMaxAttempts bounds the dials of one reconnection cycle.
	DefaultMaxAttempts = 5

	// DefaultBaseDelay is the first backoff delay.
	DefaultBaseDelay = time.Second

	// DefaultMaxDelay caps a single backoff delay.
	DefaultMaxDelay = 30 * time.Second
)

var (
	// ErrNotConnected is returned by Send while no session is live.
	ErrNotConnected = errors.New("not connected")

	// ErrShellClosed is returned by Run after Close.
	ErrShellClosed = errors.New("shell closed")

	errAlreadyRunning = errors.New("shell already running")
)

// Status is the connection state shown to the user.
type Status int

const (
	// StatusDisconnected means no session is live and Run is not dialing.
	StatusDisconnected Status = iota

	// StatusConnecting means Run is dialing or waiting out a backoff delay.
	StatusConnecting

	// StatusConnected means a session is live.
	StatusConnected

	// StatusUnauthenticated follows a displacement. The saved intention is gone, and the
	// user signs in again with Join followed by a new Run.
	StatusUnauthenticated

	// StatusClosed means Run stopped because its context ended or Close was called.
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusUnauthenticated:
		return "signed out"
	case StatusClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

// Options tunes a Shell. Zero values select the defaults.
type Options struct {
	// HeartbeatInterval is the cadence of heartbeat events while connected.
	HeartbeatInterval time.Duration

	// MaxAttempts bounds the dial attempts of one reconnection cycle.
	MaxAttempts uint64

	// BaseDelay is the first backoff delay; later delays grow exponentially.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff delay.
	MaxDelay time.Duration

	// OnEvent receives every server event, in arrival order, from the Run goroutine.
	OnEvent func(ev protocol.Event)

	// OnStatus receives status transitions.
	OnStatus func(status Status)
}

// Shell keeps a chat session alive across transport failures.
type Shell struct {
	transport Transport
	store     StateStore
	opts      Options
	logger    zerolog.Logger

	// mu guards the fields below.
	mu      sync.Mutex
	session Session
	status  Status
	cancel  context.CancelFunc
	closed  bool

	// running is released when Run returns.
	running sync.WaitGroup
}

// New returns a Shell that dials through transport and persists the join intention in store.
func New(transport Transport, store StateStore, opts Options) *Shell {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = max(DefaultMaxDelay, opts.BaseDelay)
	}

	return &Shell{
		transport: transport,
		store:     store,
		opts:      opts,
		logger:    logx.Component("Shell"),
	}
}

// Run connects and keeps reconnecting until ctx ends, Close is called, the reconnect
// attempts of one outage are exhausted, or the session is displaced (ErrSessionKicked).
// A normal stop returns nil. Once Run has returned it may be called again, which is how a
// signed-out user comes back after a fresh Join.
func (s *Shell) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrShellClosed
	}
	if s.cancel != nil {
		s.mu.Unlock()
		return errAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()
	defer cancel()

	for {
		session, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.setStatus(StatusClosed)
				return nil
			}
			s.setStatus(StatusDisconnected)
			return fmt.Errorf("reconnect attempts exhausted: %w", err)
		}

		err = s.serve(ctx, session)

		if errors.Is(err, ErrSessionKicked) {
			s.logger.Warn().Msg("Session replaced by another connection. Not reconnecting.")
			if clearErr := s.store.Clear(); clearErr != nil {
				s.logger.Error().Err(clearErr).Msg("Failed to clear persisted state.")
			}
			s.setStatus(StatusUnauthenticated)
			return ErrSessionKicked
		}

		if ctx.Err() != nil {
			s.setStatus(StatusClosed)
			return nil
		}

		s.logger.Warn().Err(err).Msg("Connection lost. Reconnecting.")
		s.setStatus(StatusDisconnected)
	}
}

// Join records the intention and, when connected, sends it right away.
// While disconnected the intention is replayed on the next connection.
func (s *Shell) Join(identity, room string) error {
	if err := s.store.Save(State{Identity: identity, Room: room}); err != nil {
		return fmt.Errorf("save join intention: %w", err)
	}

	session := s.currentSession()
	if session == nil {
		return nil
	}
	return sendEvent(session, protocol.TypeJoinRoom, protocol.JoinRoomPayload{Identity: identity, Room: room})
}

// Leave forgets the intention and leaves the current room.
func (s *Shell) Leave() error {
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clear join intention: %w", err)
	}

	session := s.currentSession()
	if session == nil {
		return nil
	}
	return sendEvent(session, protocol.TypeLeaveRoom, nil)
}

// Send posts a chat message on the live session.
func (s *Shell) Send(text string) error {
	session := s.currentSession()
	if session == nil {
		return ErrNotConnected
	}
	return sendEvent(session, protocol.TypeSendMessage, protocol.SendMessagePayload{Text: text})
}

// Status returns the current connection state.
func (s *Shell) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Close tears the shell down: a pending reconnect is cancelled, the live session is closed,
// and Close returns once Run has stopped. No timer fires afterwards.
func (s *Shell) Close() {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	session := s.session
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if session != nil {
		_ = session.Close()
	}
	s.running.Wait()
}

// connect dials with a bounded, capped, jittered exponential backoff.
func (s *Shell) connect(ctx context.Context) (Session, error) {
	s.setStatus(StatusConnecting)

	backoff := retry.NewExponential(s.opts.BaseDelay)
	backoff = retry.WithJitterPercent(10, backoff)
	backoff = retry.WithCappedDuration(s.opts.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(s.opts.MaxAttempts-1, backoff)

	attempt := 0
	return retry.DoValue(ctx, backoff, func(ctx context.Context) (Session, error) {
		attempt++
		session, err := s.transport.Dial(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("Dial failed.")
			return nil, retry.RetryableError(err)
		}
		return session, nil
	})
}

// serve replays the join intention, runs the heartbeat, and forwards events until the
// session ends. It returns ErrSessionKicked on displacement.
func (s *Shell) serve(ctx context.Context, session Session) error {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	s.setStatus(StatusConnected)
	s.logger.Info().Msg("Connected.")

	defer func() {
		s.mu.Lock()
		s.session = nil
		s.mu.Unlock()
		_ = session.Close()
	}()

	// cancellation unblocks Receive
	stopWatch := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer stopWatch()

	if err := s.replayJoin(session); err != nil {
		return err
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	var heartbeats sync.WaitGroup
	heartbeats.Add(1)
	go func() {
		defer heartbeats.Done()
		s.heartbeat(heartbeatCtx, session)
	}()
	defer func() {
		stopHeartbeat()
		heartbeats.Wait()
	}()

	for {
		ev, err := session.Receive()
		if err != nil {
			return err
		}

		s.observe(ev)
		if s.opts.OnEvent != nil {
			s.opts.OnEvent(ev)
		}

		if ev.Type == protocol.TypeKicked {
			return ErrSessionKicked
		}
	}
}

// replayJoin sends the persisted intention; the server answers a first join and a
// reconnection join the same way.
func (s *Shell) replayJoin(session Session) error {
	state, err := s.store.Load()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load persisted state. Staying anonymous.")
		return nil
	}
	if state.Empty() {
		return nil
	}

	s.logger.Info().Str("identity", state.Identity).Str("room", state.Room).Msg("Replaying join.")
	return sendEvent(session, protocol.TypeJoinRoom, protocol.JoinRoomPayload{Identity: state.Identity, Room: state.Room})
}

// observe drops an intention the server refused so it is not replayed forever.
func (s *Shell) observe(ev protocol.Event) {
	if ev.Type != protocol.TypeError {
		return
	}

	var payload protocol.ErrorPayload
	if err := ev.Decode(&payload); err != nil {
		return
	}
	if payload.Kind == "InvalidIdentity" || payload.Kind == "InvalidRoom" {
		if err := s.store.Clear(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to clear rejected join intention.")
		}
	}
}

func (s *Shell) heartbeat(ctx context.Context, session Session) {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sendEvent(session, protocol.TypeHeartbeat, nil); err != nil {
				s.logger.Warn().Err(err).Msg("Heartbeat failed. Dropping connection.")
				_ = session.Close()
				return
			}
		}
	}
}

func (s *Shell) currentSession() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Shell) setStatus(status Status) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.mu.Unlock()

	if s.opts.OnStatus != nil {
		s.opts.OnStatus(status)
	}
}

func sendEvent(session Session, eventType protocol.EventType, payload any) error {
	ev, err := protocol.NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	return session.Send(ev)
}

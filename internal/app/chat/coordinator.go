/*
Package chat contains the presence and room coordination core of the chat server.

This file defines the Coordinator, the single authority over which identity occupies which
connection and which connections belong to which room. It owns the Connection Registry, the
Room Index and the Identity Ledger behind one mutex, so every join, leave, send, heartbeat and
eviction is one atomic step, and every notification is computed from the state that step left.
*/
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"roomchat/internal/app/protocol"
	"roomchat/internal/pkg/errs"
	"roomchat/internal/pkg/limiter"
	"roomchat/internal/pkg/logx"
	"roomchat/internal/pkg/randx"
)

const (
	// DefaultStaleThreshold is how long a connection may stay silent before it is reaped.
	DefaultStaleThreshold = 5 * time.Minute

	// DefaultSweepInterval is how often the reaper looks for stale connections.
	DefaultSweepInterval = time.Minute

	// kickReason is shown to a connection displaced by a newer session of the same identity.
	kickReason = "Session replaced by new connection. Check other tabs."
)

// Conn is the outbound side of one transport connection.
// Send must enqueue without blocking and fail when the connection cannot accept more events.
// Close must not block; it only starts the transport shutdown.
type Conn interface {
	Send(ev protocol.Event) error
	Close(code int, reason string) error
}

// Options configures a Coordinator. Zero values select the defaults.
type Options struct {
	// Catalog is the set of joinable rooms. Defaults to DefaultRooms.
	Catalog *Catalog

	// StaleThreshold is the silence after which a connection is evicted.
	StaleThreshold time.Duration

	// SweepInterval is the period of the liveness reaper.
	SweepInterval time.Duration

	// SendLimiter throttles messages per connection. Nil disables throttling.
	SendLimiter *limiter.KeyedLimiter

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Stats is the read-only introspection view of the coordinator.
type Stats struct {
	Rooms             []string       `json:"rooms"`
	ActiveConnections int            `json:"activeConnections"`
	ActiveIdentities  int            `json:"activeIdentities"`
	OccupiedRooms     map[string]int `json:"occupiedRooms"`
}

// eviction is a forced removal queued while the lock is held.
type eviction struct {
	id     string
	code   int
	reason string
}

// closeRequest is a transport close to perform after the lock is released.
type closeRequest struct {
	id     string
	conn   Conn
	code   int
	reason string
}

// Coordinator serializes all presence mutations and drives room notifications.
type Coordinator struct {
	// mu guards every field below it.
	mu sync.Mutex

	catalog  *Catalog
	registry *Registry
	rooms    *RoomIndex
	ledger   *Ledger

	// sendLimiter throttles sendMessage per connection; may be nil.
	sendLimiter *limiter.KeyedLimiter

	// now is the clock used for liveness timestamps.
	now func() time.Time

	staleThreshold time.Duration
	sweepInterval  time.Duration

	// draining rejects new joins while in-flight traffic completes.
	draining bool

	// closed is set once Shutdown has started.
	closed bool

	// pending holds evictions discovered during fan-out, processed before the step ends.
	pending []eviction

	// closing holds transports to close once the step has released the lock.
	closing []closeRequest

	// cancel stops the reaper.
	cancel context.CancelFunc

	// wg waits for the reaper goroutine on shutdown.
	wg sync.WaitGroup

	// structured logger with Coordinator context.
	logger zerolog.Logger
}

// NewCoordinator constructs a Coordinator. Call Start to launch the reaper.
func NewCoordinator(opts Options) *Coordinator {
	catalog := opts.Catalog
	if catalog == nil {
		catalog, _ = NewCatalog(DefaultRooms)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	staleThreshold := opts.StaleThreshold
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}

	sweepInterval := opts.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	return &Coordinator{
		catalog:        catalog,
		registry:       NewRegistry(),
		rooms:          NewRoomIndex(),
		ledger:         NewLedger(),
		sendLimiter:    opts.SendLimiter,
		now:            now,
		staleThreshold: staleThreshold,
		sweepInterval:  sweepInterval,
		logger:         logx.Component("Coordinator"),
	}
}

// Start launches the liveness reaper. Its lifetime ends with Shutdown.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.cancel != nil || c.closed {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	reaper := NewReaper(c, c.sweepInterval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		reaper.Run(ctx)
	}()

	c.logger.Info().
		Dur("stale_threshold", c.staleThreshold).
		Dur("sweep_interval", c.sweepInterval).
		Strs("rooms", c.catalog.Names()).
		Msg("Coordinator started.")
}

// Catalog returns the room catalog.
func (c *Coordinator) Catalog() *Catalog {
	return c.catalog
}

// Register adds a new anonymous connection and advertises the room catalog to it.
func (c *Coordinator) Register(id string, conn Conn) error {
	return c.exec(func() error {
		if c.closed {
			return errs.NewError(errs.ErrServerDraining)
		}

		if err := c.registry.Register(id, conn, c.now()); err != nil {
			c.logger.Error().Str("connection_id", id).Err(err).Msg("Duplicate connection registration aborted.")
			return errs.NewError(errs.ErrDuplicateConnection)
		}

		c.deliver(id, conn, c.event(protocol.TypeRooms, protocol.RoomsPayload{Rooms: c.catalog.Names()}))

		c.logger.Debug().
			Str("connection_id", id).
			Int("total_connections", c.registry.Len()).
			Msg("Connection registered.")
		return nil
	})
}

// Join places the connection in room under identity.
// A different connection holding the same identity is displaced: it is told it was kicked,
// evicted through the common eviction path, and its transport closed.
func (c *Coordinator) Join(id, identity, room string) error {
	return c.exec(func() error {
		session, err := c.registry.Get(id)
		if err != nil {
			return nil
		}

		if cerr := validateJoin(c.catalog, identity, room); cerr != nil {
			c.replyError(session, cerr)
			return cerr
		}

		if c.draining {
			cerr := errs.NewError(errs.ErrServerDraining)
			c.replyError(session, cerr)
			return cerr
		}

		if session.Room == room && session.Identity == identity {
			c.deliver(id, session.Conn, c.joinedEvent(identity, room))
			c.deliver(id, session.Conn, c.rosterEvent(room))
			return nil
		}

		if session.State() == StateJoined {
			prior, _ := c.registry.ClearJoined(id)
			c.detach(prior)
		}

		if displaced, ok := c.ledger.Claim(identity, id); ok {
			c.kick(displaced, identity)
		}

		_ = c.registry.SetJoined(id, identity, room)
		c.rooms.Add(room, id)

		c.logger.Info().
			Str("connection_id", id).
			Str("identity", identity).
			Str("room", room).
			Msg("Identity joined room.")

		c.deliver(id, session.Conn, c.joinedEvent(identity, room))
		c.broadcast(room, c.event(protocol.TypeMemberJoined, protocol.MemberPayload{Identity: identity, Room: room}), id)
		c.broadcast(room, c.rosterEvent(room), "")
		return nil
	})
}

// Send fans a chat message out to every member of the sender's room, sender included.
func (c *Coordinator) Send(id, text string) error {
	return c.exec(func() error {
		session, err := c.registry.Get(id)
		if err != nil {
			return nil
		}

		if session.State() != StateJoined {
			cerr := errs.NewError(errs.ErrNotJoined)
			c.replyError(session, cerr)
			return cerr
		}

		if cerr := validateMessage(text); cerr != nil {
			c.replyError(session, cerr)
			return cerr
		}

		if c.sendLimiter != nil && !c.sendLimiter.Allow(id) {
			cerr := errs.NewError(errs.ErrRateLimitExceeded)
			c.replyError(session, cerr)
			return cerr
		}

		now := c.now()
		c.registry.Touch(id, now)

		c.broadcast(session.Room, c.event(protocol.TypeMessage, protocol.MessagePayload{
			ID:                 randx.MessageID(),
			Text:               text,
			SenderIdentity:     session.Identity,
			Room:               session.Room,
			SentAt:             now.UTC(),
			SenderConnectionID: id,
		}), "")
		return nil
	})
}

// Leave takes the connection out of its room and releases its identity.
// Unlike Disconnect, Evict and reaping, Leave does not remove the registry entry: the
// connection stays registered as anonymous, keeps its transport open, and may join again on
// it. Leaving while anonymous is a no-op.
func (c *Coordinator) Leave(id string) error {
	return c.exec(func() error {
		session, err := c.registry.Get(id)
		if err != nil || session.State() != StateJoined {
			return nil
		}

		prior, _ := c.registry.ClearJoined(id)
		c.detach(prior)

		c.logger.Info().
			Str("connection_id", id).
			Str("identity", prior.Identity).
			Str("room", prior.Room).
			Msg("Identity left room.")

		c.deliver(id, session.Conn, c.event(protocol.TypeLeft, protocol.LeftPayload{
			Room:             prior.Room,
			ConfirmationText: fmt.Sprintf("You left %s room", prior.Room),
		}))
		return nil
	})
}

// Heartbeat refreshes the liveness of the connection and acknowledges it.
func (c *Coordinator) Heartbeat(id string) error {
	return c.exec(func() error {
		if !c.registry.Touch(id, c.now()) {
			return nil
		}
		session, _ := c.registry.Get(id)
		c.deliver(id, session.Conn, c.event(protocol.TypeHeartbeatAck, nil))
		return nil
	})
}

// Disconnect evicts a connection whose transport has already gone away.
func (c *Coordinator) Disconnect(id, reason string) error {
	return c.exec(func() error {
		c.evict(id, 0, reason)
		return nil
	})
}

// Evict forcibly removes a connection and closes its transport with code.
func (c *Coordinator) Evict(id string, code int, reason string) error {
	return c.exec(func() error {
		c.evict(id, code, reason)
		return nil
	})
}

// ReapStale evicts every connection silent for longer than the stale threshold
// and returns how many were evicted.
func (c *Coordinator) ReapStale() int {
	var reaped int
	_ = c.exec(func() error {
		cutoff := c.now().Add(-c.staleThreshold)
		for _, id := range c.registry.StaleBefore(cutoff) {
			if c.evict(id, protocol.CloseStale, "heartbeat timeout") {
				reaped++
			}
		}
		return nil
	})
	return reaped
}

// Stats reports the room catalog and current occupancy.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Rooms:             c.catalog.Names(),
		ActiveConnections: c.registry.Len(),
		ActiveIdentities:  c.ledger.Len(),
		OccupiedRooms:     c.rooms.Occupancy(),
	}
}

// Drain stops accepting new joins. Messages from joined connections are still delivered.
func (c *Coordinator) Drain() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.draining {
		c.draining = true
		c.logger.Info().Msg("Coordinator draining. New joins are rejected.")
	}
}

// Shutdown stops the reaper and evicts every remaining connection, closing its transport.
// It is safe to call more than once.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.draining = true
	cancel := c.cancel
	c.mu.Unlock()

	c.logger.Info().Msg("Shutting down Coordinator...")

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	var evicted int
	_ = c.exec(func() error {
		for _, id := range c.registry.IDs() {
			if c.evict(id, websocket.CloseGoingAway, "server shutting down") {
				evicted++
			}
		}
		return nil
	})

	c.logger.Info().Int("evicted", evicted).Msg("Coordinator shutdown complete.")
}

// exec runs fn as one serialized step. Evictions triggered by failed deliveries are settled
// inside the same step; transport closes happen after the lock is released.
func (c *Coordinator) exec(fn func() error) error {
	c.mu.Lock()
	err := fn()
	for len(c.pending) > 0 {
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.evict(next.id, next.code, next.reason)
	}
	closing := c.closing
	c.closing = nil
	c.mu.Unlock()

	for _, req := range closing {
		if closeErr := req.conn.Close(req.code, req.reason); closeErr != nil {
			c.logger.Warn().
				Str("connection_id", req.id).
				Err(closeErr).
				Msg("Failed to close evicted transport. State already cleaned up.")
		}
	}

	return err
}

// evict removes id from the registry and runs the shared room/identity cleanup.
// A non-zero code schedules the transport close. It reports whether id was present.
func (c *Coordinator) evict(id string, code int, reason string) bool {
	session, ok := c.registry.Remove(id)
	if !ok {
		return false
	}

	c.detach(session)

	if c.sendLimiter != nil {
		c.sendLimiter.Forget(id)
	}

	if code != 0 && session.Conn != nil {
		c.closing = append(c.closing, closeRequest{id: id, conn: session.Conn, code: code, reason: reason})
	}

	c.logger.Info().
		Str("connection_id", id).
		Str("identity", session.Identity).
		Str("room", session.Room).
		Str("reason", reason).
		Int("total_connections", c.registry.Len()).
		Msg("Connection evicted.")
	return true
}

// detach removes a prior session snapshot from its room and identity, then tells the
// remaining members. The registry entry must already be cleared or removed.
func (c *Coordinator) detach(prior Session) {
	if prior.Room == "" {
		return
	}

	c.rooms.Remove(prior.Room, prior.ConnectionID)
	c.ledger.Release(prior.Identity, prior.ConnectionID)

	c.broadcast(prior.Room, c.event(protocol.TypeMemberLeft, protocol.MemberPayload{
		Identity: prior.Identity,
		Room:     prior.Room,
	}), "")
	c.broadcast(prior.Room, c.rosterEvent(prior.Room), "")
}

// kick tells a displaced connection why it is going away and evicts it.
func (c *Coordinator) kick(id, identity string) {
	session, err := c.registry.Get(id)
	if err != nil {
		return
	}

	c.logger.Warn().
		Str("connection_id", id).
		Str("identity", identity).
		Msg("Identity claimed by a new connection. Closing old connection for replacement.")

	// the kicked event is best effort; the close frame carries the same signal
	_ = session.Conn.Send(c.event(protocol.TypeKicked, protocol.KickedPayload{Reason: kickReason}))
	c.evict(id, protocol.CloseSessionKicked, kickReason)
}

// broadcast delivers ev to every member of room except the connection named by except.
func (c *Coordinator) broadcast(room string, ev protocol.Event, except string) {
	for _, member := range c.rooms.Members(room) {
		if member == except {
			continue
		}
		session, err := c.registry.Get(member)
		if err != nil {
			continue
		}
		c.deliver(member, session.Conn, ev)
	}
}

// deliver enqueues ev on conn. A connection that cannot accept it is queued for eviction.
func (c *Coordinator) deliver(id string, conn Conn, ev protocol.Event) {
	if conn == nil {
		return
	}
	if err := conn.Send(ev); err != nil {
		c.logger.Warn().
			Str("connection_id", id).
			Str("event", string(ev.Type)).
			Err(err).
			Msg("Client send queue unavailable, evicting.")
		c.pending = append(c.pending, eviction{id: id, code: websocket.CloseGoingAway, reason: "send queue unavailable"})
	}
}

// replyError reports a failed operation to the connection that issued it.
func (c *Coordinator) replyError(session Session, cerr *errs.CustomError) {
	c.deliver(session.ConnectionID, session.Conn, c.event(protocol.TypeError, protocol.ErrorPayload{
		Kind:    cerr.Kind,
		Code:    cerr.Code,
		Message: cerr.Message,
	}))
}

func (c *Coordinator) joinedEvent(identity, room string) protocol.Event {
	return c.event(protocol.TypeJoined, protocol.JoinedPayload{
		Room:        room,
		WelcomeText: fmt.Sprintf("Welcome to %s room, %s!", room, identity),
	})
}

// rosterEvent lists the distinct identities of room in join order.
func (c *Coordinator) rosterEvent(room string) protocol.Event {
	identities := lo.Uniq(lo.FilterMap(c.rooms.Members(room), func(id string, _ int) (string, bool) {
		session, err := c.registry.Get(id)
		return session.Identity, err == nil && session.Identity != ""
	}))

	return c.event(protocol.TypeRoster, protocol.RosterPayload{Room: room, Identities: identities})
}

func (c *Coordinator) event(eventType protocol.EventType, payload any) protocol.Event {
	ev, err := protocol.NewEvent(eventType, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", string(eventType)).Msg("Failed to build event.")
		return protocol.Event{Type: eventType}
	}
	return ev
}

package http

import (
	"sync"

	"faceoff-match-service/internal/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// outboundMessage is the wire envelope for server-to-client events.
type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Gateway holds the live connections per session and fans coordinator events
// out to them. Delivery is best-effort, at most once per live connection, and
// ordered per connection: each client has a single buffered send channel
// drained by one writer goroutine. A broken socket is pruned without
// aborting delivery to the rest.
type Gateway struct {
	log *zap.Logger

	mu       sync.Mutex
	sessions map[string]map[*client]struct{}
	ready    map[string]map[string]map[string]struct{} // code -> rendezvous -> participant ids
}

type client struct {
	sessionCode   string
	participantID string
	conn          *websocket.Conn
	send          chan outboundMessage
	done          chan struct{}
	closeOnce     sync.Once
}

func NewGateway(log *zap.Logger) *Gateway {
	return &Gateway{
		log:      log,
		sessions: make(map[string]map[*client]struct{}),
		ready:    make(map[string]map[string]map[string]struct{}),
	}
}

// Register adds a connection under the session code and starts its writer.
// Re-registering the same physical connection is a no-op and returns the
// existing client.
func (g *Gateway) Register(code, participantID string, conn *websocket.Conn) *client {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sessions[code] == nil {
		g.sessions[code] = make(map[*client]struct{})
	}
	for c := range g.sessions[code] {
		if c.conn == conn {
			return c
		}
	}
	c := &client{
		sessionCode:   code,
		participantID: participantID,
		conn:          conn,
		send:          make(chan outboundMessage, 32),
		done:          make(chan struct{}),
	}
	g.sessions[code][c] = struct{}{}
	go g.writeLoop(c)
	return c
}

// Deregister removes a connection and stops its writer.
func (g *Gateway) Deregister(c *client) {
	g.mu.Lock()
	if set, ok := g.sessions[c.sessionCode]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			if len(set) == 0 {
				delete(g.sessions, c.sessionCode)
			}
		}
	}
	g.mu.Unlock()
	// The send channel is never closed; the writer is told to stop through
	// done so a concurrent Send cannot hit a closed channel.
	c.closeOnce.Do(func() { close(c.done) })
}

func (g *Gateway) writeLoop(c *client) {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				g.log.Warn("ws write failed, pruning connection",
					zap.String("code", c.sessionCode),
					zap.String("participantId", c.participantID),
					zap.Error(err))
				g.Deregister(c)
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			// Flush what was queued before the stop signal so a targeted
			// event such as a kick notice still reaches the client.
			for {
				select {
				case msg := <-c.send:
					if c.conn.WriteJSON(msg) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// Dispatch fans coordinator events out to their sessions. Targeted events
// reach only the target participant's connections.
func (g *Gateway) Dispatch(events []domain.Event) {
	for _, ev := range events {
		msg := outboundMessage{Type: string(ev.Type), Payload: ev.Payload}
		if ev.TargetID != "" {
			g.sendTo(ev.SessionCode, ev.TargetID, msg)
			continue
		}
		g.Broadcast(ev.SessionCode, msg)
	}
}

// Broadcast queues msg on every live connection of the session. A client
// whose buffer is full is dropped rather than allowed to block the rest.
func (g *Gateway) Broadcast(code string, msg outboundMessage) {
	g.mu.Lock()
	var stale []*client
	for c := range g.sessions[code] {
		select {
		case <-c.done:
		case c.send <- msg:
		default:
			stale = append(stale, c)
		}
	}
	g.mu.Unlock()

	for _, c := range stale {
		g.log.Warn("ws send buffer full, pruning connection",
			zap.String("code", code),
			zap.String("participantId", c.participantID))
		g.Deregister(c)
		_ = c.conn.Close()
	}
}

// Send queues msg on a single client. A client already stopped is skipped;
// one with a full buffer is pruned.
func (g *Gateway) Send(c *client, msg outboundMessage) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		g.Deregister(c)
		_ = c.conn.Close()
	}
}

func (g *Gateway) sendTo(code, participantID string, msg outboundMessage) {
	g.mu.Lock()
	var targets []*client
	for c := range g.sessions[code] {
		if c.participantID == participantID {
			targets = append(targets, c)
		}
	}
	g.mu.Unlock()
	for _, c := range targets {
		g.Send(c, msg)
	}
}

// Ready records one participant at a named rendezvous point. When needed
// distinct participants have reported, the tracker clears (so the same point
// can be reused in a later phase) and Ready reports that the rendezvous
// fired.
func (g *Gateway) Ready(code, name, participantID string, needed int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ready[code] == nil {
		g.ready[code] = make(map[string]map[string]struct{})
	}
	if g.ready[code][name] == nil {
		g.ready[code][name] = make(map[string]struct{})
	}
	g.ready[code][name][participantID] = struct{}{}
	if needed > 0 && len(g.ready[code][name]) >= needed {
		delete(g.ready[code], name)
		if len(g.ready[code]) == 0 {
			delete(g.ready, code)
		}
		return true
	}
	return false
}

// DisconnectParticipant drops every connection a participant holds in the
// session, used after a kick so the removed client cannot keep listening.
func (g *Gateway) DisconnectParticipant(code, participantID string) {
	g.mu.Lock()
	var targets []*client
	for c := range g.sessions[code] {
		if c.participantID == participantID {
			targets = append(targets, c)
		}
	}
	g.mu.Unlock()
	for _, c := range targets {
		g.Deregister(c)
		_ = c.conn.Close()
	}
}

// ConnectionCount reports live connections for a session (diagnostics).
func (g *Gateway) ConnectionCount(code string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions[code])
}

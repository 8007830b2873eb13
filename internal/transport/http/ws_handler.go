package http

import (
	"encoding/json"
	"net/http"

	"faceoff-match-service/internal/app"
	"faceoff-match-service/internal/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler upgrades connections and wires them into the coordinator: every
// inbound message becomes a coordinator call, and the returned events are
// handed to the gateway for fan-out.
type WSHandler struct {
	service  *app.MatchService
	gateway  *Gateway
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.MatchService, gateway *Gateway, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		gateway: gateway,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	Phase         string        `json:"phase"`
	QuestionIndex int           `json:"questionIndex"`
	Answer        domain.Answer `json:"answer"`
}

type timerPayload struct {
	Phase         string `json:"phase"`
	QuestionIndex int    `json:"questionIndex"`
}

type readyPayload struct {
	Phase string `json:"phase"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS attaches a participant's connection to their session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := app.NormalizeCode(r.URL.Query().Get("code"))
	participantID := r.URL.Query().Get("participantId")
	if code == "" || participantID == "" {
		http.Error(w, "missing code or participantId", http.StatusBadRequest)
		return
	}
	roster, err := h.service.SessionSnapshot(code)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if !rosterHas(roster, participantID) {
		http.Error(w, "participant not in session", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	client := h.gateway.Register(code, participantID, conn)
	defer func() {
		h.gateway.Deregister(client)
		_ = conn.Close()
		// Remaining connections get a fresh session snapshot.
		if payload, err := h.service.SessionSnapshot(code); err == nil {
			h.gateway.Broadcast(code, outboundMessage{Type: string(domain.EventRosterChanged), Payload: payload})
		}
	}()

	// Late or reconnecting clients catch up from a full state snapshot. Only
	// this connection receives it; already-connected clients see nothing.
	snapshot, err := h.service.Snapshot(r.Context(), code)
	if err != nil {
		h.gateway.Send(client, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	h.gateway.Send(client, outboundMessage{Type: "snapshot", Payload: snapshot})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		h.handleMessage(r, code, participantID, client, inbound)
	}
}

func (h *WSHandler) handleMessage(r *http.Request, code, participantID string, client *client, inbound inboundMessage) {
	ctx := r.Context()
	switch inbound.Type {
	case "submitAnswer":
		var payload submitPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.gateway.Send(client, outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid submitAnswer payload"}})
			return
		}
		events, err := h.service.HandleSubmission(ctx, code, participantID, payload.Phase, payload.QuestionIndex, payload.Answer)
		if err != nil {
			h.gateway.Send(client, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		h.gateway.Dispatch(events)

	case "timerExpired":
		// Timer expiry is an ordinary submission-equivalent event: a forced
		// no-answer record through the same completion-evaluation path.
		var payload timerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.gateway.Send(client, outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid timerExpired payload"}})
			return
		}
		events, err := h.service.HandleSubmission(ctx, code, participantID, payload.Phase, payload.QuestionIndex, domain.Answer{TimedOut: true})
		if err != nil {
			h.gateway.Send(client, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		h.gateway.Dispatch(events)

	case "readyForScores", "readyToContinue":
		var payload readyPayload
		_ = json.Unmarshal(inbound.Payload, &payload)
		name := inbound.Type
		if payload.Phase != "" {
			name += ":" + payload.Phase
		}
		roster, err := h.service.SessionSnapshot(code)
		if err != nil {
			h.gateway.Send(client, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		if h.gateway.Ready(code, name, participantID, len(roster.Participants)) {
			h.gateway.Broadcast(code, outboundMessage{
				Type:    string(domain.EventRendezvous),
				Payload: domain.RendezvousPayload{Name: name, Count: len(roster.Participants)},
			})
		}

	case "forceComplete":
		events, err := h.service.ForceComplete(ctx, code, participantID)
		if err != nil {
			h.gateway.Send(client, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		h.gateway.Dispatch(events)

	case "leave":
		events, err := h.service.LeaveSession(ctx, code, participantID)
		if err != nil {
			h.gateway.Send(client, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		h.gateway.Dispatch(events)

	default:
		h.gateway.Send(client, outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
	}
}

func rosterHas(roster domain.RosterPayload, participantID string) bool {
	for _, p := range roster.Participants {
		if p.ID == participantID {
			return true
		}
	}
	return false
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"faceoff-match-service/internal/app"
	"faceoff-match-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// API is the thin session-management surface over the coordinator: create,
// join, leave, start, kick, transfer. Events raised by these calls are fanned
// out through the gateway just like WS-originated ones.
type API struct {
	service *app.MatchService
	gateway *Gateway
	log     *zap.Logger
}

func NewAPI(service *app.MatchService, gateway *Gateway, log *zap.Logger) *API {
	return &API{service: service, gateway: gateway, log: log}
}

// Routes assembles the router.
func Routes(api *API, ws *WSHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/sessions", api.CreateSession)
	r.Get("/sessions/{code}", api.GetSession)
	r.Post("/sessions/{code}/join", api.JoinSession)
	r.Post("/sessions/{code}/leave", api.LeaveSession)
	r.Post("/sessions/{code}/start", api.StartMatch)
	r.Post("/sessions/{code}/kick", api.KickParticipant)
	r.Post("/sessions/{code}/transfer", api.TransferOwnership)
	r.Get("/ws", ws.ServeWS)
	return r
}

type createSessionRequest struct {
	DisplayName string `json:"displayName"`
}

type sessionResponse struct {
	Code          string               `json:"code"`
	ParticipantID string               `json:"participantId,omitempty"`
	Roster        domain.RosterPayload `json:"roster"`
}

func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DisplayName == "" {
		httpError(w, http.StatusBadRequest, "displayName required")
		return
	}
	session, owner, err := a.service.CreateSession(r.Context(), req.DisplayName)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		Code:          session.Code(),
		ParticipantID: owner.ID,
		Roster:        session.RosterPayload(),
	})
}

func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	snapshot, err := a.service.Snapshot(r.Context(), code)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type joinRequest struct {
	DisplayName string `json:"displayName"`
}

func (a *API) JoinSession(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DisplayName == "" {
		httpError(w, http.StatusBadRequest, "displayName required")
		return
	}
	session, p, events, err := a.service.JoinSession(r.Context(), chi.URLParam(r, "code"), req.DisplayName)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.gateway.Dispatch(events)
	writeJSON(w, http.StatusOK, sessionResponse{
		Code:          session.Code(),
		ParticipantID: p.ID,
		Roster:        session.RosterPayload(),
	})
}

type participantRequest struct {
	ParticipantID string `json:"participantId"`
	TargetID      string `json:"targetId,omitempty"`
}

func (a *API) LeaveSession(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
		httpError(w, http.StatusBadRequest, "participantId required")
		return
	}
	events, err := a.service.LeaveSession(r.Context(), chi.URLParam(r, "code"), req.ParticipantID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.gateway.Dispatch(events)
	w.WriteHeader(http.StatusNoContent)
}

type startRequest struct {
	ParticipantID string             `json:"participantId"`
	MatchType     domain.MatchType   `json:"matchType"`
	Config        domain.MatchConfig `json:"config"`
}

func (a *API) StartMatch(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
		httpError(w, http.StatusBadRequest, "participantId required")
		return
	}
	if req.MatchType == "" {
		req.MatchType = domain.MatchTypeStandard
	}
	match, events, err := a.service.StartMatch(r.Context(), chi.URLParam(r, "code"), req.ParticipantID, req.MatchType, req.Config)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.gateway.Dispatch(events)
	writeJSON(w, http.StatusCreated, match)
}

func (a *API) KickParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" || req.TargetID == "" {
		httpError(w, http.StatusBadRequest, "participantId and targetId required")
		return
	}
	code := chi.URLParam(r, "code")
	events, err := a.service.KickParticipant(r.Context(), code, req.ParticipantID, req.TargetID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.gateway.Dispatch(events)
	a.gateway.DisconnectParticipant(app.NormalizeCode(code), req.TargetID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" || req.TargetID == "" {
		httpError(w, http.StatusBadRequest, "participantId and targetId required")
		return
	}
	events, err := a.service.TransferOwnership(r.Context(), chi.URLParam(r, "code"), req.ParticipantID, req.TargetID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.gateway.Dispatch(events)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrMatchNotFound):
		httpError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNameTaken), errors.Is(err, domain.ErrMatchAlreadyStarted):
		httpError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		httpError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrParticipantNotFound), errors.Is(err, domain.ErrPhaseUnknown), errors.Is(err, domain.ErrQuestionOutOfRange):
		httpError(w, http.StatusBadRequest, err.Error())
	default:
		a.log.Error("request failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}

func httpError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

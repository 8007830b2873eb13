package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"faceoff-match-service/internal/app"
	"faceoff-match-service/internal/content"
	"faceoff-match-service/internal/domain"
	"faceoff-match-service/internal/infra/memory"
	"faceoff-match-service/internal/judge"
	"faceoff-match-service/internal/phase"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type wsFixture struct {
	server  *httptest.Server
	service *app.MatchService
	code    string
	alice   string
	bob     string
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	store := memory.NewMatchStore()
	registry := phase.NewRegistry(
		[]string{"quickfire"},
		phase.New("quickfire", 1),
		phase.New(phase.SuddenDeath, 1),
	)
	pools := map[string][]domain.Question{
		"quickfire": {
			{ID: "q1", Prompt: "Pick the right one", Options: []domain.Option{
				{ID: "q1a", Text: "Wrong"},
				{ID: "q1b", Text: "Right", Correct: true},
			}},
		},
		phase.SuddenDeath: {
			{ID: "sd1", Prompt: "Explain the race", Keywords: []string{"stale"}},
		},
	}
	ledger := app.NewScoreLedger(store, judge.NewHeuristic(), zap.NewNop())
	service := app.NewMatchService(
		memory.NewSessionStore(),
		store,
		content.NewStaticProvider(pools),
		registry,
		ledger,
		zap.NewNop(),
	)

	gateway := NewGateway(zap.NewNop())
	wsHandler := NewWSHandler(service, gateway, zap.NewNop())
	api := NewAPI(service, gateway, zap.NewNop())
	server := httptest.NewServer(Routes(api, wsHandler))
	t.Cleanup(server.Close)

	ctx := context.Background()
	session, owner, err := service.CreateSession(ctx, "Alice")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	_, bob, _, err := service.JoinSession(ctx, session.Code(), "Bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, _, err := service.StartMatch(ctx, session.Code(), owner.ID, domain.MatchTypeStandard, domain.MatchConfig{Seed: 7}); err != nil {
		t.Fatalf("start: %v", err)
	}
	return &wsFixture{
		server:  server,
		service: service,
		code:    session.Code(),
		alice:   owner.ID,
		bob:     bob.ID,
	}
}

func (f *wsFixture) dial(t *testing.T, participantID string) *websocket.Conn {
	t.Helper()
	u := "ws" + f.server.URL[len("http"):] + "/ws?code=" + f.code + "&participantId=" + participantID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func TestWebSocketMatchFlow(t *testing.T) {
	f := newWSFixture(t)
	aliceConn := f.dial(t, f.alice)
	bobConn := f.dial(t, f.bob)

	// Every connection catches up from a snapshot first.
	_, snap := readNext(aliceConn, t, "snapshot")
	if snap["currentPhase"] != "quickfire" {
		t.Fatalf("expected current phase in snapshot, got %+v", snap)
	}
	readNext(bobConn, t, "snapshot")

	submit := func(conn *websocket.Conn, optionID string) {
		t.Helper()
		err := conn.WriteJSON(map[string]any{
			"type": "submitAnswer",
			"payload": map[string]any{
				"phase":         "quickfire",
				"questionIndex": 0,
				"answer":        map[string]any{"optionId": optionID},
			},
		})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	submit(aliceConn, "q1b")
	submit(bobConn, "q1a")

	// Both clients see the completion pair exactly once.
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		phaseCompletes := 0
		for {
			typ, payload := readNext(conn, t, "")
			if typ == string(domain.EventPhaseComplete) {
				phaseCompletes++
				scores := payload["scores"].(map[string]any)
				if scores[f.alice].(float64) != 5 {
					t.Fatalf("unexpected scores: %+v", scores)
				}
			}
			if typ == string(domain.EventMatchComplete) {
				if payload["winnerId"] != f.alice {
					t.Fatalf("expected alice to win, got %+v", payload)
				}
				break
			}
		}
		if phaseCompletes != 1 {
			t.Fatalf("expected exactly one phaseComplete, got %d", phaseCompletes)
		}
	}
}

func TestReconnectReceivesCurrentSnapshot(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()

	if _, err := f.service.HandleSubmission(ctx, f.code, f.alice, "quickfire", 0, domain.Answer{OptionID: "q1b"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	conn := f.dial(t, f.bob)
	_, snap := readNext(conn, t, "snapshot")
	if snap["currentPhase"] != "quickfire" {
		t.Fatalf("stale snapshot after submissions: %+v", snap)
	}
	scores := snap["scores"].(map[string]any)
	if scores[f.alice].(float64) != 0 {
		t.Fatalf("scores merged before phase completion: %+v", scores)
	}
}

func TestRendezvousFiresWhenAllReady(t *testing.T) {
	f := newWSFixture(t)
	aliceConn := f.dial(t, f.alice)
	bobConn := f.dial(t, f.bob)
	readNext(aliceConn, t, "snapshot")
	readNext(bobConn, t, "snapshot")

	ready := map[string]any{
		"type":    "readyForScores",
		"payload": map[string]any{"phase": "quickfire"},
	}
	if err := aliceConn.WriteJSON(ready); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := bobConn.WriteJSON(ready); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		typ, payload := readNext(conn, t, string(domain.EventRendezvous))
		if typ != string(domain.EventRendezvous) {
			t.Fatalf("expected rendezvous, got %s", typ)
		}
		if payload["name"] != "readyForScores:quickfire" {
			t.Fatalf("unexpected rendezvous name: %+v", payload)
		}
	}
}

func TestConnectionRequiresMembership(t *testing.T) {
	f := newWSFixture(t)
	u := "ws" + f.server.URL[len("http"):] + "/ws?code=" + f.code + "&participantId=ghost"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake rejection for unknown participant")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

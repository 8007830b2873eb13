package app_test

import (
	"context"
	"testing"

	"faceoff-match-service/internal/app"
	"faceoff-match-service/internal/domain"
)

func TestJoinRejectsDuplicateName(t *testing.T) {
	session := app.NewSession("ABC123")
	if _, err := session.Join("Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := session.Join("Alice"); err != domain.ErrNameTaken {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if _, err := session.Join("alice "); err != nil {
		t.Fatalf("names differing in case or spacing are distinct: %v", err)
	}
}

func TestFirstJoinerOwnsSession(t *testing.T) {
	session := app.NewSession("ABC123")
	owner, _ := session.Join("Alice")
	other, _ := session.Join("Bob")

	if session.OwnerID() != owner.ID {
		t.Fatalf("expected first joiner as owner")
	}
	if err := session.Kick(other.ID, owner.ID); err != domain.ErrNotOwner {
		t.Fatalf("expected ErrNotOwner for non-owner kick, got %v", err)
	}
	if err := session.Kick(owner.ID, other.ID); err != nil {
		t.Fatalf("owner kick failed: %v", err)
	}
	if session.Has(other.ID) {
		t.Fatalf("kicked participant still present")
	}
}

func TestOwnershipTransfersOnLeave(t *testing.T) {
	session := app.NewSession("ABC123")
	owner, _ := session.Join("Alice")
	second, _ := session.Join("Bob")
	third, _ := session.Join("Cara")

	if err := session.Leave(owner.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if session.OwnerID() != second.ID {
		t.Fatalf("expected ownership to pass in join order, got %s", session.OwnerID())
	}

	if err := session.TransferOwnership(second.ID, third.ID); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if session.OwnerID() != third.ID {
		t.Fatalf("expected explicit transfer to take effect")
	}
	if err := session.TransferOwnership(second.ID, third.ID); err != domain.ErrNotOwner {
		t.Fatalf("expected ErrNotOwner from former owner, got %v", err)
	}
}

func TestBeginStartOnce(t *testing.T) {
	session := app.NewSession("ABC123")
	owner, _ := session.Join("Alice")

	if err := session.BeginStart(owner.ID); err != nil {
		t.Fatalf("begin start: %v", err)
	}
	if err := session.BeginStart(owner.ID); err != domain.ErrMatchAlreadyStarted {
		t.Fatalf("expected ErrMatchAlreadyStarted, got %v", err)
	}
}

func TestGenerateCodeShape(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := app.GenerateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6-char code, got %q", code)
		}
		if code != app.NormalizeCode(code) {
			t.Fatalf("code not normalized: %q", code)
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 90 {
		t.Fatalf("codes look non-random: %d unique of 100", len(seen))
	}
}

func TestCreateSessionRetriesCollisions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, quickfireRegistry(), quickfirePools())

	codes := make(map[string]struct{})
	for i := 0; i < 5; i++ {
		session, _, err := h.service.CreateSession(ctx, "Alice")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, dup := codes[session.Code()]; dup {
			t.Fatalf("duplicate session code issued: %s", session.Code())
		}
		codes[session.Code()] = struct{}{}
	}
}

package chat_test

import (
	"context"
	"errors"
	"testing"

	modelchat "github.com/educhain/assistant/backend/internal/model/chat"
	"github.com/educhain/assistant/backend/internal/model/profile"
	chat "github.com/educhain/assistant/backend/internal/service/chat"
)

func newService(seedGreeting bool) *chat.Service {
	return chat.NewService(profile.NewMemoryStore(profile.Seed()), seedGreeting)
}

func TestServiceGetSession(t *testing.T) {
	svc := newService(true)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "learning-coach")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.ProfileID != "learning-coach" {
		t.Fatalf("unexpected profile ID: got %s", got.ProfileID)
	}
}

func TestServiceDefaultsProfileAndSeedsGreeting(t *testing.T) {
	svc := newService(true)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if session.ProfileID != profile.DefaultID {
		t.Fatalf("expected default profile, got %s", session.ProfileID)
	}

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 1 || transcript[0].Content != "Hi! I'm your AI assistant. How can I help you today?" {
		t.Fatalf("unexpected seed transcript: %+v", transcript)
	}
}

func TestServiceWithoutGreetingStartsEmpty(t *testing.T) {
	svc := newService(false)
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, "")
	transcript, _ := svc.LoadTranscript(ctx, session.ID)
	if len(transcript) != 0 {
		t.Fatalf("expected empty transcript, got %d turns", len(transcript))
	}
}

func TestServiceUnknownProfile(t *testing.T) {
	svc := newService(true)
	if _, err := svc.CreateSession(context.Background(), "missing"); !errors.Is(err, chat.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService(true)
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.LoadTranscript(ctx, "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceAppendAndClear(t *testing.T) {
	svc := newService(true)
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "")

	turn, err := svc.AppendTurn(ctx, session.ID, modelchat.Turn{Role: modelchat.RoleUser, Content: "hello"})
	if err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}
	if turn.ID == "" {
		t.Fatal("expected stored turn to carry an id")
	}

	if _, err := svc.AppendTurn(ctx, session.ID, modelchat.Turn{Role: "system", Content: "x"}); !errors.Is(err, chat.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	cleared, err := svc.ClearSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("ClearSession err: %v", err)
	}
	if len(cleared) != 1 || cleared[0].Role != modelchat.RoleAssistant {
		t.Fatalf("expected greeting-only log after clear, got %+v", cleared)
	}

	svc.DeleteSession(ctx, session.ID)
	if _, err := svc.GetSession(ctx, session.ID); err == nil {
		t.Fatal("expected deleted session to be gone")
	}
}

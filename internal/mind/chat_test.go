package mind

import (
	"context"
	"errors"
	"testing"

	"hikari-bot/internal/storage"
)

func TestHandleIncomingRepliesAndRecordsTurns(t *testing.T) {
	provider := &fakeProvider{responses: []string{"fine. what do you want."}}
	engine, store := testEngine(t, provider, testSettings())

	reply, err := engine.HandleIncoming(context.Background(), "hey")
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if reply != "fine. what do you want." {
		t.Errorf("reply = %q", reply)
	}

	turns := engine.Session().Turns(10)
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("turns = %+v", turns)
	}
	if store.Heartbeat().LastUserMessage.IsZero() {
		t.Error("user message timestamp not recorded")
	}
	if len(provider.tasks) != 1 || provider.tasks[0] != "chat" {
		t.Errorf("tasks = %v", provider.tasks)
	}
}

func TestHandleIncomingRoutesAdultModelAtStageFour(t *testing.T) {
	provider := &fakeProvider{responses: []string{"come here."}}
	settings := testSettings()
	settings.Trust.MaxStage = 5
	engine, store := testEngine(t, provider, settings)
	store.UpdateProfile(func(p *storage.UserProfile) { p.TrustStage = 4 })

	if _, err := engine.HandleIncoming(context.Background(), "hey"); err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if len(provider.tasks) != 1 || provider.tasks[0] != "adult_chat" {
		t.Errorf("tasks = %v", provider.tasks)
	}
}

func TestHandleIncomingBackendError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("backend down")}
	engine, _ := testEngine(t, provider, testSettings())

	if _, err := engine.HandleIncoming(context.Background(), "hey"); err == nil {
		t.Fatal("backend error should surface")
	}
	// The user turn stays so the next attempt still has context.
	if got := engine.Session().TurnCount(); got != 1 {
		t.Errorf("TurnCount = %d, want 1", got)
	}
}

func TestHandleSystemRecordsNoUserTurn(t *testing.T) {
	provider := &fakeProvider{responses: []string{"i was told to introduce myself. fine."}}
	engine, _ := testEngine(t, provider, testSettings())

	reply, err := engine.HandleSystem(context.Background(), "introduce yourself")
	if err != nil {
		t.Fatalf("HandleSystem: %v", err)
	}
	if reply == "" {
		t.Error("empty reply")
	}
	if got := engine.Session().TurnCount(); got != 0 {
		t.Errorf("system directive recorded %d user turns", got)
	}
}

func TestHandleIncomingImageFoldsDescription(t *testing.T) {
	provider := &fakeProvider{responses: []string{"why are you sending me this."}}
	engine, _ := testEngine(t, provider, testSettings())

	reply, err := engine.HandleIncomingImage(context.Background(), "look", "https://cdn.example/img.png")
	if err != nil {
		t.Fatalf("HandleIncomingImage: %v", err)
	}
	if reply == "" {
		t.Error("empty reply")
	}
	turns := engine.Session().Turns(10)
	if len(turns) != 2 {
		t.Fatalf("turns = %+v", turns)
	}
	// fakeProvider's vision path succeeds, so the description folds in.
	if turns[0].Content == "look" {
		t.Error("photo description not folded into the turn")
	}
}

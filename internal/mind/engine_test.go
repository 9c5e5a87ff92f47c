package mind

import (
	"context"
	"path/filepath"
	"testing"

	"hikari-bot/datastore"
	"hikari-bot/internal/ai"
	"hikari-bot/internal/config"
	"hikari-bot/internal/storage"
)

// fakeProvider replays scripted responses in call order. The last response
// repeats once the script runs out.
type fakeProvider struct {
	responses []string
	err       error
	calls     int
	tasks     []string
}

func (f *fakeProvider) Generate(_ context.Context, _ []ai.Message, task string, _ float64) (string, error) {
	f.tasks = append(f.tasks, task)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	i := f.calls
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	f.calls++
	return f.responses[i], nil
}

func (f *fakeProvider) GenerateVision(context.Context, string, string) (string, error) {
	return "a photo", nil
}

func testSettings() *config.Settings {
	s := config.DefaultSettings()
	// Disable the time-of-day and probability gates that would make tests
	// depend on the wall clock.
	s.Heartbeat.QuietStart = "00:00"
	s.Heartbeat.QuietEnd = "00:00"
	s.Ignore.Enabled = false
	s.ResponseDelay.Enabled = false
	return s
}

func testEngine(t *testing.T, provider ai.Provider, settings *config.Settings) (*Engine, *storage.Store) {
	t.Helper()
	dir := t.TempDir()
	ds, err := datastore.New(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatalf("datastore: %v", err)
	}
	t.Cleanup(func() { ds.Close() })

	store := storage.New(ds, dir)
	return NewEngine(store, provider, settings, filepath.Join(dir, "character")), store
}

// Package mind is the persona core: session lifecycle, memory
// consolidation, confidence-decaying recall, daily reflection, and the
// proactive scheduler. Everything durable goes through the storage layer,
// everything generative through the ai.Provider.
package mind

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hikari-bot/internal/ai"
	"hikari-bot/internal/config"
	"hikari-bot/internal/storage"
)

type Engine struct {
	store    *storage.Store
	provider ai.Provider
	settings *config.Settings
	charDir  string
	session  *Session

	mu  sync.Mutex
	rng *rand.Rand
	// Consolidation watermark: last user-message timestamp already handled,
	// so one idle period never consolidates twice.
	consolidatedFor time.Time
}

func NewEngine(store *storage.Store, provider ai.Provider, settings *config.Settings, charDir string) *Engine {
	return &Engine{
		store:    store,
		provider: provider,
		settings: settings,
		charDir:  charDir,
		session:  NewSession(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *Engine) Store() *storage.Store      { return e.store }
func (e *Engine) Settings() *config.Settings { return e.settings }
func (e *Engine) Session() *Session          { return e.session }

// Mood returns today's mood, or focused when the mood system is disabled.
func (e *Engine) Mood() string {
	if !e.settings.Character.MoodEnabled {
		return MoodFocused
	}
	return DailyMood(time.Now().UTC().Format("2006-01-02"))
}

func (e *Engine) random() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

// readCharFile returns a character file's trimmed content, empty if absent.
func (e *Engine) readCharFile(name string) string {
	data, err := os.ReadFile(filepath.Join(e.charDir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (e *Engine) identity() string           { return e.readCharFile("IDENTITY.md") }
func (e *Engine) soul() string               { return e.readCharFile("SOUL.md") }
func (e *Engine) heartbeatTemplates() string { return e.readCharFile("HEARTBEAT_TEMPLATE.md") }

// lore returns up to n lore entries, one per "- " line of LORE.md.
func (e *Engine) lore(n int) string {
	content := e.readCharFile("LORE.md")
	if content == "" {
		return ""
	}
	var entries []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") {
			entries = append(entries, line)
		}
		if len(entries) == n {
			break
		}
	}
	return strings.Join(entries, "\n")
}

// Package storage is the only component that touches durable state. Every
// read-modify-write of a document goes through one mutex-guarded accessor,
// so timer goroutines and the message handler never tear each other's
// updates.
package storage

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"hikari-bot/datastore"
)

const (
	keyProfile   = "profile"
	keyHeartbeat = "heartbeat"
	keyMoodArc   = "mood_arc"
	keySelfModel = "self_model"
)

// KnownFact is a single remembered fact about the user. RecordedOn is a
// YYYY-MM-DD date; empty means a legacy fact of unknown age.
type KnownFact struct {
	Text       string `json:"text"`
	RecordedOn string `json:"recorded_on,omitempty"`
}

type UserProfile struct {
	Name                string      `json:"name"`
	TrustStage          int         `json:"trust_stage"`
	MeaningfulExchanges int         `json:"meaningful_exchanges"`
	KnownFacts          []KnownFact `json:"known_facts"`
	OpenLoops           []string    `json:"open_loops"`
	LastUpdated         time.Time   `json:"last_updated"`
}

// HeartbeatState is the scheduler's bookkeeping document. Zero time values
// mean "never happened".
type HeartbeatState struct {
	SilenceUntil        time.Time `json:"silence_until"`
	LastProactiveSent   time.Time `json:"last_proactive_sent"`
	LastUserMessage     time.Time `json:"last_user_message"`
	UsedExcuses         []int     `json:"used_excuses"`
	ProactiveCount      int       `json:"proactive_count"`
	BotHadLastWord      bool      `json:"bot_had_last_word"`
	LastSessionEndedAt  time.Time `json:"last_session_ended_at"`
	ReengagementSentAt  time.Time `json:"reengagement_sent_at"`
	WarmthFloorModifier int       `json:"warmth_floor_modifier"`
	PhotosSentOn        string    `json:"photos_sent_on"`
	PhotosSentToday     int       `json:"photos_sent_today"`
}

type TemperatureEntry struct {
	Date        string `json:"date"`
	Temperature string `json:"temperature"`
}

type MoodArc struct {
	CurrentArc                string             `json:"current_arc"`
	ArcNote                   string             `json:"arc_note"`
	RecentSessionTemperatures []TemperatureEntry `json:"recent_session_temperatures"`
}

// StagedDisclosure is author-curated content she may reveal once the trust
// stage unlocks it. Used flips true exactly once.
type StagedDisclosure struct {
	Text  string `json:"text"`
	Stage int    `json:"stage"`
	Used  bool   `json:"used"`
}

// Disclosure records something she actually told the user, dated.
type Disclosure struct {
	Text string `json:"text"`
	Date string `json:"date"`
}

type SelfModel struct {
	Preoccupation     string             `json:"preoccupation"`
	StagedDisclosures []StagedDisclosure `json:"staged_disclosures"`
	Disclosures       []Disclosure       `json:"disclosures"`
}

// Store wraps the datastore with typed accessors for the five durable
// documents plus the file-backed memory artifacts under dataDir.
type Store struct {
	mu      sync.Mutex
	ds      *datastore.DataStore
	dataDir string
}

func New(ds *datastore.DataStore, dataDir string) *Store {
	return &Store{ds: ds, dataDir: dataDir}
}

// get round-trips a stored document into a typed struct. A missing or
// corrupt document leaves out untouched so callers see defaults.
func (s *Store) get(key string, out any) {
	raw, ok := s.ds.Get(key)
	if !ok {
		return
	}
	data, err := json.Marshal(raw)
	if err != nil {
		log.Printf("[ERR] storage: marshal %s: %v", key, err)
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("[ERR] storage: unmarshal %s: %v", key, err)
	}
}

// Profile returns the user profile, defaulting to a stranger.
func (s *Store) Profile() UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileLocked()
}

func (s *Store) profileLocked() UserProfile {
	p := UserProfile{Name: "unknown"}
	s.get(keyProfile, &p)
	if p.Name == "" {
		p.Name = "unknown"
	}
	return p
}

// UpdateProfile applies fn to the profile under the store lock and persists
// the result.
func (s *Store) UpdateProfile(fn func(*UserProfile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profileLocked()
	fn(&p)
	p.LastUpdated = time.Now().UTC()
	s.ds.Add(keyProfile, p)
}

func (s *Store) Heartbeat() HeartbeatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeatLocked()
}

func (s *Store) heartbeatLocked() HeartbeatState {
	var h HeartbeatState
	s.get(keyHeartbeat, &h)
	return h
}

func (s *Store) UpdateHeartbeat(fn func(*HeartbeatState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.heartbeatLocked()
	fn(&h)
	s.ds.Add(keyHeartbeat, h)
}

func (s *Store) MoodArc() MoodArc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moodArcLocked()
}

func (s *Store) moodArcLocked() MoodArc {
	m := MoodArc{CurrentArc: "stable"}
	s.get(keyMoodArc, &m)
	if m.CurrentArc == "" {
		m.CurrentArc = "stable"
	}
	return m
}

func (s *Store) UpdateMoodArc(fn func(*MoodArc)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.moodArcLocked()
	fn(&m)
	s.ds.Add(keyMoodArc, m)
}

func (s *Store) SelfModel() SelfModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfModelLocked()
}

func (s *Store) selfModelLocked() SelfModel {
	var m SelfModel
	s.get(keySelfModel, &m)
	return m
}

func (s *Store) UpdateSelfModel(fn func(*SelfModel)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.selfModelLocked()
	fn(&m)
	s.ds.Add(keySelfModel, m)
}

// Flush forces the datastore to disk.
func (s *Store) Flush() error {
	return s.ds.SaveToFile()
}

// ---------------------------------------------------------------------------
// Convenience mutators
// ---------------------------------------------------------------------------

// SetSilence silences proactive sends until the given time. Zero clears it.
func (s *Store) SetSilence(until time.Time) {
	s.UpdateHeartbeat(func(h *HeartbeatState) {
		h.SilenceUntil = until
	})
}

func (s *Store) RecordUserMessage(now time.Time) {
	s.UpdateHeartbeat(func(h *HeartbeatState) {
		h.LastUserMessage = now
	})
}

// RecordProactiveSent stamps a proactive send. excuseIdx -1 marks a
// context-grounded message with no template behind it.
func (s *Store) RecordProactiveSent(excuseIdx int, now time.Time) {
	s.UpdateHeartbeat(func(h *HeartbeatState) {
		h.LastProactiveSent = now
		h.ProactiveCount++
		h.UsedExcuses = append(h.UsedExcuses, excuseIdx)
		if len(h.UsedExcuses) > 5 {
			h.UsedExcuses = h.UsedExcuses[len(h.UsedExcuses)-5:]
		}
	})
}

// RecordSessionEnded snapshots the session-end state the re-engagement
// scheduler keys off.
func (s *Store) RecordSessionEnded(botHadLastWord bool, now time.Time) {
	s.UpdateHeartbeat(func(h *HeartbeatState) {
		h.BotHadLastWord = botHadLastWord
		h.LastSessionEndedAt = now
	})
}

func (s *Store) RecordReengagementSent(now time.Time) {
	s.UpdateHeartbeat(func(h *HeartbeatState) {
		h.ReengagementSentAt = now
	})
}

// AppendSessionTemperature pushes a session temperature into the rolling
// window, evicting the oldest past five entries.
func (s *Store) AppendSessionTemperature(date, temperature string) {
	s.UpdateMoodArc(func(m *MoodArc) {
		m.RecentSessionTemperatures = append(m.RecentSessionTemperatures, TemperatureEntry{
			Date:        date,
			Temperature: temperature,
		})
		if len(m.RecentSessionTemperatures) > 5 {
			m.RecentSessionTemperatures = m.RecentSessionTemperatures[len(m.RecentSessionTemperatures)-5:]
		}
	})
}

// AddKnownFact appends a dated fact to the profile.
func (s *Store) AddKnownFact(text, date string) {
	s.UpdateProfile(func(p *UserProfile) {
		p.KnownFacts = append(p.KnownFacts, KnownFact{Text: text, RecordedOn: date})
	})
}

// ReplaceOpenLoops swaps the open-loops list wholesale.
func (s *Store) ReplaceOpenLoops(loops []string) {
	s.UpdateProfile(func(p *UserProfile) {
		p.OpenLoops = loops
	})
}

func (s *Store) AddSelfDisclosure(text, date string) {
	s.UpdateSelfModel(func(m *SelfModel) {
		m.Disclosures = append(m.Disclosures, Disclosure{Text: text, Date: date})
	})
}

// StagedDisclosureFor returns the first unused staged disclosure unlocked at
// or below stage, or an empty string.
func (s *Store) StagedDisclosureFor(stage int) string {
	m := s.SelfModel()
	for _, d := range m.StagedDisclosures {
		if !d.Used && d.Stage <= stage {
			return d.Text
		}
	}
	return ""
}

// MarkDisclosureUsed flips the used flag on the matching staged disclosure.
func (s *Store) MarkDisclosureUsed(text string) {
	s.UpdateSelfModel(func(m *SelfModel) {
		for i := range m.StagedDisclosures {
			if m.StagedDisclosures[i].Text == text {
				m.StagedDisclosures[i].Used = true
				return
			}
		}
	})
}

// PhotosSentToday returns today's photo count, resetting the counter when
// the stored date is not today.
func (s *Store) PhotosSentToday(today string) int {
	h := s.Heartbeat()
	if h.PhotosSentOn != today {
		return 0
	}
	return h.PhotosSentToday
}

func (s *Store) RecordPhotoSent(today string) {
	s.UpdateHeartbeat(func(h *HeartbeatState) {
		if h.PhotosSentOn != today {
			h.PhotosSentOn = today
			h.PhotosSentToday = 0
		}
		h.PhotosSentToday++
	})
}

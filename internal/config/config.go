package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Env holds secrets and paths taken from the environment. Tunables live in
// settings.yaml, not here.
type Env struct {
	DiscordToken     string `env:"DISCORD_TOKEN,required"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY,required"`
	VeniceAPIKey     string `env:"VENICE_API_KEY"`
	UserID           string `env:"HIKARI_USER_ID"`
	DataDir          string `env:"DATA_DIR" envDefault:"data"`
	CharacterDir     string `env:"CHARACTER_DIR" envDefault:"character"`
	SettingsPath     string `env:"SETTINGS_PATH" envDefault:"settings.yaml"`
	StoragePath      string `env:"STORAGE_PATH"`
}

// NewEnv parses the environment. Missing required secrets are fatal at
// startup, never mid-session.
func NewEnv() *Env {
	var e Env
	if err := env.Parse(&e); err != nil {
		log.Fatalf("[ERR] config: %v", err)
	}
	if e.StoragePath == "" {
		e.StoragePath = filepath.Join(e.DataDir, "hikari.json")
	}
	return &e
}

type SessionSettings struct {
	TimeoutMinutes     int `yaml:"timeout_minutes"`
	ContextWindowTurns int `yaml:"context_window_turns"`
}

type TrustSettings struct {
	ProgressionSpeed string `yaml:"progression_speed"` // slow / normal / fast / instant
	StartingStage    int    `yaml:"starting_stage"`
	MaxStage         int    `yaml:"max_stage"`
}

type HeartbeatSettings struct {
	MinIntervalHours        float64 `yaml:"min_interval_hours"`
	MaxIntervalHours        float64 `yaml:"max_interval_hours"`
	QuietStart              string  `yaml:"quiet_start"`
	QuietEnd                string  `yaml:"quiet_end"`
	SkipIfUserActiveMinutes int     `yaml:"skip_if_user_active_minutes"`
}

type ReengagementSettings struct {
	MinHours              float64 `yaml:"min_hours"`
	MaxHours              float64 `yaml:"max_hours"`
	ContextStageThreshold int     `yaml:"context_stage_threshold"`
}

type MemorySettings struct {
	EpisodeRetentionDays int `yaml:"episode_retention_days"`
	ReflectionHour       int `yaml:"reflection_hour"`
	RecentEpisodes       int `yaml:"recent_episodes"`
}

type ResponseDelaySettings struct {
	Enabled             bool    `yaml:"enabled"`
	BaseSeconds         float64 `yaml:"base_seconds"`
	MsPerChar           float64 `yaml:"ms_per_char"`
	CapSeconds          float64 `yaml:"cap_seconds"`
	PreIndicatorPause   float64 `yaml:"pre_indicator_pause"`
	MoodIrritableFactor float64 `yaml:"mood_irritable_factor"`
	MoodTiredFactor     float64 `yaml:"mood_tired_factor"`
}

type IgnoreSettings struct {
	Enabled   bool `yaml:"enabled"`
	MaxStreak int  `yaml:"max_streak"`
}

type CharacterSettings struct {
	MoodEnabled bool `yaml:"mood_enabled"`
}

type PhotoSettings struct {
	Enabled              bool    `yaml:"enabled"`
	Model                string  `yaml:"model"`
	MaxPerDay            int     `yaml:"max_per_day"`
	StageThreshold       int     `yaml:"stage_threshold"`
	HeartbeatProbability float64 `yaml:"heartbeat_probability"`
	NSFWStageThreshold   int     `yaml:"nsfw_stage_threshold"`
	NSFWModel            string  `yaml:"nsfw_model"`
	NSFWProvider         string  `yaml:"nsfw_provider"`
}

// Settings holds all runtime tunables from settings.yaml.
type Settings struct {
	Session       SessionSettings       `yaml:"session"`
	Trust         TrustSettings         `yaml:"trust"`
	Heartbeat     HeartbeatSettings     `yaml:"heartbeat"`
	Reengagement  ReengagementSettings  `yaml:"reengagement"`
	Memory        MemorySettings        `yaml:"memory"`
	Models        map[string]string     `yaml:"models"`
	ResponseDelay ResponseDelaySettings `yaml:"response_delay"`
	Ignore        IgnoreSettings        `yaml:"ignore"`
	Character     CharacterSettings     `yaml:"character"`
	Photo         PhotoSettings         `yaml:"photo"`

	mu   sync.RWMutex
	path string
}

// DefaultSettings returns the documented defaults, used when settings.yaml is
// missing or partial.
func DefaultSettings() *Settings {
	return &Settings{
		Session: SessionSettings{
			TimeoutMinutes:     30,
			ContextWindowTurns: 20,
		},
		Trust: TrustSettings{
			ProgressionSpeed: "normal",
			StartingStage:    0,
			MaxStage:         3,
		},
		Heartbeat: HeartbeatSettings{
			MinIntervalHours:        4,
			MaxIntervalHours:        8,
			QuietStart:              "23:00",
			QuietEnd:                "08:00",
			SkipIfUserActiveMinutes: 60,
		},
		Reengagement: ReengagementSettings{
			MinHours:              2,
			MaxHours:              6,
			ContextStageThreshold: 2,
		},
		Memory: MemorySettings{
			EpisodeRetentionDays: 30,
			ReflectionHour:       9,
			RecentEpisodes:       3,
		},
		Models: map[string]string{
			"chat":       "openai/gpt-4o-mini",
			"adult_chat": "openai/gpt-4o-mini",
			"memory":     "openai/gpt-4o-mini",
			"vision":     "openai/gpt-4o-mini",
		},
		ResponseDelay: ResponseDelaySettings{
			Enabled:             true,
			BaseSeconds:         1.0,
			MsPerChar:           35,
			CapSeconds:          10.0,
			PreIndicatorPause:   0.5,
			MoodIrritableFactor: 0.7,
			MoodTiredFactor:     1.3,
		},
		Ignore: IgnoreSettings{
			Enabled:   true,
			MaxStreak: 3,
		},
		Character: CharacterSettings{
			MoodEnabled: true,
		},
		Photo: PhotoSettings{
			Enabled:              false,
			Model:                "black-forest-labs/flux.2-klein",
			MaxPerDay:            2,
			StageThreshold:       2,
			HeartbeatProbability: 0.15,
			NSFWStageThreshold:   5,
			NSFWModel:            "lustify-v7",
			NSFWProvider:         "venice",
		},
	}
}

// LoadSettings reads settings.yaml from path, layering the file over the
// defaults. A missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	s.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("[WARN] config: %s not found, using defaults", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("config: parse settings: %w", err)
	}
	return s, nil
}

// Model returns the model ID for a task, falling back to the chat model.
func (s *Settings) Model(task string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.Models[task]; ok && m != "" {
		return m
	}
	if m, ok := s.Models["chat"]; ok && m != "" {
		return m
	}
	return "openai/gpt-4o-mini"
}

// SetModel updates the model for a task and persists settings.yaml.
func (s *Settings) SetModel(task, model string) error {
	s.mu.Lock()
	if s.Models == nil {
		s.Models = make(map[string]string)
	}
	s.Models[task] = model
	s.mu.Unlock()
	return s.Save()
}

// Save writes the current settings back to the file they were loaded from.
func (s *Settings) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.path == "" {
		return fmt.Errorf("config: no settings path to save to")
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: marshal settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("config: write settings: %w", err)
	}
	return nil
}

package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Story   Story   `yaml:"story"`
	Moods   []Mood  `yaml:"moods"`
	Backend Backend `yaml:"backend"`
}

type Story struct {
	// Draws below RumorBelow produce a rumor; draws below QuestBelow produce
	// quest progress; anything else is a world shift.
	RumorBelow float64 `yaml:"rumor_below"`
	QuestBelow float64 `yaml:"quest_below"`

	WorldShifts     []string `yaml:"world_shifts"`
	RecentEvents    int      `yaml:"recent_events"`
	CharacterSample int      `yaml:"character_sample"`
	FallbackOptions []string `yaml:"fallback_options"`
}

// Mood maps a label to the keywords that select it. Moods are matched in
// order; the first hit wins.
type Mood struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

type Backend struct {
	RetryAttempts     int     `yaml:"retry_attempts"`
	RetryBaseDelayMs  int     `yaml:"retry_base_delay_ms"`
	LoreTemperature   float64 `yaml:"lore_temperature"`
	StoryTemperature  float64 `yaml:"story_temperature"`
	ChoiceTemperature float64 `yaml:"choice_temperature"`
}

func Default() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Story: Story{
			RumorBelow:      0.35,
			QuestBelow:      0.7,
			WorldShifts:     []string{"a brief storm", "an impromptu market", "a contained fire", "rising tension among the guards"},
			RecentEvents:    3,
			CharacterSample: 5,
			FallbackOptions: []string{"Press onward", "Seek counsel", "Wait and watch"},
		},
		Moods: []Mood{
			{Label: "Tense", Keywords: []string{"storm", "fire", "tension", "threat", "danger"}},
			{Label: "Hopeful", Keywords: []string{"market", "celebrat", "aid", "hope"}},
			{Label: "Curious", Keywords: []string{"rumor", "whisper", "mystery", "strange"}},
		},
		Backend: Backend{
			RetryAttempts:     3,
			RetryBaseDelayMs:  1000,
			LoreTemperature:   0.7,
			StoryTemperature:  0.8,
			ChoiceTemperature: 0.7,
		},
	}
}

// Load reads a tuning file on top of Default. An empty path returns the
// defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	s := t.Story
	if s.RumorBelow < 0 || s.RumorBelow > s.QuestBelow || s.QuestBelow > 1 {
		return fmt.Errorf("story bands must satisfy 0 <= rumor_below <= quest_below <= 1 (got %v, %v)", s.RumorBelow, s.QuestBelow)
	}
	if len(s.WorldShifts) == 0 {
		return errors.New("story.world_shifts must not be empty")
	}
	for _, l := range s.WorldShifts {
		if strings.TrimSpace(l) == "" {
			return errors.New("story.world_shifts: blank label")
		}
	}
	if s.RecentEvents < 0 || s.CharacterSample < 0 {
		return errors.New("story windows must be non-negative")
	}
	if len(s.FallbackOptions) != 3 {
		return errors.New("story.fallback_options needs exactly 3 options")
	}
	for _, m := range t.Moods {
		if strings.TrimSpace(m.Label) == "" {
			return errors.New("moods: blank label")
		}
	}
	if t.Backend.RetryAttempts < 1 {
		return errors.New("backend.retry_attempts must be >= 1")
	}
	if t.Backend.RetryBaseDelayMs < 0 {
		return errors.New("backend.retry_base_delay_ms must be >= 0")
	}
	return nil
}

// Digest identifies the effective tuning; clients compare it across
// sessions.
func (t Tuning) Digest() string {
	b, err := yaml.Marshal(t)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

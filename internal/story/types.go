package story

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindRumor         Kind = "rumor"
	KindQuestProgress Kind = "quest_progress"
	KindWorldShift    Kind = "world_shift"
	KindChoice        Kind = "choice"
)

const (
	TagBackground = "background"
	TagContinue   = "continue"
	TagChoice     = "choice"
	TagNote       = "note"
)

type Mood string

const (
	MoodNeutral Mood = "Neutral"
	MoodTense   Mood = "Tense"
	MoodHopeful Mood = "Hopeful"
	MoodCurious Mood = "Curious"
)

var (
	ErrInvalidTransition = errors.New("invalid story transition")
	ErrNoPendingChoice   = fmt.Errorf("%w: no pending choice", ErrInvalidTransition)
	ErrChoicePending     = fmt.Errorf("%w: a choice is pending", ErrInvalidTransition)
	ErrUnknownOption     = fmt.Errorf("%w: option is not part of the pending choice", ErrInvalidTransition)
	ErrEmptyNote         = errors.New("note text is empty")
)

type Payload struct {
	Region string `json:"region,omitempty"`
	NPC    string `json:"npc,omitempty"`
	Quest  string `json:"quest,omitempty"`
	Note   string `json:"note,omitempty"`
}

// Event is one entry of the append-only story event log.
type Event struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Day     int       `json:"day"`
	World   string    `json:"world,omitempty"`
	Kind    Kind      `json:"kind"`
	Payload Payload   `json:"payload"`
}

// Chunk is one unit of transcript text.
type Chunk struct {
	ID   string    `json:"id"`
	Time time.Time `json:"time"`
	Day  int       `json:"day"`
	Text string    `json:"text"`
	Tags []string  `json:"tags"`
}

func (c Chunk) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type PendingChoice struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Context string   `json:"context"`
}

func (p *PendingChoice) has(option string) bool {
	for _, o := range p.Options {
		if o == option {
			return true
		}
	}
	return false
}

// State is the persisted part of an engine: the transcript, the clock and
// the active world. Events and the pending choice live only in memory.
type State struct {
	Day         int     `json:"day"`
	ActiveWorld string  `json:"active_world,omitempty"`
	Chunks      []Chunk `json:"chunks"`
}

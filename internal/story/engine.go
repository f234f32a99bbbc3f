// Package story runs the reactive story loop: a day clock with background
// events, backend-written continuations, and a single pending player
// choice.
//
// An Engine is not safe for concurrent use; callers serialize actions.
package story

import (
	"io"
	"log"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"manaforge.ai/internal/genai"
	"manaforge.ai/internal/tuning"
	"manaforge.ai/internal/world"
)

// Rand is the source of every random draw the engine makes.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Worlds exposes the session's known worlds.
type Worlds interface {
	WorldNames() []string
	World(name string) (*world.World, bool)
}

// EventSink receives every event appended to the log.
type EventSink interface {
	Record(ev Event) error
}

type Config struct {
	Backend genai.Backend
	Worlds  Worlds
	Tuning  tuning.Tuning
	Rand    Rand
	Sink    EventSink
	Logger  *log.Logger
	Now     func() time.Time
}

type Engine struct {
	backend genai.Backend
	worlds  Worlds
	tun     tuning.Tuning
	rnd     Rand
	sink    EventSink
	log     *log.Logger
	now     func() time.Time

	day         int
	activeWorld string
	events      []Event
	chunks      []Chunk
	mood        Mood
	pending     *PendingChoice
}

func New(cfg Config) *Engine {
	e := &Engine{
		backend: cfg.Backend,
		worlds:  cfg.Worlds,
		tun:     cfg.Tuning,
		rnd:     cfg.Rand,
		sink:    cfg.Sink,
		log:     cfg.Logger,
		now:     cfg.Now,
		mood:    MoodNeutral,
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6d616e61))
	}
	if e.log == nil {
		e.log = log.New(io.Discard, "", 0)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) Day() int            { return e.day }
func (e *Engine) Mood() Mood          { return e.mood }
func (e *Engine) ActiveWorld() string { return e.activeWorld }

// SetActiveWorld binds the story to one world. An empty name unbinds it.
func (e *Engine) SetActiveWorld(name string) { e.activeWorld = name }

func (e *Engine) Events() []Event { return slices.Clone(e.events) }
func (e *Engine) Chunks() []Chunk { return slices.Clone(e.chunks) }

// Pending returns a copy of the pending choice, or nil when idle.
func (e *Engine) Pending() *PendingChoice {
	if e.pending == nil {
		return nil
	}
	p := *e.pending
	p.Options = slices.Clone(p.Options)
	return &p
}

func (e *Engine) AwaitingChoice() bool { return e.pending != nil }

func (e *Engine) State() State {
	return State{Day: e.day, ActiveWorld: e.activeWorld, Chunks: e.Chunks()}
}

// Restore replaces the transcript, clock and active world. The event log
// and any pending choice are dropped.
func (e *Engine) Restore(s State) {
	e.day = max(s.Day, 0)
	e.activeWorld = s.ActiveWorld
	e.chunks = slices.Clone(s.Chunks)
	e.events = nil
	e.pending = nil
	e.mood = MoodNeutral
	for i := len(e.chunks) - 1; i >= 0; i-- {
		if e.chunks[i].HasTag(TagBackground) {
			e.mood = moodOf(e.tun.Moods, e.chunks[i].Text)
			break
		}
	}
}

// Checkpoint is a full copy of the engine's mutable state, including the
// transient event log and pending choice.
type Checkpoint struct {
	state   State
	events  []Event
	mood    Mood
	pending *PendingChoice
}

func (e *Engine) Checkpoint() Checkpoint {
	return Checkpoint{
		state:   e.State(),
		events:  e.Events(),
		mood:    e.mood,
		pending: e.Pending(),
	}
}

// Rollback returns the engine to cp. Events already handed to the sink
// stay recorded there.
func (e *Engine) Rollback(cp Checkpoint) {
	e.day = cp.state.Day
	e.activeWorld = cp.state.ActiveWorld
	e.chunks = slices.Clone(cp.state.Chunks)
	e.events = slices.Clone(cp.events)
	e.mood = cp.mood
	e.pending = nil
	if cp.pending != nil {
		p := *cp.pending
		p.Options = slices.Clone(p.Options)
		e.pending = &p
	}
}

func (e *Engine) newChunk(text string, tags ...string) Chunk {
	return Chunk{
		ID:   uuid.NewString(),
		Time: e.now().UTC(),
		Day:  e.day,
		Text: text,
		Tags: tags,
	}
}

func (e *Engine) appendEvent(worldName string, kind Kind, p Payload) Event {
	ev := Event{
		ID:      uuid.NewString(),
		Time:    e.now().UTC(),
		Day:     e.day,
		World:   worldName,
		Kind:    kind,
		Payload: p,
	}
	e.events = append(e.events, ev)
	if e.sink != nil {
		if err := e.sink.Record(ev); err != nil {
			e.log.Printf("story event sink: %v", err)
		}
	}
	return ev
}

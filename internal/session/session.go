// Package session owns one user's application state (worlds, forged
// characters and the story engine) and applies protocol actions to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"manaforge.ai/internal/catalogs"
	"manaforge.ai/internal/forge"
	"manaforge.ai/internal/genai"
	"manaforge.ai/internal/journal"
	"manaforge.ai/internal/lore"
	"manaforge.ai/internal/persistence/docstore"
	"manaforge.ai/internal/protocol"
	"manaforge.ai/internal/story"
	"manaforge.ai/internal/tuning"
	"manaforge.ai/internal/world"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrWorldExists       = errors.New("world already exists")
	ErrWorldNotFound     = errors.New("world not found")
	ErrCharacterNotFound = errors.New("character not found")
	ErrUnknownAction     = errors.New("unknown action")
)

// Rand feeds both the story engine and the character forge.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type Config struct {
	Store    docstore.Store
	Backend  genai.Backend
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs
	Rand     Rand
	Sink     story.EventSink
	Logger   *log.Logger
	Now      func() time.Time
}

type handlerFunc func(ctx context.Context, a protocol.Action) (any, error)

// Session is safe for concurrent use; actions run one at a time.
type Session struct {
	id    string
	store docstore.Store
	cat   *catalogs.Catalogs
	log   *log.Logger
	now   func() time.Time

	lore    *lore.Cache
	journal *journal.Assembler
	story   *story.Engine
	forge   *forge.Generator

	mu         sync.Mutex
	worlds     map[string]*world.World
	characters []forge.Character
	lastForged *forge.Bundle
	stats      Stats
	handlers   map[string]handlerFunc
}

// Stats counts applied actions for the metrics endpoint.
type Stats struct {
	Actions map[string]uint64 `json:"actions"`
	Errors  map[string]uint64 `json:"errors"`
}

func New(cfg Config) *Session {
	s := &Session{
		id:     uuid.NewString(),
		store:  cfg.Store,
		cat:    cfg.Catalogs,
		log:    cfg.Logger,
		now:    cfg.Now,
		worlds: map[string]*world.World{},
		stats:  Stats{Actions: map[string]uint64{}, Errors: map[string]uint64{}},
	}
	if s.log == nil {
		s.log = log.New(io.Discard, "", 0)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cat == nil {
		s.cat = catalogs.Default()
	}
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x73657373))
	}

	s.lore = lore.NewCache(cfg.Backend, lore.WithTemperature(cfg.Tuning.Backend.LoreTemperature), lore.WithLogger(s.log))
	s.journal = journal.NewAssembler(s.lore)
	s.story = story.New(story.Config{
		Backend: cfg.Backend,
		Worlds:  s,
		Tuning:  cfg.Tuning,
		Rand:    rnd,
		Sink:    cfg.Sink,
		Logger:  s.log,
		Now:     s.now,
	})
	s.forge = forge.NewGenerator(cfg.Backend, s.cat, forge.WithRand(rnd), forge.WithNow(s.now), forge.WithLogger(s.log))

	s.handlers = map[string]handlerFunc{
		protocol.ActCreateWorld:    s.createWorld,
		protocol.ActSetActiveWorld: s.setActiveWorld,
		protocol.ActRenameRegion:   s.renameRegion,
		protocol.ActPlaceCharacter: s.placeCharacter,
		protocol.ActAddNPC:         s.addNPC,
		protocol.ActAddQuest:       s.addQuest,
		protocol.ActSetCapital:     s.setCapital,
		protocol.ActAddTrait:       s.addTrait,
		protocol.ActSuggestNPC:     s.suggestNPC,
		protocol.ActSuggestQuest:   s.suggestQuest,
		protocol.ActRefreshLore:    s.refreshLore,
		protocol.ActJournal:        s.journalText,
		protocol.ActForgeCharacter: s.forgeCharacter,
		protocol.ActAdvanceTime:    s.advanceTime,
		protocol.ActContinueStory:  s.continueStory,
		protocol.ActApplyChoice:    s.applyChoice,
		protocol.ActAddNote:        s.addNote,
		protocol.ActStoryState:     s.storyState,
		protocol.ActExport:         s.export,
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Apply runs one action to completion and returns its rendering payload.
func (s *Session) Apply(ctx context.Context, a protocol.Action) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handlers[a.Type]
	if !ok {
		s.stats.Errors[protocol.ErrBadRequest]++
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
	s.stats.Actions[a.Type]++
	out, err := h(ctx, a)
	if err != nil {
		s.stats.Errors[Code(err)]++
		return nil, err
	}
	return out, nil
}

// Code maps an action error onto a protocol error code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, genai.ErrBackendUnavailable):
		return protocol.ErrBackendUnavailable
	case errors.Is(err, story.ErrInvalidTransition):
		return protocol.ErrInvalidTransition
	case errors.Is(err, ErrWorldExists):
		return protocol.ErrConflict
	case errors.Is(err, ErrWorldNotFound), errors.Is(err, ErrCharacterNotFound), errors.Is(err, world.ErrUnknownRegion):
		return protocol.ErrNotFound
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrUnknownAction), errors.Is(err, world.ErrEmptyName),
		errors.Is(err, story.ErrEmptyNote), errors.Is(err, forge.ErrEmptyName),
		errors.Is(err, forge.ErrUnknownRace), errors.Is(err, forge.ErrUnknownGender):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

// Info is the summary sent to clients on connect.
type Info struct {
	ID          string   `json:"id"`
	Worlds      []string `json:"worlds"`
	ActiveWorld string   `json:"active_world,omitempty"`
	Day         int      `json:"day"`
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{ID: s.id, Worlds: s.WorldNames(), ActiveWorld: s.story.ActiveWorld(), Day: s.story.Day()}
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Stats{Actions: map[string]uint64{}, Errors: map[string]uint64{}}
	for k, v := range s.stats.Actions {
		out.Actions[k] = v
	}
	for k, v := range s.stats.Errors {
		out.Errors[k] = v
	}
	return out
}

// WorldNames and World let the story engine see the session's worlds.
// They are only called with mu held.
func (s *Session) WorldNames() []string {
	names := make([]string, 0, len(s.worlds))
	for n := range s.worlds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Session) World(name string) (*world.World, bool) {
	w, ok := s.worlds[name]
	return w, ok
}

func (s *Session) lookup(name string) (*world.World, error) {
	w, ok := s.worlds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrWorldNotFound, name)
	}
	return w, nil
}

func (s *Session) region(a protocol.Action) (*world.World, *world.Region, error) {
	w, err := s.lookup(a.World)
	if err != nil {
		return nil, nil, err
	}
	r, err := w.Region(a.Region)
	if err != nil {
		return nil, nil, err
	}
	return w, r, nil
}

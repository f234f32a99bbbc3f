package session

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"manaforge.ai/internal/forge"
	"manaforge.ai/internal/lore"
	"manaforge.ai/internal/persistence/docstore"
	"manaforge.ai/internal/protocol"
	"manaforge.ai/internal/world"
)

// WorldView is the payload for actions that change a world.
type WorldView struct {
	World  string        `json:"world"`
	Region *world.Region `json:"region,omitempty"`
	Stale  []string      `json:"stale,omitempty"`
}

func view(w *world.World, r *world.Region) WorldView {
	v := WorldView{World: w.Name, Region: r}
	for _, st := range lore.Stale(w) {
		v.Stale = append(v.Stale, st.Key)
	}
	return v
}

func (s *Session) createWorld(ctx context.Context, a protocol.Action) (any, error) {
	w, err := world.New(a.World, s.now())
	if err != nil {
		return nil, err
	}
	if _, ok := s.worlds[w.Name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrWorldExists, w.Name)
	}
	doc, err := docstore.CleanName(worldDoc(w.Name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	for name := range s.worlds {
		if other, _ := docstore.CleanName(worldDoc(name)); other == doc {
			return nil, fmt.Errorf("%w: %q is stored under the same name as %q", ErrWorldExists, w.Name, name)
		}
	}
	if err := s.saveWorld(ctx, w); err != nil {
		return nil, err
	}
	s.worlds[w.Name] = w
	s.log.Printf("world created: %s", w.Name)
	return view(w, nil), nil
}

func (s *Session) setActiveWorld(ctx context.Context, a protocol.Action) (any, error) {
	name := strings.TrimSpace(a.World)
	if name != "" {
		if _, err := s.lookup(name); err != nil {
			return nil, err
		}
	}
	prev := s.story.ActiveWorld()
	s.story.SetActiveWorld(name)
	if err := s.saveTranscript(ctx); err != nil {
		s.story.SetActiveWorld(prev)
		return nil, err
	}
	return map[string]string{"active_world": name}, nil
}

// mutateRegion applies fn to the addressed region and saves the world. The
// region is restored if the save fails.
func (s *Session) mutateRegion(ctx context.Context, a protocol.Action, fn func(w *world.World, r *world.Region) error) (any, error) {
	w, r, err := s.region(a)
	if err != nil {
		return nil, err
	}
	before := cloneWorld(w)
	if err := fn(w, r); err != nil {
		return nil, err
	}
	if err := s.saveWorld(ctx, w); err != nil {
		*w = *before
		return nil, err
	}
	return view(w, r), nil
}

func (s *Session) renameRegion(ctx context.Context, a protocol.Action) (any, error) {
	return s.mutateRegion(ctx, a, func(_ *world.World, r *world.Region) error {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return fmt.Errorf("%w: region name is empty", ErrBadRequest)
		}
		r.Name = name
		return nil
	})
}

func (s *Session) placeCharacter(ctx context.Context, a protocol.Action) (any, error) {
	summary, err := s.characterSummary(a)
	if err != nil {
		return nil, err
	}
	return s.mutateRegion(ctx, a, func(_ *world.World, r *world.Region) error {
		r.Characters = append(r.Characters, summary)
		return nil
	})
}

func (s *Session) characterSummary(a protocol.Action) (world.CharacterSummary, error) {
	if a.CharacterID != "" {
		c, err := s.character(a.CharacterID)
		if err != nil {
			return world.CharacterSummary{}, err
		}
		return c.Summary(), nil
	}
	c := world.CharacterSummary{
		Name:  strings.TrimSpace(a.Name),
		Race:  strings.TrimSpace(a.Race),
		Class: strings.TrimSpace(a.Class),
	}
	if c.Name == "" || c.Race == "" || c.Class == "" {
		return c, fmt.Errorf("%w: character needs character_id or name, race and class", ErrBadRequest)
	}
	return c, nil
}

func (s *Session) addNPC(ctx context.Context, a protocol.Action) (any, error) {
	return s.mutateRegion(ctx, a, func(_ *world.World, r *world.Region) error {
		n := world.NPC{Name: strings.TrimSpace(a.Name), Role: strings.TrimSpace(a.Role)}
		if n.Name == "" {
			n = s.forge.NPC().Summary()
		} else if n.Role == "" {
			return fmt.Errorf("%w: npc role is empty", ErrBadRequest)
		}
		r.NPCs = append(r.NPCs, n)
		return nil
	})
}

func (s *Session) addQuest(ctx context.Context, a protocol.Action) (any, error) {
	return s.mutateRegion(ctx, a, func(_ *world.World, r *world.Region) error {
		q := world.Quest{Title: strings.TrimSpace(a.Title), Description: strings.TrimSpace(a.Description)}
		if q.Title == "" {
			q = s.forge.Quest().Summary()
		}
		r.Quests = append(r.Quests, q)
		return nil
	})
}

// setCapital marks one region as the capital; the previous capital, if
// any, loses the flag.
func (s *Session) setCapital(ctx context.Context, a protocol.Action) (any, error) {
	return s.mutateRegion(ctx, a, func(w *world.World, r *world.Region) error {
		capital := a.Capital == nil || *a.Capital
		if capital {
			for _, other := range w.Ordered() {
				other.Capital = false
			}
		}
		r.Capital = capital
		return nil
	})
}

func (s *Session) addTrait(ctx context.Context, a protocol.Action) (any, error) {
	return s.mutateRegion(ctx, a, func(_ *world.World, r *world.Region) error {
		trait := strings.TrimSpace(a.Trait)
		if trait == "" {
			return fmt.Errorf("%w: trait is empty", ErrBadRequest)
		}
		if !slices.Contains(r.Traits, trait) {
			r.Traits = append(r.Traits, trait)
		}
		return nil
	})
}

func (s *Session) suggestNPC(ctx context.Context, a protocol.Action) (any, error) {
	w, r, err := s.region(a)
	if err != nil {
		return nil, err
	}
	n, err := s.forge.SuggestNPC(ctx, w.Name, r)
	if err != nil {
		return nil, err
	}
	out, err := s.mutateRegion(ctx, a, func(_ *world.World, r *world.Region) error {
		r.NPCs = append(r.NPCs, n.Summary())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return struct {
		WorldView
		NPC forge.NPC `json:"npc"`
	}{out.(WorldView), n}, nil
}

func (s *Session) suggestQuest(ctx context.Context, a protocol.Action) (any, error) {
	w, r, err := s.region(a)
	if err != nil {
		return nil, err
	}
	q, err := s.forge.SuggestQuest(ctx, w.Name, r)
	if err != nil {
		return nil, err
	}
	out, err := s.mutateRegion(ctx, a, func(_ *world.World, r *world.Region) error {
		r.Quests = append(r.Quests, q.Summary())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return struct {
		WorldView
		Quest forge.Quest `json:"quest"`
	}{out.(WorldView), q}, nil
}

func (s *Session) refreshLore(ctx context.Context, a protocol.Action) (any, error) {
	w, err := s.lookup(a.World)
	if err != nil {
		return nil, err
	}
	res, err := s.lore.Refresh(ctx, w)
	if err != nil {
		return nil, err
	}
	if len(res.Updated) > 0 {
		if err := s.saveWorld(ctx, w); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// JournalView carries a rendered world journal.
type JournalView struct {
	World    string `json:"world"`
	Markdown string `json:"markdown"`
}

func (s *Session) journalText(ctx context.Context, a protocol.Action) (any, error) {
	w, err := s.lookup(a.World)
	if err != nil {
		return nil, err
	}
	md, err := s.assemble(ctx, w)
	if err != nil {
		return nil, err
	}
	return JournalView{World: w.Name, Markdown: md}, nil
}

// assemble renders the journal and persists any lore it refreshed.
func (s *Session) assemble(ctx context.Context, w *world.World) (string, error) {
	stale := len(lore.Stale(w)) > 0
	md, err := s.journal.Assemble(ctx, w)
	if err != nil {
		return "", err
	}
	if stale {
		if err := s.saveWorld(ctx, w); err != nil {
			return "", err
		}
	}
	return md, nil
}

func cloneWorld(w *world.World) *world.World {
	c := *w
	c.Regions = make(map[string]*world.Region, len(w.Regions))
	for k, r := range w.Regions {
		rc := *r
		rc.Characters = slices.Clone(r.Characters)
		rc.NPCs = slices.Clone(r.NPCs)
		rc.Quests = slices.Clone(r.Quests)
		rc.Traits = slices.Clone(r.Traits)
		c.Regions[k] = &rc
	}
	return &c
}

package session

import (
	"context"
	"fmt"
	"strings"

	"manaforge.ai/internal/forge"
	"manaforge.ai/internal/persistence/snapshot"
	"manaforge.ai/internal/story"
	"manaforge.ai/internal/world"
)

const (
	worldDocPrefix = "world_"
	transcriptDoc  = "story_transcript"
	charactersDoc  = "characters"
)

func worldDoc(name string) string { return worldDocPrefix + name }

// Load restores worlds, the transcript and forged characters from the
// store. Missing documents leave the session empty.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	for _, info := range infos {
		if !strings.HasPrefix(info.Name, worldDocPrefix) {
			continue
		}
		var w world.World
		found, err := s.store.Load(ctx, info.Name, &w)
		if err != nil {
			return fmt.Errorf("load %s: %w", info.Name, err)
		}
		if !found || strings.TrimSpace(w.Name) == "" {
			s.log.Printf("skipping unreadable world document %s", info.Name)
			continue
		}
		w.Normalize()
		s.worlds[w.Name] = &w
	}

	var st story.State
	found, err := s.store.Load(ctx, transcriptDoc, &st)
	if err != nil {
		return fmt.Errorf("load %s: %w", transcriptDoc, err)
	}
	if !found {
		st = story.State{}
	}
	if _, ok := s.worlds[st.ActiveWorld]; !ok {
		st.ActiveWorld = ""
	}
	s.story.Restore(st)

	var chars []forge.Character
	found, err = s.store.Load(ctx, charactersDoc, &chars)
	if err != nil {
		return fmt.Errorf("load %s: %w", charactersDoc, err)
	}
	if !found {
		chars = nil
	}
	s.characters = chars

	s.log.Printf("session loaded: worlds=%d chunks=%d characters=%d day=%d",
		len(s.worlds), len(st.Chunks), len(s.characters), st.Day)
	return nil
}

func (s *Session) saveWorld(ctx context.Context, w *world.World) error {
	if err := s.store.Save(ctx, worldDoc(w.Name), w); err != nil {
		return fmt.Errorf("save world %s: %w", w.Name, err)
	}
	return nil
}

func (s *Session) saveTranscript(ctx context.Context) error {
	if err := s.store.Save(ctx, transcriptDoc, s.story.State()); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (s *Session) saveCharacters(ctx context.Context) error {
	if err := s.store.Save(ctx, charactersDoc, s.characters); err != nil {
		return fmt.Errorf("save characters: %w", err)
	}
	return nil
}

// Snapshot captures every stored document between two actions.
func (s *Session) Snapshot(ctx context.Context) (snapshot.SnapshotV1, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.Capture(ctx, s.store, s.now())
}

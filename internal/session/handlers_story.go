package session

import (
	"bytes"
	"context"
	"fmt"

	"manaforge.ai/internal/forge"
	"manaforge.ai/internal/journal"
	"manaforge.ai/internal/persistence/archive"
	"manaforge.ai/internal/protocol"
	"manaforge.ai/internal/story"
)

// MaxAdvanceDays caps a single ADVANCE_TIME request.
const MaxAdvanceDays = 365

func (s *Session) forgeCharacter(ctx context.Context, a protocol.Action) (any, error) {
	b, err := s.forge.Forge(ctx, a.Name, a.Gender, a.Race)
	if err != nil {
		return nil, err
	}
	s.characters = append(s.characters, b.Character)
	if err := s.saveCharacters(ctx); err != nil {
		s.characters = s.characters[:len(s.characters)-1]
		return nil, err
	}
	s.lastForged = &b
	s.log.Printf("character forged: %s (%s %s)", b.Character.Name, b.Character.Race, b.Character.Class)
	return b, nil
}

// StoryView is the payload of clock and transcript actions.
type StoryView struct {
	Day     int                  `json:"day"`
	Mood    story.Mood           `json:"mood"`
	Active  string               `json:"active_world,omitempty"`
	Events  []story.Event        `json:"events,omitempty"`
	Chunk   *story.Chunk         `json:"chunk,omitempty"`
	Pending *story.PendingChoice `json:"pending,omitempty"`
}

func (s *Session) storyView() StoryView {
	return StoryView{
		Day:     s.story.Day(),
		Mood:    s.story.Mood(),
		Active:  s.story.ActiveWorld(),
		Pending: s.story.Pending(),
	}
}

func (s *Session) advanceTime(ctx context.Context, a protocol.Action) (any, error) {
	days := a.Days
	if days == 0 {
		days = 1
	}
	if days < 0 || days > MaxAdvanceDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrBadRequest, MaxAdvanceDays)
	}
	cp := s.story.Checkpoint()
	events := s.story.AdvanceTime(days)
	if err := s.commitStory(ctx, cp); err != nil {
		return nil, err
	}
	v := s.storyView()
	v.Events = events
	return v, nil
}

func (s *Session) continueStory(ctx context.Context, _ protocol.Action) (any, error) {
	cp := s.story.Checkpoint()
	chunk, _, err := s.story.ContinueStory(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.commitStory(ctx, cp); err != nil {
		return nil, err
	}
	v := s.storyView()
	v.Chunk = &chunk
	return v, nil
}

func (s *Session) applyChoice(ctx context.Context, a protocol.Action) (any, error) {
	cp := s.story.Checkpoint()
	chunk, ev, err := s.story.ApplyChoice(ctx, a.Option)
	if err != nil {
		return nil, err
	}
	if err := s.commitStory(ctx, cp); err != nil {
		return nil, err
	}
	v := s.storyView()
	v.Chunk = &chunk
	v.Events = []story.Event{ev}
	return v, nil
}

func (s *Session) addNote(ctx context.Context, a protocol.Action) (any, error) {
	cp := s.story.Checkpoint()
	chunk, err := s.story.AddNote(a.Text)
	if err != nil {
		return nil, err
	}
	if err := s.commitStory(ctx, cp); err != nil {
		return nil, err
	}
	v := s.storyView()
	v.Chunk = &chunk
	return v, nil
}

// commitStory persists the transcript, rolling the engine back to cp when
// the save fails.
func (s *Session) commitStory(ctx context.Context, cp story.Checkpoint) error {
	if err := s.saveTranscript(ctx); err != nil {
		s.story.Rollback(cp)
		return err
	}
	return nil
}

// TranscriptView is the full story state.
type TranscriptView struct {
	StoryView
	Chunks     []story.Chunk `json:"chunks"`
	Transcript string        `json:"transcript"`
}

func (s *Session) storyState(_ context.Context, _ protocol.Action) (any, error) {
	v := s.storyView()
	v.Events = s.story.Events()
	chunks := s.story.Chunks()
	return TranscriptView{StoryView: v, Chunks: chunks, Transcript: story.RenderTranscript(chunks)}, nil
}

// ExportView carries a ZIP bundle.
type ExportView struct {
	FileName string `json:"file_name"`
	Data     []byte `json:"data"`
}

// export bundles a character (the one named by CharacterID, else the last
// forged one), the journal of the given world and the story transcript.
func (s *Session) export(ctx context.Context, a protocol.Action) (any, error) {
	var b archive.Bundle
	switch {
	case a.CharacterID != "":
		c, err := s.character(a.CharacterID)
		if err != nil {
			return nil, err
		}
		b.Character = &c
	case s.lastForged != nil:
		c, n, q := s.lastForged.Character, s.lastForged.NPC, s.lastForged.Quest
		b.Character, b.NPC, b.Quest = &c, &n, &q
	}

	if a.World != "" {
		w, err := s.lookup(a.World)
		if err != nil {
			return nil, err
		}
		if b.Journal, err = s.assemble(ctx, w); err != nil {
			return nil, err
		}
		if b.JournalHTML, err = journal.RenderHTML(b.Journal); err != nil {
			return nil, err
		}
	}
	if chunks := s.story.Chunks(); len(chunks) > 0 {
		b.Transcript = story.RenderTranscript(chunks)
	}

	var buf bytes.Buffer
	if err := archive.Write(&buf, b, s.now()); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return ExportView{FileName: archive.FileName(b), Data: buf.Bytes()}, nil
}

func (s *Session) character(id string) (forge.Character, error) {
	for _, c := range s.characters {
		if c.ID == id {
			return c, nil
		}
	}
	return forge.Character{}, fmt.Errorf("%w: %q", ErrCharacterNotFound, id)
}

package story

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"manaforge.ai/internal/genai"
	"manaforge.ai/internal/genai/parse"
)

const (
	narratorPrompt = "You are the narrator of an ongoing fantasy story. Continue it in one or two vivid paragraphs, " +
		"staying consistent with recent events."
	choicePrompt = "You design player choices for a fantasy story. Offer exactly three short, actionable options."
	consequencePrompt = "You are the narrator of an ongoing fantasy story. Describe the immediate consequence of " +
		"the player's choice in a short paragraph."

	fallbackChoicePrompt = "What do you do next?"
	unboundWorld         = "unbound"
)

// ContinueStory asks the backend for the next passage and a set of
// choices, then waits for ApplyChoice. Nothing is appended unless both
// backend calls succeed.
func (e *Engine) ContinueStory(ctx context.Context) (Chunk, PendingChoice, error) {
	if e.pending != nil {
		return Chunk{}, PendingChoice{}, ErrChoicePending
	}

	opts := genai.Options{Temperature: genai.Temp(e.tun.Backend.StoryTemperature)}
	text, err := e.backend.Complete(ctx, []genai.Message{
		genai.System(narratorPrompt),
		genai.User(e.contextPrompt()),
	}, opts)
	if err != nil {
		return Chunk{}, PendingChoice{}, fmt.Errorf("continue story: %w", err)
	}
	text = strings.TrimSpace(text)
	chunk := e.newChunk(text, TagContinue)

	raw, err := e.backend.Complete(ctx, []genai.Message{
		genai.System(choicePrompt),
		genai.User("Story so far:\n" + text + "\n\n" +
			`Respond with JSON only: {"prompt":"<question to the player>","options":["<a>","<b>","<c>"]}`),
	}, genai.Options{Temperature: genai.Temp(e.tun.Backend.ChoiceTemperature)})
	if err != nil {
		return Chunk{}, PendingChoice{}, fmt.Errorf("continue story choices: %w", err)
	}

	pc := PendingChoice{Context: text}
	var parsed struct {
		Prompt  string   `json:"prompt"`
		Options []string `json:"options"`
	}
	perr := parse.Strict(raw, parse.Choices, &parsed)
	if perr == nil && !distinct(parsed.Options) {
		perr = fmt.Errorf("%w: blank or repeated options", parse.ErrMalformed)
	}
	if perr != nil {
		e.log.Printf("story choices: %v; using generic options", perr)
		pc.Prompt = fallbackChoicePrompt
		pc.Options = slices.Clone(e.tun.Story.FallbackOptions)
	} else {
		pc.Prompt = strings.TrimSpace(parsed.Prompt)
		for _, o := range parsed.Options {
			pc.Options = append(pc.Options, strings.TrimSpace(o))
		}
	}

	e.chunks = append(e.chunks, chunk)
	e.pending = &pc
	return chunk, pc, nil
}

// ApplyChoice resolves the pending choice with one of its options.
func (e *Engine) ApplyChoice(ctx context.Context, option string) (Chunk, Event, error) {
	if e.pending == nil {
		return Chunk{}, Event{}, ErrNoPendingChoice
	}
	option = strings.TrimSpace(option)
	if !e.pending.has(option) {
		return Chunk{}, Event{}, fmt.Errorf("%w: %q", ErrUnknownOption, option)
	}

	consequence, err := e.backend.Complete(ctx, []genai.Message{
		genai.System(consequencePrompt),
		genai.User(fmt.Sprintf("Story so far:\n%s\n\n%s\nThe player chose: %s", e.pending.Context, e.pending.Prompt, option)),
	}, genai.Options{Temperature: genai.Temp(e.tun.Backend.StoryTemperature)})
	if err != nil {
		return Chunk{}, Event{}, fmt.Errorf("apply choice: %w", err)
	}

	chunk := e.newChunk(fmt.Sprintf("Choice: %s\n\n%s", option, strings.TrimSpace(consequence)), TagChoice)
	e.chunks = append(e.chunks, chunk)
	ev := e.appendEvent(e.activeWorld, KindChoice, Payload{Note: option})
	e.pending = nil
	return chunk, ev, nil
}

// AddNote appends player-written text to the transcript.
func (e *Engine) AddNote(text string) (Chunk, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Chunk{}, ErrEmptyNote
	}
	c := e.newChunk(text, TagNote)
	e.chunks = append(e.chunks, c)
	return c, nil
}

func (e *Engine) contextPrompt() string {
	var sb strings.Builder
	name := e.activeWorld
	if name == "" {
		name = unboundWorld
	}
	fmt.Fprintf(&sb, "World: %s\nDay: %d\nMood: %s\n", name, e.day, e.mood)

	sb.WriteString("Recent events:\n")
	recent := e.events
	if n := e.tun.Story.RecentEvents; len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	if len(recent) == 0 {
		sb.WriteString("- none\n")
	}
	for _, ev := range recent {
		fmt.Fprintf(&sb, "- day %d, %s: %s\n", ev.Day, ev.Kind, describe(ev.Payload))
	}

	chars := e.characterSample()
	if len(chars) == 0 {
		sb.WriteString("Characters: none yet\n")
	} else {
		fmt.Fprintf(&sb, "Characters: %s\n", strings.Join(chars, ", "))
	}
	return sb.String()
}

// characterSample lists known character names across worlds, sorted and
// capped at the configured sample size.
func (e *Engine) characterSample() []string {
	if e.worlds == nil {
		return nil
	}
	seen := map[string]bool{}
	var names []string
	for _, wn := range e.worlds.WorldNames() {
		w, ok := e.worlds.World(wn)
		if !ok {
			continue
		}
		for _, n := range w.CharacterNames() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	if n := e.tun.Story.CharacterSample; len(names) > n {
		names = names[:n]
	}
	return names
}

func describe(p Payload) string {
	var parts []string
	if p.Region != "" {
		parts = append(parts, "region "+p.Region)
	}
	if p.NPC != "" {
		parts = append(parts, "npc "+p.NPC)
	}
	if p.Quest != "" {
		parts = append(parts, "quest "+p.Quest)
	}
	if p.Note != "" {
		parts = append(parts, p.Note)
	}
	return strings.Join(parts, "; ")
}

func distinct(options []string) bool {
	seen := map[string]bool{}
	for _, o := range options {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			return false
		}
		seen[o] = true
	}
	return len(options) >= 2
}

// RenderTranscript formats chunks as markdown, oldest first.
func RenderTranscript(chunks []Chunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		blocks = append(blocks, fmt.Sprintf("**Day %d** _%s_\n\n%s", c.Day, strings.Join(c.Tags, ", "), c.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// Package forge generates character sheets, backstories, portraits, NPCs
// and quests.
package forge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"manaforge.ai/internal/catalogs"
	"manaforge.ai/internal/genai"
	"manaforge.ai/internal/genai/parse"
	"manaforge.ai/internal/world"
)

const PortraitSize = "1024x1024"

var (
	ErrEmptyName     = errors.New("character name is empty")
	ErrUnknownRace   = errors.New("unknown race")
	ErrUnknownGender = errors.New("unknown gender")
)

type Character struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Gender       string    `json:"gender"`
	Race         string    `json:"race"`
	Class        string    `json:"class"`
	Background   string    `json:"background"`
	History      string    `json:"history,omitempty"`
	PortraitURL  string    `json:"portrait_url,omitempty"`
	PortraitData []byte    `json:"portrait_data,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (c Character) Summary() world.CharacterSummary {
	return world.CharacterSummary{Name: c.Name, Race: c.Race, Class: c.Class}
}

type NPC struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	Backstory string `json:"backstory,omitempty"`
}

func (n NPC) Summary() world.NPC { return world.NPC{Name: n.Name, Role: n.Role} }

type Quest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (q Quest) Summary() world.Quest { return world.Quest{Title: q.Title, Description: q.Description} }

// Bundle is everything one Forge run produces.
type Bundle struct {
	Character Character `json:"character"`
	NPC       NPC       `json:"npc"`
	Quest     Quest     `json:"quest"`
}

type Rand interface {
	IntN(n int) int
}

type Generator struct {
	backend genai.Backend
	cat     *catalogs.Catalogs
	rnd     Rand
	log     *log.Logger
	now     func() time.Time
	title   cases.Caser
}

type Option func(*Generator)

func WithRand(r Rand) Option              { return func(g *Generator) { g.rnd = r } }
func WithNow(now func() time.Time) Option { return func(g *Generator) { g.now = now } }
func WithLogger(l *log.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

func NewGenerator(backend genai.Backend, cat *catalogs.Catalogs, opts ...Option) *Generator {
	g := &Generator{
		backend: backend,
		cat:     cat,
		rnd:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x666f7267)),
		log:     log.New(io.Discard, "", 0),
		now:     time.Now,
		title:   cases.Title(language.English),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Generator) pick(list []string) string { return list[g.rnd.IntN(len(list))] }

// Character rolls a class and background for a named character.
func (g *Generator) Character(name, gender, race string) (Character, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return Character{}, ErrEmptyName
	}
	if !g.cat.HasGender(gender) {
		return Character{}, fmt.Errorf("%w: %q", ErrUnknownGender, gender)
	}
	if !g.cat.HasRace(race) {
		return Character{}, fmt.Errorf("%w: %q", ErrUnknownRace, race)
	}
	return Character{
		ID:         uuid.NewString(),
		Name:       g.title.String(name),
		Gender:     gender,
		Race:       race,
		Class:      g.pick(g.cat.Classes),
		Background: g.pick(g.cat.Backgrounds),
		CreatedAt:  g.now().UTC(),
	}, nil
}

func (g *Generator) History(ctx context.Context, c Character) (string, error) {
	prompt := fmt.Sprintf("Create a short backstory for a %s %s named %s. They come from a %s background. "+
		"The story should include their motivations, key life events, and an intriguing mystery.",
		c.Race, c.Class, c.Name, c.Background)
	out, err := g.backend.Complete(ctx, []genai.Message{
		genai.System("You are a creative storyteller crafting fantasy character backstories."),
		genai.User(prompt),
	}, genai.Options{})
	if err != nil {
		return "", fmt.Errorf("history for %s: %w", c.Name, err)
	}
	return strings.TrimSpace(out), nil
}

func (g *Generator) Portrait(ctx context.Context, c Character) (genai.ImageRef, error) {
	prompt := fmt.Sprintf("A full-body portrait of a %s %s %s wearing attire fitting their %s background. "+
		"The character should be standing, in a heroic pose, with detailed armor/clothing and weapons appropriate for their class.",
		c.Gender, c.Race, c.Class, c.Background)
	img, err := g.backend.Image(ctx, prompt, PortraitSize)
	if err != nil {
		return genai.ImageRef{}, fmt.Errorf("portrait for %s: %w", c.Name, err)
	}
	return img, nil
}

func (g *Generator) NPC() NPC {
	name, role := g.pick(g.cat.NPCNames), g.pick(g.cat.NPCRoles)
	return NPC{Name: name, Role: role, Backstory: g.cat.NPCBackstoryFor(name, role)}
}

func (g *Generator) Quest() Quest {
	title := g.pick(g.cat.QuestTitles)
	return Quest{Title: title, Description: g.cat.QuestDescriptionFor(title)}
}

// Forge runs the whole pipeline. A failed history aborts; a failed
// portrait leaves the portrait empty.
func (g *Generator) Forge(ctx context.Context, name, gender, race string) (Bundle, error) {
	c, err := g.Character(name, gender, race)
	if err != nil {
		return Bundle{}, err
	}
	if c.History, err = g.History(ctx, c); err != nil {
		return Bundle{}, err
	}
	img, err := g.Portrait(ctx, c)
	if err != nil {
		g.log.Printf("forge %s: %v", c.Name, err)
	} else {
		c.PortraitURL, c.PortraitData = img.URL, img.Data
	}
	return Bundle{Character: c, NPC: g.NPC(), Quest: g.Quest()}, nil
}

var (
	placeholderNPC   = NPC{Name: "Unnamed Stranger", Role: "wanderer", Backstory: "Little is known about this traveler."}
	placeholderQuest = Quest{Title: "An Unwritten Errand", Description: "Someone in the region needs help; the details are still unclear."}
)

// SuggestNPC asks the backend for an NPC that fits r. A response that
// fails strict decoding yields a placeholder.
func (g *Generator) SuggestNPC(ctx context.Context, worldName string, r *world.Region) (NPC, error) {
	raw, err := g.backend.Complete(ctx, []genai.Message{
		genai.System("You create memorable NPCs for a fantasy campaign."),
		genai.User(regionBrief(worldName, r) + "\nSuggest one NPC who lives here. " +
			`Respond with JSON only: {"name":"..","role":"..","backstory":".."}`),
	}, genai.Options{})
	if err != nil {
		return NPC{}, fmt.Errorf("suggest npc for %s: %w", r.Key, err)
	}
	var n NPC
	if perr := parse.Strict(raw, parse.NPC, &n); perr != nil {
		g.log.Printf("suggest npc for %s: %v; using placeholder", r.Key, perr)
		return placeholderNPC, nil
	}
	n.Name, n.Role, n.Backstory = strings.TrimSpace(n.Name), strings.TrimSpace(n.Role), strings.TrimSpace(n.Backstory)
	return n, nil
}

func (g *Generator) SuggestQuest(ctx context.Context, worldName string, r *world.Region) (Quest, error) {
	raw, err := g.backend.Complete(ctx, []genai.Message{
		genai.System("You write quest hooks for a fantasy campaign."),
		genai.User(regionBrief(worldName, r) + "\nSuggest one quest that starts here. " +
			`Respond with JSON only: {"title":"..","description":".."}`),
	}, genai.Options{})
	if err != nil {
		return Quest{}, fmt.Errorf("suggest quest for %s: %w", r.Key, err)
	}
	var q Quest
	if perr := parse.Strict(raw, parse.Quest, &q); perr != nil {
		g.log.Printf("suggest quest for %s: %v; using placeholder", r.Key, perr)
		return placeholderQuest, nil
	}
	q.Title, q.Description = strings.TrimSpace(q.Title), strings.TrimSpace(q.Description)
	return q, nil
}

func regionBrief(worldName string, r *world.Region) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "World: %s\nRegion: %s (%s)\n", worldName, r.Name, r.Key)
	if r.Capital {
		sb.WriteString("This region is the capital.\n")
	}
	if len(r.Traits) > 0 {
		fmt.Fprintf(&sb, "Traits: %s\n", strings.Join(r.Traits, ", "))
	}
	if len(r.NPCs) > 0 {
		names := make([]string, 0, len(r.NPCs))
		for _, n := range r.NPCs {
			names = append(names, n.String())
		}
		fmt.Fprintf(&sb, "Existing NPCs: %s\n", strings.Join(names, ", "))
	}
	if r.Lore != "" && r.LoreValid() {
		fmt.Fprintf(&sb, "Lore: %s\n", r.Lore)
	}
	return sb.String()
}

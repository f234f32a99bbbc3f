package journal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"manaforge.ai/internal/genai"
	"manaforge.ai/internal/lore"
	"manaforge.ai/internal/world"
)

type countingBackend struct {
	reply string
	calls int
}

func (b *countingBackend) Complete(ctx context.Context, messages []genai.Message, opts genai.Options) (string, error) {
	b.calls++
	return b.reply, nil
}

func (b *countingBackend) Image(ctx context.Context, prompt, size string) (genai.ImageRef, error) {
	return genai.ImageRef{}, errors.New("not used")
}

func eldemoor(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New("Eldemoor", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	r, _ := w.Region("1-1")
	r.Name = "Ashgate"
	r.Capital = true
	r.Traits = []string{"walled city"}
	r.Characters = []world.CharacterSummary{{Name: "Mira", Race: "Elf", Class: "Ranger"}}
	r.NPCs = []world.NPC{{Name: "Kaelen", Role: "guard"}}
	r.Quests = []world.Quest{{Title: "Rescue the Princess", Description: "Quickly."}}
	return w
}

func TestAssemble_DeterministicAndCached(t *testing.T) {
	w := eldemoor(t)
	be := &countingBackend{reply: `{"regions":[{"key":"1-1","lore":"Ashgate never sleeps."}]}`}
	a := NewAssembler(lore.NewCache(be))

	first, err := a.Assemble(context.Background(), w)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	second, err := a.Assemble(context.Background(), w)
	if err != nil {
		t.Fatalf("Assemble again: %v", err)
	}
	if first != second {
		t.Fatalf("journal not deterministic:\n%s\n---\n%s", first, second)
	}
	if be.calls != 1 {
		t.Fatalf("backend calls: got %d want 1", be.calls)
	}
}

func TestAssemble_RegionBlock(t *testing.T) {
	w := eldemoor(t)
	be := &countingBackend{reply: `{"regions":[{"key":"1-1","lore":"Ashgate never sleeps."}]}`}
	out, err := NewAssembler(lore.NewCache(be)).Assemble(context.Background(), w)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := "### Ashgate\n\n**Capital Region**\n\nSpecial Traits:\n- walled city\n\nCharacters:\n- Mira (Elf Ranger)\n\nNPCs:\n- Kaelen (guard)\n\nQuests:\n- Rescue the Princess\n\nAshgate never sleeps.\n\n### Region 1-2"
	if !strings.HasPrefix(out, want) {
		t.Fatalf("unexpected journal head:\n%s", out[:min(len(out), len(want)+40)])
	}
	if got := strings.Count(out, "### "); got != world.GridSize*world.GridSize {
		t.Fatalf("region blocks: got %d", got)
	}
	if !strings.HasSuffix(out, "### Region 5-5") {
		t.Fatalf("last block should be 5-5")
	}
}

func TestRender_HidesStaleLore(t *testing.T) {
	w := eldemoor(t)
	r, _ := w.Region("1-1")
	r.Lore = "Outdated."
	r.Signature = "not-the-current-one"
	if strings.Contains(Render(w), "Outdated.") {
		t.Fatalf("stale lore must not be rendered")
	}
}

func TestRenderHTML_ScrubsUnsafeLinks(t *testing.T) {
	html, err := RenderHTML("### Ashgate\n\n[click](javascript:alert(1))")
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.Contains(html, "<h3>Ashgate</h3>") {
		t.Fatalf("missing heading: %s", html)
	}
	if strings.Contains(html, "javascript:") {
		t.Fatalf("unsafe href survived: %s", html)
	}
}

package lore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"manaforge.ai/internal/genai"
	"manaforge.ai/internal/world"
)

type scriptedBackend struct {
	replies []string
	err     error
	calls   int
	last    []genai.Message
}

func (b *scriptedBackend) Complete(ctx context.Context, messages []genai.Message, opts genai.Options) (string, error) {
	b.calls++
	b.last = messages
	if b.err != nil {
		return "", b.err
	}
	i := b.calls - 1
	if i >= len(b.replies) {
		i = len(b.replies) - 1
	}
	return b.replies[i], nil
}

func (b *scriptedBackend) Image(ctx context.Context, prompt, size string) (genai.ImageRef, error) {
	return genai.ImageRef{}, errors.New("not used")
}

func newWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New("Eldemoor", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func region(t *testing.T, w *world.World, key string) *world.Region {
	t.Helper()
	r, err := w.Region(key)
	if err != nil {
		t.Fatalf("region %s: %v", key, err)
	}
	return r
}

func TestRefresh_SelectiveInvalidation(t *testing.T) {
	w := newWorld(t)
	a := region(t, w, "1-1")
	b := region(t, w, "1-2")
	b.Quests = []world.Quest{{Title: "Retrieve the Lost Artifact", Description: "It was stolen."}}

	be := &scriptedBackend{replies: []string{`{"regions":[{"key":"1-2","lore":"Ash drifts over the barrows."}]}`}}
	res, err := NewCache(be).Refresh(context.Background(), w)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if be.calls != 1 {
		t.Fatalf("backend calls: got %d want 1", be.calls)
	}
	if len(res.Requested) != 1 || res.Requested[0] != "1-2" {
		t.Fatalf("requested: %v", res.Requested)
	}
	prompt := be.last[len(be.last)-1].Content
	if !strings.Contains(prompt, `"key": "1-2"`) || strings.Contains(prompt, `"key": "1-1"`) {
		t.Fatalf("batch payload should cover only 1-2:\n%s", prompt)
	}
	if a.Lore != "" || a.Signature != "" {
		t.Fatalf("empty region touched: %+v", a)
	}
	if b.Lore != "Ash drifts over the barrows." || !b.LoreValid() {
		t.Fatalf("region 1-2 not refreshed: %+v", b)
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	w := newWorld(t)
	r := region(t, w, "3-3")
	r.NPCs = []world.NPC{{Name: "Kaelen", Role: "guard"}}
	s := region(t, w, "4-1")
	s.Characters = []world.CharacterSummary{{Name: "Mira", Race: "Elf", Class: "Ranger"}}

	be := &scriptedBackend{replies: []string{`{"regions":[{"key":"3-3","lore":"Gate lore."},{"key":"4-1","lore":"Forest lore."}]}`}}
	c := NewCache(be)
	if _, err := c.Refresh(context.Background(), w); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	before := map[string][2]string{}
	for _, reg := range w.Ordered() {
		before[reg.Key] = [2]string{reg.Lore, reg.Signature}
	}

	res, err := c.Refresh(context.Background(), w)
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if be.calls != 1 || len(res.Requested) != 0 {
		t.Fatalf("second refresh should be a no-op: calls=%d requested=%v", be.calls, res.Requested)
	}
	for _, reg := range w.Ordered() {
		if got := [2]string{reg.Lore, reg.Signature}; got != before[reg.Key] {
			t.Fatalf("region %s changed on idle refresh: %v -> %v", reg.Key, before[reg.Key], got)
		}
	}
}

func TestRefresh_PartialResponseKeepsRegionStale(t *testing.T) {
	w := newWorld(t)
	a := region(t, w, "2-2")
	a.NPCs = []world.NPC{{Name: "Talia", Role: "bard"}}
	b := region(t, w, "2-3")
	b.Quests = []world.Quest{{Title: "Rescue the Princess"}}
	b.Lore = "Older lore."
	b.Signature = "previous-signature"

	be := &scriptedBackend{replies: []string{`{"regions":[{"key":"2-2","lore":"Songs echo here."}]}`}}
	c := NewCache(be)
	res, err := c.Refresh(context.Background(), w)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(res.Updated) != 1 || res.Updated[0] != "2-2" {
		t.Fatalf("updated: %v", res.Updated)
	}
	if b.Lore != "Older lore." || b.Signature != "previous-signature" {
		t.Fatalf("omitted region must keep prior lore and signature: %+v", b)
	}
	if !IsStale(b) {
		t.Fatalf("omitted region should remain stale")
	}

	if _, err := c.Refresh(context.Background(), w); err != nil {
		t.Fatalf("retry Refresh: %v", err)
	}
	if be.calls != 2 {
		t.Fatalf("stale region should be retried: calls=%d", be.calls)
	}
	if len(be.last) == 0 || strings.Contains(be.last[1].Content, `"key": "2-2"`) {
		t.Fatalf("retry should only cover 2-3")
	}
}

func TestRefresh_FallbackAssignsPositionally(t *testing.T) {
	w := newWorld(t)
	keys := []string{"1-1", "1-2", "1-3"}
	for _, k := range keys {
		region(t, w, k).NPCs = []world.NPC{{Name: "N" + k, Role: "merchant"}}
	}

	be := &scriptedBackend{replies: []string{"First paragraph of lore.\n\nSecond paragraph of lore."}}
	res, err := NewCache(be).Refresh(context.Background(), w)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !res.Fallback {
		t.Fatalf("expected fallback parse")
	}
	if got := region(t, w, "1-1").Lore; got != "First paragraph of lore." {
		t.Fatalf("1-1 lore: %q", got)
	}
	if got := region(t, w, "1-2").Lore; got != "Second paragraph of lore." {
		t.Fatalf("1-2 lore: %q", got)
	}
	third := region(t, w, "1-3")
	if third.Lore != "" || third.Signature != "" {
		t.Fatalf("region without a chunk must stay untouched: %+v", third)
	}
}

func TestRefresh_BackendFailureLeavesRegionsUntouched(t *testing.T) {
	w := newWorld(t)
	r := region(t, w, "5-5")
	r.Quests = []world.Quest{{Title: "Defeat the Dark Sorcerer"}}
	r.Lore = "kept"

	be := &scriptedBackend{err: genai.ErrBackendUnavailable}
	_, err := NewCache(be).Refresh(context.Background(), w)
	if !errors.Is(err, genai.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if r.Lore != "kept" || r.Signature != "" {
		t.Fatalf("region mutated on failure: %+v", r)
	}
}

func TestIsStale_EmptyRegionNeverStale(t *testing.T) {
	r := &world.Region{Key: "1-1", Name: "Empty", Traits: []string{"windy"}}
	if IsStale(r) {
		t.Fatalf("region without characters, npcs or quests must not be stale")
	}
}

func TestRefresh_BadKeyKeepsStructuredAssignment(t *testing.T) {
	w := newWorld(t)
	a := region(t, w, "1-1")
	a.NPCs = []world.NPC{{Name: "Aelric", Role: "merchant"}}
	b := region(t, w, "1-2")
	b.Quests = []world.Quest{{Title: "Find the Hidden Treasure"}}

	be := &scriptedBackend{replies: []string{
		`{"regions":[{"key":"1-1","lore":"Lore for one."},{"key":"Region 1-2","lore":"Lore for two."},{"key":"4-4","lore":"Unasked."}]}`,
	}}
	res, err := NewCache(be).Refresh(context.Background(), w)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Fallback {
		t.Fatalf("structured reply must not take the fallback path")
	}
	if len(res.Updated) != 1 || res.Updated[0] != "1-1" {
		t.Fatalf("updated: %v", res.Updated)
	}
	if a.Lore != "Lore for one." || !a.LoreValid() {
		t.Fatalf("1-1: %+v", a)
	}
	if b.Lore != "" || !IsStale(b) {
		t.Fatalf("1-2 should stay stale: %+v", b)
	}
	if other := region(t, w, "4-4"); other.Lore != "" {
		t.Fatalf("unrequested region written: %+v", other)
	}
}

func TestRefresh_WrongShapeJSONIsNotLore(t *testing.T) {
	w := newWorld(t)
	r := region(t, w, "2-4")
	r.NPCs = []world.NPC{{Name: "Lilith", Role: "priest"}}

	be := &scriptedBackend{replies: []string{`{"regions":{"2-4":"Lore in a map."}}`}}
	res, err := NewCache(be).Refresh(context.Background(), w)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Fallback || len(res.Updated) != 0 {
		t.Fatalf("JSON reply must not be assigned as text: %+v", res)
	}
	if r.Lore != "" || !IsStale(r) {
		t.Fatalf("region should stay stale: %+v", r)
	}
}

func TestRefresh_SingleRegionFallbackKeepsWholeParagraph(t *testing.T) {
	w := newWorld(t)
	r := region(t, w, "5-1")
	r.Quests = []world.Quest{{Title: "Rescue the Princess"}}

	text := "Reeds hide the causeway.\nBells toll at low tide."
	be := &scriptedBackend{replies: []string{text}}
	res, err := NewCache(be).Refresh(context.Background(), w)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !res.Fallback || r.Lore != text || !r.LoreValid() {
		t.Fatalf("lone region should receive the whole reply: res=%+v lore=%q", res, r.Lore)
	}
}

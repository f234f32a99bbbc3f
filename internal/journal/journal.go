// Package journal renders a world's regions, with their cached lore, as a
// markdown journal.
package journal

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"manaforge.ai/internal/lore"
	"manaforge.ai/internal/world"
)

type Assembler struct {
	cache *lore.Cache
}

func NewAssembler(cache *lore.Cache) *Assembler {
	return &Assembler{cache: cache}
}

// Assemble refreshes stale lore and renders every region of w in
// row-major order. Without an intervening mutation two calls return the
// same bytes and the second one makes no backend call.
func (a *Assembler) Assemble(ctx context.Context, w *world.World) (string, error) {
	if _, err := a.cache.Refresh(ctx, w); err != nil {
		return "", fmt.Errorf("journal %s: %w", w.Name, err)
	}
	return Render(w), nil
}

// Render formats w without touching the backend. Lore whose signature does
// not match the region's current content is left out.
func Render(w *world.World) string {
	regions := w.Ordered()
	blocks := make([]string, 0, len(regions))
	for _, r := range regions {
		blocks = append(blocks, renderRegion(r))
	}
	return strings.Join(blocks, "\n\n")
}

func renderRegion(r *world.Region) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s", r.Name)
	if r.Capital {
		sb.WriteString("\n\n**Capital Region**")
	}
	list := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n\n%s:\n", title)
		for i, it := range items {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString("- ")
			sb.WriteString(it)
		}
	}
	list("Special Traits", r.Traits)

	chars := make([]string, 0, len(r.Characters))
	for _, c := range r.Characters {
		chars = append(chars, c.String())
	}
	list("Characters", chars)

	npcs := make([]string, 0, len(r.NPCs))
	for _, n := range r.NPCs {
		npcs = append(npcs, n.String())
	}
	list("NPCs", npcs)

	quests := make([]string, 0, len(r.Quests))
	for _, q := range r.Quests {
		quests = append(quests, q.Title)
	}
	list("Quests", quests)

	if r.Lore != "" && r.LoreValid() {
		sb.WriteString("\n\n")
		sb.WriteString(r.Lore)
	}
	return sb.String()
}

var md = goldmark.New(goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()))

// unsafeHrefRe matches href/src attributes with dangerous URL schemes in goldmark output.
var unsafeHrefRe = regexp.MustCompile(`(?i)(href|src)="(?:javascript|vbscript|data):[^"]*"`)

// RenderHTML converts journal markdown to an HTML fragment.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render journal html: %w", err)
	}
	return unsafeHrefRe.ReplaceAllString(buf.String(), `$1="#"`), nil
}

// Package lore keeps region lore in step with region content.
//
// Every Refresh computes region signatures, collects the regions whose
// cached signature no longer matches, and regenerates all of them with a
// single batched backend request. Regions without characters, NPCs or
// quests are never sent.
package lore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"manaforge.ai/internal/genai"
	"manaforge.ai/internal/genai/parse"
	"manaforge.ai/internal/world"
)

const systemPrompt = "You are a fantasy world chronicler. You write short, evocative lore paragraphs " +
	"for regions of a world map, keeping neighbouring regions consistent with each other."

type Cache struct {
	backend     genai.Backend
	temperature *float64
	log         *log.Logger
}

type Option func(*Cache)

func WithTemperature(t float64) Option { return func(c *Cache) { c.temperature = genai.Temp(t) } }
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

func NewCache(backend genai.Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		log:     log.New(io.Discard, "", 0),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RefreshResult describes one Refresh pass.
type RefreshResult struct {
	// Requested lists the region keys sent to the backend, in request order.
	Requested []string `json:"requested"`
	// Updated lists the regions whose lore and signature were replaced.
	Updated []string `json:"updated"`
	// Fallback is set when the response failed strict decoding and lore was
	// assigned positionally from the raw text.
	Fallback bool `json:"fallback,omitempty"`
}

// IsStale reports whether a region needs a lore regeneration.
func IsStale(r *world.Region) bool {
	if !r.HasContent() {
		return false
	}
	return r.Signature == "" || r.Signature != world.Signature(r)
}

// Stale returns the stale regions of w in row-major order.
func Stale(w *world.World) []*world.Region {
	var out []*world.Region
	for _, r := range w.Ordered() {
		if IsStale(r) {
			out = append(out, r)
		}
	}
	return out
}

// Refresh regenerates lore for every stale region of w with one backend
// call. It mutates regions in place and does not persist anything. On a
// backend error no region is touched.
func (c *Cache) Refresh(ctx context.Context, w *world.World) (RefreshResult, error) {
	var res RefreshResult
	stale := Stale(w)
	if len(stale) == 0 {
		return res, nil
	}

	sigs := make([]string, len(stale))
	for i, r := range stale {
		sigs[i] = world.Signature(r)
		res.Requested = append(res.Requested, r.Key)
	}

	msgs, err := batchMessages(w.Name, stale)
	if err != nil {
		return res, err
	}
	raw, err := c.backend.Complete(ctx, msgs, genai.Options{Temperature: c.temperature})
	if err != nil {
		return res, fmt.Errorf("refresh lore for %s: %w", w.Name, err)
	}

	var batch struct {
		Regions []struct {
			Key  string `json:"key"`
			Lore string `json:"lore"`
		} `json:"regions"`
	}
	perr := parse.Strict(raw, parse.LoreBatch, &batch)
	if perr == nil {
		requested := make(map[string]bool, len(stale))
		for _, r := range stale {
			requested[r.Key] = true
		}
		byKey := make(map[string]string, len(batch.Regions))
		skipped := 0
		for _, e := range batch.Regions {
			lore := strings.TrimSpace(e.Lore)
			if _, dup := byKey[e.Key]; dup || lore == "" || !requested[e.Key] {
				skipped++
				continue
			}
			byKey[e.Key] = lore
		}
		if skipped > 0 {
			c.log.Printf("lore batch for %s: skipped %d entry(ies) with unknown, duplicate or empty content", w.Name, skipped)
		}
		for i, r := range stale {
			lore, ok := byKey[r.Key]
			if !ok {
				continue
			}
			r.Lore = lore
			r.Signature = sigs[i]
			res.Updated = append(res.Updated, r.Key)
		}
		if missing := len(stale) - len(res.Updated); missing > 0 {
			c.log.Printf("lore batch for %s: %d region(s) missing from response", w.Name, missing)
		}
		return res, nil
	}
	if parse.Decodable(raw) {
		// JSON of the wrong shape; regions stay stale for the next refresh.
		c.log.Printf("lore batch for %s: %v; leaving regions stale", w.Name, perr)
		return res, nil
	}
	c.log.Printf("lore batch for %s: %v; assigning paragraphs positionally", w.Name, perr)

	res.Fallback = true
	chunks := parse.Paragraphs(raw, len(stale))
	for i, r := range stale {
		if i >= len(chunks) {
			break
		}
		if parse.Decodable(chunks[i]) {
			continue
		}
		r.Lore = chunks[i]
		r.Signature = sigs[i]
		res.Updated = append(res.Updated, r.Key)
	}
	return res, nil
}

type regionPayload struct {
	Key        string   `json:"key"`
	Name       string   `json:"name"`
	Capital    bool     `json:"capital"`
	Traits     []string `json:"traits"`
	Characters []string `json:"characters"`
	NPCs       []string `json:"npcs"`
	Quests     []string `json:"quests"`
}

func batchMessages(worldName string, regions []*world.Region) ([]genai.Message, error) {
	payload := make([]regionPayload, 0, len(regions))
	for _, r := range regions {
		p := regionPayload{
			Key:        r.Key,
			Name:       r.Name,
			Capital:    r.Capital,
			Traits:     append([]string{}, r.Traits...),
			Characters: make([]string, 0, len(r.Characters)),
			NPCs:       make([]string, 0, len(r.NPCs)),
			Quests:     make([]string, 0, len(r.Quests)),
		}
		for _, ch := range r.Characters {
			p.Characters = append(p.Characters, ch.String())
		}
		for _, n := range r.NPCs {
			p.NPCs = append(p.NPCs, n.String())
		}
		for _, q := range r.Quests {
			p.Quests = append(p.Quests, q.Title)
		}
		payload = append(payload, p)
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode lore batch: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "World: %s\n", worldName)
	fmt.Fprintf(&sb, "Write one lore paragraph (3-5 sentences) for each of these %d regions:\n", len(regions))
	sb.Write(b)
	sb.WriteString("\n\nRespond with JSON only, in this exact shape and in the same region order:\n")
	sb.WriteString(`{"regions":[{"key":"<row-col>","lore":"<paragraph>"}]}`)
	return []genai.Message{genai.System(systemPrompt), genai.User(sb.String())}, nil
}

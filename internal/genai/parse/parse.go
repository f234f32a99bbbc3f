// Package parse decodes structured model output in two stages: a strict
// schema-validated JSON decode, then (at the caller's choice) one fixed
// heuristic fallback.
package parse

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformed is returned when the strict stage rejects a response.
var ErrMalformed = errors.New("malformed model response")

var (
	//go:embed schemas/lore_batch.schema.json
	loreBatchSchema string
	//go:embed schemas/choices.schema.json
	choicesSchema string
	//go:embed schemas/npc.schema.json
	npcSchema string
	//go:embed schemas/quest.schema.json
	questSchema string
)

var (
	LoreBatch = jsonschema.MustCompileString("lore_batch.schema.json", loreBatchSchema)
	Choices   = jsonschema.MustCompileString("choices.schema.json", choicesSchema)
	NPC       = jsonschema.MustCompileString("npc.schema.json", npcSchema)
	Quest     = jsonschema.MustCompileString("quest.schema.json", questSchema)
)

// Strict extracts the JSON document from raw model text, validates it
// against schema and decodes it into dst. A surrounding markdown code fence
// is tolerated; anything else outside the JSON object is not.
func Strict(raw string, schema *jsonschema.Schema, dst any) error {
	body := stripFence(raw)
	if body == "" {
		return fmt.Errorf("%w: empty", ErrMalformed)
	}
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if schema != nil {
		if err := schema.Validate(doc); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Decodable reports whether raw, once any code fence is stripped, is a
// JSON object or array.
func Decodable(raw string) bool {
	body := stripFence(raw)
	if body == "" || (body[0] != '{' && body[0] != '[') {
		return false
	}
	return json.Valid([]byte(body))
}

// Paragraphs splits free text into non-empty chunks separated by blank
// lines. A single paragraph is split per line only when its line count
// equals want; otherwise it is returned whole.
func Paragraphs(raw string, want int) []string {
	text := strings.ReplaceAll(strings.TrimSpace(raw), "\r\n", "\n")
	if text == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 1 || want <= 1 {
		return out
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == want {
		return lines
	}
	return out
}

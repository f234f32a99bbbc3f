package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

type signatureInput struct {
	Name       string   `json:"name"`
	Capital    bool     `json:"capital"`
	Traits     []string `json:"traits"`
	Characters []string `json:"characters"`
	NPCs       []string `json:"npcs"`
	Quests     []string `json:"quests"`
}

// Signature fingerprints the region fields that influence lore text.
// Entries are sorted within each category, so reordering a list does not
// change the signature. Lore and the cached signature are not inputs.
func Signature(r *Region) string {
	in := signatureInput{
		Name:       r.Name,
		Capital:    r.Capital,
		Traits:     sortedCopy(r.Traits),
		Characters: make([]string, 0, len(r.Characters)),
		NPCs:       make([]string, 0, len(r.NPCs)),
		Quests:     make([]string, 0, len(r.Quests)),
	}
	for _, c := range r.Characters {
		in.Characters = append(in.Characters, c.Name+"\x1f"+c.Race+"\x1f"+c.Class)
	}
	for _, n := range r.NPCs {
		in.NPCs = append(in.NPCs, n.Name+"\x1f"+n.Role)
	}
	for _, q := range r.Quests {
		in.Quests = append(in.Quests, q.Title+"\x1f"+q.Description)
	}
	sort.Strings(in.Characters)
	sort.Strings(in.NPCs)
	sort.Strings(in.Quests)

	b, _ := json.Marshal(in)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

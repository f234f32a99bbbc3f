// Package world holds the region grid that lore and story operate on.
package world

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GridSize is the number of rows and columns of every world grid.
const GridSize = 5

var (
	ErrUnknownRegion = errors.New("unknown region")
	ErrEmptyName     = errors.New("world name must not be empty")
)

type CharacterSummary struct {
	Name  string `json:"name"`
	Race  string `json:"race"`
	Class string `json:"class"`
}

func (c CharacterSummary) String() string {
	return fmt.Sprintf("%s (%s %s)", c.Name, c.Race, c.Class)
}

type NPC struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (n NPC) String() string { return fmt.Sprintf("%s (%s)", n.Name, n.Role) }

type Quest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Region struct {
	Key        string             `json:"key"`
	Name       string             `json:"name"`
	Characters []CharacterSummary `json:"characters"`
	NPCs       []NPC              `json:"npcs"`
	Quests     []Quest            `json:"quests"`
	Capital    bool               `json:"capital"`
	Traits     []string           `json:"traits"`

	// Lore is only valid while Signature matches Signature(region).
	Lore      string `json:"lore"`
	Signature string `json:"signature"`
}

// HasContent reports whether the region carries anything lore could describe.
func (r *Region) HasContent() bool {
	return len(r.Characters) > 0 || len(r.NPCs) > 0 || len(r.Quests) > 0
}

// LoreValid reports whether the cached lore was computed for the current content.
func (r *Region) LoreValid() bool {
	return r.Signature != "" && r.Signature == Signature(r)
}

type World struct {
	Name      string             `json:"name"`
	CreatedAt time.Time          `json:"created_at"`
	Regions   map[string]*Region `json:"regions"`
}

// New builds a world with a full GridSize x GridSize grid of empty regions.
func New(name string, now time.Time) (*World, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	w := &World{
		Name:      name,
		CreatedAt: now.UTC(),
		Regions:   make(map[string]*Region, GridSize*GridSize),
	}
	w.Normalize()
	return w, nil
}

// Key formats grid coordinates (1-based) as "row-col".
func Key(row, col int) string {
	return strconv.Itoa(row) + "-" + strconv.Itoa(col)
}

// ParseKey is the inverse of Key. It rejects coordinates outside the grid.
func ParseKey(key string) (row, col int, err error) {
	rs, cs, ok := strings.Cut(strings.TrimSpace(key), "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownRegion, key)
	}
	row, err1 := strconv.Atoi(rs)
	col, err2 := strconv.Atoi(cs)
	if err1 != nil || err2 != nil || row < 1 || row > GridSize || col < 1 || col > GridSize {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownRegion, key)
	}
	return row, col, nil
}

// Keys returns every region key in row-major order ("1-1", "1-2", ..., "5-5").
func Keys() []string {
	keys := make([]string, 0, GridSize*GridSize)
	for row := 1; row <= GridSize; row++ {
		for col := 1; col <= GridSize; col++ {
			keys = append(keys, Key(row, col))
		}
	}
	return keys
}

// Normalize fills in any grid cells missing from a loaded document and
// repairs region keys. It never removes regions.
func (w *World) Normalize() {
	if w.Regions == nil {
		w.Regions = make(map[string]*Region, GridSize*GridSize)
	}
	for _, key := range Keys() {
		r, ok := w.Regions[key]
		if !ok || r == nil {
			r = &Region{}
			w.Regions[key] = r
		}
		r.Key = key
		if strings.TrimSpace(r.Name) == "" {
			r.Name = "Region " + key
		}
	}
}

// Region looks up a region by key.
func (w *World) Region(key string) (*Region, error) {
	if _, _, err := ParseKey(key); err != nil {
		return nil, err
	}
	r, ok := w.Regions[key]
	if !ok || r == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, key)
	}
	return r, nil
}

// Ordered returns the regions present in the grid in row-major order.
func (w *World) Ordered() []*Region {
	out := make([]*Region, 0, len(w.Regions))
	for _, key := range Keys() {
		if r, ok := w.Regions[key]; ok && r != nil {
			out = append(out, r)
		}
	}
	return out
}

// CharacterNames lists every character placed in the world, row-major.
func (w *World) CharacterNames() []string {
	var names []string
	for _, r := range w.Ordered() {
		for _, c := range r.Characters {
			names = append(names, c.Name)
		}
	}
	return names
}

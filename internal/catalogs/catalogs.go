package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Catalogs struct {
	Races       []string `yaml:"races"`
	Classes     []string `yaml:"classes"`
	Backgrounds []string `yaml:"backgrounds"`
	Genders     []string `yaml:"genders"`

	NPCNames    []string `yaml:"npc_names"`
	NPCRoles    []string `yaml:"npc_roles"`
	QuestTitles []string `yaml:"quest_titles"`

	// Templates use {name}, {role} and {title} placeholders.
	NPCBackstory     string `yaml:"npc_backstory"`
	QuestDescription string `yaml:"quest_description"`

	Digest string `yaml:"-"`
}

// Default returns the built-in catalogs.
func Default() *Catalogs {
	c, err := parse(defaultYAML, "default.yaml")
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog file. An empty path returns Default.
func Load(path string) (*Catalogs, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(raw, path)
}

func parse(raw []byte, name string) (*Catalogs, error) {
	var c Catalogs
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	lists := []struct {
		key  string
		vals []string
	}{
		{"races", c.Races},
		{"classes", c.Classes},
		{"backgrounds", c.Backgrounds},
		{"genders", c.Genders},
		{"npc_names", c.NPCNames},
		{"npc_roles", c.NPCRoles},
		{"quest_titles", c.QuestTitles},
	}
	for _, l := range lists {
		if len(l.vals) == 0 {
			return nil, fmt.Errorf("%s: %s is empty", name, l.key)
		}
		for _, v := range l.vals {
			if strings.TrimSpace(v) == "" {
				return nil, fmt.Errorf("%s: %s has a blank entry", name, l.key)
			}
		}
	}
	c.Digest = sha256Hex(raw)
	return &c, nil
}

func (c *Catalogs) HasRace(race string) bool     { return slices.Contains(c.Races, race) }
func (c *Catalogs) HasGender(gender string) bool { return slices.Contains(c.Genders, gender) }

func (c *Catalogs) NPCBackstoryFor(name, role string) string {
	return strings.NewReplacer("{name}", name, "{role}", role).Replace(c.NPCBackstory)
}

func (c *Catalogs) QuestDescriptionFor(title string) string {
	return strings.NewReplacer("{title}", title).Replace(c.QuestDescription)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

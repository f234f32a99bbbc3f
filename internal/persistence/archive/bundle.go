// Package archive packs a forged character, the world journal and the
// story transcript into a single ZIP download.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"manaforge.ai/internal/forge"
)

type Bundle struct {
	Character   *forge.Character
	NPC         *forge.NPC
	Quest       *forge.Quest
	Journal     string
	JournalHTML string
	Transcript  string
}

// FileName returns the download name for a bundle.
func FileName(b Bundle) string {
	base := "manaforge"
	if b.Character != nil && b.Character.Name != "" {
		base = strings.ReplaceAll(b.Character.Name, " ", "_") + "_character"
	}
	return base + ".zip"
}

// Write streams the bundle as a ZIP archive. Empty sections are skipped.
func Write(w io.Writer, b Bundle, modified time.Time) error {
	zw := zip.NewWriter(w)
	add := func(name string, data []byte) error {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified.UTC(),
		})
		if err != nil {
			return err
		}
		_, err = fw.Write(data)
		return err
	}
	addJSON := func(name string, v any) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		return add(name, data)
	}

	if b.Character != nil {
		c := *b.Character
		portrait := c.PortraitData
		c.PortraitData = nil
		if err := addJSON("character.json", c); err != nil {
			return err
		}
		if len(portrait) > 0 {
			if err := add("portrait.png", portrait); err != nil {
				return err
			}
		}
	}
	if b.NPC != nil {
		if err := addJSON("npc.json", b.NPC); err != nil {
			return err
		}
	}
	if b.Quest != nil {
		if err := addJSON("quest.json", b.Quest); err != nil {
			return err
		}
	}
	texts := []struct{ name, body string }{
		{"journal.md", b.Journal},
		{"journal.html", b.JournalHTML},
		{"transcript.md", b.Transcript},
	}
	for _, t := range texts {
		if t.body == "" {
			continue
		}
		if err := add(t.name, []byte(t.body)); err != nil {
			return err
		}
	}
	return zw.Close()
}

// ReadEntries returns the contents of every file in a bundle.
func ReadEntries(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || path.Clean(f.Name) != f.Name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		out[f.Name] = b
	}
	return out, nil
}

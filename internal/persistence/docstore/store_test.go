package docstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	fs, err := OpenFile(filepath.Join(dir, "docs"), nil)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	sq, err := OpenSQLite(filepath.Join(dir, "docs.sqlite"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"file": fs, "sqlite": sq}
}

func TestStore_SaveLoadListDelete(t *testing.T) {
	ctx := context.Background()
	for kind, s := range stores(t) {
		t.Run(kind, func(t *testing.T) {
			var missing doc
			found, err := s.Load(ctx, "world_Eldemoor", &missing)
			if err != nil || found {
				t.Fatalf("missing doc: found=%v err=%v", found, err)
			}

			if err := s.Save(ctx, "world_Eldemoor", doc{Name: "Eldemoor", Items: []string{"a"}}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save(ctx, "world_Eldemoor", doc{Name: "Eldemoor", Items: []string{"a", "b"}}); err != nil {
				t.Fatalf("Save again: %v", err)
			}
			var got doc
			found, err = s.Load(ctx, "world_Eldemoor", &got)
			if err != nil || !found {
				t.Fatalf("Load: found=%v err=%v", found, err)
			}
			if got.Name != "Eldemoor" || len(got.Items) != 2 {
				t.Fatalf("last write should win: %+v", got)
			}

			if err := s.Save(ctx, "characters", []doc{}); err != nil {
				t.Fatalf("Save characters: %v", err)
			}
			infos, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(infos) != 2 || infos[0].Name != "characters" || infos[1].Name != "world_Eldemoor" {
				t.Fatalf("List: %+v", infos)
			}

			if err := s.Delete(ctx, "characters"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, "characters"); err != nil {
				t.Fatalf("Delete missing: %v", err)
			}
			if found, _ := s.Load(ctx, "characters", &[]doc{}); found {
				t.Fatalf("deleted doc still found")
			}
		})
	}
}

func TestFileStore_UnreadableIsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFile(dir, nil)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "story_transcript.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	keep := doc{Name: "default"}
	found, err := s.Load(context.Background(), "story_transcript", &keep)
	if err != nil || found {
		t.Fatalf("unreadable doc: found=%v err=%v", found, err)
	}
	if keep.Name != "default" {
		t.Fatalf("dst should be untouched: %+v", keep)
	}
}

func TestStore_WrongTypesLeaveDstUntouched(t *testing.T) {
	ctx := context.Background()
	for kind, s := range stores(t) {
		t.Run(kind, func(t *testing.T) {
			if err := s.Save(ctx, "story_transcript", map[string]any{"name": "partial", "items": "oops"}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			keep := doc{Name: "default", Items: []string{"x"}}
			found, err := s.Load(ctx, "story_transcript", &keep)
			if err != nil || found {
				t.Fatalf("mistyped doc: found=%v err=%v", found, err)
			}
			if keep.Name != "default" || len(keep.Items) != 1 {
				t.Fatalf("dst should be untouched: %+v", keep)
			}
		})
	}
}

func TestCleanName(t *testing.T) {
	cases := map[string]string{
		"world_Eldemoor":   "world_Eldemoor",
		"world_Ash Reach":  "world_Ash_Reach",
		"../etc/passwd":    "_._etc_passwd",
		"world_Ærlund":     "world__rlund",
		"story_transcript": "story_transcript",
	}
	for in, want := range cases {
		got, err := CleanName(in)
		if err != nil {
			t.Fatalf("CleanName(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("CleanName(%q) = %q want %q", in, got, want)
		}
	}
	for _, bad := range []string{"", "   ", "///"} {
		if _, err := CleanName(bad); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("CleanName(%q): expected ErrInvalidName, got %v", bad, err)
		}
	}
}

func TestOpen_Kinds(t *testing.T) {
	dir := t.TempDir()
	s, err := Open("file", filepath.Join(dir, "docs"), nil)
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Fatalf("expected *FileStore, got %T", s)
	}
	s, err = Open("sqlite", filepath.Join(dir, "docs.sqlite"), nil)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("expected *SQLiteStore, got %T", s)
	}
	if _, err := Open("redis", dir, nil); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"manaforge.ai/internal/persistence/docstore"
)

func seededStore(t *testing.T) docstore.Store {
	t.Helper()
	s, err := docstore.OpenFile(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, "world_Eldemoor", map[string]any{"name": "Eldemoor"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, "story_transcript", map[string]any{"day": 3}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return s
}

func TestListDocs(t *testing.T) {
	s := seededStore(t)
	var out bytes.Buffer
	if err := listDocs(context.Background(), s, &out, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("listDocs: %v", err)
	}
	text := out.String()
	for _, want := range []string{"NAME", "story_transcript", "world_Eldemoor", "ago", "2 document(s)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
	if strings.Index(text, "story_transcript") > strings.Index(text, "world_Eldemoor") {
		t.Fatalf("documents not sorted:\n%s", text)
	}
}

func TestShowDoc(t *testing.T) {
	s := seededStore(t)
	var out bytes.Buffer
	if err := showDoc(context.Background(), s, "world_Eldemoor", &out); err != nil {
		t.Fatalf("showDoc: %v", err)
	}
	if !strings.Contains(out.String(), `"name": "Eldemoor"`) {
		t.Fatalf("unexpected output: %s", out.String())
	}
	if err := showDoc(context.Background(), s, "world_Nowhere", &out); err == nil {
		t.Fatalf("expected not found")
	}
}

package parse

import (
	"errors"
	"reflect"
	"testing"
)

type loreBatch struct {
	Regions []struct {
		Key  string `json:"key"`
		Lore string `json:"lore"`
	} `json:"regions"`
}

func TestStrict_AcceptsFencedJSON(t *testing.T) {
	raw := "```json\n{\"regions\":[{\"key\":\"3-3\",\"lore\":\"Old stones.\"}]}\n```"
	var out loreBatch
	if err := Strict(raw, LoreBatch, &out); err != nil {
		t.Fatalf("Strict: %v", err)
	}
	if len(out.Regions) != 1 || out.Regions[0].Key != "3-3" || out.Regions[0].Lore != "Old stones." {
		t.Fatalf("decoded: %+v", out)
	}
}

func TestStrict_RejectsSchemaViolations(t *testing.T) {
	cases := []string{
		``,
		`not json at all`,
		`{"regions":"nope"}`,
		`{"regions":[{"key":"1-1"}]}`,
		`Here you go: {"regions":[]}`,
	}
	for _, raw := range cases {
		var out loreBatch
		if err := Strict(raw, LoreBatch, &out); !errors.Is(err, ErrMalformed) {
			t.Fatalf("raw %q: expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestStrict_ChoicesNeedThreeOptions(t *testing.T) {
	var out struct {
		Prompt  string   `json:"prompt"`
		Options []string `json:"options"`
	}
	for _, raw := range []string{
		`{"prompt":"Now what?","options":["Run"]}`,
		`{"prompt":"Now what?","options":["Run","Hide"]}`,
		`{"prompt":"Now what?","options":["Run","Hide","Parley","Pray"]}`,
	} {
		if err := Strict(raw, Choices, &out); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", raw, err)
		}
	}
	if err := Strict(`{"prompt":"Now what?","options":["Run","Hide","Parley"]}`, Choices, &out); err != nil {
		t.Fatalf("Strict: %v", err)
	}
}

func TestParagraphs(t *testing.T) {
	got := Paragraphs("First region lore.\n\n\nSecond region lore.\r\n\r\nThird.", 3)
	want := []string{"First region lore.", "Second region lore.", "Third."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}

	got = Paragraphs("one\ntwo\n", 2)
	if !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Fatalf("line split: %q", got)
	}
	if Paragraphs("   ", 1) != nil {
		t.Fatalf("blank text should give no chunks")
	}
}

func TestParagraphs_KeepsSingleParagraphWhole(t *testing.T) {
	text := "The marsh swallows the road.\nLanterns drift at dusk.\nNo one returns."
	if got := Paragraphs(text, 1); len(got) != 1 || got[0] != text {
		t.Fatalf("one region should get the whole paragraph: %q", got)
	}
	if got := Paragraphs(text, 2); len(got) != 1 || got[0] != text {
		t.Fatalf("line count mismatch should not split: %q", got)
	}
}

func TestDecodable(t *testing.T) {
	if !Decodable("```json\n{\"regions\":[]}\n```") {
		t.Fatalf("fenced JSON should be decodable")
	}
	if Decodable("Old stones.\n\nNew roads.") || Decodable("") {
		t.Fatalf("plain text should not be decodable")
	}
}

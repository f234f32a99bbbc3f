package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAI_CompleteSendsRolesAndModel(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature float64 `json:"temperature"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(rw, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  The fog lifts.  "}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/"})
	text, err := o.Complete(context.Background(), []Message{
		System("You are a storyteller."),
		User("Continue."),
	}, Options{Temperature: Temp(0.8)})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "The fog lifts." {
		t.Fatalf("text: %q", text)
	}
	if got.Model != DefaultTextModel {
		t.Fatalf("model: %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages: %+v", got.Messages)
	}
	if got.Temperature != 0.8 {
		t.Fatalf("temperature: %v", got.Temperature)
	}
}

func TestOpenAI_ImageReturnsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			http.NotFound(rw, r)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write([]byte(`{"created":1,"data":[{"url":"https://img.example/knight.png"}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/"})
	ref, err := o.Image(context.Background(), "a knight", "")
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if ref.URL != "https://img.example/knight.png" {
		t.Fatalf("url: %q", ref.URL)
	}
}

func TestOpenAI_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/"})
	if _, err := o.Complete(context.Background(), []Message{User("x")}, Options{}); err == nil {
		t.Fatalf("expected error on 429")
	}
}

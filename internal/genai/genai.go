// Package genai is the boundary to the hosted text and image models.
//
// Domain packages depend on the Backend interface only. Retries belong to
// the Retrying wrapper so callers see a single failure once the budget is
// spent.
package genai

import (
	"context"
	"errors"
)

// ErrBackendUnavailable marks a call that failed after the retry budget was
// exhausted. Callers must treat it as "nothing happened".
var ErrBackendUnavailable = errors.New("content backend unavailable")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }

type Options struct {
	// Temperature is left to the model default when nil.
	Temperature *float64
}

// Temp is a small helper for Options literals.
func Temp(v float64) *float64 { return &v }

// ImageRef is either a hosted URL or inline bytes, depending on the backend.
type ImageRef struct {
	URL  string `json:"url,omitempty"`
	Data []byte `json:"data,omitempty"`
}

func (r ImageRef) Empty() bool { return r.URL == "" && len(r.Data) == 0 }

type Backend interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
	Image(ctx context.Context, prompt string, size string) (ImageRef, error)
}

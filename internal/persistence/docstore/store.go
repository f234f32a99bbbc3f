// Package docstore persists named JSON documents. Every write replaces the
// whole document; the last writer wins.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

var ErrInvalidName = errors.New("invalid document name")

type Store interface {
	// Save replaces the document stored under name.
	Save(ctx context.Context, name string, doc any) error
	// Load decodes the document into dst. A missing or undecodable document
	// reports found=false and leaves dst untouched.
	Load(ctx context.Context, name string, dst any) (found bool, err error)
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

type Info struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open opens a store of the given kind ("file" or "sqlite") at path.
func Open(kind, path string, logger *log.Logger) (Store, error) {
	switch kind {
	case "", "file":
		s, err := OpenFile(path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := OpenSQLite(path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}

// CleanName maps a document name onto the portable character set
// [A-Za-z0-9._-]; every other rune becomes '_'.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		case r == '.':
			if sb.Len() == 0 {
				sb.WriteRune('_')
			} else {
				sb.WriteRune(r)
			}
		default:
			sb.WriteRune('_')
		}
	}
	out := sb.String()
	if out == "" || strings.Trim(out, "_") == "" {
		return "", ErrInvalidName
	}
	return out, nil
}

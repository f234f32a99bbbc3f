// Package snapshot writes point-in-time copies of every stored document to
// a single zstd-compressed file.
package snapshot

import (
	"bufio"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"manaforge.ai/internal/persistence/docstore"
)

const Version = 1

type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Documents int       `json:"documents"`
}

type Document struct {
	Name string
	JSON []byte
}

type SnapshotV1 struct {
	Header    Header
	Documents []Document
}

// Capture reads every document in s.
func Capture(ctx context.Context, s docstore.Store, now time.Time) (SnapshotV1, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return SnapshotV1{}, err
	}
	snap := SnapshotV1{Header: Header{Version: Version, CreatedAt: now.UTC()}}
	for _, info := range infos {
		var raw json.RawMessage
		found, err := s.Load(ctx, info.Name, &raw)
		if err != nil {
			return SnapshotV1{}, fmt.Errorf("capture %s: %w", info.Name, err)
		}
		if !found {
			continue
		}
		snap.Documents = append(snap.Documents, Document{Name: info.Name, JSON: raw})
	}
	sort.Slice(snap.Documents, func(i, j int) bool { return snap.Documents[i].Name < snap.Documents[j].Name })
	snap.Header.Documents = len(snap.Documents)
	return snap, nil
}

// Restore saves every document of snap into s, replacing same-named ones.
func Restore(ctx context.Context, s docstore.Store, snap SnapshotV1) error {
	for _, d := range snap.Documents {
		if !json.Valid(d.JSON) {
			return fmt.Errorf("restore %s: invalid json", d.Name)
		}
		if err := s.Save(ctx, d.Name, json.RawMessage(d.JSON)); err != nil {
			return fmt.Errorf("restore %s: %w", d.Name, err)
		}
	}
	return nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Documents != len(snap.Documents) {
		return snap, errors.New("snapshot document count mismatch")
	}
	return snap, nil
}

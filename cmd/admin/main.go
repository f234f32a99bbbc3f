package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"manaforge.ai/internal/config"
	"manaforge.ai/internal/persistence/docstore"
	"manaforge.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "show":
			showCmd(os.Args[2:])
			return
		case "dump":
			dumpCmd(os.Args[2:])
			return
		case "restore":
			restoreCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// storeFlags registers -data and -store on fs, defaulting to the
// environment configuration.
func storeFlags(fs *flag.FlagSet) func() docstore.Store {
	cfg, err := config.Load()
	if err != nil {
		fail(1, "config:", err)
	}
	dataDir := fs.String("data", cfg.DataDir, "runtime data directory")
	kind := fs.String("store", cfg.Store, "document store: file or sqlite")
	return func() docstore.Store {
		cfg.DataDir, cfg.Store = *dataDir, *kind
		if err := cfg.Validate(); err != nil {
			fail(2, "config:", err)
		}
		s, err := docstore.Open(cfg.Store, cfg.StorePath(), nil)
		if err != nil {
			fail(1, "open store:", err)
		}
		return s
	}
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	open := storeFlags(fs)
	_ = fs.Parse(args)

	s := open()
	defer s.Close()
	if err := listDocs(context.Background(), s, os.Stdout, time.Now()); err != nil {
		fail(1, "list:", err)
	}
}

func listDocs(ctx context.Context, s docstore.Store, w io.Writer, now time.Time) error {
	infos, err := s.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tUPDATED")
	var total int64
	for _, info := range infos {
		total += info.Size
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, humanize.Bytes(uint64(info.Size)), humanize.RelTime(info.UpdatedAt, now, "ago", "from now"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s document(s), %s\n", humanize.Comma(int64(len(infos))), humanize.Bytes(uint64(total)))
	return nil
}

func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	open := storeFlags(fs)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fail(2, "usage: admin show [-data dir] [-store kind] <document>")
	}

	s := open()
	defer s.Close()
	if err := showDoc(context.Background(), s, fs.Arg(0), os.Stdout); err != nil {
		fail(1, "show:", err)
	}
}

func showDoc(ctx context.Context, s docstore.Store, name string, w io.Writer) error {
	var raw json.RawMessage
	found, err := s.Load(ctx, name, &raw)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: not found", name)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func dumpCmd(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	open := storeFlags(fs)
	outPath := fs.String("out", "", "output snapshot path (default: <data>/snapshots/<unix>.snap.zst)")
	_ = fs.Parse(args)

	s := open()
	defer s.Close()
	snap, err := snapshot.Capture(context.Background(), s, time.Now())
	if err != nil {
		fail(1, "capture:", err)
	}
	path := strings.TrimSpace(*outPath)
	if path == "" {
		path = filepath.Join(fs.Lookup("data").Value.String(), "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.CreatedAt.Unix()))
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		fail(1, "write snapshot:", err)
	}
	fmt.Printf("wrote %s (%d documents)\n", path, snap.Header.Documents)
}

func restoreCmd(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	open := storeFlags(fs)
	inPath := fs.String("in", "", "snapshot path (required)")
	_ = fs.Parse(args)
	if strings.TrimSpace(*inPath) == "" {
		fail(2, "missing -in")
	}

	snap, err := snapshot.ReadSnapshot(*inPath)
	if err != nil {
		fail(1, "read snapshot:", err)
	}
	s := open()
	defer s.Close()
	if err := snapshot.Restore(context.Background(), s, snap); err != nil {
		fail(1, "restore:", err)
	}
	fmt.Printf("restored %d documents from %s (taken %s)\n", len(snap.Documents), *inPath, humanize.Time(snap.Header.CreatedAt))
}

func fail(code int, a ...any) {
	fmt.Fprintln(os.Stderr, a...)
	os.Exit(code)
}

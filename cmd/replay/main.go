// Command replay prints the story event log and checks that world-days
// never go backwards.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"manaforge.ai/internal/persistence/eventlog"
	"manaforge.ai/internal/story"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		world   = flag.String("world", "", "only events of this world (optional)")
		kind    = flag.String("kind", "", "only events of this kind (optional)")
		fromDay = flag.Int("from_day", 0, "first day to print (inclusive)")
		toDay   = flag.Int("to_day", 0, "last day to print (inclusive, optional)")
		quiet   = flag.Bool("quiet", false, "only print the summary")
	)
	flag.Parse()

	dir := filepath.Join(*dataDir, "events")
	files, err := eventlog.ListFiles(dir, "story")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no story event files found in", dir)
		os.Exit(1)
	}

	out := io.Writer(os.Stdout)
	if *quiet {
		out = io.Discard
	}
	f := filter{world: *world, kind: story.Kind(*kind), fromDay: *fromDay, toDay: *toDay}
	sum, err := replay(files, f, out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: files=%d events=%d printed=%d days=%d..%d kinds=%s\n",
		len(files), sum.events, sum.printed, sum.firstDay, sum.lastDay, sum.kinds())
}

type filter struct {
	world   string
	kind    story.Kind
	fromDay int
	toDay   int
}

func (f filter) match(ev story.Event) bool {
	if f.world != "" && ev.World != f.world {
		return false
	}
	if f.kind != "" && ev.Kind != f.kind {
		return false
	}
	if ev.Day < f.fromDay {
		return false
	}
	return f.toDay == 0 || ev.Day <= f.toDay
}

type summary struct {
	events   int
	printed  int
	firstDay int
	lastDay  int
	byKind   map[story.Kind]int
}

func (s summary) kinds() string {
	var parts []string
	for _, k := range []story.Kind{story.KindRumor, story.KindQuestProgress, story.KindWorldShift, story.KindChoice} {
		if n := s.byKind[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", k, n))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

// replay walks files in order. Every event is checked; only matching ones
// are printed.
func replay(files []string, f filter, out io.Writer) (summary, error) {
	sum := summary{byKind: map[story.Kind]int{}}
	for _, path := range files {
		err := eventlog.ReadStoryEvents(path, func(ev story.Event) error {
			if sum.events > 0 && ev.Day < sum.lastDay {
				return fmt.Errorf("day went backwards at event %s: %d after %d (file=%s)", ev.ID, ev.Day, sum.lastDay, filepath.Base(path))
			}
			if sum.events == 0 {
				sum.firstDay = ev.Day
			}
			sum.events++
			sum.lastDay = ev.Day
			sum.byKind[ev.Kind]++
			if f.match(ev) {
				sum.printed++
				fmt.Fprintln(out, format(ev))
			}
			return nil
		})
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func format(ev story.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "day=%d %s %s", ev.Day, ev.Time.Format("2006-01-02T15:04:05Z07:00"), ev.Kind)
	if ev.World != "" {
		fmt.Fprintf(&sb, " world=%q", ev.World)
	}
	p := ev.Payload
	if p.Region != "" {
		fmt.Fprintf(&sb, " region=%q", p.Region)
	}
	if p.NPC != "" {
		fmt.Fprintf(&sb, " npc=%q", p.NPC)
	}
	if p.Quest != "" {
		fmt.Fprintf(&sb, " quest=%q", p.Quest)
	}
	if p.Note != "" {
		fmt.Fprintf(&sb, " note=%q", p.Note)
	}
	return sb.String()
}

package story

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"manaforge.ai/internal/world"
)

// AdvanceTime moves the clock forward one day at a time, running one
// background tick per day. It never calls the backend and returns the
// events emitted, in order.
func (e *Engine) AdvanceTime(days int) []Event {
	var out []Event
	for i := 0; i < days; i++ {
		e.day++
		if ev, ok := e.BackgroundTick(); ok {
			out = append(out, ev)
		}
	}
	return out
}

// BackgroundTick emits at most one event for a random region of the
// active world, or of a random known world when none is active.
func (e *Engine) BackgroundTick() (Event, bool) {
	w := e.targetWorld()
	if w == nil {
		return Event{}, false
	}
	keys := world.Keys()
	r, err := w.Region(keys[e.rnd.IntN(len(keys))])
	if err != nil {
		e.log.Printf("background tick on %s: %v", w.Name, err)
		return Event{}, false
	}

	var (
		kind Kind
		p    = Payload{Region: r.Name}
		text string
	)
	draw := e.rnd.Float64()
	switch {
	case draw < e.tun.Story.RumorBelow:
		kind = KindRumor
		if len(r.NPCs) > 0 {
			npc := r.NPCs[e.rnd.IntN(len(r.NPCs))]
			p.NPC = npc.Name
			text = fmt.Sprintf("In %s, %s the %s passes on a rumor about movements beyond the hills.", r.Name, npc.Name, npc.Role)
		} else {
			text = fmt.Sprintf("A rumor drifts through %s, though nobody can say who started it.", r.Name)
		}
	case draw < e.tun.Story.QuestBelow:
		if len(r.Quests) == 0 {
			return Event{}, false
		}
		kind = KindQuestProgress
		q := r.Quests[e.rnd.IntN(len(r.Quests))]
		p.Quest = q.Title
		text = fmt.Sprintf("In %s, there is news on the quest %q: someone has found a new lead.", r.Name, q.Title)
	default:
		shifts := e.tun.Story.WorldShifts
		if len(shifts) == 0 {
			return Event{}, false
		}
		kind = KindWorldShift
		label := shifts[e.rnd.IntN(len(shifts))]
		p.Note = label
		text = fmt.Sprintf("%s changes the course of the day in %s.", capitalize(label), r.Name)
	}

	e.chunks = append(e.chunks, e.newChunk(text, TagBackground))
	ev := e.appendEvent(w.Name, kind, p)
	e.mood = moodOf(e.tun.Moods, text)
	return ev, true
}

func (e *Engine) targetWorld() *world.World {
	if e.worlds == nil {
		return nil
	}
	if e.activeWorld != "" {
		if w, ok := e.worlds.World(e.activeWorld); ok {
			return w
		}
	}
	names := e.worlds.WorldNames()
	if len(names) == 0 {
		return nil
	}
	w, ok := e.worlds.World(names[e.rnd.IntN(len(names))])
	if !ok {
		return nil
	}
	return w
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}

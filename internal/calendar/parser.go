// Package calendar extracts scheduled events from pasted calendar text.
//
// The expected input is a sequence of two-line blocks:
//
//	Deep Work
//	已安排：2025年8月31日 09:00 - 11:15 (GMT+8)
//
// The schedule line carries the date and clock range; the title is the
// closest non-empty line above it. Anything after the clock range is ignored.
package calendar

import (
	"iter"
	"math"
	"regexp"
	"strings"
	"time"
)

const dateTimeLayout = "2006/1/2 15:04"

var scheduleLine = regexp.MustCompile(`已安排[：:]\s*(\d{4}年\d{1,2}月\d{1,2}日)\s+(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})`)

var dateSeparators = strings.NewReplacer("年", "/", "月", "/", "日", "")

// Event is one scheduled block found in the text
type Event struct {
	Title           string    `json:"title"`
	Start           time.Time `json:"startTime"`
	End             time.Time `json:"endTime"`
	DurationMinutes int       `json:"duration"`
}

// Parse lazily yields the events in text, in line order. Candidates with an
// empty title or an unparseable timestamp are skipped. Durations are passed
// through as computed, including zero or negative ones.
// The returned sequence can be ranged over any number of times.
func Parse(text string, loc *time.Location) iter.Seq[Event] {
	if loc == nil {
		loc = time.Local
	}
	return func(yield func(Event) bool) {
		prev := ""
		rest := text
		for len(rest) > 0 {
			var line string
			if i := strings.IndexByte(rest, '\n'); i >= 0 {
				line, rest = rest[:i], rest[i+1:]
			} else {
				line, rest = rest, ""
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if ev, ok := parseBlock(prev, line, loc); ok {
				if !yield(ev) {
					return
				}
			}
			prev = line
		}
	}
}

// ParseAll collects every event from text
func ParseAll(text string, loc *time.Location) []Event {
	var events []Event
	for ev := range Parse(text, loc) {
		events = append(events, ev)
	}
	return events
}

func parseBlock(title, line string, loc *time.Location) (Event, bool) {
	m := scheduleLine.FindStringSubmatch(line)
	if m == nil || title == "" {
		return Event{}, false
	}

	date := dateSeparators.Replace(m[1])
	start, err := time.ParseInLocation(dateTimeLayout, date+" "+m[2], loc)
	if err != nil {
		return Event{}, false
	}
	end, err := time.ParseInLocation(dateTimeLayout, date+" "+m[3], loc)
	if err != nil {
		return Event{}, false
	}

	return Event{
		Title:           title,
		Start:           start,
		End:             end,
		DurationMinutes: int(math.Round(end.Sub(start).Minutes())),
	}, true
}

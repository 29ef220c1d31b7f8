// Package timestamp heuristically resolves the wall-clock time of the
// message enclosing a DOM element.
package timestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

const (
	rowSelector       = `[role="row"]`
	containerSelector = `[data-testid="msg-container"]`
	preformattedAttr  = "data-pre-plain-text"

	// How far up the ancestor chain the manual fallback walks.
	maxAncestorWalk = 15

	// Visible time labels are short; longer fragments are message text.
	maxLabelLen = 20
)

var (
	// "[14:05, 3/11/24]" — time plus date, two- or four-digit year.
	preformattedRe = regexp.MustCompile(`\[(\d{1,2}):(\d{2})(?:[^,]*)?,\s*(\d{1,2})/(\d{1,2})/(\d{2,4})\]`)

	// Leading HH:MM in a visible label.
	leadingTimeRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)
)

// Resolver finds message timestamps via three escalating strategies. Now is
// injectable because time-only labels carry no date and must be combined
// with the current day.
type Resolver struct {
	Now func() time.Time
}

// New returns a Resolver using the system clock.
func New() *Resolver {
	return &Resolver{Now: time.Now}
}

// Resolve returns the timestamp of the message containing el, or ok=false
// when no recognized shape is found. Callers with a time filter active must
// treat ok=false as "exclude", never as "include".
func (r *Resolver) Resolve(el plugin.Element) (time.Time, bool) {
	// Strategy 1: structural message row with a machine-readable attribute.
	if row, ok := el.Closest(rowSelector); ok {
		if ts, ok := r.fromContainer(row); ok {
			return ts, true
		}
	}

	// Strategy 2: message container. The visible time label may live in a
	// sibling, so the container's parent is searched too.
	if container, ok := el.Closest(containerSelector); ok {
		if ts, ok := r.fromContainer(container); ok {
			return ts, true
		}
		if parent, ok := container.Parent(); ok {
			if ts, ok := r.fromContainer(parent); ok {
				return ts, true
			}
		}
	}

	// Strategy 3: manual ancestor walk.
	current, ok := el.Parent()
	for i := 0; i < maxAncestorWalk && ok; i++ {
		if ts, found := r.fromContainer(current); found {
			return ts, true
		}
		current, ok = current.Parent()
	}

	return time.Time{}, false
}

func (r *Resolver) fromContainer(container plugin.Element) (time.Time, bool) {
	if container == nil {
		return time.Time{}, false
	}

	// Pre-formatted attribute: full date and time.
	if pre, ok := container.Query("[" + preformattedAttr + "]"); ok {
		if attr, ok := pre.Attr(preformattedAttr); ok {
			if ts, ok := parsePreformatted(attr); ok {
				return ts, true
			}
		}
	}
	if attr, ok := container.Attr(preformattedAttr); ok {
		if ts, ok := parsePreformatted(attr); ok {
			return ts, true
		}
	}

	// Visible HH:MM label in a short span, combined with today's date.
	for _, span := range container.QueryAll("span") {
		text := strings.TrimSpace(span.Text())
		if len(text) >= maxLabelLen {
			continue
		}

		m := leadingTimeRe.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		if hours > 23 || minutes > 59 {
			continue
		}

		now := r.now()
		return time.Date(now.Year(), now.Month(), now.Day(), hours, minutes, 0, 0, now.Location()), true
	}

	return time.Time{}, false
}

func parsePreformatted(attr string) (time.Time, bool) {
	m := preformattedRe.FindStringSubmatch(attr)
	if m == nil {
		return time.Time{}, false
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	month, _ := strconv.Atoi(m[4])
	year, _ := strconv.Atoi(m[5])

	if year < 100 {
		year += 2000
	}

	return time.Date(year, time.Month(month), day, hours, minutes, 0, 0, time.Local), true
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

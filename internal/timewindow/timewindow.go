// Package timewindow owns every timezone conversion and phase decision for
// elections. Everything outside this package handles absolute UTC instants only.
package timewindow

import (
	"fmt"
	"strings"
	"time"

	"github.com/electvote/electvote/internal/errors"
	"github.com/electvote/electvote/internal/models"
)

// Layout is the stored form of an instant. It is fixed width and always UTC,
// so comparing two stored strings orders them chronologically.
const Layout = "2006-01-02T15:04:05.000000000Z"

// maxOffsetMinutes bounds a client-declared UTC offset (UTC-14:00 .. UTC+14:00)
const maxOffsetMinutes = 14 * 60

// Phase is the derived classification of an election relative to now
type Phase string

const (
	PhaseScheduled Phase = "scheduled"
	PhaseOngoing   Phase = "ongoing"
	PhaseEnded     Phase = "ended"

	// PhaseCancelled is reported by Status only. Classify folds it into PhaseEnded.
	PhaseCancelled Phase = "cancelled"
)

// wall-clock layouts submitted by browsers without zone information
var localLayouts = map[int]string{
	len("2006-01-02T15:04"):    "2006-01-02T15:04",
	len("2006-01-02T15:04:05"): "2006-01-02T15:04:05",
}

// zoned layouts accepted as already absolute
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

// FormatInstant renders t in the stored layout
func FormatInstant(t time.Time) string {
	return t.UTC().Format(Layout)
}

// ParseInstant reads a stored instant. Values written by older releases in
// plain RFC 3339 are accepted and converted to UTC.
func ParseInstant(stored string) (time.Time, error) {
	if t, err := time.Parse(Layout, stored); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, stored)
	if err != nil {
		return time.Time{}, errors.Malformed(err, fmt.Sprintf("malformed timestamp %q", stored))
	}
	return t.UTC(), nil
}

// NormalizeLocal converts a wall-clock string entered in the client's local
// time into an absolute instant. offsetMinutes is the client's offset east of
// UTC, so UTC = local - offset. Strings that carry their own zone are honoured
// and the offset is ignored.
func NormalizeLocal(wallClock string, offsetMinutes int) (time.Time, error) {
	if offsetMinutes < -maxOffsetMinutes || offsetMinutes > maxOffsetMinutes {
		return time.Time{}, errors.Validationf("timezone offset %d minutes is out of range", offsetMinutes)
	}
	return NormalizeInZone(wallClock, time.FixedZone("client", offsetMinutes*60))
}

// NormalizeInZone converts a wall-clock string interpreted in loc into an
// absolute instant. A nil loc means UTC.
func NormalizeInZone(wallClock string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(wallClock)
	if s == "" {
		return time.Time{}, errors.Validation("time is required")
	}
	s = strings.Replace(s, " ", "T", 1)

	if hasZone(s) {
		for _, layout := range zonedLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, errors.Validationf("invalid time %q", wallClock)
	}

	layout, ok := localLayouts[len(s)]
	if !ok {
		return time.Time{}, errors.Validationf("invalid time %q: expected YYYY-MM-DDTHH:MM[:SS]", wallClock)
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, errors.Validationf("invalid time %q", wallClock)
	}
	return t.UTC(), nil
}

// hasZone reports whether s ends in a zone designator (Z, +hh:mm, -hh:mm)
func hasZone(s string) bool {
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		return true
	}
	// the date part contains '-' too, so only look past the time separator
	idx := strings.IndexByte(s, 'T')
	if idx < 0 {
		return false
	}
	return strings.ContainsAny(s[idx:], "+-")
}

// ValidateWindow fails with InvalidWindow unless end is strictly after start
func ValidateWindow(start, end time.Time) error {
	if !end.After(start) {
		return errors.Newf(errors.ErrInvalidWindow, "end %s must be after start %s", FormatInstant(end), FormatInstant(start))
	}
	return nil
}

// Classify derives the phase. Both bounds are inclusive and a cancelled
// election is always ended.
func Classify(start, end time.Time, cancelled bool, now time.Time) Phase {
	switch {
	case cancelled:
		return PhaseEnded
	case now.Before(start):
		return PhaseScheduled
	case now.After(end):
		return PhaseEnded
	default:
		return PhaseOngoing
	}
}

// ClassifyElection parses the stored window of e and classifies it
func ClassifyElection(e models.Election, now time.Time) (Phase, error) {
	start, err := ParseInstant(e.StartTime)
	if err != nil {
		return "", err
	}
	end, err := ParseInstant(e.EndTime)
	if err != nil {
		return "", err
	}
	return Classify(start, end, e.Cancelled(), now), nil
}

// Status is the display status of e: the phase, or cancelled when the
// terminal cancellation has been recorded.
func Status(e models.Election, now time.Time) (Phase, error) {
	phase, err := ClassifyElection(e, now)
	if err != nil {
		return "", err
	}
	if e.Cancelled() {
		return PhaseCancelled, nil
	}
	return phase, nil
}

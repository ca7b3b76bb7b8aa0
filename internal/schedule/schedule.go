// Package schedule derives review status from a work item's update history.
// It is pure: callers load the history (ordered by insertion) and pass the
// current instant explicitly.
package schedule

import (
	"time"

	"upkeep/internal/domain"
)

// DueSoonWindow is how far ahead a review date still counts as "due soon".
// Both bounds of [now, now+window] are inclusive.
const DueSoonWindow = 30 * 24 * time.Hour

type Status string

const (
	StatusOutstanding Status = "outstanding"
	StatusDueSoon     Status = "due_soon"
	StatusCurrent     Status = "current"
)

// Stored timestamp layouts. Rows written by this service carry an offset;
// rows imported from older data may be naive (no offset), and a handful use
// a space separator.
var storedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseStored parses a stored timestamp. Naive values (no zone offset) are
// read as UTC wall-clock time so they compare against a zone-stripped now;
// this can be a day off near midnight for non-UTC writers, which we accept
// rather than rejecting old rows.
func parseStored(s string) (time.Time, bool) {
	for _, layout := range storedLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Outstanding reports whether an item needs attention: it has no updates at
// all, or any update in its history carries a review date that has already
// passed. The whole history is inspected, not just the latest update.
func Outstanding(updates []domain.Update, now time.Time) bool {
	if len(updates) == 0 {
		return true
	}
	ref := now.UTC()
	for _, u := range updates {
		if u.ReviewDate == nil {
			continue
		}
		rd, ok := parseStored(*u.ReviewDate)
		if !ok {
			continue
		}
		if rd.Before(ref) {
			return true
		}
	}
	return false
}

// DueSoon reports whether any update carries a review date inside
// [now, now+DueSoonWindow]. Independent of Outstanding: an item with one
// expired and one upcoming review date is a member of both sets.
func DueSoon(updates []domain.Update, now time.Time) bool {
	ref := now.UTC()
	horizon := ref.Add(DueSoonWindow)
	for _, u := range updates {
		if u.ReviewDate == nil {
			continue
		}
		rd, ok := parseStored(*u.ReviewDate)
		if !ok {
			continue
		}
		if !rd.Before(ref) && !rd.After(horizon) {
			return true
		}
	}
	return false
}

// Classify collapses the two membership tests into a single display status,
// outstanding taking precedence.
func Classify(updates []domain.Update, now time.Time) Status {
	if Outstanding(updates, now) {
		return StatusOutstanding
	}
	if DueSoon(updates, now) {
		return StatusDueSoon
	}
	return StatusCurrent
}

// DaysSinceLastUpdate returns whole days elapsed since the chronologically
// last update (the last appended, not the earliest). Nil when the item has
// no updates or the stored timestamp cannot be read.
func DaysSinceLastUpdate(updates []domain.Update, now time.Time) *int {
	if len(updates) == 0 {
		return nil
	}
	last := updates[len(updates)-1]
	created, ok := parseStored(last.CreatedAt)
	if !ok {
		return nil
	}
	days := int(now.UTC().Sub(created).Hours()) / 24
	return &days
}

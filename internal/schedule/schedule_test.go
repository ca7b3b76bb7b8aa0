package schedule_test

import (
	"testing"
	"time"

	"upkeep/internal/domain"
	"upkeep/internal/schedule"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func upd(id int64, reviewDate *time.Time, createdAt time.Time) domain.Update {
	u := domain.Update{
		ID:        id,
		Narrative: "checked",
		CreatedAt: createdAt.Format(time.RFC3339),
	}
	if reviewDate != nil {
		s := reviewDate.Format(time.RFC3339)
		u.ReviewDate = &s
	}
	return u
}

func ts(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestOutstandingNoUpdates(t *testing.T) {
	if !schedule.Outstanding(nil, now) {
		t.Fatal("item without updates must be outstanding")
	}
	if !schedule.Outstanding(nil, now.Add(-10*365*24*time.Hour)) {
		t.Fatal("outstanding regardless of now")
	}
}

func TestOutstandingPastReviewDate(t *testing.T) {
	past := []domain.Update{upd(1, ts(-24*time.Hour), now.Add(-48*time.Hour))}
	if !schedule.Outstanding(past, now) {
		t.Fatal("expired review date must be outstanding")
	}
	future := []domain.Update{upd(1, ts(24*time.Hour), now.Add(-48*time.Hour))}
	if schedule.Outstanding(future, now) {
		t.Fatal("upcoming review date is not outstanding")
	}
	if !schedule.DueSoon(future, now) {
		t.Fatal("review date tomorrow is due soon")
	}
}

func TestOutstandingInspectsWholeHistory(t *testing.T) {
	// the latest update is clean but an older one expired
	updates := []domain.Update{
		upd(1, ts(-5*24*time.Hour), now.Add(-10*24*time.Hour)),
		upd(2, nil, now.Add(-time.Hour)),
	}
	if !schedule.Outstanding(updates, now) {
		t.Fatal("expired review date anywhere in history makes the item outstanding")
	}
}

func TestOutstandingNullReviewDates(t *testing.T) {
	updates := []domain.Update{
		upd(1, nil, now.Add(-48*time.Hour)),
		upd(2, nil, now.Add(-24*time.Hour)),
	}
	if schedule.Outstanding(updates, now) {
		t.Fatal("null review dates never expire")
	}
	if schedule.DueSoon(updates, now) {
		t.Fatal("null review dates are never due soon")
	}
	if got := schedule.Classify(updates, now); got != schedule.StatusCurrent {
		t.Fatalf("expected current, got %s", got)
	}
}

func TestDueSoonBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		offset  time.Duration
		dueSoon bool
	}{
		{"exactly now", 0, true},
		{"in 5 days", 5 * 24 * time.Hour, true},
		{"exactly 30 days", 30 * 24 * time.Hour, true},
		{"31 days out", 31 * 24 * time.Hour, false},
		{"one second past window", 30*24*time.Hour + time.Second, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			updates := []domain.Update{upd(1, ts(tc.offset), now.Add(-time.Hour))}
			if got := schedule.DueSoon(updates, now); got != tc.dueSoon {
				t.Fatalf("DueSoon=%v, want %v", got, tc.dueSoon)
			}
		})
	}
	// 31 days out is neither outstanding nor due soon
	far := []domain.Update{upd(1, ts(31*24*time.Hour), now.Add(-time.Hour))}
	if schedule.Outstanding(far, now) {
		t.Fatal("future review date is not outstanding")
	}
	if got := schedule.Classify(far, now); got != schedule.StatusCurrent {
		t.Fatalf("expected current, got %s", got)
	}
}

func TestDualMembership(t *testing.T) {
	updates := []domain.Update{
		upd(1, ts(-5*24*time.Hour), now.Add(-6*24*time.Hour)),
		upd(2, ts(5*24*time.Hour), now.Add(-time.Hour)),
	}
	if !schedule.Outstanding(updates, now) {
		t.Fatal("expected outstanding membership")
	}
	if !schedule.DueSoon(updates, now) {
		t.Fatal("expected due-soon membership")
	}
}

func TestDaysSinceUsesLastUpdate(t *testing.T) {
	t1 := now.Add(-10 * 24 * time.Hour)
	t2 := now.Add(-3 * 24 * time.Hour)
	updates := []domain.Update{upd(1, nil, t1), upd(2, nil, t2)}
	got := schedule.DaysSinceLastUpdate(updates, now)
	if got == nil || *got != 3 {
		t.Fatalf("expected 3 days from the last update, got %v", got)
	}
	if schedule.DaysSinceLastUpdate(nil, now) != nil {
		t.Fatal("no updates means no days-since value")
	}
}

func TestDaysSinceNaiveTimestamp(t *testing.T) {
	// naive createdAt (no offset) compares against a zone-stripped now
	updates := []domain.Update{{
		ID:        1,
		Narrative: "legacy row",
		CreatedAt: now.Add(-7 * 24 * time.Hour).Format("2006-01-02T15:04:05"),
	}}
	got := schedule.DaysSinceLastUpdate(updates, now)
	if got == nil || *got != 7 {
		t.Fatalf("expected 7 days for naive timestamp, got %v", got)
	}
}

func TestNaiveReviewDate(t *testing.T) {
	naivePast := now.Add(-24 * time.Hour).Format("2006-01-02 15:04:05")
	updates := []domain.Update{{ID: 1, ReviewDate: &naivePast, CreatedAt: now.Format(time.RFC3339)}}
	if !schedule.Outstanding(updates, now) {
		t.Fatal("naive past review date must still read as expired")
	}
}

func TestUnparseableTimestampsIgnored(t *testing.T) {
	bad := "not-a-date"
	updates := []domain.Update{{ID: 1, ReviewDate: &bad, CreatedAt: "also-bad"}}
	if schedule.Outstanding(updates, now) {
		t.Fatal("unreadable review date must not classify as outstanding")
	}
	if schedule.DueSoon(updates, now) {
		t.Fatal("unreadable review date must not classify as due soon")
	}
	if schedule.DaysSinceLastUpdate(updates, now) != nil {
		t.Fatal("unreadable created_at yields no days-since value")
	}
}

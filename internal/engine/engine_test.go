package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"upkeep/internal/config"
	"upkeep/internal/db"
	"upkeep/internal/domain"
	"upkeep/internal/engine"
	"upkeep/internal/migrate"
	"upkeep/internal/repo"
)

const hallTemplate = `## Safety
- Check extinguishers
- Test emergency lighting

## Kitchen
- Clean filters
`

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	OrgID  int64
	UserID int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	org, err := eng.CreateOrganization(ctx, "Riverside Trust", "1 River Way", nil, 0)
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	u, err := eng.RegisterUser(ctx, org.ID, "admin@riverside.test", "s3cret", "Admin", domain.RoleAdmin, 0)
	if err != nil {
		t.Fatalf("register user: %v", err)
	}
	return &testEnv{Engine: eng, Ctx: ctx, OrgID: org.ID, UserID: u.ID}
}

func (env *testEnv) location(t *testing.T, name string) domain.Location {
	t.Helper()
	l, err := env.Engine.CreateLocation(env.Ctx, env.OrgID, name, "2 High St", env.UserID)
	if err != nil {
		t.Fatalf("create location: %v", err)
	}
	return l
}

func (env *testEnv) assetType(t *testing.T, name, tmpl string) domain.AssetType {
	t.Helper()
	at, err := env.Engine.CreateAssetType(env.Ctx, name, "", tmpl, env.UserID)
	if err != nil {
		t.Fatalf("create asset type: %v", err)
	}
	return at
}

func TestAttachAssetGeneratesChecklist(t *testing.T) {
	env := newTestEnv(t)
	loc := env.location(t, "Hall")
	at := env.assetType(t, "Community Hall", hallTemplate)

	res, err := env.Engine.AttachAsset(env.Ctx, loc.ID, at.ID, env.UserID)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if len(res.Areas) != 2 {
		t.Fatalf("areas = %d, want 2", len(res.Areas))
	}
	if res.Areas[0].Area.Statement != "Safety" || res.Areas[1].Area.Statement != "Kitchen" {
		t.Fatalf("area statements = %q, %q", res.Areas[0].Area.Statement, res.Areas[1].Area.Statement)
	}
	if len(res.Areas[0].Items) != 2 || len(res.Areas[1].Items) != 1 {
		t.Fatalf("item counts = %d, %d", len(res.Areas[0].Items), len(res.Areas[1].Items))
	}
	for _, gen := range res.Areas {
		if !gen.Area.IsRelevant {
			t.Fatalf("area %q not relevant", gen.Area.Statement)
		}
	}

	// Everything is persisted, not just echoed back.
	areas, err := env.Engine.Repo.ListWorkAreas(env.Ctx, res.Asset.ID)
	if err != nil || len(areas) != 2 {
		t.Fatalf("persisted areas = %d (%v), want 2", len(areas), err)
	}
	items, err := env.Engine.Repo.ListWorkItems(env.Ctx, areas[0].ID)
	if err != nil || len(items) != 2 {
		t.Fatalf("persisted items = %d (%v), want 2", len(items), err)
	}
}

func TestAttachAssetTwiceDuplicates(t *testing.T) {
	env := newTestEnv(t)
	loc := env.location(t, "Hall")
	at := env.assetType(t, "Community Hall", hallTemplate)

	first, err := env.Engine.AttachAsset(env.Ctx, loc.ID, at.ID, env.UserID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.Engine.AttachAsset(env.Ctx, loc.ID, at.ID, env.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if first.Asset.ID == second.Asset.ID {
		t.Fatalf("expected two distinct assets")
	}
	stats, err := env.Engine.DashboardStats(env.Ctx, env.OrgID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 6 {
		t.Fatalf("total items = %d, want 6 (two independent copies)", stats.TotalItems)
	}
}

func TestAttachAssetEmptyTemplateGeneratesNothing(t *testing.T) {
	env := newTestEnv(t)
	loc := env.location(t, "Hall")
	at := env.assetType(t, "Blank", "just prose, no headings")

	res, err := env.Engine.AttachAsset(env.Ctx, loc.ID, at.ID, env.UserID)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if len(res.Areas) != 0 {
		t.Fatalf("areas = %d, want 0", len(res.Areas))
	}
}

func TestAttachAssetRollsBackMidGeneration(t *testing.T) {
	env := newTestEnv(t)
	loc := env.location(t, "Hall")
	at := env.assetType(t, "Community Hall", hallTemplate)

	// Reject the last item of the template so generation fails after the
	// asset, both areas and two items have already been written.
	if _, err := env.Engine.DB.Exec(`CREATE TRIGGER reject_filter_item
		BEFORE INSERT ON work_items
		WHEN NEW.statement = 'Clean filters'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := env.Engine.AttachAsset(env.Ctx, loc.ID, at.ID, env.UserID); err == nil {
		t.Fatal("attach succeeded, want error")
	}

	for _, table := range []string{"location_assets", "work_areas", "work_items"} {
		var n int
		if err := env.Engine.DB.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Fatalf("%s rows = %d, want 0", table, n)
		}
	}
}

func TestAttachAssetUnknownLocation(t *testing.T) {
	env := newTestEnv(t)
	at := env.assetType(t, "Community Hall", hallTemplate)
	_, err := env.Engine.AttachAsset(env.Ctx, 9999, at.ID, env.UserID)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCreateAssetTypeDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	env.assetType(t, "Community Hall", hallTemplate)
	_, err := env.Engine.CreateAssetType(env.Ctx, "Community Hall", "", hallTemplate, env.UserID)
	if !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestSetAreaRelevance(t *testing.T) {
	env := newTestEnv(t)
	loc := env.location(t, "Hall")
	at := env.assetType(t, "Community Hall", hallTemplate)
	res, err := env.Engine.AttachAsset(env.Ctx, loc.ID, at.ID, env.UserID)
	if err != nil {
		t.Fatal(err)
	}
	area, err := env.Engine.SetAreaRelevance(env.Ctx, res.Areas[0].Area.ID, false, env.UserID)
	if err != nil {
		t.Fatalf("set relevance: %v", err)
	}
	if area.IsRelevant {
		t.Fatalf("area still relevant")
	}
	// Items stay in place.
	items, err := env.Engine.Repo.ListWorkItems(env.Ctx, area.ID)
	if err != nil || len(items) != 2 {
		t.Fatalf("items after toggle = %d (%v), want 2", len(items), err)
	}
}

func TestDashboardLifecycle(t *testing.T) {
	env := newTestEnv(t)
	loc := env.location(t, "Hall")
	at := env.assetType(t, "Community Hall", hallTemplate)
	res, err := env.Engine.AttachAsset(env.Ctx, loc.ID, at.ID, env.UserID)
	if err != nil {
		t.Fatal(err)
	}

	// Freshly generated items have no updates: all outstanding.
	stats, err := env.Engine.DashboardStats(env.Ctx, env.OrgID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.OutstandingCount != 3 || stats.TotalItems != 3 || stats.DueSoonCount != 0 {
		t.Fatalf("fresh stats = %+v", stats)
	}

	item := res.Areas[0].Items[0]
	future := env.Engine.Now().Add(10 * 24 * time.Hour).Format(time.RFC3339)
	if _, err := env.Engine.AddUpdate(env.Ctx, item.ID, env.UserID, "inspected, revisit later", &future); err != nil {
		t.Fatalf("add update: %v", err)
	}

	stats, err = env.Engine.DashboardStats(env.Ctx, env.OrgID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.OutstandingCount != 2 {
		t.Fatalf("outstanding = %d, want 2", stats.OutstandingCount)
	}
	if stats.DueSoonCount != 1 {
		t.Fatalf("due soon = %d, want 1", stats.DueSoonCount)
	}

	due, err := env.Engine.DashboardDueSoon(env.Ctx, env.OrgID)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].ID != item.ID {
		t.Fatalf("due soon list = %+v", due)
	}
	if due[0].LocationName != "Hall" || due[0].WorkAreaStatement != "Safety" {
		t.Fatalf("context = %q / %q", due[0].LocationName, due[0].WorkAreaStatement)
	}
	if due[0].DaysSinceUpdate == nil || *due[0].DaysSinceUpdate != 0 {
		t.Fatalf("days since update = %v, want 0", due[0].DaysSinceUpdate)
	}

	outstanding, err := env.Engine.DashboardOutstanding(env.Ctx, env.OrgID)
	if err != nil {
		t.Fatal(err)
	}
	if len(outstanding) != 2 {
		t.Fatalf("outstanding list = %d, want 2", len(outstanding))
	}
	for _, o := range outstanding {
		if o.DaysSinceUpdate != nil {
			t.Fatalf("never-updated item has days_since_update %v", o.DaysSinceUpdate)
		}
	}
}

func TestDashboardDualMembership(t *testing.T) {
	env := newTestEnv(t)
	loc := env.location(t, "Hall")
	at := env.assetType(t, "Single", "## Area\n- Task\n")
	res, err := env.Engine.AttachAsset(env.Ctx, loc.ID, at.ID, env.UserID)
	if err != nil {
		t.Fatal(err)
	}
	item := res.Areas[0].Items[0]

	past := env.Engine.Now().Add(-48 * time.Hour).Format(time.RFC3339)
	future := env.Engine.Now().Add(5 * 24 * time.Hour).Format(time.RFC3339)
	if _, err := env.Engine.AddUpdate(env.Ctx, item.ID, env.UserID, "first pass", &past); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AddUpdate(env.Ctx, item.ID, env.UserID, "follow up planned", &future); err != nil {
		t.Fatal(err)
	}

	stats, err := env.Engine.DashboardStats(env.Ctx, env.OrgID)
	if err != nil {
		t.Fatal(err)
	}
	// One expired plus one upcoming review date puts the item in both sets.
	if stats.OutstandingCount != 1 || stats.DueSoonCount != 1 || stats.TotalItems != 1 {
		t.Fatalf("stats = %+v, want dual membership", stats)
	}
}

func TestDashboardScopedToOrganization(t *testing.T) {
	env := newTestEnv(t)
	loc := env.location(t, "Hall")
	at := env.assetType(t, "Community Hall", hallTemplate)
	if _, err := env.Engine.AttachAsset(env.Ctx, loc.ID, at.ID, env.UserID); err != nil {
		t.Fatal(err)
	}

	other, err := env.Engine.CreateOrganization(env.Ctx, "Other Trust", "", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := env.Engine.DashboardStats(env.Ctx, other.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 0 || stats.OutstandingCount != 0 {
		t.Fatalf("foreign org sees items: %+v", stats)
	}
}

func TestRegisterUserDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.RegisterUser(env.Ctx, env.OrgID, "admin@riverside.test", "pw", "", domain.RoleViewer, env.UserID)
	if !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.Authenticate(env.Ctx, "admin@riverside.test", "s3cret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.Role != domain.RoleAdmin {
		t.Fatalf("role = %s", u.Role)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "admin@riverside.test", "wrong"); err == nil {
		t.Fatalf("expected credential error")
	}
	if _, err := env.Engine.SetUserActive(env.Ctx, u.ID, false, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "admin@riverside.test", "s3cret"); err == nil {
		t.Fatalf("disabled account should not authenticate")
	}
}

func TestAPIKeyLookup(t *testing.T) {
	env := newTestEnv(t)
	k, plaintext, err := env.Engine.IssueAPIKey(env.Ctx, env.UserID, "ci", env.UserID)
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	u, err := env.Engine.Repo.GetUserByAPIKey(env.Ctx, plaintext)
	if err != nil {
		t.Fatalf("lookup by key: %v", err)
	}
	if u.ID != env.UserID {
		t.Fatalf("key resolves to user %d", u.ID)
	}
	if err := env.Engine.RevokeAPIKey(env.Ctx, k.ID, env.UserID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Repo.GetUserByAPIKey(env.Ctx, plaintext); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("revoked key still valid: %v", err)
	}
}

func TestSeedTemplates(t *testing.T) {
	env := newTestEnv(t)
	n, err := env.Engine.SeedTemplates(env.Ctx, env.UserID)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected stock catalog to create asset types")
	}
	// Rerunning is a no-op.
	again, err := env.Engine.SeedTemplates(env.Ctx, env.UserID)
	if err != nil || again != 0 {
		t.Fatalf("second seed = %d (%v), want 0", again, err)
	}
}

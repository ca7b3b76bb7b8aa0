package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"upkeep/internal/config"
	"upkeep/internal/db"
	"upkeep/internal/domain"
	"upkeep/internal/engine"
	"upkeep/internal/migrate"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return time.Now() }
	ctx := context.Background()
	org, err := e.CreateOrganization(ctx, "Riverside Trust", "", nil, 0)
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	if _, err := e.RegisterUser(ctx, org.ID, "admin@riverside.test", "s3cret", "Admin", domain.RoleAdmin, 0); err != nil {
		t.Fatalf("register admin: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: testJWTSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func login(t *testing.T, srv *testServer, email, password string) map[string]string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, data)
	}
	var body TokenResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + body.AccessToken}
}

func TestHealthNoAuth(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/locations", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
}

func TestLoginBadPassword(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"email":    "admin@riverside.test",
		"password": "nope",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
}

func TestAttachAssetFlow(t *testing.T) {
	srv := newTestServer(t)
	hdr := login(t, srv, "admin@riverside.test", "s3cret")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/locations", map[string]any{
		"name":    "Hall",
		"address": "2 High St",
	}, hdr)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create location: %d %s", res.StatusCode, data)
	}
	var loc domain.Location
	if err := json.Unmarshal(data, &loc); err != nil {
		t.Fatal(err)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/asset-types", map[string]any{
		"name":     "Community Hall",
		"template": "## Safety\n- Check extinguishers\n- Test lighting\n\n## Kitchen\n- Clean filters\n",
	}, hdr)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create asset type: %d %s", res.StatusCode, data)
	}
	var at domain.AssetType
	if err := json.Unmarshal(data, &at); err != nil {
		t.Fatal(err)
	}

	// Duplicate name is a conflict.
	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/asset-types", map[string]any{
		"name":     "Community Hall",
		"template": "## X\n- y\n",
	}, hdr)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate asset type: %d, want 409", res.StatusCode)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/locations/"+itoa(loc.ID)+"/assets", map[string]any{
		"asset_type_id": at.ID,
	}, hdr)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("attach: %d %s", res.StatusCode, data)
	}
	var attach engine.AttachResult
	if err := json.Unmarshal(data, &attach); err != nil {
		t.Fatal(err)
	}
	if len(attach.Areas) != 2 || len(attach.Areas[0].Items) != 2 {
		t.Fatalf("generated structure: %s", data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboard/stats", nil, hdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats: %d %s", res.StatusCode, data)
	}
	var stats domain.DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 3 || stats.OutstandingCount != 3 {
		t.Fatalf("stats = %+v", stats)
	}

	// Add an update with an upcoming review date, then check due-soon.
	item := attach.Areas[0].Items[0]
	future := time.Now().UTC().Add(7 * 24 * time.Hour).Format(time.RFC3339)
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/items/"+itoa(item.ID)+"/updates", map[string]any{
		"narrative":   "inspected",
		"review_date": future,
	}, hdr)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add update: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboard/due-soon", nil, hdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("due-soon: %d %s", res.StatusCode, data)
	}
	var due []domain.DashboardItem
	if err := json.Unmarshal(data, &due); err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].ID != item.ID || due[0].LocationName != "Hall" {
		t.Fatalf("due-soon = %s", data)
	}
}

func TestViewerCannotMutate(t *testing.T) {
	srv := newTestServer(t)
	adminHdr := login(t, srv, "admin@riverside.test", "s3cret")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, adminHdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, data)
	}
	var me MeResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatal(err)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/register", map[string]any{
		"organization_id": me.User.OrganizationID,
		"email":           "viewer@riverside.test",
		"password":        "pw",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d", res.StatusCode)
	}
	viewerHdr := login(t, srv, "viewer@riverside.test", "pw")

	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/locations", map[string]any{
		"name": "Annex",
	}, viewerHdr)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer create location: %d, want 403", res.StatusCode)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/locations", nil, viewerHdr)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("viewer list locations: %d", res.StatusCode)
	}
}

func TestSelfRegistrationCannotEscalate(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/register", map[string]any{
		"organization_id": 1,
		"email":           "sneaky@riverside.test",
		"password":        "pw",
		"role":            "admin",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d %s", res.StatusCode, data)
	}
	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatal(err)
	}
	if u.Role != domain.RoleViewer {
		t.Fatalf("role = %s, want viewer", u.Role)
	}
}

func TestManagerRoleBoundaries(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	if _, err := srv.Engine.RegisterUser(ctx, 1, "manager@riverside.test", "s3cret", "Manager", domain.RoleManager, 0); err != nil {
		t.Fatalf("register manager: %v", err)
	}
	hdr := login(t, srv, "manager@riverside.test", "s3cret")

	// Asset types are shared across organizations, so only admins define them.
	res, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/asset-types", map[string]any{
		"name":     "Lift",
		"template": "## Shaft\n- Inspect cables\n",
	}, hdr)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("manager create asset type: %d, want 403", res.StatusCode)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/organizations", map[string]any{
		"name": "Annex Trust",
	}, hdr)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("manager create organization: %d %s", res.StatusCode, data)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t)
	hdr := login(t, srv, "admin@riverside.test", "s3cret")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/apikeys", map[string]any{
		"name": "ci",
	}, hdr)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("issue key: %d %s", res.StatusCode, data)
	}
	var key IssueAPIKeyResponse
	if err := json.Unmarshal(data, &key); err != nil {
		t.Fatal(err)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me via key: %d %s", res.StatusCode, data)
	}
	var me MeResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatal(err)
	}
	if me.Via != "api_key" {
		t.Fatalf("via = %s", me.Via)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/apikeys/"+key.ID, nil, hdr)
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("revoke: %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked key: %d, want 401", res.StatusCode)
	}
}

func TestCrossOrgHidden(t *testing.T) {
	srv := newTestServer(t)
	hdr := login(t, srv, "admin@riverside.test", "s3cret")

	// Second org with its own admin and a location.
	ctx := context.Background()
	other, err := srv.Engine.CreateOrganization(ctx, "Other Trust", "", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Engine.RegisterUser(ctx, other.ID, "admin@other.test", "pw", "", domain.RoleAdmin, 0); err != nil {
		t.Fatal(err)
	}
	foreignLoc, err := srv.Engine.CreateLocation(ctx, other.ID, "Foreign Hall", "", 0)
	if err != nil {
		t.Fatal(err)
	}

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/locations/"+itoa(foreignLoc.ID), nil, hdr)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign location: %d, want 404", res.StatusCode)
	}
}

func TestWebhookDispatcherStopsOnCancel(t *testing.T) {
	srv := newTestServer(t)
	d := &webhookDispatcher{
		engine:   srv.Engine,
		webhooks: []config.WebhookConfig{{URL: "http://127.0.0.1:0/hook"}},
		client:   &http.Client{Timeout: time.Second},
		cursors:  make(map[int]int64),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		d.run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher kept polling after cancel")
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

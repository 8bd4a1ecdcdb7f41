package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/culturearts/portal/internal/access"
	"github.com/culturearts/portal/internal/db"
	"github.com/culturearts/portal/internal/model"
	"github.com/culturearts/portal/internal/queue"
	"github.com/culturearts/portal/internal/session"
	"github.com/culturearts/portal/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testPassword  = "password123"

	adminEmail    = "admin@portal.test"
	malvarEmail   = "staff.malvar@portal.test"
	lipaEmail     = "head.lipa@portal.test"
	viewOnlyEmail = "mark.central@g.batstate-u.edu.ph"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.InventoryEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.InventoryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type testEnv struct {
	server *httptest.Server
	pub    *recordingPublisher
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	users := []struct{ email, role, campus string }{
		{adminEmail, model.RoleAdmin, "Pablo Borbon"},
		{malvarEmail, model.RoleStaff, "Malvar"},
		{lipaEmail, model.RoleHead, "Lipa"},
		{viewOnlyEmail, model.RoleCentral, "Pablo Borbon"},
	}
	for _, u := range users {
		if _, err := store.CreateUser(ctx, database, u.email, "", string(hash), u.role, u.campus); err != nil {
			t.Fatalf("CreateUser %s: %v", u.email, err)
		}
	}

	policy, err := store.LoadPolicy(ctx, database, access.DefaultHQCampus)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}

	pub := &recordingPublisher{}
	router := NewRouter(Config{
		DB:         database,
		JWTSecret:  testJWTSecret,
		Policy:     policy,
		Sessions:   session.NewMemoryStore(time.Hour),
		Limiter:    session.NewMemoryLimiter(3, time.Minute),
		Publisher:  pub,
		SessionTTL: time.Hour,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, pub: pub}
}

// call sends a JSON request and decodes the JSON response envelope.
func (e *testEnv) call(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	status, body := e.call(t, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": testPassword})
	if status != http.StatusOK {
		t.Fatalf("login %s: %d %v", email, status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("empty token for %s", email)
	}
	return token
}

// id extracts a numeric id from body[key][field].
func id(t *testing.T, body map[string]any, key string) int64 {
	t.Helper()
	obj, ok := body[key].(map[string]any)
	if !ok {
		t.Fatalf("missing %q in %v", key, body)
	}
	n, ok := obj["id"].(float64)
	if !ok {
		t.Fatalf("missing id in %q: %v", key, obj)
	}
	return int64(n)
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	status, body := env.call(t, "POST", "/api/auth/login", "", map[string]string{"email": adminEmail, "password": "wrong"})
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", status)
	}
	if body["success"] != false {
		t.Errorf("expected success=false, got %v", body)
	}

	status, _ = env.call(t, "POST", "/api/auth/login", "", map[string]string{"email": "", "password": ""})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for empty credentials, got %d", status)
	}

	// Emails are case-insensitive.
	status, body = env.call(t, "POST", "/api/auth/login", "", map[string]string{"email": "ADMIN@portal.test", "password": testPassword})
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("expected login to succeed, got %d %v", status, body)
	}
	acc, _ := body["access"].(map[string]any)
	if acc["can_view_all"] != true || acc["can_manage"] != true {
		t.Errorf("unexpected admin access: %v", acc)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := setupTestServer(t)

	for _, path := range []string{"/api/inventory", "/api/events", "/api/dashboard", "/api/auth/me"} {
		status, body := env.call(t, "GET", path, "", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", path, status)
		}
		if body["success"] != false {
			t.Errorf("GET %s: expected success=false", path)
		}
	}

	status, _ := env.call(t, "GET", "/api/inventory", "not-a-token", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for garbage token, got %d", status)
	}
}

func TestMeResolvesAccess(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		email      string
		campus     string
		canViewAll bool
		canManage  bool
	}{
		{adminEmail, "Pablo Borbon", true, true},
		{malvarEmail, "JPLPC Malvar", false, true},
		{lipaEmail, "Lipa", false, true},
		{viewOnlyEmail, "Pablo Borbon", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			token := env.login(t, tt.email)
			status, body := env.call(t, "GET", "/api/auth/me", token, nil)
			if status != http.StatusOK {
				t.Fatalf("expected 200, got %d", status)
			}
			acc := body["access"].(map[string]any)
			if acc["campus"] != tt.campus || acc["can_view_all"] != tt.canViewAll || acc["can_manage"] != tt.canManage {
				t.Errorf("unexpected access: %v", acc)
			}
		})
	}
}

func TestCookieSession(t *testing.T) {
	env := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"email": malvarEmail, "password": testPassword})
	resp, err := http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %v", resp.Cookies())
	}

	req, _ := http.NewRequest("GET", env.server.URL+"/api/auth/me", nil)
	req.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected cookie auth to work, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := setupTestServer(t)
	token := env.login(t, adminEmail)

	if status, _ := env.call(t, "POST", "/api/auth/logout", token, nil); status != http.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	if status, _ := env.call(t, "GET", "/api/auth/me", token, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := setupTestServer(t)

	for range 3 {
		env.call(t, "POST", "/api/auth/login", "", map[string]string{"email": lipaEmail, "password": "wrong"})
	}
	status, _ := env.call(t, "POST", "/api/auth/login", "", map[string]string{"email": lipaEmail, "password": testPassword})
	if status != http.StatusTooManyRequests {
		t.Errorf("expected 429 after repeated failures, got %d", status)
	}

	// Other accounts are unaffected.
	env.login(t, malvarEmail)
}

func TestUsersAdminOnly(t *testing.T) {
	env := setupTestServer(t)
	admin := env.login(t, adminEmail)
	staff := env.login(t, malvarEmail)

	if status, _ := env.call(t, "GET", "/api/users", staff, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for staff, got %d", status)
	}

	newUser := map[string]string{
		"email": "new.staff@portal.test", "name": "New Staff", "password": "longenough",
		"role": model.RoleStaff, "campus": "Nasugbu",
	}
	status, body := env.call(t, "POST", "/api/users", admin, newUser)
	if status != http.StatusCreated {
		t.Fatalf("create user: %d %v", status, body)
	}
	user := body["user"].(map[string]any)
	if user["campus"] != "ARASOF Nasugbu" {
		t.Errorf("expected canonical campus, got %v", user["campus"])
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password hash must not be serialised")
	}

	if status, _ := env.call(t, "POST", "/api/users", admin, newUser); status != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate email, got %d", status)
	}

	newUser["email"], newUser["password"] = "short@portal.test", "short"
	if status, _ := env.call(t, "POST", "/api/users", admin, newUser); status != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", status)
	}

	status, body = env.call(t, "GET", "/api/users", admin, nil)
	if status != http.StatusOK {
		t.Fatalf("list users: %d", status)
	}
	if users := body["users"].([]any); len(users) != 5 {
		t.Errorf("expected 5 users, got %d", len(users))
	}
}

func TestUpdateUserRevokesSessions(t *testing.T) {
	env := setupTestServer(t)
	admin := env.login(t, adminEmail)
	staff := env.login(t, malvarEmail)

	_, me := env.call(t, "GET", "/api/auth/me", staff, nil)
	staffID := int64(me["actor"].(map[string]any)["user_id"].(float64))

	status, _ := env.call(t, "PUT", "/api/users/"+itoa(staffID), admin, map[string]string{
		"name": "Moved", "role": model.RoleHead, "campus": "Lipa",
	})
	if status != http.StatusOK {
		t.Fatalf("update user: %d", status)
	}
	if status, _ := env.call(t, "GET", "/api/auth/me", staff, nil); status != http.StatusUnauthorized {
		t.Errorf("expected old session revoked, got %d", status)
	}
}

func TestCannotDeleteSelfOrLastAdmin(t *testing.T) {
	env := setupTestServer(t)
	admin := env.login(t, adminEmail)
	_, me := env.call(t, "GET", "/api/auth/me", admin, nil)
	adminID := int64(me["actor"].(map[string]any)["user_id"].(float64))

	if status, _ := env.call(t, "DELETE", "/api/users/"+itoa(adminID), admin, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for self-delete, got %d", status)
	}
	if status, _ := env.call(t, "DELETE", "/api/users/9999", admin, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", status)
	}
}

func TestViewOnlyAccountCannotWrite(t *testing.T) {
	env := setupTestServer(t)
	admin := env.login(t, adminEmail)
	viewer := env.login(t, viewOnlyEmail)

	status, body := env.call(t, "POST", "/api/inventory", admin, map[string]any{
		"name": "Kimona", "category": "costume", "campus": "Lipa", "quantity": 4,
	})
	if status != http.StatusCreated {
		t.Fatalf("create item: %d %v", status, body)
	}
	itemID := id(t, body, "item")

	// Reads see every campus.
	status, body = env.call(t, "GET", "/api/inventory", viewer, nil)
	if status != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Errorf("expected viewer to see 1 item, got %d %v", status, body)
	}

	writes := []struct {
		method, path string
		body         any
	}{
		{"POST", "/api/inventory", map[string]any{"name": "X", "category": "costume", "campus": "Lipa", "quantity": 1}},
		{"POST", "/api/inventory/archive", map[string]any{"item_id": itemID}},
		{"DELETE", "/api/inventory/" + itoa(itemID), nil},
		{"POST", "/api/events", map[string]any{"title": "Gala", "campus": "Lipa", "start_date": "2026-12-01T18:00:00Z"}},
		{"POST", "/api/borrowing/approve", map[string]any{"request_id": 1}},
	}
	for _, w := range writes {
		if status, _ := env.call(t, w.method, w.path, viewer, w.body); status != http.StatusForbidden {
			t.Errorf("%s %s: expected 403, got %d", w.method, w.path, status)
		}
	}
}

func TestCampusScoping(t *testing.T) {
	env := setupTestServer(t)
	admin := env.login(t, adminEmail)
	malvar := env.login(t, malvarEmail)

	// Legacy short-form campus rows stay visible to the canonical campus.
	_, body := env.call(t, "POST", "/api/inventory", admin, map[string]any{
		"name": "Saya", "category": "costume", "campus": "JPLPC Malvar", "quantity": 3,
	})
	malvarItem := id(t, body, "item")
	_, body = env.call(t, "POST", "/api/inventory", admin, map[string]any{
		"name": "Drum", "category": "equipment", "campus": "Lipa", "quantity": 2,
	})
	lipaItem := id(t, body, "item")

	status, body := env.call(t, "GET", "/api/inventory", malvar, nil)
	if status != http.StatusOK {
		t.Fatalf("list: %d", status)
	}
	items := body["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["name"] != "Saya" {
		t.Errorf("expected only the Malvar item, got %v", items)
	}

	if status, _ := env.call(t, "GET", "/api/inventory/"+itoa(lipaItem), malvar, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for out-of-scope read, got %d", status)
	}
	if status, _ := env.call(t, "POST", "/api/inventory/archive", malvar, map[string]any{"item_id": lipaItem}); status != http.StatusForbidden {
		t.Errorf("expected 403 for out-of-scope archive, got %d", status)
	}
	if status, _ := env.call(t, "POST", "/api/inventory", malvar, map[string]any{
		"name": "Fan", "category": "costume", "campus": "Lipa", "quantity": 1,
	}); status != http.StatusForbidden {
		t.Errorf("expected 403 creating in another campus, got %d", status)
	}

	// Short-form and omitted campus both resolve to the actor's canonical campus.
	for _, campus := range []string{"Malvar", ""} {
		status, body = env.call(t, "POST", "/api/inventory", malvar, map[string]any{
			"name": "Fan", "category": "costume", "campus": campus, "quantity": 1,
		})
		if status != http.StatusCreated {
			t.Fatalf("create with campus %q: %d %v", campus, status, body)
		}
		if got := body["item"].(map[string]any)["campus"]; got != "JPLPC Malvar" {
			t.Errorf("campus %q stored as %v", campus, got)
		}
	}

	status, body = env.call(t, "GET", "/api/inventory/"+itoa(malvarItem), malvar, nil)
	if status != http.StatusOK {
		t.Fatalf("get own item: %d", status)
	}
	q := body["item"].(map[string]any)["quantities"].(map[string]any)
	if q["available_quantity"] != float64(3) || q["borrowed_quantity"] != float64(0) {
		t.Errorf("unexpected quantities: %v", q)
	}
}

func TestBorrowReturnRepairFlow(t *testing.T) {
	env := setupTestServer(t)
	staff := env.login(t, malvarEmail)

	_, body := env.call(t, "POST", "/api/students", staff, map[string]any{
		"sr_code": "22-12345", "name": "Ana Cruz", "performance_type": "dance",
	})
	studentID := id(t, body, "student")

	_, body = env.call(t, "POST", "/api/inventory", staff, map[string]any{
		"name": "Baro't Saya", "category": "costume", "quantity": 5,
	})
	itemID := id(t, body, "item")

	status, body := env.call(t, "POST", "/api/borrowing", staff, map[string]any{
		"student_id": studentID, "purpose": "Foundation day",
		"items": []map[string]any{{"id": itemID, "quantity": 3}},
	})
	if status != http.StatusCreated {
		t.Fatalf("create borrowing: %d %v", status, body)
	}
	first := id(t, body, "request")

	status, body = env.call(t, "POST", "/api/borrowing/approve", staff, map[string]any{"request_id": first})
	if status != http.StatusOK {
		t.Fatalf("approve: %d %v", status, body)
	}
	if avail := body["available"].(map[string]any)[itoa(itemID)]; avail != float64(2) {
		t.Errorf("expected 2 available after approval, got %v", avail)
	}

	// Approving twice is a wrong-state transition.
	if status, _ := env.call(t, "POST", "/api/borrowing/approve", staff, map[string]any{"request_id": first}); status != http.StatusNotFound {
		t.Errorf("expected 404 re-approving, got %d", status)
	}

	_, body = env.call(t, "POST", "/api/borrowing", staff, map[string]any{
		"student_id": studentID, "items": []map[string]any{{"id": itemID, "quantity": 3}},
	})
	second := id(t, body, "request")
	status, body = env.call(t, "POST", "/api/borrowing/approve", staff, map[string]any{"request_id": second})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 insufficient, got %d %v", status, body)
	}
	if body["available"] != float64(2) || body["requested"] != float64(3) {
		t.Errorf("unexpected insufficient body: %v", body)
	}

	// Return two good and one damaged.
	status, body = env.call(t, "POST", "/api/borrowing/return", staff, map[string]any{
		"request_id": first,
		"items": []map[string]any{
			{"id": itemID, "quantity": 2, "condition": "good"},
			{"id": itemID, "quantity": 1, "condition": "damaged", "notes": "torn sleeve"},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("submit return: %d %v", status, body)
	}
	returns := body["returns"].([]any)
	if len(returns) != 2 {
		t.Fatalf("expected 2 returns, got %v", returns)
	}

	// Nothing more is outstanding.
	status, _ = env.call(t, "POST", "/api/borrowing/return", staff, map[string]any{
		"request_id": first, "items": []map[string]any{{"id": itemID, "quantity": 1}},
	})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for over-return, got %d", status)
	}

	for _, r := range returns {
		rid := int64(r.(map[string]any)["id"].(float64))
		if status, body := env.call(t, "POST", "/api/returns/confirm", staff, map[string]any{"return_id": rid}); status != http.StatusOK {
			t.Fatalf("confirm return %d: %d %v", rid, status, body)
		}
	}

	status, body = env.call(t, "GET", "/api/borrowing/"+itoa(first), staff, nil)
	if status != http.StatusOK {
		t.Fatalf("get borrowing: %d", status)
	}
	if cs := body["request"].(map[string]any)["current_status"]; cs != model.CurrentReturned {
		t.Errorf("expected returned, got %v", cs)
	}

	_, body = env.call(t, "GET", "/api/inventory/"+itoa(itemID), staff, nil)
	q := body["item"].(map[string]any)["quantities"].(map[string]any)
	if q["available_quantity"] != float64(4) || q["in_repair_quantity"] != float64(1) || q["total_quantity"] != float64(5) {
		t.Errorf("unexpected quantities after damaged return: %v", q)
	}

	_, body = env.call(t, "GET", "/api/repairs", staff, nil)
	repairs := body["repairs"].([]any)
	if len(repairs) != 1 {
		t.Fatalf("expected 1 repair, got %v", repairs)
	}
	repairID := int64(repairs[0].(map[string]any)["id"].(float64))

	status, body = env.call(t, "POST", "/api/repairs/complete", staff, map[string]any{"repair_id": repairID})
	if status != http.StatusOK {
		t.Fatalf("complete repair: %d %v", status, body)
	}
	if q := body["quantities"].(map[string]any); q["available_quantity"] != float64(5) {
		t.Errorf("expected all 5 available after repair, got %v", q)
	}

	// The blocked request can now be approved.
	if status, _ := env.call(t, "POST", "/api/borrowing/approve", staff, map[string]any{"request_id": second}); status != http.StatusOK {
		t.Errorf("expected approval after repair, got %d", status)
	}

	want := []string{
		queue.EventBorrowApproved,
		queue.EventReturnConfirmed,
		queue.EventReturnConfirmed,
		queue.EventRepairCompleted,
		queue.EventBorrowApproved,
	}
	got := env.pub.types()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestDeleteItemWithActiveBorrowConflicts(t *testing.T) {
	env := setupTestServer(t)
	admin := env.login(t, adminEmail)

	_, body := env.call(t, "POST", "/api/students", admin, map[string]any{
		"sr_code": "22-00002", "name": "Ben", "campus": "Lipa",
	})
	studentID := id(t, body, "student")
	_, body = env.call(t, "POST", "/api/inventory", admin, map[string]any{
		"name": "Gong", "category": "equipment", "campus": "Lipa", "quantity": 1,
	})
	itemID := id(t, body, "item")
	_, body = env.call(t, "POST", "/api/borrowing", admin, map[string]any{
		"student_id": studentID, "items": []map[string]any{{"id": itemID, "quantity": 1}},
	})
	env.call(t, "POST", "/api/borrowing/approve", admin, map[string]any{"request_id": id(t, body, "request")})

	status, body := env.call(t, "DELETE", "/api/inventory/"+itoa(itemID), admin, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if body["success"] != false || body["retryable"] != nil {
		t.Errorf("expected a non-retryable failure, got %v", body)
	}
}

func TestEventArchiveRestore(t *testing.T) {
	env := setupTestServer(t)
	lipa := env.login(t, lipaEmail)

	status, body := env.call(t, "POST", "/api/events", lipa, map[string]any{
		"title": "Harvest Festival", "location": "Plaza", "status": "ongoing",
		"start_date": "2026-11-20T09:00:00Z", "end_date": "2026-11-20T17:00:00Z",
	})
	if status != http.StatusCreated {
		t.Fatalf("create event: %d %v", status, body)
	}
	eventID := id(t, body, "event")
	before := body["event"].(map[string]any)["updated_at"]

	if status, _ := env.call(t, "POST", "/api/events/restore", lipa, map[string]any{"event_id": eventID}); status != http.StatusNotFound {
		t.Errorf("expected 404 restoring a live event, got %d", status)
	}

	status, body = env.call(t, "POST", "/api/events/archive", lipa, map[string]any{"event_id": eventID})
	if status != http.StatusOK || body["event"].(map[string]any)["status"] != model.EventStatusArchived {
		t.Fatalf("archive: %d %v", status, body)
	}
	status, body = env.call(t, "POST", "/api/events/restore", lipa, map[string]any{"event_id": eventID})
	if status != http.StatusOK {
		t.Fatalf("restore: %d %v", status, body)
	}
	ev := body["event"].(map[string]any)
	if ev["status"] != model.EventStatusOngoing {
		t.Errorf("expected status ongoing after restore, got %v", ev["status"])
	}
	if ev["updated_at"] != before {
		t.Errorf("updated_at changed: %v -> %v", before, ev["updated_at"])
	}

	status, body = env.call(t, "GET", "/api/events?from=2026-11-20&to=2026-11-20", lipa, nil)
	if status != http.StatusOK || len(body["events"].([]any)) != 1 {
		t.Errorf("expected event in date range, got %d %v", status, body)
	}
	if status, _ := env.call(t, "GET", "/api/events?from=yesterday", lipa, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", status)
	}
}

func TestApplicationApprovalCreatesStudent(t *testing.T) {
	env := setupTestServer(t)
	malvar := env.login(t, malvarEmail)

	status, body := env.call(t, "POST", "/api/applications", malvar, map[string]any{
		"sr_code": "23-55555", "name": "Carla", "email": "carla@campus.edu", "performance_type": "choir",
	})
	if status != http.StatusCreated {
		t.Fatalf("create application: %d %v", status, body)
	}
	appID := id(t, body, "application")

	status, body = env.call(t, "POST", "/api/applications/approve", malvar, map[string]any{"application_id": appID})
	if status != http.StatusOK {
		t.Fatalf("approve application: %d %v", status, body)
	}
	if body["application"].(map[string]any)["student_id"] == nil {
		t.Error("expected linked student")
	}

	_, body = env.call(t, "GET", "/api/students?q=Carla", malvar, nil)
	if n := len(body["students"].([]any)); n != 1 {
		t.Errorf("expected 1 student, got %d", n)
	}

	_, body = env.call(t, "GET", "/api/dashboard", malvar, nil)
	d := body["dashboard"].(map[string]any)
	if d["students"] != float64(1) || d["pending_applications"] != float64(0) {
		t.Errorf("unexpected dashboard: %v", d)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := setupTestServer(t)
	token := env.login(t, adminEmail)

	status, body := env.call(t, "GET", "/api/auth/login", "", nil)
	if status != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", status)
	}
	if body["success"] != false || body["message"] != "method not allowed" {
		t.Errorf("expected JSON envelope, got %v", body)
	}
	if status, body := env.call(t, "PATCH", "/api/dashboard", token, nil); status != http.StatusMethodNotAllowed || body["success"] != false {
		t.Errorf("expected 405 envelope, got %d %v", status, body)
	}

	resp, err := http.Get(env.server.URL + "/api/auth/login")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	if allow := resp.Header.Get("Allow"); allow != "POST" {
		t.Errorf("expected Allow: POST, got %q", allow)
	}
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	env := setupTestServer(t)

	status, body := env.call(t, "GET", "/api/nope", "", nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
	if body["success"] != false || body["message"] != "not found" {
		t.Errorf("expected JSON envelope, got %v", body)
	}
}

func TestInvalidIDs(t *testing.T) {
	env := setupTestServer(t)
	token := env.login(t, adminEmail)

	if status, _ := env.call(t, "GET", "/api/inventory/abc", token, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", status)
	}
	if status, _ := env.call(t, "POST", "/api/inventory/archive", token, map[string]any{}); status != http.StatusBadRequest {
		t.Errorf("expected 400 for missing item_id, got %d", status)
	}
	if status, _ := env.call(t, "POST", "/api/inventory", token, map[string]any{
		"name": "Bad", "category": "costume", "quantity": -1,
	}); status != http.StatusBadRequest {
		t.Errorf("expected 400 for negative quantity, got %d", status)
	}
}

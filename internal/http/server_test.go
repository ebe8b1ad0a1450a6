package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gestao/internal/app"
	"gestao/internal/auth"
	"gestao/internal/remote"
	"gestao/internal/remote/memory"
	"gestao/internal/services"
	"gestao/internal/session"
)

type testEnv struct {
	server *Server
	store  *memory.Store
	state  *app.Store
	writer *services.TransactionWriter
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := memory.New()
	provider := auth.NewLocal(auth.NewMemoryUserStore(), auth.WithBcryptCost(bcrypt.MinCost))
	gate := session.NewGate(provider)
	state := app.NewStore(nil)
	syncer := services.NewSynchronizer(store, state, nil)
	services.FollowSession(gate, state, syncer)
	writer := services.NewTransactionWriter(store, gate, nil)

	srv := NewServer(":0", Dependencies{Auth: provider, State: state, Writer: writer}, opts)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = syncer.Close()
		gate.Close()
		_ = store.Close()
	})
	return &testEnv{server: srv, store: store, state: state, writer: writer}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

// waitDashboard polls until the dashboard lists n recent rows and is loaded.
func (e *testEnv) waitDashboard(t *testing.T, n int) dashboardResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := e.do(t, http.MethodGet, "/dashboard", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("dashboard status %d: %s", rec.Code, rec.Body.String())
		}
		d := decode[dashboardResponse](t, rec)
		if !d.Loading && len(d.Recent) == n {
			return d
		}
		if time.Now().After(deadline) {
			t.Fatalf("dashboard never reached %d rows: %+v", n, d)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Options{})
	if rec := env.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}

	env.server.deps.Ready = func(context.Context) error { return errors.New("db down") }
	if rec := env.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz when down = %d", rec.Code)
	}
}

func TestAnonymousAccessIsRejected(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/dashboard", ""},
		{http.MethodGet, "/history", ""},
		{http.MethodPost, "/transactions", `{"description":"x","amount":"1","category":"c"}`},
	} {
		rec := env.do(t, tc.method, tc.path, tc.body)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}

	sess := decode[sessionResponse](t, env.do(t, http.MethodGet, "/session", ""))
	if sess.Authenticated || sess.Screen.ID != "dashboard" {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestSignUpSubmitAndView(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/auth/signup", `{"email":"ana@example.com","password":"secret1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("signup = %d %s", rec.Code, rec.Body.String())
	}
	sess := decode[sessionResponse](t, rec)
	if !sess.Authenticated || sess.UID == "" {
		t.Fatalf("unexpected session %+v", sess)
	}

	empty := env.waitDashboard(t, 0)
	if empty.Balance != "R$ 0.00" || empty.Income != "R$ 0.00" || empty.Expense != "R$ 0.00" {
		t.Errorf("unexpected empty dashboard %+v", empty)
	}
	hist := decode[historyResponse](t, env.do(t, http.MethodGet, "/history", ""))
	if !hist.Empty || hist.EmptyMessage != "Nenhuma transação registrada." {
		t.Errorf("unexpected empty history %+v", hist)
	}

	forms := []string{
		`{"description":"Salário","amount":"3000","kind":"INCOME","category":"Trabalho"}`,
		`{"description":"Freela","amount":"1500,00","kind":"INCOME","category":"Trabalho"}`,
		`{"description":"Aluguel","amount":"1500","kind":"EXPENSE","category":"Casa"}`,
		`{"description":"Mercado","amount":"350","kind":"EXPENSE","category":"Comida"}`,
	}
	for _, f := range forms {
		rec := env.do(t, http.MethodPost, "/transactions", f)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("submit %s = %d %s", f, rec.Code, rec.Body.String())
		}
		// Keep write order deterministic.
		env.writer.Wait()
	}

	d := env.waitDashboard(t, 4)
	if d.Income != "R$ 4500.00" || d.Expense != "R$ 1850.00" || d.Balance != "R$ 2650.00" {
		t.Errorf("unexpected totals %+v", d.Dashboard)
	}
	if d.Recent[0].Description != "Mercado" || d.Recent[0].Amount != "- R$ 350.00" {
		t.Errorf("newest row = %+v", d.Recent[0])
	}
	if d.Recent[3].Amount != "+ R$ 3000.00" || !strings.HasPrefix(d.Recent[3].Subtitle, "Trabalho - ") {
		t.Errorf("oldest row = %+v", d.Recent[3])
	}

	hist = decode[historyResponse](t, env.do(t, http.MethodGet, "/history", ""))
	if hist.Empty || len(hist.Rows) != 4 {
		t.Errorf("unexpected history %+v", hist)
	}
}

func TestSubmitValidationReturns422(t *testing.T) {
	env := newTestEnv(t, Options{})
	if rec := env.do(t, http.MethodPost, "/auth/signup", `{"email":"ana@example.com","password":"secret1"}`); rec.Code != http.StatusOK {
		t.Fatalf("signup = %d", rec.Code)
	}
	uid := env.state.State().Session.UID

	rec := env.do(t, http.MethodPost, "/transactions", `{"description":"   ","amount":"10","category":"Casa"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[ErrorBody](t, rec)
	if body.Field != "description" || body.Error != "Preencha todos os campos" {
		t.Errorf("body = %+v", body)
	}
	env.writer.Wait()
	if snap := env.store.Snapshot(remote.TransactionsPath(uid)); len(snap.Children) != 0 {
		t.Errorf("rejected form was written: %+v", snap)
	}

	sess := decode[sessionResponse](t, env.do(t, http.MethodGet, "/session", ""))
	if sess.Notice == nil || sess.Notice.Message != "Preencha todos os campos" {
		t.Errorf("notice = %+v", sess.Notice)
	}
	if rec := env.do(t, http.MethodDelete, "/notice", ""); rec.Code != http.StatusNoContent {
		t.Errorf("clear notice = %d", rec.Code)
	}
	if env.state.State().Notice != nil {
		t.Error("notice not cleared")
	}
}

func TestSignInFailureRaisesNotice(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodPost, "/auth/signin", `{"email":"","password":""}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode[ErrorBody](t, rec); body.Error != "Preencha todos os campos" {
		t.Errorf("error = %q", body.Error)
	}
	if n := env.state.State().Notice; n == nil || n.Message != "Preencha todos os campos" {
		t.Errorf("notice = %+v", n)
	}
}

func TestSignOutClearsData(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/auth/signup", `{"email":"ana@example.com","password":"secret1"}`)
	env.do(t, http.MethodPost, "/transactions", `{"description":"Luz","amount":"100","category":"Casa"}`)
	env.writer.Wait()
	env.waitDashboard(t, 1)

	rec := env.do(t, http.MethodPost, "/auth/signout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("signout = %d", rec.Code)
	}
	st := env.state.State()
	if st.Session.IsAuthenticated() || len(st.Transactions) != 0 || st.Loading {
		t.Errorf("state after sign out = %+v", st)
	}
	if rec := env.do(t, http.MethodGet, "/dashboard", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("dashboard after sign out = %d", rec.Code)
	}

	// Signing back in resubscribes and sees the stored data.
	if rec := env.do(t, http.MethodPost, "/auth/signin", `{"email":"ana@example.com","password":"secret1"}`); rec.Code != http.StatusOK {
		t.Fatalf("signin = %d %s", rec.Code, rec.Body.String())
	}
	env.waitDashboard(t, 1)
}

func TestScreens(t *testing.T) {
	env := newTestEnv(t, Options{})

	got := decode[screensResponse](t, env.do(t, http.MethodGet, "/screens", ""))
	if len(got.Screens) != 3 || got.Current != "dashboard" || got.Screens[2].Label != "Ajustes" {
		t.Errorf("screens = %+v", got)
	}

	got = decode[screensResponse](t, env.do(t, http.MethodPost, "/screens", `{"screen":"history"}`))
	if got.Current != "history" {
		t.Errorf("current = %q", got.Current)
	}
	if rec := env.do(t, http.MethodPost, "/screens", `{"screen":"reports"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown screen = %d", rec.Code)
	}
}

func TestMethodNotAllowedAndHeaders(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodGet, "/transactions", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "POST" {
		t.Errorf("GET /transactions = %d allow=%q", rec.Code, rec.Header().Get("Allow"))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}
	if rec := env.do(t, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d", rec.Code)
	}
}

func TestPostsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 2})
	for i := 0; i < 2; i++ {
		env.do(t, http.MethodPost, "/auth/signin", `{"email":"a@b.c","password":"secret1"}`)
	}
	rec := env.do(t, http.MethodPost, "/auth/signin", `{"email":"a@b.c","password":"secret1"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third POST = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	// Reads are not limited.
	if rec := env.do(t, http.MethodGet, "/session", ""); rec.Code != http.StatusOK {
		t.Errorf("GET after limit = %d", rec.Code)
	}
}

func TestViewCacheFollowsRevision(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/auth/signup", `{"email":"ana@example.com","password":"secret1"}`)
	env.waitDashboard(t, 0)
	if env.server.dashboards.Size() == 0 {
		t.Fatal("dashboard not cached")
	}

	env.do(t, http.MethodPost, "/transactions", `{"description":"Luz","amount":"100","category":"Casa"}`)
	env.writer.Wait()
	env.waitDashboard(t, 1)

	env.do(t, http.MethodPost, "/auth/signout", "")
	if env.server.dashboards.Size() != 0 {
		t.Errorf("cached dashboards after sign out = %d", env.server.dashboards.Size())
	}
}

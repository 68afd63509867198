package router

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parisxmas/fsdash/internal/auth"
	"github.com/parisxmas/fsdash/internal/config"
	"github.com/parisxmas/fsdash/internal/fakeupstream"
	"github.com/parisxmas/fsdash/internal/handler"
	"github.com/parisxmas/fsdash/internal/service"
	"github.com/parisxmas/fsdash/internal/session"
	"github.com/parisxmas/fsdash/internal/upstream"
	"github.com/parisxmas/fsdash/internal/views"
	"github.com/parisxmas/fsdash/internal/web"
	"github.com/parisxmas/fsdash/pkg/fsclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	apiKey        = "test-key"
	sessionSecret = "secret"
)

type env struct {
	t      *testing.T
	up     *fakeupstream.Server
	srv    *httptest.Server
	client *http.Client
	guard  *views.Guard
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zaptest.NewLogger(t)
	up := fakeupstream.New(t, apiKey)

	authCfg := config.AuthConfig{Mode: config.AuthModeAPIKey, SessionSecret: sessionSecret, SessionTTL: time.Hour}
	clients := service.NewClients(2*time.Second, log)
	mgr, err := session.NewManager(session.NewMemoryStore(), auth.NewAPIKeyVerifier([]string{up.URL}, clients.Options()...), "fsdash:session:", time.Hour)
	require.NoError(t, err)

	pages, err := web.NewRenderer()
	require.NoError(t, err)

	guard := views.NewGuard()
	subs := service.NewSubmissionService(clients, views.NewRegistry(), guard, 10, log)
	mgr.OnLogout(subs.Forget)
	monitor := upstream.NewMonitor(clients.New(up.URL, ""), time.Hour, log)
	monitor.Probe(context.Background())

	base := &handler.Base{Pages: pages, Auth: service.NewAuthService(mgr, log), Log: log}
	r := New(authCfg.SessionSecret, mgr, Handlers{
		Auth:        handler.NewAuthHandler(base, authCfg, config.APIConfig{URL: up.URL}, monitor),
		Dashboard:   handler.NewDashboardHandler(base, subs),
		Submissions: handler.NewSubmissionHandler(base, subs, guard, 30*time.Second),
		Export:      handler.NewExportHandler(base, subs),
		Health:      handler.NewHealthHandler(monitor),
	}, log)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &env{t: t, up: up, srv: srv, client: client, guard: guard}
}

func (e *env) get(path string) (*http.Response, string) {
	e.t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	require.NoError(e.t, err)
	return resp, readBody(e.t, resp)
}

func (e *env) post(path string, form url.Values) (*http.Response, string) {
	e.t.Helper()
	resp, err := e.client.PostForm(e.srv.URL+path, form)
	require.NoError(e.t, err)
	return resp, readBody(e.t, resp)
}

func (e *env) login() {
	e.t.Helper()
	resp, _ := e.post("/login", url.Values{"apiUrl": {e.up.URL}, "apiKey": {apiKey}})
	require.Equal(e.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(e.t, "/dashboard", resp.Header.Get("Location"))
}

// sessionID reads the session id out of the cookie the client holds.
func (e *env) sessionID() string {
	e.t.Helper()
	u, err := url.Parse(e.srv.URL)
	require.NoError(e.t, err)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == auth.CookieName {
			claims, err := auth.ValidateToken(sessionSecret, c.Value)
			require.NoError(e.t, err)
			return claims.SessionID
		}
	}
	e.t.Fatal("no session cookie")
	return ""
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestGateRedirectsToLogin(t *testing.T) {
	e := newEnv(t)
	for _, p := range []string{"/", "/dashboard", "/submissions", "/submissions/s1", "/submissions/new"} {
		resp, _ := e.get(p)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, p)
		assert.Equal(t, "/login", resp.Header.Get("Location"), p)
	}
	resp, body := e.get("/api/submissions")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"unauthorized"}`, body)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get("/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `name="apiKey"`)
	assert.Contains(t, body, e.up.URL, "configured endpoint pre-fills the form")
	assert.Contains(t, body, "reachable")

	resp, body = e.post("/login", url.Values{"apiUrl": {e.up.URL}, "apiKey": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Login rejected")
	assert.Empty(t, resp.Cookies())

	e.login()
	resp, body = e.get("/dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Login successful")
	assert.Contains(t, body, "Recent Submissions")
	assert.Contains(t, body, "128.0 MB / 512.0 MB")
	assert.Contains(t, body, "1h2m6s")

	resp, _ = e.get("/login")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "authenticated operators skip the login page")
}

func TestLogin_RejectsUnlistedEndpoint(t *testing.T) {
	e := newEnv(t)
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(internal.Close)

	for _, target := range []string{internal.URL, internal.URL + "/admin/anything"} {
		resp, body := e.post("/login", url.Values{"apiUrl": {target}, "apiKey": {apiKey}})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, target)
		assert.Contains(t, body, "Login rejected", target)
		assert.Empty(t, resp.Cookies(), target)
	}
	assert.Zero(t, hits.Load(), "no request leaves for an unlisted endpoint")

	resp, _ := e.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLogoutThenReloadShowsLogin(t *testing.T) {
	e := newEnv(t)
	e.login()

	resp, _ := e.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = e.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestListPager(t *testing.T) {
	e := newEnv(t)
	e.up.Seed(50, fsclient.StatusPending)
	e.login()

	_, body := e.get("/submissions?page=2&limit=10")
	for _, ctl := range []string{">First</a>", ">Previous</a>", ">Next</a>", ">Last</a>"} {
		assert.Contains(t, body, ctl)
	}
	assert.Contains(t, body, "Page 2 of 5")

	_, body = e.get("/submissions?page=1&limit=10")
	assert.Contains(t, body, `<span class="disabled">First</span>`)
	assert.Contains(t, body, `<span class="disabled">Previous</span>`)
	assert.Contains(t, body, ">Next</a>")

	_, body = e.get("/submissions?page=5&limit=10")
	assert.Contains(t, body, `<span class="disabled">Next</span>`)
	assert.Contains(t, body, `<span class="disabled">Last</span>`)

	_, body = e.get("/submissions?page=9&limit=10")
	assert.Contains(t, body, "Page 5 of 5", "out-of-range page is clamped")
}

func TestListSearchAndFailure(t *testing.T) {
	e := newEnv(t)
	e.up.Seed(3, fsclient.StatusFailed)
	e.login()

	_, body := e.get("/submissions?search=applicant+2")
	assert.Contains(t, body, "Applicant 2")
	assert.NotContains(t, body, "Applicant 3")

	e.up.Close()
	resp, body := e.get("/submissions?search=applicant+2")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Failed to load submissions")
	assert.Contains(t, body, "Applicant 2", "last good page stays visible")
}

func TestAPIListEchoesSeq(t *testing.T) {
	e := newEnv(t)
	e.up.Seed(4, fsclient.StatusRequeued)
	e.login()

	resp, body := e.get("/api/submissions?page=1&limit=2&seq=7")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"seq":7`)
	assert.Contains(t, body, `"statusLabel":"Requeued"`)
	assert.Contains(t, body, `"queued":4`)
}

type fetched struct {
	code int
	body string
	err  error
}

func (e *env) fetchAsync(path string) <-chan fetched {
	ch := make(chan fetched, 1)
	go func() {
		resp, err := e.client.Get(e.srv.URL + path)
		if err != nil {
			ch <- fetched{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		ch <- fetched{code: resp.StatusCode, body: string(b), err: err}
	}()
	return ch
}

func TestAPIList_SupersededLoadIsSilent(t *testing.T) {
	e := newEnv(t)
	e.up.Seed(3, fsclient.StatusPending)
	e.login()
	listCalls := func(n int) func() bool {
		return func() bool { return e.up.Calls("GET /submissions") == n }
	}

	release := e.up.Hold()
	defer release()
	first := e.fetchAsync("/api/submissions?seq=1&view=tab-a")
	require.Eventually(t, listCalls(1), 2*time.Second, 10*time.Millisecond)
	other := e.fetchAsync("/api/submissions?seq=1&view=tab-b")
	require.Eventually(t, listCalls(2), 2*time.Second, 10*time.Millisecond)
	second := e.fetchAsync("/api/submissions?seq=2&view=tab-a")
	require.Eventually(t, listCalls(3), 2*time.Second, 10*time.Millisecond)
	release()

	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, http.StatusNoContent, got.code)
	assert.Empty(t, got.body)

	got = <-second
	require.NoError(t, got.err)
	assert.Equal(t, http.StatusOK, got.code)
	assert.Contains(t, got.body, `"seq":2`)
	assert.NotContains(t, got.body, `"error"`)

	got = <-other
	require.NoError(t, got.err)
	assert.Equal(t, http.StatusOK, got.code, "another tab is not superseded")
	assert.Contains(t, got.body, `"seq":1`)
}

func TestDetailNotFound(t *testing.T) {
	e := newEnv(t)
	e.login()

	resp, _ := e.get("/submissions/nope")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/submissions", resp.Header.Get("Location"))

	_, body := e.get("/submissions")
	assert.Contains(t, body, "Submission not found")
}

func TestDetailRetryOfferedOnlyWhenFailed(t *testing.T) {
	e := newEnv(t)
	failed, pending := fsclient.StatusFailed, fsclient.StatusPending
	e.up.Add(fsclient.Submission{ID: "f1", Status: &failed})
	e.up.Add(fsclient.Submission{ID: "p1", Status: &pending})
	e.login()

	_, body := e.get("/submissions/f1")
	assert.Contains(t, body, "Retry Submission")
	_, body = e.get("/submissions/p1")
	assert.NotContains(t, body, "Retry Submission")

	resp, _ := e.post("/submissions/f1/retry", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body = e.get("/submissions/f1")
	assert.Contains(t, body, "Submission retry initiated")
	assert.Contains(t, body, `badge badge-requeued`)

	e.post("/submissions/p1/retry", nil)
	assert.Equal(t, 0, e.up.Calls("GET /submission/p1/retry"))
}

func TestStatusUpdate(t *testing.T) {
	e := newEnv(t)
	e.up.Seed(1, fsclient.StatusFailed)
	e.login()

	resp, _ := e.post("/submissions/s1/status", url.Values{"status": {"completed"}, "error": {"   "}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/submissions/s1", resp.Header.Get("Location"))
	assert.JSONEq(t, `{"status":"completed"}`, e.up.LastBody("PATCH /submission/s1/status"))

	_, body := e.get("/submissions/s1")
	assert.Contains(t, body, "Status updated successfully")
	assert.Contains(t, body, `badge badge-completed`)

	e.post("/submissions/s1/status", url.Values{"status": {""}})
	assert.Equal(t, 1, e.up.Calls("PATCH /submission/s1/status"), "no status chosen, nothing sent")
}

func TestStatusUpdate_InFlight(t *testing.T) {
	e := newEnv(t)
	e.up.Seed(1, fsclient.StatusFailed)
	e.login()

	done, err := e.guard.Acquire(e.sessionID(), "status:s1")
	require.NoError(t, err)

	_, body := e.get("/submissions/s1")
	assert.Contains(t, body, `<button type="submit" disabled>Update Status</button>`)

	resp, _ := e.post("/submissions/s1/status", url.Values{"status": {"completed"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 0, e.up.Calls("PATCH /submission/s1/status"))
	_, body = e.get("/submissions/s1")
	assert.Contains(t, body, "A request for this action is already in progress")

	done()
	_, body = e.get("/submissions/s1")
	assert.Contains(t, body, `<button type="submit">Update Status</button>`)
}

func completeForm() url.Values {
	return url.Values{
		"fullLegalName":       {"Jane Doe"},
		"countryOfResidence":  {"Deutschland"},
		"CompanyName":         {"ACME"},
		"CompanyYouRepresent": {"ACME"},
		"email":               {"jane@example.com"},
		"InfringingUrls":      {"https://bad.example/1", ""},
		"QuestionOne":         {"a"},
		"QuestionTwo":         {"b"},
		"QuestionThree":       {"c"},
		"signature":           {"Jane Doe"},
		"confirmForm":         {"on"},
		"action":              {"submit"},
	}
}

func TestCreate(t *testing.T) {
	e := newEnv(t)
	e.login()

	_, body := e.get("/submissions/new")
	assert.Contains(t, body, `value="Deutschland"`)

	form := completeForm()
	form.Set("InfringingUrls", "")
	resp, body := e.post("/submissions/new", form)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Please fill all required fields")
	assert.Contains(t, body, `value="Jane Doe"`, "form state is preserved")
	assert.Equal(t, 0, e.up.Calls("POST /submit"))

	form = completeForm()
	form.Set("action", "add-url")
	resp, body = e.post("/submissions/new", form)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, strings.Count(body, `name="InfringingUrls"`))
	assert.Equal(t, 0, e.up.Calls("POST /submit"))

	resp, _ = e.post("/submissions/new", completeForm())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	loc := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/submissions/"), loc)
	assert.JSONEq(t, `["https://bad.example/1"]`, extractURLs(t, e.up.LastBody("POST /submit")))

	_, body = e.get(loc)
	assert.Contains(t, body, "Submission created successfully")

	e.up.RejectCreate("email must be an email")
	resp, body = e.post("/submissions/new", completeForm())
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "email must be an email")
}

func TestCreate_InFlight(t *testing.T) {
	e := newEnv(t)
	e.login()

	done, err := e.guard.Acquire(e.sessionID(), "create")
	require.NoError(t, err)

	_, body := e.get("/submissions/new")
	assert.Contains(t, body, `value="submit" disabled>Submit</button>`)

	resp, body := e.post("/submissions/new", completeForm())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "A request for this action is already in progress")
	assert.Equal(t, 0, e.up.Calls("POST /submit"))

	done()
	_, body = e.get("/submissions/new")
	assert.Contains(t, body, `value="submit">Submit</button>`)
}

func TestPendingFlashSurvivesPageWithOwnFlash(t *testing.T) {
	e := newEnv(t)
	e.login()

	form := completeForm()
	form.Set("signature", "")
	resp, body := e.post("/submissions/new", form)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Please fill all required fields")
	assert.NotContains(t, body, "Login successful")

	_, body = e.get("/submissions")
	assert.Contains(t, body, "Login successful")
}

func extractURLs(t *testing.T, body string) string {
	t.Helper()
	i := strings.Index(body, `"InfringingUrls":`)
	require.GreaterOrEqual(t, i, 0, body)
	rest := body[i+len(`"InfringingUrls":`):]
	return rest[:strings.Index(rest, "]")+1]
}

func TestExport(t *testing.T) {
	e := newEnv(t)
	e.up.Seed(3, fsclient.StatusCompleted)
	e.login()

	resp, body := e.get("/submissions/export?format=csv&limit=10")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "submissions.csv")
	assert.True(t, strings.HasPrefix(body, "ID,Name,Email,Company,Status,Submitted\n"))
	assert.Equal(t, 4, strings.Count(body, "\n"))

	resp, _ = e.get("/submissions/export?format=xlsx")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")

	resp, _ = e.get("/submissions/export?format=pdf")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOperationalEndpoints(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"up":true`)

	resp, body = e.get("/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "fsdash_upstream_up")

	resp, _ = e.get("/static/app.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

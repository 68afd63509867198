// Package fakeupstream is an in-memory submission service for tests.
package fakeupstream

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/parisxmas/fsdash/pkg/fsclient"
)

// Server serves the submission service API over httptest.
type Server struct {
	*httptest.Server
	APIKey string

	mu           sync.Mutex
	subs         []fsclient.Submission
	requests     []string
	lastBody     map[string]string
	statsOff     bool
	createReject string
	hold         chan struct{}
}

// New starts a server accepting apiKey. It is closed when t finishes.
func New(t testing.TB, apiKey string) *Server {
	s := &Server{APIKey: apiKey, lastBody: make(map[string]string)}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/health", s.health)
	r.Group(func(r chi.Router) {
		r.Use(s.requireKey)
		r.Get("/health/checkCreds", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})
		r.Get("/submissions", s.list)
		r.Get("/submissions/stats", s.stats)
		r.Get("/submission/{id}", s.get)
		r.Get("/submission/{id}/status", s.getStatus)
		r.Patch("/submission/{id}/status", s.patchStatus)
		r.Get("/submission/{id}/retry", s.retry)
		r.Post("/submit", s.submit)
	})
	return r
}

// Add stores sub as the newest submission.
func (s *Server) Add(sub fsclient.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.CreatedAt == "" {
		sub.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	s.subs = append([]fsclient.Submission{sub}, s.subs...)
}

// Seed adds n submissions with ids s1..sn and the given status.
func (s *Server) Seed(n int, st fsclient.Status) {
	for i := 1; i <= n; i++ {
		status := st
		s.Add(fsclient.Submission{
			ID:     "s" + strconv.Itoa(i),
			Status: &status,
			CreateSubmissionRequest: fsclient.CreateSubmissionRequest{
				FullLegalName: "Applicant " + strconv.Itoa(i),
				Email:         "applicant" + strconv.Itoa(i) + "@example.com",
				CompanyName:   "Company " + strconv.Itoa(i),
			},
		})
	}
}

// Submission returns the stored submission with id.
func (s *Server) Submission(id string) (fsclient.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return fsclient.Submission{}, false
	}
	return s.subs[i], true
}

// DisableStats makes /submissions/stats answer 404.
func (s *Server) DisableStats() {
	s.mu.Lock()
	s.statsOff = true
	s.mu.Unlock()
}

// RejectCreate makes /submit answer 400 with message.
func (s *Server) RejectCreate(message string) {
	s.mu.Lock()
	s.createReject = message
	s.mu.Unlock()
}

// Hold blocks list requests until the returned func is called.
func (s *Server) Hold() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.hold = ch
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls counts recorded requests whose "METHOD path" starts with prefix.
func (s *Server) Calls(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// LastBody returns the last request body sent to "METHOD path".
func (s *Server) LastBody(route string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBody[route]
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(strings.NewReader(string(body)))
		}
		s.mu.Lock()
		s.requests = append(s.requests, route)
		if len(body) > 0 {
			s.lastBody[route] = string(body)
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(fsclient.APIKeyHeader) != s.APIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": 200,
		"checks": map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    3725.5,
			"memory":    map[string]any{"total": 512 * 1024 * 1024, "used": 128 * 1024 * 1024},
		},
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hold := s.hold
	s.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	search := strings.ToLower(r.URL.Query().Get("search"))

	s.mu.Lock()
	var matched []fsclient.Submission
	for _, sub := range s.subs {
		if search == "" ||
			strings.Contains(strings.ToLower(sub.FullLegalName), search) ||
			strings.Contains(strings.ToLower(sub.Email), search) ||
			strings.Contains(strings.ToLower(sub.CompanyName), search) {
			matched = append(matched, sub)
		}
	}
	s.mu.Unlock()

	total := len(matched)
	pages := (total + limit - 1) / limit
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * limit
	end := start + limit
	if end > total {
		end = total
	}
	data := []fsclient.Submission{}
	if start < end {
		data = matched[start:end]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":    data,
		"meta":    fsclient.Meta{Total: total, CurrentPage: page, TotalPages: pages, HasNext: page < pages, Limit: limit},
		"message": "ok",
	})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statsOff {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Cannot GET /submissions/stats"})
		return
	}
	st := fsclient.Stats{Total: len(s.subs)}
	for _, sub := range s.subs {
		switch sub.CurrentStatus() {
		case fsclient.StatusPending:
			st.Pending++
		case fsclient.StatusCompleted:
			st.Completed++
		case fsclient.StatusFailed:
			st.Failed++
		case fsclient.StatusRetry:
			st.Retry++
		case fsclient.StatusQueued:
			st.Queued++
		case fsclient.StatusRequeued:
			st.Requeued++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": st})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.Submission(chi.URLParam(r, "id"))
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.Submission(chi.URLParam(r, "id"))
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, fsclient.StatusResponse{Status: sub.Status})
}

func (s *Server) patchStatus(w http.ResponseWriter, r *http.Request) {
	var req fsclient.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": []string{"status must be a valid enum value"}})
		return
	}
	s.mu.Lock()
	i := s.index(chi.URLParam(r, "id"))
	if i < 0 {
		s.mu.Unlock()
		notFound(w)
		return
	}
	st := req.Status
	s.subs[i].Status = &st
	s.subs[i].Error = req.Error
	sub := s.subs[i]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) retry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	i := s.index(chi.URLParam(r, "id"))
	if i < 0 {
		s.mu.Unlock()
		notFound(w)
		return
	}
	if s.subs[i].CurrentStatus() != fsclient.StatusFailed {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Only failed submissions can be retried"})
		return
	}
	st := fsclient.StatusRequeued
	s.subs[i].Status = &st
	n := 1
	if s.subs[i].RetryAttempts != nil {
		n = *s.subs[i].RetryAttempts + 1
	}
	s.subs[i].RetryAttempts = &n
	sub := s.subs[i]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var req fsclient.CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Malformed body"})
		return
	}
	s.mu.Lock()
	reject := s.createReject
	s.mu.Unlock()
	if reject != "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": reject})
		return
	}
	st := fsclient.StatusPending
	sub := fsclient.Submission{CreateSubmissionRequest: req, ID: uuid.NewString(), Status: &st}
	s.Add(sub)
	sub, _ = s.Submission(sub.ID)
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) index(id string) int {
	for i := range s.subs {
		if s.subs[i].ID == id {
			return i
		}
	}
	return -1
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "Submission not found"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

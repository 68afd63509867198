// Package web holds the embedded page templates and static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"math"
	"net/http"
	"time"

	"github.com/parisxmas/fsdash/pkg/fsclient"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Pages are the page templates rendered inside the layout.
var Pages = []string{"login", "dashboard", "list", "detail", "new"}

// Renderer executes page templates.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	base, err := template.New("layout.html").Funcs(Funcs()).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse layout: %w", err)
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(Pages))}
	for _, name := range Pages {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page name with data. Nothing is written when execution fails.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("web: unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("web: render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the embedded assets; mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"statusLabel": func(s *fsclient.Status) string {
			if s == nil {
				return fsclient.Status("").Label()
			}
			return s.Label()
		},
		"statusClass": func(s *fsclient.Status) string {
			if s == nil || !s.Valid() {
				return "unknown"
			}
			return string(*s)
		},
		"mb":       MB,
		"uptime":   Uptime,
		"date":     Date,
		"ago":      Ago,
		"add":      func(a, b int) int { return a + b },
		"seq":      func(n int) []int { return make([]int, n) },
		"deref":    deref,
		"derefInt": derefInt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

// MB formats a byte count in megabytes.
func MB(bytes float64) string {
	return fmt.Sprintf("%.1f MB", bytes/1024/1024)
}

// Uptime formats seconds as a duration rounded to the second.
func Uptime(seconds float64) string {
	return (time.Duration(math.Round(seconds)) * time.Second).String()
}

// Date formats an RFC 3339 timestamp as a calendar date; unparseable input is
// returned unchanged.
func Date(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02")
}

// Ago describes how long ago ts was, in the largest whole unit.
func Ago(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	}
	return plural(int(d/(24*time.Hour)), "day")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

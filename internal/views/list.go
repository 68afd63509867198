// Package views holds the per-operator state behind each dashboard screen.
// Nothing here renders HTML; handlers turn these models into pages.
package views

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/parisxmas/fsdash/internal/metrics"
	"github.com/parisxmas/fsdash/pkg/fsclient"
)

// PlaceholderRows is the number of skeleton rows drawn while a page loads.
const PlaceholderRows = 5

// DefaultPageSize is used when no valid limit is requested.
const DefaultPageSize = 10

// PageSizes are the selectable page sizes.
var PageSizes = []int{2, 5, 10, 20, 50, 100}

var (
	// ErrStale is returned to a load that was superseded before it finished.
	ErrStale = errors.New("views: superseded by a newer request")
	// ErrInconsistentMeta is returned when the service reports impossible pagination.
	ErrInconsistentMeta = errors.New("views: inconsistent pagination meta")
)

// MaxViewsPerSession bounds the list controllers one session may hold.
const MaxViewsPerSession = 16

// Query is the complete input of the list view.
type Query struct {
	Page   int
	Limit  int
	Search string
	// View identifies the browser tab issuing the load. Loads only supersede
	// loads of the same view.
	View string
}

// Normalize trims the search term, raises the page to at least 1 and replaces
// an unknown limit with defaultLimit.
func (q Query) Normalize(defaultLimit int) Query {
	if !validPageSize(defaultLimit) {
		defaultLimit = DefaultPageSize
	}
	q.Search = strings.TrimSpace(q.Search)
	if len(q.View) > 64 {
		q.View = ""
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if !validPageSize(q.Limit) {
		q.Limit = defaultLimit
	}
	return q
}

func (q Query) sameFilter(o Query) bool {
	return q.Limit == o.Limit && q.Search == o.Search
}

func (q Query) params() fsclient.ListParams {
	return fsclient.ListParams{Page: q.Page, Limit: q.Limit, Search: q.Search}
}

func validPageSize(n int) bool {
	for _, s := range PageSizes {
		if s == n {
			return true
		}
	}
	return false
}

// Fetcher loads one list page.
type Fetcher func(ctx context.Context, p fsclient.ListParams) (*fsclient.ListResponse, error)

// ListState is what the list view shows.
type ListState struct {
	Query  Query
	Items  []fsclient.Submission
	Meta   fsclient.Meta
	Loaded bool
	// Err is the failure of the most recent load; Items/Meta then still hold
	// the last good page.
	Err error
}

// Pager derives the pagination controls.
func (s ListState) Pager() Pager { return NewPager(s.Meta) }

// ListController serialises list loads for one operator. A new Load cancels
// the one in flight, and only the latest load may update the state.
type ListController struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	last   ListState
}

// State returns the last rendered state.
func (c *ListController) State() ListState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Load fetches the page described by q. q must already be normalized. The page
// is clamped to the last known page count for the same limit and search.
func (c *ListController) Load(ctx context.Context, q Query, fetch Fetcher) (ListState, error) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	if c.last.Loaded && q.sameFilter(c.last.Query) && c.last.Meta.TotalPages > 0 && q.Page > c.last.Meta.TotalPages {
		q.Page = c.last.Meta.TotalPages
	}
	c.mu.Unlock()
	defer cancel()

	resp, err := fetch(ctx, q.params())
	if err == nil && resp.Meta.TotalPages > 0 && q.Page > resp.Meta.TotalPages && c.current(gen) {
		// the page count shrank under us: show the last page instead
		q.Page = resp.Meta.TotalPages
		resp, err = fetch(ctx, q.params())
	}
	if err == nil && !resp.Meta.Consistent() {
		err = ErrInconsistentMeta
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		metrics.StaleResponses.WithLabelValues("submissions").Inc()
		return c.last, ErrStale
	}
	c.cancel = nil
	if err != nil {
		c.last.Err = err
		return c.last, err
	}
	if resp.Meta.Limit > 0 {
		q.Limit = resp.Meta.Limit
	}
	if resp.Meta.CurrentPage > 0 {
		q.Page = resp.Meta.CurrentPage
	}
	c.last = ListState{Query: q, Items: resp.Data, Meta: resp.Meta, Loaded: true}
	return c.last, nil
}

func (c *ListController) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// Registry hands out one ListController per session and view.
type Registry struct {
	mu    sync.Mutex
	lists map[string]map[string]*ListController
}

func NewRegistry() *Registry {
	return &Registry{lists: make(map[string]map[string]*ListController)}
}

func (r *Registry) For(sessionID, view string) *ListController {
	r.mu.Lock()
	defer r.mu.Unlock()
	byView, ok := r.lists[sessionID]
	if !ok {
		byView = make(map[string]*ListController)
		r.lists[sessionID] = byView
	}
	c, ok := byView[view]
	if !ok {
		if len(byView) >= MaxViewsPerSession {
			evictIdle(byView)
		}
		c = &ListController{}
		byView[view] = c
	}
	return c
}

// evictIdle drops one controller with no load in flight, or any one if all
// are busy.
func evictIdle(byView map[string]*ListController) {
	var victim string
	for v, c := range byView {
		victim = v
		c.mu.Lock()
		idle := c.cancel == nil
		c.mu.Unlock()
		if idle {
			break
		}
	}
	stop(byView[victim])
	delete(byView, victim)
}

// Forget drops the controllers of a destroyed session, cancelling their loads.
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	byView := r.lists[sessionID]
	delete(r.lists, sessionID)
	r.mu.Unlock()
	for _, c := range byView {
		stop(c)
	}
}

func stop(c *ListController) {
	c.mu.Lock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
}

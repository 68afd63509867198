package views

import (
	"errors"
	"sync"
)

// ErrBusy is returned when the same action is already running for a session.
var ErrBusy = errors.New("views: action already in progress")

// Guard lets at most one instance of each action run per session, which is
// how a trigger stays disabled until its request settles.
type Guard struct {
	mu      sync.Mutex
	running map[string]map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{running: make(map[string]map[string]struct{})}
}

// Acquire marks action as running for sessionID. The returned release must be
// called once the request settles.
func (g *Guard) Acquire(sessionID, action string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	actions := g.running[sessionID]
	if actions == nil {
		actions = make(map[string]struct{})
		g.running[sessionID] = actions
	}
	if _, busy := actions[action]; busy {
		return nil, ErrBusy
	}
	actions[action] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if a := g.running[sessionID]; a != nil {
				delete(a, action)
				if len(a) == 0 {
					delete(g.running, sessionID)
				}
			}
		})
	}, nil
}

// Busy reports whether action is running for sessionID.
func (g *Guard) Busy(sessionID, action string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[sessionID][action]
	return ok
}

// Forget drops all records of sessionID.
func (g *Guard) Forget(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, sessionID)
}

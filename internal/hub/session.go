package hub

import (
	"slices"
	"sync"
)

// sessionRegistry maps principals to the channels they are attached to.
// Entries disappear as soon as their channel set is empty.
type sessionRegistry struct {
	mu          sync.Mutex
	byPrincipal map[string]map[string]struct{}
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{byPrincipal: make(map[string]map[string]struct{})}
}

func (r *sessionRegistry) add(principal, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byPrincipal[principal]
	if !ok {
		set = make(map[string]struct{})
		r.byPrincipal[principal] = set
	}
	set[channel] = struct{}{}
}

func (r *sessionRegistry) remove(principal, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byPrincipal[principal]
	if !ok {
		return
	}
	delete(set, channel)
	if len(set) == 0 {
		delete(r.byPrincipal, principal)
	}
}

// channels returns a sorted copy of the principal's channel set.
func (r *sessionRegistry) channels(principal string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byPrincipal[principal]
	out := make([]string, 0, len(set))
	for ch := range set {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}

// ABOUTME: Registry of live sessions with one lock per session
// ABOUTME: Independent sessions run concurrently; idle sessions beyond a cap are evicted
package session

import (
	"context"
	"sort"
	"sync"
)

// LoadFunc restores a session that is not in memory. It returns a fresh state
// when nothing is stored for id.
type LoadFunc func(ctx context.Context, id string) (*State, error)

// DefaultMaxSessions is how many sessions a registry keeps in memory
const DefaultMaxSessions = 256

type entry struct {
	sem   chan struct{}
	refs  int // holders and waiters; an entry with refs > 0 is never evicted
	used  uint64
	state *State
}

// Registry holds the live sessions of a process. Once more than limit sessions
// are held, the least recently used idle ones are evicted and reloaded through
// load on their next Acquire.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	load     LoadFunc
	limit    int
	clock    uint64
}

// NewRegistry creates a registry holding up to DefaultMaxSessions sessions.
// load may be nil, in which case unknown sessions start empty.
func NewRegistry(load LoadFunc) *Registry {
	return NewRegistryWithLimit(load, DefaultMaxSessions)
}

// NewRegistryWithLimit creates a registry that keeps at most limit idle
// sessions in memory. limit below one selects DefaultMaxSessions.
func NewRegistryWithLimit(load LoadFunc, limit int) *Registry {
	if limit < 1 {
		limit = DefaultMaxSessions
	}
	return &Registry{
		sessions: make(map[string]*entry),
		load:     load,
		limit:    limit,
	}
}

// Acquire locks the session and returns its state together with the release
// function. It blocks until the session is free or ctx is done.
func (r *Registry) Acquire(ctx context.Context, id string) (*State, func(), error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		r.sessions[id] = e
	}
	e.refs++
	r.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		r.unref(e)
		return nil, nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-e.sem
			r.unref(e)
		})
	}

	r.mu.Lock()
	st := e.state
	r.mu.Unlock()
	if st != nil {
		return st, release, nil
	}

	if r.load != nil {
		loaded, err := r.load(ctx, id)
		if err != nil {
			release()
			return nil, nil, err
		}
		st = loaded
	}
	if st == nil {
		st = New(id)
	}

	r.mu.Lock()
	e.state = st
	r.mu.Unlock()
	return st, release, nil
}

// unref marks one holder or waiter of e as gone and evicts idle sessions
// when the registry is over its limit
func (r *Registry) unref(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	r.clock++
	e.used = r.clock
	r.evictLocked()
}

// evictLocked removes least recently used idle sessions until at most limit remain
func (r *Registry) evictLocked() {
	for len(r.sessions) > r.limit {
		var oldestID string
		var oldest *entry
		for id, e := range r.sessions {
			if e.refs > 0 {
				continue
			}
			if oldest == nil || e.used < oldest.used {
				oldestID, oldest = id, e
			}
		}
		if oldest == nil {
			return
		}
		delete(r.sessions, oldestID)
	}
}

// Len returns how many sessions the registry tracks
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Drop discards the in-memory state of a session, e.g. after cancellation.
// The caller must hold the session via Acquire.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		e.state = nil
	}
}

// IDs returns the identifiers of sessions held in memory, sorted
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id, e := range r.sessions {
		if e.state != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

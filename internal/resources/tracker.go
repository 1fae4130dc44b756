// Package resources keeps the acquire/release ledger of runtime-owned
// resources (pinned array elements, string chars, critical sections).
package resources

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultReleasedHistory is the number of released handles remembered for
// double-free classification.
const DefaultReleasedHistory = 1024

// Status classifies a handle at release time.
type Status int

const (
	// Unknown handles were never acquired, or were released so long ago
	// that the history forgot them.
	Unknown Status = iota
	// Tracked handles are currently held.
	Tracked
	// Released handles were held and have since been released.
	Released
)

func (s Status) String() string {
	switch s {
	case Tracked:
		return "tracked"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// Leak is a resource still held at audit time.
type Leak struct {
	Resource uintptr `json:"resource"`
	Site     string  `json:"site"`
}

// Tracker maps held resource handles to the call site that acquired them.
// It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	held     map[uintptr]string
	released *lru.Cache[uintptr, string]
}

// NewTracker returns an empty tracker remembering up to history released
// handles.
func NewTracker(history int) (*Tracker, error) {
	if history <= 0 {
		return nil, ErrInvalidHistory
	}
	released, err := lru.New[uintptr, string](history)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		held:     make(map[uintptr]string),
		released: released,
	}, nil
}

// Acquire records res as held by site. Acquiring a held handle again
// replaces its site.
func (t *Tracker) Acquire(res uintptr, site string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.held[res]; !ok {
		LiveResources.Inc()
	}
	t.held[res] = site
	t.released.Remove(res)
}

// Release drops res and returns the site that acquired it. ok is false when
// res was not held.
func (t *Tracker) Release(res uintptr) (site string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	site, ok = t.held[res]
	if !ok {
		return "", false
	}
	delete(t.held, res)
	t.released.Add(res, site)
	LiveResources.Dec()
	Releases.WithLabelValues("released").Inc()
	return site, true
}

// Status classifies res without changing the ledger.
func (t *Tracker) Status(res uintptr) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.held[res]; ok {
		return Tracked
	}
	if t.released.Contains(res) {
		return Released
	}
	return Unknown
}

// ReleasedSite returns the acquiring site of a recently released handle.
func (t *Tracker) ReleasedSite(res uintptr) (string, bool) {
	return t.released.Peek(res)
}

// Leaks returns every held resource ordered by handle.
func (t *Tracker) Leaks() []Leak {
	t.mu.Lock()
	out := make([]Leak, 0, len(t.held))
	for res, site := range t.held {
		out = append(out, Leak{Resource: res, Site: site})
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// Len returns the number of held resources.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held)
}

package campaign

import (
	"sync"
	"time"

	"github.com/ignite/mailblast/internal/domain"
)

// Registry is the process-wide state store for campaign progress snapshots
// and control flags. It is injected into the engine and the publisher, never
// ambient. Safe for concurrent use: one engine writes a given snapshot while
// any number of observers read it, and any controller may set flags.
type Registry struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.ProgressSnapshot
	flags     map[string]*domain.ControlFlags
	doneAt    map[string]time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		snapshots: make(map[string]*domain.ProgressSnapshot),
		flags:     make(map[string]*domain.ControlFlags),
		doneAt:    make(map[string]time.Time),
	}
}

// Register creates the snapshot and control flags for a new campaign.
func (r *Registry) Register(id string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[id] = &domain.ProgressSnapshot{
		Total:        total,
		Status:       "starting",
		Activity:     "Campaign starting",
		ActivityKind: domain.ActivityInfo,
		StartedAt:    time.Now(),
		Revision:     1,
	}
	r.flags[id] = &domain.ControlFlags{}
}

// Snapshot returns a copy of the campaign's snapshot.
func (r *Registry) Snapshot(id string) (domain.ProgressSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snapshots[id]
	if !ok {
		return domain.ProgressSnapshot{}, false
	}
	return *s, true
}

// Update applies fn to the campaign's snapshot under the write lock and
// bumps its revision. Only the owning engine (and the service attaching
// final results) should call this.
func (r *Registry) Update(id string, fn func(*domain.ProgressSnapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.snapshots[id]
	if !ok {
		return
	}
	fn(s)
	s.Revision++
	if s.Completed {
		if _, done := r.doneAt[id]; !done {
			r.doneAt[id] = time.Now()
		}
	}
}

// Flags returns the campaign's control flags.
func (r *Registry) Flags(id string) (domain.ControlFlags, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flags[id]
	if !ok {
		return domain.ControlFlags{}, false
	}
	return *f, true
}

// SetPaused sets the paused flag. Returns false for unknown campaigns.
func (r *Registry) SetPaused(id string, paused bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flags[id]
	if !ok {
		return false
	}
	f.Paused = paused
	return true
}

// SetStopped requests a cooperative stop. Returns false for unknown
// campaigns. Stopping also clears pause so a paused campaign can exit.
func (r *Registry) SetStopped(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flags[id]
	if !ok {
		return false
	}
	f.Stopped = true
	f.Paused = false
	return true
}

// Sweep removes completed campaigns older than maxAge and returns how many
// were evicted. Running campaigns are never touched.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, done := range r.doneAt {
		if done.Before(cutoff) {
			delete(r.snapshots, id)
			delete(r.flags, id)
			delete(r.doneAt, id)
			n++
		}
	}
	return n
}

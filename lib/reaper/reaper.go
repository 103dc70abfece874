// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package reaper

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dj-Codeman/dusa/lib/clock"
	"github.com/Dj-Codeman/dusa/lib/ownership"
)

// Config holds a Reaper's collaborators.
type Config struct {
	// Identity receives ownership of each file before it is deleted.
	Identity ownership.Identity

	// Clock schedules reaps. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives one line per reap. Defaults to slog.Default().
	Logger *slog.Logger
}

// Stats is a snapshot of a Reaper's counters.
type Stats struct {
	Scheduled uint64
	Reaped    uint64
	Failed    uint64
	Pending   int
}

// Reaper owns the timers for outstanding temp files. It is safe for
// concurrent use.
type Reaper struct {
	identity ownership.Identity
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]pendingReap

	scheduled atomic.Uint64
	reaped    atomic.Uint64
	failed    atomic.Uint64
}

type pendingReap struct {
	timer    *clock.Timer
	deadline time.Time
}

// New creates a Reaper.
func New(config Config) *Reaper {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Reaper{
		identity: config.Identity,
		clock:    config.Clock,
		logger:   config.Logger,
		pending:  make(map[string]pendingReap),
	}
}

// Schedule arms a reap of path after ttl. Scheduling a path that is
// already pending keeps the earlier deadline. A non-positive ttl reaps
// before Schedule returns.
func (r *Reaper) Schedule(path string, ttl time.Duration) {
	r.mu.Lock()
	if existing, ok := r.pending[path]; ok {
		r.mu.Unlock()
		r.logger.Warn("temp file already scheduled for reaping",
			"path", path,
			"deadline", existing.deadline,
		)
		return
	}
	r.scheduled.Add(1)

	if ttl <= 0 {
		r.mu.Unlock()
		r.reap(path)
		return
	}

	// The timer callback takes r.mu, so it cannot observe the registry
	// before this entry is in place.
	r.pending[path] = pendingReap{
		deadline: r.clock.Now().Add(ttl),
		timer:    r.clock.AfterFunc(ttl, func() { r.fire(path) }),
	}
	r.mu.Unlock()

	r.logger.Debug("temp file scheduled for reaping", "path", path, "ttl", ttl)
}

// fire runs when a timer expires. A path no longer in the registry was
// already taken by Flush.
func (r *Reaper) fire(path string) {
	r.mu.Lock()
	_, ok := r.pending[path]
	delete(r.pending, path)
	r.mu.Unlock()

	if ok {
		r.reap(path)
	}
}

// reap takes ownership of path and deletes it. A failed ownership
// transfer ends the reap without attempting the delete.
func (r *Reaper) reap(path string) {
	if err := ownership.Transfer(path, r.identity); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.reaped.Add(1)
			r.logger.Debug("temp file already gone", "path", path)
			return
		}
		r.failed.Add(1)
		r.logger.Error("reclaiming temp file failed, plaintext may remain on disk",
			"path", path,
			"identity", r.identity.String(),
			"error", err,
		)
		return
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Transfer succeeded a moment ago, so something else
			// removed it in between. The file is gone either way.
			r.reaped.Add(1)
			return
		}
		r.failed.Add(1)
		r.logger.Error("deleting temp file failed, plaintext may remain on disk",
			"path", path,
			"error", err,
		)
		return
	}

	r.reaped.Add(1)
	r.logger.Debug("temp file reaped", "path", path)
}

// Pending returns the paths awaiting a reap, sorted.
func (r *Reaper) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(r.pending))
	for path := range r.pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Stats returns the current counters.
func (r *Reaper) Stats() Stats {
	r.mu.Lock()
	pending := len(r.pending)
	r.mu.Unlock()
	return Stats{
		Scheduled: r.scheduled.Load(),
		Reaped:    r.reaped.Load(),
		Failed:    r.failed.Load(),
		Pending:   pending,
	}
}

// Flush reaps every pending path now and returns how many it handled.
// The daemon calls it on shutdown so no plaintext outlives the process.
func (r *Reaper) Flush() int {
	r.mu.Lock()
	paths := make([]string, 0, len(r.pending))
	for path, entry := range r.pending {
		entry.timer.Stop()
		paths = append(paths, path)
	}
	clear(r.pending)
	r.mu.Unlock()

	if len(paths) > 0 {
		r.logger.Info("flushing pending temp files", "count", len(paths))
	}
	for _, path := range paths {
		r.reap(path)
	}
	return len(paths)
}

package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-upwork-assistant/internal/store"
)

// Expiry is how long a job id is remembered after it was first seen
const Expiry = 30 * 24 * time.Hour

type seenEntry struct {
	JobID     string `json:"job_id"`
	Timestamp int64  `json:"timestamp"`
}

// JobCache remembers which job ids earlier runs already reported, so a run
// can tell new postings from ones the user has seen before
type JobCache struct {
	mu     sync.Mutex
	store  store.Store
	seen   map[string]int64
	now    func() time.Time
	logger *slog.Logger
}

// NewJobCache loads the cache from st, dropping expired entries
func NewJobCache(ctx context.Context, st store.Store, logger *slog.Logger) (*JobCache, error) {
	jc := &JobCache{
		store:  st,
		seen:   make(map[string]int64),
		now:    time.Now,
		logger: logger,
	}
	if err := jc.load(ctx); err != nil {
		return nil, err
	}
	return jc, nil
}

// IsSeen reports whether id was recorded by an earlier run
func (jc *JobCache) IsSeen(id string) bool {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	_, exists := jc.seen[id]
	return exists
}

// Add records ids and returns how many of them were new
func (jc *JobCache) Add(ctx context.Context, ids []string) (int, error) {
	jc.mu.Lock()
	defer jc.mu.Unlock()

	now := jc.now().UnixMilli()
	added := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, exists := jc.seen[id]; !exists {
			jc.seen[id] = now
			added++
		}
	}

	if added > 0 {
		if err := jc.save(ctx); err != nil {
			return added, err
		}
	}
	return added, nil
}

// Len is the number of remembered ids
func (jc *JobCache) Len() int {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return len(jc.seen)
}

func (jc *JobCache) load(ctx context.Context) error {
	entries, ok, err := store.Load[[]seenEntry](ctx, jc.store, store.KeySeenJobs)
	if err != nil {
		return fmt.Errorf("load seen jobs: %w", err)
	}
	if !ok {
		return nil
	}

	cutoff := jc.now().Add(-Expiry).UnixMilli()
	loaded := 0
	for _, e := range entries {
		if e.Timestamp > cutoff {
			jc.seen[e.JobID] = e.Timestamp
			loaded++
		}
	}
	jc.logger.Info("📋 Loaded previously seen jobs",
		slog.Int("loaded", loaded),
		slog.Int("expired", len(entries)-loaded))
	return nil
}

// save must be called with mu held
func (jc *JobCache) save(ctx context.Context) error {
	entries := make([]seenEntry, 0, len(jc.seen))
	for id, ts := range jc.seen {
		entries = append(entries, seenEntry{JobID: id, Timestamp: ts})
	}
	if err := store.Save(ctx, jc.store, store.KeySeenJobs, entries); err != nil {
		return fmt.Errorf("save seen jobs: %w", err)
	}
	jc.logger.Debug("💾 Saved seen jobs", slog.Int("count", len(entries)))
	return nil
}

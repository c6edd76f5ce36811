package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	PostsCreated          uint64
	PostsUpdated          uint64
	PostsDeleted          uint64
	PostCacheHits         uint64
	PostCacheMisses       uint64
	SearchDurationCount   uint64
	SearchDurationTotalNs int64
	LoginsSucceeded       uint64
	LoginsFailed          uint64
	LoginsRateLimited     uint64
}

// InMemoryRecorder keeps counters in process memory. It backs /metrics.
type InMemoryRecorder struct {
	postsCreated          atomic.Uint64
	postsUpdated          atomic.Uint64
	postsDeleted          atomic.Uint64
	postCacheHits         atomic.Uint64
	postCacheMisses       atomic.Uint64
	searchDurationCount   atomic.Uint64
	searchDurationTotalNs atomic.Int64
	loginsSucceeded       atomic.Uint64
	loginsFailed          atomic.Uint64
	loginsRateLimited     atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		PostsCreated:          m.postsCreated.Load(),
		PostsUpdated:          m.postsUpdated.Load(),
		PostsDeleted:          m.postsDeleted.Load(),
		PostCacheHits:         m.postCacheHits.Load(),
		PostCacheMisses:       m.postCacheMisses.Load(),
		SearchDurationCount:   m.searchDurationCount.Load(),
		SearchDurationTotalNs: m.searchDurationTotalNs.Load(),
		LoginsSucceeded:       m.loginsSucceeded.Load(),
		LoginsFailed:          m.loginsFailed.Load(),
		LoginsRateLimited:     m.loginsRateLimited.Load(),
	}
}

func (m *InMemoryRecorder) IncPostCreated()   { m.postsCreated.Add(1) }
func (m *InMemoryRecorder) IncPostUpdated()   { m.postsUpdated.Add(1) }
func (m *InMemoryRecorder) IncPostDeleted()   { m.postsDeleted.Add(1) }
func (m *InMemoryRecorder) IncPostCacheHit()  { m.postCacheHits.Add(1) }
func (m *InMemoryRecorder) IncPostCacheMiss() { m.postCacheMisses.Add(1) }

// ObserveSearchDuration records one feed query.
func (m *InMemoryRecorder) ObserveSearchDuration(duration time.Duration) {
	m.searchDurationCount.Add(1)
	m.searchDurationTotalNs.Add(duration.Nanoseconds())
}

func (m *InMemoryRecorder) IncLoginSucceeded()   { m.loginsSucceeded.Add(1) }
func (m *InMemoryRecorder) IncLoginFailed()      { m.loginsFailed.Add(1) }
func (m *InMemoryRecorder) IncLoginRateLimited() { m.loginsRateLimited.Add(1) }

// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// Post lifecycle
	IncPostCreated()
	IncPostUpdated()
	IncPostDeleted()

	// Post detail cache
	IncPostCacheHit()
	IncPostCacheMiss()

	// Feed
	ObserveSearchDuration(duration time.Duration)

	// Credentials
	IncLoginSucceeded()
	IncLoginFailed()
	IncLoginRateLimited()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

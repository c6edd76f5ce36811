package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncPostCreated()                              {}
func (n *NoopRecorder) IncPostUpdated()                              {}
func (n *NoopRecorder) IncPostDeleted()                              {}
func (n *NoopRecorder) IncPostCacheHit()                             {}
func (n *NoopRecorder) IncPostCacheMiss()                            {}
func (n *NoopRecorder) ObserveSearchDuration(duration time.Duration) {}
func (n *NoopRecorder) IncLoginSucceeded()                           {}
func (n *NoopRecorder) IncLoginFailed()                              {}
func (n *NoopRecorder) IncLoginRateLimited()                         {}

package importer

// limiter.go bounds how many imports write to the catalog at once.
//
// Slots are a buffered channel. A submission that cannot get a slot within
// maxWait fails with ErrTooManyUploads so the handler can ask the client to
// retry. On shutdown WaitForDrain blocks until in-flight imports finish.

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyUploads is returned when every import slot stays busy for the
// whole wait period.
var ErrTooManyUploads = errors.New("too many uploads in progress, please try again later")

const (
	defaultMaxConcurrent = 5
	defaultMaxWait       = 30 * time.Second
	drainPollInterval    = 100 * time.Millisecond
)

// Limiter is a counting semaphore for catalog writes.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewLimiter allows maxConcurrent simultaneous imports and makes callers wait
// at most maxWait for a slot. Non-positive values fall back to defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must Release it when the import is done.
// If ctx ends first its error is returned; if the wait period ends first,
// ErrTooManyUploads.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyUploads
	}
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	<-l.slots
}

// LimiterStatus is a point-in-time view of slot usage.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status reports current slot usage.
func (l *Limiter) Status() LimiterStatus {
	active := len(l.slots)
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}

// WaitForDrain blocks until no import holds a slot or ctx is done.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	if len(l.slots) == 0 {
		return nil
	}

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if len(l.slots) == 0 {
				return nil
			}
		}
	}
}

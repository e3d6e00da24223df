package core

import (
	"context"
	"sync/atomic"
	"time"

	"rallynav/pkg/geo"
	"rallynav/pkg/gps"
)

// Job defines a scheduled task. The fix is nil on ticks without a fresh position.
type Job interface {
	Name() string
	ShouldFire(f *gps.Fix) bool
	Run(ctx context.Context, f *gps.Fix)
}

// BaseJob provides atomic running state to prevent re-entry.
type BaseJob struct {
	name    string
	running int32 // 1 if running, 0 otherwise
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// TryLock attempts to set running to 1. Returns true if successful.
func (b *BaseJob) TryLock() bool {
	return atomic.CompareAndSwapInt32(&b.running, 0, 1)
}

func (b *BaseJob) Unlock() {
	atomic.StoreInt32(&b.running, 0)
}

// DistanceJob fires when distance flown exceeds threshold. It never fires without a fix.
type DistanceJob struct {
	BaseJob
	sphere    geo.Sphere
	lastPos   geo.Location
	threshold float64 // sphere units
	action    func(context.Context, gps.Fix)
	firstRun  bool
}

func NewDistanceJob(name string, sphere geo.Sphere, threshold float64, action func(context.Context, gps.Fix)) *DistanceJob {
	return &DistanceJob{
		BaseJob:   NewBaseJob(name),
		sphere:    sphere,
		threshold: threshold,
		action:    action,
		firstRun:  true,
	}
}

func (j *DistanceJob) ShouldFire(f *gps.Fix) bool {
	if f == nil || atomic.LoadInt32(&j.running) == 1 {
		return false
	}
	if j.firstRun {
		return true
	}
	return j.sphere.Distance(j.lastPos, f.Location()) >= j.threshold
}

func (j *DistanceJob) Run(ctx context.Context, f *gps.Fix) {
	if f == nil || !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.lastPos = f.Location()
	j.firstRun = false

	j.action(ctx, *f)
}

// TimeJob fires when time elapsed exceeds threshold.
type TimeJob struct {
	BaseJob
	lastTime  time.Time
	threshold time.Duration
	action    func(context.Context, *gps.Fix)
	firstRun  bool
}

func NewTimeJob(name string, threshold time.Duration, action func(context.Context, *gps.Fix)) *TimeJob {
	return &TimeJob{
		BaseJob:   NewBaseJob(name),
		threshold: threshold,
		action:    action,
		firstRun:  true,
	}
}

func (j *TimeJob) ShouldFire(_ *gps.Fix) bool {
	if atomic.LoadInt32(&j.running) == 1 {
		return false
	}

	if j.firstRun {
		return true
	}

	return time.Since(j.lastTime) >= j.threshold
}

func (j *TimeJob) Run(ctx context.Context, f *gps.Fix) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.lastTime = time.Now()
	j.firstRun = false

	j.action(ctx, f)
}

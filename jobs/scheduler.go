/*
scheduler.go - Periodic job scheduler

PURPOSE:
  A single fixed-interval ticker drives all background jobs. Each tick
  runs every job concurrently in its own goroutine under a shared
  per-tick timeout, then waits for all of them before arming the next
  tick - an overrunning job is cancelled and logged rather than letting
  ticks pile up behind it.

DESIGN:
  The scheduler owns its task handles: Start spawns the loop, Stop
  cancels the context and blocks until in-flight jobs return. No
  fire-and-forget goroutines.

USAGE:
  sched := jobs.NewScheduler(time.Minute, reconciler, sweeper)
  sched.Start()
  // ... later
  sched.Stop()
*/
package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is one schedulable unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs its jobs concurrently on a fixed interval.
type Scheduler struct {
	Interval    time.Duration
	TickTimeout time.Duration

	jobs   []Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a scheduler. The tick timeout defaults to the
// interval itself: a tick that hasn't finished when the next one is due
// is overrunning by definition.
func NewScheduler(interval time.Duration, jobs ...Job) *Scheduler {
	return &Scheduler{
		Interval:    interval,
		TickTimeout: interval,
		jobs:        jobs,
	}
}

// Start begins the scheduling loop. The first tick fires immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return // already running
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	log.Printf("[Scheduler] started with interval %v", s.Interval)
}

// Stop cancels the loop and waits for in-flight jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	log.Println("[Scheduler] stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// tick runs every job concurrently and waits for all of them under the
// tick timeout.
func (s *Scheduler) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, s.TickTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			started := time.Now()
			if err := j.Run(tickCtx); err != nil {
				log.Printf("[Scheduler] job %s failed after %v: %v", j.Name(), time.Since(started), err)
			}
		}(job)
	}
	wg.Wait()
}

// RunNow executes a single tick synchronously (admin/testing).
func (s *Scheduler) RunNow(ctx context.Context) {
	s.tick(ctx)
}

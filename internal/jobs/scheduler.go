// Package jobs runs background maintenance on a timer per job.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is one schedulable unit of background work.
type Job interface {
	Run(ctx context.Context) error
	GetNextRunTime() time.Time
}

// Scheduler owns a timer per registered job. Each run reschedules
// itself from the job's own GetNextRunTime.
type Scheduler struct {
	jobs    map[string]Job
	timers  map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]Job),
		timers: make(map[string]*time.Timer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job under a unique name.
func (s *Scheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = job
	log.Printf("✅ [SCHEDULER] Registered job: %s", name)
}

// Start arms a timer for every registered job. Safe to call once;
// repeated calls are no-ops.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	log.Printf("🚀 [SCHEDULER] Starting job scheduler with %d job(s)", len(s.jobs))

	for name, job := range s.jobs {
		s.scheduleJob(name, job)
	}
}

// scheduleJob arms the next timer for one job. Caller holds the lock.
func (s *Scheduler) scheduleJob(name string, job Job) {
	nextRun := job.GetNextRunTime()
	wait := time.Until(nextRun)

	log.Printf("⏰ [SCHEDULER] Job '%s' next run at %s (in %v)",
		name, nextRun.Format(time.RFC3339), wait)

	s.timers[name] = time.AfterFunc(wait, func() {
		s.runJob(name, job)
	})
}

// runJob executes one job and, while the scheduler is still running,
// arms its next timer.
func (s *Scheduler) runJob(name string, job Job) {
	s.wg.Add(1)
	defer s.wg.Done()

	log.Printf("▶️  [SCHEDULER] Running job: %s", name)
	start := time.Now()
	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", name, err)
	} else {
		log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", name, time.Since(start))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.scheduleJob(name, job)
	}
}

// Stop disarms all timers, cancels the job context and waits for any
// in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	log.Println("🛑 [SCHEDULER] Stopping job scheduler...")
	s.running = false
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	log.Println("✅ [SCHEDULER] Job scheduler stopped")
}

// RunNow executes a registered job synchronously, outside its
// schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		log.Printf("⚠️  [SCHEDULER] Job '%s' not found", name)
		return nil
	}
	return job.Run(s.ctx)
}

package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/infra/metrics"
	"telegram-channel-publisher/internal/infra/worker"
)

// FireFunc publishes one due job.
type FireFunc func(ctx context.Context, job model.ScheduledJob) error

// Submitter is the slice of worker.Pool the scheduler needs.
type Submitter interface {
	Submit(task worker.Task) error
}

// Scheduler holds one-shot jobs in a min-heap ordered by RunAt and hands
// due jobs to a worker pool from a ticker loop.
type Scheduler struct {
	mu   sync.Mutex
	jobs jobHeap
	byID map[int64]*entry

	tick   time.Duration
	pool   Submitter
	fire   FireFunc
	now    func() time.Time
	logger *zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a scheduler polling every tick (default 1s).
func NewScheduler(tick time.Duration, pool Submitter, fire FireFunc, logger *zerolog.Logger) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}
	l := logger.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		byID:   make(map[int64]*entry),
		tick:   tick,
		pool:   pool,
		fire:   fire,
		now:    time.Now,
		logger: &l,
	}
}

// Schedule registers job. A job for a post already held replaces the old one.
// Past RunAt values are kept as-is and fire on the next tick.
func (s *Scheduler) Schedule(job model.ScheduledJob) {
	s.mu.Lock()
	if job.PostID != 0 {
		if old, ok := s.byID[job.PostID]; ok {
			old.job = job
			heap.Fix(&s.jobs, old.index)
			s.mu.Unlock()
			s.logger.Debug().Int64("post_id", job.PostID).Time("run_at", job.RunAt).Msg("job replaced")
			return
		}
	}
	e := &entry{job: job}
	heap.Push(&s.jobs, e)
	if job.PostID != 0 {
		s.byID[job.PostID] = e
	}
	n := len(s.jobs)
	s.mu.Unlock()

	metrics.SetScheduledPending(n)
	s.logger.Info().Int64("post_id", job.PostID).Time("run_at", job.RunAt).Msg("job scheduled")
}

// Restore re-registers every scheduled post; used once at boot.
func (s *Scheduler) Restore(posts []*model.Post) int {
	n := 0
	for _, p := range posts {
		job, ok := p.Job()
		if !ok {
			continue
		}
		s.Schedule(job)
		n++
	}
	s.logger.Info().Int("restored", n).Msg("scheduler restored from store")
	return n
}

// Cancel drops the job for postID if held.
func (s *Scheduler) Cancel(postID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[postID]
	if !ok {
		return false
	}
	heap.Remove(&s.jobs, e.index)
	delete(s.byID, postID)
	metrics.SetScheduledPending(len(s.jobs))
	return true
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Run polls until ctx is done. The tick never waits for a publication.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.logger.Info().Dur("tick", s.tick).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// Start runs the loop in a background goroutine; calling it twice has no effect.
func (s *Scheduler) Start(parent context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
}

// Stop cancels the loop and waits for it to finish. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

// dispatchDue pops every due job exactly once and submits it to the pool.
// Jobs the pool cannot take right now go back on the heap for the next tick.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.now()
	var due []model.ScheduledJob

	s.mu.Lock()
	for len(s.jobs) > 0 && !s.jobs[0].job.RunAt.After(now) {
		e := heap.Pop(&s.jobs).(*entry)
		if e.job.PostID != 0 {
			delete(s.byID, e.job.PostID)
		}
		due = append(due, e.job)
	}
	s.mu.Unlock()

	for i, job := range due {
		job := job
		err := s.pool.Submit(func(taskCtx context.Context) error {
			return s.fire(taskCtx, job)
		})
		if err == nil {
			metrics.IncScheduledFired("dispatched")
			s.logger.Debug().Int64("post_id", job.PostID).Msg("job dispatched")
			continue
		}
		metrics.IncScheduledFired("deferred")
		s.logger.Warn().Err(err).Int64("post_id", job.PostID).Msg("worker pool refused job; retrying next tick")
		if errors.Is(err, worker.ErrStopped) || ctx.Err() != nil {
			s.requeue(due[i:])
			break
		}
		s.requeue(due[i : i+1])
	}
	metrics.SetScheduledPending(s.Pending())
}

func (s *Scheduler) requeue(jobs []model.ScheduledJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range jobs {
		if job.PostID != 0 {
			if _, ok := s.byID[job.PostID]; ok {
				continue // rescheduled meanwhile
			}
		}
		e := &entry{job: job}
		heap.Push(&s.jobs, e)
		if job.PostID != 0 {
			s.byID[job.PostID] = e
		}
	}
}

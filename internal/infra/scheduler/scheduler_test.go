//go:build !integration

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/infra/worker"
)

// syncSubmitter runs tasks inline, optionally refusing the first few.
type syncSubmitter struct {
	refuse int
	err    error
}

func (s *syncSubmitter) Submit(task worker.Task) error {
	if s.refuse > 0 {
		s.refuse--
		return s.err
	}
	return task(context.Background())
}

type recorder struct {
	mu    sync.Mutex
	fired []model.ScheduledJob
}

func (r *recorder) fire(_ context.Context, job model.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, job)
	return nil
}

func newTestScheduler(sub Submitter, rec *recorder, now time.Time) *Scheduler {
	logger := zerolog.New(nil)
	s := NewScheduler(time.Second, sub, rec.fire, &logger)
	s.now = func() time.Time { return now }
	return s
}

func TestScheduler_DispatchDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	t.Run("should fire due jobs in run-at order exactly once", func(t *testing.T) {
		// Arrange
		rec := &recorder{}
		s := newTestScheduler(&syncSubmitter{}, rec, now)
		s.Schedule(model.ScheduledJob{PostID: 2, Text: "b", RunAt: now.Add(-time.Minute)})
		s.Schedule(model.ScheduledJob{PostID: 1, Text: "a", RunAt: now.Add(-time.Hour)})
		s.Schedule(model.ScheduledJob{PostID: 3, Text: "c", RunAt: now.Add(time.Hour)})

		// Act
		s.dispatchDue(context.Background())
		s.dispatchDue(context.Background())

		// Assert
		if len(rec.fired) != 2 || rec.fired[0].PostID != 1 || rec.fired[1].PostID != 2 {
			t.Fatalf("unexpected firings: %+v", rec.fired)
		}
		if s.Pending() != 1 {
			t.Errorf("expected the future job to stay pending, got %d", s.Pending())
		}
	})

	t.Run("should fire a job whose time equals now", func(t *testing.T) {
		rec := &recorder{}
		s := newTestScheduler(&syncSubmitter{}, rec, now)
		s.Schedule(model.ScheduledJob{PostID: 1, RunAt: now})
		s.dispatchDue(context.Background())
		if len(rec.fired) != 1 {
			t.Errorf("expected one firing, got %d", len(rec.fired))
		}
	})

	t.Run("should keep a refused job for the next tick", func(t *testing.T) {
		rec := &recorder{}
		s := newTestScheduler(&syncSubmitter{refuse: 1, err: worker.ErrQueueFull}, rec, now)
		s.Schedule(model.ScheduledJob{PostID: 9, RunAt: now.Add(-time.Second)})

		s.dispatchDue(context.Background())
		if len(rec.fired) != 0 || s.Pending() != 1 {
			t.Fatalf("expected job requeued, fired=%d pending=%d", len(rec.fired), s.Pending())
		}

		s.dispatchDue(context.Background())
		if len(rec.fired) != 1 || s.Pending() != 0 {
			t.Errorf("expected job fired on retry, fired=%d pending=%d", len(rec.fired), s.Pending())
		}
	})

	t.Run("should replace a job registered twice for the same post", func(t *testing.T) {
		rec := &recorder{}
		s := newTestScheduler(&syncSubmitter{}, rec, now)
		s.Schedule(model.ScheduledJob{PostID: 4, Text: "old", RunAt: now.Add(time.Hour)})
		s.Schedule(model.ScheduledJob{PostID: 4, Text: "new", RunAt: now.Add(-time.Minute)})

		if s.Pending() != 1 {
			t.Fatalf("expected one pending job, got %d", s.Pending())
		}
		s.dispatchDue(context.Background())
		if len(rec.fired) != 1 || rec.fired[0].Text != "new" {
			t.Errorf("unexpected firings: %+v", rec.fired)
		}
	})

	t.Run("should drop a cancelled job", func(t *testing.T) {
		rec := &recorder{}
		s := newTestScheduler(&syncSubmitter{}, rec, now)
		s.Schedule(model.ScheduledJob{PostID: 5, RunAt: now.Add(-time.Minute)})
		if !s.Cancel(5) {
			t.Fatal("expected cancel to find the job")
		}
		s.dispatchDue(context.Background())
		if len(rec.fired) != 0 {
			t.Errorf("cancelled job fired: %+v", rec.fired)
		}
	})
}

func TestScheduler_Restore(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	rec := &recorder{}
	s := newTestScheduler(&syncSubmitter{}, rec, now)

	past, _ := model.NewScheduledPost("missed while down", now.Add(-2*time.Hour))
	past.ID = 1
	future, _ := model.NewScheduledPost("tomorrow", now.Add(23*time.Hour))
	future.ID = 2
	sent, _ := model.NewSentPost("already out", 10)
	sent.ID = 3

	if n := s.Restore([]*model.Post{past, future, sent}); n != 2 {
		t.Fatalf("expected 2 restored jobs, got %d", n)
	}
	s.dispatchDue(context.Background())
	if len(rec.fired) != 1 || rec.fired[0].PostID != 1 {
		t.Errorf("expected past-due job to fire on the first tick, got %+v", rec.fired)
	}
}

func TestScheduler_RunStopsWithContext(t *testing.T) {
	logger := zerolog.New(nil)
	rec := &recorder{}
	fired := make(chan struct{}, 1)
	s := NewScheduler(10*time.Millisecond, &syncSubmitter{}, func(ctx context.Context, job model.ScheduledJob) error {
		_ = rec.fire(ctx, job)
		fired <- struct{}{}
		return nil
	}, &logger)
	s.Schedule(model.ScheduledJob{PostID: 1, RunAt: time.Now()})

	s.Start(context.Background())
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("job did not fire")
	}
	s.Stop()
	s.Stop() // idempotent
}

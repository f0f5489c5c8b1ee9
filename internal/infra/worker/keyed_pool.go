package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// KeyedPool gives every key its own queue and goroutine. Tasks for one key
// run in submission order; different keys never wait on each other. A key's
// goroutine exits once its queue drains and is recreated on the next Submit.
type KeyedPool struct {
	mu     sync.Mutex
	lanes  map[int64]*lane
	depth  int
	ctx    context.Context
	wg     sync.WaitGroup
	logger *zerolog.Logger
}

type lane struct {
	queue []Task
}

// NewKeyedPool bounds each key's backlog at depth pending tasks.
func NewKeyedPool(depth int, logger *zerolog.Logger) *KeyedPool {
	if depth <= 0 {
		depth = 16
	}
	l := logger.With().Str("component", "keyed-pool").Logger()
	return &KeyedPool{lanes: make(map[int64]*lane), depth: depth, logger: &l}
}

// Start binds the pool to ctx. Tasks run with ctx; once it is done queued
// tasks are discarded and Submit returns ErrStopped.
func (p *KeyedPool) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
}

// Wait blocks until every running lane has exited.
func (p *KeyedPool) Wait() { p.wg.Wait() }

// Active reports how many keys currently own a goroutine.
func (p *KeyedPool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lanes)
}

// Submit never blocks. A key whose backlog is full gets ErrQueueFull.
func (p *KeyedPool) Submit(ctx context.Context, key int64, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil || p.ctx.Err() != nil {
		return ErrStopped
	}

	l, ok := p.lanes[key]
	if !ok {
		l = &lane{}
		p.lanes[key] = l
		p.wg.Add(1)
		go p.drain(key, l)
	}
	if len(l.queue) >= p.depth {
		return ErrQueueFull
	}
	l.queue = append(l.queue, task)
	return nil
}

func (p *KeyedPool) drain(key int64, l *lane) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		if len(l.queue) == 0 || p.ctx.Err() != nil {
			delete(p.lanes, key)
			p.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		ctx := p.ctx
		p.mu.Unlock()

		runKeyed(ctx, p.logger, key, task)
	}
}

func runKeyed(ctx context.Context, logger *zerolog.Logger, key int64, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Int64("key", key).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		logger.Error().Err(err).Int64("key", key).Msg("task error")
	}
}

package firehose

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// HandleFunc processes one decoded commit. Errors are logged by the scheduler; they never stop the stream.
type HandleFunc func(ctx context.Context, commit *Commit) error

// Scheduler decides where and when decoded commits get processed.
type Scheduler interface {
	AddWork(ctx context.Context, repo string, commit *Commit) error
	Shutdown()
}

// SequentialScheduler runs each commit to completion on the caller's goroutine, so the stream is not read again until the handler returns.
type SequentialScheduler struct {
	do     HandleFunc
	logger *slog.Logger

	itemsAdded     prometheus.Counter
	itemsProcessed prometheus.Counter
	workersActive  prometheus.Gauge
}

func NewSequentialScheduler(ident string, logger *slog.Logger, do HandleFunc) *SequentialScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SequentialScheduler{
		do:             do,
		logger:         logger.With("system", "sequential-scheduler"),
		itemsAdded:     workItemsAdded.WithLabelValues(ident, "sequential"),
		itemsProcessed: workItemsProcessed.WithLabelValues(ident, "sequential"),
		workersActive:  workersActive.WithLabelValues(ident, "sequential"),
	}
	s.workersActive.Set(1)
	return s
}

func (s *SequentialScheduler) AddWork(ctx context.Context, repo string, commit *Commit) error {
	s.itemsAdded.Inc()
	if err := s.do(ctx, commit); err != nil {
		s.logger.Error("event handler failed", "repo", repo, "seq", commit.Seq, "err", err)
	}
	s.itemsProcessed.Inc()
	return nil
}

func (s *SequentialScheduler) Shutdown() {
	s.workersActive.Set(0)
}

// ParallelScheduler runs commits on a fixed pool of workers. Commits from the same repo are processed in order, never concurrently.
type ParallelScheduler struct {
	maxConcurrency int

	do     HandleFunc
	logger *slog.Logger

	feeder chan *consumerTask
	out    chan struct{}

	lk     sync.Mutex
	active map[string][]*consumerTask

	ident string

	itemsAdded     prometheus.Counter
	itemsProcessed prometheus.Counter
	workersActive  prometheus.Gauge
}

type consumerTask struct {
	ctx    context.Context
	repo   string
	commit *Commit
}

func NewParallelScheduler(maxC int, ident string, logger *slog.Logger, do HandleFunc) *ParallelScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	p := &ParallelScheduler{
		maxConcurrency: maxC,
		do:             do,
		logger:         logger.With("system", "parallel-scheduler"),
		feeder:         make(chan *consumerTask),
		out:            make(chan struct{}),
		active:         make(map[string][]*consumerTask),
		ident:          ident,
		itemsAdded:     workItemsAdded.WithLabelValues(ident, "parallel"),
		itemsProcessed: workItemsProcessed.WithLabelValues(ident, "parallel"),
		workersActive:  workersActive.WithLabelValues(ident, "parallel"),
	}

	for i := 0; i < maxC; i++ {
		go p.worker()
	}
	p.workersActive.Set(float64(maxC))

	return p
}

// Shutdown waits for in-flight and queued work to finish, then stops all workers. AddWork must not be called after Shutdown.
func (p *ParallelScheduler) Shutdown() {
	p.logger.Info("shutting down parallel scheduler", "ident", p.ident)

	close(p.feeder)
	for i := 0; i < p.maxConcurrency; i++ {
		<-p.out
	}
	p.workersActive.Set(0)

	p.logger.Info("parallel scheduler shutdown complete")
}

func (p *ParallelScheduler) AddWork(ctx context.Context, repo string, commit *Commit) error {
	p.itemsAdded.Inc()
	t := &consumerTask{
		ctx:    ctx,
		repo:   repo,
		commit: commit,
	}

	p.lk.Lock()
	if q, ok := p.active[repo]; ok {
		p.active[repo] = append(q, t)
		p.lk.Unlock()
		return nil
	}
	p.active[repo] = []*consumerTask{}
	p.lk.Unlock()

	select {
	case p.feeder <- t:
		return nil
	case <-ctx.Done():
		p.lk.Lock()
		delete(p.active, repo)
		p.lk.Unlock()
		return ctx.Err()
	}
}

func (p *ParallelScheduler) worker() {
	defer func() { p.out <- struct{}{} }()

	for work := range p.feeder {
		for work != nil {
			if err := p.do(work.ctx, work.commit); err != nil {
				p.logger.Error("event handler failed", "repo", work.repo, "seq", work.commit.Seq, "err", err)
			}
			p.itemsProcessed.Inc()

			p.lk.Lock()
			rem, ok := p.active[work.repo]
			if !ok {
				p.logger.Error("should always have an 'active' entry if a worker is processing a job")
			}
			if len(rem) == 0 {
				delete(p.active, work.repo)
				work = nil
			} else {
				work = rem[0]
				p.active[work.repo] = rem[1:]
			}
			p.lk.Unlock()
		}
	}
}

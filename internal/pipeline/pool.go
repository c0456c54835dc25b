package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of generation work.
type Task struct {
	Seq    int    // submission index
	Key    int    // page number (edit) or anchor (add)
	Prompt string
}

// TaskResult is the tagged outcome of one task. A failure sets Err and never
// propagates past the pool boundary; the target is simply dropped.
type TaskResult struct {
	Task       Task
	Artifact   string // path to the one-page PDF artifact
	Commentary string
	Err        error
}

// TaskFunc produces the artifact for one task.
type TaskFunc func(ctx context.Context, task Task) (artifact, commentary string, err error)

// Pool runs tasks on a bounded set of workers. Tasks are independent and do
// not communicate; ordering is imposed later by the stitcher, which re-sorts
// by logical key.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// NewPool creates a pool with the given width.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{workers: workers, logger: logger}
}

// Run executes fn for every task and returns all results in completion
// order. Workers always return nil to the errgroup; failures travel the
// results channel as tagged results.
func (p *Pool) Run(ctx context.Context, tasks []Task, fn TaskFunc) []TaskResult {
	if len(tasks) == 0 {
		return nil
	}

	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	queue := make(chan Task)
	results := make(chan TaskResult)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		workerLog := p.logger.With("worker", i+1)
		g.Go(func() error {
			for task := range queue {
				workerLog.Debug("starting target", "position", task.Key)
				artifact, commentary, err := fn(ctx, task)
				if err != nil {
					workerLog.Warn("target failed", "position", task.Key, "error", err)
				}
				results <- TaskResult{
					Task:       task,
					Artifact:   artifact,
					Commentary: commentary,
					Err:        err,
				}
			}
			return nil
		})
	}

	go func() {
		for _, t := range tasks {
			queue <- t
		}
		close(queue)
		_ = g.Wait()
		close(results)
	}()

	// Single-threaded fold over completed results; each task owns its result
	// until it lands here, so no synchronization is needed.
	collected := make([]TaskResult, 0, len(tasks))
	for r := range results {
		collected = append(collected, r)
		p.logger.Info("target finished",
			"position", r.Task.Key,
			"ok", r.Err == nil,
			"completed", len(collected),
			"total", len(tasks),
		)
	}
	return collected
}

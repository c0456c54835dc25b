package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunCollectsAllResults(t *testing.T) {
	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = Task{Seq: i, Key: i + 1, Prompt: fmt.Sprintf("p%d", i+1)}
	}

	pool := NewPool(4, nil)
	results := pool.Run(context.Background(), tasks, func(ctx context.Context, task Task) (string, string, error) {
		return fmt.Sprintf("artifact-%d", task.Seq), "", nil
	})

	if len(results) != len(tasks) {
		t.Fatalf("got %d results, want %d", len(results), len(tasks))
	}
	seen := make(map[int]bool)
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("task %d failed: %v", r.Task.Seq, r.Err)
		}
		if seen[r.Task.Seq] {
			t.Errorf("task %d reported twice", r.Task.Seq)
		}
		seen[r.Task.Seq] = true
	}
}

func TestPool_FailureDoesNotStopOtherTasks(t *testing.T) {
	tasks := []Task{
		{Seq: 0, Key: 1, Prompt: "ok"},
		{Seq: 1, Key: 2, Prompt: "boom"},
		{Seq: 2, Key: 3, Prompt: "ok"},
	}

	pool := NewPool(2, nil)
	results := pool.Run(context.Background(), tasks, func(ctx context.Context, task Task) (string, string, error) {
		if task.Prompt == "boom" {
			return "", "", errors.New("generation failed")
		}
		return "artifact", "", nil
	})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("got %d failures, want 1", failed)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const workers = 3

	var active, peak atomic.Int64
	var mu sync.Mutex

	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = Task{Seq: i, Key: i + 1}
	}

	pool := NewPool(workers, nil)
	pool.Run(context.Background(), tasks, func(ctx context.Context, task Task) (string, string, error) {
		n := active.Add(1)
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return "a", "", nil
	})

	if p := peak.Load(); p > workers {
		t.Errorf("observed %d concurrent tasks, want at most %d", p, workers)
	}
}

func TestPool_SingleWorkerSerializes(t *testing.T) {
	var order []int
	var mu sync.Mutex

	tasks := []Task{
		{Seq: 0, Key: 5},
		{Seq: 1, Key: 1},
		{Seq: 2, Key: 3},
	}

	pool := NewPool(1, nil)
	pool.Run(context.Background(), tasks, func(ctx context.Context, task Task) (string, string, error) {
		mu.Lock()
		order = append(order, task.Seq)
		mu.Unlock()
		return "a", "", nil
	})

	for i, seq := range order {
		if seq != i {
			t.Fatalf("execution order = %v, want submission order", order)
		}
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	pool := NewPool(4, nil)
	results := pool.Run(context.Background(), nil, func(ctx context.Context, task Task) (string, string, error) {
		t.Fatal("task func should not be called")
		return "", "", nil
	})
	if results != nil {
		t.Errorf("got %v, want nil", results)
	}
}

func TestNewPool_ClampsWidth(t *testing.T) {
	pool := NewPool(0, nil)
	if pool.workers != 1 {
		t.Errorf("workers = %d, want 1", pool.workers)
	}
	pool = NewPool(-3, nil)
	if pool.workers != 1 {
		t.Errorf("workers = %d, want 1", pool.workers)
	}
}

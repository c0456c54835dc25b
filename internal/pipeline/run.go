package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/nanopdf/internal/plan"
	"github.com/jackzampolin/nanopdf/internal/providers"
)

// Runner wires the collaborators for the edit and add pipelines.
type Runner struct {
	Renderer Renderer
	Mutator  Mutator
	Backend  providers.ImageBackend

	// Workers is the edit-mode pool width. Add mode always uses one worker:
	// stitching is strictly sequential, so serializing generation avoids
	// wasted concurrent work.
	Workers int

	Logger *slog.Logger
}

// Request carries one command invocation.
type Request struct {
	Input        string
	Output       string
	Pairs        []plan.Pair
	StyleRefs    []int
	UseContext   bool
	Resolution   providers.Resolution
	EnableSearch bool
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Edit replaces the content of existing pages. Generation runs concurrently;
// the replacement itself is one atomic batch mutation since no page-count
// shift occurs during replacement.
func (r *Runner) Edit(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()[:8]
	log := r.logger().With("run", runID)

	total, err := r.Renderer.PageCount(req.Input)
	if err != nil {
		return nil, err
	}

	targets, err := plan.NormalizeEdits(req.Pairs, total)
	if err != nil {
		return nil, err
	}

	ws, err := NewWorkspace(runID)
	if err != nil {
		return nil, err
	}
	defer ws.Cleanup()

	log.Info("processing edits", "input", req.Input, "targets", len(targets), "pages", total)

	gen := Prepare(ctx, r.Renderer, PrepareRequest{
		Doc:        req.Input,
		TotalPages: total,
		StyleRefs:  req.StyleRefs,
		UseText:    req.UseContext,
		Logger:     log,
	})

	tasks := make([]Task, len(targets))
	for i, t := range targets {
		tasks[i] = Task{Seq: i, Key: t.Page, Prompt: t.Prompt}
	}

	log.Info("generating pages", "workers", r.Workers, "tasks", len(tasks))
	results := NewPool(r.Workers, log).Run(ctx, tasks, func(ctx context.Context, task Task) (string, string, error) {
		target, err := r.Renderer.RenderPage(ctx, req.Input, task.Key)
		if err != nil {
			return "", "", err
		}

		out, err := r.Backend.Generate(ctx, &providers.GenerateRequest{
			TargetImage:  target,
			StyleImages:  gen.Styles,
			TextContext:  gen.Text,
			Prompt:       task.Prompt,
			Resolution:   req.Resolution,
			EnableSearch: req.EnableSearch,
		})
		if err != nil {
			return "", "", err
		}

		artifact := ws.ArtifactPath(task.Seq)
		if err := r.Mutator.Rehydrate(out.Image, artifact); err != nil {
			return "", "", fmt.Errorf("failed to rehydrate image: %w", err)
		}
		return artifact, out.Commentary, nil
	})

	// Fold completed results into the replacement plan.
	replacements := make(map[int]string)
	for _, res := range results {
		if res.Err == nil {
			replacements[res.Task.Key] = res.Artifact
		}
	}
	if len(replacements) == 0 {
		return nil, ErrNoTargetsSucceeded
	}

	log.Info("stitching pages", "count", len(replacements))
	if err := r.Mutator.ReplacePages(req.Input, replacements, ws.FinalPath()); err != nil {
		return nil, err
	}
	if err := promote(ws.FinalPath(), req.Output); err != nil {
		return nil, err
	}

	report := buildReport("edit", runID, req.Input, req.Output, r.Backend.Name(), string(req.Resolution), results, time.Since(start))
	log.Info("done", "output", req.Output, "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// Add inserts new pages at the requested anchors. Insertions cannot be
// batched: each one shifts every later anchor, so successful artifacts are
// applied in ascending-anchor order through a chain of document snapshots.
func (r *Runner) Add(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()[:8]
	log := r.logger().With("run", runID)

	total, err := r.Renderer.PageCount(req.Input)
	if err != nil {
		return nil, err
	}

	targets, err := plan.NormalizeAdds(req.Pairs, total)
	if err != nil {
		return nil, err
	}

	ws, err := NewWorkspace(runID)
	if err != nil {
		return nil, err
	}
	defer ws.Cleanup()

	log.Info("processing inserts", "input", req.Input, "targets", len(targets), "pages", total)

	gen := Prepare(ctx, r.Renderer, PrepareRequest{
		Doc:                req.Input,
		TotalPages:         total,
		StyleRefs:          req.StyleRefs,
		DefaultToFirstPage: true,
		UseText:            req.UseContext,
		Logger:             log,
	})

	tasks := make([]Task, len(targets))
	for i, t := range targets {
		tasks[i] = Task{Seq: i, Key: t.Anchor, Prompt: t.Prompt}
	}

	log.Info("generating pages", "workers", 1, "tasks", len(tasks))
	results := NewPool(1, log).Run(ctx, tasks, func(ctx context.Context, task Task) (string, string, error) {
		out, err := r.Backend.Generate(ctx, &providers.GenerateRequest{
			StyleImages:  gen.Styles,
			TextContext:  gen.Text,
			Prompt:       task.Prompt,
			Resolution:   req.Resolution,
			EnableSearch: req.EnableSearch,
		})
		if err != nil {
			return "", "", err
		}

		artifact := ws.ArtifactPath(task.Seq)
		if err := r.Mutator.Rehydrate(out.Image, artifact); err != nil {
			return "", "", fmt.Errorf("failed to rehydrate image: %w", err)
		}
		return artifact, out.Commentary, nil
	})

	// Keep the successes, re-sorted deterministically: completion order does
	// not matter because the fold below imposes ascending-anchor order.
	var applied []TaskResult
	for _, res := range results {
		if res.Err == nil {
			applied = append(applied, res)
		}
	}
	if len(applied) == 0 {
		return nil, ErrNoTargetsSucceeded
	}
	sort.SliceStable(applied, func(i, j int) bool {
		if applied[i].Task.Key != applied[j].Task.Key {
			return applied[i].Task.Key < applied[j].Task.Key
		}
		return applied[i].Task.Seq < applied[j].Task.Seq
	})

	// Sequential fold through document snapshots. Anchors name original
	// pages; i earlier insertions have shifted the original page i positions
	// right, so the effective anchor is Key+i.
	log.Info("stitching pages", "count", len(applied))
	current := req.Input
	for i, res := range applied {
		out := ws.FinalPath()
		if i < len(applied)-1 {
			out = ws.IntermediatePath(i)
		}
		if err := r.Mutator.InsertPage(current, res.Artifact, res.Task.Key+i, out); err != nil {
			return nil, err
		}
		current = out
	}
	if err := promote(ws.FinalPath(), req.Output); err != nil {
		return nil, err
	}

	report := buildReport("add", runID, req.Input, req.Output, r.Backend.Name(), string(req.Resolution), results, time.Since(start))
	log.Info("done", "output", req.Output, "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// promote moves the finished document out of the workspace to the declared
// output path. The declared path never holds a partial result.
func promote(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	// Rename fails across filesystems; fall back to a copy.
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open finished document: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

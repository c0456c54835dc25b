package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/nanopdf/internal/plan"
	"github.com/jackzampolin/nanopdf/internal/providers"
)

// fakeRenderer serves a document with a fixed page count; rendered page
// images carry the page number so tests can trace them.
type fakeRenderer struct {
	pages     int
	renderErr map[int]error
	text      string
	textErr   error
}

func (f *fakeRenderer) PageCount(doc string) (int, error) {
	return f.pages, nil
}

func (f *fakeRenderer) RenderPage(ctx context.Context, doc string, page int) ([]byte, error) {
	if err, ok := f.renderErr[page]; ok {
		return nil, err
	}
	if page < 1 || page > f.pages {
		return nil, fmt.Errorf("render failed: page %d out of range", page)
	}
	return []byte(fmt.Sprintf("render-%d", page)), nil
}

func (f *fakeRenderer) ExtractText(ctx context.Context, doc string) (string, error) {
	return f.text, f.textErr
}

// fakeMutator treats documents as newline-separated page lists, which makes
// the stitched page order directly observable.
type fakeMutator struct {
	mu           sync.Mutex
	replacements map[int]string // last ReplacePages plan
	artifacts    []string       // every rehydrated artifact path
	inserts      []int          // anchors passed to InsertPage, in call order
}

func (m *fakeMutator) Rehydrate(image []byte, outPDF string) error {
	m.mu.Lock()
	m.artifacts = append(m.artifacts, outPDF)
	m.mu.Unlock()
	return os.WriteFile(outPDF, image, 0o644)
}

func (m *fakeMutator) ReplacePages(doc string, replacements map[int]string, out string) error {
	m.mu.Lock()
	m.replacements = make(map[int]string, len(replacements))
	for k, v := range replacements {
		m.replacements[k] = v
	}
	m.mu.Unlock()

	pages, err := readPages(doc)
	if err != nil {
		return err
	}
	for page, artifact := range replacements {
		content, err := os.ReadFile(artifact)
		if err != nil {
			return err
		}
		pages[page-1] = string(content)
	}
	return writePages(out, pages)
}

func (m *fakeMutator) InsertPage(doc, artifact string, anchor int, out string) error {
	pages, err := readPages(doc)
	if err != nil {
		return err
	}
	if anchor < 0 || anchor > len(pages) {
		return fmt.Errorf("stitch failed: anchor %d out of range [0,%d]", anchor, len(pages))
	}
	content, err := os.ReadFile(artifact)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.inserts = append(m.inserts, anchor)
	m.mu.Unlock()

	inserted := make([]string, 0, len(pages)+1)
	inserted = append(inserted, pages[:anchor]...)
	inserted = append(inserted, string(content))
	inserted = append(inserted, pages[anchor:]...)
	return writePages(out, inserted)
}

func readPages(doc string) ([]string, error) {
	data, err := os.ReadFile(doc)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n"), nil
}

func writePages(path string, pages []string) error {
	return os.WriteFile(path, []byte(strings.Join(pages, "\n")+"\n"), 0o644)
}

// fakeBackend generates "gen:<prompt>" images and fails for selected prompts.
type fakeBackend struct {
	failFor map[string]bool
	latency time.Duration
	jitter  bool

	mu    sync.Mutex
	calls int
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResult, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()

	delay := b.latency
	if b.jitter {
		delay = time.Duration(rand.Intn(10)) * time.Millisecond
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	if b.failFor[req.Prompt] {
		return nil, fmt.Errorf("%w: fake backend failure", providers.ErrGeneration)
	}
	return &providers.GenerateResult{
		Image:      []byte("gen:" + req.Prompt),
		MIMEType:   "image/png",
		Commentary: "note for " + req.Prompt,
		Provider:   "fake",
	}, nil
}

func (b *fakeBackend) HealthCheck(ctx context.Context) error { return nil }

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func newTestDoc(t *testing.T, pages ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.pdf")
	if err := writePages(path, pages); err != nil {
		t.Fatalf("failed to write test doc: %v", err)
	}
	return path
}

func newRunner(renderer *fakeRenderer, mutator *fakeMutator, backend *fakeBackend, workers int) *Runner {
	return &Runner{
		Renderer: renderer,
		Mutator:  mutator,
		Backend:  backend,
		Workers:  workers,
	}
}

func TestEditPartialFailure(t *testing.T) {
	input := newTestDoc(t, "orig1", "orig2", "orig3")
	output := filepath.Join(t.TempDir(), "edited.pdf")

	renderer := &fakeRenderer{pages: 3}
	mutator := &fakeMutator{}
	backend := &fakeBackend{failFor: map[string]bool{"B": true}}

	report, err := newRunner(renderer, mutator, backend, 4).Edit(context.Background(), Request{
		Input:  input,
		Output: output,
		Pairs: []plan.Pair{
			{Position: 1, Prompt: "A"},
			{Position: 2, Prompt: "B"},
			{Position: 3, Prompt: "C"},
		},
		Resolution: providers.Resolution2K,
	})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	pages, err := readPages(output)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	want := []string{"gen:A", "orig2", "gen:C"}
	for i := range want {
		if pages[i] != want[i] {
			t.Errorf("page %d = %q, want %q", i+1, pages[i], want[i])
		}
	}

	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("report counts = %d/%d, want 2/1", report.Succeeded, report.Failed)
	}
	for _, target := range report.Targets {
		if target.Position == 2 && target.Succeeded {
			t.Error("expected target 2 marked failed in report")
		}
	}
}

func TestEditAllFail(t *testing.T) {
	input := newTestDoc(t, "orig1", "orig2")
	output := filepath.Join(t.TempDir(), "edited.pdf")

	renderer := &fakeRenderer{pages: 2}
	mutator := &fakeMutator{}
	backend := &fakeBackend{failFor: map[string]bool{"A": true, "B": true}}

	_, err := newRunner(renderer, mutator, backend, 4).Edit(context.Background(), Request{
		Input:  input,
		Output: output,
		Pairs: []plan.Pair{
			{Position: 1, Prompt: "A"},
			{Position: 2, Prompt: "B"},
		},
	})
	if !errors.Is(err, ErrNoTargetsSucceeded) {
		t.Fatalf("expected ErrNoTargetsSucceeded, got %v", err)
	}

	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Error("expected no output document after all-fail abort")
	}
}

func TestEditInvalidPagesAbortBeforeGeneration(t *testing.T) {
	input := newTestDoc(t, "orig1", "orig2")

	renderer := &fakeRenderer{pages: 2}
	backend := &fakeBackend{}

	_, err := newRunner(renderer, &fakeMutator{}, backend, 4).Edit(context.Background(), Request{
		Input:  input,
		Output: filepath.Join(t.TempDir(), "out.pdf"),
		Pairs: []plan.Pair{
			{Position: 1, Prompt: "ok"},
			{Position: 7, Prompt: "bad"},
		},
	})
	if !errors.Is(err, plan.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if backend.callCount() != 0 {
		t.Errorf("expected no generation calls, got %d", backend.callCount())
	}
}

func TestEditRenderFailureDropsTarget(t *testing.T) {
	input := newTestDoc(t, "orig1", "orig2")
	output := filepath.Join(t.TempDir(), "edited.pdf")

	renderer := &fakeRenderer{
		pages:     2,
		renderErr: map[int]error{2: fmt.Errorf("render failed: unreadable")},
	}
	mutator := &fakeMutator{}
	backend := &fakeBackend{}

	report, err := newRunner(renderer, mutator, backend, 2).Edit(context.Background(), Request{
		Input:  input,
		Output: output,
		Pairs: []plan.Pair{
			{Position: 1, Prompt: "A"},
			{Position: 2, Prompt: "B"},
		},
	})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("report counts = %d/%d, want 1/1", report.Succeeded, report.Failed)
	}
	// Only the renderable target reaches the backend
	if backend.callCount() != 1 {
		t.Errorf("expected 1 generation call, got %d", backend.callCount())
	}
}

func TestEditCleansUpWorkspace(t *testing.T) {
	input := newTestDoc(t, "orig1", "orig2")
	output := filepath.Join(t.TempDir(), "edited.pdf")

	renderer := &fakeRenderer{pages: 2}
	mutator := &fakeMutator{}
	backend := &fakeBackend{failFor: map[string]bool{"B": true}}

	t.Run("after success", func(t *testing.T) {
		_, err := newRunner(renderer, mutator, backend, 2).Edit(context.Background(), Request{
			Input:  input,
			Output: output,
			Pairs:  []plan.Pair{{Position: 1, Prompt: "A"}},
		})
		if err != nil {
			t.Fatalf("Edit() error = %v", err)
		}
		assertArtifactsGone(t, mutator)
	})

	t.Run("after all-fail abort", func(t *testing.T) {
		mutator := &fakeMutator{}
		_, err := newRunner(renderer, mutator, backend, 2).Edit(context.Background(), Request{
			Input:  input,
			Output: output,
			Pairs:  []plan.Pair{{Position: 2, Prompt: "B"}},
		})
		if !errors.Is(err, ErrNoTargetsSucceeded) {
			t.Fatalf("expected ErrNoTargetsSucceeded, got %v", err)
		}
		// Artifact was never produced, but the workspace must still be gone.
		// Nothing to assert per-artifact here; the success path covers it.
	})
}

func assertArtifactsGone(t *testing.T, mutator *fakeMutator) {
	t.Helper()
	mutator.mu.Lock()
	artifacts := append([]string(nil), mutator.artifacts...)
	mutator.mu.Unlock()

	if len(artifacts) == 0 {
		t.Fatal("expected at least one artifact to have been produced")
	}
	for _, a := range artifacts {
		if _, err := os.Stat(a); !os.IsNotExist(err) {
			t.Errorf("artifact %s still exists after run", a)
		}
		if _, err := os.Stat(filepath.Dir(a)); !os.IsNotExist(err) {
			t.Errorf("workspace %s still exists after run", filepath.Dir(a))
		}
	}
}

func TestEditConcurrencyNonInterference(t *testing.T) {
	const pages = 12

	names := make([]string, pages)
	pairs := make([]plan.Pair, pages)
	for i := 0; i < pages; i++ {
		names[i] = fmt.Sprintf("orig%d", i+1)
		pairs[i] = plan.Pair{Position: i + 1, Prompt: fmt.Sprintf("P%d", i+1)}
	}
	input := newTestDoc(t, names...)
	output := filepath.Join(t.TempDir(), "edited.pdf")

	renderer := &fakeRenderer{pages: pages}
	mutator := &fakeMutator{}
	backend := &fakeBackend{jitter: true}

	report, err := newRunner(renderer, mutator, backend, 8).Edit(context.Background(), Request{
		Input:  input,
		Output: output,
		Pairs:  pairs,
	})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if report.Succeeded != pages {
		t.Fatalf("expected %d successes, got %d", pages, report.Succeeded)
	}

	// The replacement plan covers every target exactly once, regardless of
	// completion order.
	if len(mutator.replacements) != pages {
		t.Fatalf("replacement plan has %d entries, want %d", len(mutator.replacements), pages)
	}

	got, err := readPages(output)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	for i := 0; i < pages; i++ {
		want := fmt.Sprintf("gen:P%d", i+1)
		if got[i] != want {
			t.Errorf("page %d = %q, want %q", i+1, got[i], want)
		}
	}
}

func TestAddSequentialInsertion(t *testing.T) {
	input := newTestDoc(t, "orig1", "orig2", "orig3")
	output := filepath.Join(t.TempDir(), "extended.pdf")

	renderer := &fakeRenderer{pages: 3}
	mutator := &fakeMutator{}
	backend := &fakeBackend{}

	report, err := newRunner(renderer, mutator, backend, 4).Add(context.Background(), Request{
		Input:  input,
		Output: output,
		Pairs: []plan.Pair{
			{Position: 0, Prompt: "X"},
			{Position: 2, Prompt: "Y"},
		},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := readPages(output)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	want := []string{"gen:X", "orig1", "orig2", "gen:Y", "orig3"}
	if len(got) != len(want) {
		t.Fatalf("output has %d pages, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("page %d = %q, want %q", i+1, got[i], want[i])
		}
	}

	// Each insertion accounts for the pages added before it
	if len(mutator.inserts) != 2 || mutator.inserts[0] != 0 || mutator.inserts[1] != 3 {
		t.Errorf("effective anchors = %v, want [0 3]", mutator.inserts)
	}
	if report.Succeeded != 2 {
		t.Errorf("expected 2 successes, got %d", report.Succeeded)
	}
}

func TestAddDiscardsSubmissionOrder(t *testing.T) {
	input := newTestDoc(t, "orig1", "orig2", "orig3")
	output := filepath.Join(t.TempDir(), "extended.pdf")

	renderer := &fakeRenderer{pages: 3}
	mutator := &fakeMutator{}
	backend := &fakeBackend{}

	// Submitted high anchor first; application still runs ascending.
	_, err := newRunner(renderer, mutator, backend, 4).Add(context.Background(), Request{
		Input:  input,
		Output: output,
		Pairs: []plan.Pair{
			{Position: 2, Prompt: "Y"},
			{Position: 0, Prompt: "X"},
		},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, _ := readPages(output)
	want := []string{"gen:X", "orig1", "orig2", "gen:Y", "orig3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("page %d = %q, want %q", i+1, got[i], want[i])
		}
	}
}

func TestAddEqualAnchorsKeepSubmissionOrder(t *testing.T) {
	input := newTestDoc(t, "orig1", "orig2", "orig3")
	output := filepath.Join(t.TempDir(), "extended.pdf")

	renderer := &fakeRenderer{pages: 3}
	mutator := &fakeMutator{}
	backend := &fakeBackend{}

	_, err := newRunner(renderer, mutator, backend, 4).Add(context.Background(), Request{
		Input:  input,
		Output: output,
		Pairs: []plan.Pair{
			{Position: 2, Prompt: "first"},
			{Position: 2, Prompt: "second"},
		},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, _ := readPages(output)
	want := []string{"orig1", "orig2", "gen:first", "gen:second", "orig3"}
	if len(got) != len(want) {
		t.Fatalf("output has %d pages, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("page %d = %q, want %q", i+1, got[i], want[i])
		}
	}
}

func TestAddPartialFailureSkipsTarget(t *testing.T) {
	input := newTestDoc(t, "orig1", "orig2", "orig3")
	output := filepath.Join(t.TempDir(), "extended.pdf")

	renderer := &fakeRenderer{pages: 3}
	mutator := &fakeMutator{}
	backend := &fakeBackend{failFor: map[string]bool{"X": true}}

	report, err := newRunner(renderer, mutator, backend, 4).Add(context.Background(), Request{
		Input:  input,
		Output: output,
		Pairs: []plan.Pair{
			{Position: 0, Prompt: "X"},
			{Position: 2, Prompt: "Y"},
		},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, _ := readPages(output)
	// X dropped; Y applies at its literal anchor because no prior insertion
	want := []string{"orig1", "orig2", "gen:Y", "orig3"}
	if len(got) != len(want) {
		t.Fatalf("output has %d pages, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("page %d = %q, want %q", i+1, got[i], want[i])
		}
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("report counts = %d/%d, want 1/1", report.Succeeded, report.Failed)
	}
}

func TestAddInvalidAnchorAbortsBeforeGeneration(t *testing.T) {
	input := newTestDoc(t, "orig1", "orig2", "orig3")

	renderer := &fakeRenderer{pages: 3}
	backend := &fakeBackend{}

	_, err := newRunner(renderer, &fakeMutator{}, backend, 4).Add(context.Background(), Request{
		Input:  input,
		Output: filepath.Join(t.TempDir(), "out.pdf"),
		Pairs:  []plan.Pair{{Position: 9, Prompt: "X"}},
	})
	if !errors.Is(err, plan.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if backend.callCount() != 0 {
		t.Errorf("expected no generation calls, got %d", backend.callCount())
	}
}

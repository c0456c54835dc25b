package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the run-scoped scratch directory holding generated artifacts
// and intermediate documents. It is removed on every exit path, including
// mid-stitch failures.
type Workspace struct {
	root string
}

// NewWorkspace creates a scratch directory for one run.
func NewWorkspace(runID string) (*Workspace, error) {
	root, err := os.MkdirTemp("", "nanopdf-"+runID+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create run workspace: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// ArtifactPath returns the artifact path for the task with the given
// submission index.
func (w *Workspace) ArtifactPath(seq int) string {
	return filepath.Join(w.root, fmt.Sprintf("artifact_%03d.pdf", seq))
}

// IntermediatePath returns the path for the step-th intermediate document
// produced during sequential insertion.
func (w *Workspace) IntermediatePath(step int) string {
	return filepath.Join(w.root, fmt.Sprintf("intermediate_%03d.pdf", step))
}

// FinalPath returns the in-workspace staging path for the finished document.
// It is promoted to the declared output only once stitching succeeds.
func (w *Workspace) FinalPath() string {
	return filepath.Join(w.root, "final.pdf")
}

// Cleanup removes the workspace and everything in it.
func (w *Workspace) Cleanup() error {
	return os.RemoveAll(w.root)
}

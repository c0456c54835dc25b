// Package pipeline orchestrates the edit and add pipelines: shared context
// preparation, concurrent generation on a bounded worker pool, and sequential
// stitching of the results back into the document.
package pipeline

import (
	"context"
	"errors"
)

// ErrNoTargetsSucceeded is returned when every generation task failed.
// The command aborts before any stitching is attempted.
var ErrNoTargetsSucceeded = errors.New("no targets were successfully processed")

// Renderer is the document renderer collaborator. All reads run against the
// original, unmodified input document.
type Renderer interface {
	PageCount(doc string) (int, error)
	RenderPage(ctx context.Context, doc string, page int) ([]byte, error)
	ExtractText(ctx context.Context, doc string) (string, error)
}

// Mutator is the document mutator collaborator. It is called only by the
// stitcher, single-threaded, after all generation has completed.
type Mutator interface {
	Rehydrate(image []byte, outPDF string) error
	ReplacePages(doc string, replacements map[int]string, out string) error
	InsertPage(doc, artifact string, anchor int, out string) error
}

package pipeline

import (
	"context"
	"log/slog"
)

// GenContext carries the shared generation inputs: document-wide text and
// style reference images. Built once per invocation, immutable afterwards,
// shared read-only across all concurrent tasks.
type GenContext struct {
	Text   string
	Styles [][]byte
}

// PrepareRequest configures context preparation.
type PrepareRequest struct {
	Doc        string
	TotalPages int

	// StyleRefs are explicit style reference pages. Out-of-range or
	// unrenderable refs are skipped with a warning.
	StyleRefs []int

	// DefaultToFirstPage uses page 1 as the style reference when no explicit
	// refs are given (add mode: new pages need some visual anchor).
	DefaultToFirstPage bool

	// UseText enables document-wide text extraction.
	UseText bool

	Logger *slog.Logger
}

// Prepare gathers the shared generation context. It never fails the
// pipeline: every problem surfaces as a warning and generation continues
// with whatever was gathered.
func Prepare(ctx context.Context, r Renderer, req PrepareRequest) *GenContext {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	gc := &GenContext{}

	if req.UseText {
		log.Info("extracting text context")
		text, err := r.ExtractText(ctx, req.Doc)
		if err != nil {
			log.Warn("could not extract text, context will be limited", "error", err)
		} else if text == "" {
			log.Warn("could not extract text, context will be limited")
		}
		gc.Text = text
	} else {
		log.Debug("skipping text context")
	}

	refs := req.StyleRefs
	if len(refs) == 0 && req.DefaultToFirstPage && req.TotalPages > 0 {
		refs = []int{1}
	}
	if len(refs) > 0 {
		log.Info("rendering reference images", "refs", len(refs))
	}
	for _, page := range refs {
		if page < 1 || page > req.TotalPages {
			log.Warn("style ref out of range, skipping", "page", page, "pages", req.TotalPages)
			continue
		}
		img, err := r.RenderPage(ctx, req.Doc, page)
		if err != nil {
			log.Warn("could not render style ref, skipping", "page", page, "error", err)
			continue
		}
		gc.Styles = append(gc.Styles, img)
	}

	return gc
}

// Package pdf implements the document collaborators: page rasterization and
// text extraction via poppler-utils, page counting and page surgery via pdfcpu.
package pdf

import "errors"

// ErrRender marks a page rasterization failure. Callers treat it as a
// per-target error: the target is dropped, siblings continue.
var ErrRender = errors.New("render failed")

// ErrStitch marks a document mutation failure. Stitch errors are fatal to
// the command; nothing partial is left at the declared output path.
var ErrStitch = errors.New("stitch failed")

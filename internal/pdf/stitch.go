package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// Mutator applies generated artifacts back into a document with pdfcpu.
// It is used single-threaded, after all generation has completed.
type Mutator struct{}

// mergeItem is one element of the page sequence assembled by a mutation:
// either a run of original pages or a one-page generated artifact.
type mergeItem struct {
	artifact string // artifact PDF path; empty for an original page run
	from, to int    // inclusive original page run when artifact is empty
}

// replaceSequence computes the page sequence for a batch replacement:
// original runs interleaved with artifacts at the replaced positions.
func replaceSequence(total int, replacements map[int]string) []mergeItem {
	var seq []mergeItem
	runStart := 0

	for page := 1; page <= total; page++ {
		artifact, replaced := replacements[page]
		if !replaced {
			if runStart == 0 {
				runStart = page
			}
			continue
		}
		if runStart != 0 {
			seq = append(seq, mergeItem{from: runStart, to: page - 1})
			runStart = 0
		}
		seq = append(seq, mergeItem{artifact: artifact})
	}
	if runStart != 0 {
		seq = append(seq, mergeItem{from: runStart, to: total})
	}
	return seq
}

// insertSequence computes the page sequence for a single insertion at anchor
// (0 = before the first page, total = after the last).
func insertSequence(total, anchor int, artifact string) []mergeItem {
	var seq []mergeItem
	if anchor > 0 {
		seq = append(seq, mergeItem{from: 1, to: anchor})
	}
	seq = append(seq, mergeItem{artifact: artifact})
	if anchor < total {
		seq = append(seq, mergeItem{from: anchor + 1, to: total})
	}
	return seq
}

// Rehydrate converts generated image bytes into a one-page PDF artifact.
func (m *Mutator) Rehydrate(image []byte, outPDF string) error {
	f, err := os.Create(outPDF)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	defer f.Close()

	if err := api.ImportImages(nil, f, []io.Reader{bytes.NewReader(image)}, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return fmt.Errorf("failed to import image: %w", err)
	}
	return nil
}

// ReplacePages replaces the given pages with their artifacts in a single
// batch mutation, writing the result to out. Fails with ErrStitch.
func (m *Mutator) ReplacePages(doc string, replacements map[int]string, out string) error {
	if len(replacements) == 0 {
		return fmt.Errorf("%w: no replacements given", ErrStitch)
	}

	total, err := pageCount(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStitch, err)
	}
	for page := range replacements {
		if page < 1 || page > total {
			return fmt.Errorf("%w: page %d out of range [1,%d]", ErrStitch, page, total)
		}
	}

	return m.assemble(doc, replaceSequence(total, replacements), out)
}

// InsertPage inserts the artifact after page anchor, writing the result to
// out. Fails with ErrStitch.
func (m *Mutator) InsertPage(doc, artifact string, anchor int, out string) error {
	total, err := pageCount(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStitch, err)
	}
	if anchor < 0 || anchor > total {
		return fmt.Errorf("%w: anchor %d out of range [0,%d]", ErrStitch, anchor, total)
	}

	return m.assemble(doc, insertSequence(total, anchor, artifact), out)
}

// assemble materializes a page sequence: original runs are collected into
// scratch PDFs, then everything is merged in order into out.
func (m *Mutator) assemble(doc string, seq []mergeItem, out string) error {
	tmpDir, err := os.MkdirTemp("", "nanopdf-stitch-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp dir: %v", ErrStitch, err)
	}
	defer os.RemoveAll(tmpDir)

	files := make([]string, 0, len(seq))
	for i, item := range seq {
		if item.artifact != "" {
			files = append(files, item.artifact)
			continue
		}
		runPath := filepath.Join(tmpDir, fmt.Sprintf("run_%d.pdf", i))
		selection := []string{fmt.Sprintf("%d-%d", item.from, item.to)}
		if err := api.CollectFile(doc, runPath, selection, nil); err != nil {
			return fmt.Errorf("%w: failed to collect pages %d-%d: %v", ErrStitch, item.from, item.to, err)
		}
		files = append(files, runPath)
	}

	if err := api.MergeCreateFile(files, out, false, nil); err != nil {
		return fmt.Errorf("%w: failed to merge pages: %v", ErrStitch, err)
	}
	return nil
}

func pageCount(doc string) (int, error) {
	f, err := os.Open(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	count, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return count, nil
}

package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const defaultRenderDPI = 300

// Renderer rasterizes document pages with pdftoppm (poppler-utils) and
// counts pages with pdfcpu. The zero value renders at 300 DPI.
type Renderer struct {
	// DPI is the rasterization resolution. Defaults to 300.
	DPI int
}

// PageCount returns the number of pages in the document.
func (r *Renderer) PageCount(doc string) (int, error) {
	return pageCount(doc)
}

// RenderPage rasterizes a single page to PNG bytes.
// Fails with ErrRender if the page is out of range or the document unreadable.
func (r *Renderer) RenderPage(ctx context.Context, doc string, page int) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page %d out of range", ErrRender, page)
	}

	dpi := r.DPI
	if dpi <= 0 {
		dpi = defaultRenderDPI
	}

	// Temp directory for pdftoppm output
	tmpDir, err := os.MkdirTemp("", "nanopdf-page-*")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create temp dir: %v", ErrRender, err)
	}
	defer os.RemoveAll(tmpDir)

	// Output prefix for pdftoppm
	outputPrefix := filepath.Join(tmpDir, "page")

	// Run pdftoppm to render the page
	// -png: output PNG format
	// -f N: first page to render
	// -l N: last page to render
	// -r N: resolution in DPI
	// -singlefile: don't add page number suffix
	pageStr := fmt.Sprintf("%d", page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", dpi),
		"-singlefile",
		doc,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm failed: %v (output: %s)", ErrRender, err, string(output))
	}

	// pdftoppm with -singlefile creates: <prefix>.png
	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm did not create expected output: %v", ErrRender, err)
	}
	return data, nil
}

// ExtractText extracts the full document text with pdftotext.
// An empty string is a valid result; callers surface a warning and continue.
func (r *Renderer) ExtractText(ctx context.Context, doc string) (string, error) {
	// "-" sends the extracted text to stdout
	cmd := exec.CommandContext(ctx, "pdftotext", doc, "-")

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

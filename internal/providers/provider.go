package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrGeneration marks a generative backend failure. Callers treat it as a
// per-target error: the target is dropped, siblings continue.
var ErrGeneration = errors.New("generation failed")

// Resolution selects the output size of generated page images.
type Resolution string

const (
	Resolution4K Resolution = "4K"
	Resolution2K Resolution = "2K"
	Resolution1K Resolution = "1K"
)

// ParseResolution normalizes a user-supplied resolution string.
// An empty string maps to the 2K default.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "4K":
		return Resolution4K, nil
	case "2K", "":
		return Resolution2K, nil
	case "1K":
		return Resolution1K, nil
	default:
		return "", fmt.Errorf("invalid resolution %q (expected 4K, 2K or 1K)", s)
	}
}

// GenerateRequest carries everything a backend needs to produce one page image.
type GenerateRequest struct {
	// TargetImage is the rendered source page being edited.
	// Nil when generating a brand-new page (insert).
	TargetImage []byte

	// StyleImages are rendered reference pages used as visual conditioning.
	// Shared read-only across concurrent tasks; backends must not mutate them.
	StyleImages [][]byte

	// TextContext is optional document-wide text. May be empty.
	TextContext string

	// Prompt is the user's instruction for this target.
	Prompt string

	// Resolution selects the output image size.
	Resolution Resolution

	// EnableSearch allows the backend to ground generation with web search,
	// where the backend supports it.
	EnableSearch bool
}

// GenerateResult is the backend response for one target.
type GenerateResult struct {
	// Image holds the generated page image bytes.
	Image []byte `json:"-"`

	// MIMEType of Image (typically "image/png").
	MIMEType string `json:"mime_type"`

	// Commentary is optional model text accompanying the image.
	Commentary string `json:"commentary,omitempty"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Timing
	ExecutionTime time.Duration `json:"execution_time"`
}

// ImageBackend generates page images. Implementations wrap one remote
// generative service and enforce their own request rate.
type ImageBackend interface {
	// Name returns the backend identifier (e.g., "gemini", "openai").
	Name() string

	// Generate produces a new page image for the request.
	// Failures are wrapped with ErrGeneration; they are never retried here.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

	// HealthCheck verifies the backend is reachable and credentialed.
	HealthCheck(ctx context.Context) error
}

// RateLimitError reports a 429 from a backend, with the server-suggested
// retry delay when one was provided.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if d, err := time.ParseDuration(header + "s"); err == nil {
		return d
	}
	return 0
}

// buildPromptText assembles the text portion of a generation request.
// Images precede text in the wire request, so the wording refers to them
// positionally: target first (edit mode), style references after.
func buildPromptText(req *GenerateRequest) string {
	var b strings.Builder

	if req.TargetImage != nil {
		b.WriteString("Edit the first image (the target page).")
		if len(req.StyleImages) > 0 {
			b.WriteString(" The remaining images are style references; match their visual style.")
		}
	} else {
		b.WriteString("Create a new page.")
		if len(req.StyleImages) > 0 {
			b.WriteString(" The attached images are style references; match their visual style.")
		}
	}
	b.WriteString("\n")

	if req.TextContext != "" {
		b.WriteString("Document text for context:\n")
		b.WriteString(req.TextContext)
		b.WriteString("\n")
	}

	b.WriteString("Instruction: ")
	b.WriteString(req.Prompt)
	return b.String()
}

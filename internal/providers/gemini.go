package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

const (
	GeminiName         = "gemini"
	geminiDefaultModel = "gemini-3-pro-image-preview"
)

// GeminiConfig holds configuration for the Gemini image backend.
type GeminiConfig struct {
	APIKey    string
	Model     string  // "gemini-3-pro-image-preview" (default)
	RateLimit float64 // Requests per second
}

// GeminiBackend implements ImageBackend using the official Gemini SDK.
// The model is multimodal: it accepts the target page, style reference
// images and text context in one request and answers with an image plus
// optional commentary.
type GeminiBackend struct {
	apiKey    string
	model     string
	rateLimit float64
	limiter   *RateLimiter

	clientOnce sync.Once
	client     *genai.Client
	clientErr  error
}

// NewGeminiBackend creates a new Gemini image backend.
func NewGeminiBackend(cfg GeminiConfig) *GeminiBackend {
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1.0
	}

	return &GeminiBackend{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		rateLimit: cfg.RateLimit,
		limiter:   NewRateLimiter(cfg.RateLimit),
	}
}

// Name returns the backend identifier.
func (c *GeminiBackend) Name() string {
	return GeminiName
}

// Model returns the configured model.
func (c *GeminiBackend) Model() string {
	return c.model
}

// getClient lazily constructs the SDK client. Construction does no I/O for
// the API-key backend, so caching the first result is safe.
func (c *GeminiBackend) getClient(ctx context.Context) (*genai.Client, error) {
	c.clientOnce.Do(func() {
		c.client, c.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return c.client, c.clientErr
}

// HealthCheck verifies the API key works by fetching the configured model.
func (c *GeminiBackend) HealthCheck(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("gemini: no API key configured")
	}
	client, err := c.getClient(ctx)
	if err != nil {
		return fmt.Errorf("gemini client init failed: %w", err)
	}
	if _, err := client.Models.Get(ctx, c.model, nil); err != nil {
		return fmt.Errorf("gemini model lookup failed: %w", mapGeminiError(err))
	}
	return nil
}

// Generate produces a page image via the Gemini API.
func (c *GeminiBackend) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	start := time.Now()

	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrGeneration)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", ErrGeneration, err)
	}

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: client init: %v", ErrGeneration, err)
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: buildGeminiParts(req),
	}}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig:        &genai.ImageConfig{ImageSize: string(req.Resolution)},
	}
	if req.EnableSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		err = mapGeminiError(err)
		var rle *RateLimitError
		if errors.As(err, &rle) {
			c.limiter.Record429(rle.RetryAfter)
		}
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	image, mimeType, commentary := parseGeminiResponse(resp)
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: response contained no image", ErrGeneration)
	}

	return &GenerateResult{
		Image:         image,
		MIMEType:      mimeType,
		Commentary:    commentary,
		Provider:      GeminiName,
		ModelUsed:     c.model,
		ExecutionTime: time.Since(start),
	}, nil
}

// buildGeminiParts orders the request parts: target page first (edit mode),
// then style references, then the assembled text.
func buildGeminiParts(req *GenerateRequest) []*genai.Part {
	parts := make([]*genai.Part, 0, len(req.StyleImages)+2)
	if req.TargetImage != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/png", Data: req.TargetImage},
		})
	}
	for _, img := range req.StyleImages {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/png", Data: img},
		})
	}
	parts = append(parts, &genai.Part{Text: buildPromptText(req)})
	return parts
}

// parseGeminiResponse extracts the first inline image and any text parts
// from the first candidate.
func parseGeminiResponse(resp *genai.GenerateContentResponse) (image []byte, mimeType string, commentary string) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, "", ""
	}

	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 && image == nil {
			image = part.InlineData.Data
			mimeType = part.InlineData.MIMEType
			continue
		}
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	if mimeType == "" && image != nil {
		mimeType = "image/png"
	}
	return image, mimeType, strings.Join(texts, "\n")
}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return &RateLimitError{
				Message:    fmt.Sprintf("Gemini rate limited: %s", apiErr.Message),
				StatusCode: apiErr.Code,
				RetryAfter: retryDelayFromDetails(apiErr.Details),
			}
		}
		if apiErr.Message != "" {
			return fmt.Errorf("Gemini error (status %d): %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("Gemini error (status %d)", apiErr.Code)
	}
	return err
}

// retryDelayFromDetails extracts the server-requested delay from a 429's
// google.rpc.RetryInfo detail, e.g. {"@type": ".../RetryInfo", "retryDelay": "7s"}.
func retryDelayFromDetails(details []map[string]any) time.Duration {
	for _, d := range details {
		typeURL, _ := d["@type"].(string)
		if !strings.HasSuffix(typeURL, "RetryInfo") {
			continue
		}
		if s, ok := d["retryDelay"].(string); ok {
			if delay, err := time.ParseDuration(s); err == nil {
				return delay
			}
		}
	}
	return 0
}

var _ ImageBackend = (*GeminiBackend)(nil)

package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = openai.ImageModelGPTImage1
)

// OpenAIConfig holds configuration for the OpenAI image backend.
type OpenAIConfig struct {
	APIKey     string
	Model      string        // "gpt-image-1" (default)
	RateLimit  float64       // Requests per second
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
	Logger     *slog.Logger
}

// OpenAIBackend implements ImageBackend using the official OpenAI SDK.
// Edits route through the Images Edit endpoint with the target page and
// style references as input images; inserts without conditioning images use
// plain generation. The Images API returns no commentary text.
type OpenAIBackend struct {
	apiKey    string
	model     string
	rateLimit float64
	limiter   *RateLimiter
	logger    *slog.Logger
	client    openai.Client
}

// NewOpenAIBackend creates a new OpenAI image backend.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1.0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// The SDK retries transient failures by default. Failed generations are
	// dropped and reported, never retried, so the transport gets one attempt.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIBackend{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		rateLimit: cfg.RateLimit,
		limiter:   NewRateLimiter(cfg.RateLimit),
		logger:    logger.With("backend", OpenAIName),
		client:    openai.NewClient(opts...),
	}
}

// Name returns the backend identifier.
func (c *OpenAIBackend) Name() string {
	return OpenAIName
}

// Model returns the configured model.
func (c *OpenAIBackend) Model() string {
	return c.model
}

// HealthCheck verifies the OpenAI API is reachable and the API key is valid.
func (c *OpenAIBackend) HealthCheck(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("openai: no API key configured")
	}
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("openai models list failed: %w", mapOpenAIError(err))
	}
	if page == nil {
		return fmt.Errorf("openai models list returned nil response")
	}
	return nil
}

// Generate produces a page image via the OpenAI Images API.
func (c *OpenAIBackend) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	start := time.Now()

	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrGeneration)
	}

	if req.EnableSearch {
		c.logger.Debug("search grounding not supported by the openai backend, ignoring")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", ErrGeneration, err)
	}

	var (
		b64 string
		err error
	)
	if req.TargetImage != nil || len(req.StyleImages) > 0 {
		b64, err = c.edit(ctx, req)
	} else {
		b64, err = c.generate(ctx, req)
	}
	if err != nil {
		err = mapOpenAIError(err)
		var rle *RateLimitError
		if errors.As(err, &rle) {
			c.limiter.Record429(rle.RetryAfter)
		}
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	image, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image payload: %v", ErrGeneration, err)
	}

	return &GenerateResult{
		Image:         image,
		MIMEType:      "image/png",
		Provider:      OpenAIName,
		ModelUsed:     c.model,
		ExecutionTime: time.Since(start),
	}, nil
}

// edit sends the target page and style references through the edit endpoint.
func (c *OpenAIBackend) edit(ctx context.Context, req *GenerateRequest) (string, error) {
	images := make([]io.Reader, 0, len(req.StyleImages)+1)
	if req.TargetImage != nil {
		images = append(images, openai.File(bytes.NewReader(req.TargetImage), "target.png", "image/png"))
	}
	for i, img := range req.StyleImages {
		images = append(images, openai.File(bytes.NewReader(img), fmt.Sprintf("style_%d.png", i+1), "image/png"))
	}

	params := openai.ImageEditParams{
		Image:   openai.ImageEditParamsImageUnion{OfFileArray: images},
		Prompt:  buildPromptText(req),
		Model:   openai.ImageModel(c.model),
		Quality: openai.ImageEditParamsQuality(mapOpenAIQuality(req.Resolution)),
		Size:    openai.ImageEditParamsSizeAuto,
		N:       openai.Int(1),
	}

	resp, err := c.client.Images.Edit(ctx, params)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("response contained no image")
	}
	return resp.Data[0].B64JSON, nil
}

// generate creates a page with no conditioning images.
func (c *OpenAIBackend) generate(ctx context.Context, req *GenerateRequest) (string, error) {
	params := openai.ImageGenerateParams{
		Prompt:  buildPromptText(req),
		Model:   openai.ImageModel(c.model),
		Quality: openai.ImageGenerateParamsQuality(mapOpenAIQuality(req.Resolution)),
		Size:    openai.ImageGenerateParamsSizeAuto,
		N:       openai.Int(1),
	}

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("response contained no image")
	}
	return resp.Data[0].B64JSON, nil
}

// mapOpenAIQuality approximates the resolution enum on an API that exposes
// quality tiers instead of output sizes.
func mapOpenAIQuality(res Resolution) string {
	switch res {
	case Resolution4K:
		return "high"
	case Resolution1K:
		return "low"
	default:
		return "medium"
	}
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("OpenAI rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		if apiErr.Message != "" {
			return fmt.Errorf("OpenAI error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("OpenAI error (status %d)", apiErr.StatusCode)
	}
	return err
}

var _ ImageBackend = (*OpenAIBackend)(nil)

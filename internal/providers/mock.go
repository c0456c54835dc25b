package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockBackendName = "mock"

// MockBackend is an ImageBackend for testing.
type MockBackend struct {
	// Configurable behavior
	Latency    time.Duration
	ShouldFail bool
	FailAfter  int // Fail after N requests (0 = never)
	Image      []byte
	Commentary string

	// State
	requestCount atomic.Int64

	mu       sync.Mutex
	requests []*GenerateRequest
}

// NewMockBackend creates a new mock backend with sensible defaults.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		Latency: 10 * time.Millisecond,
		Image:   []byte("mock-image-bytes"),
	}
}

// Name returns the backend identifier.
func (m *MockBackend) Name() string {
	return MockBackendName
}

// Generate returns the configured image or a configured failure.
func (m *MockBackend) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	start := time.Now()
	count := m.requestCount.Add(1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	// Check if we should fail
	if m.ShouldFail {
		return nil, fmt.Errorf("%w: mock backend configured to fail", ErrGeneration)
	}
	if m.FailAfter > 0 && int(count) > m.FailAfter {
		return nil, fmt.Errorf("%w: mock backend failed after %d requests", ErrGeneration, m.FailAfter)
	}

	// Simulate latency
	select {
	case <-time.After(m.Latency):
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrGeneration, ctx.Err())
	}

	return &GenerateResult{
		Image:         m.Image,
		MIMEType:      "image/png",
		Commentary:    m.Commentary,
		Provider:      MockBackendName,
		ModelUsed:     "mock-model",
		ExecutionTime: time.Since(start),
	}, nil
}

// HealthCheck always succeeds.
func (m *MockBackend) HealthCheck(ctx context.Context) error {
	return nil
}

// RequestCount returns the number of requests made.
func (m *MockBackend) RequestCount() int64 {
	return m.requestCount.Load()
}

// Requests returns all requests seen so far, in arrival order.
func (m *MockBackend) Requests() []*GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*GenerateRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Reset resets the request counter and recorded requests.
func (m *MockBackend) Reset() {
	m.requestCount.Store(0)
	m.mu.Lock()
	m.requests = nil
	m.mu.Unlock()
}

// Verify interface
var _ ImageBackend = (*MockBackend)(nil)

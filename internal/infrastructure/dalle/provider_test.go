package dalle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
	"github.com/basel-ax/news2toon/internal/infrastructure/urlcheck"
	"github.com/basel-ax/news2toon/internal/safety"
)

// fakeOpenAI serves /v1/images/generations and the generated image itself.
// statuses is consumed one per generation request; 0 means success.
type fakeOpenAI struct {
	mu       sync.Mutex
	srv      *httptest.Server
	statuses []int
	prompts  []string
	emptyURL bool
}

func newFakeOpenAI(t *testing.T, statuses ...int) *fakeOpenAI {
	t.Helper()
	f := &fakeOpenAI{statuses: statuses}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/images/generations", f.generate)
	mux.HandleFunc("/generated/image.png", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Type", "image/png")
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOpenAI) generate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt         string `json:"prompt"`
		Model          string `json:"model"`
		Quality        string `json:"quality"`
		Style          string `json:"style"`
		ResponseFormat string `json:"response_format"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.prompts = append(f.prompts, body.Prompt)
	status := 0
	if len(f.statuses) > 0 {
		status = f.statuses[0]
		f.statuses = f.statuses[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"message":"request failed with %d","type":"invalid_request_error","code":"test"}}`, status)
		return
	}

	url := f.srv.URL + "/generated/image.png"
	if f.emptyURL {
		url = ""
	}
	fmt.Fprintf(w, `{"created":1700000000,"data":[{"url":%q}]}`, url)
}

type fakeRelay struct {
	urls    []string
	retries []int
	err     error
}

func (f *fakeRelay) Relay(_ context.Context, url string, retries int) (string, error) {
	f.urls = append(f.urls, url)
	f.retries = append(f.retries, retries)
	if f.err != nil {
		return "", f.err
	}
	return "https://storage.example.com/images/cartoons/cartoon-1.png", nil
}

type waitRecorder struct {
	delays []time.Duration
}

func (w *waitRecorder) wait(_ context.Context, d time.Duration) error {
	w.delays = append(w.delays, d)
	return nil
}

func newTestProvider(f *fakeOpenAI, relay *fakeRelay, rec *waitRecorder) *Provider {
	cfg := Config{Enabled: true, APIKey: "test-key", BaseURL: f.srv.URL + "/v1"}
	client := NewClient(cfg)
	return NewProvider(cfg, client, urlcheck.NewChecker(f.srv.Client()), relay, zap.NewNop()).WithWait(rec.wait)
}

func TestGenerateImage_Success(t *testing.T) {
	f := newFakeOpenAI(t)
	relay := &fakeRelay{}
	p := newTestProvider(f, relay, &waitRecorder{})

	got, err := p.GenerateImage(context.Background(), "senate budget fight")

	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/images/cartoons/cartoon-1.png", got)
	assert.Equal(t, []string{safety.Enhance("senate budget fight")}, f.prompts)
	assert.Equal(t, []string{f.srv.URL + "/generated/image.png"}, relay.urls)
	assert.Equal(t, []int{2}, relay.retries)
}

func TestGenerateImage_BlankPrompt(t *testing.T) {
	f := newFakeOpenAI(t)
	p := newTestProvider(f, &fakeRelay{}, &waitRecorder{})

	_, err := p.GenerateImage(context.Background(), "   ")

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.prompts)
}

func TestGenerateImage_ContentPolicyFallback(t *testing.T) {
	f := newFakeOpenAI(t, http.StatusBadRequest, http.StatusBadRequest)
	rec := &waitRecorder{}
	p := newTestProvider(f, &fakeRelay{}, rec)

	got, err := p.GenerateImage(context.Background(), "war on the gun lobby")

	require.NoError(t, err)
	assert.NotEmpty(t, got)
	require.Len(t, f.prompts, 3)

	enhanced := safety.Enhance("war on the gun lobby")
	fallback := "Create a simple, family-friendly editorial cartoon showing: war on the gun lobby. " +
		"Style: clean, minimal, non-controversial newspaper illustration."
	assert.Equal(t, enhanced, f.prompts[0])
	assert.Equal(t, fallback, f.prompts[1])
	assert.Equal(t, fallback, f.prompts[2])
	assert.NotEqual(t, f.prompts[0], f.prompts[2])
	// fallback bypasses the substitution list
	assert.Contains(t, f.prompts[2], "gun")

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestGenerateImage_RateLimitKeepsPrompt(t *testing.T) {
	f := newFakeOpenAI(t, http.StatusTooManyRequests, http.StatusTooManyRequests)
	rec := &waitRecorder{}
	p := newTestProvider(f, &fakeRelay{}, rec)

	_, err := p.GenerateImage(context.Background(), "housing crisis")

	require.NoError(t, err)
	require.Len(t, f.prompts, 3)
	assert.Equal(t, f.prompts[0], f.prompts[1])
	assert.Equal(t, f.prompts[1], f.prompts[2])
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestGenerateImage_Exhausted(t *testing.T) {
	f := newFakeOpenAI(t, http.StatusInternalServerError, http.StatusInternalServerError, http.StatusInternalServerError)
	rec := &waitRecorder{}
	p := newTestProvider(f, &fakeRelay{}, rec)

	_, err := p.GenerateImage(context.Background(), "housing crisis")

	require.Error(t, err)
	var genErr *domain.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 3, genErr.Attempts)
	assert.True(t, strings.HasPrefix(err.Error(), "DALL-E generation failed after 3 attempts: "))
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
	// monotonic backoff for a fixed failure mode
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 3000 * time.Millisecond}, rec.delays)
}

func TestGenerateImage_MalformedResponse(t *testing.T) {
	f := newFakeOpenAI(t)
	f.emptyURL = true
	relay := &fakeRelay{}
	p := newTestProvider(f, relay, &waitRecorder{})

	_, err := p.GenerateImage(context.Background(), "housing crisis")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid DALL-E response format")
	assert.Len(t, f.prompts, 3)
	assert.Empty(t, relay.urls)
}

func TestGenerateImage_RelayFailure(t *testing.T) {
	f := newFakeOpenAI(t)
	relay := &fakeRelay{err: &domain.StorageError{Attempts: 2, Err: errors.New("empty image received")}}
	p := newTestProvider(f, relay, &waitRecorder{})

	_, err := p.GenerateImage(context.Background(), "housing crisis")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Len(t, relay.urls, 3)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusBadRequest, domain.ErrContentPolicy},
		{http.StatusInternalServerError, domain.ErrTransientProvider},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			f := newFakeOpenAI(t, tt.status)
			client := NewClient(Config{APIKey: "k", BaseURL: f.srv.URL + "/v1"})
			_, err := client.CreateImage(context.Background(), openai.ImageRequest{Prompt: "x", N: 1})
			require.Error(t, err)
			assert.ErrorIs(t, classify(err), tt.want)
		})
	}

	assert.ErrorIs(t, classify(errors.New("dial tcp: refused")), domain.ErrTransientProvider)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 4*time.Second, backoff(2, domain.ErrRateLimited))
	assert.Equal(t, 3*time.Second, backoff(3, domain.ErrContentPolicy))
	assert.Equal(t, 3*time.Second, backoff(2, errors.New("other")))
}

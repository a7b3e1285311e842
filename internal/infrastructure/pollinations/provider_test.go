package pollinations

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
	"github.com/basel-ax/news2toon/internal/infrastructure/urlcheck"
)

type fakeProber struct {
	errs  []error
	calls []string
}

func (f *fakeProber) Reachable(_ context.Context, url string) error {
	f.calls = append(f.calls, url)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type waitRecorder struct {
	delays []time.Duration
}

func (w *waitRecorder) wait(_ context.Context, d time.Duration) error {
	w.delays = append(w.delays, d)
	return nil
}

func newTestProvider(prober Prober, rec *waitRecorder) *Provider {
	return NewProvider(Config{Enabled: true}, prober, zap.NewNop()).WithWait(rec.wait)
}

func TestGenerateImage_CityHallScandal(t *testing.T) {
	prober := &fakeProber{}
	p := newTestProvider(prober, &waitRecorder{})

	got, err := p.GenerateImage(context.Background(), "city hall scandal")

	require.NoError(t, err)
	assert.Equal(t,
		"https://image.pollinations.ai/prompt/editorial-cartoon-newspaper-style-city-hall-scandal?width=1024&height=1024&nologo=true",
		got)
	assert.Equal(t, []string{got}, prober.calls)
}

func TestGenerateImage_Deterministic(t *testing.T) {
	p := newTestProvider(&fakeProber{}, &waitRecorder{})
	prompt := "Mayor's $2M budget -- cut!!  (again)"

	first, err := p.GenerateImage(context.Background(), prompt)
	require.NoError(t, err)
	second, err := p.GenerateImage(context.Background(), prompt)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "editorial-cartoon-newspaper-style-mayors-2m-budget-cut-again?")
}

func TestGenerateImage_BlankPrompt(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\n\t"} {
		prober := &fakeProber{}
		p := newTestProvider(prober, &waitRecorder{})

		_, err := p.GenerateImage(context.Background(), prompt)

		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, prober.calls, "no network call for blank prompt")
	}
}

func TestGenerateImage_RetriesProbe(t *testing.T) {
	prober := &fakeProber{errs: []error{errors.New("connection reset"), errors.New("image host returned 502")}}
	rec := &waitRecorder{}
	p := newTestProvider(prober, rec)

	_, err := p.GenerateImage(context.Background(), "tax reform")

	require.NoError(t, err)
	assert.Len(t, prober.calls, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestGenerateImage_AllProbesFail(t *testing.T) {
	prober := &fakeProber{errs: []error{
		errors.New("image host returned 500"),
		errors.New("image host returned 500"),
		errors.New("image host returned 503"),
	}}
	p := newTestProvider(prober, &waitRecorder{})

	_, err := p.GenerateImage(context.Background(), "tax reform")

	require.Error(t, err)
	var genErr *domain.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "Pollinations", genErr.Provider)
	assert.Equal(t, 3, genErr.Attempts)
	assert.Contains(t, err.Error(), "503")
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
}

func TestGenerateImage_WithHTTPProbe(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "1024", r.URL.Query().Get("width"))
		assert.Equal(t, "true", r.URL.Query().Get("nologo"))
		w.Header().Set("Content-Type", "image/jpeg")
	}))
	defer srv.Close()

	p := NewProvider(Config{Enabled: true, BaseURL: srv.URL + "/prompt/"}, urlcheck.NewChecker(srv.Client()), zap.NewNop())

	got, err := p.GenerateImage(context.Background(), "Budget Vote")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, srv.URL+"/prompt/editorial-cartoon-newspaper-style-budget-vote?"))
	assert.Equal(t, []string{"/prompt/editorial-cartoon-newspaper-style-budget-vote"}, paths)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"city hall scandal", "city-hall-scandal"},
		{"  Leading and trailing  ", "-leading-and-trailing-"},
		{" city", "-city"},
		{"non\u00a0breaking\u3000space", "non-breaking-space"},
		{"Multiple   spaces\tand\nlines", "multiple-spaces-and-lines"},
		{"hy--phen -- runs", "hy-phen-runs"},
		{"Ünïcode & symbols!", "ncode-symbols"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestProviderIdentity(t *testing.T) {
	p := NewProvider(Config{}, &fakeProber{}, nil)
	assert.Equal(t, "Pollinations", p.Name())
	assert.Equal(t, domain.ProviderPollinations, p.Kind())
	assert.False(t, p.Enabled())
}

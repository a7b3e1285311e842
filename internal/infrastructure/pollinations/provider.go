// Package pollinations implements the free image provider. The image host renders
// lazily from the URL itself, so no generation call is made.
package pollinations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
	"github.com/basel-ax/news2toon/internal/retry"
)

const (
	DefaultBaseURL = "https://image.pollinations.ai/prompt"
	stylePrefix    = "editorial-cartoon-newspaper-style-"
	maxProbes      = 3
)

// spaceClass is the ECMAScript \s set. RE2's \s only covers ASCII whitespace.
const spaceClass = `\t\n\v\f\r \x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}`

var (
	disallowed = regexp.MustCompile(`[^a-z0-9` + spaceClass + `-]`)
	whitespace = regexp.MustCompile(`[` + spaceClass + `]+`)
	hyphenRuns = regexp.MustCompile(`-+`)
)

// Prober checks that a lazily rendered URL answers
type Prober interface {
	Reachable(ctx context.Context, url string) error
}

// Config holds the provider settings
type Config struct {
	Enabled bool
	BaseURL string
	Width   int
	Height  int
}

// Provider builds Pollinations image URLs
type Provider struct {
	cfg    Config
	prober Prober
	wait   retry.WaitFunc
	log    *zap.Logger
}

// NewProvider creates a new Pollinations provider
func NewProvider(cfg Config, prober Prober, log *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Width == 0 {
		cfg.Width = 1024
	}
	if cfg.Height == 0 {
		cfg.Height = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		prober: prober,
		wait:   retry.Sleep,
		log:    log.With(zap.String("component", "pollinations")),
	}
}

// WithWait replaces the delay function used between probes
func (p *Provider) WithWait(wait retry.WaitFunc) *Provider {
	p.wait = wait
	return p
}

func (p *Provider) Name() string { return "Pollinations" }

func (p *Provider) Kind() domain.ProviderKind { return domain.ProviderPollinations }

func (p *Provider) Enabled() bool { return p.cfg.Enabled }

// GenerateImage returns the image URL for prompt once the host answers a probe
func (p *Provider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.ValidationError("Empty prompt provided for image generation")
	}

	imageURL := p.BuildURL(prompt)

	policy := retry.Policy{
		Name:        "pollinations probe",
		MaxAttempts: maxProbes,
		Backoff:     retry.Linear(time.Second),
		Wait:        p.wait,
	}
	err := retry.Do(ctx, policy, p.log, func(ctx context.Context, attempt int) error {
		if err := p.prober.Reachable(ctx, imageURL); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrTransientProvider, err)
		}
		return nil
	})
	if err != nil {
		var ex *retry.ExhaustedError
		if errors.As(err, &ex) {
			return "", &domain.GenerationError{Provider: p.Name(), Attempts: ex.Attempts, Err: ex.Err}
		}
		return "", &domain.GenerationError{Provider: p.Name(), Attempts: maxProbes, Err: err}
	}

	p.log.Debug("image URL reachable", zap.String("url", imageURL))
	return imageURL, nil
}

// BuildURL is deterministic: the same prompt always yields the same URL
func (p *Provider) BuildURL(prompt string) string {
	path := url.PathEscape(stylePrefix + Slugify(prompt))
	return fmt.Sprintf("%s/%s?width=%d&height=%d&nologo=true",
		strings.TrimRight(p.cfg.BaseURL, "/"), path, p.cfg.Width, p.cfg.Height)
}

// Slugify lowercases prompt and reduces it to hyphen separated [a-z0-9] words.
// Surrounding whitespace becomes a hyphen like any other run, so the image
// host sees the same path (its cache key) for the same prompt text.
func Slugify(prompt string) string {
	s := strings.ToLower(prompt)
	s = disallowed.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	return hyphenRuns.ReplaceAllString(s, "-")
}

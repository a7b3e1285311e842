package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
	"github.com/basel-ax/news2toon/internal/metrics"
	"github.com/basel-ax/news2toon/internal/retry"
)

const providerAttempts = 3

// ImageValidator re-checks a URL returned by a provider
type ImageValidator interface {
	ValidateImage(ctx context.Context, url string) error
}

// ImagePipeline tries the enabled providers in order until one yields a valid image
type ImagePipeline struct {
	providers []domain.ImageProvider
	validator ImageValidator
	wait      retry.WaitFunc
	metrics   *metrics.Collector
	log       *zap.Logger
}

// NewImagePipeline creates a new pipeline over providers, in priority order
func NewImagePipeline(providers []domain.ImageProvider, validator ImageValidator, collector *metrics.Collector, log *zap.Logger) *ImagePipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImagePipeline{
		providers: providers,
		validator: validator,
		wait:      retry.Sleep,
		metrics:   collector,
		log:       log.With(zap.String("component", "pipeline")),
	}
}

// WithWait replaces the delay function used between attempts
func (p *ImagePipeline) WithWait(wait retry.WaitFunc) *ImagePipeline {
	p.wait = wait
	return p
}

// EnabledProviders returns the providers that will be tried, in order
func (p *ImagePipeline) EnabledProviders() []domain.ImageProvider {
	enabled := make([]domain.ImageProvider, 0, len(p.providers))
	for _, provider := range p.providers {
		if provider.Enabled() {
			enabled = append(enabled, provider)
		}
	}
	return enabled
}

// GenerateImage returns the URL of an image for prompt from the first provider that succeeds
func (p *ImagePipeline) GenerateImage(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	if strings.TrimSpace(prompt) == "" {
		p.metrics.PipelineRun("invalid")
		return domain.GenerationResult{}, domain.ValidationError("Prompt is required for image generation")
	}

	providers := p.EnabledProviders()
	if len(providers) == 0 {
		p.metrics.PipelineRun("no_provider")
		return domain.GenerationResult{}, domain.ErrNoProviderAvailable
	}

	var lastErr error
	for _, provider := range providers {
		log := p.log.With(zap.String("provider", provider.Name()))
		log.Info("trying image provider")

		url, err := p.tryProvider(ctx, provider, prompt, log)
		if err == nil {
			log.Info("image generated", zap.String("url", url))
			p.metrics.PipelineRun("success")
			return domain.GenerationResult{URL: url, Provider: provider.Name()}, nil
		}

		if isFatal(ctx, err) {
			p.metrics.PipelineRun("failure")
			return domain.GenerationResult{}, err
		}

		var ex *retry.ExhaustedError
		if errors.As(err, &ex) {
			lastErr = ex.Err
		} else {
			lastErr = err
		}
		log.Error("provider exhausted, moving on", zap.Error(lastErr))
	}

	p.metrics.PipelineRun("failure")
	return domain.GenerationResult{}, &domain.AllProvidersFailedError{Err: lastErr}
}

func (p *ImagePipeline) tryProvider(ctx context.Context, provider domain.ImageProvider, prompt string, log *zap.Logger) (string, error) {
	policy := retry.Policy{
		Name:        provider.Name(),
		MaxAttempts: providerAttempts,
		Backoff:     retry.Linear(time.Second),
		Retryable:   func(err error) bool { return !isFatal(ctx, err) },
		Wait:        p.wait,
	}
	return retry.DoWithResult(ctx, policy, log, func(ctx context.Context, attempt int) (string, error) {
		log.Debug("provider attempt", zap.Int("attempt", attempt))

		url, err := provider.GenerateImage(ctx, prompt)
		if err != nil {
			p.metrics.ProviderAttempt(provider.Name(), "failure")
			return "", err
		}

		// Providers validate their own output; this catches URLs that went bad since.
		if err := p.validator.ValidateImage(ctx, url); err != nil {
			p.metrics.ProviderAttempt(provider.Name(), "invalid_url")
			return "", fmt.Errorf("%w: %s", domain.ErrValidationFailedPostGeneration, err.Error())
		}

		p.metrics.ProviderAttempt(provider.Name(), "success")
		return url, nil
	})
}

// isFatal reports errors that no other attempt or provider can fix. A timeout inside
// a provider is not fatal unless the caller's own context is done.
func isFatal(ctx context.Context, err error) bool {
	return errors.Is(err, domain.ErrValidation) || ctx.Err() != nil
}

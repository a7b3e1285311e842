// Package dalle implements the paid image provider on top of the OpenAI images API.
package dalle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
	"github.com/basel-ax/news2toon/internal/retry"
	"github.com/basel-ax/news2toon/internal/safety"
)

const (
	maxAttempts = 3
	// relayRetries is lower than the relay default since the whole attempt is retried here
	relayRetries = 2

	// Used as-is after a content policy rejection. It does not go through the
	// safety substitutions; see DESIGN.md before unifying the two.
	fallbackTemplate = "Create a simple, family-friendly editorial cartoon showing: %s. " +
		"Style: clean, minimal, non-controversial newspaper illustration."
)

// ImageClient is the subset of the OpenAI client used here
type ImageClient interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// URLValidator confirms a generated URL answers with 2xx
type URLValidator interface {
	RequireOK(ctx context.Context, url string) error
}

// Config holds the provider settings
type Config struct {
	Enabled bool
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Provider generates images with DALL-E and relays them to durable storage
type Provider struct {
	cfg       Config
	client    ImageClient
	validator URLValidator
	relay     domain.ImageRelay
	wait      retry.WaitFunc
	log       *zap.Logger
}

// NewClient builds an OpenAI client from cfg
func NewClient(cfg Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(clientConfig)
}

// NewProvider creates a new DALL-E provider
func NewProvider(cfg Config, client ImageClient, validator URLValidator, relay domain.ImageRelay, log *zap.Logger) *Provider {
	if cfg.Model == "" {
		cfg.Model = openai.CreateImageModelDallE3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		cfg:       cfg,
		client:    client,
		validator: validator,
		relay:     relay,
		wait:      retry.Sleep,
		log:       log.With(zap.String("component", "dalle")),
	}
}

// WithWait replaces the delay function used between attempts
func (p *Provider) WithWait(wait retry.WaitFunc) *Provider {
	p.wait = wait
	return p
}

func (p *Provider) Name() string { return "DALL-E" }

func (p *Provider) Kind() domain.ProviderKind { return domain.ProviderDalle }

func (p *Provider) Enabled() bool { return p.cfg.Enabled }

// GenerateImage generates an image and returns its durable URL
func (p *Provider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.ValidationError("Empty prompt provided for image generation")
	}

	currentPrompt := safety.Enhance(prompt)

	policy := retry.Policy{
		Name:        "dalle generation",
		MaxAttempts: maxAttempts,
		Backoff:     backoff,
		Wait:        p.wait,
	}
	url, err := retry.DoWithResult(ctx, policy, p.log, func(ctx context.Context, attempt int) (string, error) {
		p.log.Info("generating image",
			zap.Int("attempt", attempt),
			zap.String("prompt", currentPrompt))

		url, err := p.attempt(ctx, currentPrompt)
		if err != nil {
			if errors.Is(err, domain.ErrContentPolicy) {
				p.log.Info("content filter triggered, adjusting prompt")
				currentPrompt = fmt.Sprintf(fallbackTemplate, prompt)
			}
			return "", err
		}
		return url, nil
	})
	if err != nil {
		var ex *retry.ExhaustedError
		if errors.As(err, &ex) {
			return "", &domain.GenerationError{Provider: p.Name(), Attempts: ex.Attempts, Err: ex.Err}
		}
		return "", &domain.GenerationError{Provider: p.Name(), Attempts: maxAttempts, Err: err}
	}

	p.log.Info("image generated and stored", zap.String("url", url))
	return url, nil
}

func (p *Provider) attempt(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          p.cfg.Model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		Quality:        openai.CreateImageQualityHD,
		Style:          openai.CreateImageStyleNatural,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("%w: invalid DALL-E response format", domain.ErrTransientProvider)
	}
	imageURL := resp.Data[0].URL

	if err := p.validator.RequireOK(ctx, imageURL); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrValidationFailedPostGeneration, err)
	}

	permanentURL, err := p.relay.Relay(ctx, imageURL, relayRetries)
	if err != nil {
		return "", err
	}
	return permanentURL, nil
}

// classify maps OpenAI API failures onto the retry taxonomy
func classify(err error) error {
	switch statusCode(err) {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %w", domain.ErrContentPolicy, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrTransientProvider, err)
	}
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func backoff(attempt int, err error) time.Duration {
	n := time.Duration(attempt)
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return 2000 * time.Millisecond * n
	case errors.Is(err, domain.ErrContentPolicy):
		return 1000 * time.Millisecond * n
	default:
		return 1500 * time.Millisecond * n
	}
}

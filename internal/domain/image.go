package domain

import (
	"context"
)

// ProviderKind identifies one of the supported image generation backends.
type ProviderKind string

const (
	ProviderDalle        ProviderKind = "dalle"
	ProviderPollinations ProviderKind = "pollinations"
)

// GenerationResult is the outcome of a successful image pipeline run
type GenerationResult struct {
	URL      string `json:"url"`
	Provider string `json:"provider"`
}

// StoredImage describes an image copied into durable storage
type StoredImage struct {
	SourceURL string `json:"source_url"`
	FilePath  string `json:"file_path"`
	PublicURL string `json:"public_url"`
}

// ImageProvider turns a text prompt into an image URL
type ImageProvider interface {
	Name() string
	Kind() ProviderKind
	Enabled() bool

	// GenerateImage returns a URL that resolves to the generated image
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ImagePipeline picks an enabled provider and returns a verified image URL
type ImagePipeline interface {
	GenerateImage(ctx context.Context, prompt string) (GenerationResult, error)
}

// ImageRelay copies a possibly short-lived image URL into durable storage
type ImageRelay interface {
	Relay(ctx context.Context, temporaryURL string, retries int) (string, error)
}

// ObjectStore is the durable storage backing the relay
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error
	PublicURL(key string) string
}

// UploadOptions controls how an object is written
type UploadOptions struct {
	ContentType  string
	CacheControl string
	Upsert       bool
}

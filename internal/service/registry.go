package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
	"github.com/basel-ax/news2toon/internal/infrastructure/dalle"
	"github.com/basel-ax/news2toon/internal/infrastructure/pollinations"
	"github.com/basel-ax/news2toon/internal/infrastructure/urlcheck"
)

// providerPriority is the order in which providers are tried
var providerPriority = []domain.ProviderKind{
	domain.ProviderDalle,
	domain.ProviderPollinations,
}

// RegistryConfig carries the per-provider settings
type RegistryConfig struct {
	Dalle        dalle.Config
	Pollinations pollinations.Config
}

// NewProviderRegistry builds every known provider in priority order. Disabled
// providers are included; the pipeline skips them.
func NewProviderRegistry(cfg RegistryConfig, imageClient dalle.ImageClient, checker *urlcheck.Checker, relay domain.ImageRelay, log *zap.Logger) ([]domain.ImageProvider, error) {
	providers, err := OrderProviders([]domain.ImageProvider{
		pollinations.NewProvider(cfg.Pollinations, checker, log),
		dalle.NewProvider(cfg.Dalle, imageClient, checker, relay, log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}
	return providers, nil
}

// OrderProviders sorts providers by priority. Unknown kinds and duplicates are rejected.
func OrderProviders(providers []domain.ImageProvider) ([]domain.ImageProvider, error) {
	byKind := make(map[domain.ProviderKind]domain.ImageProvider, len(providers))
	for _, p := range providers {
		if !knownKind(p.Kind()) {
			return nil, fmt.Errorf("unknown provider kind %q", p.Kind())
		}
		if _, dup := byKind[p.Kind()]; dup {
			return nil, fmt.Errorf("provider %q registered twice", p.Kind())
		}
		byKind[p.Kind()] = p
	}

	ordered := make([]domain.ImageProvider, 0, len(byKind))
	for _, kind := range providerPriority {
		if p, ok := byKind[kind]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

func knownKind(kind domain.ProviderKind) bool {
	for _, k := range providerPriority {
		if k == kind {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
	"github.com/basel-ax/news2toon/internal/repository"
)

const (
	dailyLimit  = 10
	recentLimit = 12
)

// CartoonService runs the full text to cartoon flow and serves the stored results
type CartoonService struct {
	stories     domain.StoryGenerator
	images      domain.ImagePipeline
	generations repository.GenerationRepository
	cartoons    repository.CartoonRepository
	log         *zap.Logger
}

// NewCartoonService creates a new cartoon service
func NewCartoonService(
	stories domain.StoryGenerator,
	images domain.ImagePipeline,
	generations repository.GenerationRepository,
	cartoons repository.CartoonRepository,
	log *zap.Logger,
) *CartoonService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartoonService{
		stories:     stories,
		images:      images,
		generations: generations,
		cartoons:    cartoons,
		log:         log.With(zap.String("component", "cartoons")),
	}
}

// Create generates a story, an image and a title for input and saves them for userID
func (s *CartoonService) Create(ctx context.Context, userID, input string) (*domain.Generation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(input) == "" {
		return nil, domain.ValidationError("Please enter some text or a URL to generate a cartoon.")
	}

	story, err := s.stories.GenerateStory(ctx, input)
	if err != nil {
		return nil, err
	}

	image, err := s.images.GenerateImage(ctx, story.Processed)
	if err != nil {
		return nil, err
	}

	title, err := s.stories.GenerateTitle(ctx, input)
	if err != nil {
		return nil, err
	}

	gen := &domain.Generation{
		UserID:      userID,
		InputText:   input,
		StoryPrompt: story.Original,
		ImageURL:    image.URL,
		Title:       title,
		ActualTitle: input,
		IsDaily:     true,
	}
	if gen.StoryPrompt == "" || gen.ImageURL == "" || gen.Title == "" {
		return nil, domain.ValidationError("Missing required fields for generation")
	}

	if err := s.generations.SaveGeneration(ctx, gen); err != nil {
		return nil, err
	}

	s.log.Info("generation saved",
		zap.Int64("id", gen.ID),
		zap.String("user_id", userID),
		zap.String("provider", image.Provider))
	return gen, nil
}

// CreateFromTitle turns a news headline into a stored cartoon
func (s *CartoonService) CreateFromTitle(ctx context.Context, newsTitle string) (*domain.Cartoon, error) {
	newsTitle = strings.TrimSpace(newsTitle)
	if newsTitle == "" {
		return nil, domain.ValidationError("News title is required")
	}

	description, err := s.stories.GenerateDescription(ctx, newsTitle)
	if err != nil {
		return nil, err
	}

	image, err := s.images.GenerateImage(ctx, description)
	if err != nil {
		return nil, err
	}

	cartoon := &domain.Cartoon{
		Title:       newsTitle,
		ActualTitle: newsTitle,
		Description: description,
		ImageURL:    image.URL,
	}
	if err := s.cartoons.CreateCartoon(ctx, cartoon); err != nil {
		return nil, err
	}

	s.log.Info("cartoon created", zap.Int64("id", cartoon.ID), zap.String("provider", image.Provider))
	return cartoon, nil
}

// RegenerateTitle writes a fresh title for the same input
func (s *CartoonService) RegenerateTitle(ctx context.Context, input string) (string, error) {
	return s.stories.GenerateTitle(ctx, input)
}

// Daily returns the cartoons featured on the front page
func (s *CartoonService) Daily(ctx context.Context) ([]domain.Cartoon, error) {
	return s.cartoons.ListCartoons(ctx, dailyLimit)
}

// Recent returns the latest cartoons
func (s *CartoonService) Recent(ctx context.Context) ([]domain.Cartoon, error) {
	return s.cartoons.ListCartoons(ctx, recentLimit)
}

// CartoonByID returns one cartoon
func (s *CartoonService) CartoonByID(ctx context.Context, id int64) (*domain.Cartoon, error) {
	return s.cartoons.CartoonByID(ctx, id)
}

// GenerationByID returns one generation
func (s *CartoonService) GenerationByID(ctx context.Context, id int64) (*domain.Generation, error) {
	return s.generations.GenerationByID(ctx, id)
}

// ShareLink builds the tweet intent for a cartoon page under siteURL
func (s *CartoonService) ShareLink(ctx context.Context, id int64, siteURL string) (domain.ShareLink, error) {
	cartoon, err := s.cartoons.CartoonByID(ctx, id)
	if err != nil {
		return domain.ShareLink{}, err
	}
	pageURL := fmt.Sprintf("%s/cartoon/%d", strings.TrimRight(siteURL, "/"), cartoon.ID)
	return TwitterShare(cartoon.Title, pageURL), nil
}

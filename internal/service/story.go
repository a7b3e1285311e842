package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
)

const (
	storyPromptName = "story"
	titlePromptName = "title"

	defaultStoryPrompt = "Create a witty editorial cartoon scene that captures the essence of the story. " +
		"Use visual metaphors and symbolism to convey the message clearly and cleverly. " +
		"Keep it simple, clean, and family-friendly."
	defaultTitlePrompt = "Create a clever, catchy title for this editorial cartoon in 5-7 words. " +
		"Use wordplay or cultural references when appropriate while keeping it accessible and family-friendly."
	descriptionSystemPrompt = "You are an expert editorial cartoonist. " +
		"Create a detailed description for an editorial cartoon based on the news title provided."
)

var defaultPrompts = map[string]string{
	storyPromptName: defaultStoryPrompt,
	titlePromptName: defaultTitlePrompt,
}

// ChatClient is the subset of the OpenAI client used for text generation
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// PromptSource looks up stored prompt templates
type PromptSource interface {
	PromptByName(ctx context.Context, name string) (*domain.PromptTemplate, error)
}

// StoryService writes scene descriptions and titles with a chat model
type StoryService struct {
	client  ChatClient
	prompts PromptSource
	model   string
	log     *zap.Logger
}

// NewStoryService creates a new story service. prompts may be nil, in which
// case the built-in templates are always used.
func NewStoryService(client ChatClient, prompts PromptSource, model string, log *zap.Logger) *StoryService {
	if model == "" {
		model = openai.GPT4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StoryService{
		client:  client,
		prompts: prompts,
		model:   model,
		log:     log.With(zap.String("component", "story")),
	}
}

// GenerateStory turns news text into a cartoon scene description
func (s *StoryService) GenerateStory(ctx context.Context, content string) (domain.Story, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Story{}, domain.ValidationError("Please provide content to generate a story")
	}

	system := s.prompt(ctx, storyPromptName)
	text, err := s.complete(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		MaxTokens:   200,
		Temperature: 0.8,
	})
	if err != nil {
		return domain.Story{}, fmt.Errorf("failed to generate story prompt: %w", err)
	}

	s.log.Debug("story prompt generated", zap.String("prompt", text))
	return domain.Story{Original: text, Processed: text}, nil
}

// GenerateTitle writes a short cartoon title for content
func (s *StoryService) GenerateTitle(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", domain.ValidationError("Content required for title generation")
	}

	instructions := s.prompt(ctx, titlePromptName)
	text, err := s.complete(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: instructions + "\n\nContent: " + content},
		},
		MaxTokens:   50,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate title: %w", err)
	}
	return text, nil
}

// GenerateDescription writes a detailed cartoon description for a news title
func (s *StoryService) GenerateDescription(ctx context.Context, newsTitle string) (string, error) {
	if strings.TrimSpace(newsTitle) == "" {
		return "", domain.ValidationError("News title is required")
	}

	text, err := s.complete(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: descriptionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Create a detailed editorial cartoon description for this news: " + newsTitle},
		},
		MaxTokens:   200,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate cartoon description: %w", err)
	}
	return text, nil
}

// prompt returns the stored template or the built-in default
func (s *StoryService) prompt(ctx context.Context, name string) string {
	if s.prompts != nil {
		tmpl, err := s.prompts.PromptByName(ctx, name)
		if err == nil && strings.TrimSpace(tmpl.Content) != "" {
			return tmpl.Content
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("using fallback prompt", zap.String("name", name), zap.Error(err))
		}
	}
	return defaultPrompts[name]
}

func (s *StoryService) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

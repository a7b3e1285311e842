package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basel-ax/news2toon/internal/domain"
)

type fakeChat struct {
	reply    string
	err      error
	requests []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
		},
	}, nil
}

type fakePrompts struct {
	templates map[string]string
	err       error
}

func (f *fakePrompts) PromptByName(_ context.Context, name string) (*domain.PromptTemplate, error) {
	if f.err != nil {
		return nil, f.err
	}
	content, ok := f.templates[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.PromptTemplate{Name: name, Content: content}, nil
}

func TestGenerateStory_UsesStoredPrompt(t *testing.T) {
	chat := &fakeChat{reply: "  A mayor juggling flaming budgets  "}
	prompts := &fakePrompts{templates: map[string]string{"story": "You draw cartoons"}}
	svc := NewStoryService(chat, prompts, "", zap.NewNop())

	story, err := svc.GenerateStory(context.Background(), "City budget slashed")

	require.NoError(t, err)
	assert.Equal(t, domain.Story{Original: "A mayor juggling flaming budgets", Processed: "A mayor juggling flaming budgets"}, story)
	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	assert.Equal(t, openai.GPT4, req.Model)
	assert.Equal(t, 200, req.MaxTokens)
	assert.InDelta(t, 0.8, req.Temperature, 1e-6)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "You draw cartoons", req.Messages[0].Content)
	assert.Equal(t, "City budget slashed", req.Messages[1].Content)
}

func TestGenerateStory_FallsBackToDefaultPrompt(t *testing.T) {
	for _, prompts := range []PromptSource{nil, &fakePrompts{}, &fakePrompts{err: errors.New("db down")}} {
		chat := &fakeChat{reply: "scene"}
		svc := NewStoryService(chat, prompts, "gpt-4o", zap.NewNop())

		_, err := svc.GenerateStory(context.Background(), "news")

		require.NoError(t, err)
		assert.Equal(t, defaultStoryPrompt, chat.requests[0].Messages[0].Content)
		assert.Equal(t, "gpt-4o", chat.requests[0].Model)
	}
}

func TestGenerateStory_Errors(t *testing.T) {
	svc := NewStoryService(&fakeChat{reply: "x"}, nil, "", nil)
	_, err := svc.GenerateStory(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "Please provide content to generate a story", domain.UserMessage(err))

	svc = NewStoryService(&fakeChat{reply: "   "}, nil, "", nil)
	_, err = svc.GenerateStory(context.Background(), "news")
	assert.ErrorContains(t, err, "empty completion")

	svc = NewStoryService(&fakeChat{err: errors.New("boom")}, nil, "", nil)
	_, err = svc.GenerateStory(context.Background(), "news")
	assert.ErrorContains(t, err, "failed to generate story prompt: boom")
}

func TestGenerateTitle(t *testing.T) {
	chat := &fakeChat{reply: "Budget Blues\n"}
	svc := NewStoryService(chat, nil, "", zap.NewNop())

	title, err := svc.GenerateTitle(context.Background(), "City budget slashed")

	require.NoError(t, err)
	assert.Equal(t, "Budget Blues", title)
	req := chat.requests[0]
	assert.Equal(t, 50, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[0].Role)
	assert.Equal(t, defaultTitlePrompt+"\n\nContent: City budget slashed", req.Messages[0].Content)

	_, err = svc.GenerateTitle(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGenerateDescription(t *testing.T) {
	chat := &fakeChat{reply: "A giant pair of scissors over city hall"}
	svc := NewStoryService(chat, nil, "", zap.NewNop())

	desc, err := svc.GenerateDescription(context.Background(), "Council cuts budget")

	require.NoError(t, err)
	assert.Equal(t, "A giant pair of scissors over city hall", desc)
	assert.Equal(t, descriptionSystemPrompt, chat.requests[0].Messages[0].Content)
	assert.Equal(t, "Create a detailed editorial cartoon description for this news: Council cuts budget", chat.requests[0].Messages[1].Content)
}

func TestStoryService_OpenAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "Taxing Times"}},
			},
		})
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	svc := NewStoryService(openai.NewClientWithConfig(cfg), nil, "gpt-4", zap.NewNop())

	title, err := svc.GenerateTitle(context.Background(), "Taxes rise")

	require.NoError(t, err)
	assert.Equal(t, "Taxing Times", title)
}

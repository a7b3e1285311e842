package domain

import (
	"context"
	"time"
)

// Generation is a cartoon produced for a signed-in user from free text
type Generation struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	InputText   string    `json:"input_text"`
	StoryPrompt string    `json:"story_prompt"`
	ImageURL    string    `json:"image_url"`
	Title       string    `json:"title"`
	ActualTitle string    `json:"actual_title"`
	IsDaily     bool      `json:"is_daily"`
	CreatedAt   time.Time `json:"created_at"`
}

// Cartoon is a cartoon created from a news title
type Cartoon struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	ActualTitle string    `json:"actual_title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// PromptTemplate is a named system prompt stored in the database
type PromptTemplate struct {
	ID        int64
	Name      string
	Content   string
	CreatedAt time.Time
}

// Story holds the cartoon scene description produced by the LLM
type Story struct {
	Original  string `json:"original_prompt"`
	Processed string `json:"processed_prompt"`
}

// ShareLink is a ready to open social share intent
type ShareLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// StoryGenerator produces the text parts of a cartoon
type StoryGenerator interface {
	GenerateStory(ctx context.Context, content string) (Story, error)
	GenerateTitle(ctx context.Context, content string) (string, error)
	GenerateDescription(ctx context.Context, newsTitle string) (string, error)
}

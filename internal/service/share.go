package service

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/basel-ax/news2toon/internal/domain"
)

const (
	maxShareTitle   = 100
	tweetIntentBase = "https://twitter.com/intent/tweet?text="
)

// TwitterShare builds the tweet text and intent URL for a cartoon page
func TwitterShare(title, pageURL string) domain.ShareLink {
	text := "📰 \"" + truncateTitle(title) + "\"\n\n🔗 " + pageURL + "\n\n✨ via @News2oonAI"
	return domain.ShareLink{
		Text: text,
		URL:  tweetIntentBase + encodeURIComponent(text),
	}
}

func truncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= maxShareTitle {
		return title
	}
	runes := []rune(title)
	return string(runes[:maxShareTitle-3]) + "..."
}

// encodeURIComponent escapes s for use as a single query value, spaces as %20
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

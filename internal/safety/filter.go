// Package safety softens prompt vocabulary that tends to trip image content filters.
package safety

import (
	"fmt"
	"regexp"
)

const styleTemplate = "Create a simple editorial cartoon illustration showing: %s. " +
	"Style: clean newspaper editorial cartoon style, minimal detail, clear visual message, " +
	"black and white sketch style with minimal color accents. " +
	"Keep it family-friendly and avoid any controversial or sensitive content."

// Rule replaces every case-insensitive match of Pattern with Replacement
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

var rules = []Rule{
	{Pattern: regexp.MustCompile(`(?i)(violence|gore|blood)`), Replacement: "conflict"},
	{Pattern: regexp.MustCompile(`(?i)(nude|naked|nsfw)`), Replacement: "covered"},
	{Pattern: regexp.MustCompile(`(?i)(weapon|gun|knife)`), Replacement: "tool"},
	{Pattern: regexp.MustCompile(`(?i)(kill|murder|dead)`), Replacement: "defeat"},
	{Pattern: regexp.MustCompile(`(?i)(hate|racist|discrimination)`), Replacement: "bias"},
}

// Rules returns the substitution list in the order it is applied
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Sanitize applies the substitution rules to prompt without adding the style template
func Sanitize(prompt string) string {
	for _, r := range rules {
		prompt = r.Pattern.ReplaceAllLiteralString(prompt, r.Replacement)
	}
	return prompt
}

// Enhance sanitizes prompt and wraps it in the editorial cartoon style template.
// The template is added last so its own wording is never rewritten.
func Enhance(prompt string) string {
	return fmt.Sprintf(styleTemplate, Sanitize(prompt))
}

package content

import (
	"bytes"
	"fmt"
	"regexp"

	"chatelly/internal/models"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	policy         = bluemonday.UGCPolicy()
	markdown       = goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))
	widgetKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// Sanitize removes unsafe HTML from visitor supplied text.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// ValidateWidgetKey checks that the key is non-empty and safe to use as a
// single URL path segment (alphanumeric, dot, dash, underscore).
func ValidateWidgetKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", models.ErrInvalidWidgetKey)
	}
	if !widgetKeyRegex.MatchString(key) {
		return fmt.Errorf("%w: %q contains invalid characters", models.ErrInvalidWidgetKey, key)
	}
	return nil
}

// RenderMarkdown converts a message body to HTML. Raw HTML passes through
// goldmark and is then cleaned by the sanitizer policy.
func RenderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

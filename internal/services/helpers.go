package services

import (
	"context"
	"strings"

	"github.com/gosimple/slug"
)

const maxTags = 20

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// normaliseTags slugifies free-form tags, dropping blanks and duplicates while
// keeping first-seen order.
func normaliseTags(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = slug.Make(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

func normaliseEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

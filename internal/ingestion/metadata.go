package ingestion

import (
	"net/url"
	"path"
	"strings"
)

// InferredMetadata holds the category and title inferred from a knowledge
// document's location. Explicit CLI flags take precedence over inferred
// values — this is the best-effort fallback when the user doesn't specify
// explicit metadata.
type InferredMetadata struct {
	// Category classifies the document (policy, handbook, faq, guide, reference).
	Category string
	// Title is a human-readable title derived from the location's last segment.
	Title string
}

// categoryKeywords maps path segment keywords to our canonical categories.
// First match along the path wins.
var categoryKeywords = map[string]string{
	"policy":     "policy",
	"policies":   "policy",
	"handbook":   "handbook",
	"handbooks":  "handbook",
	"faq":        "faq",
	"faqs":       "faq",
	"guide":      "guide",
	"guides":     "guide",
	"onboarding": "guide",
	"howto":      "guide",
	"how-to":     "guide",
}

// InferMetadata inspects the document location (URL or file path) and returns
// best-effort metadata. If the location doesn't match any known pattern the
// returned category is "reference" and the title is derived from the file name.
func InferMetadata(location string) InferredMetadata {
	m := InferredMetadata{
		Category: "reference",
	}

	p := location
	if parsed, err := url.Parse(location); err == nil && parsed.Path != "" {
		p = parsed.Path
	}

	segments := trimSegments(strings.ToLower(p))
	for _, seg := range segments {
		if cat, ok := categoryKeywords[seg]; ok {
			m.Category = cat
			break
		}
	}

	m.Title = titleFromPath(p)
	return m
}

// titleFromPath derives a human-readable title from the last path segment,
// stripping the extension and replacing slug separators with spaces.
func titleFromPath(p string) string {
	base := path.Base(strings.TrimRight(p, "/"))
	if base == "." || base == "/" || base == "" {
		return ""
	}
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return strings.TrimSpace(base)
}

// trimSegments splits a path into non-empty segments.
func trimSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

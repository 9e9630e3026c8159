package security

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	controlPattern = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	filenameUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// Sanitizer cleans free text submitted through forms.
type Sanitizer struct {
	config *SanitizerConfig
}

// SanitizerConfig holds sanitizer configuration
type SanitizerConfig struct {
	StripHTML          bool
	TrimWhitespace     bool
	RemoveControlChars bool
	// MaxLength truncates the result in runes. Zero means unlimited.
	MaxLength int
}

// DefaultSanitizerConfig returns a default sanitizer configuration
func DefaultSanitizerConfig() *SanitizerConfig {
	return &SanitizerConfig{
		StripHTML:          true,
		TrimWhitespace:     true,
		RemoveControlChars: true,
		MaxLength:          255,
	}
}

// NewSanitizer creates a new sanitizer instance
func NewSanitizer(config *SanitizerConfig) *Sanitizer {
	if config == nil {
		config = DefaultSanitizerConfig()
	}
	return &Sanitizer{config: config}
}

// Sanitize sanitizes a string according to the configuration
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	if s.config.RemoveControlChars {
		result = controlPattern.ReplaceAllString(result, "")
	}
	if s.config.StripHTML {
		result = StripHTML(result)
	}
	if s.config.TrimWhitespace {
		result = strings.TrimSpace(result)
	}
	if s.config.MaxLength > 0 {
		if r := []rune(result); len(r) > s.config.MaxLength {
			result = string(r[:s.config.MaxLength])
		}
	}
	return result
}

// StripHTML removes all HTML tags from a string
func StripHTML(input string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(input, ""))
}

// SanitizeFilename keeps letters, digits, dot, dash and underscore.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "..", "")
	filename = filenameUnsafe.ReplaceAllString(filename, "_")
	if len(filename) > 255 {
		filename = filename[:255]
	}
	return filename
}

// SafeRedirect returns target when it is a local path and fallback
// otherwise. Absolute and scheme-relative URLs are rejected so a login
// callback cannot bounce the user to another host.
func SafeRedirect(target, fallback string) string {
	target = strings.TrimSpace(controlPattern.ReplaceAllString(target, ""))
	if decoded, err := url.QueryUnescape(target); err == nil && strings.HasPrefix(decoded, "/") {
		target = decoded
	}
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return target
}

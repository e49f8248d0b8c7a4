package youtube

import (
	"regexp"
	"strings"

	"convify/internal/services"
)

var sourceURLPattern = regexp.MustCompile(`(?i)^https?://(www\.)?(youtube\.com|youtu\.be)/.*`)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&?/]+)`),
	regexp.MustCompile(`youtube\.com/embed/([^&?/]+)`),
	regexp.MustCompile(`youtube\.com/v/([^&?/]+)`),
	regexp.MustCompile(`youtube\.com/shorts/([^&?/]+)`),
}

// ValidateSourceURL checks that source looks like a YouTube URL.
func ValidateSourceURL(source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return services.Wrap(services.ErrValidation, "request", "url", "URL cannot be empty", nil)
	}
	if !sourceURLPattern.MatchString(source) {
		return services.Wrap(services.ErrValidation, "request", "url", "Invalid YouTube URL format", nil)
	}
	return nil
}

// Resolver extracts video IDs from YouTube URLs.
type Resolver struct{}

// ResolveIdentifier returns the first video ID matched by the known URL shapes.
func (Resolver) ResolveIdentifier(source string) (string, error) {
	source = strings.TrimSpace(source)
	for _, pattern := range videoIDPatterns {
		if match := pattern.FindStringSubmatch(source); len(match) == 2 && match[1] != "" {
			return match[1], nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "resolve", "video id", "Invalid YouTube URL: "+source, nil)
}

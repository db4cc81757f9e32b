package notes

import (
	"fmt"
	"regexp"
	"strings"
)

// Content limits enforced after generation. Violations reject the
// entire result; nothing is truncated or partially applied.
const (
	maxNotesLength = 5000
	maxTagCount    = 10
	maxTagLength   = 30
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validateResult checks the generated content against the content
// limits. It returns a human-readable reason on rejection.
func validateResult(r GeneratedNotesResult) error {
	if r.Notes != nil && len(*r.Notes) > maxNotesLength {
		return fmt.Errorf("generated notes are too long (%d characters, limit %d)", len(*r.Notes), maxNotesLength)
	}

	if len(r.Tags) > maxTagCount {
		return fmt.Errorf("too many tags generated (%d, limit %d)", len(r.Tags), maxTagCount)
	}
	for _, tag := range r.Tags {
		if len(tag) > maxTagLength {
			return fmt.Errorf("tag %q is too long (%d characters, limit %d)", tag, len(tag), maxTagLength)
		}
		if !tagPattern.MatchString(tag) {
			return fmt.Errorf("tag %q contains invalid characters; only letters, digits, hyphens, and underscores are allowed", tag)
		}
	}

	if strings.TrimSpace(r.Explanation) == "" {
		return fmt.Errorf("generated result is missing an explanation")
	}

	return nil
}

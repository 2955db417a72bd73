package notes

import (
	"regexp"
	"strings"
)

// Content is the best-effort structured extraction of a notes body.
// Malformed or section-less notes yield empty lists, never an error.
type Content struct {
	KeyPoints   []string
	ActionItems []string
	NextSteps   []string
}

// IsEmpty reports whether nothing was extracted.
func (c Content) IsEmpty() bool {
	return len(c.KeyPoints) == 0 && len(c.ActionItems) == 0 && len(c.NextSteps) == 0
}

var (
	keyPointsHeader   = regexp.MustCompile(`(?i)key point|summary|discussion`)
	actionItemsHeader = regexp.MustCompile(`(?i)action item|task|to-?do`)
	nextStepsHeader   = regexp.MustCompile(`(?i)next step|follow-?up`)
)

// ParseContent runs a line-oriented pass over a notes body. Header-like lines
// switch the current section; bullet lines are appended to whichever section
// is active. Everything else is ignored.
func ParseContent(body string) Content {
	var content Content
	var current *[]string

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if item, ok := bulletText(line); ok {
			if current != nil && item != "" {
				*current = append(*current, item)
			}
			continue
		}

		switch {
		case keyPointsHeader.MatchString(line):
			current = &content.KeyPoints
		case actionItemsHeader.MatchString(line):
			current = &content.ActionItems
		case nextStepsHeader.MatchString(line):
			current = &content.NextSteps
		}
		// Non-bullet lines inside a section carry no content.
	}

	return content
}

// bulletText strips a leading bullet marker, reporting whether the line was
// a bullet at all.
func bulletText(line string) (string, bool) {
	for _, prefix := range []string{"-", "•", "*"} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", false
}

// internal/common/textutil/textutil.go
package textutil

import (
	"regexp"
	"strings"
	"time"

	"book-availability/internal/models"
)

var (
	entityPattern     = regexp.MustCompile(`(?i)&[a-z0-9#]+;`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Z}]+`)
	dueDatePattern    = regexp.MustCompile(`(\d{4})[-./](\d{1,2})[-./](\d{1,2})`)
)

var entities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&#39;":  "'",
	"&nbsp;": " ",
}

// DecodeEntities replaces the small entity table catalog pages actually use.
// Unknown entities are kept verbatim.
func DecodeEntities(s string) string {
	if s == "" {
		return ""
	}
	return entityPattern.ReplaceAllStringFunc(s, func(m string) string {
		if r, ok := entities[strings.ToLower(m)]; ok {
			return r
		}
		return m
	})
}

func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

func CleanText(s string) string {
	return CollapseWhitespace(DecodeEntities(s))
}

// NormalizeLines cleans each line on its own and drops blank lines, so
// label-bounded patterns can still stop at line breaks.
func NormalizeLines(s string) string {
	lines := strings.Split(DecodeEntities(s), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = CollapseWhitespace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// ClassifyAvailability maps free status text onto the canonical enum.
// Unrecognized text is treated as on loan.
func ClassifyAvailability(raw string) models.Availability {
	text := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case strings.Contains(text, "대출가능"),
		strings.Contains(text, "대출 가능"),
		strings.Contains(text, "available"):
		return models.Available
	case strings.Contains(text, "관내열람"),
		strings.Contains(text, "열람만"),
		strings.Contains(text, "in-library"):
		return models.InLibraryOnly
	default:
		return models.OnLoan
	}
}

// ParseDueDate finds the first YYYY-MM-DD, YYYY.MM.DD or YYYY/MM/DD date and
// returns it as YYYY-MM-DD. Impossible calendar dates are rejected.
func ParseDueDate(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	m := dueDatePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}

	date := m[1] + "-" + padTwo(m[2]) + "-" + padTwo(m[3])

	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return "", false
	}
	return date, true
}

func padTwo(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// DueDatePtr adapts ParseDueDate to the optional record field.
func DueDatePtr(raw string) *string {
	if d, ok := ParseDueDate(raw); ok {
		return &d
	}
	return nil
}

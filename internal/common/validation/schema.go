// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/xeipuuv/gojsonschema"
)

const MaxFieldLength = 200

// SearchQuerySchema requires at least one non-empty search field.
const SearchQuerySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "title":     {"type": "string", "maxLength": 200},
    "author":    {"type": "string", "maxLength": 200},
    "publisher": {"type": "string", "maxLength": 200}
  },
  "additionalProperties": false,
  "anyOf": [
    {"required": ["title"],     "properties": {"title":     {"minLength": 1}}},
    {"required": ["author"],    "properties": {"author":    {"minLength": 1}}},
    {"required": ["publisher"], "properties": {"publisher": {"minLength": 1}}}
  ]
}`

var searchQuerySchema = mustSchema(SearchQuerySchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return s
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateSearchParams checks already-sanitized query fields. Empty fields
// should be omitted by the caller.
func ValidateSearchParams(params map[string]interface{}) *ValidationResult {
	result, err := searchQuerySchema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "SCHEMA_ERROR"}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return out
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	specialPattern = regexp.MustCompile(`[<>'"&]`)
)

// Sanitize strips markup, the characters <>'"& and control characters.
func Sanitize(input string) string {
	if input == "" {
		return ""
	}
	s := tagPattern.ReplaceAllString(input, "")
	s = specialPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// SearchParams builds the validation document, leaving out empty fields.
func SearchParams(title, author, publisher string) map[string]interface{} {
	params := map[string]interface{}{}
	if title != "" {
		params["title"] = title
	}
	if author != "" {
		params["author"] = author
	}
	if publisher != "" {
		params["publisher"] = publisher
	}
	return params
}

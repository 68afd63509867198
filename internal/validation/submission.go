// Package validation checks submission payloads before they are sent.
package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/parisxmas/fsdash/pkg/fsclient"
	"github.com/xeipuuv/gojsonschema"
)

// RequiredFields are the creation fields that must be non-blank.
var RequiredFields = []string{
	"fullLegalName",
	"countryOfResidence",
	"CompanyName",
	"CompanyYouRepresent",
	"email",
	"QuestionOne",
	"QuestionTwo",
	"QuestionThree",
	"signature",
}

var nonBlank = map[string]any{"type": "string", "pattern": `\S`}

var createSchema = func() *gojsonschema.Schema {
	props := map[string]any{
		"InfringingUrls": map[string]any{
			"type":            "array",
			"minItems":        1,
			"items":           []any{nonBlank},
			"additionalItems": map[string]any{"type": "string"},
		},
		"confirmForm": map[string]any{"enum": []any{true}},
	}
	required := []any{"InfringingUrls", "confirmForm"}
	for _, f := range RequiredFields {
		props[f] = nonBlank
		required = append(required, f)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}))
	if err != nil {
		panic(fmt.Sprintf("validation: bad creation schema: %v", err))
	}
	return schema
}()

// Errors lists the offending fields of an invalid payload.
type Errors struct {
	Fields []string
	Detail []string
}

func (e *Errors) Error() string {
	return "validation failed: " + strings.Join(e.Detail, "; ")
}

// Has reports whether field was flagged.
func (e *Errors) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// CreateSubmission returns *Errors when a required field is blank, the first
// infringing URL is missing, or the perjury confirmation is unchecked.
func CreateSubmission(req fsclient.CreateSubmissionRequest) error {
	doc, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("validation: encode payload: %w", err)
	}
	result, err := createSchema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	seen := map[string]bool{}
	verr := &Errors{}
	for _, desc := range result.Errors() {
		verr.Detail = append(verr.Detail, desc.String())
		field := fieldOf(desc)
		if !seen[field] {
			seen[field] = true
			verr.Fields = append(verr.Fields, field)
		}
	}
	sort.Strings(verr.Fields)
	return verr
}

func fieldOf(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		if p, ok := desc.Details()["property"].(string); ok {
			return p
		}
	}
	field := desc.Field()
	if i := strings.IndexByte(field, '.'); i > 0 {
		field = field[:i]
	}
	return field
}

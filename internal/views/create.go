package views

import (
	"errors"
	"strings"

	"github.com/parisxmas/fsdash/internal/validation"
	"github.com/parisxmas/fsdash/pkg/fsclient"
)

// DefaultCountry pre-fills the country of residence.
const DefaultCountry = "Deutschland"

// CreateForm is the state of the new-submission screen.
type CreateForm struct {
	fsclient.CreateSubmissionRequest
	InFlight bool
	// Invalid holds the fields that failed the last validation.
	Invalid []string
}

func NewCreateForm() CreateForm {
	return CreateForm{CreateSubmissionRequest: fsclient.CreateSubmissionRequest{
		CountryOfResidence:      DefaultCountry,
		RemoveChildAbuseContent: true,
		InfringingURLs:          []string{""},
	}}
}

func (f *CreateForm) AddURL() {
	f.InfringingURLs = append(f.InfringingURLs, "")
}

// RemoveURL deletes row i. The last remaining row is never removed.
func (f *CreateForm) RemoveURL(i int) {
	if len(f.URLRows()) <= 1 || i < 0 || i >= len(f.InfringingURLs) {
		return
	}
	f.InfringingURLs = append(f.InfringingURLs[:i], f.InfringingURLs[i+1:]...)
}

// URLRows returns the URL rows, always at least one.
func (f *CreateForm) URLRows() []string {
	if len(f.InfringingURLs) == 0 {
		f.InfringingURLs = []string{""}
	}
	return f.InfringingURLs
}

// Request returns the payload to send: text fields trimmed, and blank URL
// rows after the first dropped.
func (f CreateForm) Request() fsclient.CreateSubmissionRequest {
	r := f.CreateSubmissionRequest
	r.FullLegalName = strings.TrimSpace(r.FullLegalName)
	r.CountryOfResidence = strings.TrimSpace(r.CountryOfResidence)
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.CompanyYouRepresent = strings.TrimSpace(r.CompanyYouRepresent)
	r.Email = strings.TrimSpace(r.Email)
	r.QuestionOne = strings.TrimSpace(r.QuestionOne)
	r.QuestionTwo = strings.TrimSpace(r.QuestionTwo)
	r.QuestionThree = strings.TrimSpace(r.QuestionThree)
	r.Signature = strings.TrimSpace(r.Signature)

	urls := make([]string, 0, len(r.InfringingURLs))
	for i, u := range r.InfringingURLs {
		u = strings.TrimSpace(u)
		if u == "" && i > 0 {
			continue
		}
		urls = append(urls, u)
	}
	if len(urls) == 0 {
		urls = []string{""}
	}
	r.InfringingURLs = urls
	return r
}

// Validate records the invalid fields and returns the validation error, if any.
func (f *CreateForm) Validate() error {
	f.Invalid = nil
	err := validation.CreateSubmission(f.Request())
	var verr *validation.Errors
	if errors.As(err, &verr) {
		f.Invalid = verr.Fields
	}
	return err
}

// CanSubmit is false while a create is outstanding or the form is incomplete.
func (f CreateForm) CanSubmit() bool {
	return !f.InFlight && validation.CreateSubmission(f.Request()) == nil
}

// IsInvalid reports whether field failed the last validation.
func (f CreateForm) IsInvalid(field string) bool {
	for _, v := range f.Invalid {
		if v == field {
			return true
		}
	}
	return false
}

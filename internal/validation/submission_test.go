package validation

import (
	"testing"

	"github.com/parisxmas/fsdash/pkg/fsclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() fsclient.CreateSubmissionRequest {
	return fsclient.CreateSubmissionRequest{
		FullLegalName:       "Jane Doe",
		CountryOfResidence:  "Deutschland",
		CompanyName:         "Example GmbH",
		CompanyYouRepresent: "Example GmbH",
		Email:               "jane@example.com",
		InfringingURLs:      []string{"https://bad.example/1"},
		QuestionOne:         "a",
		QuestionTwo:         "b",
		QuestionThree:       "c",
		ConfirmForm:         true,
		Signature:           "Jane Doe",
	}
}

func TestCreateSubmission_Valid(t *testing.T) {
	assert.NoError(t, CreateSubmission(validRequest()))

	req := validRequest()
	req.InfringingURLs = append(req.InfringingURLs, "")
	assert.NoError(t, CreateSubmission(req), "only the first URL is mandatory")
}

func TestCreateSubmission_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fsclient.CreateSubmissionRequest)
		field  string
	}{
		{"blank first url", func(r *fsclient.CreateSubmissionRequest) { r.InfringingURLs = []string{""} }, "InfringingUrls"},
		{"no urls", func(r *fsclient.CreateSubmissionRequest) { r.InfringingURLs = []string{} }, "InfringingUrls"},
		{"nil urls", func(r *fsclient.CreateSubmissionRequest) { r.InfringingURLs = nil }, "InfringingUrls"},
		{"unconfirmed", func(r *fsclient.CreateSubmissionRequest) { r.ConfirmForm = false }, "confirmForm"},
		{"blank name", func(r *fsclient.CreateSubmissionRequest) { r.FullLegalName = "" }, "fullLegalName"},
		{"whitespace email", func(r *fsclient.CreateSubmissionRequest) { r.Email = "   " }, "email"},
		{"blank signature", func(r *fsclient.CreateSubmissionRequest) { r.Signature = "" }, "signature"},
		{"blank represented company", func(r *fsclient.CreateSubmissionRequest) { r.CompanyYouRepresent = "" }, "CompanyYouRepresent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := CreateSubmission(req)
			require.Error(t, err)
			var verr *Errors
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.field), "fields: %v", verr.Fields)
		})
	}
}

func TestCreateSubmission_ReportsEveryField(t *testing.T) {
	err := CreateSubmission(fsclient.CreateSubmissionRequest{InfringingURLs: []string{""}})
	var verr *Errors
	require.ErrorAs(t, err, &verr)
	for _, f := range RequiredFields {
		assert.True(t, verr.Has(f), f)
	}
	assert.True(t, verr.Has("InfringingUrls"))
	assert.True(t, verr.Has("confirmForm"))
}

package fsclient

import (
	"encoding/json"
	"fmt"
)

// Status is the processing state of a submission as reported by the service.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetry     Status = "retry"
	StatusQueued    Status = "queued"
	StatusRequeued  Status = "requeued"
)

// Statuses lists the closed status set in display order.
var Statuses = []Status{
	StatusPending,
	StatusCompleted,
	StatusFailed,
	StatusRetry,
	StatusQueued,
	StatusRequeued,
}

// ParseStatus returns the status named by s, or an error if s is not one of Statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("fsclient: unknown status %q", s)
	}
	return st, nil
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Label is the human readable badge text. Anything outside the set is "Unknown".
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusRetry:
		return "Retry"
	case StatusQueued:
		return "Queued"
	case StatusRequeued:
		return "Requeued"
	}
	return "Unknown"
}

// CreateSubmissionRequest is the body of POST /submit.
type CreateSubmissionRequest struct {
	FullLegalName           string   `json:"fullLegalName"`
	IsChildAbuseContent     bool     `json:"isChildAbuseContent"`
	RemoveChildAbuseContent bool     `json:"removeChildAbuseContent"`
	CountryOfResidence      string   `json:"countryOfResidence"`
	CompanyName             string   `json:"CompanyName"`
	CompanyYouRepresent     string   `json:"CompanyYouRepresent"`
	Email                   string   `json:"email"`
	SendNoticeToAuthor      bool     `json:"sendNoticeToAuthor"`
	InfringingURLs          []string `json:"InfringingUrls"`
	IsRelatedToMedia        bool     `json:"isRelatedToMedia"`
	QuestionOne             string   `json:"QuestionOne"`
	QuestionTwo             string   `json:"QuestionTwo"`
	QuestionThree           string   `json:"QuestionThree"`
	ConfirmForm             bool     `json:"confirmForm"`
	Signature               string   `json:"signature"`
}

// Submission is a stored takedown request.
type Submission struct {
	CreateSubmissionRequest

	ID            string  `json:"id"`
	Status        *Status `json:"status"`
	Error         *string `json:"error"`
	RetryAttempts *int    `json:"retryAtempts"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// UnmarshalJSON accepts the retry counter under both the service's spelling
// ("retryAtempts") and "retryAttempts".
func (s *Submission) UnmarshalJSON(data []byte) error {
	type plain Submission
	var aux struct {
		plain
		RetryAttemptsAlt *int `json:"retryAttempts"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Submission(aux.plain)
	if s.RetryAttempts == nil {
		s.RetryAttempts = aux.RetryAttemptsAlt
	}
	return nil
}

// CurrentStatus returns the status, or "" when the service reported null.
func (s *Submission) CurrentStatus() Status {
	if s.Status == nil {
		return ""
	}
	return *s.Status
}

// Meta is the pagination block returned with a list page.
type Meta struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	Limit       int  `json:"limit"`
}

// Consistent reports whether the meta block obeys the pagination invariants.
func (m Meta) Consistent() bool {
	if m.Limit <= 0 || m.Total < 0 || m.TotalPages < 0 {
		return false
	}
	if m.TotalPages > 0 && (m.CurrentPage < 1 || m.CurrentPage > m.TotalPages) {
		return false
	}
	if m.Total == 0 {
		return m.TotalPages <= 1
	}
	return m.Total <= m.Limit*m.TotalPages && m.Total > m.Limit*(m.TotalPages-1)
}

// ListParams selects a page of submissions.
type ListParams struct {
	Page   int
	Limit  int
	Search string
}

// ListResponse is the body of GET /submissions.
type ListResponse struct {
	Data    []Submission `json:"data"`
	Meta    Meta         `json:"meta"`
	Message string       `json:"message"`
}

// UpdateStatusRequest is the body of PATCH /submission/{id}/status.
// Error is omitted from the wire when nil.
type UpdateStatusRequest struct {
	Status Status  `json:"status"`
	Error  *string `json:"error,omitempty"`
}

// StatusResponse is the body of GET /submission/{id}/status.
type StatusResponse struct {
	Status *Status `json:"status"`
}

// Stats holds aggregate counts per status across all submissions.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Retry     int `json:"retry"`
	Queued    int `json:"queued"`
	Requeued  int `json:"requeued"`
}

// HealthMemory is reported in bytes.
type HealthMemory struct {
	Total float64 `json:"total"`
	Used  float64 `json:"used"`
}

// HealthChecks is the detail block of a health response.
type HealthChecks struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Uptime    float64        `json:"uptime"`
	Memory    HealthMemory   `json:"memory"`
	CPU       map[string]any `json:"cpu,omitempty"`
}

// Health is the body of GET /health.
type Health struct {
	Error  map[string]any `json:"error,omitempty"`
	Status int            `json:"status"`
	Checks HealthChecks   `json:"checks"`
}

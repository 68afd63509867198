package views

import (
	"strings"

	"github.com/parisxmas/fsdash/pkg/fsclient"
)

// StatusDialog is the status transition form of the detail screen.
type StatusDialog struct {
	Selected  string
	ErrorNote string
	InFlight  bool
}

// CanSubmit is false while a request is outstanding or no valid status is chosen.
func (d StatusDialog) CanSubmit() bool {
	return !d.InFlight && fsclient.Status(d.Selected).Valid()
}

// Payload builds the update request. A note that is blank after trimming is
// left out; otherwise it is sent as typed.
func (d StatusDialog) Payload() (fsclient.UpdateStatusRequest, error) {
	st, err := fsclient.ParseStatus(d.Selected)
	if err != nil {
		return fsclient.UpdateStatusRequest{}, err
	}
	req := fsclient.UpdateStatusRequest{Status: st}
	if strings.TrimSpace(d.ErrorNote) != "" {
		note := d.ErrorNote
		req.Error = &note
	}
	return req, nil
}

// RetryOffered reports whether the retry action applies to s.
func RetryOffered(s *fsclient.Submission) bool {
	return s != nil && s.CurrentStatus() == fsclient.StatusFailed
}

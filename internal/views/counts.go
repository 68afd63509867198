package views

import "github.com/parisxmas/fsdash/pkg/fsclient"

// Counts are the status tiles on the list and dashboard screens.
type Counts struct {
	Total     int
	Pending   int
	Completed int
	Failed    int
	Queued    int
	// Derived is set when the numbers were counted from the visible page
	// rather than reported by the service.
	Derived bool
}

// CountsFromStats uses the aggregate endpoint. Requeued submissions are
// reported as queued.
func CountsFromStats(s *fsclient.Stats) Counts {
	return Counts{
		Total:     s.Total,
		Pending:   s.Pending,
		Completed: s.Completed,
		Failed:    s.Failed,
		Queued:    s.Queued + s.Requeued,
	}
}

// CountsFromPage counts the statuses of one page. total is the list total
// reported by the page meta.
func CountsFromPage(items []fsclient.Submission, total int) Counts {
	c := Counts{Total: total, Derived: true}
	for i := range items {
		switch items[i].CurrentStatus() {
		case fsclient.StatusPending:
			c.Pending++
		case fsclient.StatusCompleted:
			c.Completed++
		case fsclient.StatusFailed:
			c.Failed++
		case fsclient.StatusQueued, fsclient.StatusRequeued:
			c.Queued++
		}
	}
	return c
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/parisxmas/fsdash/internal/session"
	"github.com/parisxmas/fsdash/internal/views"
	"github.com/parisxmas/fsdash/pkg/fsclient"
	"go.uber.org/zap"
)

// RecentCount is the number of submissions on the dashboard.
const RecentCount = 5

// ErrRetryNotOffered is returned when a retry is requested for a submission
// that is not in the failed state.
var ErrRetryNotOffered = errors.New("service: retry is only available for failed submissions")

type SubmissionService struct {
	clients      *Clients
	lists        *views.Registry
	guard        *views.Guard
	defaultLimit int
	log          *zap.Logger
}

func NewSubmissionService(clients *Clients, lists *views.Registry, guard *views.Guard, defaultLimit int, log *zap.Logger) *SubmissionService {
	return &SubmissionService{clients: clients, lists: lists, guard: guard, defaultLimit: defaultLimit, log: log}
}

// Forget drops per-session view state. It is registered as a logout hook.
func (s *SubmissionService) Forget(sessionID string) {
	s.lists.Forget(sessionID)
	s.guard.Forget(sessionID)
}

// NormalizeQuery applies the configured default page size.
func (s *SubmissionService) NormalizeQuery(q views.Query) views.Query {
	return q.Normalize(s.defaultLimit)
}

// List loads a page through the session's list controller, so a newer request
// supersedes an older one still in flight.
func (s *SubmissionService) List(ctx context.Context, sess *session.Session, q views.Query) (views.ListState, error) {
	client := s.clients.For(sess)
	q = s.NormalizeQuery(q)
	return s.lists.For(sess.ID, q.View).Load(ctx, q, client.ListSubmissions)
}

// Counts prefers the aggregate stats endpoint and falls back to counting the
// given page.
func (s *SubmissionService) Counts(ctx context.Context, sess *session.Session, st views.ListState) views.Counts {
	stats, err := s.clients.For(sess).Stats(ctx)
	if err == nil {
		return views.CountsFromStats(stats)
	}
	s.log.Debug("stats unavailable, deriving counts from page", zap.Error(err))
	return views.CountsFromPage(st.Items, st.Meta.Total)
}

// Dashboard is the landing screen model.
type Dashboard struct {
	Health    *fsclient.Health
	HealthErr error
	Recent    []fsclient.Submission
	RecentErr error
	Counts    views.Counts
}

func (s *SubmissionService) Dashboard(ctx context.Context, sess *session.Session) *Dashboard {
	client := s.clients.For(sess)
	d := &Dashboard{}
	d.Health, d.HealthErr = client.Health(ctx)

	page, err := client.ListSubmissions(ctx, fsclient.ListParams{Page: 1, Limit: RecentCount})
	if err != nil {
		d.RecentErr = err
		page = &fsclient.ListResponse{}
	}
	d.Recent = page.Data
	d.Counts = s.Counts(ctx, sess, views.ListState{Items: page.Data, Meta: page.Meta})
	return d
}

func (s *SubmissionService) Get(ctx context.Context, sess *session.Session, id string) (*fsclient.Submission, error) {
	return s.clients.For(sess).GetSubmission(ctx, id)
}

// UpdateStatus requests the transition described by dialog and returns the
// submission as re-read from the service.
func (s *SubmissionService) UpdateStatus(ctx context.Context, sess *session.Session, id string, dialog views.StatusDialog) (*fsclient.Submission, error) {
	release, err := s.guard.Acquire(sess.ID, "status:"+id)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := dialog.Payload()
	if err != nil {
		return nil, err
	}
	client := s.clients.For(sess)
	if _, err := client.UpdateStatus(ctx, id, req); err != nil {
		return nil, fmt.Errorf("update status of %s: %w", id, err)
	}
	s.log.Info("status updated", zap.String("id", id), zap.String("status", string(req.Status)))
	return client.GetSubmission(ctx, id)
}

// Retry re-queues a failed submission and returns it as re-read from the
// service. The current status is checked first.
func (s *SubmissionService) Retry(ctx context.Context, sess *session.Session, id string) (*fsclient.Submission, error) {
	release, err := s.guard.Acquire(sess.ID, "retry:"+id)
	if err != nil {
		return nil, err
	}
	defer release()

	client := s.clients.For(sess)
	st, err := client.GetStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("status of %s: %w", id, err)
	}
	if st.Status == nil || *st.Status != fsclient.StatusFailed {
		return nil, ErrRetryNotOffered
	}
	if _, err := client.Retry(ctx, id); err != nil {
		return nil, fmt.Errorf("retry %s: %w", id, err)
	}
	s.log.Info("retry requested", zap.String("id", id))
	return client.GetSubmission(ctx, id)
}

// Create validates form and sends it once. Validation failures are returned
// before any request is made.
func (s *SubmissionService) Create(ctx context.Context, sess *session.Session, form *views.CreateForm) (*fsclient.Submission, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	release, err := s.guard.Acquire(sess.ID, "create")
	if err != nil {
		return nil, err
	}
	defer release()

	sub, err := s.clients.For(sess).CreateSubmission(ctx, form.Request())
	if err != nil {
		return nil, err
	}
	s.log.Info("submission created", zap.String("id", sub.ID))
	return sub, nil
}

// ExportPage fetches one page for export without touching the list view state.
func (s *SubmissionService) ExportPage(ctx context.Context, sess *session.Session, q views.Query) ([]fsclient.Submission, error) {
	q = s.NormalizeQuery(q)
	resp, err := s.clients.For(sess).ListSubmissions(ctx, fsclient.ListParams{Page: q.Page, Limit: q.Limit, Search: q.Search})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/parisxmas/fsdash/internal/service"
	"github.com/parisxmas/fsdash/internal/session"
	"github.com/parisxmas/fsdash/internal/validation"
	"github.com/parisxmas/fsdash/internal/views"
	"github.com/parisxmas/fsdash/internal/web"
	"github.com/parisxmas/fsdash/pkg/fsclient"
	"go.uber.org/zap"
)

const (
	msgLoadListFailed   = "Failed to load submissions"
	msgNotFound         = "Submission not found"
	msgLoadFailed       = "Failed to load submission details"
	msgStatusOK         = "Status updated successfully"
	msgStatusFailed     = "Failed to update status"
	msgRetryOK          = "Submission retry initiated"
	msgRetryFailed      = "Failed to retry submission"
	msgRetryNotOffered  = "Only failed submissions can be retried"
	msgCreateOK         = "Submission created successfully"
	msgCreateIncomplete = "Please fill all required fields"
	msgCreateFailed     = "Failed to create submission"
	msgBusy             = "A request for this action is already in progress"
)

type SubmissionHandler struct {
	*Base
	subs    *service.SubmissionService
	guard   *views.Guard
	refresh time.Duration
}

func NewSubmissionHandler(base *Base, subs *service.SubmissionService, guard *views.Guard, refresh time.Duration) *SubmissionHandler {
	return &SubmissionHandler{Base: base, subs: subs, guard: guard, refresh: refresh}
}

func queryFrom(v url.Values) views.Query {
	page, _ := strconv.Atoi(v.Get("page"))
	limit, _ := strconv.Atoi(v.Get("limit"))
	return views.Query{Page: page, Limit: limit, Search: v.Get("search"), View: v.Get("view")}
}

type listData struct {
	State          views.ListState
	Counts         views.Counts
	Pager          views.Pager
	PageSizes      []int
	Placeholders   int
	RefreshSeconds int
	LoadErr        string
}

// List renders one page of submissions.
func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := session.MustFromContext(r.Context())
	q := h.subs.NormalizeQuery(queryFrom(r.URL.Query()))

	st, err := h.subs.List(r.Context(), sess, q)
	d := listData{
		PageSizes:      views.PageSizes,
		Placeholders:   views.PlaceholderRows,
		RefreshSeconds: int(h.refresh / time.Second),
	}
	switch {
	case errors.Is(err, views.ErrStale):
		// a newer request for this operator owns the view now
	case err != nil:
		d.LoadErr = msgLoadListFailed
	}
	if !st.Loaded {
		st.Query = q
	}
	d.State = st
	d.Pager = st.Pager()
	d.Counts = h.subs.Counts(r.Context(), sess, st)
	h.render(w, r, http.StatusOK, "list", Page{Title: "Submissions", Nav: "submissions", Data: d})
}

type apiRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	Status      string `json:"status"`
	StatusLabel string `json:"statusLabel"`
	StatusClass string `json:"statusClass"`
	CreatedAt   string `json:"createdAt"`
	Date        string `json:"date"`
	Ago         string `json:"ago"`
}

type apiCounts struct {
	Total     int  `json:"total"`
	Pending   int  `json:"pending"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Queued    int  `json:"queued"`
	Derived   bool `json:"derived"`
}

// APIList is the auto-refresh endpoint. The caller's seq is echoed so it can
// drop out-of-order responses. A load superseded by a newer one for the same
// view answers 204 with no body.
func (h *SubmissionHandler) APIList(w http.ResponseWriter, r *http.Request) {
	sess := session.MustFromContext(r.Context())
	seq, _ := strconv.ParseUint(r.URL.Query().Get("seq"), 10, 64)

	st, err := h.subs.List(r.Context(), sess, queryFrom(r.URL.Query()))
	if errors.Is(err, views.ErrStale) {
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"seq": seq, "error": msgLoadListFailed})
		return
	}

	rows := make([]apiRow, 0, len(st.Items))
	for _, s := range st.Items {
		label, class := fsclient.Status("").Label(), "unknown"
		if s.Status != nil && s.Status.Valid() {
			label, class = s.Status.Label(), string(*s.Status)
		}
		rows = append(rows, apiRow{
			ID:          s.ID,
			Name:        s.FullLegalName,
			Email:       s.Email,
			Company:     s.CompanyName,
			Status:      string(s.CurrentStatus()),
			StatusLabel: label,
			StatusClass: class,
			CreatedAt:   s.CreatedAt,
			Date:        web.Date(s.CreatedAt),
			Ago:         web.Ago(s.CreatedAt),
		})
	}
	c := h.subs.Counts(r.Context(), sess, st)
	writeJSON(w, http.StatusOK, map[string]any{
		"seq":    seq,
		"query":  map[string]any{"page": st.Query.Page, "limit": st.Query.Limit, "search": st.Query.Search},
		"meta":   st.Meta,
		"rows":   rows,
		"counts": apiCounts(c),
		"pager":  st.Pager(),
	})
}

type detailData struct {
	Submission   *fsclient.Submission
	Statuses     []fsclient.Status
	Dialog       views.StatusDialog
	RetryOffered bool
	RetryBusy    bool
}

func (h *SubmissionHandler) Detail(w http.ResponseWriter, r *http.Request) {
	sess := session.MustFromContext(r.Context())
	id := chi.URLParam(r, "id")

	sub, err := h.subs.Get(r.Context(), sess, id)
	if err != nil {
		msg := msgLoadFailed
		if fsclient.IsNotFound(err) {
			msg = msgNotFound
		}
		h.redirect(w, r, "/submissions", flashError, msg)
		return
	}
	d := detailData{
		Submission:   sub,
		Statuses:     fsclient.Statuses,
		Dialog: views.StatusDialog{
			Selected: string(sub.CurrentStatus()),
			InFlight: h.guard.Busy(sess.ID, "status:"+id),
		},
		RetryOffered: views.RetryOffered(sub),
		RetryBusy:    h.guard.Busy(sess.ID, "retry:"+id),
	}
	h.render(w, r, http.StatusOK, "detail", Page{Title: sub.FullLegalName, Nav: "submissions", Data: d})
}

func (h *SubmissionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	sess := session.MustFromContext(r.Context())
	id := chi.URLParam(r, "id")
	back := "/submissions/" + url.PathEscape(id)

	dialog := views.StatusDialog{
		Selected:  r.PostFormValue("status"),
		ErrorNote: r.PostFormValue("error"),
		InFlight:  h.guard.Busy(sess.ID, "status:"+id),
	}
	if !dialog.CanSubmit() {
		msg := msgStatusFailed
		if dialog.InFlight {
			msg = msgBusy
		}
		h.redirect(w, r, back, flashError, msg)
		return
	}
	_, err := h.subs.UpdateStatus(r.Context(), sess, id, dialog)
	switch {
	case err == nil:
		h.redirect(w, r, back, flashSuccess, msgStatusOK)
	case errors.Is(err, views.ErrBusy):
		h.redirect(w, r, back, flashError, msgBusy)
	default:
		h.Log.Warn("status update failed", zap.String("id", id), zap.Error(err))
		h.redirect(w, r, back, flashError, fsclient.Message(err, msgStatusFailed))
	}
}

func (h *SubmissionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	sess := session.MustFromContext(r.Context())
	id := chi.URLParam(r, "id")
	back := "/submissions/" + url.PathEscape(id)

	_, err := h.subs.Retry(r.Context(), sess, id)
	switch {
	case err == nil:
		h.redirect(w, r, back, flashSuccess, msgRetryOK)
	case errors.Is(err, views.ErrBusy):
		h.redirect(w, r, back, flashError, msgBusy)
	case errors.Is(err, service.ErrRetryNotOffered):
		h.redirect(w, r, back, flashError, msgRetryNotOffered)
	default:
		h.Log.Warn("retry failed", zap.String("id", id), zap.Error(err))
		h.redirect(w, r, back, flashError, fsclient.Message(err, msgRetryFailed))
	}
}

type newData struct {
	Form *views.CreateForm
}

func (h *SubmissionHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	form := views.NewCreateForm()
	h.renderNew(w, r, http.StatusOK, &form, "")
}

// Create handles the creation form. Besides submitting, the form posts back
// to add or remove URL rows; those re-render without contacting the service.
func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := session.MustFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		form := views.NewCreateForm()
		h.renderNew(w, r, http.StatusBadRequest, &form, msgCreateFailed)
		return
	}
	form := formFrom(r.PostForm)

	action := r.PostFormValue("action")
	switch {
	case action == "add-url":
		form.AddURL()
		h.renderNew(w, r, http.StatusOK, &form, "")
		return
	case strings.HasPrefix(action, "remove-url:"):
		if i, err := strconv.Atoi(strings.TrimPrefix(action, "remove-url:")); err == nil {
			form.RemoveURL(i)
		}
		h.renderNew(w, r, http.StatusOK, &form, "")
		return
	}

	form.InFlight = h.guard.Busy(sess.ID, "create")
	if !form.CanSubmit() {
		if form.InFlight {
			h.renderNew(w, r, http.StatusConflict, &form, msgBusy)
			return
		}
		_ = form.Validate()
		h.renderNew(w, r, http.StatusUnprocessableEntity, &form, msgCreateIncomplete)
		return
	}

	sub, err := h.subs.Create(r.Context(), sess, &form)
	var verr *validation.Errors
	switch {
	case err == nil:
		h.redirect(w, r, "/submissions/"+url.PathEscape(sub.ID), flashSuccess, msgCreateOK)
	case errors.As(err, &verr):
		h.renderNew(w, r, http.StatusUnprocessableEntity, &form, msgCreateIncomplete)
	case errors.Is(err, views.ErrBusy):
		h.renderNew(w, r, http.StatusConflict, &form, msgBusy)
	default:
		h.Log.Warn("create submission failed", zap.Error(err))
		h.renderNew(w, r, http.StatusBadGateway, &form, fsclient.Message(err, msgCreateFailed))
	}
}

// renderNew shows the creation form. Submit stays disabled while a create of
// this session is outstanding.
func (h *SubmissionHandler) renderNew(w http.ResponseWriter, r *http.Request, code int, form *views.CreateForm, errMsg string) {
	if sess, ok := session.FromContext(r.Context()); ok {
		form.InFlight = h.guard.Busy(sess.ID, "create")
	}
	p := Page{Title: "New Submission", Nav: "new", Data: newData{Form: form}}
	if errMsg != "" {
		p.Flash = &session.Flash{Kind: flashError, Message: errMsg}
	}
	h.render(w, r, code, "new", p)
}

func formFrom(v url.Values) views.CreateForm {
	form := views.NewCreateForm()
	form.FullLegalName = v.Get("fullLegalName")
	form.CountryOfResidence = v.Get("countryOfResidence")
	form.CompanyName = v.Get("CompanyName")
	form.CompanyYouRepresent = v.Get("CompanyYouRepresent")
	form.Email = v.Get("email")
	form.QuestionOne = v.Get("QuestionOne")
	form.QuestionTwo = v.Get("QuestionTwo")
	form.QuestionThree = v.Get("QuestionThree")
	form.Signature = v.Get("signature")
	form.IsChildAbuseContent = checked(v, "isChildAbuseContent")
	form.RemoveChildAbuseContent = checked(v, "removeChildAbuseContent")
	form.SendNoticeToAuthor = checked(v, "sendNoticeToAuthor")
	form.IsRelatedToMedia = checked(v, "isRelatedToMedia")
	form.ConfirmForm = checked(v, "confirmForm")
	form.InfringingURLs = append([]string(nil), v["InfringingUrls"]...)
	if len(form.InfringingURLs) == 0 {
		form.InfringingURLs = []string{""}
	}
	return form
}

func checked(v url.Values, name string) bool {
	switch strings.ToLower(v.Get(name)) {
	case "on", "true", "1":
		return true
	}
	return false
}

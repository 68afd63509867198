package handler

import (
	"net/http"

	"github.com/parisxmas/fsdash/internal/service"
	"github.com/parisxmas/fsdash/internal/session"
)

type DashboardHandler struct {
	*Base
	subs *service.SubmissionService
}

func NewDashboardHandler(base *Base, subs *service.SubmissionService) *DashboardHandler {
	return &DashboardHandler{Base: base, subs: subs}
}

func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d := h.subs.Dashboard(r.Context(), session.MustFromContext(r.Context()))
	p := Page{Title: "Dashboard", Nav: "dashboard", Data: d}
	if d.RecentErr != nil {
		p.Flash = &session.Flash{Kind: flashError, Message: "Failed to load submissions"}
	}
	h.render(w, r, http.StatusOK, "dashboard", p)
}

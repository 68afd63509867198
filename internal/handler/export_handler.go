package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/parisxmas/fsdash/internal/export"
	"github.com/parisxmas/fsdash/internal/service"
	"github.com/parisxmas/fsdash/internal/session"
	"go.uber.org/zap"
)

type ExportHandler struct {
	*Base
	subs *service.SubmissionService
}

func NewExportHandler(base *Base, subs *service.SubmissionService) *ExportHandler {
	return &ExportHandler{Base: base, subs: subs}
}

// Export downloads the requested list page as CSV or XLSX.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.subs.ExportPage(r.Context(), session.MustFromContext(r.Context()), queryFrom(r.URL.Query()))
	if err != nil {
		h.redirect(w, r, "/submissions", flashError, msgLoadListFailed)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, items); err != nil {
		h.Log.Error("export failed", zap.String("format", string(format)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename()+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

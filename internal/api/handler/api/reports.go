package api

import (
	"net/http"

	"github.com/shinmindoree/llmtradingtest/internal/api/response"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/storage/archive"
)

// ReportsHandler serves archived reports. A nil archive answers NOT_FOUND.
type ReportsHandler struct {
	reports *archive.Reports
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(reports *archive.Reports) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

// List returns archived run ids.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		response.Fail(w, core.Errorf(core.ErrNotFound, "report archive disabled"))
		return
	}
	runs, err := h.reports.Runs(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	if runs == nil {
		runs = []string{}
	}
	response.JSON(w, http.StatusOK, runs)
}

// Get returns one archived report.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		response.Fail(w, core.Errorf(core.ErrNotFound, "report archive disabled"))
		return
	}
	rep, err := h.reports.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rep)
}

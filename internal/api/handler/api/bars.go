package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/shinmindoree/llmtradingtest/internal/api/response"
	"github.com/shinmindoree/llmtradingtest/internal/app"
	"github.com/shinmindoree/llmtradingtest/internal/collector"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// DefaultPreviewRows is the number of bars a preview returns.
const DefaultPreviewRows = 5

// Previewer loads and summarises bars.
type Previewer interface {
	Preview(ctx context.Context, req app.Request, n int) (collector.Preview, error)
}

// BarsHandler serves bar previews.
type BarsHandler struct {
	bars Previewer
}

// NewBarsHandler creates a bars handler.
func NewBarsHandler(p Previewer) *BarsHandler {
	return &BarsHandler{bars: p}
}

// Preview handles GET /api/v1/bars?symbol=&interval=&start_date=&end_date=&source=&limit=.
func (h *BarsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := app.ParseDate(q.Get("start_date"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	end, err := app.ParseDate(q.Get("end_date"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	limit := DefaultPreviewRows
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			response.Fail(w, core.Errorf(core.ErrConfigInvalid, "limit must be a non-negative integer, got %q", s))
			return
		}
		limit = n
	}

	p, err := h.bars.Preview(r.Context(), app.Request{
		Source:   q.Get("source"),
		Symbol:   q.Get("symbol"),
		Interval: q.Get("interval"),
		Start:    start,
		End:      end,
	}, limit)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/httputil"
)

// ReportHandler serves seller reports.
type ReportHandler struct {
	service *service.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a new report HTTP handler.
func NewReportHandler(svc *service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logger:  logger,
	}
}

// ListingReport handles GET /api/v1/reports/listings?seller_id=&start_date=&end_date=
// Dates are calendar days (YYYY-MM-DD), both inclusive.
func (h *ReportHandler) ListingReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sellerID := q.Get("seller_id")
	if sellerID == "" {
		writeBadParam(w, r, "seller_id is required")
		return
	}

	rows, err := h.service.ListingReport(r.Context(), sellerID, q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: rows})
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// reportDateLayout is the calendar date format of report bounds.
const reportDateLayout = "2006-01-02"

// ReportService builds seller sales reports.
type ReportService struct {
	repo   repository.ReportRepository
	logger *slog.Logger
}

// NewReportService creates a new report service.
func NewReportService(repo repository.ReportRepository, logger *slog.Logger) *ReportService {
	return &ReportService{repo: repo, logger: logger}
}

// ListingReport returns per-listing sales of the seller's completed
// purchases between startDate and endDate, both whole days inclusive.
func (s *ReportService) ListingReport(ctx context.Context, sellerID, startDate, endDate string) ([]domain.ListingReport, error) {
	if sellerID == "" {
		return nil, apperrors.InvalidInput("seller id is required")
	}
	from, to, err := parseReportRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	sales, err := s.repo.ListingSales(ctx, sellerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}

	reports := make([]domain.ListingReport, len(sales))
	for i := range sales {
		reports[i] = domain.NewListingReport(sales[i])
	}

	s.logger.DebugContext(ctx, "listing report built",
		slog.String("seller_id", sellerID),
		slog.Int("rows", len(reports)),
	)
	return reports, nil
}

// parseReportRange turns two dates into [start 00:00, end 23:59:59.999] UTC.
func parseReportRange(startDate, endDate string) (time.Time, time.Time, error) {
	if startDate == "" || endDate == "" {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("start_date and end_date are required")
	}
	from, err := time.Parse(reportDateLayout, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput(fmt.Sprintf("invalid start_date %q, expected YYYY-MM-DD", startDate))
	}
	end, err := time.Parse(reportDateLayout, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput(fmt.Sprintf("invalid end_date %q, expected YYYY-MM-DD", endDate))
	}
	if end.Before(from) {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("end_date must not be before start_date")
	}
	return from, end.Add(24*time.Hour - time.Millisecond), nil
}

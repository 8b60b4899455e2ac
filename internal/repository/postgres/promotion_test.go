package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

var promotionCols = []string{
	"id", "template_id", "name", "seller_id", "discount_type", "value", "start_date", "end_date",
	"status", "created_at", "updated_at",
}

var templateCols = []string{"id", "name", "status", "created_at", "updated_at"}

func samplePromotion() domain.Promotion {
	return domain.Promotion{
		ID:           "promo-1",
		TemplateID:   "tpl-1",
		TemplateName: "Tet Sale",
		SellerID:     "seller-1",
		DiscountType: domain.DiscountTypePercent,
		Value:        decimal.NewFromInt(20),
		StartDate:    timePtr(now.Add(-24 * time.Hour)),
		EndDate:      timePtr(now.Add(24 * time.Hour)),
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func promotionRow(p domain.Promotion) []any {
	return []any{
		p.ID, p.TemplateID, p.TemplateName, p.SellerID, p.DiscountType, p.Value, p.StartDate, p.EndDate,
		p.Status, p.CreatedAt, p.UpdatedAt,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Templates
// ─────────────────────────────────────────────────────────────────────────────

func TestPromotionRepository_CreateTemplate_Duplicate(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	tpl := domain.PromotionTemplate{ID: "tpl-1", Name: "Tet Sale", Status: domain.StatusActive, CreatedAt: now, UpdatedAt: now}
	mock.ExpectExec("INSERT INTO promotion_templates").
		WithArgs(tpl.ID, tpl.Name, tpl.Status, tpl.CreatedAt, tpl.UpdatedAt).
		WillReturnError(errors.New("duplicate key (SQLSTATE 23505)"))

	err := repo.CreateTemplate(context.Background(), &tpl)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_GetTemplate_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM promotion_templates WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	tpl, err := repo.GetTemplate(context.Background(), "missing")
	assert.Nil(t, tpl)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_ListTemplates_ByStatus(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	cols := append(append([]string{}, templateCols...), "total_count")
	mock.ExpectQuery(`FROM promotion_templates WHERE status = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs(domain.StatusActive, 20, 0).
		WillReturnRows(pgxmock.NewRows(cols).AddRow("tpl-1", "Tet Sale", domain.StatusActive, now, now, 1))

	templates, total, err := repo.ListTemplates(context.Background(), strPtr(domain.StatusActive), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, templates, 1)
	assert.Equal(t, "Tet Sale", templates[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_DeleteTemplate_InUse(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	mock.ExpectExec("DELETE FROM promotion_templates").
		WithArgs("tpl-1").
		WillReturnError(errors.New("violates foreign key constraint (SQLSTATE 23503)"))

	err := repo.DeleteTemplate(context.Background(), "tpl-1")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─────────────────────────────────────────────────────────────────────────────
// Promotions
// ─────────────────────────────────────────────────────────────────────────────

func TestPromotionRepository_Create_Success(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	p := samplePromotion()
	mock.ExpectExec("INSERT INTO promotions").
		WithArgs(p.ID, p.TemplateID, p.SellerID, p.DiscountType, p.Value, p.StartDate, p.EndDate, p.Status,
			p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_Create_SellerAlreadyRunsTemplate(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	p := samplePromotion()
	mock.ExpectExec("INSERT INTO promotions").
		WithArgs(anyArgs(10)...).
		WillReturnError(errors.New("duplicate key (SQLSTATE 23505)"))

	assert.ErrorIs(t, repo.Create(context.Background(), &p), apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	p := samplePromotion()
	mock.ExpectQuery(`FROM promotions p JOIN promotion_templates t ON t.id = p.template_id WHERE p.id = \$1`).
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(promotionCols).AddRow(promotionRow(p)...))

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tet Sale", got.TemplateName)
	assert.True(t, got.Value.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, p.EndDate, got.EndDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_List_BySeller(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	p := samplePromotion()
	cols := append(append([]string{}, promotionCols...), "total_count")
	mock.ExpectQuery(`WHERE p.seller_id = \$1 AND p.status = \$2 ORDER BY p.created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("seller-1", domain.StatusActive, 20, 0).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(append(promotionRow(p), 1)...))

	promotions, total, err := repo.List(context.Background(), repository.PromotionFilter{
		SellerID: strPtr("seller-1"),
		Status:   strPtr(domain.StatusActive),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, promotions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_SetStatus_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	mock.ExpectExec("UPDATE promotions SET status").
		WithArgs(domain.StatusInactive, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, repo.SetStatus(context.Background(), "missing", domain.StatusInactive), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_ExpireActive(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	ids := []string{"promo-1", "promo-2"}
	mock.ExpectQuery(`UPDATE promotions SET status = 'inactive', updated_at = \$2 WHERE id = ANY\(\$1\) AND status = 'active' AND end_date < \$2 RETURNING id`).
		WithArgs(ids, now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("promo-1"))

	changed, err := repo.ExpireActive(context.Background(), ids, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"promo-1"}, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_ExpireActive_Repeat(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	mock.ExpectQuery("UPDATE promotions SET status = 'inactive'").
		WithArgs([]string{"promo-1"}, now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	changed, err := repo.ExpireActive(context.Background(), []string{"promo-1"}, now)
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_ExpireActive_NoIDs(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	changed, err := repo.ExpireActive(context.Background(), nil, now)
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_SweepExpired(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	mock.ExpectQuery(`WHERE status = 'active' AND end_date < \$1 RETURNING id`).
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("promo-1").AddRow("promo-3"))

	changed, err := repo.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"promo-1", "promo-3"}, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─────────────────────────────────────────────────────────────────────────────
// Assignments
// ─────────────────────────────────────────────────────────────────────────────

func TestPromotionRepository_Assign_SkipsExisting(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	ids := []string{"listing-1", "listing-2", "unknown"}
	mock.ExpectExec(`INSERT INTO promotion_assignments .+ JOIN listings l ON l.seller_id = p.seller_id .+ ON CONFLICT \(promotion_id, listing_id\) DO NOTHING`).
		WithArgs("promo-1", ids, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := repo.Assign(context.Background(), "promo-1", ids)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_Unassign(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	mock.ExpectExec("DELETE FROM promotion_assignments").
		WithArgs("promo-1", []string{"listing-1"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	n, err := repo.Unassign(context.Background(), "promo-1", []string{"listing-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_ListAssigned(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	cols := []string{
		"id", "promotion_id", "listing_id", "custom_value", "custom_start_date", "custom_end_date",
		"created_at", "updated_at", "name", "brand", "image_url", "retail_price", "stock",
	}
	custom := decimal.NewFromInt(15)
	mock.ExpectQuery("FROM promotion_assignments a .+ WHERE a.promotion_id = \\$1").
		WithArgs("promo-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"asg-1", "promo-1", "listing-1", &custom, (*time.Time)(nil), timePtr(now),
			now, now, "Panadol Extra", "GSK", "", decimal.NewFromInt(100), 4,
		))

	assigned, err := repo.ListAssigned(context.Background(), "promo-1")
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "Panadol Extra", assigned[0].Name)
	require.NotNil(t, assigned[0].Assignment.CustomValue)
	assert.True(t, assigned[0].Assignment.CustomValue.Equal(custom))
	assert.Nil(t, assigned[0].Assignment.CustomStartDate)
	assert.Equal(t, 4, assigned[0].Stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_SetOverride(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	value := decimal.NewFromInt(5)
	o := repository.Override{Value: &value, EndDate: timePtr(now)}
	mock.ExpectExec("UPDATE promotion_assignments SET custom_value").
		WithArgs(o.Value, o.StartDate, o.EndDate, pgxmock.AnyArg(), "promo-1", "listing-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetOverride(context.Background(), "promo-1", "listing-1", o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_SetOverride_NotAssigned(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	mock.ExpectExec("UPDATE promotion_assignments").
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SetOverride(context.Background(), "promo-1", "listing-9", repository.Override{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_Available(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewPromotionRepository(mock)

	p := samplePromotion()
	cols := append(append([]string{}, promotionCols...), "listing_ids")
	mock.ExpectQuery(`array_agg\(a.listing_id::text .+ WHERE p.status = 'active'\s+AND \(p.start_date IS NULL`).
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(append(promotionRow(p), []string{"listing-1", "listing-2"})...))

	available, err := repo.Available(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Tet Sale", available[0].TemplateName)
	assert.Equal(t, []string{"listing-1", "listing-2"}, available[0].ListingIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

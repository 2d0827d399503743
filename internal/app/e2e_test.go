//go:build e2e

package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/godilite/feedback-server/internal/feedback"
	handler "github.com/godilite/feedback-server/internal/grpc"
	"github.com/godilite/feedback-server/internal/repository"
	"github.com/godilite/feedback-server/internal/service"
	"github.com/godilite/feedback-server/internal/service/mocks"
	"github.com/godilite/feedback-server/internal/web"
	dbbuilder "github.com/godilite/feedback-server/pkg/database"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

var testNow = time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)

type stack struct {
	repo    *repository.FeedbackSQLRepository
	cache   *mocks.MockCacher
	reports *service.ReportService
	intake  *service.IntakeService
}

func setupStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	db, err := dbbuilder.New(ctx, dbbuilder.WithDriver("sqlite3"), dbbuilder.WithDataSource(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewFeedbackSQLRepository(db)
	require.NoError(t, repo.EnsureSchema(ctx))

	seed := []struct {
		ts, dept, rating string
	}{
		{"2025-01-01 09:00:00", "Cardiology", "😀 Excellent (5)"},
		{"2025-01-01 10:30:00", "Cardiology", "🙂 Good (4)"},
		{"2025-01-01 11:00:00", "Radiology", "garbled"},
		{"2024-12-01 12:00:00", "Orthopedics", "😡 Very Poor (1)"},
		{"not a date", "Orthopedics", "😐 Average (3)"},
	}
	for _, s := range seed {
		rec := feedback.Record{Timestamp: s.ts, Department: s.dept}
		for i := range rec.Ratings {
			rec.Ratings[i] = s.rating
		}
		require.NoError(t, repo.AppendRow(ctx, feedback.OPD, rec))
	}

	logger := zap.NewNop()
	cache := &mocks.MockCacher{}
	return &stack{
		repo:    repo,
		cache:   cache,
		reports: service.NewReportService(repo, logger, service.WithLocation(time.UTC), service.WithReportCache(cache, time.Minute)),
		intake: service.NewIntakeService(repo, nil, logger,
			service.WithIntakeLocation(time.UTC),
			service.WithClock(func() time.Time { return testNow }),
			service.WithReportInvalidation(cache)),
	}
}

func TestE2E_GetReport(t *testing.T) {
	st := setupStack(t)
	h := handler.NewGRPCHandlers(st.reports, st.intake, zap.NewNop())

	req, err := structpb.NewStruct(map[string]any{"type": "OPD", "start": "2025-01-01", "end": "2025-01-01"})
	require.NoError(t, err)

	resp, err := h.GetReport(context.Background(), req)
	require.NoError(t, err)

	m := resp.AsMap()
	assert.Equal(t, "ok", m["status"])
	assert.Equal(t, float64(3), m["total"])
	assert.Equal(t, float64(1), m["undated"])

	questions := m["questions"].([]any)
	require.Len(t, questions, feedback.QuestionCount)
	for _, q := range questions {
		assert.Equal(t, 4.5, q.(map[string]any)["mean"])
	}

	assert.Contains(t, st.cache.Keys(), "report:OPD:2025-01-01:2025-01-01")
}

func TestE2E_SubmitThenExport(t *testing.T) {
	st := setupStack(t)
	h := handler.NewGRPCHandlers(st.reports, st.intake, zap.NewNop())

	req, err := structpb.NewStruct(map[string]any{
		"type":             "IPD",
		"department":       "Other",
		"other_department": "Dermatology",
		"ratings":          []any{"🙂 Good (4)", "🙂 Good (4)", "🙂 Good (4)", "🙂 Good (4)", "🙂 Good (4)"},
	})
	require.NoError(t, err)

	resp, err := h.SubmitFeedback(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Dermatology", resp.AsMap()["department"])
	assert.Equal(t, "2025-01-01 15:00:00", resp.AsMap()["timestamp"])

	srv := web.NewServer(st.reports, st.intake, zap.NewNop(), web.WithClock(func() time.Time { return testNow }))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/export?type=IPD", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="IPD_Report.xlsx"`, rr.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, rr.Body.Bytes())
}

func TestE2E_PreviousPeriod(t *testing.T) {
	st := setupStack(t)

	report, err := st.reports.BuildReport(context.Background(), feedback.OPD,
		time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, service.StatusOK, report.Status)
	assert.Equal(t, 1, report.Total)
	require.NotNil(t, report.Questions[0].Mean)
	assert.Equal(t, 1.0, *report.Questions[0].Mean)
	assert.Equal(t, []service.DepartmentCount{{Department: "Orthopedics", Count: 1}}, report.Departments)
}

func TestE2E_SubmitRefreshesCachedReport(t *testing.T) {
	st := setupStack(t)
	ctx := context.Background()

	before, err := st.reports.BuildReport(ctx, feedback.OPD, testNow, testNow)
	require.NoError(t, err)
	require.Equal(t, 3, before.Total)
	require.Contains(t, st.cache.Keys(), "report:OPD:2025-01-01:2025-01-01")

	_, err = st.intake.Submit(ctx, service.Submission{
		Category:   "OPD",
		Department: "Cardiology",
		Ratings:    []string{"😀 Excellent (5)", "😀 Excellent (5)", "😀 Excellent (5)", "😀 Excellent (5)", "😀 Excellent (5)"},
	})
	require.NoError(t, err)
	assert.NotContains(t, st.cache.Keys(), "report:OPD:2025-01-01:2025-01-01")

	after, err := st.reports.BuildReport(ctx, feedback.OPD, testNow, testNow)
	require.NoError(t, err)
	assert.Equal(t, 4, after.Total)
}

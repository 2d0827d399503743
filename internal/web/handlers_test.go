package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/godilite/feedback-server/internal/repository"
	"github.com/godilite/feedback-server/internal/service"
	"github.com/godilite/feedback-server/internal/service/mocks"
	"github.com/godilite/feedback-server/internal/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type testEnv struct {
	repo    *repository.MemoryRepository
	handler http.Handler
}

func newEnv(t *testing.T, opts ...web.Option) *testEnv {
	t.Helper()
	repo := repository.NewMemoryRepository()
	return &testEnv{repo: repo, handler: newHandler(repo, opts...)}
}

func newHandler(store service.FeedbackStore, opts ...web.Option) http.Handler {
	logger := zap.NewNop()
	reports := service.NewReportService(store, logger, service.WithLocation(time.UTC))
	intake := service.NewIntakeService(store, nil, logger,
		service.WithIntakeLocation(time.UTC), service.WithClock(clock))
	opts = append([]web.Option{web.WithClock(clock)}, opts...)
	return web.NewServer(reports, intake, logger, opts...).Handler()
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) seed(t *testing.T, category feedback.Category, ts, dept, rating, review string) {
	t.Helper()
	rec := feedback.Record{Timestamp: ts, Department: dept, Review: review}
	for i := range rec.Ratings {
		rec.Ratings[i] = rating
	}
	require.NoError(t, e.repo.AppendRow(context.Background(), category, rec))
}

func validForm(category string) url.Values {
	form := url.Values{
		"type":       {category},
		"department": {"Cardiology"},
		"review":     {"Helpful staff"},
	}
	for i := 1; i <= feedback.QuestionCount; i++ {
		form.Set("rating_"+strconv.Itoa(i), feedback.RatingGood.Label())
	}
	return form
}

func postForm(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func getJSON(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Accept", "application/json")
	return req
}

func decodeReport(t *testing.T, rr *httptest.ResponseRecorder) service.Report {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var report service.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	return report
}

func TestHealthAndRedirect(t *testing.T) {
	env := newEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/feedback", rr.Header().Get("Location"))
}

func TestFeedbackForm(t *testing.T) {
	env := newEnv(t)

	t.Run("defaults to OPD", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/feedback", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "How was the behavior of the front office staff?")
		assert.Contains(t, rr.Body.String(), `name="rating_5"`)
		assert.NotContains(t, rr.Body.String(), " checked")
	})

	t.Run("IPD questions", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/feedback?type=ipd", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "How was the discharge and billing process?")
		assert.Contains(t, rr.Body.String(), "Paediatrics")
	})

	t.Run("unknown type", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/feedback?type=ER", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSubmitForm(t *testing.T) {
	t.Run("stores record and thanks the patient", func(t *testing.T) {
		env := newEnv(t)

		rr := env.do(postForm(validForm("OPD")))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Thank you for your feedback!")

		records, err := env.repo.ReadAll(context.Background(), feedback.OPD)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "2024-01-10 12:00:00", records[0].Timestamp)
		assert.Equal(t, "Cardiology", records[0].Department)
		assert.Equal(t, feedback.RatingGood.Label(), records[0].Ratings[4])
	})

	t.Run("other department override", func(t *testing.T) {
		env := newEnv(t)
		form := validForm("IPD")
		form.Set("department", feedback.OtherDepartment)
		form.Set("other_department", "Dermatology")

		rr := env.do(postForm(form))
		require.Equal(t, http.StatusOK, rr.Code)

		records, _ := env.repo.ReadAll(context.Background(), feedback.IPD)
		require.Len(t, records, 1)
		assert.Equal(t, "Dermatology", records[0].Department)
	})

	t.Run("missing rating re-renders form", func(t *testing.T) {
		env := newEnv(t)
		form := validForm("OPD")
		form.Del("rating_3")

		rr := env.do(postForm(form))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "answer all five questions")
		assert.Contains(t, rr.Body.String(), "Helpful staff")

		body := rr.Body.String()
		good := feedback.RatingGood.Label()
		assert.Equal(t, feedback.QuestionCount-1, strings.Count(body, " checked"))
		assert.Contains(t, body, `name="rating_1" value="`+good+`" checked`)
		assert.Contains(t, body, `name="rating_5" value="`+good+`" checked`)
		assert.NotContains(t, body, `name="rating_3" value="`+good+`" checked`)

		records, _ := env.repo.ReadAll(context.Background(), feedback.OPD)
		assert.Empty(t, records)
	})

	t.Run("store failure", func(t *testing.T) {
		store := &mocks.MockFeedbackStore{
			AppendRowFunc: func(ctx context.Context, category feedback.Category, record feedback.Record) error {
				return errors.New("403 permission denied")
			},
		}
		rr := httptest.NewRecorder()
		newHandler(store).ServeHTTP(rr, postForm(validForm("OPD")))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "try again")
	})
}

func TestSubmitJSON(t *testing.T) {
	env := newEnv(t)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return env.do(req)
	}

	t.Run("created", func(t *testing.T) {
		rr := post(`{"type":"IPD","department":"Radiology","ratings":["😀 Excellent (5)","🙂 Good (4)","😐 Average (3)","😟 Poor (2)","😡 Very Poor (1)"]}`)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var rec feedback.Record
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "Radiology", rec.Department)
	})

	t.Run("validation error", func(t *testing.T) {
		rr := post(`{"type":"IPD","department":"","ratings":[]}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid submission")
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := post(`{"type":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestReportJSON(t *testing.T) {
	env := newEnv(t)

	t.Run("no data", func(t *testing.T) {
		report := decodeReport(t, env.do(getJSON("/reports?type=OPD")))
		assert.Equal(t, service.StatusNoData, report.Status)
		assert.Equal(t, "2023-12-11", report.Start)
		assert.Equal(t, "2024-01-10", report.End)
	})

	env.seed(t, feedback.OPD, "2024-01-01 09:00:00", "Cardiology", "😀 Excellent (5)", "Great care")
	env.seed(t, feedback.OPD, "2024-01-02 10:00:00", "Radiology", "😡 Very Poor (1)", "")

	t.Run("filters inclusive range", func(t *testing.T) {
		report := decodeReport(t, env.do(getJSON("/reports?type=OPD&start=2024-01-01&end=2024-01-01")))
		assert.Equal(t, service.StatusOK, report.Status)
		assert.Equal(t, 1, report.Total)
		require.Len(t, report.Questions, feedback.QuestionCount)
		require.NotNil(t, report.Questions[0].Mean)
		assert.Equal(t, 5.0, *report.Questions[0].Mean)
		assert.Equal(t, []string{"Great care"}, report.Comments)
	})

	t.Run("format query forces json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports?type=OPD&start=2024-01-01&end=2024-01-02&format=json", nil)
		report := decodeReport(t, env.do(req))
		assert.Equal(t, 2, report.Total)
	})

	t.Run("reversed range is empty", func(t *testing.T) {
		report := decodeReport(t, env.do(getJSON("/reports?type=OPD&start=2024-01-02&end=2024-01-01")))
		assert.Equal(t, service.StatusNoFeedbackInRange, report.Status)
	})

	t.Run("bad date", func(t *testing.T) {
		rr := env.do(getJSON("/reports?type=OPD&start=yesterday"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid start date")
	})

	t.Run("bad type", func(t *testing.T) {
		rr := env.do(getJSON("/reports?type=ER"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestReportJSON_StoreFailure(t *testing.T) {
	store := &mocks.MockFeedbackStore{
		ReadAllFunc: func(ctx context.Context, category feedback.Category) ([]feedback.Record, error) {
			return nil, errors.New("spreadsheet not found")
		},
	}
	rr := httptest.NewRecorder()
	newHandler(store).ServeHTTP(rr, getJSON("/reports?type=IPD"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestReportHTML(t *testing.T) {
	env := newEnv(t)
	env.seed(t, feedback.IPD, "2024-01-05 09:00:00", "Cardiology", "🙂 Good (4)", "**Clean** rooms <script>alert(1)</script>")
	env.seed(t, feedback.IPD, "2024-01-05 11:00:00", "Cardiology", "😐 Average (3)", "")
	env.seed(t, feedback.IPD, "2024-01-06 11:00:00", "Orthopedics", "garbled", "")

	rr := env.do(httptest.NewRequest(http.MethodGet, "/reports?type=IPD&start=2024-01-01&end=2024-01-10", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()

	assert.Contains(t, body, "IPD Feedback Report")
	assert.Contains(t, body, "Total responses: <strong>3</strong>")
	assert.Contains(t, body, "<strong>Clean</strong>")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "3.50")
	assert.Contains(t, body, "width: 100%")
	assert.Contains(t, body, "width: 50%")
	assert.Contains(t, body, "/reports/export?type=IPD")
}

func TestReportHTML_EmptyState(t *testing.T) {
	env := newEnv(t)
	rr := env.do(httptest.NewRequest(http.MethodGet, "/reports?type=OPD", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No feedback data available yet.")
}

func TestExport(t *testing.T) {
	env := newEnv(t)

	t.Run("nothing to export", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/reports/export?type=OPD", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	env.seed(t, feedback.OPD, "2024-01-03 08:15:00", "Urology Care", "😀 Excellent (5)", "Fine")

	t.Run("xlsx attachment", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/reports/export?type=OPD&start=2024-01-01&end=2024-01-10", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, service.ExportContentType, rr.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="OPD_Report.xlsx"`, rr.Header().Get("Content-Disposition"))

		f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("OPD")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, feedback.Header(feedback.OPD)[:3], rows[0][:3])
		assert.Equal(t, "2024-01-03 08:15:00", rows[1][0])
		assert.Equal(t, "Urology Care", rows[1][2])
	})

	t.Run("bad date", func(t *testing.T) {
		rr := env.do(httptest.NewRequest(http.MethodGet, "/reports/export?type=OPD&end=31-01-2024", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSubmitThenReport(t *testing.T) {
	env := newEnv(t)

	for _, dept := range []string{"Cardiology", "Cardiology", "Radiology"} {
		form := validForm("OPD")
		form.Set("department", dept)
		require.Equal(t, http.StatusOK, env.do(postForm(form)).Code)
	}

	report := decodeReport(t, env.do(getJSON("/reports?type=OPD")))
	assert.Equal(t, service.StatusOK, report.Status)
	assert.Equal(t, 3, report.Total)
	require.NotEmpty(t, report.Departments)
	assert.Equal(t, service.DepartmentCount{Department: "Cardiology", Count: 2}, report.Departments[0])
	assert.Equal(t, []string{"Helpful staff", "Helpful staff", "Helpful staff"}, report.Comments)

	ipd := decodeReport(t, env.do(getJSON("/reports?type=IPD")))
	assert.Equal(t, service.StatusNoData, ipd.Status)
}

func TestCSRFProtection(t *testing.T) {
	env := newEnv(t, web.WithCSRF([]byte("0123456789abcdef0123456789abcdef"), false))

	rr := env.do(httptest.NewRequest(http.MethodGet, "/feedback", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="gorilla.csrf.Token"`)

	rr = env.do(postForm(validForm("OPD")))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	records, _ := env.repo.ReadAll(context.Background(), feedback.OPD)
	assert.Empty(t, records)

	// Health stays outside the protected group.
	rr = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

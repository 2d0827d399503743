package repository_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/godilite/feedback-server/internal/repository"
)

// fakeSheets serves the three Values endpoints the repository calls.
type fakeSheets struct {
	mu     sync.Mutex
	sheets map[string][][]interface{}
	fail   bool
}

func (f *fakeSheets) sheetOf(path string) string {
	i := strings.Index(path, "/values/")
	rng := path[i+len("/values/"):]
	rng = strings.TrimSuffix(rng, ":append")
	if j := strings.Index(rng, "!"); j >= 0 {
		rng = rng[:j]
	}
	return strings.Trim(rng, "'")
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		http.Error(w, `{"error":{"code":403,"message":"permission denied"}}`, http.StatusForbidden)
		return
	}

	name := f.sheetOf(r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		if r.URL.Query().Get("valueInputOption") != "RAW" {
			http.Error(w, "expected RAW input", http.StatusBadRequest)
			return
		}
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.sheets[name] = append(f.sheets[name], vr.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-id"})

	case r.Method == http.MethodPut:
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.sheets[name] = append(vr.Values, f.sheets[name]...)
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-id"})

	case r.Method == http.MethodGet:
		values := f.sheets[name]
		if strings.HasSuffix(r.URL.Path, "!1:1") && len(values) > 0 {
			values = values[:1]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": name, "values": values})

	default:
		http.NotFound(w, r)
	}
}

func newSheetsRepo(t *testing.T, fake *fakeSheets) *repository.SheetsRepository {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	srv, err := repository.NewSheetsService(context.Background(), "",
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	return repository.NewSheetsRepository(srv, "sheet-id", nil)
}

func TestSheetsRepository(t *testing.T) {
	ctx := context.Background()
	fake := &fakeSheets{sheets: map[string][][]interface{}{}}
	repo := newSheetsRepo(t, fake)

	t.Run("EnsureSchema writes headers once", func(t *testing.T) {
		require.NoError(t, repo.EnsureSchema(ctx))
		require.NoError(t, repo.EnsureSchema(ctx))

		require.Len(t, fake.sheets[repository.DefaultOPDWorksheet], 1)
		assert.Equal(t, "Timestamp", fake.sheets[repository.DefaultOPDWorksheet][0][0])
		assert.Equal(t, feedback.IPD.Questions()[0], fake.sheets[repository.DefaultIPDWorksheet][0][3])
	})

	t.Run("empty worksheet reads as no rows", func(t *testing.T) {
		rows, err := repo.ReadAll(ctx, feedback.OPD)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("append then read", func(t *testing.T) {
		rec := sampleRecord("2024-01-01 10:00:00", "Orthopedics", feedback.RatingAverage)
		require.NoError(t, repo.AppendRow(ctx, feedback.OPD, rec))

		rows, err := repo.ReadAll(ctx, feedback.OPD)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, rec, rows[0])
	})

	t.Run("ragged and blank rows", func(t *testing.T) {
		fake.mu.Lock()
		fake.sheets[repository.DefaultIPDWorksheet] = append(fake.sheets[repository.DefaultIPDWorksheet],
			[]interface{}{"2024-01-03 09:00:00", "", "Radiology", "🙂 Good (4)"},
			[]interface{}{"", "", ""},
		)
		fake.mu.Unlock()

		rows, err := repo.ReadAll(ctx, feedback.IPD)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Radiology", rows[0].Department)
		assert.Equal(t, "", rows[0].Ratings[4])
		assert.Equal(t, "", rows[0].Review)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := repo.ReadAll(ctx, feedback.Category("ER"))
		assert.ErrorIs(t, err, feedback.ErrUnknownCategory)
	})
}

func TestSheetsRepository_APIError(t *testing.T) {
	repo := newSheetsRepo(t, &fakeSheets{sheets: map[string][][]interface{}{}, fail: true})

	_, err := repo.ReadAll(context.Background(), feedback.OPD)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPD_Feedback")

	err = repo.AppendRow(context.Background(), feedback.IPD, sampleRecord("2024-01-01 10:00:00", "ICU & Critical Care", feedback.RatingGood))
	assert.Error(t, err)
}

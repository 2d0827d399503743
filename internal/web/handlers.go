package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/godilite/feedback-server/internal/service"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

const maxFormBytes = 64 << 10

type formPage struct {
	Category    feedback.Category
	Questions   []string
	Ratings     []feedback.Rating
	Departments []string
	Values      service.Submission
	Error       string
	CSRFField   template.HTML
}

type thanksPage struct {
	Category feedback.Category
	Record   feedback.Record
}

type reportPage struct {
	Report        service.Report
	MaxDepartment int
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCSRFFailure(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn("csrf validation failed",
		zap.String("path", r.URL.Path),
		zap.Error(csrf.FailureReason(r)))
	http.Error(w, "forbidden: invalid CSRF token", http.StatusForbidden)
}

func (s *Server) newFormPage(r *http.Request, category feedback.Category, values service.Submission, errMsg string) formPage {
	return formPage{
		Category:    category,
		Questions:   category.Questions(),
		Ratings:     feedback.Ratings,
		Departments: feedback.Departments,
		Values:      values,
		Error:       errMsg,
		CSRFField:   csrf.TemplateField(r),
	}
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	category := feedback.OPD
	if t := r.URL.Query().Get("type"); t != "" {
		c, err := feedback.ParseCategory(t)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		category = c
	}
	s.renderHTML(w, s.pages.form, http.StatusOK, s.newFormPage(r, category, service.Submission{}, ""))
}

// submissionFromForm reads rating_1..rating_5; missing ratings stay blank so
// validation reports them.
func submissionFromForm(r *http.Request) service.Submission {
	sub := service.Submission{
		Category:        r.PostFormValue("type"),
		PatientName:     r.PostFormValue("patient_name"),
		Department:      r.PostFormValue("department"),
		OtherDepartment: r.PostFormValue("other_department"),
		Review:          r.PostFormValue("review"),
		Ratings:         make([]string, feedback.QuestionCount),
	}
	for i := range sub.Ratings {
		sub.Ratings[i] = r.PostFormValue("rating_" + strconv.Itoa(i+1))
	}
	return sub
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	jsonBody := isJSONBody(r)

	var sub service.Submission
	if jsonBody {
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}
		sub = submissionFromForm(r)
	}

	rec, err := s.intake.Submit(r.Context(), sub)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "internal server error"
		switch {
		case errors.Is(err, service.ErrInvalidSubmission):
			status, msg = http.StatusBadRequest, "Please choose a department and answer all five questions."
		case errors.Is(err, service.ErrStorageFailure):
			status, msg = http.StatusServiceUnavailable, "Could not save your feedback right now. Please try again."
		}
		if status != http.StatusBadRequest {
			s.logger.Error("submit failed", zap.Error(err))
		}

		if jsonBody {
			if status == http.StatusBadRequest {
				msg = err.Error()
			}
			s.writeJSON(w, status, errorResponse{Error: msg})
			return
		}

		category, cerr := feedback.ParseCategory(sub.Category)
		if cerr != nil {
			http.Error(w, cerr.Error(), http.StatusBadRequest)
			return
		}
		s.renderHTML(w, s.pages.form, status, s.newFormPage(r, category, sub, msg))
		return
	}

	if jsonBody {
		s.writeJSON(w, http.StatusCreated, rec)
		return
	}
	category, _ := feedback.ParseCategory(sub.Category)
	s.renderHTML(w, s.pages.thanks, http.StatusOK, thanksPage{Category: category, Record: rec})
}

// reportParams reads type, start and end. end defaults to today in the report
// time zone and start to 30 days before end.
func (s *Server) reportParams(r *http.Request) (feedback.Category, time.Time, time.Time, error) {
	q := r.URL.Query()

	category := feedback.OPD
	if t := q.Get("type"); t != "" {
		c, err := feedback.ParseCategory(t)
		if err != nil {
			return "", time.Time{}, time.Time{}, err
		}
		category = c
	}

	end := feedback.Day(s.now().In(s.reports.Location()))
	if v := q.Get("end"); v != "" {
		d, err := feedback.ParseDay(v)
		if err != nil {
			return "", time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", v)
		}
		end = d
	}

	start := end.AddDate(0, 0, -defaultReportDays)
	if v := q.Get("start"); v != "" {
		d, err := feedback.ParseDay(v)
		if err != nil {
			return "", time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", v)
		}
		start = d
	}

	return category, start, end, nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	asJSON := wantsJSON(r)

	category, start, end, err := s.reportParams(r)
	if err != nil {
		s.writeError(w, asJSON, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.reports.BuildReport(r.Context(), category, start, end)
	if err != nil {
		s.writeServiceError(w, asJSON, "build report", err)
		return
	}

	if asJSON {
		s.writeJSON(w, http.StatusOK, report)
		return
	}

	maxDept := 0
	for _, d := range report.Departments {
		if d.Count > maxDept {
			maxDept = d.Count
		}
	}
	s.renderHTML(w, s.pages.report, http.StatusOK, reportPage{Report: report, MaxDepartment: maxDept})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	category, start, end, err := s.reportParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, err := s.reports.Export(r.Context(), category, start, end)
	if err != nil {
		if errors.Is(err, service.ErrNothingToExport) {
			http.Error(w, "no feedback to export for this range", http.StatusNotFound)
			return
		}
		s.writeServiceError(w, false, "export report", err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

func (s *Server) writeError(w http.ResponseWriter, asJSON bool, status int, msg string) {
	if asJSON {
		s.writeJSON(w, status, errorResponse{Error: msg})
		return
	}
	http.Error(w, msg, status)
}

func (s *Server) writeServiceError(w http.ResponseWriter, asJSON bool, op string, err error) {
	switch {
	case errors.Is(err, feedback.ErrUnknownCategory):
		s.writeError(w, asJSON, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStorageFailure):
		s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		s.writeError(w, asJSON, http.StatusServiceUnavailable, "feedback store unavailable")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		s.writeError(w, asJSON, http.StatusInternalServerError, "internal server error")
	}
}

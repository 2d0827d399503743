package service

import (
	"github.com/godilite/feedback-server/internal/feedback"
)

type ReportStatus string

const (
	StatusOK                ReportStatus = "ok"
	StatusNoData            ReportStatus = "no_data"
	StatusNoFeedbackInRange ReportStatus = "no_feedback_in_range"
)

type DepartmentCount struct {
	Department string `json:"department"`
	Count      int    `json:"count"`
}

// QuestionAverage is the mean rating for one question. Mean is nil when no
// response in the column carried a readable rating.
type QuestionAverage struct {
	Question  string   `json:"question"`
	Mean      *float64 `json:"mean"`
	Responses int      `json:"responses"`
}

func (q QuestionAverage) Defined() bool {
	return q.Mean != nil
}

type Summary struct {
	Total       int               `json:"total"`
	Departments []DepartmentCount `json:"departments"`
	Questions   []QuestionAverage `json:"questions"`
	Comments    []string          `json:"comments"`
}

type Report struct {
	Category feedback.Category `json:"category"`
	Start    string            `json:"start"`
	End      string            `json:"end"`
	Status   ReportStatus      `json:"status"`
	// Undated counts rows dropped because their timestamp could not be read.
	Undated int `json:"undated"`
	Summary
	Records []feedback.Record `json:"records"`
}

// Message is the informational text shown for the empty states.
func (r Report) Message() string {
	switch r.Status {
	case StatusNoData:
		return "No feedback data available yet."
	case StatusNoFeedbackInRange:
		return "No feedback found for this date range."
	}
	return ""
}

type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Submission is the raw form input for one feedback record.
type Submission struct {
	Category        string   `json:"type" validate:"required,category"`
	PatientName     string   `json:"patient_name" validate:"max=32767"`
	Department      string   `json:"department" validate:"required,max=32767"`
	OtherDepartment string   `json:"other_department" validate:"max=32767"`
	Ratings         []string `json:"ratings" validate:"len=5,dive,required,rating"`
	Review          string   `json:"review" validate:"max=32767"`
}

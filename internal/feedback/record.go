package feedback

import (
	"errors"
	"strings"
	"time"
)

// TimestampLayout is how submission times are written to the store.
const TimestampLayout = "2006-01-02 15:04:05"

// ColumnCount is the width of a stored row.
const ColumnCount = 3 + QuestionCount + 1

var ErrMissingTimestamp = errors.New("missing timestamp")

var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// Record is one submitted feedback row.
type Record struct {
	ID          string                `json:"id,omitempty"`
	Timestamp   string                `json:"timestamp"`
	PatientName string                `json:"patient_name"`
	Department  string                `json:"department"`
	Ratings     [QuestionCount]string `json:"ratings"`
	Review      string                `json:"review"`
}

// Header returns the column names for the category's table and export.
func Header(c Category) []string {
	h := make([]string, 0, ColumnCount)
	h = append(h, "Timestamp", "Patient Name", "Department")
	h = append(h, c.Questions()...)
	h = append(h, "Review")
	return h
}

// Row flattens the record into the stored column order.
func (r Record) Row() []string {
	row := make([]string, 0, ColumnCount)
	row = append(row, r.Timestamp, r.PatientName, r.Department)
	row = append(row, r.Ratings[:]...)
	row = append(row, r.Review)
	return row
}

// RecordFromRow is the inverse of Row. Short rows are padded with blanks,
// extra cells are ignored.
func RecordFromRow(row []string) Record {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	r := Record{
		Timestamp:   cell(0),
		PatientName: cell(1),
		Department:  cell(2),
		Review:      cell(3 + QuestionCount),
	}
	for i := range r.Ratings {
		r.Ratings[i] = cell(3 + i)
	}
	return r
}

// Rating returns the typed value of question i, or false if the stored
// label is blank or malformed.
func (r Record) Rating(i int) (Rating, bool) {
	if i < 0 || i >= QuestionCount {
		return 0, false
	}
	return ParseRating(r.Ratings[i])
}

// Time parses the stored timestamp in loc.
func (r Record) Time(loc *time.Location) (time.Time, error) {
	return ParseTimestamp(r.Timestamp, loc)
}

// ParseTimestamp accepts the write layout plus a few layouts that hand-edited
// sheets tend to contain.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	if loc == nil {
		loc = time.Local
	}
	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// Day truncates t to its calendar date, keeping the wall-clock date in t's
// own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

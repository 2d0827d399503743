package feedback

import (
	"errors"
	"fmt"
	"strings"
)

// QuestionCount is the number of rated questions asked for every category.
const QuestionCount = 5

// OtherDepartment is the department choice that enables free-text override.
const OtherDepartment = "Other"

var ErrUnknownCategory = errors.New("unknown feedback category")

// Category selects the question set and the table a record is stored in.
type Category string

const (
	OPD Category = "OPD"
	IPD Category = "IPD"
)

// Categories lists every category in display order.
var Categories = []Category{OPD, IPD}

var questions = map[Category][QuestionCount]string{
	OPD: {
		"How satisfied are you with the doctor’s consultation?",
		"How was the behavior of the front office staff?",
		"How would you rate the waiting time for consultation?",
		"How clear was the information about diagnosis/treatment?",
		"How likely are you to recommend our hospital?",
	},
	IPD: {
		"How satisfied are you with the doctor’s treatment and daily rounds?",
		"How would you rate the nursing staff’s care?",
		"How was the cleanliness and comfort of your ward/room?",
		"How satisfied are you with food/pharmacy/diagnostic services?",
		"How was the discharge and billing process?",
	},
}

// Departments is the fixed department list offered on the form.
var Departments = []string{
	"General Medicine",
	"ICU & Critical Care",
	"Orthopedics",
	"Cardiology",
	"Urology Care",
	"Nephrology & Dialysis",
	"Neurology Care",
	"Radiology",
	"Anesthesiology",
	"Medical Oncology",
	"Gastroenterology",
	"Endocrinology",
	"Obstetrics and Gynecology",
	"Laparoscopic, Bariatric & General Surgery",
	"Paediatrics",
	"Mother & Child Care",
	OtherDepartment,
}

// ParseCategory accepts "opd"/"ipd" in any case.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToUpper(strings.TrimSpace(s))) {
	case OPD:
		return OPD, nil
	case IPD:
		return IPD, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) Valid() bool {
	_, ok := questions[c]
	return ok
}

// Questions returns the category's question texts in column order.
func (c Category) Questions() []string {
	q, ok := questions[c]
	if !ok {
		return nil
	}
	return q[:]
}

// Table is the store-side name used by SQL and Mongo backends.
func (c Category) Table() string {
	return strings.ToLower(string(c)) + "_feedback"
}

// Title is the human label shown in the UI.
func (c Category) Title() string {
	switch c {
	case OPD:
		return "OPD (Outpatient)"
	case IPD:
		return "IPD (Inpatient)"
	}
	return string(c)
}

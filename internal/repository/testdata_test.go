package repository_test

import (
	"github.com/godilite/feedback-server/internal/feedback"
)

func sampleRecord(ts, dept string, rating feedback.Rating) feedback.Record {
	r := feedback.Record{
		Timestamp:   ts,
		PatientName: "Kiran",
		Department:  dept,
		Review:      "Good care",
	}
	for i := range r.Ratings {
		r.Ratings[i] = rating.Label()
	}
	return r
}

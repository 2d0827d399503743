package models

import (
	"github.com/godilite/feedback-server/internal/feedback"
)

// FeedbackDocument is the Mongo shape of one feedback row.
type FeedbackDocument struct {
	ID          string   `bson:"_id"`
	CreatedAt   string   `bson:"created_at"`
	PatientName string   `bson:"patient_name"`
	Department  string   `bson:"department"`
	Ratings     []string `bson:"ratings"`
	Review      string   `bson:"review"`
}

func NewFeedbackDocument(rec feedback.Record) FeedbackDocument {
	return FeedbackDocument{
		ID:          rec.ID,
		CreatedAt:   rec.Timestamp,
		PatientName: rec.PatientName,
		Department:  rec.Department,
		Ratings:     append([]string(nil), rec.Ratings[:]...),
		Review:      rec.Review,
	}
}

// Record converts back, tolerating documents with fewer or more ratings.
func (d FeedbackDocument) Record() feedback.Record {
	rec := feedback.Record{
		ID:          d.ID,
		Timestamp:   d.CreatedAt,
		PatientName: d.PatientName,
		Department:  d.Department,
		Review:      d.Review,
	}
	copy(rec.Ratings[:], d.Ratings)
	return rec
}

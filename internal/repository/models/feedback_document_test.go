package models

import (
	"testing"

	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/stretchr/testify/assert"
)

func TestFeedbackDocumentRoundTrip(t *testing.T) {
	rec := feedback.Record{
		ID:          "abc",
		Timestamp:   "2024-01-01 10:00:00",
		PatientName: "Nila",
		Department:  "Radiology",
		Ratings:     [feedback.QuestionCount]string{"a", "b", "c", "d", "e"},
		Review:      "ok",
	}

	doc := NewFeedbackDocument(rec)
	assert.Len(t, doc.Ratings, feedback.QuestionCount)
	assert.Equal(t, rec, doc.Record())

	short := FeedbackDocument{ID: "x", Ratings: []string{"😀 Excellent (5)"}}
	assert.Equal(t, "", short.Record().Ratings[4])
}

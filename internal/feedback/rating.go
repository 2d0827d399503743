package feedback

import (
	"strings"
)

// Rating is a point on the fixed five-point scale.
type Rating int

const (
	RatingVeryPoor  Rating = 1
	RatingPoor      Rating = 2
	RatingAverage   Rating = 3
	RatingGood      Rating = 4
	RatingExcellent Rating = 5
)

// Ratings lists the scale from best to worst, the order shown on the form.
var Ratings = []Rating{RatingExcellent, RatingGood, RatingAverage, RatingPoor, RatingVeryPoor}

var ratingLabels = map[Rating]string{
	RatingExcellent: "😀 Excellent (5)",
	RatingGood:      "🙂 Good (4)",
	RatingAverage:   "😐 Average (3)",
	RatingPoor:      "😟 Poor (2)",
	RatingVeryPoor:  "😡 Very Poor (1)",
}

func (r Rating) Valid() bool {
	return r >= RatingVeryPoor && r <= RatingExcellent
}

// Label returns the stored label, e.g. "🙂 Good (4)".
func (r Rating) Label() string {
	return ratingLabels[r]
}

// ParseRating reads the value encoded in a label of the form
// "<emoji> <word> (<digit>)". Only the trailing "(d)" carries meaning.
func ParseRating(label string) (Rating, bool) {
	s := strings.TrimSpace(label)
	if len(s) < 3 || s[len(s)-1] != ')' || s[len(s)-3] != '(' {
		return 0, false
	}
	d := s[len(s)-2]
	if d < '0' || d > '9' {
		return 0, false
	}
	r := Rating(d - '0')
	if !r.Valid() {
		return 0, false
	}
	return r, true
}

package service

import (
	"sort"
	"strings"
	"time"

	"github.com/godilite/feedback-server/internal/feedback"
)

// FilterByDate keeps records whose calendar day in loc lies in [start, end].
// Both bounds are inclusive and only their dates matter. Records without a
// readable timestamp are dropped and counted in undated.
func FilterByDate(records []feedback.Record, start, end time.Time, loc *time.Location) (matched []feedback.Record, undated int) {
	if loc == nil {
		loc = time.Local
	}
	from, to := feedback.Day(start), feedback.Day(end)

	matched = make([]feedback.Record, 0, len(records))
	for _, rec := range records {
		ts, err := rec.Time(loc)
		if err != nil {
			undated++
			continue
		}
		day := feedback.Day(ts.In(loc))
		if day.Before(from) || day.After(to) {
			continue
		}
		matched = append(matched, rec)
	}
	return matched, undated
}

// Summarize computes department counts, per-question means and the comment
// list. A rating that cannot be read only drops out of its own column.
func Summarize(category feedback.Category, records []feedback.Record) Summary {
	questions := category.Questions()
	sums := make([]float64, feedback.QuestionCount)
	counts := make([]int, feedback.QuestionCount)
	depts := make(map[string]int)
	comments := make([]string, 0)

	for _, rec := range records {
		depts[rec.Department]++

		for i := 0; i < feedback.QuestionCount; i++ {
			if r, ok := rec.Rating(i); ok {
				sums[i] += float64(r)
				counts[i]++
			}
		}

		if c := strings.TrimSpace(rec.Review); c != "" {
			comments = append(comments, c)
		}
	}

	averages := make([]QuestionAverage, feedback.QuestionCount)
	for i := range averages {
		avg := QuestionAverage{Responses: counts[i]}
		if i < len(questions) {
			avg.Question = questions[i]
		}
		if counts[i] > 0 {
			mean := sums[i] / float64(counts[i])
			avg.Mean = &mean
		}
		averages[i] = avg
	}

	return Summary{
		Total:       len(records),
		Departments: rankDepartments(depts),
		Questions:   averages,
		Comments:    comments,
	}
}

func rankDepartments(counts map[string]int) []DepartmentCount {
	out := make([]DepartmentCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, DepartmentCount{Department: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Department < out[j].Department
	})
	return out
}

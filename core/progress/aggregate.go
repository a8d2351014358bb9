package progress

import (
	"math"
	"time"
)

// Summary is the derived course (or module) roll-up. It is computed on
// read and never stored as source of truth; the enrollment row only
// mirrors it opportunistically.
type Summary struct {
	CourseID         string     `json:"courseId"`
	TotalContent     int        `json:"totalContent"`
	CompletedContent int        `json:"completedContent"`
	OverallProgress  int        `json:"overallProgress"`
	LastAccessed     *time.Time `json:"lastAccessed"`
}

// Summarize rolls entries up against the course's total content count.
// An empty course yields 0, never a division by zero.
func Summarize(courseID string, total int, entries []Entry) Summary {
	s := Summary{CourseID: courseID, TotalContent: total}

	for _, e := range entries {
		if e.Completed {
			s.CompletedContent++
		}
		if s.LastAccessed == nil || e.UpdatedAt.After(*s.LastAccessed) {
			t := e.UpdatedAt
			s.LastAccessed = &t
		}
	}

	if total > 0 {
		s.OverallProgress = int(math.Round(float64(s.CompletedContent) / float64(total) * 100))
	}
	return s
}

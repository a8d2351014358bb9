package progress

import "math"

// videoCompleteAt is the percentage at which video-like content counts
// as completed: watching past the credits is not required.
const videoCompleteAt = 95

// EntryUp converts a playback position into the canonical write shape.
// Completion is reached at 95% of the duration.
func (v VideoUp) EntryUp() EntryUp {
	pct := 0
	if v.Duration > 0 {
		pct = int(math.Round(float64(v.Position) / float64(v.Duration) * 100))
	}
	if pct > 100 {
		pct = 100
	}

	pos := v.Position
	return EntryUp{
		ContentID:        v.ContentID,
		ModuleID:         v.ModuleID,
		CourseID:         v.CourseID,
		Progress:         pct,
		Completed:        pct >= videoCompleteAt,
		LastPosition:     &pos,
		TimeSpentSeconds: v.TimeSpent,
	}
}

// EntryUp grades a quiz submission. Any correct answer completes the
// quiz; the percentage still reflects the actual score. This is the
// documented policy, not a bug.
func (q QuizUp) EntryUp() EntryUp {
	pct := 0
	if q.TotalQuestions > 0 {
		pct = int(math.Round(float64(q.Score) / float64(q.TotalQuestions) * 100))
	}
	if pct > 100 {
		pct = 100
	}

	return EntryUp{
		ContentID:        q.ContentID,
		ModuleID:         q.ModuleID,
		CourseID:         q.CourseID,
		Progress:         pct,
		Completed:        q.Score > 0,
		TimeSpentSeconds: q.TimeSpent,
	}
}

// EntryUp maps a document event: reading completes the item, a bare
// download earns 50% partial credit without completing it.
func (d DocumentUp) EntryUp() EntryUp {
	up := EntryUp{
		ContentID:        d.ContentID,
		ModuleID:         d.ModuleID,
		CourseID:         d.CourseID,
		TimeSpentSeconds: d.TimeSpent,
	}

	switch d.Event {
	case DocumentEventDownload:
		up.Progress = 50
		up.Completed = false
	default:
		up.Progress = 100
		up.Completed = true
	}
	return up
}

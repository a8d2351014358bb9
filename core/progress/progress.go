package progress

import "time"

// Entry is the per-user record for a single content item. One row per
// (user, content); writes are upserts.
type Entry struct {
	UserID           string     `json:"userId" db:"user_id"`
	ContentID        string     `json:"contentId" db:"content_id"`
	ModuleID         string     `json:"moduleId" db:"module_id"`
	CourseID         string     `json:"courseId" db:"course_id"`
	Progress         int        `json:"progressPercentage" db:"progress_percentage"`
	Completed        bool       `json:"completed" db:"completed"`
	LastPosition     *int       `json:"lastPosition" db:"last_position"`
	TimeSpentSeconds int        `json:"timeSpentSeconds" db:"time_spent_seconds"`
	CompletedAt      *time.Time `json:"completedAt" db:"completed_at"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// EntryUp is the single write shape: every convenience endpoint reduces
// to one of these.
type EntryUp struct {
	ContentID        string `json:"contentId" validate:"required,uuid4"`
	ModuleID         string `json:"moduleId" validate:"required,uuid4"`
	CourseID         string `json:"courseId" validate:"required,uuid4"`
	Progress         int    `json:"progressPercentage" validate:"gte=0,lte=100"`
	Completed        bool   `json:"completed"`
	LastPosition     *int   `json:"lastPosition" validate:"omitempty,gte=0"`
	TimeSpentSeconds int    `json:"timeSpentSeconds" validate:"gte=0"`
}

type VideoUp struct {
	ContentID string `json:"contentId" validate:"required,uuid4"`
	ModuleID  string `json:"moduleId" validate:"required,uuid4"`
	CourseID  string `json:"courseId" validate:"required,uuid4"`
	Position  int    `json:"position" validate:"gte=0"`
	Duration  int    `json:"duration" validate:"required,gt=0"`
	TimeSpent int    `json:"timeSpentSeconds" validate:"gte=0"`
}

type QuizUp struct {
	ContentID      string `json:"contentId" validate:"required,uuid4"`
	ModuleID       string `json:"moduleId" validate:"required,uuid4"`
	CourseID       string `json:"courseId" validate:"required,uuid4"`
	Score          int    `json:"score" validate:"gte=0"`
	TotalQuestions int    `json:"totalQuestions" validate:"required,gt=0"`
	TimeSpent      int    `json:"timeSpentSeconds" validate:"gte=0"`
}

const (
	DocumentEventRead     = "read"
	DocumentEventDownload = "download"
)

type DocumentUp struct {
	ContentID string `json:"contentId" validate:"required,uuid4"`
	ModuleID  string `json:"moduleId" validate:"required,uuid4"`
	CourseID  string `json:"courseId" validate:"required,uuid4"`
	Event     string `json:"event" validate:"required,oneof=read download"`
	TimeSpent int    `json:"timeSpentSeconds" validate:"gte=0"`
}

package content

import "time"

const (
	KindVideo    = "video"
	KindText     = "text"
	KindDocument = "document"
	KindQuiz     = "quiz"
)

type Module struct {
	ID          string    `json:"id" db:"module_id"`
	CourseID    string    `json:"courseId" db:"course_id"`
	Index       int       `json:"index" db:"index"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

type ModuleNew struct {
	CourseID    string `json:"courseId" validate:"required,uuid4"`
	Index       int    `json:"index" validate:"gte=0"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type Item struct {
	ID              string    `json:"id" db:"content_id"`
	ModuleID        string    `json:"moduleId" db:"module_id"`
	CourseID        string    `json:"courseId" db:"course_id"`
	Index           int       `json:"index" db:"index"`
	Name            string    `json:"name" db:"name"`
	Kind            string    `json:"kind" db:"kind"`
	Free            bool      `json:"free" db:"free"`
	URL             string    `json:"-" db:"url"`
	DurationSeconds *int      `json:"durationSeconds" db:"duration_seconds"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

type ItemNew struct {
	ModuleID        string `json:"moduleId" validate:"required,uuid4"`
	Index           int    `json:"index" validate:"gte=0"`
	Name            string `json:"name" validate:"required"`
	Kind            string `json:"kind" validate:"required,oneof=video text document quiz"`
	Free            bool   `json:"free"`
	URL             string `json:"url" validate:"omitempty,url"`
	DurationSeconds *int   `json:"durationSeconds" validate:"omitempty,gte=0"`
}

type ItemUp struct {
	Index           *int    `json:"index" validate:"omitempty,gte=0"`
	Name            *string `json:"name"`
	Free            *bool   `json:"free"`
	URL             *string `json:"url" validate:"omitempty,url"`
	DurationSeconds *int    `json:"durationSeconds" validate:"omitempty,gte=0"`
}

package enrollment

import "time"

type Status string

const (
	Active    Status = "active"
	Completed Status = "completed"
	Paused    Status = "paused"
	Cancelled Status = "cancelled"
)

type Enrollment struct {
	ID                string     `json:"id" db:"enrollment_id"`
	UserID            string     `json:"userId" db:"user_id"`
	CourseID          string     `json:"courseId" db:"course_id"`
	Status            Status     `json:"status" db:"status"`
	Progress          int        `json:"progress" db:"progress"`
	EnrolledAt        time.Time  `json:"enrolledAt" db:"enrolled_at"`
	CompletedAt       *time.Time `json:"completedAt" db:"completed_at"`
	LastAccessedAt    *time.Time `json:"lastAccessedAt" db:"last_accessed_at"`
	CertificateIssued bool       `json:"certificateIssued" db:"certificate_issued"`
	CertificateURL    *string    `json:"certificateUrl" db:"certificate_url"`
	UpdatedAt         time.Time  `json:"updatedAt" db:"updated_at"`
}

type EnrollmentNew struct {
	CourseID string `json:"courseId" validate:"required,uuid4"`
}

type StatusUp struct {
	Status Status `json:"status" validate:"required,oneof=active completed paused cancelled"`
}

type ProgressUp struct {
	Progress int `json:"progress" validate:"gte=0,lte=100"`
}

// CheckResult is the read-only answer of the enrollment check endpoint.
type CheckResult struct {
	IsEnrolled bool        `json:"isEnrolled"`
	Enrollment *Enrollment `json:"enrollment,omitempty"`
}

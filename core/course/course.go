package course

import "time"

type Course struct {
	ID              string    `json:"id" db:"course_id"`
	InstructorID    string    `json:"instructorId" db:"instructor_id"`
	Name            string    `json:"name" db:"name"`
	Description     string    `json:"description" db:"description"`
	ImageURL        string    `json:"imageUrl" db:"image_url"`
	Price           int64     `json:"price" db:"price"`
	Currency        string    `json:"currency" db:"currency"`
	Published       bool      `json:"published" db:"published"`
	StripeProductID *string   `json:"-" db:"stripe_product_id"`
	StripePriceID   *string   `json:"-" db:"stripe_price_id"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
	Version         int       `json:"-" db:"version"`
}

type CourseNew struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Price       int64  `json:"price" validate:"gte=0,lte=100000000"`
	Currency    string `json:"currency" validate:"required,len=3"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
}

type CourseUp struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0,lte=100000000"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
	Published   *bool   `json:"published"`
}

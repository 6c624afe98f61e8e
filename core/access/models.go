package access

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/neuromagic/academy/core/catalog"
)

type Status string

const (
	StatusPaid      Status = "paid"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

var statusRanks = map[Status]int{
	StatusPaid:      1,
	StatusActive:    2,
	StatusCompleted: 3,
}

// CanMoveTo reports whether `next` is ahead of s. Enrollments never go back.
func (s Status) CanMoveTo(next Status) bool {
	return statusRanks[next] > statusRanks[s]
}

type Method string

const (
	MethodYooKassa Method = "yookassa"
	MethodMock     Method = "mock"
	MethodAdmin    Method = "admin"
	MethodTest     Method = "test"
)

func (m Method) IsValid() bool {
	switch m {
	case MethodYooKassa, MethodMock, MethodAdmin, MethodTest:
		return true
	}
	return false
}

type Enrollment struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	CourseSlug    string          `json:"course_slug"`
	PurchasedAt   time.Time       `json:"purchased_at"` // UTC
	PricePaid     decimal.Decimal `json:"price_paid"`
	PaymentMethod Method          `json:"payment_method"`
	PaymentID     string          `json:"payment_id,omitempty"`
	Status        Status          `json:"status"`
	UpdatedAt     time.Time       `json:"updated_at"` // UTC
}

// Grant describes a purchase to record.
// A zero Price records the catalog price of the course.
type Grant struct {
	UserID     string
	CourseSlug string
	Price      decimal.Decimal
	Method     Method
	PaymentID  string
}

// CourseEnrollment is an Enrollment joined with its catalog entry.
type CourseEnrollment struct {
	Enrollment
	Course catalog.Course `json:"course"`
}

package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

const CurrencyRUB = "RUB"

type Status string

const (
	StatusPending           Status = "pending"
	StatusWaitingForCapture Status = "waiting_for_capture"
	StatusSucceeded         Status = "succeeded"
	StatusCanceled          Status = "canceled"
)

var statusRanks = map[Status]int{
	StatusPending:           1,
	StatusWaitingForCapture: 2,
	StatusSucceeded:         3,
	StatusCanceled:          3,
}

func (s Status) IsValid() bool {
	_, ok := statusRanks[s]
	return ok
}

func (s Status) IsFinal() bool {
	return s == StatusSucceeded || s == StatusCanceled
}

// CanMoveTo reports whether the payment may go from s to next. Final statuses never change.
func (s Status) CanMoveTo(next Status) bool {
	if s.IsFinal() || !next.IsValid() {
		return false
	}
	return statusRanks[next] > statusRanks[s]
}

type Payment struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	CourseSlug       string          `json:"course_slug"`
	GatewayPaymentID string          `json:"gateway_payment_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           Status          `json:"status"`
	Description      string          `json:"description"`
	ConfirmationURL  string          `json:"confirmation_url,omitempty"`
	PaidAt           time.Time       `json:"paid_at"`    // UTC
	CreatedAt        time.Time       `json:"created_at"` // UTC
	UpdatedAt        time.Time       `json:"updated_at"` // UTC
}

type GetFilter struct {
	ID               string
	GatewayPaymentID string
	ForUpdate        bool // lock the row until the end of the transaction
}

// Checkout is handed back to the buyer, who must follow ConfirmationURL to pay.
type Checkout struct {
	PaymentID       string          `json:"payment_id"`
	ConfirmationURL string          `json:"confirmation_url"`
	Amount          decimal.Decimal `json:"amount"`
	CourseTitle     string          `json:"course_title"`
}

// Notification is the webhook body sent by the gateway.
type Notification struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"amount"`
	} `json:"object"`
}

const (
	EventSucceeded         = "payment.succeeded"
	EventWaitingForCapture = "payment.waiting_for_capture"
	EventCanceled          = "payment.canceled"
)

var knownEvents = map[string]bool{
	EventSucceeded:         true,
	EventWaitingForCapture: true,
	EventCanceled:          true,
}

type (
	GatewayPaymentRequest struct {
		IdempotenceKey string
		Amount         decimal.Decimal
		Currency       string
		Description    string
		ReturnURL      string
		Metadata       map[string]string
	}

	GatewayPayment struct {
		ID              string
		Status          Status
		Paid            bool
		Amount          decimal.Decimal
		Currency        string
		ConfirmationURL string
		Metadata        map[string]string
	}
)

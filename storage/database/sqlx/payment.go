package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/payment"
)

type paymentRow struct {
	ID               string          `db:"id"`
	UserID           string          `db:"user_id"`
	CourseSlug       string          `db:"course_slug"`
	GatewayPaymentID null.String     `db:"gateway_payment_id"`
	Amount           decimal.Decimal `db:"amount"`
	Currency         string          `db:"currency"`
	Status           string          `db:"status"`
	Description      string          `db:"description"`
	ConfirmationURL  string          `db:"confirmation_url"`
	PaidAt           null.Time       `db:"paid_at"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func toPaymentRow(p payment.Payment) paymentRow {
	return paymentRow{
		ID:               p.ID,
		UserID:           p.UserID,
		CourseSlug:       p.CourseSlug,
		GatewayPaymentID: nullString(p.GatewayPaymentID),
		Amount:           p.Amount,
		Currency:         p.Currency,
		Status:           string(p.Status),
		Description:      p.Description,
		ConfirmationURL:  p.ConfirmationURL,
		PaidAt:           nullTime(p.PaidAt),
		CreatedAt:        p.CreatedAt.UTC(),
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
}

func (row paymentRow) toPayment() payment.Payment {
	return payment.Payment{
		ID:               row.ID,
		UserID:           row.UserID,
		CourseSlug:       row.CourseSlug,
		GatewayPaymentID: row.GatewayPaymentID.String,
		Amount:           row.Amount,
		Currency:         row.Currency,
		Status:           payment.Status(row.Status),
		Description:      row.Description,
		ConfirmationURL:  row.ConfirmationURL,
		PaidAt:           row.PaidAt.Time.UTC(),
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}

type paymentRepository struct {
	repository
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(exec core.DBExecutor) payment.Repository {
	return &paymentRepository{repository{exec: exec}}
}

func (repo paymentRepository) CreatePayment(ctx context.Context, p payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	p.ID = uuid.New().String()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`INSERT INTO payment (id, user_id, course_slug, gateway_payment_id, amount, currency, status, description,
		confirmation_url, paid_at, created_at, updated_at)
		VALUES (:id, :user_id, :course_slug, :gateway_payment_id, :amount, :currency, :status, :description,
		:confirmation_url, :paid_at, :created_at, :updated_at)`,
		toPaymentRow(p))
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo paymentRepository) GetPayment(ctx context.Context, filter payment.GetFilter, exec ...core.DBExecutor) (payment.Payment, error) {
	query := "SELECT * FROM payment WHERE "
	var arg string

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return payment.Payment{}, payment.ErrNotFound
		}
		query += "id = $1"
		arg = filter.ID
	case filter.GatewayPaymentID != "":
		query += "gateway_payment_id = $1"
		arg = filter.GatewayPaymentID
	default:
		return payment.Payment{}, payment.ErrNotFound
	}
	if filter.ForUpdate {
		query += " FOR UPDATE"
	}

	var row paymentRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, query, arg); err != nil {
		return payment.Payment{}, trapNoRowsErr(err, payment.ErrNotFound, "getting payment")
	}
	return row.toPayment(), nil
}

func (repo paymentRepository) QueryPayments(ctx context.Context, userID string, exec ...core.DBExecutor) ([]payment.Payment, error) {
	pays := make([]payment.Payment, 0)
	if _, err := uuid.Parse(userID); err != nil {
		return pays, nil
	}
	var rows []paymentRow
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows,
		"SELECT * FROM payment WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	for _, row := range rows {
		pays = append(pays, row.toPayment())
	}
	return pays, nil
}

func (repo paymentRepository) UpdatePayment(ctx context.Context, p payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec),
		`UPDATE payment SET status = :status, confirmation_url = :confirmation_url, paid_at = :paid_at,
		updated_at = :updated_at WHERE id = :id`,
		toPaymentRow(p))
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "updating payment")
	}
	if err = checkAffected(res, payment.ErrNotFound); err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

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
	"github.com/neuromagic/academy/core/access"
)

type enrollmentRow struct {
	ID            string          `db:"id"`
	UserID        string          `db:"user_id"`
	CourseSlug    string          `db:"course_slug"`
	PurchasedAt   time.Time       `db:"purchased_at"`
	PricePaid     decimal.Decimal `db:"price_paid"`
	PaymentMethod string          `db:"payment_method"`
	PaymentID     null.String     `db:"payment_id"`
	Status        string          `db:"status"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (row enrollmentRow) toEnrollment() access.Enrollment {
	return access.Enrollment{
		ID:            row.ID,
		UserID:        row.UserID,
		CourseSlug:    row.CourseSlug,
		PurchasedAt:   row.PurchasedAt.UTC(),
		PricePaid:     row.PricePaid,
		PaymentMethod: access.Method(row.PaymentMethod),
		PaymentID:     row.PaymentID.String,
		Status:        access.Status(row.Status),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

type enrollmentRepository struct {
	repository
}

var _ access.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(exec core.DBExecutor) access.Repository {
	return &enrollmentRepository{repository{exec: exec}}
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, e access.Enrollment, exec ...core.DBExecutor) (access.Enrollment, bool, error) {
	exe := repo.getExec(exec)
	e.ID = uuid.New().String()

	query, args, err := sqlx.Named(
		`INSERT INTO enrollment (id, user_id, course_slug, purchased_at, price_paid, payment_method, payment_id, status, updated_at)
		VALUES (:id, :user_id, :course_slug, :purchased_at, :price_paid, :payment_method, :payment_id, :status, :updated_at)
		ON CONFLICT (user_id, course_slug) DO NOTHING
		RETURNING *`,
		enrollmentRow{
			ID:            e.ID,
			UserID:        e.UserID,
			CourseSlug:    e.CourseSlug,
			PurchasedAt:   e.PurchasedAt.UTC(),
			PricePaid:     e.PricePaid,
			PaymentMethod: string(e.PaymentMethod),
			PaymentID:     nullString(e.PaymentID),
			Status:        string(e.Status),
			UpdatedAt:     e.UpdatedAt.UTC(),
		})
	if err != nil {
		return access.Enrollment{}, false, errors.Wrap(err, "binding enrollment")
	}

	var row enrollmentRow
	err = sqlx.GetContext(ctx, exe, &row, exe.Rebind(query), args...)
	if err == nil {
		return row.toEnrollment(), true, nil
	}
	// conflict: the user already owns the course
	if err = trapNoRowsErr(err, nil, "inserting enrollment"); err != nil {
		return access.Enrollment{}, false, err
	}
	existing, err := repo.GetEnrollment(ctx, e.UserID, e.CourseSlug, exe)
	return existing, false, err
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, userID, slug string, exec ...core.DBExecutor) (access.Enrollment, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return access.Enrollment{}, access.ErrNotFound
	}
	var row enrollmentRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		"SELECT * FROM enrollment WHERE user_id = $1 AND course_slug = $2", userID, slug)
	if err != nil {
		return access.Enrollment{}, trapNoRowsErr(err, access.ErrNotFound, "getting enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, userID string, exec ...core.DBExecutor) ([]access.Enrollment, error) {
	enrs := make([]access.Enrollment, 0)
	if _, err := uuid.Parse(userID); err != nil {
		return enrs, nil
	}
	var rows []enrollmentRow
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows,
		"SELECT * FROM enrollment WHERE user_id = $1 ORDER BY purchased_at DESC", userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	for _, row := range rows {
		enrs = append(enrs, row.toEnrollment())
	}
	return enrs, nil
}

func (repo enrollmentRepository) UpdateEnrollmentStatus(ctx context.Context, e access.Enrollment, exec ...core.DBExecutor) (access.Enrollment, error) {
	var row enrollmentRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		"UPDATE enrollment SET status = $1, updated_at = $2 WHERE user_id = $3 AND course_slug = $4 RETURNING *",
		string(e.Status), e.UpdatedAt.UTC(), e.UserID, e.CourseSlug)
	if err != nil {
		return access.Enrollment{}, trapNoRowsErr(err, access.ErrNotFound, "updating enrollment status")
	}
	return row.toEnrollment(), nil
}

func (repo enrollmentRepository) DeleteEnrollment(ctx context.Context, userID, slug string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(userID); err != nil {
		return access.ErrNotFound
	}
	res, err := repo.getExec(exec).ExecContext(ctx,
		"DELETE FROM enrollment WHERE user_id = $1 AND course_slug = $2", userID, slug)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return checkAffected(res, access.ErrNotFound)
}

package access

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/catalog"
)

var (
	// errors
	ErrNotFound      = core.NewDomainError(core.ErrNotFound, "enrollment not found")
	ErrInvalidMethod = core.NewValidationError(errors.New("unknown payment method"))

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateEnrollment inserts e unless (UserID, CourseSlug) is already enrolled,
		// in which case the stored enrollment is returned with created=false.
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (enr Enrollment, created bool, err error)
		GetEnrollment(ctx context.Context, userID, slug string, exec ...core.DBExecutor) (Enrollment, error)
		QueryEnrollments(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Enrollment, error)
		UpdateEnrollmentStatus(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, userID, slug string, exec ...core.DBExecutor) error
	}

	Service interface {
		Grant(ctx context.Context, g Grant, exec ...core.DBExecutor) (enr Enrollment, created bool, err error)
		HasAccess(ctx context.Context, userID, slug string, exec ...core.DBExecutor) (bool, error)
		Get(ctx context.Context, userID, slug string, exec ...core.DBExecutor) (Enrollment, error)
		ListForUser(ctx context.Context, userID string) ([]CourseEnrollment, error)
		MarkActive(ctx context.Context, userID, slug string, exec ...core.DBExecutor) error
		MarkCompleted(ctx context.Context, userID, slug string, exec ...core.DBExecutor) error
		Revoke(ctx context.Context, userID, slug string) error
	}

	service struct {
		repo    Repository
		catalog catalog.Finder
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, cat catalog.Finder) Service {
	return &service{repo: repo, catalog: cat}
}

// Grant records a purchase. Granting an already owned course is a no-op returning the existing enrollment.
func (svc *service) Grant(ctx context.Context, g Grant, exec ...core.DBExecutor) (Enrollment, bool, error) {
	if !g.Method.IsValid() {
		return Enrollment{}, false, ErrInvalidMethod
	}
	course, err := svc.catalog.GetBySlug(g.CourseSlug)
	if err != nil {
		return Enrollment{}, false, err
	}

	price := g.Price
	if price.IsZero() {
		price = course.Price
	}
	now := NowFunc().UTC()
	enr, created, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		UserID:        g.UserID,
		CourseSlug:    course.Slug,
		PurchasedAt:   now,
		PricePaid:     price,
		PaymentMethod: g.Method,
		PaymentID:     g.PaymentID,
		Status:        StatusPaid,
		UpdatedAt:     now,
	}, exec...)
	if err != nil {
		return Enrollment{}, false, errors.Wrap(err, "creating enrollment")
	}
	return enr, created, nil
}

func (svc *service) HasAccess(ctx context.Context, userID, slug string, exec ...core.DBExecutor) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, userID, slug, exec...); err != nil {
		if core.IsKind(err, core.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "getting enrollment")
	}
	return true, nil
}

func (svc *service) Get(ctx context.Context, userID, slug string, exec ...core.DBExecutor) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, userID, slug, exec...)
}

// ListForUser skips enrollments whose course left the catalog.
func (svc *service) ListForUser(ctx context.Context, userID string) ([]CourseEnrollment, error) {
	enrs, err := svc.repo.QueryEnrollments(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	res := make([]CourseEnrollment, 0, len(enrs))
	for _, enr := range enrs {
		course, err := svc.catalog.GetBySlug(enr.CourseSlug)
		if err != nil {
			continue
		}
		res = append(res, CourseEnrollment{Enrollment: enr, Course: course})
	}
	return res, nil
}

func (svc *service) MarkActive(ctx context.Context, userID, slug string, exec ...core.DBExecutor) error {
	return svc.moveTo(ctx, userID, slug, StatusActive, exec)
}

func (svc *service) MarkCompleted(ctx context.Context, userID, slug string, exec ...core.DBExecutor) error {
	return svc.moveTo(ctx, userID, slug, StatusCompleted, exec)
}

// moveTo advances the enrollment status; a missing enrollment (free lesson) or a backward move is a no-op.
func (svc *service) moveTo(ctx context.Context, userID, slug string, status Status, exec []core.DBExecutor) error {
	enr, err := svc.repo.GetEnrollment(ctx, userID, slug, exec...)
	if err != nil {
		if core.IsKind(err, core.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "getting enrollment")
	}
	if !enr.Status.CanMoveTo(status) {
		return nil
	}
	enr.Status = status
	enr.UpdatedAt = NowFunc().UTC()
	if _, err = svc.repo.UpdateEnrollmentStatus(ctx, enr, exec...); err != nil {
		return errors.Wrapf(err, "marking enrollment %s", status)
	}
	return nil
}

func (svc *service) Revoke(ctx context.Context, userID, slug string) error {
	return svc.repo.DeleteEnrollment(ctx, userID, slug)
}

package payment

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/catalog"
	"github.com/neuromagic/academy/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewDomainError(core.ErrNotFound, "payment not found")
	ErrAlreadyOwned     = core.NewDomainError(core.ErrConflict, "you already have access to this course")
	ErrPaymentsDisabled = core.NewDomainError(core.ErrForbidden, "online payments are not available")
	ErrMockDisabled     = core.NewDomainError(core.ErrForbidden, "mock purchases are only available in debug mode")
	ErrUntrustedSource  = core.NewDomainError(core.ErrForbidden, "notification from an untrusted source")
	ErrAmountMismatch   = core.NewValidationError(errors.New("paid amount does not match the payment amount"))

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		GetPayment(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Payment, error)
		UpdatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
	}

	// Gateway is the external payment provider.
	Gateway interface {
		CreatePayment(ctx context.Context, req GatewayPaymentRequest) (GatewayPayment, error)
		GetPayment(ctx context.Context, id string) (GatewayPayment, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		Create(ctx context.Context, userID, slug, returnURL string) (Checkout, error)
		HandleNotification(ctx context.Context, sourceIP string, n Notification) error
		PurchaseMock(ctx context.Context, userID, slug string) (access.Enrollment, error)
		Get(ctx context.Context, userID, id string) (Payment, error)
		ListForUser(ctx context.Context, userID string) ([]Payment, error)
	}

	service struct {
		db      core.Transactor
		repo    Repository
		gateway Gateway
		access  access.Service
		catalog catalog.Finder
		users   UserFinder
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
		trusted []*net.IPNet
	}

	ServiceDeps struct {
		DB      core.Transactor
		Repo    Repository
		Gateway Gateway // nil when payments are not configured
		Access  access.Service
		Catalog catalog.Finder
		Users   UserFinder
		MailSvc core.EmailService
		Logger  core.Logger
		Conf    *core.Config
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(deps ServiceDeps) Service {
	return &service{
		db:      deps.DB,
		repo:    deps.Repo,
		gateway: deps.Gateway,
		access:  deps.Access,
		catalog: deps.Catalog,
		users:   deps.Users,
		mailSvc: deps.MailSvc,
		logger:  deps.Logger,
		conf:    deps.Conf,
		trusted: deps.Conf.TrustedPaymentNetworks(),
	}
}

func now() time.Time { return NowFunc().UTC() }

// Create registers a payment for the course at the gateway and returns where the buyer must go to pay.
func (svc *service) Create(ctx context.Context, userID, slug, returnURL string) (Checkout, error) {
	if svc.gateway == nil {
		return Checkout{}, ErrPaymentsDisabled
	}
	course, err := svc.catalog.GetBySlug(slug)
	if err != nil {
		return Checkout{}, err
	}
	owned, err := svc.access.HasAccess(ctx, userID, course.Slug)
	if err != nil {
		return Checkout{}, errors.Wrap(err, "checking course access")
	}
	if owned {
		return Checkout{}, ErrAlreadyOwned
	}
	if returnURL == "" {
		returnURL = svc.conf.YooKassa.ReturnURL
	}

	description := fmt.Sprintf("Оплата курса «%s»", course.Title)
	gp, err := svc.gateway.CreatePayment(ctx, GatewayPaymentRequest{
		IdempotenceKey: uuid.New().String(),
		Amount:         course.Price,
		Currency:       CurrencyRUB,
		Description:    description,
		ReturnURL:      returnURL,
		Metadata: map[string]string{
			"user_id":   userID,
			"course_id": course.Slug,
		},
	})
	if err != nil {
		return Checkout{}, errors.Wrap(err, "creating gateway payment")
	}

	t := now()
	pay, err := svc.repo.CreatePayment(ctx, Payment{
		UserID:           userID,
		CourseSlug:       course.Slug,
		GatewayPaymentID: gp.ID,
		Amount:           course.Price,
		Currency:         CurrencyRUB,
		Status:           StatusPending,
		Description:      description,
		ConfirmationURL:  gp.ConfirmationURL,
		CreatedAt:        t,
		UpdatedAt:        t,
	})
	if err != nil {
		return Checkout{}, errors.Wrap(err, "creating payment")
	}

	return Checkout{
		PaymentID:       pay.ID,
		ConfirmationURL: pay.ConfirmationURL,
		Amount:          pay.Amount,
		CourseTitle:     course.Title,
	}, nil
}

func (svc *service) isTrustedSource(sourceIP string) bool {
	if svc.conf.Debug || svc.conf.TestMode {
		return true
	}
	ip := net.ParseIP(sourceIP)
	if ip == nil {
		return false
	}
	for _, network := range svc.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// HandleNotification reconciles a gateway notification with the stored payment.
// The gateway is asked for the payment status; the notification body is never trusted.
// Stale and repeated notifications are acknowledged without side effects.
func (svc *service) HandleNotification(ctx context.Context, sourceIP string, n Notification) error {
	if !svc.isTrustedSource(sourceIP) {
		return ErrUntrustedSource
	}
	if !knownEvents[n.Event] {
		return nil // not interested
	}
	if svc.gateway == nil {
		return ErrPaymentsDisabled
	}
	if n.Object.ID == "" {
		return ErrNotFound
	}

	pay, err := svc.repo.GetPayment(ctx, GetFilter{GatewayPaymentID: n.Object.ID})
	if err != nil {
		return err
	}
	gp, err := svc.gateway.GetPayment(ctx, pay.GatewayPaymentID)
	if err != nil {
		return errors.Wrap(err, "fetching gateway payment")
	}
	if !pay.Status.CanMoveTo(gp.Status) {
		return nil
	}

	if gp.Status == StatusSucceeded && !gp.Amount.Equal(pay.Amount) {
		return ErrAmountMismatch
	}

	var granted bool
	err = svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		// another notification may have been processed in the meantime
		locked, err := svc.repo.GetPayment(ctx, GetFilter{ID: pay.ID, ForUpdate: true}, exec)
		if err != nil {
			return err
		}
		if !locked.Status.CanMoveTo(gp.Status) {
			return nil
		}

		t := now()
		locked.Status = gp.Status
		locked.UpdatedAt = t
		if gp.Status == StatusSucceeded {
			locked.PaidAt = t
		}
		if pay, err = svc.repo.UpdatePayment(ctx, locked, exec); err != nil {
			return errors.Wrap(err, "updating payment")
		}
		if pay.Status != StatusSucceeded {
			return nil
		}

		_, granted, err = svc.access.Grant(ctx, access.Grant{
			UserID:     pay.UserID,
			CourseSlug: pay.CourseSlug,
			Price:      pay.Amount,
			Method:     access.MethodYooKassa,
			PaymentID:  pay.ID,
		}, exec)
		return errors.Wrap(err, "granting course access")
	})
	if err != nil {
		return err
	}

	if granted {
		svc.sendPurchaseMail(ctx, pay.UserID, pay.CourseSlug, pay.Amount.StringFixed(2))
	}
	return nil
}

// PurchaseMock grants a course without payment, for local development.
func (svc *service) PurchaseMock(ctx context.Context, userID, slug string) (access.Enrollment, error) {
	if !svc.conf.Debug {
		return access.Enrollment{}, ErrMockDisabled
	}
	course, err := svc.catalog.GetBySlug(slug)
	if err != nil {
		return access.Enrollment{}, err
	}
	enr, created, err := svc.access.Grant(ctx, access.Grant{
		UserID:     userID,
		CourseSlug: course.Slug,
		Price:      course.Price,
		Method:     access.MethodMock,
	})
	if err != nil {
		return access.Enrollment{}, errors.Wrap(err, "granting course access")
	}
	if created {
		svc.sendPurchaseMail(ctx, userID, course.Slug, course.Price.StringFixed(2))
	}
	return enr, nil
}

// sendPurchaseMail is best effort: the purchase is already recorded.
func (svc *service) sendPurchaseMail(ctx context.Context, userID, slug, amount string) {
	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("purchase mail: finding user %s: %v", userID, err), err)
		return
	}
	if !usr.HasMailbox() {
		return
	}
	course, err := svc.catalog.GetBySlug(slug)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("purchase mail: finding course %s: %v", slug, err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Username, Address: usr.Email}},
		Subject:      "Доступ к курсу открыт",
		TemplateName: "purchase",
		TemplateData: map[string]interface{}{
			"Username":    usr.Username,
			"CourseTitle": course.Title,
			"CourseSlug":  course.Slug,
			"Amount":      amount,
		},
	})
}

func (svc *service) Get(ctx context.Context, userID, id string) (Payment, error) {
	pay, err := svc.repo.GetPayment(ctx, GetFilter{ID: id})
	if err != nil {
		return Payment{}, err
	}
	if pay.UserID != userID {
		return Payment{}, ErrNotFound
	}
	return pay, nil
}

func (svc *service) ListForUser(ctx context.Context, userID string) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, userID)
}

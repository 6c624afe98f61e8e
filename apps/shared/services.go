package shared

import (
	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/catalog"
	"github.com/neuromagic/academy/core/lead"
	"github.com/neuromagic/academy/core/learning"
	"github.com/neuromagic/academy/core/payment"
	"github.com/neuromagic/academy/core/user"
	appfs "github.com/neuromagic/academy/fs"
	emailsvc "github.com/neuromagic/academy/services/email"
	"github.com/neuromagic/academy/services/telegram"
	"github.com/neuromagic/academy/services/yookassa"
)

type Services struct {
	Users    user.Service
	Access   access.Service
	Learning learning.Service
	Payments payment.Service
	Leads    *lead.Service
}

// NewServices builds the domain services on top of st.
// Payments and the Telegram notifications are only enabled when configured.
func NewServices(conf *core.Config, st *Storage, cat *catalog.Catalog, mailSvc core.EmailService, logger core.Logger) Services {
	usrSvc := user.NewService(st.DB, st.Users, st.Attempts, mailSvc, conf)
	accessSvc := access.NewService(st.Enrollments, cat)

	var gateway payment.Gateway
	if client := yookassa.NewClient(conf); client != nil {
		gateway = client
	}
	var notifier lead.Notifier
	if n := telegram.NewNotifier(conf); n != nil {
		notifier = n
	}

	return Services{
		Users:    usrSvc,
		Access:   accessSvc,
		Learning: learning.NewService(st.DB, st.Learning, accessSvc, cat),
		Payments: payment.NewService(payment.ServiceDeps{
			DB:      st.DB,
			Repo:    st.Payments,
			Gateway: gateway,
			Access:  accessSvc,
			Catalog: cat,
			Users:   usrSvc,
			MailSvc: mailSvc,
			Logger:  logger,
			Conf:    conf,
		}),
		Leads: lead.NewService(notifier, logger),
	}
}

// NewEmailService parses the email templates and picks Sendgrid when an API key is configured.
func NewEmailService(conf *core.Config, logger core.Logger) (core.EmailService, error) {
	if err := core.ParseEmailTemplates(appfs.FS, conf); err != nil {
		return nil, errors.Wrap(err, "parsing email templates")
	}
	if conf.Debug || conf.Mail.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf), nil
	}
	return emailsvc.NewSendgridService(conf, logger), nil
}

// LoadAssets reads the course catalog and the common passwords list from the embedded files.
func LoadAssets() (*catalog.Catalog, error) {
	cat, err := catalog.Load(appfs.FS, "catalog.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "loading catalog")
	}
	if err = user.LoadCommonPasswords(appfs.FS); err != nil {
		return nil, errors.Wrap(err, "loading common passwords")
	}
	return cat, nil
}

package lead

import (
	"context"
	"fmt"
	"html"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core"
)

var (
	contactTag  = "contact"
	contactText = "leave a telegram handle or a phone number"
)

// Lead is the contact form closing the free quest.
type Lead struct {
	Name        string   `json:"name" validate:"required,notblank,max=100"`
	Telegram    string   `json:"telegram" validate:"max=64"`
	Phone       string   `json:"phone" validate:"omitempty,max=32,e164|numeric"`
	Purpose     string   `json:"purpose" validate:"max=500"`
	Project     string   `json:"project" validate:"max=2000"`
	Recommended []string `json:"recommended" validate:"max=10,dive,slug"`
}

func (l *Lead) Validate(validate *validator.Validate) error {
	l.Name = core.CleanString(l.Name)
	l.Telegram = strings.TrimPrefix(core.CleanString(l.Telegram), "@")
	l.Phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(core.CleanString(l.Phone))
	l.Purpose = core.CleanString(l.Purpose)
	l.Project = core.CleanString(l.Project)
	return validate.Struct(l)
}

// InitValidators registers the lead validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(leadStructValidation, Lead{})
	core.RegisterCustomTranslation(validate, translator, contactTag, contactText)
}

// leadStructValidation checks that one of Telegram or Phone is provided
func leadStructValidation(sl validator.StructLevel) {
	l := sl.Current().Interface().(Lead)
	if l.Telegram == "" && l.Phone == "" {
		sl.ReportError(l.Telegram, "telegram", "Telegram", contactTag, "")
		sl.ReportError(l.Phone, "phone", "Phone", contactTag, "")
	}
}

// Notifier delivers a message to the operators.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Service struct {
	notifier Notifier // nil: leads are only logged
	logger   core.Logger
}

func NewService(notifier Notifier, logger core.Logger) *Service {
	return &Service{notifier: notifier, logger: logger}
}

// Submit hands the lead over to the operators. l must have been validated.
func (svc *Service) Submit(ctx context.Context, l Lead) error {
	text := Format(l)
	if svc.notifier == nil {
		svc.logger.Info("lead received (no notifier configured)", text)
		return nil
	}
	if err := svc.notifier.Notify(ctx, text); err != nil {
		return errors.Wrap(err, "notifying lead")
	}
	return nil
}

// Format renders the lead as a Telegram HTML message.
func Format(l Lead) string {
	var b strings.Builder
	b.WriteString("<b>Новая заявка</b>\n\n")
	writeLine := func(label, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(&b, "<b>%s:</b> %s\n", label, html.EscapeString(value))
		}
	}
	writeLine("Имя", l.Name)
	if l.Telegram != "" {
		writeLine("Telegram", "@"+l.Telegram)
	}
	writeLine("Телефон", l.Phone)
	writeLine("Цель", l.Purpose)
	writeLine("Проект", l.Project)
	writeLine("Рекомендованные курсы", strings.Join(l.Recommended, ", "))
	return strings.TrimSuffix(b.String(), "\n")
}

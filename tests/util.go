package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/catalog"
	"github.com/neuromagic/academy/core/lead"
	"github.com/neuromagic/academy/core/user"
	appfs "github.com/neuromagic/academy/fs"
	logsvc "github.com/neuromagic/academy/services/logger"
)

const TelegramBotToken = "123456:test-bot-token"

// NewConfig returns a configuration usable without any environment.
func NewConfig() *core.Config {
	conf := new(core.Config)
	conf.AppName = "Нейромагия"
	conf.Env = "TEST"
	conf.Build = "test"
	conf.TestMode = true
	conf.SecretKey = "test-secret-key"
	conf.SiteURL = "http://localhost:8000"

	conf.Server.JWTExpirationDelta = 24 * time.Hour
	conf.Server.JWTRefreshExpirationDelta = 7 * 24 * time.Hour

	conf.Auth.EmailCodeTTL = 10 * time.Minute
	conf.Auth.EmailCodeMaxAttempts = 5
	conf.Auth.EmailCodeResendInterval = time.Minute
	conf.Auth.LoginMaxAttempts = 5
	conf.Auth.LoginBlockDuration = 15 * time.Minute
	conf.Auth.LoginResetAfter = 30 * time.Minute
	conf.Auth.TelegramAuthMaxAge = 24 * time.Hour
	conf.Auth.PasswordResetTimeoutDelta = 3 * 24 * time.Hour

	conf.Mail.DefaultFromName = "Нейромагия"
	conf.Mail.DefaultFromEmail = "noreply@test.ru"

	conf.YooKassa.ReturnURL = "http://localhost:8000/payment/success"
	conf.Telegram.BotToken = TelegramBotToken
	return conf
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator(t *testing.T) (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lead.InitValidators(validate, translator)

	if err := user.LoadCommonPasswords(appfs.FS); err != nil {
		t.Fatalf("LoadCommonPasswords(): %v", err)
	}
	return validate, translator
}

// NewLogger returns a silent logger.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)
	return logger
}

func LoadCatalog(t *testing.T) *catalog.Catalog {
	cat, err := catalog.Load(appfs.FS, "catalog.yaml")
	if err != nil {
		t.Fatalf("catalog.Load(): %v", err)
	}
	return cat
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	uname, email, pwd string,
	isActive, isAdmin bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Username:  uname,
		Email:     email,
		AvatarURL: user.DefaultAvatar(uname),
		IsActive:  isActive,
		IsAdmin:   isAdmin,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core"
)

var (
	// errors
	ErrNotFound       = core.NewDomainError(core.ErrNotFound, "user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")

	ErrInvalidCredentials = core.NewValidationError(errors.New("invalid credentials"))
	ErrAccountDeactivated = core.NewDomainError(core.ErrForbidden, "account deactivated")
	ErrLoginBlocked       = core.NewDomainError(core.ErrThrottled, "too many login attempts, try again later")

	ErrVerificationNotFound = core.NewDomainError(core.ErrNotFound, "no pending registration for this email")
	ErrCodeInvalid          = core.NewValidationError(nil, core.FieldError{Field: "code", Error: "invalid code"})
	ErrCodeExpired          = core.NewValidationError(nil, core.FieldError{Field: "code", Error: "code has expired, request a new one"})
	ErrCodeAttemptsExceeded = core.NewDomainError(core.ErrThrottled, "too many wrong codes, request a new one")
	ErrResendTooSoon        = core.NewDomainError(core.ErrThrottled, "a code was sent recently, try again in a minute")

	ErrTelegramDisabled    = core.NewDomainError(core.ErrForbidden, "telegram login is not available")
	ErrTelegramInvalidHash = core.NewValidationError(errors.New("invalid telegram signature"))
	ErrTelegramExpired     = core.NewValidationError(errors.New("telegram authorization has expired"))
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when taken by a user other than excludedUsers.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)

		// CreateVerification stores ev and drops every other pending verification for the same email.
		CreateVerification(ctx context.Context, ev EmailVerification, exec ...core.DBExecutor) (EmailVerification, error)
		// GetPendingVerification returns the latest unverified verification for email, or ErrVerificationNotFound.
		GetPendingVerification(ctx context.Context, email string, exec ...core.DBExecutor) (EmailVerification, error)
		UpdateVerification(ctx context.Context, ev EmailVerification, exec ...core.DBExecutor) (EmailVerification, error)
	}

	// AttemptStore persists failed login counters.
	AttemptStore interface {
		// GetAttempt returns a zero LoginAttempt (with Identifier set) when nothing is stored.
		GetAttempt(ctx context.Context, identifier string) (LoginAttempt, error)
		SaveAttempt(ctx context.Context, la LoginAttempt) error
		ResetAttempts(ctx context.Context, identifier string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		RequestRegistration(ctx context.Context, reg Registration) error
		ConfirmRegistration(ctx context.Context, cr ConfirmRegistration) (User, error)
		ResendCode(ctx context.Context, email string) error
		Authenticate(ctx context.Context, login, pwd, ip string) (User, error)
		TelegramLogin(ctx context.Context, ta TelegramAuth) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, login string) (User, error)
		UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
	}

	service struct {
		db       core.Transactor
		repo     Repository
		attempts AttemptStore
		mailSvc  core.EmailService
		conf     *core.Config
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(db core.Transactor, repo Repository, attempts AttemptStore, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		db:       db,
		repo:     repo,
		attempts: attempts,
		mailSvc:  mailSvc,
		conf:     conf,
	}
}

func now() time.Time { return NowFunc().UTC() }

func (svc *service) tokenGen() resetTokens {
	return newResetTokens(svc.conf.SecretKey, svc.conf.Auth.PasswordResetTimeoutDelta)
}

func (svc *service) loginPolicy() LoginPolicy {
	return LoginPolicy{
		MaxAttempts:   svc.conf.Auth.LoginMaxAttempts,
		BlockDuration: svc.conf.Auth.LoginBlockDuration,
		ResetAfter:    svc.conf.Auth.LoginResetAfter,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	return svc.checkUniqueness(ctx, uname, email, exclUsers)
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email string, exclUsers []User, exec ...core.DBExecutor) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers, exec...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email, nil); err != nil {
		return User{}, err
	}
	t := now()
	usr := User{
		Username:  nu.Username,
		Email:     nu.Email,
		AvatarURL: DefaultAvatar(nu.Username),
		IsActive:  true,
		IsAdmin:   nu.IsAdmin,
		CreatedAt: t,
		UpdatedAt: t,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Registration

func (svc *service) RequestRegistration(ctx context.Context, reg Registration) error {
	if err := svc.checkUniqueness(ctx, reg.Username, reg.Email, nil); err != nil {
		return err
	}

	// hash once, so the plain password never hits the store
	var tmp User
	if err := tmp.SetPassword(reg.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	code, err := generateCode()
	if err != nil {
		return errors.Wrap(err, "generating code")
	}

	t := now()
	ev, err := svc.repo.CreateVerification(ctx, EmailVerification{
		ID:           uuid.New().String(),
		Email:        reg.Email,
		Username:     reg.Username,
		PasswordHash: tmp.PasswordHash,
		Code:         code,
		ExpiresAt:    t.Add(svc.conf.Auth.EmailCodeTTL),
		SentAt:       t,
		CreatedAt:    t,
	})
	if err != nil {
		return errors.Wrap(err, "creating email verification")
	}

	svc.sendVerificationMail(ev)
	return nil
}

func (svc *service) ConfirmRegistration(ctx context.Context, cr ConfirmRegistration) (User, error) {
	ev, err := svc.repo.GetPendingVerification(ctx, cr.Email)
	if err != nil {
		return User{}, err
	}

	t := now()
	switch {
	case ev.Attempts >= svc.conf.Auth.EmailCodeMaxAttempts:
		return User{}, ErrCodeAttemptsExceeded
	case ev.IsExpired(t):
		return User{}, ErrCodeExpired
	}

	if !codesEqual(ev.Code, cr.Code) {
		ev.Attempts++
		if _, err = svc.repo.UpdateVerification(ctx, ev); err != nil {
			return User{}, errors.Wrap(err, "updating email verification")
		}
		if ev.Attempts >= svc.conf.Auth.EmailCodeMaxAttempts {
			return User{}, ErrCodeAttemptsExceeded
		}
		return User{}, ErrCodeInvalid
	}

	var usr User
	err = svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		// somebody may have taken the username/email while the code was in flight
		if err := svc.checkUniqueness(ctx, ev.Username, ev.Email, nil, exec); err != nil {
			return err
		}

		var err error
		usr, err = svc.repo.CreateUser(ctx, User{
			Username:     ev.Username,
			Email:        ev.Email,
			AvatarURL:    DefaultAvatar(ev.Username),
			PasswordHash: ev.PasswordHash,
			IsActive:     true,
			CreatedAt:    t,
			UpdatedAt:    t,
			LastLogin:    t,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating user")
		}

		ev.VerifiedAt = t
		if _, err = svc.repo.UpdateVerification(ctx, ev, exec); err != nil {
			return errors.Wrap(err, "marking email verification used")
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *service) ResendCode(ctx context.Context, email string) error {
	ev, err := svc.repo.GetPendingVerification(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}

	t := now()
	if ok, _ := ev.canResend(t, svc.conf.Auth.EmailCodeResendInterval); !ok {
		return ErrResendTooSoon
	}

	code, err := generateCode()
	if err != nil {
		return errors.Wrap(err, "generating code")
	}
	ev.Code = code
	ev.Attempts = 0
	ev.ExpiresAt = t.Add(svc.conf.Auth.EmailCodeTTL)
	ev.SentAt = t
	if ev, err = svc.repo.UpdateVerification(ctx, ev); err != nil {
		return errors.Wrap(err, "updating email verification")
	}

	svc.sendVerificationMail(ev)
	return nil
}

func (svc *service) sendVerificationMail(ev EmailVerification) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: ev.Username, Address: ev.Email}},
		Subject:      "Код подтверждения регистрации",
		TemplateName: "verification_code",
		TemplateData: map[string]interface{}{
			"Username":   ev.Username,
			"Code":       ev.Code,
			"TTLMinutes": int(svc.conf.Auth.EmailCodeTTL / time.Minute),
		},
	})
}

// Login

// Authenticate checks the credentials of `login` (username or email) coming from `ip`.
// Failed attempts are counted per login+ip; too many of them block the pair for a while.
func (svc *service) Authenticate(ctx context.Context, login, pwd, ip string) (User, error) {
	identifier := AttemptIdentifier(login, ip)
	attempt, err := svc.attempts.GetAttempt(ctx, identifier)
	if err != nil {
		return User{}, errors.Wrap(err, "getting login attempts")
	}
	t := now()
	if attempt.IsBlocked(t) {
		return User{}, ErrLoginBlocked
	}

	usr, err := svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(login, true /* lower */)})
	if err == nil {
		err = usr.CheckPassword(pwd)
	} else if !core.IsKind(err, core.ErrNotFound) {
		return User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err != nil {
		attempt.Identifier = identifier
		if sErr := svc.attempts.SaveAttempt(ctx, attempt.registerFailure(t, svc.loginPolicy())); sErr != nil {
			return User{}, errors.Wrap(sErr, "saving login attempt")
		}
		return User{}, ErrInvalidCredentials
	}

	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	if err = svc.attempts.ResetAttempts(ctx, identifier); err != nil {
		return User{}, errors.Wrap(err, "resetting login attempts")
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *service) TelegramLogin(ctx context.Context, ta TelegramAuth) (User, error) {
	t := now()
	if err := checkTelegramAuth(ta, svc.conf.Telegram.BotToken, svc.conf.Auth.TelegramAuthMaxAge, t); err != nil {
		return User{}, err
	}

	usr, err := svc.repo.GetUser(ctx, GetFilter{TelegramID: ta.ID})
	switch {
	case err == nil:
		if !usr.IsActive {
			return User{}, ErrAccountDeactivated
		}
		usr.TelegramUsername = ta.Username
		usr.LastLogin = t
		usr.UpdatedAt = t
		return svc.repo.UpdateUser(ctx, usr)
	case !core.IsKind(err, core.ErrNotFound):
		return User{}, errors.Wrap(err, "finding user by telegram id")
	}

	uname := svc.telegramUsername(ctx, ta)
	usr = User{
		Username:         uname,
		Email:            telegramEmail(ta.ID),
		TelegramID:       ta.ID,
		TelegramUsername: ta.Username,
		AvatarURL:        ta.PhotoURL,
		IsActive:         true,
		CreatedAt:        t,
		UpdatedAt:        t,
		LastLogin:        t,
	}
	if usr.AvatarURL == "" {
		usr.AvatarURL = DefaultAvatar(uname)
	}
	return svc.repo.CreateUser(ctx, usr)
}

// telegramUsername picks the Telegram handle when usable and free, `tg_<id>` otherwise.
func (svc *service) telegramUsername(ctx context.Context, ta TelegramAuth) string {
	uname := core.CleanString(ta.Username, true /* lower */)
	if uname != "" && usernameRegex.MatchString(uname) {
		if err := svc.repo.CheckUsernameUniqueness(ctx, uname, "", nil); err == nil {
			return uname
		}
	}
	return telegramFallbackUsername(ta.ID)
}

// Password reset

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrAccountDeactivated
	}

	token := svc.tokenGen().make(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Username, Address: usr.Email}},
		Subject:      "Сброс пароля",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Username": usr.Username,
			"UID":      EncodeUID(usr),
			"Token":    token,
		},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return errInvalidToken
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if core.IsKind(err, core.ErrNotFound) {
			return errInvalidToken
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokenGen().check(usr, data.Token); err != nil {
		return err
	}
	// the policy cannot see user attributes before the user is known
	if tag := passwordPolicyViolation(data.Password, usr.Username, usr.Email); tag == pwdAttrSimTag {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: pwdAttrSimText})
	}
	_, err = svc.SetPassword(ctx, usr, data.Password)
	return err
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = now()
	return svc.repo.UpdateUser(ctx, usr)
}

// Profile

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, login string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(login, true /* lower */)})
}

func (svc *service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	usr.AvatarURL = up.AvatarURL
	if usr.AvatarURL == "" {
		usr.AvatarURL = DefaultAvatar(usr.Username)
	}
	usr.UpdatedAt = now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	t := now()
	usr.LastLogin = t
	usr.UpdatedAt = t
	return svc.repo.UpdateUser(ctx, usr)
}

package user

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/neuromagic/academy/core"
)

const defaultAvatarURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	TelegramID       int64     `json:"telegram_id,omitempty"`
	TelegramUsername string    `json:"telegram_username,omitempty"`
	AvatarURL        string    `json:"avatar_url"`
	IsActive         bool      `json:"is_active"`
	IsAdmin          bool      `json:"is_admin"`
	PasswordHash     []byte    `json:"-"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
	LastLogin        time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword fails for users without a usable password (e.g. Telegram-only accounts).
func (u *User) CheckPassword(pwd string) error {
	if len(u.PasswordHash) == 0 {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// Avatar returns AvatarURL or the generated default one.
func (u *User) Avatar() string {
	if u.AvatarURL != "" {
		return u.AvatarURL
	}
	return DefaultAvatar(u.Username)
}

// HasMailbox is false for accounts created through Telegram, whose email is a placeholder.
func (u *User) HasMailbox() bool {
	return !strings.HasSuffix(u.Email, telegramEmailDomain)
}

func DefaultAvatar(username string) string {
	return defaultAvatarURL + url.QueryEscape(username)
}

// EmailVerification is a pending registration, waiting for its emailed code to be confirmed.
type EmailVerification struct {
	ID           string
	Email        string
	Username     string
	PasswordHash []byte
	Code         string
	Attempts     int
	ExpiresAt    time.Time
	SentAt       time.Time
	VerifiedAt   time.Time
	CreatedAt    time.Time
}

func (ev EmailVerification) IsExpired(now time.Time) bool {
	return !now.Before(ev.ExpiresAt)
}

func (ev EmailVerification) IsVerified() bool {
	return !ev.VerifiedAt.IsZero()
}

// LoginAttempt tracks failed logins of one identifier (login name + client IP).
type LoginAttempt struct {
	Identifier    string
	Attempts      int
	LastAttemptAt time.Time
	BlockedUntil  time.Time
}

type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
	TelegramID      int64
}

// NewUser contains information needed to create a new User from the admin tools.
type NewUser struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	IsAdmin  bool   `json:"is_admin"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// Registration is the first step of the email-verified sign up.
type Registration struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

func (r *Registration) Validate(validate *validator.Validate) error {
	r.Username = core.CleanString(r.Username, true /* lower */)
	r.Email = core.CleanString(r.Email, true /* lower */)
	return validate.Struct(r)
}

type ConfirmRegistration struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (cr *ConfirmRegistration) Validate(validate *validator.Validate) error {
	cr.Email = core.CleanString(cr.Email, true /* lower */)
	cr.Code = core.CleanString(cr.Code)
	return validate.Struct(cr)
}

type ResendCode struct {
	Email string `json:"email" validate:"required,email"`
}

func (rc *ResendCode) Validate(validate *validator.Validate) error {
	rc.Email = core.CleanString(rc.Email, true /* lower */)
	return validate.Struct(rc)
}

// TelegramAuth is the payload handed over by the Telegram login widget.
type TelegramAuth struct {
	ID        int64  `json:"id" validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
	AuthDate  int64  `json:"auth_date" validate:"required"`
	Hash      string `json:"hash" validate:"required,hexadecimal"`
}

func (ta *TelegramAuth) Validate(validate *validator.Validate) error {
	ta.Hash = core.CleanString(ta.Hash, true /* lower */)
	return validate.Struct(ta)
}

type UpdateProfile struct {
	AvatarURL string `json:"avatar_url" validate:"omitempty,web_url,max=500"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.AvatarURL = core.CleanString(up.AvatarURL)
	return validate.Struct(up)
}

type ResetUserPassword struct {
	Token    string `json:"token,omitempty" validate:"required"`
	UID      string `json:"uid,omitempty" validate:"required"`
	Password string `json:"password,omitempty" validate:"required"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/neuromagic/academy/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	errInvalidToken = core.NewValidationError(errors.New("invalid token"))
	errTokenExpired = core.NewValidationError(errors.New("token expired"))
)

const resetTokenPurpose = "academy/password-reset"

// EncodeUID hides the raw user ID in reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// resetTokens issues and checks password reset tokens of the form "<issued-at base36>.<signature>".
// The signature covers the password hash and the last login, so a token stops working
// once the password changes or the user logs in.
type resetTokens struct {
	key     []byte
	timeout time.Duration
}

func newResetTokens(secretKey string, timeout time.Duration) resetTokens {
	key := sha256.Sum256([]byte(resetTokenPurpose + ":" + secretKey))
	return resetTokens{key: key[:], timeout: timeout}
}

func (rt resetTokens) make(usr User) string {
	return rt.makeAt(usr, NowFunc().Unix())
}

func (rt resetTokens) makeAt(usr User, issuedAt int64) string {
	ts := strconv.FormatInt(issuedAt, 36)
	return ts + "." + rt.sign(usr, ts)
}

func (rt resetTokens) check(usr User, token string) error {
	ts, sig, ok := strings.Cut(token, ".")
	if !ok || ts == "" || sig == "" {
		return errInvalidToken
	}
	issuedAt, err := strconv.ParseInt(ts, 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(rt.sign(usr, ts))) {
		return errInvalidToken
	}

	issued := time.Unix(issuedAt, 0)
	nowT := NowFunc()
	if issued.After(nowT.Add(time.Minute)) {
		return errInvalidToken
	}
	if nowT.Sub(issued) > rt.timeout {
		return errTokenExpired
	}
	return nil
}

func (rt resetTokens) sign(usr User, ts string) string {
	h := hmac.New(sha256.New, rt.key)
	h.Write([]byte(usr.ID))
	h.Write([]byte{0})
	h.Write(usr.PasswordHash)
	h.Write([]byte{0})
	if !usr.LastLogin.IsZero() {
		h.Write([]byte(usr.LastLogin.UTC().Format(time.RFC3339Nano)))
	}
	h.Write([]byte{0})
	h.Write([]byte(ts))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

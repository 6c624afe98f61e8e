package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	telegramClockSkew   = 60 * time.Second
	telegramEmailDomain = "@telegram.user"
)

// dataCheckString builds the sorted "key=value" lines Telegram signs (every non-empty field but hash).
func (ta TelegramAuth) dataCheckString() string {
	fields := map[string]string{
		"id":        strconv.FormatInt(ta.ID, 10),
		"auth_date": strconv.FormatInt(ta.AuthDate, 10),
	}
	if ta.FirstName != "" {
		fields["first_name"] = ta.FirstName
	}
	if ta.LastName != "" {
		fields["last_name"] = ta.LastName
	}
	if ta.Username != "" {
		fields["username"] = ta.Username
	}
	if ta.PhotoURL != "" {
		fields["photo_url"] = ta.PhotoURL
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	return strings.Join(lines, "\n")
}

// telegramHash is hex(HMAC_SHA256(key=SHA256(botToken), dataCheckString)).
func telegramHash(dataCheckString, botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	h := hmac.New(sha256.New, secret[:])
	_, _ = h.Write([]byte(dataCheckString))
	return hex.EncodeToString(h.Sum(nil))
}

// checkTelegramAuth verifies the widget signature and freshness.
func checkTelegramAuth(ta TelegramAuth, botToken string, maxAge time.Duration, now time.Time) error {
	if botToken == "" {
		return ErrTelegramDisabled
	}
	expected := telegramHash(ta.dataCheckString(), botToken)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(ta.Hash))) {
		return ErrTelegramInvalidHash
	}
	authDate := time.Unix(ta.AuthDate, 0)
	if authDate.After(now.Add(telegramClockSkew)) || now.Sub(authDate) > maxAge {
		return ErrTelegramExpired
	}
	return nil
}

func telegramEmail(id int64) string {
	return strconv.FormatInt(id, 10) + telegramEmailDomain
}

func telegramFallbackUsername(id int64) string {
	return "tg_" + strconv.FormatInt(id, 10)
}

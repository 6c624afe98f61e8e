package testutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/neuromagic/academy/core/user"
)

// TelegramHash signs ta the way the Telegram login widget does.
func TelegramHash(ta user.TelegramAuth, botToken string) string {
	fields := map[string]string{
		"id":         strconv.FormatInt(ta.ID, 10),
		"auth_date":  strconv.FormatInt(ta.AuthDate, 10),
		"first_name": ta.FirstName,
		"last_name":  ta.LastName,
		"username":   ta.Username,
		"photo_url":  ta.PhotoURL,
	}
	lines := make([]string, 0, len(fields))
	for k, v := range fields {
		if v != "" {
			lines = append(lines, k+"="+v)
		}
	}
	sort.Strings(lines)

	secret := sha256.Sum256([]byte(botToken))
	h := hmac.New(sha256.New, secret[:])
	_, _ = h.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"telegram-image-studio/internal/domain/model"
)

var (
	ErrInitDataMissing   = errors.New("init data missing")
	ErrInitDataSignature = errors.New("init data signature mismatch")
	ErrInitDataExpired   = errors.New("init data expired")
)

type initUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// ValidateInitData checks the mini-app launch parameters signed by the bot token
// and returns the user they carry. maxAge <= 0 disables the freshness check.
func ValidateInitData(raw, botToken string, maxAge time.Duration, now time.Time) (model.HostUser, error) {
	vals, err := url.ParseQuery(raw)
	if err != nil || raw == "" {
		return model.HostUser{}, ErrInitDataMissing
	}
	got := vals.Get("hash")
	if got == "" {
		return model.HostUser{}, ErrInitDataSignature
	}

	keys := make([]string, 0, len(vals))
	for k := range vals {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+vals.Get(k))
	}

	secret := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	want := hex.EncodeToString(hmacSHA256(secret, []byte(strings.Join(pairs, "\n"))))
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(got))) {
		return model.HostUser{}, ErrInitDataSignature
	}

	if maxAge > 0 {
		sec, err := strconv.ParseInt(vals.Get("auth_date"), 10, 64)
		if err != nil || now.Sub(time.Unix(sec, 0)) > maxAge {
			return model.HostUser{}, ErrInitDataExpired
		}
	}
	return parseInitUser(vals.Get("user"))
}

// ParseInitDataUnsigned reads the user without checking the signature; dev mode only.
func ParseInitDataUnsigned(raw string) (model.HostUser, error) {
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return model.HostUser{}, ErrInitDataMissing
	}
	return parseInitUser(vals.Get("user"))
}

func parseInitUser(s string) (model.HostUser, error) {
	if s == "" {
		return model.HostUser{}, ErrInitDataMissing
	}
	var u initUser
	if err := json.Unmarshal([]byte(s), &u); err != nil || u.ID == 0 {
		return model.HostUser{}, ErrInitDataMissing
	}
	return model.HostUser{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		LanguageCode: u.LanguageCode,
	}, nil
}

func hmacSHA256(key, msg []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(msg)
	return m.Sum(nil)
}

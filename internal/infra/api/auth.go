package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"telegram-image-studio/internal/domain/model"
)

// ===== Session/JWT primitives =====

type AuthManager struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl}
}

// UserClaims is the webview session. Anonymous is set for dev sessions minted without a host user.
type UserClaims struct {
	FirstName    string `json:"fn,omitempty"`
	LastName     string `json:"ln,omitempty"`
	Username     string `json:"un,omitempty"`
	LanguageCode string `json:"lc,omitempty"`
	Invoices     bool   `json:"inv,omitempty"`
	Anonymous    bool   `json:"anon,omitempty"`
	jwt.RegisteredClaims
}

func (c *UserClaims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

func (c *UserClaims) HostUser() model.HostUser {
	return model.HostUser{
		ID:           c.UserID(),
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Username:     c.Username,
		LanguageCode: c.LanguageCode,
	}
}

func (a *AuthManager) Mint(user model.HostUser, invoices, anonymous bool) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(a.ttl)
	claims := UserClaims{
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Username:     user.Username,
		LanguageCode: user.LanguageCode,
		Invoices:     invoices,
		Anonymous:    anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*UserClaims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	return nil, errors.New("missing token")
}

func (a *AuthManager) parse(tok string) (*UserClaims, error) {
	claims := &UserClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.UserID() == 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

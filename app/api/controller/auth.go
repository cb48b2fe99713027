package controller

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/db/models/ballot"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const sessionCookie = "cv_session"

type ctxKey int

const userKey ctxKey = iota

// ValidateToken checks if the Authorization header contains a valid AdminToken
func (c *Controller) ValidateToken(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	if c.AdminToken == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(c.AdminToken)) == 1
}

// sessionUserID returns the user id carried by a valid session cookie.
func (c *Controller) sessionUserID(r *http.Request) (int64, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return 0, false
	}
	tok, err := jwt.Parse(cookie.Value,
		func(t *jwt.Token) (any, error) { return c.JWTSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !tok.Valid {
		return 0, false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	// numeric claims decode as float64
	uid, ok := claims["uid"].(float64)
	if !ok || uid <= 0 {
		return 0, false
	}
	return int64(uid), true
}

// sessionUser loads the user behind the session cookie. A missing or invalid cookie, or a
// deleted user, yields (nil, nil).
func (c *Controller) sessionUser(r *http.Request) (*ballot.User, error) {
	if u, ok := r.Context().Value(userKey).(*ballot.User); ok {
		return u, nil
	}
	uid, ok := c.sessionUserID(r)
	if !ok {
		return nil, nil
	}
	u, err := c.App.Store.GetUser(r.Context(), uid)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// RequireSession middleware. The loaded user is available to the handler through sessionUser.
func (c *Controller) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := c.sessionUser(r)
		if err != nil {
			c.App.Logger.Error("Failed to load session user", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if u == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// RequireAdmin middleware
func (c *Controller) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.ValidateToken(r) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

// IssueSession issues a session cookie
func (c *Controller) IssueSession(w http.ResponseWriter, u *ballot.User) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": u.Username,
		"uid": u.ID,
		"exp": now.Add(c.SessionTTL).Unix(),
		"iat": now.Unix(),
	})
	ss, err := token.SignedString(c.JWTSecret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    ss,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.SecureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(c.SessionTTL.Seconds()),
	})
	return nil
}

// ClearSession expires the session cookie.
func (c *Controller) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.SecureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

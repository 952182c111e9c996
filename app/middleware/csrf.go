package appMiddleware

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FACorreiaa/go-complaint-auth/internal/api"
	"github.com/FACorreiaa/go-complaint-auth/internal/cache"
	"github.com/FACorreiaa/go-complaint-auth/internal/tokens"
)

const (
	CSRFHeader     = "X-CSRF-Token"
	CSRFCookieName = "csrf_session"
	csrfKeyPrefix  = "csrf:"
	csrfTokenBytes = 32
)

// CSRFTokenResponse is returned by the token endpoint.
type CSRFTokenResponse struct {
	Success   bool   `json:"success" example:"true"`
	CSRFToken string `json:"csrfToken"`
}

// CSRF binds a token to an opaque session cookie and checks it on
// state-changing requests.
type CSRF struct {
	store        cache.Store
	ttl          time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewCSRF(store cache.Store, ttl time.Duration, secureCookie bool, logger *slog.Logger) *CSRF {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CSRF{store: store, ttl: ttl, secureCookie: secureCookie, logger: logger}
}

// IssueToken godoc
// @Summary      CSRF token
// @Description  Issues a CSRF token bound to a session cookie. Send it back in the X-CSRF-Token header.
// @Tags         Security
// @Produce      json
// @Success      200 {object} CSRFTokenResponse
// @Failure      500 {object} api.ErrorBody
// @Router       /csrf-token [get]
func (c *CSRF) IssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := c.logger.With(slog.String("HandlerImpl", "IssueCSRFToken"))

	sessionID := ""
	if ck, err := r.Cookie(CSRFCookieName); err == nil && ck.Value != "" {
		sessionID = ck.Value
	} else {
		id, err := tokens.GenerateSecureToken(csrfTokenBytes)
		if err != nil {
			l.ErrorContext(ctx, "Failed to generate CSRF session", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "internal server error")
			return
		}
		sessionID = id
	}

	token, err := tokens.GenerateSecureToken(csrfTokenBytes)
	if err != nil {
		l.ErrorContext(ctx, "Failed to generate CSRF token", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := c.store.Set(ctx, csrfKeyPrefix+sessionID, []byte(token), c.ttl); err != nil {
		l.ErrorContext(ctx, "Failed to store CSRF token", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	api.WriteJSONResponse(w, r, http.StatusOK, CSRFTokenResponse{Success: true, CSRFToken: token})
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// Protect rejects state-changing requests that carry the session cookie but
// whose X-CSRF-Token header does not match the token stored for it. Requests
// without the cookie (mobile clients) or with a bearer token are not checked.
func (c *CSRF) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if safeMethod(r.Method) || strings.HasPrefix(strings.ToLower(r.Header.Get("Authorization")), "bearer ") {
			next.ServeHTTP(w, r)
			return
		}
		ck, err := r.Cookie(CSRFCookieName)
		if err != nil || ck.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		l := c.logger.With(slog.String("middleware", "CSRF"), slog.String("path", r.URL.Path))

		header := r.Header.Get(CSRFHeader)
		if header == "" {
			l.WarnContext(ctx, "CSRF token missing")
			api.ErrorResponse(w, r, http.StatusForbidden, "CSRF token missing")
			return
		}

		stored, err := c.store.Get(ctx, csrfKeyPrefix+ck.Value)
		if err != nil {
			if !errors.Is(err, cache.ErrMiss) {
				l.ErrorContext(ctx, "CSRF store unavailable", slog.Any("error", err))
			}
			api.ErrorResponse(w, r, http.StatusForbidden, "CSRF token invalid")
			return
		}
		if subtle.ConstantTimeCompare(stored, []byte(header)) != 1 {
			l.WarnContext(ctx, "CSRF token mismatch")
			api.ErrorResponse(w, r, http.StatusForbidden, "CSRF token invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

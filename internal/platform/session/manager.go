package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	DefaultCookieName = "consult_session"
	contextKey        = "session"
)

// Manager loads the caller's session for every request and persists it on
// demand, issuing the signed cookie.
type Manager struct {
	store      Store
	signer     *Signer
	ttl        time.Duration
	cookieName string
	secure     bool
	logger     zerolog.Logger
}

type Option func(*Manager)

// WithSecureCookie marks the cookie Secure; set outside development.
func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(store Store, signer *Signer, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		signer:     signer,
		ttl:        ttl,
		cookieName: DefaultCookieName,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Middleware resolves the session from the cookie. Missing, forged or expired
// cookies yield a fresh, unsaved session; store failures abort the request.
// Only a session loaded from the store is published as "session_id", so
// cookieless clients cannot mint a new rate-limit identity per request.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, stored, err := m.load(c)
			if err != nil {
				m.logger.Error().Err(err).Msg("session store unavailable")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
			}
			c.Set(contextKey, s)
			if stored {
				c.Set("session_id", s.ID)
			}
			return next(c)
		}
	}
}

// load reports whether the session came from the store.
func (m *Manager) load(c echo.Context) (*Session, bool, error) {
	cookie, err := c.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return New(uuid.NewString()), false, nil
	}
	id, err := m.signer.Verify(cookie.Value)
	if err != nil {
		m.logger.Debug().Err(err).Msg("discarding invalid session cookie")
		return New(uuid.NewString()), false, nil
	}
	s, err := m.store.Load(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return New(uuid.NewString()), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Save persists s and refreshes the session cookie.
func (m *Manager) Save(c echo.Context, s *Session) error {
	if err := m.store.Save(c.Request().Context(), s, m.ttl); err != nil {
		return err
	}
	token, err := m.signer.Sign(s.ID, m.ttl)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy drops s from the store and expires the cookie.
func (m *Manager) Destroy(c echo.Context, s *Session) error {
	if err := m.store.Delete(c.Request().Context(), s.ID); err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// FromContext returns the session installed by Middleware.
func FromContext(c echo.Context) (*Session, error) {
	s, ok := c.Get(contextKey).(*Session)
	if !ok || s == nil {
		return nil, fmt.Errorf("session middleware not installed")
	}
	return s, nil
}

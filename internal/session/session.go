// Package session keeps the per-visitor state of the storefront: the basket
// and, once signed in, the user id.
//
// The middleware loads the session into the request context. Handlers that
// change it call Save before writing the response so the cookie is set.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/megano/internal/basket"
)

type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	Path       string
}

func DefaultOptions() Options {
	return Options{
		CookieName: "megano_session",
		TTL:        14 * 24 * time.Hour,
		Path:       "/",
	}
}

type ctxKey struct{}

// Session is the in-request handle. Concurrent requests of one session each
// get their own copy; the last Save wins.
type Session struct {
	id      string
	data    *Data
	store   Store
	opts    Options
	isNew   bool
	changed bool
}

func (s *Session) ID() string { return s.id }

func (s *Session) UserID() int64 { return s.data.UserID }

// Basket returns the session basket, creating an empty one on first use.
func (s *Session) Basket() *basket.Basket {
	if s.data.Basket == nil {
		s.data.Basket = basket.New()
	}
	return s.data.Basket
}

// Login binds the session to userID under a fresh session id.
func (s *Session) Login(ctx context.Context, userID int64) error {
	if !s.isNew {
		if err := s.store.Delete(ctx, s.id); err != nil {
			return err
		}
		id, err := newID()
		if err != nil {
			return err
		}
		s.id = id
	}
	s.data.UserID = userID
	s.changed = true
	return nil
}

// Save persists the session when it or its basket changed and writes the
// cookie.
func (s *Session) Save(ctx context.Context, w http.ResponseWriter) error {
	if !s.changed && (s.data.Basket == nil || !s.data.Basket.Modified()) {
		return nil
	}

	if err := s.store.Save(ctx, s.id, s.data, s.opts.TTL); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    s.id,
		Path:     s.opts.Path,
		MaxAge:   int(s.opts.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	s.changed = false
	s.isNew = false
	return nil
}

// Destroy removes the session and expires the cookie.
func (s *Session) Destroy(ctx context.Context, w http.ResponseWriter) error {
	if err := s.store.Delete(ctx, s.id); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     s.opts.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.data = &Data{}
	s.changed = false
	return nil
}

func newID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return id.String(), nil
}

// Middleware loads the session named by the cookie, or starts a new one when
// the cookie is missing or the stored session expired.
func Middleware(store Store, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := load(r, store, opts)
			if err != nil {
				log.Error().Err(err).Msg("session: failed to load session")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"Failed to load session"}`))
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func load(r *http.Request, store Store, opts Options) (*Session, error) {
	sess := &Session{store: store, opts: opts}

	if cookie, err := r.Cookie(opts.CookieName); err == nil && cookie.Value != "" {
		data, err := store.Load(r.Context(), cookie.Value)
		switch {
		case err == nil:
			sess.id = cookie.Value
			sess.data = data
			return sess, nil
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	sess.id = id
	sess.data = &Data{}
	sess.isNew = true
	return sess, nil
}

// FromContext returns the request session. Outside the middleware it returns
// a detached session backed by a throwaway memory store.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(ctxKey{}).(*Session); ok {
		return s
	}
	id, _ := newID()
	return &Session{id: id, data: &Data{}, store: NewMemoryStore(), opts: DefaultOptions(), isNew: true}
}

// WithSession puts sess into ctx. Used by tests that bypass the middleware.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// New starts an unsaved session on store.
func New(store Store, opts Options) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	return &Session{id: id, data: &Data{}, store: store, opts: opts, isNew: true}, nil
}

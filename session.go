package main

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

// Session keys
const (
	sessionName     = "pollhub"
	sessionClientID = "clientId"
	sessionAuth     = "auth"
	sessionUsername = "username"
	sessionGameID   = "gameId"
)

func newSessionStore(secret string, secure bool, maxAge time.Duration) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// session wraps a cookie session. A nil session reads as empty and refuses
// writes.
type session struct {
	s     *sessions.Session
	dirty bool
}

func newSession(s *sessions.Session) *session {
	return &session{s: s}
}

// get returns ok false when the key is absent, so stored false or 0 values
// are distinguishable from missing ones.
func (s *session) get(key string) (any, bool) {
	if s == nil || s.s == nil {
		return nil, false
	}
	v, ok := s.s.Values[key]
	return v, ok
}

func (s *session) getString(key string) (string, bool) {
	v, ok := s.get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (s *session) set(key string, value any) error {
	if s == nil || s.s == nil {
		return ErrNoSession
	}
	s.s.Values[key] = value
	s.dirty = true
	return nil
}

func (s *session) delete(key string) {
	if s == nil || s.s == nil {
		return
	}
	if _, ok := s.s.Values[key]; ok {
		delete(s.s.Values, key)
		s.dirty = true
	}
}

// save writes the cookie only when something changed, so a long held
// request never overwrites newer session state with a stale copy.
func (s *session) save(r *http.Request, w http.ResponseWriter) error {
	if s == nil || s.s == nil || !s.dirty {
		return nil
	}
	s.dirty = false
	return s.s.Save(r, w)
}

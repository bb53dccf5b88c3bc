// Package flash implements a one-shot notification queue on top of cookie sessions.
// A message is written on one request and consumed exactly once by a later one.
package flash

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

// Message kinds, in consumption precedence order: an alert wins over an
// error, which wins over a success, when several are pending at once.
const (
	KindSuccess = "success"
	KindAlert   = "alert"
	KindError   = "error"
)

var kindPrecedence = []string{KindAlert, KindError, KindSuccess}

// Message is a queued user-facing notification.
type Message struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Store queues flash messages in a client-side cookie session.
type Store struct {
	cookies *sessions.CookieStore
	name    string
}

// NewStore creates a flash store with the given cookie signing secret and cookie name.
func NewStore(secret string, cookieName string) *Store {
	cs := sessions.NewCookieStore([]byte(secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Store{
		cookies: cs,
		name:    cookieName,
	}
}

// Add queues a message for one-time display on a subsequent request.
func (s *Store) Add(w http.ResponseWriter, r *http.Request, kind string, text string) error {
	session, err := s.cookies.Get(r, s.name)
	if err != nil {
		// A stale or tampered cookie decodes into a fresh session; only a
		// save failure below is fatal.
		session, _ = s.cookies.New(r, s.name)
	}
	session.AddFlash(text, kind)
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to save flash message: %w", err)
	}
	return nil
}

// Pop consumes all pending messages and returns the highest-precedence one.
// Returns nil if no message is pending. The session cookie is rewritten so
// consumed messages are never delivered twice.
func (s *Store) Pop(w http.ResponseWriter, r *http.Request) (*Message, error) {
	session, err := s.cookies.Get(r, s.name)
	if err != nil {
		return nil, nil
	}

	var winner *Message
	for _, kind := range kindPrecedence {
		for _, fl := range session.Flashes(kind) {
			text, ok := fl.(string)
			if !ok {
				continue
			}
			if winner == nil {
				winner = &Message{Kind: kind, Text: text}
			}
		}
	}
	if winner == nil {
		return nil, nil
	}
	if err := session.Save(r, w); err != nil {
		return nil, fmt.Errorf("failed to clear flash messages: %w", err)
	}
	return winner, nil
}

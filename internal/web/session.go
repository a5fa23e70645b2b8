package web

import (
	"net/http"

	"github.com/gorilla/securecookie"
)

const sessionCookie = "fieldsched_session"

// SessionCookie binds a browser to its scheduling session id.
type SessionCookie struct{ sc *securecookie.SecureCookie }

func NewSessionCookie(hashKey, blockKey []byte) *SessionCookie {
	return &SessionCookie{sc: securecookie.New(hashKey, blockKey)}
}

func (s *SessionCookie) Set(w http.ResponseWriter, sid string) error {
	encoded, err := s.sc.Encode(sessionCookie, sid)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *SessionCookie) Get(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	var sid string
	if err := s.sc.Decode(sessionCookie, c.Value, &sid); err != nil {
		return "", false
	}
	return sid, sid != ""
}

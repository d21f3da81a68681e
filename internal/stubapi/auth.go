package stubapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CookieName is the session cookie.
const CookieName = "session"

// User is a stub account. A non-empty MFACode makes login a two-step exchange.
type User struct {
	Name     string
	Password string
	MFACode  string
}

// ParseUsers reads a comma separated list of name:password[:mfa] entries.
func ParseUsers(raw string) ([]User, error) {
	var users []User
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("stubapi: invalid user %q (want name:password[:mfa])", item)
		}
		u := User{Name: parts[0], Password: parts[1]}
		if len(parts) == 3 {
			u.MFACode = parts[2]
		}
		users = append(users, u)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("stubapi: no users configured")
	}
	return users, nil
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	name := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	s.mu.Lock()
	u, ok := s.users[name]
	valid := ok && u.Password == password
	if valid && u.MFACode != "" {
		s.pending[name] = true
	}
	s.mu.Unlock()

	if !valid {
		s.Broadcast(LogEvent{Target: "auth", Level: "warning", Message: "failed login for " + name})
		writeError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if u.MFACode != "" {
		writeJSON(w, http.StatusOK, map[string]any{"requireMFA": true, "username": name})
		return
	}

	token := s.startSession(w, name)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"requireMFA":   false,
		"username":     name,
	})
}

func (s *Server) handleMFA(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Code     string `json:"mfa_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	u, ok := s.users[body.Username]
	valid := ok && s.pending[body.Username] && u.MFACode == body.Code
	if valid {
		delete(s.pending, body.Username)
	}
	s.mu.Unlock()

	if !valid {
		writeError(w, http.StatusUnauthorized, "Invalid MFA code")
		return
	}
	token := s.startSession(w, body.Username)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"requireMFA":   false,
		"username":     body.Username,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session valid", "username": user})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil {
		s.mu.Lock()
		user := s.sessions[c.Value]
		delete(s.sessions, c.Value)
		s.mu.Unlock()
		if user != "" {
			s.Broadcast(LogEvent{Target: "auth", Level: "info", Message: user + " logged out"})
		}
	}
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) startSession(w http.ResponseWriter, user string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = user
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.Broadcast(LogEvent{Target: "auth", Level: "info", Message: user + " logged in"})
	return token
}

func (s *Server) sessionUser(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.sessions[c.Value]
	return user, ok
}

package console

import (
	"net/http"
)

func (s *server) loginPage(w http.ResponseWriter, r *http.Request) {
	if s.gate.Check(r.Context(), s.backendSession(r)) {
		http.Redirect(w, r, "/rides/new", http.StatusFound)
		return
	}
	data := s.newPage(r, "Sign in", "login")
	s.render(w, r, s.loginTmpl, data)
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		data := s.newPage(r, "Sign in", "login")
		data.Error = "Invalid form submission."
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, s.loginTmpl, data)
		return
	}

	email := r.PostForm.Get("email")
	cookies, message := s.gate.Login(r.Context(), s.client.Anonymous(), email, r.PostForm.Get("password"))
	if message != "" {
		if r.Context().Err() != nil {
			return
		}
		data := s.newPage(r, "Sign in", "login")
		data.Email = email
		data.Error = message
		s.render(w, r, s.loginTmpl, data)
		return
	}

	for _, c := range cookies {
		if s.secure {
			c.Secure = true
		}
		http.SetCookie(w, c)
	}
	http.Redirect(w, r, "/rides/new", http.StatusSeeOther)
}

// logout asks the backend to end the session and expires the forwarded
// cookies whatever the backend answered.
func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	s.gate.Logout(r.Context(), s.backendSession(r))
	for _, c := range backendCookies(r) {
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.secure,
		})
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

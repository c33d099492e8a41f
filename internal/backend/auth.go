package backend

import (
	"context"
	"io"
	"net/http"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Me reports whether the session is authenticated. Any non-2xx answer is a
// plain "no"; only transport problems come back as errors.
func (s *Session) Me(ctx context.Context) (bool, error) {
	resp, err := s.send(ctx, call{action: "session", method: http.MethodGet, path: "/auth/me"})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

// Login authenticates and returns the cookies the backend set, ready to be
// re-issued by the console on its own origin.
func (s *Session) Login(ctx context.Context, creds Credentials) ([]*http.Cookie, error) {
	resp, err := s.send(ctx, call{
		action: "login",
		method: http.MethodPost,
		path:   "/auth/login",
		body:   creds,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, readAPIError("login", "Login failed", resp.StatusCode, resp.Body, false)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return forwardableCookies(resp.Cookies()), nil
}

// Logout ends the backend session. The answer is informational only.
func (s *Session) Logout(ctx context.Context) error {
	return s.doJSON(ctx, call{
		action:   "logout",
		fallback: "Logout failed",
		method:   http.MethodPost,
		path:     "/auth/logout",
	}, nil)
}

// forwardableCookies drops the Domain attribute so the browser scopes the
// cookie to the console host instead of rejecting it.
func forwardableCookies(cookies []*http.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		copied := *c
		copied.Domain = ""
		copied.Raw = ""
		copied.Unparsed = nil
		if copied.Path == "" {
			copied.Path = "/"
		}
		out = append(out, &copied)
	}
	return out
}

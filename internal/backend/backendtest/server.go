// Package backendtest runs an in-memory ride backend behind httptest for
// tests that exercise the console end to end.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/phillip-england/transitops/internal/pricing"
	"github.com/phillip-england/transitops/internal/rides"
)

const (
	Email      = "ops@example.com"
	Password   = "secret"
	CookieName = "ride_session"
	// CookieDomain is set on the login cookie so callers can check it is
	// stripped before forwarding.
	CookieDomain = "backend.internal"
	sessionValue = "session-token"
)

type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

type EmailRequest struct {
	Ride rides.Ride `json:"ride"`
	To   string     `json:"to"`
}

type failure struct {
	status int
	body   string
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	nextID    int
	rides     []rides.Ride
	prices    []pricing.Entry
	bareArray bool
	failures  map[string]failure
	requests  []Request
	emails    []EmailRequest
	loggedOut bool
}

// New starts a fake backend and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{nextID: 1, failures: map[string]failure{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me", s.authed(s.me))
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("POST /auth/logout", s.logout)
	mux.HandleFunc("GET /prices", s.authed(s.listPrices))
	mux.HandleFunc("POST /rides", s.authed(s.createRide))
	mux.HandleFunc("GET /rides/search", s.authed(s.searchRides))
	mux.HandleFunc("PUT /rides/{id}", s.authed(s.updateRide))
	mux.HandleFunc("POST /pdf/voucher", s.authed(s.voucher))
	mux.HandleFunc("POST /pdf/vouchers", s.authed(s.vouchers))
	mux.HandleFunc("POST /pdf/voucher-email", s.authed(s.voucherEmail))

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// SessionCookie is a cookie the fake accepts as logged in.
func SessionCookie() *http.Cookie {
	return &http.Cookie{Name: CookieName, Value: sessionValue}
}

// Seed stores rides and returns the identifiers assigned to them.
func (s *Server) Seed(list ...rides.Ride) []rides.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]rides.ID, 0, len(list))
	for _, r := range list {
		ids = append(ids, s.insertLocked(r))
	}
	return ids
}

func (s *Server) SetPrices(entries []pricing.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = append([]pricing.Entry(nil), entries...)
}

// SetBareArray switches search answers to a bare JSON array of the page.
func (s *Server) SetBareArray(bare bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bareArray = bare
}

// Fail makes every request to method+path answer status with body.
func (s *Server) Fail(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, body: body}
}

func (s *Server) Ride(id rides.ID) (rides.Ride, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := rides.IndexOf(s.rides, id); i >= 0 {
		return s.rides[i], true
	}
	return rides.Ride{}, false
}

func (s *Server) Rides() []rides.Ride {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rides.Ride(nil), s.rides...)
}

func (s *Server) Emails() []EmailRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EmailRequest(nil), s.emails...)
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent request to path.
func (s *Server) LastRequest(path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

func (s *Server) LoggedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedOut
}

func (s *Server) insertLocked(r rides.Ride) rides.ID {
	r.ID = rides.ID(strconv.Itoa(s.nextID))
	s.nextID++
	s.rides = append(s.rides, r)
	return r.ID
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
		f, failing := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(CookieName)
		if err != nil || c.Value != sessionValue {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
			return
		}
		next(w, r)
	}
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"email": Email})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}
	if creds.Email != Email || creds.Password != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionValue,
		Path:     "/",
		Domain:   CookieDomain,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"email": Email})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.loggedOut = true
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) listPrices(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries := append([]pricing.Entry{}, s.prices...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) createRide(w http.ResponseWriter, r *http.Request) {
	var ride rides.Ride
	if err := json.NewDecoder(r.Body).Decode(&ride); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid ride payload"})
		return
	}
	s.mu.Lock()
	id := s.insertLocked(ride)
	s.mu.Unlock()

	n, _ := strconv.Atoi(id.String())
	writeJSON(w, http.StatusCreated, map[string]int{"id": n})
}

func (s *Server) searchRides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := q.Get("from")
	to := q.Get("to")
	tourOper := strings.TrimSpace(q.Get("tour_oper"))
	sortBy := q.Get("sortBy")
	desc := strings.EqualFold(q.Get("sortDir"), "desc")
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 25
	}

	s.mu.Lock()
	matched := make([]rides.Ride, 0, len(s.rides))
	for _, ride := range s.rides {
		date := rides.DateInputValue(ride.Date)
		if from != "" && date < from {
			continue
		}
		if to != "" && date > to {
			continue
		}
		if tourOper != "" && !strings.EqualFold(strings.TrimSpace(ride.TourOper), tourOper) {
			continue
		}
		matched = append(matched, ride)
	}
	bare := s.bareArray
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := sortKey(matched[i], sortBy), sortKey(matched[j], sortBy)
		if desc {
			return a > b
		}
		return a < b
	})

	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	rows := matched[start:end]

	if bare {
		writeJSON(w, http.StatusOK, rows)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "total": total})
}

func sortKey(r rides.Ride, field string) string {
	switch field {
	case rides.KeyID:
		n, _ := strconv.Atoi(r.ID.String())
		return fmt.Sprintf("%012d", n)
	case rides.KeyTime:
		return rides.TimeInputValue(r.Time)
	default:
		return rides.DateInputValue(r.Date) + " " + rides.TimeInputValue(r.Time)
	}
}

func (s *Server) updateRide(w http.ResponseWriter, r *http.Request) {
	id := rides.ID(r.PathValue("id"))
	var ride rides.Ride
	if err := json.NewDecoder(r.Body).Decode(&ride); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid ride payload"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := rides.IndexOf(s.rides, id)
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Ride not found"})
		return
	}
	ride.ID = id
	s.rides[i] = ride
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) voucher(w http.ResponseWriter, r *http.Request) {
	var ride rides.Ride
	if err := json.NewDecoder(r.Body).Decode(&ride); err != nil {
		http.Error(w, "bad ride", http.StatusBadRequest)
		return
	}
	writePDF(w, "voucher_"+ride.ID.String()+".pdf", "voucher A/A "+ride.ID.String())
}

func (s *Server) vouchers(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Rides []rides.Ride `json:"rides"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad rides", http.StatusBadRequest)
		return
	}
	writePDF(w, "vouchers.pdf", fmt.Sprintf("vouchers x%d", len(payload.Rides)))
}

func (s *Server) voucherEmail(w http.ResponseWriter, r *http.Request) {
	var payload EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid payload"})
		return
	}
	if strings.TrimSpace(payload.To) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Recipient required"})
		return
	}
	s.mu.Lock()
	s.emails = append(s.emails, payload)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writePDF(w http.ResponseWriter, filename, content string) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	_, _ = io.WriteString(w, "%PDF-1.4\n"+content+"\n%%EOF")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

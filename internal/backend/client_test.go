package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/phillip-england/transitops/internal/backend"
	"github.com/phillip-england/transitops/internal/backend/backendtest"
	"github.com/phillip-england/transitops/internal/pricing"
	"github.com/phillip-england/transitops/internal/rides"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) (*backendtest.Server, *backend.Session) {
	t.Helper()
	fake := backendtest.New(t)
	client := backend.New(backend.Config{BaseURL: fake.URL + "/"})
	return fake, client.Session([]*http.Cookie{backendtest.SessionCookie()})
}

func TestMe(t *testing.T) {
	fake, session := newSession(t)

	ok, err := session.Me(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	anon := backend.New(backend.Config{BaseURL: fake.URL}).Anonymous()
	ok, err = anon.Me(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginStripsCookieDomain(t *testing.T) {
	fake := backendtest.New(t)
	anon := backend.New(backend.Config{BaseURL: fake.URL}).Anonymous()

	cookies, err := anon.Login(context.Background(), backend.Credentials{Email: backendtest.Email, Password: backendtest.Password})
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, backendtest.CookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Domain)
	assert.Equal(t, "/", cookies[0].Path)
}

func TestLoginFailureUsesErrorField(t *testing.T) {
	fake := backendtest.New(t)
	anon := backend.New(backend.Config{BaseURL: fake.URL}).Anonymous()

	_, err := anon.Login(context.Background(), backend.Credentials{Email: "x@example.com", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", err.Error())
	assert.True(t, backend.IsStatus(err, http.StatusUnauthorized))

	fake.Fail(http.MethodPost, "/auth/login", http.StatusBadGateway, `{"detail":"ignored for login"}`)
	_, err = anon.Login(context.Background(), backend.Credentials{Email: "x", Password: "y"})
	require.Error(t, err)
	assert.Equal(t, "Login failed (502)", err.Error())
}

func TestUnreachableBackend(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	base := dead.URL
	dead.Close()

	session := backend.New(backend.Config{BaseURL: base, Timeout: time.Second}).Anonymous()
	_, err := session.Prices(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrUnreachable))
	assert.Equal(t, "Cannot reach backend.", err.Error())
}

func TestBreakerOpensAfterTransportFailures(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	base := dead.URL
	dead.Close()

	session := backend.New(backend.Config{
		BaseURL:         base,
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}).Anonymous()

	for i := 0; i < 3; i++ {
		_, err := session.Me(context.Background())
		assert.ErrorIs(t, err, backend.ErrUnreachable)
	}
}

func TestStatusErrorsDoNotTripBreaker(t *testing.T) {
	fake, _ := newSession(t)
	fake.Fail(http.MethodGet, "/prices", http.StatusInternalServerError, `{}`)
	session := backend.New(backend.Config{BaseURL: fake.URL, BreakerFailures: 1}).
		Session([]*http.Cookie{backendtest.SessionCookie()})

	for i := 0; i < 3; i++ {
		_, err := session.Prices(context.Background())
		require.Error(t, err)
		assert.Equal(t, "Could not load prices (500)", err.Error())
		assert.False(t, errors.Is(err, backend.ErrUnreachable))
	}
}

func TestPrices(t *testing.T) {
	fake, session := newSession(t)
	fake.SetPrices([]pricing.Entry{{Destination: "Airport", Tour: "Sunway", Price: "45"}})

	entries, err := session.Prices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pricing.Entry{{Destination: "Airport", Tour: "Sunway", Price: "45"}}, entries)
}

func TestCreateRide(t *testing.T) {
	fake, session := newSession(t)

	id, err := session.CreateRide(context.Background(), rides.Ride{ID: "99", Date: "2026-03-01", Time: "09:00", From: "Airport", To: "Port"})
	require.NoError(t, err)
	assert.Equal(t, rides.ID("1"), id)

	req, ok := fake.LastRequest("/rides")
	require.True(t, ok)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.NotContains(t, sent, "A/A")
	assert.Equal(t, "Airport", sent["FROM"])
}

func TestCreateRideErrorPrefersDetail(t *testing.T) {
	fake, session := newSession(t)
	fake.Fail(http.MethodPost, "/rides", http.StatusUnprocessableEntity, `{"detail":"Bad date","error":"other"}`)
	_, err := session.CreateRide(context.Background(), rides.Ride{})
	require.Error(t, err)
	assert.Equal(t, "Bad date", err.Error())

	fake.Fail(http.MethodPost, "/rides", http.StatusInternalServerError, `not json`)
	_, err = session.CreateRide(context.Background(), rides.Ride{})
	require.Error(t, err)
	assert.Equal(t, "Save failed (500)", err.Error())
}

func TestSearchRidesEnvelope(t *testing.T) {
	fake, session := newSession(t)
	fake.Seed(
		rides.Ride{Date: "2026-03-01", Time: "09:00", TourOper: "Sunway"},
		rides.Ride{Date: "2026-03-02", Time: "10:00", TourOper: "Sunway"},
		rides.Ride{Date: "2026-03-03", Time: "11:00", TourOper: "BlueSky"},
	)

	result, err := session.SearchRides(context.Background(), backend.SearchQuery{
		TourOper: "Sunway",
		SortBy:   rides.KeyDate,
		SortDir:  "desc",
		Page:     1,
		PageSize: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "2026-03-02", result.Rows[0].Date)

	req, ok := fake.LastRequest("/rides/search")
	require.True(t, ok)
	query, err := url.ParseQuery(req.Query)
	require.NoError(t, err)
	assert.Equal(t, "Sunway", query.Get("tour_oper"))
	assert.False(t, query.Has("from"))
	assert.False(t, query.Has("to"))
	assert.Equal(t, "THE_DATE", query.Get("sortBy"))
	assert.Equal(t, "desc", query.Get("sortDir"))
	assert.Equal(t, "1", query.Get("page"))
	assert.Equal(t, "1", query.Get("pageSize"))
}

func TestSearchRidesBareArray(t *testing.T) {
	fake, session := newSession(t)
	fake.Seed(rides.Ride{Date: "2026-03-01"}, rides.Ride{Date: "2026-03-02"}, rides.Ride{Date: "2026-03-03"})
	fake.SetBareArray(true)

	result, err := session.SearchRides(context.Background(), backend.SearchQuery{SortBy: rides.KeyDate, SortDir: "asc", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.Equal(t, 2, result.Total)
}

func TestSearchRidesShapesDecodeAlike(t *testing.T) {
	fake, session := newSession(t)
	fake.Seed(
		rides.Ride{Date: "2026-03-01", Time: "09:00", From: "Airport", To: "Port", Price: "10", Driver: "Nikos"},
		rides.Ride{Date: "2026-03-02", Time: "10:00", From: "Port", To: "Airport", Price: "12.5"},
		rides.Ride{Date: "2026-03-03", Time: "11:00", TourOper: "BlueSky", Info: "late flight"},
	)
	query := backend.SearchQuery{SortBy: rides.KeyID, SortDir: "asc", Page: 1, PageSize: 25}

	envelope, err := session.SearchRides(context.Background(), query)
	require.NoError(t, err)

	fake.SetBareArray(true)
	bare, err := session.SearchRides(context.Background(), query)
	require.NoError(t, err)

	require.Len(t, envelope.Rows, 3)
	assert.Equal(t, envelope.Rows, bare.Rows)
	assert.Equal(t, envelope.Total, bare.Total)
}

func TestSearchRidesTotalStableAcrossPages(t *testing.T) {
	fake, session := newSession(t)
	for i := 0; i < 47; i++ {
		fake.Seed(rides.Ride{Date: "2026-03-01", TourOper: "Sunway"})
	}
	fake.Seed(rides.Ride{Date: "2026-03-01", TourOper: "BlueSky"})

	query := backend.SearchQuery{TourOper: "Sunway", SortBy: rides.KeyID, SortDir: "asc", Page: 1, PageSize: 25}
	first, err := session.SearchRides(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, first.Rows, 25)
	assert.Equal(t, 47, first.Total)

	query.Page = 2
	second, err := session.SearchRides(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, second.Rows, 22)
	assert.Equal(t, 47, second.Total)
	assert.NotEqual(t, first.Rows[0].ID, second.Rows[0].ID)
}

func TestSearchRidesTotalFallsBackToRowCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rows":[{"A/A":1},{"A/A":"2"}]}`))
	}))
	defer srv.Close()

	result, err := backend.New(backend.Config{BaseURL: srv.URL}).Anonymous().
		SearchRides(context.Background(), backend.SearchQuery{Page: 1, PageSize: 25})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, rides.ID("2"), result.Rows[1].ID)
}

func TestUpdateRide(t *testing.T) {
	fake, session := newSession(t)
	ids := fake.Seed(rides.Ride{From: "Airport", Driver: "Nikos"})

	err := session.UpdateRide(context.Background(), ids[0], rides.Ride{ID: ids[0], From: "Port", Driver: "Nikos"})
	require.NoError(t, err)

	stored, ok := fake.Ride(ids[0])
	require.True(t, ok)
	assert.Equal(t, "Port", stored.From)

	req, _ := fake.LastRequest("/rides/" + ids[0].String())
	assert.NotContains(t, string(req.Body), "A/A")

	err = session.UpdateRide(context.Background(), "404", rides.Ride{})
	require.Error(t, err)
	assert.Equal(t, "Ride not found", err.Error())
}

func TestRenderVouchers(t *testing.T) {
	fake, session := newSession(t)

	doc, err := session.RenderVoucher(context.Background(), rides.Ride{ID: "7"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "voucher_7.pdf", doc.Filename)
	assert.Contains(t, string(doc.Data), "voucher A/A 7")

	doc, err = session.RenderVouchers(context.Background(), []rides.Ride{{ID: "1"}, {ID: "2"}})
	require.NoError(t, err)
	assert.Contains(t, string(doc.Data), "vouchers x2")

	fake.Fail(http.MethodPost, "/pdf/voucher", http.StatusInternalServerError, `{"detail":"boom"}`)
	_, err = session.RenderVoucher(context.Background(), rides.Ride{ID: "7"})
	require.Error(t, err)
	assert.Equal(t, "Voucher request failed (500)", err.Error())
}

func TestEmailVoucher(t *testing.T) {
	fake, session := newSession(t)

	require.NoError(t, session.EmailVoucher(context.Background(), rides.Ride{ID: "3"}, "guest@example.com"))
	emails := fake.Emails()
	require.Len(t, emails, 1)
	assert.Equal(t, "guest@example.com", emails[0].To)
	assert.Equal(t, rides.ID("3"), emails[0].Ride.ID)

	fake.Fail(http.MethodPost, "/pdf/voucher-email", http.StatusBadGateway, `{}`)
	err := session.EmailVoucher(context.Background(), rides.Ride{ID: "3"}, "guest@example.com")
	require.Error(t, err)
	assert.Equal(t, "Email request failed (502)", err.Error())
}

func TestCancelledContext(t *testing.T) {
	_, session := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := session.Prices(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, backend.ErrUnreachable))
}

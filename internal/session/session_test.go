package session

import (
	"context"
	"net/http"
	"testing"

	"github.com/phillip-england/transitops/internal/backend"
	"github.com/phillip-england/transitops/internal/backend/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	fake := backendtest.New(t)
	client := backend.New(backend.Config{BaseURL: fake.URL})

	assert.True(t, Gate{}.Check(context.Background(), client.Session([]*http.Cookie{backendtest.SessionCookie()})))
	assert.False(t, Gate{}.Check(context.Background(), client.Anonymous()))

	fake.Fail(http.MethodGet, "/auth/me", http.StatusInternalServerError, `{}`)
	assert.False(t, Gate{}.Check(context.Background(), client.Session([]*http.Cookie{backendtest.SessionCookie()})))
}

func TestCheckUnreachable(t *testing.T) {
	client := backend.New(backend.Config{BaseURL: "http://127.0.0.1:1"})
	assert.False(t, Gate{}.Check(context.Background(), client.Anonymous()))
}

func TestLoginRequiresBothFields(t *testing.T) {
	fake := backendtest.New(t)
	client := backend.New(backend.Config{BaseURL: fake.URL})

	cookies, msg := Gate{}.Login(context.Background(), client.Anonymous(), "  ", "pw")
	assert.Nil(t, cookies)
	assert.Equal(t, "Please enter email and password.", msg)

	_, msg = Gate{}.Login(context.Background(), client.Anonymous(), backendtest.Email, "")
	assert.Equal(t, "Please enter email and password.", msg)
	assert.Empty(t, fake.Requests(), "no backend call without credentials")
}

func TestLogin(t *testing.T) {
	fake := backendtest.New(t)
	client := backend.New(backend.Config{BaseURL: fake.URL})

	cookies, msg := Gate{}.Login(context.Background(), client.Anonymous(), " "+backendtest.Email+" ", backendtest.Password)
	assert.Empty(t, msg)
	require.Len(t, cookies, 1)

	_, msg = Gate{}.Login(context.Background(), client.Anonymous(), backendtest.Email, "wrong")
	assert.Equal(t, "Invalid email or password", msg)

	unreachable := backend.New(backend.Config{BaseURL: "http://127.0.0.1:1"})
	_, msg = Gate{}.Login(context.Background(), unreachable.Anonymous(), backendtest.Email, backendtest.Password)
	assert.Equal(t, "Cannot reach backend.", msg)
}

func TestLogout(t *testing.T) {
	fake := backendtest.New(t)
	client := backend.New(backend.Config{BaseURL: fake.URL})

	Gate{}.Logout(context.Background(), client.Session([]*http.Cookie{backendtest.SessionCookie()}))
	assert.True(t, fake.LoggedOut())

	Gate{}.Logout(context.Background(), backend.New(backend.Config{BaseURL: "http://127.0.0.1:1"}).Anonymous())
}

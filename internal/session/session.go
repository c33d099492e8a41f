// Package session decides whether the browser holds a live backend session
// and runs login/logout against the backend.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/phillip-england/transitops/internal/backend"
	"github.com/phillip-england/transitops/internal/logger"
	"go.uber.org/zap"
)

const missingCredentials = "Please enter email and password."

// Backend is the slice of the backend session the gate needs.
type Backend interface {
	Me(ctx context.Context) (bool, error)
	Login(ctx context.Context, creds backend.Credentials) ([]*http.Cookie, error)
	Logout(ctx context.Context) error
}

type Gate struct{}

// Check reports whether api is authenticated. Errors of any kind read as
// "not authenticated".
func (Gate) Check(ctx context.Context, api Backend) bool {
	ok, err := api.Me(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Debug("session check failed", zap.Error(err))
		}
		return false
	}
	return ok
}

// Login returns the cookies to forward on success, or the message to show
// next to the login form.
func (Gate) Login(ctx context.Context, api Backend, email, password string) ([]*http.Cookie, string) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, missingCredentials
	}

	cookies, err := api.Login(ctx, backend.Credentials{Email: email, Password: password})
	if err != nil {
		logger.Info("login rejected", zap.String("email", email), zap.Error(err))
		return nil, err.Error()
	}
	return cookies, ""
}

// Logout is best effort: the caller clears its cookies whatever happens.
func (Gate) Logout(ctx context.Context, api Backend) {
	if err := api.Logout(ctx); err != nil {
		logger.Warn("logout request failed", zap.Error(err))
	}
}

package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mercura-io/storefront-backend/api/middleware"
	"github.com/mercura-io/storefront-backend/internal/cart"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
)

// CallerIdentity reads the shopper identity the middleware resolved. A
// signed-in user wins over a guest session when both are present.
func CallerIdentity(r *http.Request) (cart.Identity, error) {
	ctx := r.Context()

	if raw := middleware.UserIDFromContext(ctx); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return cart.Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
		}
		return cart.User(userID), nil
	}

	if sessionID := middleware.SessionIDFromContext(ctx); sessionID != "" {
		return cart.Guest(sessionID), nil
	}

	return cart.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in or supply a session id")
}

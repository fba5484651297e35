package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/microcommerce-backend/api/middleware"
	"github.com/angelmondragon/microcommerce-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
)

// identityFromRequest builds the cart identity from the auth and session middleware.
func identityFromRequest(r *http.Request) (cart.Identity, error) {
	identity := cart.Identity{SessionKey: middleware.SessionKeyFromContext(r.Context())}
	if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
		uid, err := uuid.Parse(raw)
		if err != nil {
			return cart.Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
		}
		identity.UserID = &uid
	}
	return identity, nil
}

func requireUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeAuthRequired, "authentication required")
	}
	uid, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return uid, nil
}

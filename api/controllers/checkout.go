package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/microcommerce-backend/api/responses"
	"github.com/angelmondragon/microcommerce-backend/api/validators"
	"github.com/angelmondragon/microcommerce-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
)

type checkoutRequest struct {
	Email string `json:"email" validate:"omitempty,email,max=254"`
}

// Checkout converts the caller's cart into a paid order.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		identity, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), checkout.CheckoutInput{
			Identity: identity,
			Email:    strings.TrimSpace(payload.Email),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mercura-io/storefront-backend/api/responses"
	"github.com/mercura-io/storefront-backend/api/validators"
	"github.com/mercura-io/storefront-backend/internal/bundle"
	"github.com/mercura-io/storefront-backend/internal/catalog"
	"github.com/mercura-io/storefront-backend/internal/inventory"
	"github.com/mercura-io/storefront-backend/internal/pricing"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
	"github.com/mercura-io/storefront-backend/pkg/logger"
	"github.com/mercura-io/storefront-backend/pkg/types"
)

// ProductDetail returns one product with its variations, addons, and
// bundle items.
func ProductDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProductDetail(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

type productAvailabilityBody struct {
	Configuration types.ProductConfiguration `json:"configuration"`
}

// ProductAvailability answers how many units of a configured product
// can currently be bought. Bundles report the binding minimum across
// their members; plain products report option-level free stock.
func ProductAvailability(svc catalog.Service, stock inventory.Service, bundles bundle.Composer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || stock == nil || bundles == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "availability services unavailable"))
			return
		}

		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body productAvailabilityBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if product.IsBundle {
			result, err := bundles.CheckBundleAvailability(r.Context(), productID, body.Configuration)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, result)
			return
		}

		result, err := stock.CheckAvailability(r.Context(), productID, body.Configuration)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type productQuoteBody struct {
	Quantity      int                        `json:"quantity" validate:"required,min=1,max=100"`
	Configuration types.ProductConfiguration `json:"configuration"`
}

// ProductQuote prices a configuration without touching any cart.
func ProductQuote(calc pricing.Calculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "price calculator unavailable"))
			return
		}

		productID, err := parseProductID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body productQuoteBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := calc.Calculate(r.Context(), productID, body.Configuration, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quote)
	}
}

func parseProductID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	productID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return productID, nil
}

package maps

import (
	"context"
	"strings"

	"servitec_backend/platform/apperr"
	"servitec_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const (
	msgQueryTooShort = "el parámetro 'q' es obligatorio (mínimo 3 caracteres)"
	msgLookupDown    = "el servicio de direcciones no está disponible"
)

// AddressSearcher returns address suggestions for free text.
type AddressSearcher interface {
	SearchAddress(ctx context.Context, query string) ([]AddressSuggestion, error)
}

type Handler struct {
	search AddressSearcher
}

func NewHandler(search AddressSearcher) *Handler {
	return &Handler{search: search}
}

// LookupAddress handles GET /api/v1/maps/address-lookup?q=...
func (h *Handler) LookupAddress(c *gin.Context) {
	var req LookupRequest
	if err := c.ShouldBindQuery(&req); err != nil || len([]rune(strings.TrimSpace(req.Query))) < minQueryLength {
		httpkit.HandleError(c, apperr.Validation(msgQueryTooShort))
		return
	}

	results, err := h.search.SearchAddress(c.Request.Context(), strings.TrimSpace(req.Query))
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindUnavailable, msgLookupDown, err).WithOp("maps.LookupAddress"))
		return
	}
	httpkit.OK(c, results)
}

package person

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/pkg/pagination"
)

// Handler provides the FHIR Person endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the Person routes on the FHIR group.
func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/Person", h.SearchFHIR)
	fhirGroup.POST("/Person/_search", h.SearchFHIR)
	fhirGroup.GET("/Person/:id", h.GetFHIR)
}

func (h *Handler) GetFHIR(c echo.Context) error {
	p, err := h.svc.GetByUUID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fhir.ErrorResponse(c, err, "Person", c.Param("id"))
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SearchFHIR(c echo.Context) error {
	q, err := fhir.SearchValues(c)
	if err != nil {
		return fhir.ErrorResponse(c, err, "Person", "")
	}
	params, err := ParseSearchParams(q)
	if err != nil {
		return fhir.ErrorResponse(c, err, "Person", "")
	}
	pg := pagination.FromValues(q)
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return fhir.ErrorResponse(c, err, "Person", "")
	}
	return fhir.SearchResponse(c, items, total, pg, q)
}

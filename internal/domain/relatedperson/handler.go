package relatedperson

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/pkg/pagination"
)

// Handler provides the FHIR RelatedPerson endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the RelatedPerson routes on the FHIR group.
func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/RelatedPerson", h.SearchFHIR)
	fhirGroup.POST("/RelatedPerson/_search", h.SearchFHIR)
	fhirGroup.GET("/RelatedPerson/:id", h.GetFHIR)
	fhirGroup.POST("/RelatedPerson", h.CreateFHIR)
	fhirGroup.PUT("/RelatedPerson/:id", h.UpdateFHIR)
}

func (h *Handler) GetFHIR(c echo.Context) error {
	rp, err := h.svc.GetByUUID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fhir.ErrorResponse(c, err, "RelatedPerson", c.Param("id"))
	}
	return c.JSON(http.StatusOK, rp)
}

func (h *Handler) SearchFHIR(c echo.Context) error {
	q, err := fhir.SearchValues(c)
	if err != nil {
		return fhir.ErrorResponse(c, err, "RelatedPerson", "")
	}
	params, err := ParseSearchParams(q)
	if err != nil {
		return fhir.ErrorResponse(c, err, "RelatedPerson", "")
	}
	pg := pagination.FromValues(q)
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return fhir.ErrorResponse(c, err, "RelatedPerson", "")
	}
	return fhir.SearchResponse(c, items, total, pg, q)
}

func (h *Handler) CreateFHIR(c echo.Context) error {
	var rp fhir.RelatedPerson
	if err := c.Bind(&rp); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid JSON: "+err.Error()))
	}
	created, err := h.svc.Save(c.Request().Context(), &rp)
	if err != nil {
		return fhir.ErrorResponse(c, err, "RelatedPerson", "")
	}
	c.Response().Header().Set("Location", "/fhir/RelatedPerson/"+created.ID)
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateFHIR(c echo.Context) error {
	var rp fhir.RelatedPerson
	if err := c.Bind(&rp); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid JSON: "+err.Error()))
	}
	updated, err := h.svc.Update(c.Request().Context(), &rp, c.Param("id"))
	if err != nil {
		return fhir.ErrorResponse(c, err, "RelatedPerson", c.Param("id"))
	}
	return c.JSON(http.StatusOK, updated)
}

package allergy

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/pkg/pagination"
)

// Handler provides the FHIR AllergyIntolerance endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/AllergyIntolerance", h.SearchFHIR)
	fhirGroup.POST("/AllergyIntolerance/_search", h.SearchFHIR)
	fhirGroup.GET("/AllergyIntolerance/:id", h.GetFHIR)
	fhirGroup.POST("/AllergyIntolerance", h.CreateFHIR)
	fhirGroup.PUT("/AllergyIntolerance/:id", h.UpdateFHIR)
}

func (h *Handler) GetFHIR(c echo.Context) error {
	a, err := h.svc.GetByUUID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fhir.ErrorResponse(c, err, "AllergyIntolerance", c.Param("id"))
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SearchFHIR(c echo.Context) error {
	q, err := fhir.SearchValues(c)
	if err != nil {
		return fhir.ErrorResponse(c, err, "AllergyIntolerance", "")
	}
	params, err := ParseSearchParams(q)
	if err != nil {
		return fhir.ErrorResponse(c, err, "AllergyIntolerance", "")
	}
	pg := pagination.FromValues(q)
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return fhir.ErrorResponse(c, err, "AllergyIntolerance", "")
	}
	return fhir.SearchResponse(c, items, total, pg, q)
}

func (h *Handler) CreateFHIR(c echo.Context) error {
	var r fhir.AllergyIntolerance
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid JSON: "+err.Error()))
	}
	created, err := h.svc.Save(c.Request().Context(), &r)
	if err != nil {
		return fhir.ErrorResponse(c, err, "AllergyIntolerance", "")
	}
	c.Response().Header().Set("Location", "/fhir/AllergyIntolerance/"+created.ID)
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateFHIR(c echo.Context) error {
	var r fhir.AllergyIntolerance
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid JSON: "+err.Error()))
	}
	updated, err := h.svc.Update(c.Request().Context(), &r, c.Param("id"))
	if err != nil {
		return fhir.ErrorResponse(c, err, "AllergyIntolerance", c.Param("id"))
	}
	return c.JSON(http.StatusOK, updated)
}

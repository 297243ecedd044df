package medication

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/pkg/pagination"
)

// Handler provides the FHIR Medication endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the Medication routes on the FHIR group.
func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/Medication", h.SearchFHIR)
	fhirGroup.POST("/Medication/_search", h.SearchFHIR)
	fhirGroup.GET("/Medication/:id", h.GetFHIR)
	fhirGroup.POST("/Medication", h.CreateFHIR)
	fhirGroup.PUT("/Medication/:id", h.UpdateFHIR)
}

func (h *Handler) GetFHIR(c echo.Context) error {
	r, err := h.svc.GetByUUID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fhir.ErrorResponse(c, err, "Medication", c.Param("id"))
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) SearchFHIR(c echo.Context) error {
	q, err := fhir.SearchValues(c)
	if err != nil {
		return fhir.ErrorResponse(c, err, "Medication", "")
	}
	params := ParseSearchParams(q)
	pg := pagination.FromValues(q)
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return fhir.ErrorResponse(c, err, "Medication", "")
	}
	return fhir.SearchResponse(c, items, total, pg, q)
}

func (h *Handler) CreateFHIR(c echo.Context) error {
	var r fhir.Medication
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid JSON: "+err.Error()))
	}
	created, err := h.svc.Save(c.Request().Context(), &r)
	if err != nil {
		return fhir.ErrorResponse(c, err, "Medication", "")
	}
	c.Response().Header().Set("Location", "/fhir/Medication/"+created.ID)
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateFHIR(c echo.Context) error {
	var r fhir.Medication
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid JSON: "+err.Error()))
	}
	updated, err := h.svc.Update(c.Request().Context(), &r, c.Param("id"))
	if err != nil {
		return fhir.ErrorResponse(c, err, "Medication", c.Param("id"))
	}
	return c.JSON(http.StatusOK, updated)
}

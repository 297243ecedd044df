package encounter

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
	"github.com/ehr/fhirbridge/pkg/pagination"
)

// Handler provides the FHIR Encounter endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the Encounter routes on the FHIR group.
func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/Encounter", h.SearchFHIR)
	fhirGroup.POST("/Encounter/_search", h.SearchFHIR)
	fhirGroup.GET("/Encounter/:id", h.GetFHIR)
	fhirGroup.GET("/Encounter/:id/_history", h.HistoryFHIR)
	fhirGroup.POST("/Encounter", h.CreateFHIR)
	fhirGroup.PUT("/Encounter/:id", h.UpdateFHIR)
}

func (h *Handler) GetFHIR(c echo.Context) error {
	r, err := h.svc.GetByUUID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fhir.ErrorResponse(c, err, "Encounter", c.Param("id"))
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) HistoryFHIR(c echo.Context) error {
	entries, err := h.svc.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fhir.ErrorResponse(c, err, "Encounter", c.Param("id"))
	}
	return c.JSON(http.StatusOK, fhir.NewHistoryBundle(entries))
}

func (h *Handler) SearchFHIR(c echo.Context) error {
	q, err := fhir.SearchValues(c)
	if err != nil {
		return fhir.ErrorResponse(c, err, "Encounter", "")
	}
	params, err := ParseSearchParams(q)
	if err != nil {
		return fhir.ErrorResponse(c, err, "Encounter", "")
	}
	pg := pagination.FromValues(q)
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return fhir.ErrorResponse(c, err, "Encounter", "")
	}
	return fhir.SearchResponse(c, items, total, pg, q)
}

func (h *Handler) CreateFHIR(c echo.Context) error {
	var r fhir.Encounter
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid JSON: "+err.Error()))
	}
	created, err := h.svc.Save(c.Request().Context(), &r)
	if err != nil {
		return fhir.ErrorResponse(c, err, "Encounter", "")
	}
	c.Response().Header().Set("Location", "/fhir/Encounter/"+created.ID)
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateFHIR(c echo.Context) error {
	var r fhir.Encounter
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid JSON: "+err.Error()))
	}
	updated, err := h.svc.Update(c.Request().Context(), &r, c.Param("id"))
	if err != nil {
		return fhir.ErrorResponse(c, err, "Encounter", c.Param("id"))
	}
	return c.JSON(http.StatusOK, updated)
}

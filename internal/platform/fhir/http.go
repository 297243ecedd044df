package fhir

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirbridge/internal/platform/search"
	"github.com/ehr/fhirbridge/pkg/pagination"
)

// SearchValues returns the search parameters of a request: the query string,
// plus the form body of a POST _search.
func SearchValues(c echo.Context) (url.Values, error) {
	q := url.Values{}
	for k, vs := range c.QueryParams() {
		q[k] = append(q[k], vs...)
	}
	if c.Request().Method != http.MethodPost {
		return q, nil
	}
	form, err := c.FormParams()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrInvalidParameter, err)
	}
	for k, vs := range form {
		if _, inQuery := c.QueryParams()[k]; inQuery {
			continue
		}
		q[k] = append(q[k], vs...)
	}
	return q, nil
}

// SearchResponse writes one page of matches as a searchset Bundle with
// paging links relative to the resource type's search endpoint.
func SearchResponse[R Resource](c echo.Context, resources []R, total int, pg pagination.Params, filters url.Values) error {
	base := strings.TrimSuffix(c.Request().URL.Path, "/_search")
	return c.JSON(http.StatusOK, NewSearchBundle(resources, total, pg.Links(base, filters, total)))
}

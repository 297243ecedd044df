package fhir

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirbridge/internal/platform/search"
	"github.com/ehr/fhirbridge/pkg/pagination"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get allergy: %w", ErrNotFound), http.StatusNotFound},
		{ErrIDMismatch, http.StatusBadRequest},
		{ErrMissingID, http.StatusBadRequest},
		{fmt.Errorf("%w: bad chain", search.ErrInvalidParameter), http.StatusBadRequest},
		{&ValidationError{Err: errors.New("x")}, http.StatusBadRequest},
		{fmt.Errorf("search allergy: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestValidate_RequiresPatient(t *testing.T) {
	err := Validate(&AllergyIntolerance{ResourceType: "AllergyIntolerance"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Patient") {
		t.Errorf("expected message to name Patient, got %q", err.Error())
	}
}

func TestValidate_WrongResourceType(t *testing.T) {
	err := Validate(&Medication{ResourceType: "Patient"})
	if err == nil {
		t.Fatal("expected validation error for wrong resourceType")
	}
}

func TestValidate_Valid(t *testing.T) {
	r := &RelatedPerson{
		ResourceType: "RelatedPerson",
		Patient:      NewReference("Patient", "abc", ""),
		Gender:       "female",
	}
	if err := Validate(r); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewSearchBundle(t *testing.T) {
	meds := []*Medication{{ResourceType: "Medication", ID: "m1"}, {ResourceType: "Medication", ID: "m2"}}
	links := []pagination.Link{{Relation: "self", URL: "/fhir/Medication?_count=20&_offset=0"}}

	b := NewSearchBundle(meds, 7, links)

	if b.Type != "searchset" || *b.Total != 7 {
		t.Errorf("unexpected bundle header: type=%s total=%d", b.Type, *b.Total)
	}
	if len(b.Entry) != 2 || b.Entry[1].FullURL != "Medication/m2" {
		t.Fatalf("unexpected entries: %+v", b.Entry)
	}
	if b.Entry[0].Search.Mode != "match" {
		t.Errorf("expected search mode match, got %s", b.Entry[0].Search.Mode)
	}
}

func TestNewHistoryBundle(t *testing.T) {
	b := NewHistoryBundle([]*Provenance{{ResourceType: "Provenance", ID: "p1"}})
	if b.Type != "history" || *b.Total != 1 || b.Entry[0].FullURL != "Provenance/p1" {
		t.Errorf("unexpected history bundle: %+v", b)
	}
}

func TestReferenceID(t *testing.T) {
	cases := map[string]string{
		"Patient/123":               "123",
		"http://x/fhir/Patient/abc": "abc",
		"abc":                       "abc",
	}
	for in, want := range cases {
		if got := ReferenceID(&Reference{Reference: in}); got != want {
			t.Errorf("ReferenceID(%q) = %q, want %q", in, got, want)
		}
	}
	if ReferenceID(nil) != "" {
		t.Error("expected empty id for nil reference")
	}
}

func TestErrorResponse_NotFound(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := ErrorResponse(c, ErrNotFound, "Encounter", "e1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Encounter/e1 not found") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestJSONSerializer_RoundTrip(t *testing.T) {
	e := echo.New()
	e.JSONSerializer = JSONSerializer{}

	body := `{"resourceType":"Medication","id":"m1","status":"active"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var m Medication
	if err := c.Bind(&m); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if m.ID != "m1" || m.Status != "active" {
		t.Errorf("unexpected medication: %+v", m)
	}

	if err := c.JSON(http.StatusOK, &m); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"active"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestJSONSerializer_SyntaxError(t *testing.T) {
	e := echo.New()
	e.JSONSerializer = JSONSerializer{}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var m Medication
	err := c.Bind(&m)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 HTTPError, got %v", err)
	}
}

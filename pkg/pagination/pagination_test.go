package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	p := FromContext(c)

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_FHIRParams(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?_count=25&_offset=5", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	p := FromContext(c)

	if p.Limit != 25 {
		t.Errorf("expected limit 25, got %d", p.Limit)
	}
	if p.Offset != 5 {
		t.Errorf("expected offset 5, got %d", p.Offset)
	}
}

func TestFromValues_Clamps(t *testing.T) {
	p := FromValues(url.Values{"_count": {"500"}, "_offset": {"-3"}})
	if p.Limit != MaxLimit {
		t.Errorf("expected limit %d, got %d", MaxLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestLinks_FirstPage(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	links := p.Links("/fhir/Encounter", url.Values{"subject": {"Patient/1"}, "_count": {"10"}}, 25)

	if len(links) != 2 {
		t.Fatalf("expected self and next, got %d links", len(links))
	}
	if links[0].URL != "/fhir/Encounter?_count=10&_offset=0&subject=Patient%2F1" {
		t.Errorf("unexpected self link: %s", links[0].URL)
	}
	if links[1].Relation != "next" || links[1].URL != "/fhir/Encounter?_count=10&_offset=10&subject=Patient%2F1" {
		t.Errorf("unexpected next link: %+v", links[1])
	}
}

func TestLinks_LastPage(t *testing.T) {
	p := Params{Limit: 10, Offset: 20}
	links := p.Links("/fhir/Medication", nil, 25)

	if len(links) != 2 {
		t.Fatalf("expected self and previous, got %d links", len(links))
	}
	if links[1].Relation != "previous" || links[1].URL != "/fhir/Medication?_count=10&_offset=10" {
		t.Errorf("unexpected previous link: %+v", links[1])
	}
}

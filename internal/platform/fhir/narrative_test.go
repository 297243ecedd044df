package fhir

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}

func assertNotContains(t *testing.T, s, substr string) {
	t.Helper()
	if strings.Contains(s, substr) {
		t.Errorf("expected %q to NOT contain %q", s, substr)
	}
}

func watson() *Person {
	return &Person{
		ResourceType: "Person",
		ID:           "1234567789",
		Active:       Bool(true),
		Name:         []HumanName{{Family: "Watson", Given: []string{"John"}, Prefix: []string{"Dr."}, Suffix: []string{"Jr."}}},
		Gender:       "male",
		BirthDate:    "1966-02-01",
		Telecom:      []ContactPoint{{ID: "54321-54321-54321-54321", Value: "1234567890"}},
		Address:      []Address{{Line: []string{"#123", "New building, pleasant street"}, City: "Reykjavík", Country: "Iceland", PostalCode: "123456"}},
		Link:         []PersonLink{{Target: &Reference{Reference: "Patient/12345-12345-12345-12345", Display: "Patient Full name"}}},
	}
}

func TestNarrative_Person(t *testing.T) {
	text := NewNarrativeGenerator().Generate(watson())
	if text == nil || text.Status != NarrativeGenerated {
		t.Fatalf("expected generated narrative, got %+v", text)
	}
	assertContains(t, text.Div, `<div xmlns="http://www.w3.org/1999/xhtml">`)
	assertContains(t, text.Div, "<b>Person:</b> Watson, Dr. John Jr.")
	assertContains(t, text.Div, "<b>Gender:</b> male | <b>DOB:</b> 1966-02-01")
	assertContains(t, text.Div, "<b>Contact:</b> 1234567890")
	assertContains(t, text.Div, "Reykjavík")
	assertContains(t, text.Div, "<b>Link:</b> Patient Full name (Patient/12345-12345-12345-12345)")
}

func TestNarrative_Person_MissingName(t *testing.T) {
	text := NewNarrativeGenerator().Generate(&Person{ID: "p1"})
	assertContains(t, text.Div, "<b>Person:</b> (unknown)")
	assertNotContains(t, text.Div, "Gender")
}

func TestNarrative_EscapesHTML(t *testing.T) {
	p := &Person{Name: []HumanName{{Family: "<script>alert(1)</script>"}}}
	text := NewNarrativeGenerator().Generate(p)
	assertNotContains(t, text.Div, "<script>")
	assertContains(t, text.Div, "&lt;script&gt;")
}

func TestNarrative_RelatedPerson(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rp := &RelatedPerson{
		Name:         []HumanName{{Family: "Doe", Given: []string{"Jane"}}},
		Patient:      &Reference{Reference: "Patient/p1", Display: "John Doe"},
		Relationship: []CodeableConcept{{Text: "Sibling"}},
		Active:       Bool(true),
		Period:       &Period{Start: &start},
	}
	text := NewNarrativeGenerator().Generate(rp)
	assertContains(t, text.Div, "<b>Related Person:</b> Doe, Jane")
	assertContains(t, text.Div, "<b>Relationship:</b> Sibling")
	assertContains(t, text.Div, "<b>Patient:</b> John Doe (Patient/p1)")
	assertContains(t, text.Div, "<b>Period:</b> 2020-01-01T00:00:00Z to ?")
}

func TestNarrative_AllergyIntolerance(t *testing.T) {
	a := &AllergyIntolerance{
		Code:           &CodeableConcept{Coding: []Coding{{Code: "71617AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", Display: "Penicillin"}}},
		ClinicalStatus: &CodeableConcept{Coding: []Coding{{Code: "active"}}},
		Criticality:    "high",
		Category:       []string{"medication"},
		Reaction:       []AllergyReaction{{Manifestation: []CodeableConcept{{Text: "Rash"}}, Severity: "severe"}},
		Patient:        &Reference{Reference: "Patient/p1"},
	}
	text := NewNarrativeGenerator().Generate(a)
	assertContains(t, text.Div, "<b>Allergy:</b> Penicillin")
	assertContains(t, text.Div, "<b>Clinical Status:</b> active | <b>Criticality:</b> high")
	assertContains(t, text.Div, "<b>Category:</b> medication")
	assertContains(t, text.Div, "<b>Reaction:</b> Rash (severe)")
	assertContains(t, text.Div, "<b>Patient:</b> Patient/p1")
}

func TestNarrative_Encounter(t *testing.T) {
	start := time.Date(2021, 3, 4, 9, 0, 0, 0, time.UTC)
	e := &Encounter{
		Status:      "unknown",
		Class:       &Coding{Code: "AMB"},
		Subject:     &Reference{Reference: "Patient/p1", Display: "John Doe"},
		Period:      &Period{Start: &start},
		Location:    []EncounterLocation{{Location: &Reference{Reference: "Location/l1", Display: "Ward 1"}}},
		Participant: []EncounterParticipant{{Individual: &Reference{Reference: "Practitioner/pr1"}}},
	}
	text := NewNarrativeGenerator().Generate(e)
	assertContains(t, text.Div, "<b>Encounter:</b> AMB")
	assertContains(t, text.Div, "<b>Subject:</b> John Doe (Patient/p1)")
	assertContains(t, text.Div, "<b>Period:</b> 2021-03-04T09:00:00Z to ?")
	assertContains(t, text.Div, "<b>Location:</b> Ward 1 (Location/l1)")
	assertContains(t, text.Div, "<b>Participant:</b> Practitioner/pr1")
}

func TestNarrative_Medication(t *testing.T) {
	m := &Medication{
		Code:       &CodeableConcept{Text: "Aspirin 81mg"},
		Form:       &CodeableConcept{Coding: []Coding{{Code: "TAB", Display: "Tablet"}}},
		Status:     "active",
		Ingredient: []MedicationIngredient{{ItemCodeableConcept: &CodeableConcept{Text: "Acetylsalicylic acid"}}},
	}
	text := NewNarrativeGenerator().Generate(m)
	assertContains(t, text.Div, "<b>Medication:</b> Aspirin 81mg")
	assertContains(t, text.Div, "<b>Form:</b> Tablet")
	assertContains(t, text.Div, "<b>Ingredients:</b> Acetylsalicylic acid")
}

func TestNarrative_UnregisteredType(t *testing.T) {
	if NewNarrativeGenerator().Generate(&Provenance{ID: "x"}) != nil {
		t.Error("expected no narrative for an unregistered type")
	}
	if NewNarrativeGenerator().Generate(nil) != nil {
		t.Error("expected no narrative for nil")
	}
}

func TestNarrative_InjectNarrative_KeepsAdditional(t *testing.T) {
	p := watson()
	p.Text = &Narrative{Status: NarrativeAdditional, Div: "<div>custom</div>"}
	NewNarrativeGenerator().InjectNarrative(p)
	if p.Text.Div != "<div>custom</div>" {
		t.Errorf("expected client narrative kept, got %s", p.Text.Div)
	}
}

func TestNarrative_InjectNarrative_OverwritesGenerated(t *testing.T) {
	p := watson()
	p.Text = &Narrative{Status: NarrativeGenerated, Div: "<div>stale</div>"}
	NewNarrativeGenerator().InjectNarrative(p)
	assertContains(t, p.Text.Div, "Watson")
}

func TestNarrative_Inject_BundleEntries(t *testing.T) {
	b := NewSearchBundle([]*Person{watson(), {ID: "p2", Name: []HumanName{{Family: "Holmes"}}}}, 2, nil)
	NewNarrativeGenerator().Inject(b)
	for i, e := range b.Entry {
		p := e.Resource.(*Person)
		if p.Text == nil || p.Text.Status != NarrativeGenerated {
			t.Errorf("entry %d: expected generated narrative", i)
		}
	}
	assertContains(t, b.Entry[1].Resource.(*Person).Text.Div, "Holmes")
}

func TestJSONSerializer_InjectsNarrative(t *testing.T) {
	e := echo.New()
	e.JSONSerializer = JSONSerializer{Narratives: NewNarrativeGenerator()}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/Person/1234567789", nil), rec)
	if err := c.JSON(http.StatusOK, watson()); err != nil {
		t.Fatalf("json: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	text, ok := body["text"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected text element, got %s", rec.Body.String())
	}
	if text["status"] != NarrativeGenerated {
		t.Errorf("expected status generated, got %v", text["status"])
	}
	div, _ := text["div"].(string)
	assertContains(t, div, "<b>Person:</b> Watson")

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/Person/1234567789?_narrative=none", nil), rec)
	if err := c.JSON(http.StatusOK, watson()); err != nil {
		t.Fatalf("json: %v", err)
	}
	assertNotContains(t, rec.Body.String(), `"text"`)
}

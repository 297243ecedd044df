package fhir

import (
	"fmt"
	"html"
	"strings"
	"time"
)

const xhtmlOpen = `<div xmlns="http://www.w3.org/1999/xhtml">`

// Narrative statuses.
const (
	NarrativeGenerated  = "generated"
	NarrativeExtensions = "extensions"
	NarrativeAdditional = "additional"
	NarrativeEmpty      = "empty"
)

type Narrative struct {
	Status string `json:"status"`
	Div    string `json:"div"`
}

// Narrated is a resource that carries a text element.
type Narrated interface {
	Resource
	Narrative() *Narrative
	SetNarrative(n *Narrative)
}

// NarrativeFunc renders the XHTML div for one resource type.
type NarrativeFunc func(r Resource) (string, error)

// NarrativeGenerator produces human-readable XHTML narratives for resources.
type NarrativeGenerator struct {
	generators map[string]NarrativeFunc
}

// NewNarrativeGenerator returns a generator with the built-in Person,
// RelatedPerson, AllergyIntolerance, Encounter and Medication narratives.
func NewNarrativeGenerator() *NarrativeGenerator {
	g := &NarrativeGenerator{generators: make(map[string]NarrativeFunc)}
	g.RegisterGenerator("Person", narrativePerson)
	g.RegisterGenerator("RelatedPerson", narrativeRelatedPerson)
	g.RegisterGenerator("AllergyIntolerance", narrativeAllergyIntolerance)
	g.RegisterGenerator("Encounter", narrativeEncounter)
	g.RegisterGenerator("Medication", narrativeMedication)
	return g
}

// RegisterGenerator registers or replaces the narrative for resourceType.
func (g *NarrativeGenerator) RegisterGenerator(resourceType string, fn NarrativeFunc) {
	g.generators[resourceType] = fn
}

// Generate returns the generated text element for r, or nil when no
// generator is registered for its type or the generator fails.
func (g *NarrativeGenerator) Generate(r Resource) *Narrative {
	if r == nil {
		return nil
	}
	fn, ok := g.generators[r.ResourceName()]
	if !ok {
		return nil
	}
	div, err := fn(r)
	if err != nil || div == "" {
		return nil
	}
	return &Narrative{Status: NarrativeGenerated, Div: div}
}

// InjectNarrative sets the text element of r. Text with status
// "additional" or "extensions" was authored by a client and is kept.
func (g *NarrativeGenerator) InjectNarrative(r Resource) {
	n, ok := r.(Narrated)
	if !ok {
		return
	}
	if existing := n.Narrative(); existing != nil {
		if existing.Status == NarrativeAdditional || existing.Status == NarrativeExtensions {
			return
		}
	}
	if text := g.Generate(n); text != nil {
		n.SetNarrative(text)
	}
}

// Inject adds narratives to a single resource or to every entry of a Bundle.
// Other values are left alone.
func (g *NarrativeGenerator) Inject(v interface{}) {
	switch t := v.(type) {
	case *Bundle:
		for i := range t.Entry {
			if t.Entry[i].Resource != nil {
				g.InjectNarrative(t.Entry[i].Resource)
			}
		}
	case Resource:
		g.InjectNarrative(t)
	}
}

func narrativePerson(r Resource) (string, error) {
	p, ok := r.(*Person)
	if !ok {
		return "", fmt.Errorf("narrative: expected Person, got %T", r)
	}
	var b strings.Builder
	b.WriteString(xhtmlOpen)
	b.WriteString(fmt.Sprintf("<p><b>Person:</b> %s</p>", nameOrUnknown(p.Name)))
	writeDemographics(&b, p.Gender, p.BirthDate)
	if p.Active != nil {
		b.WriteString(fmt.Sprintf("<p><b>Active:</b> %t</p>", *p.Active))
	}
	if telecoms := contactPoints(p.Telecom); telecoms != "" {
		b.WriteString(fmt.Sprintf("<p><b>Contact:</b> %s</p>", telecoms))
	}
	if addr := firstAddress(p.Address); addr != "" {
		b.WriteString(fmt.Sprintf("<p><b>Address:</b> %s</p>", addr))
	}
	for _, l := range p.Link {
		if ref := referenceText(l.Target); ref != "" {
			b.WriteString(fmt.Sprintf("<p><b>Link:</b> %s</p>", ref))
		}
	}
	b.WriteString("</div>")
	return b.String(), nil
}

func narrativeRelatedPerson(r Resource) (string, error) {
	rp, ok := r.(*RelatedPerson)
	if !ok {
		return "", fmt.Errorf("narrative: expected RelatedPerson, got %T", r)
	}
	var b strings.Builder
	b.WriteString(xhtmlOpen)
	b.WriteString(fmt.Sprintf("<p><b>Related Person:</b> %s</p>", nameOrUnknown(rp.Name)))
	if len(rp.Relationship) > 0 {
		if text := conceptText(&rp.Relationship[0]); text != "" {
			b.WriteString(fmt.Sprintf("<p><b>Relationship:</b> %s</p>", text))
		}
	}
	if ref := referenceText(rp.Patient); ref != "" {
		b.WriteString(fmt.Sprintf("<p><b>Patient:</b> %s</p>", ref))
	}
	writeDemographics(&b, rp.Gender, rp.BirthDate)
	if rp.Active != nil {
		b.WriteString(fmt.Sprintf("<p><b>Active:</b> %t</p>", *rp.Active))
	}
	if period := periodText(rp.Period); period != "" {
		b.WriteString(fmt.Sprintf("<p><b>Period:</b> %s</p>", period))
	}
	b.WriteString("</div>")
	return b.String(), nil
}

func narrativeAllergyIntolerance(r Resource) (string, error) {
	a, ok := r.(*AllergyIntolerance)
	if !ok {
		return "", fmt.Errorf("narrative: expected AllergyIntolerance, got %T", r)
	}
	var b strings.Builder
	b.WriteString(xhtmlOpen)
	if text := conceptText(a.Code); text != "" {
		b.WriteString(fmt.Sprintf("<p><b>Allergy:</b> %s</p>", text))
	}

	clinicalStatus := ""
	if a.ClinicalStatus != nil && len(a.ClinicalStatus.Coding) > 0 {
		clinicalStatus = a.ClinicalStatus.Coding[0].Code
	}
	if clinicalStatus != "" || a.Criticality != "" {
		b.WriteString("<p>")
		if clinicalStatus != "" {
			b.WriteString(fmt.Sprintf("<b>Clinical Status:</b> %s", html.EscapeString(clinicalStatus)))
		}
		if clinicalStatus != "" && a.Criticality != "" {
			b.WriteString(" | ")
		}
		if a.Criticality != "" {
			b.WriteString(fmt.Sprintf("<b>Criticality:</b> %s", html.EscapeString(a.Criticality)))
		}
		b.WriteString("</p>")
	}
	if len(a.Category) > 0 {
		b.WriteString(fmt.Sprintf("<p><b>Category:</b> %s</p>", html.EscapeString(strings.Join(a.Category, ", "))))
	}
	for _, re := range a.Reaction {
		var manifestations []string
		for i := range re.Manifestation {
			if text := conceptText(&re.Manifestation[i]); text != "" {
				manifestations = append(manifestations, text)
			}
		}
		if len(manifestations) == 0 && re.Severity == "" {
			continue
		}
		b.WriteString("<p><b>Reaction:</b> ")
		b.WriteString(strings.Join(manifestations, ", "))
		if re.Severity != "" {
			b.WriteString(fmt.Sprintf(" (%s)", html.EscapeString(re.Severity)))
		}
		b.WriteString("</p>")
	}
	if ref := referenceText(a.Patient); ref != "" {
		b.WriteString(fmt.Sprintf("<p><b>Patient:</b> %s</p>", ref))
	}
	b.WriteString("</div>")
	return b.String(), nil
}

func narrativeEncounter(r Resource) (string, error) {
	e, ok := r.(*Encounter)
	if !ok {
		return "", fmt.Errorf("narrative: expected Encounter, got %T", r)
	}
	var b strings.Builder
	b.WriteString(xhtmlOpen)
	if e.Class != nil && e.Class.Code != "" {
		b.WriteString(fmt.Sprintf("<p><b>Encounter:</b> %s</p>", html.EscapeString(e.Class.Code)))
	}
	if e.Status != "" {
		b.WriteString(fmt.Sprintf("<p><b>Status:</b> %s</p>", html.EscapeString(e.Status)))
	}
	if ref := referenceText(e.Subject); ref != "" {
		b.WriteString(fmt.Sprintf("<p><b>Subject:</b> %s</p>", ref))
	}
	if period := periodText(e.Period); period != "" {
		b.WriteString(fmt.Sprintf("<p><b>Period:</b> %s</p>", period))
	}
	for _, l := range e.Location {
		if ref := referenceText(l.Location); ref != "" {
			b.WriteString(fmt.Sprintf("<p><b>Location:</b> %s</p>", ref))
		}
	}
	for _, p := range e.Participant {
		if ref := referenceText(p.Individual); ref != "" {
			b.WriteString(fmt.Sprintf("<p><b>Participant:</b> %s</p>", ref))
		}
	}
	b.WriteString("</div>")
	return b.String(), nil
}

func narrativeMedication(r Resource) (string, error) {
	m, ok := r.(*Medication)
	if !ok {
		return "", fmt.Errorf("narrative: expected Medication, got %T", r)
	}
	var b strings.Builder
	b.WriteString(xhtmlOpen)
	if text := conceptText(m.Code); text != "" {
		b.WriteString(fmt.Sprintf("<p><b>Medication:</b> %s</p>", text))
	}
	if text := conceptText(m.Form); text != "" {
		b.WriteString(fmt.Sprintf("<p><b>Form:</b> %s</p>", text))
	}
	if m.Status != "" {
		b.WriteString(fmt.Sprintf("<p><b>Status:</b> %s</p>", html.EscapeString(m.Status)))
	}
	var ingredients []string
	for _, in := range m.Ingredient {
		if text := conceptText(in.ItemCodeableConcept); text != "" {
			ingredients = append(ingredients, text)
		}
	}
	if len(ingredients) > 0 {
		b.WriteString(fmt.Sprintf("<p><b>Ingredients:</b> %s</p>", strings.Join(ingredients, ", ")))
	}
	b.WriteString("</div>")
	return b.String(), nil
}

func writeDemographics(b *strings.Builder, gender, birthDate string) {
	if gender == "" && birthDate == "" {
		return
	}
	b.WriteString("<p>")
	if gender != "" {
		b.WriteString(fmt.Sprintf("<b>Gender:</b> %s", html.EscapeString(gender)))
	}
	if gender != "" && birthDate != "" {
		b.WriteString(" | ")
	}
	if birthDate != "" {
		b.WriteString(fmt.Sprintf("<b>DOB:</b> %s", html.EscapeString(birthDate)))
	}
	b.WriteString("</p>")
}

// nameOrUnknown renders the first name as "family, given", escaped.
func nameOrUnknown(names []HumanName) string {
	if len(names) == 0 {
		return "(unknown)"
	}
	n := names[0]
	parts := make([]string, 0, len(n.Prefix)+len(n.Given)+len(n.Suffix))
	parts = append(parts, n.Prefix...)
	parts = append(parts, n.Given...)
	parts = append(parts, n.Suffix...)
	given := strings.Join(parts, " ")
	switch {
	case n.Family != "" && given != "":
		return html.EscapeString(n.Family + ", " + given)
	case n.Family != "":
		return html.EscapeString(n.Family)
	case given != "":
		return html.EscapeString(given)
	}
	return "(unknown)"
}

func contactPoints(cps []ContactPoint) string {
	var out []string
	for _, cp := range cps {
		switch {
		case cp.System != "" && cp.Value != "":
			out = append(out, html.EscapeString(cp.System+": "+cp.Value))
		case cp.Value != "":
			out = append(out, html.EscapeString(cp.Value))
		}
	}
	return strings.Join(out, ", ")
}

func firstAddress(addrs []Address) string {
	if len(addrs) == 0 {
		return ""
	}
	a := addrs[0]
	var parts []string
	for _, l := range a.Line {
		if l != "" {
			parts = append(parts, l)
		}
	}
	for _, v := range []string{a.City, strings.TrimSpace(a.State + " " + a.PostalCode), a.Country} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return html.EscapeString(strings.Join(parts, ", "))
}

// conceptText prefers the text, then the first coding display, then its code.
func conceptText(cc *CodeableConcept) string {
	if cc == nil {
		return ""
	}
	if cc.Text != "" {
		return html.EscapeString(cc.Text)
	}
	for _, c := range cc.Coding {
		if c.Display != "" {
			return html.EscapeString(c.Display)
		}
	}
	if len(cc.Coding) > 0 {
		return html.EscapeString(cc.Coding[0].Code)
	}
	return ""
}

// referenceText renders "display (Type/id)", or whichever half is present.
func referenceText(ref *Reference) string {
	if ref == nil {
		return ""
	}
	switch {
	case ref.Display != "" && ref.Reference != "":
		return html.EscapeString(ref.Display + " (" + ref.Reference + ")")
	case ref.Display != "":
		return html.EscapeString(ref.Display)
	}
	return html.EscapeString(ref.Reference)
}

func periodText(p *Period) string {
	if p == nil || (p.Start == nil && p.End == nil) {
		return ""
	}
	format := func(t *time.Time) string {
		if t == nil {
			return "?"
		}
		return t.Format(time.RFC3339)
	}
	return html.EscapeString(format(p.Start) + " to " + format(p.End))
}

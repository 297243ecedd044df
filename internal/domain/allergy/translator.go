package allergy

import (
	"github.com/ehr/fhirbridge/internal/domain/concept"
	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

const (
	clinicalStatusSystem = "http://terminology.hl7.org/CodeSystem/allergyintolerance-clinical"

	// SeverityConceptExtension carries a severity concept that is not one of
	// the configured severities.
	SeverityConceptExtension = "http://fhir.openmrs.org/ext/allergy-intolerance/severity"

	criticalityUnableToAssess = "unable-to-assess"
)

var criticality = map[Severity]string{
	SeverityMild:     "low",
	SeverityModerate: "low",
	SeveritySevere:   "high",
	SeverityOther:    criticalityUnableToAssess,
}

// Translator maps an Allergy to an AllergyIntolerance. Severities are
// recognized through the aliases resolved for the current call.
type Translator struct {
	Severities SeverityAliases
}

var _ fhir.Translator[Allergy, fhir.AllergyIntolerance] = Translator{}

func (t Translator) ToFHIR(a *Allergy) *fhir.AllergyIntolerance {
	if a == nil {
		return nil
	}
	created := a.DateCreated
	updated := a.LastUpdated()
	out := &fhir.AllergyIntolerance{
		ResourceType:   "AllergyIntolerance",
		ID:             a.UUID,
		Meta:           &fhir.Meta{LastUpdated: &updated},
		ClinicalStatus: clinicalStatus(a.Voided),
		Type:           "allergy",
		Code:           allergenCode(a.Allergen),
		RecordedDate:   &created,
	}
	if a.DateCreated.IsZero() {
		out.RecordedDate = nil
	}
	if c := a.Allergen.Type.Category(); c != CategoryOther {
		out.Category = []string{string(c)}
	}
	if a.Patient != nil {
		out.Patient = fhir.NewReference("Patient", a.Patient.UUID, a.Patient.PreferredName().Display())
	}
	if a.Creator != "" {
		out.Recorder = &fhir.Reference{Type: "Practitioner", Display: a.Creator}
	}
	if a.Comment != "" {
		out.Note = []fhir.Annotation{{Text: a.Comment}}
	}

	var severity Severity
	var hasSeverity bool
	if a.Severity != nil {
		severity, hasSeverity = t.Severities.SeverityOf(a.Severity.UUID)
	}
	if hasSeverity {
		out.Criticality = criticality[severity]
	} else if a.Severity != nil {
		out.Extension = []fhir.Extension{{
			URL:                  SeverityConceptExtension,
			ValueCodeableConcept: concept.CodingTranslator{}.ToFHIR(a.Severity),
		}}
	}

	if len(a.Reactions) > 0 || hasSeverity {
		r := fhir.AllergyReaction{Manifestation: []fhir.CodeableConcept{}}
		for _, re := range a.Reactions {
			if cc := reactionCode(re); cc != nil {
				r.Manifestation = append(r.Manifestation, *cc)
			}
		}
		if hasSeverity && severity != SeverityOther {
			r.Severity = string(severity)
		}
		out.Reaction = []fhir.AllergyReaction{r}
	}
	return out
}

// ToInternal applies r to a copy of existing. Concepts and the patient come
// back as references to be resolved against the store.
func (t Translator) ToInternal(existing *Allergy, r *fhir.AllergyIntolerance) *Allergy {
	if r == nil {
		return existing
	}
	out := &Allergy{Allergen: Allergen{Type: AllergenOther}}
	if existing != nil {
		*out = *existing
	}
	if r.ID != "" {
		out.UUID = r.ID
	}
	if r.ClinicalStatus != nil {
		for _, c := range r.ClinicalStatus.Coding {
			switch c.Code {
			case "active":
				out.Voided = false
			case "inactive":
				out.Voided = true
			}
		}
	}
	if len(r.Category) > 0 {
		if c, ok := ParseCategory(r.Category[0]); ok {
			out.Allergen.Type = CategoryToAllergenType[c]
		}
	}
	if r.Code != nil {
		if hasCode(r.Code) {
			out.Allergen.CodedAllergen = concept.CodingTranslator{}.ToInternal(out.Allergen.CodedAllergen, r.Code)
			out.Allergen.NonCodedAllergen = ""
		} else if r.Code.Text != "" {
			out.Allergen.CodedAllergen = nil
			out.Allergen.NonCodedAllergen = r.Code.Text
		}
	}
	if uuid := fhir.ReferenceID(r.Patient); uuid != "" {
		if out.Patient == nil || out.Patient.UUID != uuid {
			out.Patient = &person.Person{UUID: uuid}
		}
	}
	if len(r.Note) > 0 {
		out.Comment = r.Note[0].Text
	}
	if severity := t.severityToInternal(out.Severity, r); severity != nil {
		out.Severity = severity
	}
	if len(r.Reaction) > 0 {
		out.Reactions = reactionsToInternal(out.Reactions, r.Reaction[0].Manifestation)
	}
	return out
}

// severityToInternal reads the severity from the reaction, then from the
// severity concept extension, then from an unable-to-assess criticality.
// It returns nil when r names no severity.
func (t Translator) severityToInternal(existing *concept.Concept, r *fhir.AllergyIntolerance) *concept.Concept {
	if len(r.Reaction) > 0 {
		if s, ok := ParseSeverity(r.Reaction[0].Severity); ok {
			if uuid, ok := t.Severities.ConceptUUID(s); ok {
				return &concept.Concept{UUID: uuid}
			}
		}
	}
	for _, ext := range r.Extension {
		if ext.URL == SeverityConceptExtension && ext.ValueCodeableConcept != nil {
			return concept.CodingTranslator{}.ToInternal(existing, ext.ValueCodeableConcept)
		}
	}
	if r.Criticality == criticalityUnableToAssess {
		if uuid, ok := t.Severities.ConceptUUID(SeverityOther); ok {
			return &concept.Concept{UUID: uuid}
		}
	}
	return nil
}

func clinicalStatus(voided bool) *fhir.CodeableConcept {
	code, display := "active", "Active"
	if voided {
		code, display = "inactive", "Inactive"
	}
	return &fhir.CodeableConcept{
		Coding: []fhir.Coding{{System: clinicalStatusSystem, Code: code, Display: display}},
		Text:   display,
	}
}

func allergenCode(a Allergen) *fhir.CodeableConcept {
	cc := concept.CodingTranslator{}.ToFHIR(a.CodedAllergen)
	if a.NonCodedAllergen == "" {
		return cc
	}
	if cc == nil {
		return &fhir.CodeableConcept{Text: a.NonCodedAllergen}
	}
	cc.Text = a.NonCodedAllergen
	return cc
}

func reactionCode(r Reaction) *fhir.CodeableConcept {
	cc := concept.CodingTranslator{}.ToFHIR(r.Reaction)
	if r.NonCodedReaction == "" {
		return cc
	}
	if cc == nil {
		return &fhir.CodeableConcept{Text: r.NonCodedReaction}
	}
	cc.Text = r.NonCodedReaction
	return cc
}

// reactionsToInternal keeps stored reactions whose concept is named again,
// so their identities survive an update.
func reactionsToInternal(existing []Reaction, manifestations []fhir.CodeableConcept) []Reaction {
	out := make([]Reaction, 0, len(manifestations))
	for i := range manifestations {
		m := &manifestations[i]
		if !hasCode(m) {
			if m.Text != "" {
				out = append(out, Reaction{NonCodedReaction: m.Text})
			}
			continue
		}
		ref := concept.CodingTranslator{}.ToInternal(nil, m)
		re := Reaction{Reaction: ref}
		for _, e := range existing {
			if e.Reaction != nil && ref.UUID != "" && e.Reaction.UUID == ref.UUID {
				re = e
				break
			}
		}
		out = append(out, re)
	}
	return out
}

func hasCode(cc *fhir.CodeableConcept) bool {
	for _, c := range cc.Coding {
		if c.Code != "" {
			return true
		}
	}
	return false
}

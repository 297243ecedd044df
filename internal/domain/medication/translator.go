package medication

import (
	"github.com/ehr/fhirbridge/internal/domain/concept"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

const (
	extensionBase     = "http://fhir.openmrs.org/ext/medicine"
	DrugNameExtension = extensionBase + "#drugName"
	StrengthExtension = extensionBase + "#strength"
)

// Translator maps a Drug to the FHIR Medication. The drug name and strength
// have no Medication element and travel as extensions.
type Translator struct {
	concepts concept.CodingTranslator
}

var _ fhir.Translator[Drug, fhir.Medication] = Translator{}

func (t Translator) ToFHIR(d *Drug) *fhir.Medication {
	if d == nil {
		return nil
	}
	updated := d.LastUpdated()
	out := &fhir.Medication{
		ResourceType: "Medication",
		ID:           d.UUID,
		Meta:         &fhir.Meta{LastUpdated: &updated},
		Code:         t.concepts.ToFHIR(d.Concept),
		Form:         t.concepts.ToFHIR(d.DosageForm),
		Status:       "active",
		Extension:    extensions(d.Name, d.Strength),
	}
	if d.Retired {
		out.Status = "inactive"
	}
	for _, in := range d.Ingredients {
		out.Ingredient = append(out.Ingredient, fhir.MedicationIngredient{
			ItemCodeableConcept: t.concepts.ToFHIR(in.Ingredient),
			Extension:           extensions("", in.Strength),
		})
	}
	return out
}

func (t Translator) ToInternal(existing *Drug, r *fhir.Medication) *Drug {
	if r == nil {
		return existing
	}
	out := &Drug{}
	if existing != nil {
		*out = *existing
	}
	if r.ID != "" {
		out.UUID = r.ID
	}
	out.Concept = t.concepts.ToInternal(out.Concept, r.Code)
	out.DosageForm = t.concepts.ToInternal(out.DosageForm, r.Form)
	switch r.Status {
	case "active":
		out.Retired = false
	case "inactive":
		out.Retired = true
	}
	if v, ok := extensionValue(r.Extension, DrugNameExtension); ok {
		out.Name = v
	}
	if v, ok := extensionValue(r.Extension, StrengthExtension); ok {
		out.Strength = v
	}
	if r.Ingredient != nil {
		out.Ingredients = t.ingredientsToInternal(out.Ingredients, r.Ingredient)
	}
	return out
}

// ingredientsToInternal keeps stored ingredients whose concept is named again
// so that their identity survives an update.
func (t Translator) ingredientsToInternal(existing []Ingredient, in []fhir.MedicationIngredient) []Ingredient {
	out := make([]Ingredient, 0, len(in))
	for _, mi := range in {
		c := t.concepts.ToInternal(nil, mi.ItemCodeableConcept)
		if c == nil {
			continue
		}
		ing := Ingredient{Ingredient: c}
		for _, e := range existing {
			if e.Ingredient != nil && c.UUID != "" && e.Ingredient.UUID == c.UUID {
				ing = e
				break
			}
		}
		if v, ok := extensionValue(mi.Extension, StrengthExtension); ok {
			ing.Strength = v
		}
		out = append(out, ing)
	}
	return out
}

func extensions(name, strength string) []fhir.Extension {
	var out []fhir.Extension
	if name != "" {
		out = append(out, fhir.Extension{URL: DrugNameExtension, ValueString: name})
	}
	if strength != "" {
		out = append(out, fhir.Extension{URL: StrengthExtension, ValueString: strength})
	}
	return out
}

func extensionValue(exts []fhir.Extension, url string) (string, bool) {
	for _, e := range exts {
		if e.URL == url {
			return e.ValueString, true
		}
	}
	return "", false
}

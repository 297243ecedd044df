package relatedperson

import (
	"strings"

	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

const (
	identifierSystem = "RelatedPerson"
	personPrefix     = "Person/"
)

// Translator maps a Relationship to a RelatedPerson. Demographics come from
// person A; the patient reference points at person B.
type Translator struct{}

var _ fhir.Translator[Relationship, fhir.RelatedPerson] = Translator{}

func (Translator) ToFHIR(r *Relationship) *fhir.RelatedPerson {
	if r == nil {
		return nil
	}
	updated := r.LastUpdated()
	out := &fhir.RelatedPerson{
		ResourceType: "RelatedPerson",
		ID:           r.UUID,
		Meta:         &fhir.Meta{LastUpdated: &updated},
		Active:       fhir.Bool(r.Active()),
	}
	if r.StartDate != nil || r.EndDate != nil {
		out.Period = &fhir.Period{Start: r.StartDate, End: r.EndDate}
	}
	if r.RelationshipType != "" {
		out.Relationship = []fhir.CodeableConcept{{Text: r.RelationshipType}}
	}
	if a := r.PersonA; a != nil {
		out.Identifier = []fhir.Identifier{{System: identifierSystem, Value: personPrefix + a.UUID}}
		out.Name = person.NamesToFHIR(a.Names)
		out.Address = person.AddressesToFHIR(a.Addresses)
		out.BirthDate = person.FormatBirthdate(a.Birthdate)
		if g := (person.GenderTranslator{}).ToFHIR(&a.Gender); g != nil {
			out.Gender = *g
		}
	}
	if b := r.PersonB; b != nil {
		out.Patient = fhir.NewReference("Patient", b.UUID, b.PreferredName().Display())
	}
	return out
}

// ToInternal applies rp to a copy of existing. Person A and person B come
// back as references carrying only the UUIDs (plus person A's demographics)
// and are resolved against the store before persisting.
func (Translator) ToInternal(existing *Relationship, rp *fhir.RelatedPerson) *Relationship {
	if rp == nil {
		return existing
	}
	out := &Relationship{}
	if existing != nil {
		*out = *existing
	}
	if rp.ID != "" {
		out.UUID = rp.ID
	}
	if rp.Period != nil {
		out.StartDate = rp.Period.Start
		out.EndDate = rp.Period.End
	}
	if len(rp.Relationship) > 0 {
		if t := conceptText(rp.Relationship[0]); t != "" {
			out.RelationshipType = t
		}
	}

	if uuid := personAUUID(rp.Identifier); uuid != "" {
		a := &person.Person{UUID: uuid}
		if out.PersonA != nil && out.PersonA.UUID == uuid {
			*a = *out.PersonA
		}
		a.Names = person.NamesToInternal(a.Names, rp.Name)
		a.Addresses = person.AddressesToInternal(a.Addresses, rp.Address)
		a.Birthdate = person.ParseBirthdate(a.Birthdate, rp.BirthDate)
		if rp.Gender != "" {
			if g := (person.GenderTranslator{}).ToInternal(&a.Gender, &rp.Gender); g != nil {
				a.Gender = *g
			}
		}
		out.PersonA = a
	}
	if uuid := fhir.ReferenceID(rp.Patient); uuid != "" {
		if out.PersonB == nil || out.PersonB.UUID != uuid {
			out.PersonB = &person.Person{UUID: uuid}
		}
	}
	return out
}

func personAUUID(ids []fhir.Identifier) string {
	for _, id := range ids {
		if id.System == identifierSystem && strings.HasPrefix(id.Value, personPrefix) {
			return strings.TrimPrefix(id.Value, personPrefix)
		}
	}
	return ""
}

func conceptText(cc fhir.CodeableConcept) string {
	if cc.Text != "" {
		return cc.Text
	}
	for _, c := range cc.Coding {
		if c.Display != "" {
			return c.Display
		}
		if c.Code != "" {
			return c.Code
		}
	}
	return ""
}

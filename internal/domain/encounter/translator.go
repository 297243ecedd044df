package encounter

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

const provenanceActivitySystem = "http://terminology.hl7.org/CodeSystem/v3-DataOperation"

// Translator maps an Encounter to the FHIR Encounter. Audit fields become
// contained Provenance resources.
type Translator struct{}

var _ fhir.Translator[Encounter, fhir.Encounter] = Translator{}

func (Translator) ToFHIR(e *Encounter) *fhir.Encounter {
	if e == nil {
		return nil
	}
	updated := e.LastUpdated()
	out := &fhir.Encounter{
		ResourceType: "Encounter",
		ID:           e.UUID,
		Meta:         &fhir.Meta{LastUpdated: &updated},
		Status:       "unknown",
		Contained:    Provenances(e),
	}
	if !e.EncounterDatetime.IsZero() {
		start := e.EncounterDatetime
		out.Period = &fhir.Period{Start: &start}
	}
	if e.Patient != nil {
		out.Subject = fhir.NewReference("Patient", e.Patient.UUID, e.Patient.PreferredName().Display())
	}
	if e.Location != nil {
		out.Location = []fhir.EncounterLocation{{Location: fhir.NewReference("Location", e.Location.UUID, e.Location.Name)}}
	}
	for _, p := range e.Participants {
		if p.Provider == nil {
			continue
		}
		out.Participant = append(out.Participant, fhir.EncounterParticipant{
			Individual: fhir.NewReference("Practitioner", p.Provider.UUID, p.Provider.Name),
		})
	}
	return out
}

func (Translator) ToInternal(existing *Encounter, r *fhir.Encounter) *Encounter {
	if r == nil {
		return existing
	}
	out := &Encounter{}
	if existing != nil {
		*out = *existing
	}
	if r.ID != "" {
		out.UUID = r.ID
	}
	if r.Period != nil && r.Period.Start != nil {
		out.EncounterDatetime = *r.Period.Start
	}
	if id := fhir.ReferenceID(r.Subject); id != "" {
		if out.Patient == nil || out.Patient.UUID != id {
			out.Patient = &person.Person{UUID: id}
		}
	}
	if len(r.Location) > 0 {
		if id := fhir.ReferenceID(r.Location[0].Location); id != "" {
			if out.Location == nil || out.Location.UUID != id {
				out.Location = &Location{UUID: id}
			}
		}
	}
	if r.Participant != nil {
		participants := make([]Participant, 0, len(r.Participant))
		for _, rp := range r.Participant {
			id := fhir.ReferenceID(rp.Individual)
			if id == "" {
				continue
			}
			p := Participant{Provider: &Provider{UUID: id}}
			for _, e := range out.Participants {
				if e.Provider != nil && e.Provider.UUID == id {
					p = e
					break
				}
			}
			participants = append(participants, p)
		}
		out.Participants = participants
	}
	return out
}

// Provenances projects the audit fields of e into Provenance resources: one
// for the creation and one for the last change, when there is one.
func Provenances(e *Encounter) []*fhir.Provenance {
	if e == nil || e.DateCreated.IsZero() {
		return nil
	}
	target := []fhir.Reference{{Reference: fhir.FormatReference("Encounter", e.UUID), Type: "Encounter"}}
	created := e.DateCreated
	out := []*fhir.Provenance{provenance(e.UUID, "CREATE", "create", target, &created, e.Creator)}
	if e.DateChanged != nil {
		changed := *e.DateChanged
		out = append(out, provenance(e.UUID, "UPDATE", "revise", target, &changed, e.ChangedBy))
	}
	return out
}

func provenance(encounterUUID, code, display string, target []fhir.Reference, recorded *time.Time, who string) *fhir.Provenance {
	p := &fhir.Provenance{
		ResourceType: "Provenance",
		ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte("Encounter/"+encounterUUID+"/"+code)).String(),
		Target:       target,
		Recorded:     recorded,
		Activity: &fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: provenanceActivitySystem, Code: code, Display: display}},
		},
	}
	if who != "" {
		p.Agent = []fhir.ProvenanceAgent{{Who: &fhir.Reference{Type: "Practitioner", Display: who}}}
	}
	return p
}

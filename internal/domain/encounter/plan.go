package encounter

import (
	"net/url"

	"github.com/ehr/fhirbridge/internal/platform/query"
	"github.com/ehr/fhirbridge/internal/platform/search"
)

func locationTarget(suffix string) search.ReferenceTarget {
	return search.LocationTarget("loc"+suffix, "e.location_id")
}

func participantTarget(suffix string) search.ReferenceTarget {
	ep := "ep" + suffix
	return search.PractitionerTarget("pr"+suffix, ep+".provider_id", query.Join{
		Table: "encounter_provider", Alias: ep,
		On: query.On(ep+".encounter_id", "e.encounter_id") + " AND " + ep + ".voided = false",
	})
}

func subjectTarget(suffix string) search.ReferenceTarget {
	return search.PatientTarget("pat"+suffix, "e.patient_id")
}

type SearchParams struct {
	Date        *search.DateRange
	Location    search.ReferenceAndList
	Participant search.ReferenceAndList
	Subject     search.ReferenceAndList
}

// ParseSearchParams reads Encounter search parameters from q. "patient" is
// accepted as an alias of "subject".
func ParseSearchParams(q url.Values) (SearchParams, error) {
	var (
		params SearchParams
		err    error
	)
	if params.Date, err = search.ParseDateRange(q["date"]); err != nil {
		return SearchParams{}, err
	}
	if params.Location, err = search.ParseReferences(q, "location", "Location", locationTarget("").ChainNames()...); err != nil {
		return SearchParams{}, err
	}
	if params.Participant, err = search.ParseReferences(q, "participant", "Practitioner", participantTarget("").ChainNames()...); err != nil {
		return SearchParams{}, err
	}
	if params.Subject, err = search.ParseReferences(q, "subject", "Patient", subjectTarget("").ChainNames()...); err != nil {
		return SearchParams{}, err
	}
	patient, err := search.ParseReferences(q, "patient", "Patient", subjectTarget("").ChainNames()...)
	if err != nil {
		return SearchParams{}, err
	}
	params.Subject = append(params.Subject, patient...)
	return params, nil
}

// NewPlan returns the unconstrained search: live encounters in creation
// order.
func NewPlan() *query.Plan {
	p := query.New("encounter", "e", "encounter_id")
	p.Where(query.Equals(p.Col("voided"), false))
	p.OrderBy(p.Col("date_created"))
	return p
}

func BuildPlan(params SearchParams) *query.Plan {
	p := NewPlan()
	p.Where(search.DateBetween(p.Col("encounter_datetime"), params.Date))
	p.Where(search.ReferenceAnd(p, locationTarget, params.Location))
	p.Where(search.ReferenceAnd(p, participantTarget, params.Participant))
	p.Where(search.ReferenceAnd(p, subjectTarget, params.Subject))
	return p
}

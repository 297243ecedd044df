package relatedperson

import (
	"net/url"

	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/query"
	"github.com/ehr/fhirbridge/internal/platform/search"
)

func patientTarget(suffix string) search.ReferenceTarget {
	return search.PatientTarget("pat"+suffix, "r.person_b")
}

type SearchParams struct {
	Patient search.ReferenceAndList
	Name    []string
	Gender  search.TokenOrList
}

// ParseSearchParams reads RelatedPerson search parameters from q.
func ParseSearchParams(q url.Values) (SearchParams, error) {
	patient, err := search.ParseReferences(q, "patient", "Patient", patientTarget("").ChainNames()...)
	if err != nil {
		return SearchParams{}, err
	}
	return SearchParams{
		Patient: patient,
		Name:    search.StringOr(q, "name"),
		Gender:  search.TokenOr(q, "gender"),
	}, nil
}

// NewPlan returns the unconstrained search: live relationships in creation
// order.
func NewPlan() *query.Plan {
	p := query.New("relationship", "r", "relationship_id")
	p.Where(query.Equals(p.Col("voided"), false))
	p.OrderBy(p.Col("date_created"))
	return p
}

func BuildPlan(params SearchParams) *query.Plan {
	p := NewPlan()
	p.Where(search.ReferenceAnd(p, patientTarget, params.Patient))

	if len(params.Name) > 0 {
		pn := p.Join(query.Join{
			Table: "person_name", Alias: "rp_pn",
			On: query.On("rp_pn.person_id", p.Col("person_a")) + " AND rp_pn.voided = false",
		})
		var preds []query.Predicate
		for _, v := range params.Name {
			for _, c := range []string{"given_name", "middle_name", "family_name"} {
				preds = append(preds, query.StartsWith(pn+"."+c, v))
			}
		}
		p.Where(query.AnyOf(preds...))
	}

	gender := search.OrList(params.Gender, func(t search.Token) (query.Predicate, bool) {
		code, ok := person.GenderCode(t.Code)
		if !ok {
			return nil, false
		}
		return query.Equals("rp.gender", code), true
	})
	if gender != nil {
		p.Join(query.Join{Table: "person", Alias: "rp", On: query.On("rp.person_id", p.Col("person_a"))})
		p.Where(gender)
	}
	return p
}

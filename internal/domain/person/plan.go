package person

import (
	"net/url"

	"github.com/ehr/fhirbridge/internal/platform/query"
	"github.com/ehr/fhirbridge/internal/platform/search"
)

// SearchParams are the supported Person search parameters. Absent fields do
// not constrain the search.
type SearchParams struct {
	Name       []string
	Given      []string
	Family     []string
	Gender     search.TokenOrList
	Birthdate  *search.DateRange
	City       []string
	State      []string
	Country    []string
	PostalCode []string
}

// ParseSearchParams reads Person search parameters from q.
func ParseSearchParams(q url.Values) (SearchParams, error) {
	birthdate, err := search.ParseDateRange(q["birthdate"])
	if err != nil {
		return SearchParams{}, err
	}
	return SearchParams{
		Name:       search.StringOr(q, "name"),
		Given:      search.StringOr(q, "given"),
		Family:     search.StringOr(q, "family"),
		Gender:     search.TokenOr(q, "gender"),
		Birthdate:  birthdate,
		City:       search.StringOr(q, "address-city"),
		State:      search.StringOr(q, "address-state"),
		Country:    search.StringOr(q, "address-country"),
		PostalCode: search.StringOr(q, "address-postalcode"),
	}, nil
}

// NewPlan returns the unconstrained Person search: live persons in creation
// order.
func NewPlan() *query.Plan {
	p := query.New("person", "p", "person_id")
	p.Where(query.Equals(p.Col("voided"), false))
	p.OrderBy(p.Col("date_created"))
	return p
}

// BuildPlan translates params into a search plan.
func BuildPlan(params SearchParams) *query.Plan {
	p := NewPlan()

	p.Where(nameField(p, params.Name, "given_name", "middle_name", "family_name"))
	p.Where(nameField(p, params.Given, "given_name"))
	p.Where(nameField(p, params.Family, "family_name"))

	p.Where(search.OrList(params.Gender, func(t search.Token) (query.Predicate, bool) {
		code, ok := GenderCode(t.Code)
		if !ok {
			return nil, false
		}
		return query.Equals(p.Col("gender"), code), true
	}))

	p.Where(search.DateBetween(p.Col("birthdate"), params.Birthdate))

	p.Where(addressField(p, params.City, "city_village"))
	p.Where(addressField(p, params.State, "state_province"))
	p.Where(addressField(p, params.Country, "country"))
	p.Where(addressField(p, params.PostalCode, "postal_code"))
	return p
}

func nameField(p *query.Plan, values []string, columns ...string) query.Predicate {
	if len(values) == 0 {
		return nil
	}
	pn := p.Join(query.Join{
		Table: "person_name", Alias: "pn",
		On: query.On("pn.person_id", p.Col("person_id")) + " AND pn.voided = false",
	})
	return startsWith(pn, values, columns...)
}

func addressField(p *query.Plan, values []string, column string) query.Predicate {
	if len(values) == 0 {
		return nil
	}
	pa := p.Join(query.Join{
		Table: "person_address", Alias: "pa",
		On: query.On("pa.person_id", p.Col("person_id")) + " AND pa.voided = false",
	})
	return startsWith(pa, values, column)
}

func startsWith(alias string, values []string, columns ...string) query.Predicate {
	var preds []query.Predicate
	for _, c := range columns {
		for _, v := range values {
			preds = append(preds, query.StartsWith(alias+"."+c, v))
		}
	}
	return query.AnyOf(preds...)
}

package medication

import (
	"net/url"

	"github.com/ehr/fhirbridge/internal/platform/query"
	"github.com/ehr/fhirbridge/internal/platform/search"
)

type SearchParams struct {
	Code           search.TokenAndList
	DosageForm     search.TokenAndList
	IngredientCode search.TokenOrList
	Status         search.TokenOrList
}

// ParseSearchParams reads Medication search parameters from q. The dosage
// form is searched with "form"; "dosage-form" is accepted as well.
func ParseSearchParams(q url.Values) SearchParams {
	form := search.TokenAnd(q, "form")
	if form == nil {
		form = search.TokenAnd(q, "dosage-form")
	}
	return SearchParams{
		Code:           search.TokenAnd(q, "code"),
		DosageForm:     form,
		IngredientCode: search.TokenOr(q, "ingredient-code"),
		Status:         search.TokenOr(q, "status"),
	}
}

// NewPlan returns the drug search root ordered by creation.
func NewPlan() *query.Plan {
	p := query.New("drug", "d", "drug_id")
	p.OrderBy(p.Col("date_created"))
	return p
}

func BuildPlan(params SearchParams) *query.Plan {
	p := NewPlan()

	if len(params.Code) > 0 {
		dc := p.Join(query.Join{
			Table: "concept", Alias: "dc",
			On: query.On("dc.concept_id", p.Col("concept_id")),
		})
		p.Where(search.AndList(params.Code, func(or search.TokenOrList) query.Predicate {
			return search.ConceptCode(p, dc, or)
		}))
	}

	if len(params.DosageForm) > 0 {
		df := p.Join(query.Join{
			Table: "concept", Alias: "df",
			On: query.On("df.concept_id", p.Col("dosage_form")),
		})
		p.Where(search.AndList(params.DosageForm, func(or search.TokenOrList) query.Predicate {
			return search.ConceptCode(p, df, or)
		}))
	}

	if len(params.IngredientCode) > 0 {
		di := p.Join(query.Join{
			Table: "drug_ingredient", Alias: "di",
			On: query.On("di.drug_id", p.Col("drug_id")),
		})
		ic := p.Join(query.Join{
			Table: "concept", Alias: "ic",
			On: query.On("ic.concept_id", di+".ingredient_id"),
		})
		p.Where(search.ConceptCode(p, ic, params.IngredientCode))
	}

	// Retired drugs are only returned when a status asks for them.
	status := search.InvertedBoolean(p.Col("retired"), params.Status)
	if status == nil {
		status = query.Equals(p.Col("retired"), false)
	}
	p.Where(status)
	return p
}

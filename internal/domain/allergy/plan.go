package allergy

import (
	"net/url"

	"github.com/ehr/fhirbridge/internal/platform/query"
	"github.com/ehr/fhirbridge/internal/platform/search"
)

func patientTarget(suffix string) search.ReferenceTarget {
	return search.PatientTarget("pat"+suffix, "al.patient_id")
}

type SearchParams struct {
	Patient        search.ReferenceAndList
	Category       search.TokenOrList
	Allergen       search.TokenOrList
	Severity       search.TokenOrList
	Manifestation  search.TokenOrList
	ClinicalStatus search.TokenOrList
}

// ParseSearchParams reads AllergyIntolerance search parameters from q. The
// allergen is searched with "code"; "allergen" is accepted as well.
func ParseSearchParams(q url.Values) (SearchParams, error) {
	patient, err := search.ParseReferences(q, "patient", "Patient", patientTarget("").ChainNames()...)
	if err != nil {
		return SearchParams{}, err
	}
	allergen := search.TokenOr(q, "code")
	if allergen == nil {
		allergen = search.TokenOr(q, "allergen")
	}
	return SearchParams{
		Patient:        patient,
		Category:       search.TokenOr(q, "category"),
		Allergen:       allergen,
		Severity:       search.TokenOr(q, "severity"),
		Manifestation:  search.TokenOr(q, "manifestation"),
		ClinicalStatus: search.TokenOr(q, "clinical-status"),
	}, nil
}

// NewPlan returns the allergy search root ordered by creation.
func NewPlan() *query.Plan {
	p := query.New("allergy", "al", "allergy_id")
	p.OrderBy(p.Col("date_created"))
	return p
}

// BuildPlan translates params into a search plan. severities resolves the
// severity parameter and is only consulted when it is present.
func BuildPlan(params SearchParams, severities SeverityAliases) *query.Plan {
	p := NewPlan()

	status := search.InvertedBoolean(p.Col("voided"), params.ClinicalStatus)
	if status == nil {
		status = query.Equals(p.Col("voided"), false)
	}
	p.Where(status)

	p.Where(search.ReferenceAnd(p, patientTarget, params.Patient))

	p.Where(search.OrList(params.Category, func(t search.Token) (query.Predicate, bool) {
		c, ok := ParseCategory(t.Code)
		if !ok {
			return nil, false
		}
		return query.Equals(p.Col("allergen_type"), string(CategoryToAllergenType[c])), true
	}))

	if len(params.Allergen) > 0 {
		ac := p.Join(query.Join{
			Table: "concept", Alias: "ac",
			On: query.On("ac.concept_id", p.Col("coded_allergen")),
		})
		p.Where(search.ConceptCode(p, ac, params.Allergen))
	}

	severity := search.OrList(params.Severity, func(t search.Token) (query.Predicate, bool) {
		s, ok := ParseSeverity(t.Code)
		if !ok {
			return nil, false
		}
		uuid, ok := severities.ConceptUUID(s)
		if !ok {
			return nil, false
		}
		return query.Equals("sc.uuid", uuid), true
	})
	if severity != nil {
		p.Join(query.Join{
			Table: "concept", Alias: "sc",
			On: query.On("sc.concept_id", p.Col("severity_concept_id")),
		})
		p.Where(severity)
	}

	if len(params.Manifestation) > 0 {
		ar := p.Join(query.Join{
			Table: "allergy_reaction", Alias: "ar",
			On: query.On("ar.allergy_id", p.Col("allergy_id")),
		})
		mc := p.Join(query.Join{
			Table: "concept", Alias: "mc",
			On: query.On("mc.concept_id", ar+".reaction_concept_id"),
		})
		p.Where(search.ConceptCode(p, mc, params.Manifestation))
	}
	return p
}

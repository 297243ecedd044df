package search

import (
	"sort"
	"strconv"

	"github.com/ehr/fhirbridge/internal/platform/query"
)

// ChainFunc builds the predicate for one chained property of a reference
// target. It may add joins to p; values is the OR list for the property.
type ChainFunc func(p *query.Plan, values []string) query.Predicate

// ReferenceTarget describes how a searched root reaches the resource a
// reference parameter points at, and which chained properties that resource
// supports.
type ReferenceTarget struct {
	Type       string
	Joins      []query.Join
	IDColumn   string
	UUIDColumn string
	Chains     map[string]ChainFunc
}

// ChainNames lists the supported chains in a stable order.
func (t ReferenceTarget) ChainNames() []string {
	names := make([]string, 0, len(t.Chains))
	for n := range t.Chains {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reference builds the predicate for one OR list of a reference parameter.
// The target joins are only added when refs is non-empty, so an absent
// parameter leaves the plan untouched. Alternatives are grouped by chain.
func Reference(p *query.Plan, t ReferenceTarget, refs ReferenceOrList) query.Predicate {
	if len(refs) == 0 {
		return nil
	}
	for _, j := range t.Joins {
		p.Join(j)
	}

	var chains []string
	byChain := map[string][]string{}
	for _, r := range refs {
		if _, seen := byChain[r.Chain]; !seen {
			chains = append(chains, r.Chain)
		}
		byChain[r.Chain] = append(byChain[r.Chain], r.Value)
	}

	preds := make([]query.Predicate, 0, len(chains))
	for _, c := range chains {
		if c == "" {
			preds = append(preds, IDOrUUID(t.IDColumn, t.UUIDColumn, byChain[c]))
			continue
		}
		fn, ok := t.Chains[c]
		if !ok {
			continue
		}
		preds = append(preds, fn(p, byChain[c]))
	}
	return query.AnyOf(preds...)
}

// TargetFunc builds a reference target whose join aliases end in suffix.
type TargetFunc func(suffix string) ReferenceTarget

// ReferenceAnd conjoins Reference over every repetition of a parameter. The
// first repetition uses the unsuffixed aliases; each later one joins the
// target again under "_<n>" so that participant=A&participant=B can match
// two different rows.
func ReferenceAnd(p *query.Plan, target TargetFunc, and ReferenceAndList) query.Predicate {
	preds := make([]query.Predicate, 0, len(and))
	for i, or := range and {
		suffix := ""
		if i > 0 {
			suffix = "_" + strconv.Itoa(i)
		}
		preds = append(preds, Reference(p, target(suffix), or))
	}
	return query.AllOf(preds...)
}

// PatientTarget reaches a patient through patientColumn, a column of the
// root holding the patient (and person) id.
func PatientTarget(alias, patientColumn string) ReferenceTarget {
	personID := alias + ".person_id"
	chains := nameChains(alias, personID)
	chains["identifier"] = func(p *query.Plan, values []string) query.Predicate {
		pid := p.Join(query.Join{
			Table: "patient_identifier", Alias: alias + "_pi",
			On: query.On(alias+"_pi.patient_id", personID) + " AND " + alias + "_pi.voided = false",
		})
		return query.InStrings(pid+".identifier", values)
	}
	return ReferenceTarget{
		Type: "Patient",
		Joins: []query.Join{{
			Table: "person", Alias: alias,
			On: query.On(personID, patientColumn),
		}},
		IDColumn:   personID,
		UUIDColumn: alias + ".uuid",
		Chains:     chains,
	}
}

// PractitionerTarget reaches a provider through providerColumn after the
// via joins have been added.
func PractitionerTarget(alias, providerColumn string, via ...query.Join) ReferenceTarget {
	personID := alias + ".person_id"
	chains := nameChains(alias, personID)
	chains["identifier"] = func(p *query.Plan, values []string) query.Predicate {
		return query.InStrings(alias+".identifier", values)
	}
	joins := append(append([]query.Join(nil), via...), query.Join{
		Table: "provider", Alias: alias,
		On: query.On(alias+".provider_id", providerColumn),
	})
	return ReferenceTarget{
		Type:       "Practitioner",
		Joins:      joins,
		IDColumn:   alias + ".provider_id",
		UUIDColumn: alias + ".uuid",
		Chains:     chains,
	}
}

// LocationTarget reaches a location through locationColumn.
func LocationTarget(alias, locationColumn string) ReferenceTarget {
	field := func(column string) ChainFunc {
		return func(p *query.Plan, values []string) query.Predicate {
			return startsWithAny(alias+"."+column, values)
		}
	}
	return ReferenceTarget{
		Type: "Location",
		Joins: []query.Join{{
			Table: "location", Alias: alias,
			On: query.On(alias+".location_id", locationColumn),
		}},
		IDColumn:   alias + ".location_id",
		UUIDColumn: alias + ".uuid",
		Chains: map[string]ChainFunc{
			"address-city":       field("city_village"),
			"address-state":      field("state_province"),
			"address-country":    field("country"),
			"address-postalcode": field("postal_code"),
		},
	}
}

// nameChains matches the non-voided names of the person behind personID.
func nameChains(alias, personID string) map[string]ChainFunc {
	join := func(p *query.Plan) string {
		return p.Join(query.Join{
			Table: "person_name", Alias: alias + "_pn",
			On: query.On(alias+"_pn.person_id", personID) + " AND " + alias + "_pn.voided = false",
		})
	}
	field := func(columns ...string) ChainFunc {
		return func(p *query.Plan, values []string) query.Predicate {
			pn := join(p)
			preds := make([]query.Predicate, 0, len(columns))
			for _, c := range columns {
				preds = append(preds, startsWithAny(pn+"."+c, values))
			}
			return query.AnyOf(preds...)
		}
	}
	return map[string]ChainFunc{
		"given":  field("given_name"),
		"family": field("family_name"),
		"name":   field("given_name", "middle_name", "family_name"),
	}
}

func startsWithAny(column string, values []string) query.Predicate {
	preds := make([]query.Predicate, 0, len(values))
	for _, v := range values {
		preds = append(preds, query.StartsWith(column, v))
	}
	return query.AnyOf(preds...)
}

package search

import (
	"strconv"

	"github.com/ehr/fhirbridge/internal/platform/query"
)

// OrList applies fn to every token and disjoins the results. fn reports false
// for a term it cannot map; such terms are dropped. When every term is
// dropped the list imposes no constraint.
func OrList(tokens TokenOrList, fn func(Token) (query.Predicate, bool)) query.Predicate {
	preds := make([]query.Predicate, 0, len(tokens))
	for _, t := range tokens {
		p, ok := fn(t)
		if !ok {
			continue
		}
		preds = append(preds, p)
	}
	return query.AnyOf(preds...)
}

// AndList builds one predicate per OR list and conjoins them.
func AndList(and TokenAndList, fn func(TokenOrList) query.Predicate) query.Predicate {
	preds := make([]query.Predicate, 0, len(and))
	for _, or := range and {
		preds = append(preds, fn(or))
	}
	return query.AllOf(preds...)
}

// BySystem groups tokens by system, keeping the order in which systems first
// appear, and disjoins fn's predicate for each group. Tokens with an empty
// code are kept so that "system|" can match on system alone.
func BySystem(tokens TokenOrList, fn func(system string, codes []string) query.Predicate) query.Predicate {
	var systems []string
	groups := map[string][]string{}
	for _, t := range tokens {
		if _, seen := groups[t.System]; !seen {
			systems = append(systems, t.System)
			groups[t.System] = nil
		}
		if t.Code != "" {
			groups[t.System] = append(groups[t.System], t.Code)
		}
	}
	preds := make([]query.Predicate, 0, len(systems))
	for _, s := range systems {
		if s == "" && len(groups[s]) == 0 {
			continue
		}
		preds = append(preds, fn(s, groups[s]))
	}
	return query.AnyOf(preds...)
}

// IDOrUUID matches values against either an integer id column or a UUID
// column. Values that are not integers, or do not fit the 32-bit id column,
// only take part in the UUID branch.
func IDOrUUID(idColumn, uuidColumn string, values []string) query.Predicate {
	if len(values) == 0 {
		return nil
	}
	var ids []int
	for _, v := range values {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			ids = append(ids, int(n))
		}
	}
	uuids := query.InStrings(uuidColumn, values)
	if len(ids) == 0 {
		return uuids
	}
	return query.AnyOf(query.InInts(idColumn, ids), uuids)
}

// Mapping table aliases are derived from the concept alias so
// several coded columns of one root can be searched in the same plan.
const (
	mapSuffix    = "_cm"
	termSuffix   = "_crt"
	sourceSuffix = "_crs"
)

// JoinConceptMappings joins the mapping, term and source tables for the
// concept bound to conceptAlias and returns the term and source aliases.
// The joins are outer so that unmapped concepts still match other branches of
// the same OR list. Repeated calls reuse the same joins.
func JoinConceptMappings(p *query.Plan, conceptAlias string) (term, source string) {
	cm := conceptAlias + mapSuffix
	term = conceptAlias + termSuffix
	source = conceptAlias + sourceSuffix
	p.Join(query.Join{
		Table: "concept_reference_map", Alias: cm,
		On:   query.On(cm+".concept_id", conceptAlias+".concept_id"),
		Left: true,
	})
	p.Join(query.Join{
		Table: "concept_reference_term", Alias: term,
		On:   query.On(term+".concept_reference_term_id", cm+".concept_reference_term_id"),
		Left: true,
	})
	p.Join(query.Join{
		Table: "concept_reference_source", Alias: source,
		On:   query.On(source+".concept_source_id", term+".concept_source_id"),
		Left: true,
	})
	return term, source
}

// ConceptCode matches a coded column joined as conceptAlias. Unqualified
// tokens match the concept id or UUID; system-qualified tokens match the
// concept's mappings to that source URI.
func ConceptCode(p *query.Plan, conceptAlias string, tokens TokenOrList) query.Predicate {
	return BySystem(tokens, func(system string, codes []string) query.Predicate {
		if system == "" {
			return IDOrUUID(conceptAlias+".concept_id", conceptAlias+".uuid", codes)
		}
		term, source := JoinConceptMappings(p, conceptAlias)
		var codePred query.Predicate
		if len(codes) > 0 {
			codePred = query.InStrings(term+".code", codes)
		}
		return query.AllOf(query.Equals(source+".uri", system), codePred)
	})
}

// InvertedBoolean maps the status tokens "active" and "inactive" onto a flag
// column that is true when the record is no longer active (voided, retired).
// Unknown values are dropped.
func InvertedBoolean(column string, tokens TokenOrList) query.Predicate {
	return OrList(tokens, func(t Token) (query.Predicate, bool) {
		switch t.Code {
		case "active":
			return query.Equals(column, false), true
		case "inactive":
			return query.Equals(column, true), true
		}
		return nil, false
	})
}

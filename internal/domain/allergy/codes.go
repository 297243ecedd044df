package allergy

import (
	"context"
	"fmt"

	"github.com/ehr/fhirbridge/internal/platform/property"
)

// Severity is an abstract allergy severity code.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityOther    Severity = "null"
)

var severities = map[string]Severity{
	"mild":     SeverityMild,
	"moderate": SeverityModerate,
	"severe":   SeveritySevere,
	"null":     SeverityOther,
}

// ParseSeverity reports false for codes outside the enumeration.
func ParseSeverity(code string) (Severity, bool) {
	s, ok := severities[code]
	return s, ok
}

// Global properties holding the concept UUID that stands for each severity.
const (
	PropertyMildSeverity     = "fhir2.mildSeverityConceptUuid"
	PropertyModerateSeverity = "fhir2.moderateSeverityConceptUuid"
	PropertySevereSeverity   = "fhir2.severeSeverityConceptUuid"
	PropertyOtherSeverity    = "fhir2.otherSeverityConceptUuid"
)

var severityProperties = map[Severity]string{
	SeverityMild:     PropertyMildSeverity,
	SeverityModerate: PropertyModerateSeverity,
	SeveritySevere:   PropertySevereSeverity,
	SeverityOther:    PropertyOtherSeverity,
}

// SeverityAliases maps each configured severity to its concept UUID. It is
// resolved for one call and passed along; severities without a configured
// concept are absent.
type SeverityAliases map[Severity]string

// ResolveSeverityAliases reads the severity concept UUIDs from store.
func ResolveSeverityAliases(ctx context.Context, store property.Store) (SeverityAliases, error) {
	keys := make([]string, 0, len(severityProperties))
	for _, k := range severityProperties {
		keys = append(keys, k)
	}
	values, err := store.GetGlobalProperties(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("resolve severity aliases: %w", err)
	}
	out := SeverityAliases{}
	for s, k := range severityProperties {
		if v, ok := values[k]; ok {
			out[s] = v
		}
	}
	return out, nil
}

// ConceptUUID returns the concept configured for s.
func (a SeverityAliases) ConceptUUID(s Severity) (string, bool) {
	uuid, ok := a[s]
	return uuid, ok
}

// SeverityOf returns the severity whose configured concept is conceptUUID.
func (a SeverityAliases) SeverityOf(conceptUUID string) (Severity, bool) {
	if conceptUUID == "" {
		return "", false
	}
	for s, uuid := range a {
		if uuid == conceptUUID {
			return s, true
		}
	}
	return "", false
}

// Category is the FHIR allergy category.
type Category string

const (
	CategoryFood        Category = "food"
	CategoryMedication  Category = "medication"
	CategoryEnvironment Category = "environment"
	CategoryOther       Category = "null"
)

var categories = map[string]Category{
	"food":        CategoryFood,
	"medication":  CategoryMedication,
	"environment": CategoryEnvironment,
	"null":        CategoryOther,
}

// ParseCategory reports false for codes outside the enumeration.
func ParseCategory(code string) (Category, bool) {
	c, ok := categories[code]
	return c, ok
}

// AllergenType is the stored allergen classification.
type AllergenType string

const (
	AllergenFood        AllergenType = "FOOD"
	AllergenDrug        AllergenType = "DRUG"
	AllergenEnvironment AllergenType = "ENVIRONMENT"
	AllergenOther       AllergenType = "OTHER"
)

// CategoryToAllergenType covers every Category.
var CategoryToAllergenType = map[Category]AllergenType{
	CategoryFood:        AllergenFood,
	CategoryMedication:  AllergenDrug,
	CategoryEnvironment: AllergenEnvironment,
	CategoryOther:       AllergenOther,
}

// Category returns the FHIR category of t. Unknown types are CategoryOther.
func (t AllergenType) Category() Category {
	for c, at := range CategoryToAllergenType {
		if at == t {
			return c
		}
	}
	return CategoryOther
}

// Package medication serves drugs as FHIR Medication resources.
package medication

import (
	"github.com/ehr/fhirbridge/internal/domain/concept"
	"github.com/ehr/fhirbridge/internal/platform/db"
)

type Drug struct {
	DrugID      int
	UUID        string
	Name        string
	Concept     *concept.Concept
	DosageForm  *concept.Concept
	Strength    string
	Ingredients []Ingredient
	Retired     bool
	db.Audit
}

type Ingredient struct {
	UUID       string
	Ingredient *concept.Concept
	Strength   string
}

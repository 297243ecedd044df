package allergy

import (
	"github.com/ehr/fhirbridge/internal/domain/concept"
	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/db"
)

type Allergy struct {
	AllergyID int
	UUID      string
	Patient   *person.Person
	Allergen  Allergen
	Severity  *concept.Concept
	Reactions []Reaction
	Comment   string
	Voided    bool
	db.Audit
}

// Allergen is either a coded concept or free text.
type Allergen struct {
	Type             AllergenType
	CodedAllergen    *concept.Concept
	NonCodedAllergen string
}

type Reaction struct {
	UUID             string
	Reaction         *concept.Concept
	NonCodedReaction string
}

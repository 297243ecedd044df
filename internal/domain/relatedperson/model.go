package relatedperson

import (
	"time"

	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/db"
)

// Relationship links person A (the related person) to person B (the
// patient).
type Relationship struct {
	RelationshipID   int
	UUID             string
	PersonA          *person.Person
	PersonB          *person.Person
	RelationshipType string
	StartDate        *time.Time
	EndDate          *time.Time
	Voided           bool
	db.Audit
}

// Active reports whether the relationship is current. It is inactive only
// once both a start and an end date are recorded.
func (r *Relationship) Active() bool {
	return r.StartDate == nil || r.EndDate == nil
}

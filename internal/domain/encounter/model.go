package encounter

import (
	"time"

	"github.com/ehr/fhirbridge/internal/domain/person"
	"github.com/ehr/fhirbridge/internal/platform/db"
)

type Encounter struct {
	EncounterID       int
	UUID              string
	Patient           *person.Person
	Location          *Location
	Participants      []Participant
	EncounterDatetime time.Time
	Voided            bool
	db.Audit
}

type Location struct {
	LocationID int
	UUID       string
	Name       string
}

type Participant struct {
	UUID     string
	Provider *Provider
}

type Provider struct {
	ProviderID int
	UUID       string
	Name       string
	Identifier string
}

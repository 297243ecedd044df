package person

import (
	"time"

	"github.com/ehr/fhirbridge/internal/platform/db"
)

// TelephoneAttributeType identifies the person attribute type holding
// telephone numbers.
const TelephoneAttributeType = "14d4f066-15f5-102d-96e4-000c29c2a5d7"

// Person is a demographic record with its names, addresses and telephone
// numbers. IsPatient is set when a non-voided patient shares the person id.
type Person struct {
	PersonID  int
	UUID      string
	Gender    string
	Birthdate *time.Time
	Names     []Name
	Addresses []Address
	Telecoms  []Telecom
	IsPatient bool
	Voided    bool
	db.Audit
}

// Telecom is a telephone number stored as a person attribute.
type Telecom struct {
	UUID  string
	Value string
}

type Name struct {
	UUID       string
	GivenName  string
	MiddleName string
	FamilyName string
	Prefix     string
	Suffix     string
	Preferred  bool
}

type Address struct {
	UUID          string
	Address1      string
	Address2      string
	CityVillage   string
	StateProvince string
	Country       string
	PostalCode    string
	Preferred     bool
}

// PreferredName returns the preferred name, falling back to the first one.
func (p *Person) PreferredName() *Name {
	if p == nil || len(p.Names) == 0 {
		return nil
	}
	for i := range p.Names {
		if p.Names[i].Preferred {
			return &p.Names[i]
		}
	}
	return &p.Names[0]
}

// Display renders a name as "given middle family".
func (n *Name) Display() string {
	if n == nil {
		return ""
	}
	out := ""
	for _, part := range []string{n.GivenName, n.MiddleName, n.FamilyName} {
		if part == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += part
	}
	return out
}

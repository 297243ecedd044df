// Package concept holds coded values and their mappings to external code
// systems, and translates them to and from CodeableConcepts.
package concept

// Concept is an internal coded value.
type Concept struct {
	ConceptID int
	UUID      string
	Name      string
	Mappings  []Mapping
}

// Mapping pairs a concept with a code in an external code system.
type Mapping struct {
	SourceURI  string
	SourceName string
	Code       string
}

// HasMapping reports whether the concept maps to code in system.
func (c *Concept) HasMapping(system, code string) bool {
	for _, m := range c.Mappings {
		if m.SourceURI == system && m.Code == code {
			return true
		}
	}
	return false
}

package concept

import "github.com/ehr/fhirbridge/internal/platform/fhir"

// CodingTranslator maps a Concept to a CodeableConcept. The first coding has
// an empty system and the concept UUID as code, so a search with an
// unqualified token finds the record again; each mapping adds a
// {source URI, code} coding.
type CodingTranslator struct{}

var _ fhir.Translator[Concept, fhir.CodeableConcept] = CodingTranslator{}

func (CodingTranslator) ToFHIR(c *Concept) *fhir.CodeableConcept {
	if c == nil {
		return nil
	}
	cc := &fhir.CodeableConcept{Text: c.Name}
	if c.UUID != "" {
		cc.Coding = append(cc.Coding, fhir.Coding{Code: c.UUID, Display: c.Name})
	}
	for _, m := range c.Mappings {
		cc.Coding = append(cc.Coding, fhir.Coding{System: m.SourceURI, Code: m.Code, Display: c.Name})
	}
	return cc
}

// ToInternal builds a concept reference from cc. The result carries the UUID
// and mappings named by cc and must be resolved against the store before it
// is persisted; existing is returned unchanged when cc names no code.
func (CodingTranslator) ToInternal(existing *Concept, cc *fhir.CodeableConcept) *Concept {
	if cc == nil {
		return existing
	}
	out := &Concept{Name: cc.Text}
	for _, coding := range cc.Coding {
		if coding.Code == "" {
			continue
		}
		if coding.System == "" {
			if out.UUID == "" {
				out.UUID = coding.Code
			}
			continue
		}
		out.Mappings = append(out.Mappings, Mapping{SourceURI: coding.System, Code: coding.Code})
	}
	if out.UUID == "" && len(out.Mappings) == 0 {
		return existing
	}
	if existing != nil && out.UUID != "" && out.UUID == existing.UUID {
		return existing
	}
	return out
}

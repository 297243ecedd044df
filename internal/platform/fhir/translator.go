package fhir

// Translator converts between an internal record I and its FHIR resource E.
//
// ToFHIR returns nil for a nil record and never fails on a non-nil one.
// ToInternal applies resource onto existing, creating a new record when
// existing is nil, and returns the result.
type Translator[I any, E any] interface {
	ToFHIR(in *I) *E
	ToInternal(existing *I, resource *E) *I
}

package person

import (
	"strings"
	"time"

	"github.com/ehr/fhirbridge/internal/platform/fhir"
)

const birthdateLayout = "2006-01-02"

var (
	genderToFHIR = map[string]string{"M": "male", "F": "female", "O": "other", "U": "unknown"}
	genderToCode = map[string]string{"male": "M", "female": "F", "other": "O", "unknown": "U"}
)

// GenderCode returns the stored gender code for a FHIR administrative gender.
func GenderCode(gender string) (string, bool) {
	code, ok := genderToCode[strings.ToLower(gender)]
	return code, ok
}

// GenderTranslator maps stored gender codes (M, F, O, U) to FHIR
// administrative gender. Absent or unrecognized values stay absent.
type GenderTranslator struct{}

var _ fhir.Translator[string, string] = GenderTranslator{}

func (GenderTranslator) ToFHIR(code *string) *string {
	if code == nil {
		return nil
	}
	g, ok := genderToFHIR[strings.ToUpper(*code)]
	if !ok {
		return nil
	}
	return &g
}

func (GenderTranslator) ToInternal(existing *string, gender *string) *string {
	if gender == nil {
		return existing
	}
	code, ok := GenderCode(*gender)
	if !ok {
		return existing
	}
	return &code
}

type NameTranslator struct{}

var _ fhir.Translator[Name, fhir.HumanName] = NameTranslator{}

func (NameTranslator) ToFHIR(n *Name) *fhir.HumanName {
	if n == nil {
		return nil
	}
	hn := &fhir.HumanName{
		ID:     n.UUID,
		Family: n.FamilyName,
		Given:  nonEmpty(n.GivenName, n.MiddleName),
		Prefix: nonEmpty(n.Prefix),
		Suffix: nonEmpty(n.Suffix),
	}
	if n.Preferred {
		hn.Use = "usual"
	}
	return hn
}

func (NameTranslator) ToInternal(existing *Name, hn *fhir.HumanName) *Name {
	if hn == nil {
		return existing
	}
	out := &Name{}
	if existing != nil {
		*out = *existing
	}
	if hn.ID != "" {
		out.UUID = hn.ID
	}
	out.FamilyName = hn.Family
	out.GivenName, out.MiddleName = "", ""
	if len(hn.Given) > 0 {
		out.GivenName = hn.Given[0]
		out.MiddleName = strings.Join(hn.Given[1:], " ")
	}
	out.Prefix = strings.Join(hn.Prefix, " ")
	out.Suffix = strings.Join(hn.Suffix, " ")
	if hn.Use == "usual" {
		out.Preferred = true
	}
	return out
}

type AddressTranslator struct{}

var _ fhir.Translator[Address, fhir.Address] = AddressTranslator{}

func (AddressTranslator) ToFHIR(a *Address) *fhir.Address {
	if a == nil {
		return nil
	}
	fa := &fhir.Address{
		ID:         a.UUID,
		Line:       nonEmpty(a.Address1, a.Address2),
		City:       a.CityVillage,
		State:      a.StateProvince,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
	if a.Preferred {
		fa.Use = "home"
	}
	return fa
}

func (AddressTranslator) ToInternal(existing *Address, fa *fhir.Address) *Address {
	if fa == nil {
		return existing
	}
	out := &Address{}
	if existing != nil {
		*out = *existing
	}
	if fa.ID != "" {
		out.UUID = fa.ID
	}
	out.Address1, out.Address2 = "", ""
	if len(fa.Line) > 0 {
		out.Address1 = fa.Line[0]
	}
	if len(fa.Line) > 1 {
		out.Address2 = strings.Join(fa.Line[1:], ", ")
	}
	out.CityVillage = fa.City
	out.StateProvince = fa.State
	out.PostalCode = fa.PostalCode
	out.Country = fa.Country
	if fa.Use == "home" {
		out.Preferred = true
	}
	return out
}

// NamesToFHIR translates every name, preferred name first.
func NamesToFHIR(names []Name) []fhir.HumanName {
	if len(names) == 0 {
		return nil
	}
	out := make([]fhir.HumanName, 0, len(names))
	for _, n := range preferredFirst(names, func(n Name) bool { return n.Preferred }) {
		n := n
		out = append(out, *NameTranslator{}.ToFHIR(&n))
	}
	return out
}

// NamesToInternal merges incoming names into existing ones, matching on id.
// Names without a known id are added.
func NamesToInternal(existing []Name, names []fhir.HumanName) []Name {
	if names == nil {
		return existing
	}
	out := make([]Name, 0, len(names))
	for i := range names {
		var match *Name
		for j := range existing {
			if names[i].ID != "" && existing[j].UUID == names[i].ID {
				match = &existing[j]
				break
			}
		}
		out = append(out, *NameTranslator{}.ToInternal(match, &names[i]))
	}
	return out
}

// AddressesToFHIR translates every address, preferred address first.
func AddressesToFHIR(addresses []Address) []fhir.Address {
	if len(addresses) == 0 {
		return nil
	}
	out := make([]fhir.Address, 0, len(addresses))
	for _, a := range preferredFirst(addresses, func(a Address) bool { return a.Preferred }) {
		a := a
		out = append(out, *AddressTranslator{}.ToFHIR(&a))
	}
	return out
}

// AddressesToInternal merges incoming addresses into existing ones by id.
func AddressesToInternal(existing []Address, addresses []fhir.Address) []Address {
	if addresses == nil {
		return existing
	}
	out := make([]Address, 0, len(addresses))
	for i := range addresses {
		var match *Address
		for j := range existing {
			if addresses[i].ID != "" && existing[j].UUID == addresses[i].ID {
				match = &existing[j]
				break
			}
		}
		out = append(out, *AddressTranslator{}.ToInternal(match, &addresses[i]))
	}
	return out
}

type TelecomTranslator struct{}

var _ fhir.Translator[Telecom, fhir.ContactPoint] = TelecomTranslator{}

func (TelecomTranslator) ToFHIR(tc *Telecom) *fhir.ContactPoint {
	if tc == nil {
		return nil
	}
	return &fhir.ContactPoint{ID: tc.UUID, Value: tc.Value}
}

func (TelecomTranslator) ToInternal(existing *Telecom, cp *fhir.ContactPoint) *Telecom {
	if cp == nil {
		return existing
	}
	out := &Telecom{}
	if existing != nil {
		*out = *existing
	}
	if cp.ID != "" {
		out.UUID = cp.ID
	}
	out.Value = cp.Value
	return out
}

// TelecomsToFHIR translates every telephone number in stored order.
func TelecomsToFHIR(telecoms []Telecom) []fhir.ContactPoint {
	if len(telecoms) == 0 {
		return nil
	}
	out := make([]fhir.ContactPoint, 0, len(telecoms))
	for i := range telecoms {
		out = append(out, *TelecomTranslator{}.ToFHIR(&telecoms[i]))
	}
	return out
}

// TelecomsToInternal merges incoming contact points into existing telecoms by id.
func TelecomsToInternal(existing []Telecom, cps []fhir.ContactPoint) []Telecom {
	if cps == nil {
		return existing
	}
	out := make([]Telecom, 0, len(cps))
	for i := range cps {
		var match *Telecom
		for j := range existing {
			if cps[i].ID != "" && existing[j].UUID == cps[i].ID {
				match = &existing[j]
				break
			}
		}
		out = append(out, *TelecomTranslator{}.ToInternal(match, &cps[i]))
	}
	return out
}

// FormatBirthdate renders a birthdate as a FHIR date, or "" when absent.
func FormatBirthdate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(birthdateLayout)
}

// ParseBirthdate parses a FHIR date. Unparseable or empty input keeps existing.
func ParseBirthdate(existing *time.Time, s string) *time.Time {
	if s == "" {
		return existing
	}
	t, err := time.Parse(birthdateLayout, s)
	if err != nil {
		return existing
	}
	return &t
}

// Translator maps a Person to the FHIR Person resource.
type Translator struct{}

var _ fhir.Translator[Person, fhir.Person] = Translator{}

func (Translator) ToFHIR(p *Person) *fhir.Person {
	if p == nil {
		return nil
	}
	updated := p.LastUpdated()
	out := &fhir.Person{
		ResourceType: "Person",
		ID:           p.UUID,
		Meta:         &fhir.Meta{LastUpdated: &updated},
		Active:       fhir.Bool(!p.Voided),
		Name:         NamesToFHIR(p.Names),
		BirthDate:    FormatBirthdate(p.Birthdate),
		Telecom:      TelecomsToFHIR(p.Telecoms),
		Address:      AddressesToFHIR(p.Addresses),
	}
	if g := (GenderTranslator{}).ToFHIR(&p.Gender); g != nil {
		out.Gender = *g
	}
	if p.IsPatient {
		out.Link = []fhir.PersonLink{{Target: fhir.NewReference("Patient", p.UUID, p.PreferredName().Display())}}
	}
	return out
}

func (Translator) ToInternal(existing *Person, r *fhir.Person) *Person {
	if r == nil {
		return existing
	}
	out := &Person{}
	if existing != nil {
		*out = *existing
	}
	if r.ID != "" {
		out.UUID = r.ID
	}
	if r.Active != nil {
		out.Voided = !*r.Active
	}
	var gender *string
	if r.Gender != "" {
		gender = &r.Gender
	}
	if code := (GenderTranslator{}).ToInternal(&out.Gender, gender); code != nil {
		out.Gender = *code
	}
	out.Birthdate = ParseBirthdate(out.Birthdate, r.BirthDate)
	out.Names = NamesToInternal(out.Names, r.Name)
	out.Addresses = AddressesToInternal(out.Addresses, r.Address)
	out.Telecoms = TelecomsToInternal(out.Telecoms, r.Telecom)
	return out
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func preferredFirst[T any](items []T, preferred func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if preferred(it) {
			out = append(out, it)
		}
	}
	for _, it := range items {
		if !preferred(it) {
			out = append(out, it)
		}
	}
	return out
}

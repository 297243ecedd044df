package fhir

import "time"

// Resource is implemented by every resource this server returns.
type Resource interface {
	ResourceName() string
	ResourceID() string
}

type RelatedPerson struct {
	ResourceType string            `json:"resourceType" validate:"omitempty,eq=RelatedPerson"`
	ID           string            `json:"id,omitempty"`
	Meta         *Meta             `json:"meta,omitempty"`
	Text         *Narrative        `json:"text,omitempty"`
	Identifier   []Identifier      `json:"identifier,omitempty"`
	Active       *bool             `json:"active,omitempty"`
	Patient      *Reference        `json:"patient" validate:"required"`
	Relationship []CodeableConcept `json:"relationship,omitempty"`
	Name         []HumanName       `json:"name,omitempty"`
	Gender       string            `json:"gender,omitempty" validate:"omitempty,oneof=male female other unknown"`
	BirthDate    string            `json:"birthDate,omitempty"`
	Address      []Address         `json:"address,omitempty"`
	Period       *Period           `json:"period,omitempty"`
}

type AllergyIntolerance struct {
	ResourceType   string            `json:"resourceType" validate:"omitempty,eq=AllergyIntolerance"`
	ID             string            `json:"id,omitempty"`
	Meta           *Meta             `json:"meta,omitempty"`
	Text           *Narrative        `json:"text,omitempty"`
	ClinicalStatus *CodeableConcept  `json:"clinicalStatus,omitempty"`
	Type           string            `json:"type,omitempty"`
	Category       []string          `json:"category,omitempty" validate:"dive,oneof=food medication environment biologic"`
	Criticality    string            `json:"criticality,omitempty"`
	Code           *CodeableConcept  `json:"code,omitempty"`
	Patient        *Reference        `json:"patient" validate:"required"`
	RecordedDate   *time.Time        `json:"recordedDate,omitempty"`
	Recorder       *Reference        `json:"recorder,omitempty"`
	Note           []Annotation      `json:"note,omitempty"`
	Reaction       []AllergyReaction `json:"reaction,omitempty" validate:"dive"`
	Extension      []Extension       `json:"extension,omitempty"`
}

type AllergyReaction struct {
	ID            string            `json:"id,omitempty"`
	Manifestation []CodeableConcept `json:"manifestation"`
	Severity      string            `json:"severity,omitempty" validate:"omitempty,oneof=mild moderate severe"`
}

type Encounter struct {
	ResourceType string                 `json:"resourceType" validate:"omitempty,eq=Encounter"`
	ID           string                 `json:"id,omitempty"`
	Meta         *Meta                  `json:"meta,omitempty"`
	Text         *Narrative             `json:"text,omitempty"`
	Contained    []*Provenance          `json:"contained,omitempty"`
	Status       string                 `json:"status,omitempty"`
	Class        *Coding                `json:"class,omitempty"`
	Subject      *Reference             `json:"subject" validate:"required"`
	Participant  []EncounterParticipant `json:"participant,omitempty"`
	Period       *Period                `json:"period,omitempty"`
	Location     []EncounterLocation    `json:"location,omitempty"`
}

type EncounterParticipant struct {
	Individual *Reference `json:"individual,omitempty"`
}

type EncounterLocation struct {
	Location *Reference `json:"location"`
}

type Medication struct {
	ResourceType string                 `json:"resourceType" validate:"omitempty,eq=Medication"`
	ID           string                 `json:"id,omitempty"`
	Meta         *Meta                  `json:"meta,omitempty"`
	Text         *Narrative             `json:"text,omitempty"`
	Extension    []Extension            `json:"extension,omitempty"`
	Code         *CodeableConcept       `json:"code,omitempty"`
	Status       string                 `json:"status,omitempty" validate:"omitempty,oneof=active inactive entered-in-error"`
	Form         *CodeableConcept       `json:"form,omitempty"`
	Ingredient   []MedicationIngredient `json:"ingredient,omitempty"`
}

type MedicationIngredient struct {
	ItemCodeableConcept *CodeableConcept `json:"itemCodeableConcept,omitempty"`
	Extension           []Extension      `json:"extension,omitempty"`
}

type Person struct {
	ResourceType string         `json:"resourceType" validate:"omitempty,eq=Person"`
	ID           string         `json:"id,omitempty"`
	Meta         *Meta          `json:"meta,omitempty"`
	Text         *Narrative     `json:"text,omitempty"`
	Active       *bool          `json:"active,omitempty"`
	Name         []HumanName    `json:"name,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`
	Gender       string         `json:"gender,omitempty" validate:"omitempty,oneof=male female other unknown"`
	BirthDate    string         `json:"birthDate,omitempty"`
	Address      []Address      `json:"address,omitempty"`
	Link         []PersonLink   `json:"link,omitempty"`
}

type PersonLink struct {
	Target *Reference `json:"target"`
}

type Provenance struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id,omitempty"`
	Target       []Reference       `json:"target"`
	Recorded     *time.Time        `json:"recorded,omitempty"`
	Activity     *CodeableConcept  `json:"activity,omitempty"`
	Agent        []ProvenanceAgent `json:"agent,omitempty"`
}

type ProvenanceAgent struct {
	Type *CodeableConcept `json:"type,omitempty"`
	Who  *Reference       `json:"who"`
}

func (r *RelatedPerson) ResourceName() string      { return "RelatedPerson" }
func (r *RelatedPerson) ResourceID() string        { return r.ID }
func (r *AllergyIntolerance) ResourceName() string { return "AllergyIntolerance" }
func (r *AllergyIntolerance) ResourceID() string   { return r.ID }
func (r *Encounter) ResourceName() string          { return "Encounter" }
func (r *Encounter) ResourceID() string            { return r.ID }
func (r *Medication) ResourceName() string         { return "Medication" }
func (r *Medication) ResourceID() string           { return r.ID }
func (r *Person) ResourceName() string             { return "Person" }
func (r *Person) ResourceID() string               { return r.ID }
func (r *Provenance) ResourceName() string         { return "Provenance" }
func (r *Provenance) ResourceID() string           { return r.ID }

func (r *RelatedPerson) Narrative() *Narrative      { return r.Text }
func (r *AllergyIntolerance) Narrative() *Narrative { return r.Text }
func (r *Encounter) Narrative() *Narrative          { return r.Text }
func (r *Medication) Narrative() *Narrative         { return r.Text }
func (r *Person) Narrative() *Narrative             { return r.Text }

func (r *RelatedPerson) SetNarrative(n *Narrative)      { r.Text = n }
func (r *AllergyIntolerance) SetNarrative(n *Narrative) { r.Text = n }
func (r *Encounter) SetNarrative(n *Narrative)          { r.Text = n }
func (r *Medication) SetNarrative(n *Narrative)         { r.Text = n }
func (r *Person) SetNarrative(n *Narrative)             { r.Text = n }

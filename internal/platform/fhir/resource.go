package fhir

import "strings"

// ResourcePatient is the resource type whose own id is a patient identifier.
const ResourcePatient = "Patient"

// Resource is the minimal projection of a FHIR resource needed to find the
// patient it belongs to.
type Resource struct {
	ResourceType string     `json:"resourceType"`
	ID           string     `json:"id"`
	Subject      *Reference `json:"subject,omitempty"`
	Patient      *Reference `json:"patient,omitempty"`
}

// PatientID returns the logical id of the patient the resource belongs to.
// Patients identify themselves; every other resource is resolved through its
// subject reference, falling back to its patient reference.
func (r Resource) PatientID() (string, bool) {
	if r.ResourceType == ResourcePatient {
		return r.ID, r.ID != ""
	}
	for _, ref := range []*Reference{r.Subject, r.Patient} {
		if ref == nil {
			continue
		}
		if id, ok := ref.PatientID(); ok {
			return id, true
		}
	}
	return "", false
}

// Coding is a code from a code system. Identity is (System, Code); Display is
// informational only.
type Coding struct {
	System  string `json:"system,omitempty" yaml:"system,omitempty"`
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
}

// CodingKey is the comparable identity of a Coding.
type CodingKey struct {
	System string
	Code   string
}

// NewCoding creates a Coding.
func NewCoding(system, code, display string) Coding {
	return Coding{System: system, Code: code, Display: display}
}

// Key returns the identity of the coding, ignoring the display.
func (c Coding) Key() CodingKey {
	return CodingKey{System: c.System, Code: c.Code}
}

// SearchValue formats the coding as a token search value: system|code.
func (c Coding) SearchValue() string {
	return c.System + "|" + c.Code
}

func (c Coding) String() string {
	return c.SearchValue()
}

func (k CodingKey) String() string {
	return k.System + "|" + k.Code
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

// PatientID extracts the patient id from a relative or absolute literal
// reference such as "Patient/123" or "http://host/fhir/Patient/123/_history/2".
func (r Reference) PatientID() (string, bool) {
	parts := strings.Split(r.Reference, "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == ResourcePatient && parts[i+1] != "" {
			return parts[i+1], true
		}
	}
	if r.Type == ResourcePatient && len(parts) == 1 && parts[0] != "" {
		return parts[0], true
	}
	return "", false
}

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
	Expression  []string         `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeProcessing, diagnostics)
}

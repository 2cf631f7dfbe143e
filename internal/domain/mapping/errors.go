package mapping

import (
	"errors"
	"fmt"

	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// ErrNotFound matches every *NotFoundError with errors.Is.
var ErrNotFound = errors.New("mapping not found")

// Kind tells which part of a mapping was missing.
type Kind string

const (
	KindConcept   Kind = "concept"
	KindValue     Kind = "value"
	KindAttribute Kind = "attribute"
)

// NotFoundError reports a key without a catalogue entry. It is a
// configuration defect and never retried.
type NotFoundError struct {
	Kind      Kind
	Key       fhir.Coding
	Attribute *fhir.Coding
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case KindValue:
		return fmt.Sprintf("value mapping not found for key %s", e.Key.Key())
	case KindAttribute:
		return fmt.Sprintf("attribute mapping for attribute %s not found for key %s", e.Attribute.Key(), e.Key.Key())
	default:
		return fmt.Sprintf("mapping not found for key %s", e.Key.Key())
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func errInvalid(key fhir.Coding, msg string) error {
	return fmt.Errorf("invalid mapping %s: %s", key.Key(), msg)
}

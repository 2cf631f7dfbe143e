package sq

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"

	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// UCUM is the unit system assumed for units given by code only.
const UCUM = "http://unitsofmeasure.org"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterValidation("comparator", func(fl validator.FieldLevel) bool {
		_, err := ParseComparator(fl.Field().String())
		return err == nil
	})
	return v
}

type wireQuery struct {
	Version           string            `json:"version"`
	InclusionCriteria [][]wireCriterion `json:"inclusionCriteria" validate:"required,min=1,dive,min=1,dive"`
	ExclusionCriteria []json.RawMessage `json:"exclusionCriteria"`
}

type wireCriterion struct {
	TermCodes        []wireCoding          `json:"termCodes" validate:"required,min=1,dive"`
	ValueFilter      *wireFilterPart       `json:"valueFilter"`
	AttributeFilters []wireAttributeFilter `json:"attributeFilters" validate:"dive"`
}

type wireAttributeFilter struct {
	AttributeCode *wireCoding `json:"attributeCode" validate:"required"`
	wireFilterPart
}

type wireFilterPart struct {
	Type             string       `json:"type" validate:"required,oneof=concept quantity-comparator quantity-range"`
	SelectedConcepts []wireCoding `json:"selectedConcepts" validate:"dive"`
	Comparator       string       `json:"comparator" validate:"omitempty,comparator"`
	Value            *json.Number `json:"value"`
	MinValue         *json.Number `json:"minValue"`
	MaxValue         *json.Number `json:"maxValue"`
	Unit             *wireUnit    `json:"unit"`
}

type wireCoding struct {
	System  string `json:"system"`
	Code    string `json:"code" validate:"required"`
	Display string `json:"display"`
}

type wireUnit struct {
	System  string `json:"system"`
	Code    string `json:"code" validate:"required"`
	Display string `json:"display"`
}

// Parse decodes and validates a structured query in its JSON form. Every
// problem with the input is reported as a *ValidationError.
func Parse(data []byte) (StructuredQuery, error) {
	var w wireQuery
	if err := json.Unmarshal(data, &w); err != nil {
		return StructuredQuery{}, &ValidationError{Message: "invalid JSON: " + err.Error()}
	}
	if len(w.ExclusionCriteria) > 0 {
		return StructuredQuery{}, &ValidationError{Field: "exclusionCriteria", Message: "exclusion criteria are not supported"}
	}
	if err := validate.Struct(w); err != nil {
		return StructuredQuery{}, validationError(err)
	}

	q := StructuredQuery{Version: w.Version, InclusionCriteria: make([][]Criterion, len(w.InclusionCriteria))}
	for i, group := range w.InclusionCriteria {
		q.InclusionCriteria[i] = make([]Criterion, len(group))
		for j, wc := range group {
			c, err := wc.criterion(fmt.Sprintf("inclusionCriteria[%d][%d]", i, j))
			if err != nil {
				return StructuredQuery{}, err
			}
			q.InclusionCriteria[i][j] = c
		}
	}
	return q, nil
}

func (q *StructuredQuery) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

func (w wireCriterion) criterion(field string) (Criterion, error) {
	c := NewCriterion(codings(w.TermCodes)...)
	if w.ValueFilter != nil {
		part, err := w.ValueFilter.filterPart(field + ".valueFilter")
		if err != nil {
			return Criterion{}, err
		}
		c = c.AppendFilter(NewValueFilter(part))
	}
	for i, af := range w.AttributeFilters {
		part, err := af.filterPart(fmt.Sprintf("%s.attributeFilters[%d]", field, i))
		if err != nil {
			return Criterion{}, err
		}
		c = c.AppendFilter(NewAttributeFilter(af.AttributeCode.coding(), part))
	}
	return c, nil
}

func (w wireFilterPart) filterPart(field string) (FilterPart, error) {
	switch w.Type {
	case "concept":
		if len(w.SelectedConcepts) == 0 {
			return FilterPart{}, &ValidationError{Field: field + ".selectedConcepts", Message: "at least one concept is required"}
		}
		return NewConceptFilter(codings(w.SelectedConcepts)...), nil
	case "quantity-comparator":
		if w.Comparator == "" {
			return FilterPart{}, &ValidationError{Field: field + ".comparator", Message: "is required"}
		}
		value, err := decimal(w.Value, field+".value")
		if err != nil {
			return FilterPart{}, err
		}
		return NewComparatorFilter(Comparator(w.Comparator), value, w.Unit.coding()), nil
	default:
		lower, err := decimal(w.MinValue, field+".minValue")
		if err != nil {
			return FilterPart{}, err
		}
		upper, err := decimal(w.MaxValue, field+".maxValue")
		if err != nil {
			return FilterPart{}, err
		}
		if lower.Cmp(upper) > 0 {
			return FilterPart{}, &ValidationError{Field: field, Message: "minValue must not be greater than maxValue"}
		}
		return NewRangeFilter(lower, upper, w.Unit.coding()), nil
	}
}

func decimal(n *json.Number, field string) (*apd.Decimal, error) {
	if n == nil {
		return nil, &ValidationError{Field: field, Message: "is required"}
	}
	d, _, err := apd.NewFromString(n.String())
	if err != nil {
		return nil, &ValidationError{Field: field, Message: "must be a decimal number"}
	}
	return d, nil
}

func (w wireCoding) coding() fhir.Coding {
	return fhir.NewCoding(w.System, w.Code, w.Display)
}

func codings(ws []wireCoding) []fhir.Coding {
	out := make([]fhir.Coding, len(ws))
	for i, w := range ws {
		out[i] = w.coding()
	}
	return out
}

func (u *wireUnit) coding() *fhir.Coding {
	if u == nil {
		return nil
	}
	system := u.System
	if system == "" {
		system = UCUM
	}
	c := fhir.NewCoding(system, u.Code, u.Display)
	return &c
}

func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := errs[0]
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	field = strings.ReplaceAll(field, ".wireFilterPart", "")

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "min":
		msg = "must contain at least " + fe.Param() + " element(s)"
	case "oneof":
		msg = "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "comparator":
		msg = "must be one of gt, ge, lt, le, eq"
	default:
		msg = "failed on the " + fe.Tag() + " rule"
	}
	return &ValidationError{Field: field, Message: msg}
}

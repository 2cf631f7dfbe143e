package sq

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/require"

	"github.com/alexanderkiel/flare/internal/domain/mapping"
	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

const (
	icd10     = "http://fhir.de/CodeSystem/bfarm/icd-10-gm"
	loinc     = "http://loinc.org"
	snomed    = "http://snomed.info/sct"
	verStatus = "http://terminology.hl7.org/CodeSystem/condition-ver-status"
)

var (
	c71         = fhir.NewCoding(icd10, "C71", "")
	c71_0       = fhir.NewCoding(icd10, "C71.0", "")
	c71_1       = fhir.NewCoding(icd10, "C71.1", "Frontallappen")
	hemoglobin  = fhir.NewCoding(loinc, "718-7", "Hemoglobin")
	bloodPress  = fhir.NewCoding(loinc, "85354-9", "Blood pressure")
	severity    = fhir.NewCoding(snomed, "246112005", "Severity")
	bodySite    = fhir.NewCoding(snomed, "363698007", "Finding site")
	mild        = fhir.NewCoding(snomed, "255604002", "Mild")
	severe      = fhir.NewCoding(snomed, "24484000", "Severe")
	frontal     = fhir.NewCoding(snomed, "83251001", "Frontal lobe")
	temporal    = fhir.NewCoding(snomed, "78277001", "Temporal lobe")
	confirmed   = fhir.NewCoding(verStatus, "confirmed", "")
	provisional = fhir.NewCoding(verStatus, "provisional", "")
	systolic    = fhir.NewCoding(loinc, "8480-6", "Systolic")
	ucumUgDL    = &fhir.Coding{System: UCUM, Code: "ug/dL"}
)

func dec(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

func testMappings() []mapping.Mapping {
	return []mapping.Mapping{
		{
			Key:                     c71_1,
			ResourceType:            "Condition",
			TermCodeSearchParameter: "code",
			AttributeSearchParameters: []mapping.AttributeSearchParameter{
				{AttributeKey: severity, SearchParameter: "severity"},
				{AttributeKey: bodySite, SearchParameter: "body-site"},
			},
		},
		{
			Key:                     c71,
			ResourceType:            "Condition",
			TermCodeSearchParameter: "code",
			FixedCriteria: []mapping.FixedCriterion{
				{SearchParameter: "verification-status", Values: []fhir.Coding{confirmed, provisional}},
			},
			AttributeSearchParameters: []mapping.AttributeSearchParameter{
				{AttributeKey: severity, SearchParameter: "severity"},
			},
		},
		{
			Key:                     hemoglobin,
			ResourceType:            "Observation",
			TermCodeSearchParameter: "code",
			ValueSearchParameter:    "value-quantity",
		},
		{
			Key:                     bloodPress,
			ResourceType:            "Observation",
			TermCodeSearchParameter: "code",
			AttributeSearchParameters: []mapping.AttributeSearchParameter{
				{AttributeKey: systolic, SearchParameter: "component-value-quantity"},
			},
		},
	}
}

func testContext(t *testing.T, tree *mapping.ConceptTree) *mapping.Context {
	t.Helper()
	ctx, err := mapping.NewContext(testMappings(), tree)
	require.NoError(t, err)
	return ctx
}

func queryStrings(criteria []ExpandedCriterion) []string {
	out := make([]string, len(criteria))
	for i, c := range criteria {
		out[i] = c.ToQuery().String()
	}
	return out
}

package feasibility

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/alexanderkiel/flare/internal/domain/mapping"
	"github.com/alexanderkiel/flare/internal/domain/sq"
	"github.com/alexanderkiel/flare/internal/platform/fhir"
	"github.com/alexanderkiel/flare/pkg/patientset"
)

const (
	icd10 = "http://fhir.de/CodeSystem/bfarm/icd-10-gm"
	loinc = "http://loinc.org"
)

var (
	c71_1      = fhir.NewCoding(icd10, "C71.1", "Frontallappen")
	c71_2      = fhir.NewCoding(icd10, "C71.2", "Temporallappen")
	e11        = fhir.NewCoding(icd10, "E11", "Diabetes mellitus, Typ 2")
	hemoglobin = fhir.NewCoding(loinc, "718-7", "Hemoglobin")
	unknown    = fhir.NewCoding(icd10, "Z99", "")
)

func conditionQuery(code fhir.Coding) string {
	return "Condition?code=" + code.SearchValue()
}

func testMappings(t *testing.T) *mapping.Context {
	t.Helper()
	var mappings []mapping.Mapping
	for _, code := range []fhir.Coding{c71_1, c71_2, e11} {
		mappings = append(mappings, mapping.Mapping{Key: code, ResourceType: "Condition", TermCodeSearchParameter: "code"})
	}
	mappings = append(mappings, mapping.Mapping{
		Key:                     hemoglobin,
		ResourceType:            "Observation",
		TermCodeSearchParameter: "code",
		ValueSearchParameter:    "value-quantity",
	})
	ctx, err := mapping.NewContext(mappings, nil)
	require.NoError(t, err)
	return ctx
}

// mockStore answers queries from a fixed table. Queries listed in block wait
// for cancellation.
type mockStore struct {
	mu       sync.Mutex
	results  map[string][]string
	errs     map[string]error
	block    map[string]bool
	calls    map[string]int
	inFlight int
	maxIn    int
}

func newMockStore() *mockStore {
	return &mockStore{
		results: make(map[string][]string),
		errs:    make(map[string]error),
		block:   make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (m *mockStore) Execute(ctx context.Context, q fhir.Query) (*patientset.Set, error) {
	key := q.String()
	m.mu.Lock()
	m.calls[key]++
	m.inFlight++
	if m.inFlight > m.maxIn {
		m.maxIn = m.inFlight
	}
	ids, err, block := m.results[key], m.errs[key], m.block[key]
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return patientset.New(ids...), nil
}

func (m *mockStore) callCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key]
}

func (m *mockStore) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func newTestService(t *testing.T, store DataStore) *Service {
	t.Helper()
	return NewService(NewTranslator(testMappings(t)), store, 4, zerolog.Nop())
}

func dec(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

func criterion(concepts ...fhir.Coding) sq.Criterion {
	return sq.NewCriterion(concepts...)
}

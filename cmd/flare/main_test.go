package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexanderkiel/flare/internal/config"
	"github.com/alexanderkiel/flare/internal/platform/db"
)

const testMappings = `[
  {
    "key": {"system": "http://fhir.de/CodeSystem/bfarm/icd-10-gm", "code": "C71.1"},
    "fhirResourceType": "Condition",
    "termCodeSearchParameter": "code"
  }
]`

const testQuery = `{"inclusionCriteria":[[{"termCodes":[{"system":"http://fhir.de/CodeSystem/bfarm/icd-10-gm","code":"C71.1"}]}]]}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func setupEnv(t *testing.T, fhirBaseURL string) {
	t.Helper()
	t.Setenv("FHIR_BASE_URL", fhirBaseURL)
	t.Setenv("MAPPING_FILE", writeFile(t, "mappings.json", testMappings))
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CONCEPT_TREE_FILE", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestTranslateCmd(t *testing.T) {
	setupEnv(t, "http://localhost:8080/fhir")

	out, err := run(t, "translate", "-f", writeFile(t, "query.json", testQuery))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var translation struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(out), &translation); err != nil {
		t.Fatalf("failed to parse output %q: %v", out, err)
	}
	want := "Condition?code=http://fhir.de/CodeSystem/bfarm/icd-10-gm|C71.1"
	if len(translation.Queries) != 1 || translation.Queries[0] != want {
		t.Errorf("expected [%s], got %v", want, translation.Queries)
	}
}

func TestExecuteCmd(t *testing.T) {
	fhirServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Condition/_search" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/fhir+json")
		io.WriteString(w, `{"resourceType":"Bundle","type":"searchset","entry":[
			{"resource":{"resourceType":"Condition","id":"1","subject":{"reference":"Patient/a"}}},
			{"resource":{"resourceType":"Condition","id":"2","subject":{"reference":"Patient/b"}}},
			{"resource":{"resourceType":"Condition","id":"3","subject":{"reference":"Patient/a"}}}
		]}`)
	}))
	defer fhirServer.Close()
	setupEnv(t, fhirServer.URL)

	out, err := run(t, "execute", "-f", writeFile(t, "query.json", testQuery))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "2" {
		t.Errorf("expected count 2, got %q", out)
	}
}

func TestExecuteCmd_ReadsStdin(t *testing.T) {
	fhirServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/fhir+json")
		io.WriteString(w, `{"resourceType":"Bundle","type":"searchset"}`)
	}))
	defer fhirServer.Close()
	setupEnv(t, fhirServer.URL)

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs([]string{"execute"})
	cmd.SetIn(strings.NewReader(testQuery))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "0" {
		t.Errorf("expected count 0, got %q", out.String())
	}
}

func TestTranslateCmd_InvalidConfig(t *testing.T) {
	setupEnv(t, "")

	_, err := run(t, "translate", "-f", writeFile(t, "query.json", testQuery))
	if err == nil || !strings.Contains(err.Error(), "FHIR_BASE_URL") {
		t.Errorf("expected FHIR_BASE_URL error, got %v", err)
	}
}

func TestTranslateCmd_InvalidQuery(t *testing.T) {
	setupEnv(t, "http://localhost:8080/fhir")

	_, err := run(t, "translate", "-f", writeFile(t, "query.json", `{"inclusionCriteria":[]}`))
	if err == nil || !strings.Contains(err.Error(), "inclusionCriteria") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestServer_Routes(t *testing.T) {
	setupEnv(t, "http://localhost:8080/fhir")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := newApp(t.Context(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()
	e := newServer(cfg, zerolog.Nop(), a)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/query/translate", strings.NewReader(testQuery))
	req.Header.Set("Content-Type", "application/sq+json")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected no db health route without database, got %d", rec.Code)
	}
}

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		logger := newLogger(&config.Config{LogLevel: tt.level}, io.Discard)
		if logger.GetLevel() != tt.want {
			t.Errorf("newLogger(%q) level = %v, want %v", tt.level, logger.GetLevel(), tt.want)
		}
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	appliedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, "public", []db.MigrationStatus{
		{Version: 1, Name: "001_term_code_mapping.sql", Applied: true, AppliedAt: &appliedAt},
		{Version: 2, Name: "002_next.sql"},
	})

	out := buf.String()
	if !strings.Contains(out, "Migration status for schema: public") {
		t.Errorf("missing header in %q", out)
	}
	if !strings.Contains(out, "applied    2024-05-01 12:00:00") {
		t.Errorf("missing applied row in %q", out)
	}
	if !strings.Contains(out, "002_next.sql") || !strings.Contains(out, "pending") {
		t.Errorf("missing pending row in %q", out)
	}
}

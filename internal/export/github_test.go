package export

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"bug-report-triage/backend/internal/analysis"
	"bug-report-triage/backend/internal/store"
)

func sampleReport() store.BugReport {
	report := store.BugReport{
		ID:                        42,
		Title:                     "Save button broken",
		Description:               "Clicking save does nothing at all.",
		ParsedSteps:               "1. Open the page\n2. Click save",
		ReproducibilityScore:      85,
		ReproducibilityConfidence: analysis.ConfidenceVeryHigh,
		AttachmentCount:           2,
		CreatedAt:                 time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	report.SetFactors([]string{"Clear step-by-step sequence provided"})
	report.SetRecommendations([]string{"Attach screenshots, logs, or a screen recording"})
	return report
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"missing token", Config{Owner: "acme", Repo: "bugs"}},
		{"missing repo", Config{Token: "tok", Owner: "acme"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewClient(tc.cfg); !errors.Is(err, ErrMissingCredentials) {
				t.Fatalf("expected ErrMissingCredentials, got %v", err)
			}
		})
	}
}

func TestExportReport(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/bugs/issues" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"number": 7, "html_url": "https://github.com/acme/bugs/issues/7"})
	}))
	defer server.Close()

	client, err := NewClient(Config{Token: "tok", Owner: "acme", Repo: "bugs", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	issue, err := client.ExportReport(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("ExportReport: %v", err)
	}
	if issue.Number != 7 {
		t.Fatalf("expected issue 7, got %d", issue.Number)
	}
	if issue.URL != "https://github.com/acme/bugs/issues/7" {
		t.Fatalf("unexpected issue URL %q", issue.URL)
	}
	if title, _ := captured["title"].(string); title != "[Bug] Save button broken" {
		t.Fatalf("unexpected issue title %q", title)
	}
}

func TestExportReportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"message": "Validation Failed"})
	}))
	defer server.Close()

	client, err := NewClient(Config{Token: "tok", Owner: "acme", Repo: "bugs", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.ExportReport(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected error on non-201 response")
	}
}

func TestFormatIssueBody(t *testing.T) {
	body := FormatIssueBody(sampleReport())

	for _, fragment := range []string{
		"## Bug Description",
		"Clicking save does nothing at all.",
		"## Reproduction Steps",
		"1. Open the page",
		"Score: 85/100",
		"Confidence: very high",
		"### Strengths",
		"Clear step-by-step sequence provided",
		"### Suggested Improvements",
		"2 file(s) were submitted",
		"Exported from bug report #42 on 2026-03-10",
	} {
		if !strings.Contains(body, fragment) {
			t.Fatalf("issue body missing %q:\n%s", fragment, body)
		}
	}
}

func TestFormatIssueBodySkipsEmptySections(t *testing.T) {
	report := sampleReport()
	report.ParsedSteps = ""
	report.AttachmentCount = 0
	report.SetFactors(nil)
	report.SetRecommendations(nil)

	body := FormatIssueBody(report)
	for _, fragment := range []string{"## Reproduction Steps", "### Strengths", "### Suggested Improvements", "## Attachments"} {
		if strings.Contains(body, fragment) {
			t.Fatalf("issue body should omit %q:\n%s", fragment, body)
		}
	}
}

func TestIssueLabels(t *testing.T) {
	tests := []struct {
		confidence string
		want       []string
	}{
		{analysis.ConfidenceVeryHigh, []string{"bug", "imported", "high-reproducibility", "ready-to-reproduce"}},
		{analysis.ConfidenceHigh, []string{"bug", "imported", "high-reproducibility"}},
		{analysis.ConfidenceMedium, []string{"bug", "imported", "medium-reproducibility"}},
		{analysis.ConfidenceLow, []string{"bug", "imported", "needs-clarification"}},
		{"", []string{"bug", "imported", "needs-clarification"}},
	}

	for _, tc := range tests {
		t.Run("confidence "+tc.confidence, func(t *testing.T) {
			report := store.BugReport{ReproducibilityConfidence: tc.confidence}
			if got := IssueLabels(report); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("IssueLabels = %v, want %v", got, tc.want)
			}
		})
	}
}

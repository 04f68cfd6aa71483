package analysis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keywords.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadKeywordsDefaults(t *testing.T) {
	keywords, err := loadKeywords("")
	if err != nil {
		t.Fatalf("loadKeywords: %v", err)
	}
	if len(keywords.Steps) == 0 || len(keywords.Environment) == 0 {
		t.Fatalf("default keyword lists must not be empty: %+v", keywords)
	}
}

func TestLoadKeywordsOverrides(t *testing.T) {
	path := tempJSON(t, `{"environment": ["Kubernetes", " docker "], "steps": []}`)

	keywords, err := loadKeywords(path)
	if err != nil {
		t.Fatalf("loadKeywords: %v", err)
	}

	want := []string{"kubernetes", "docker"}
	if len(keywords.Environment) != len(want) {
		t.Fatalf("expected %v, got %v", want, keywords.Environment)
	}
	for i, keyword := range want {
		if keywords.Environment[i] != keyword {
			t.Fatalf("expected %v, got %v", want, keywords.Environment)
		}
	}

	// empty override lists fall back to defaults
	if len(keywords.Steps) == 0 {
		t.Fatal("empty steps override should keep the defaults")
	}
}

func TestLoadKeywordsErrors(t *testing.T) {
	if _, err := loadKeywords(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := loadKeywords(tempJSON(t, "not json")); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestScorerWithKeywordOverrides(t *testing.T) {
	path := tempJSON(t, `{"environment": ["kubernetes"]}`)

	scorer, err := NewScorer(path)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}

	metrics, err := scorer.Score("Pod restart loop", "The worker pod on kubernetes restarts whenever the queue drains.", 0)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !containsFactor(metrics.Factors, "Environment details") {
		t.Fatalf("override keyword should fire the environment signal: %v", metrics.Factors)
	}

	metrics, err = scorer.Score("Render glitch", "The page renders twice in Chrome every morning without a pattern.", 0)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if containsFactor(metrics.Factors, "Environment details") {
		t.Fatalf("default keyword should be replaced by the override: %v", metrics.Factors)
	}
}

func TestSplitWords(t *testing.T) {
	words := splitWords("the save-button, version 2.1!")
	want := []string{"the", "save", "button", "version", "2", "1"}
	if len(words) != len(want) {
		t.Fatalf("expected %v, got %v", want, words)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, words)
		}
	}
}

func containsFactor(factors []string, fragment string) bool {
	for _, factor := range factors {
		if strings.Contains(factor, fragment) {
			return true
		}
	}
	return false
}

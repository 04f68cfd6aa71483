package triage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bug-report-triage/backend/internal/ai"
	"bug-report-triage/backend/internal/analysis"
)

type fixedGenerator struct {
	text string
	err  error
}

func (g *fixedGenerator) Enabled() bool { return true }

func (g *fixedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.text, g.err
}

func newTestAnalyzer(t *testing.T, generator ai.Generator) *Analyzer {
	t.Helper()
	scorer, err := analysis.NewScorer("")
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	return NewAnalyzer(scorer, ai.NewStepExtractor(generator), 0)
}

func TestAnalyzeCombinesScorerAndExtractor(t *testing.T) {
	analyzer := newTestAnalyzer(t, &fixedGenerator{text: "1. Open the page\n2. Click save"})

	result, err := analyzer.Analyze(context.Background(), Input{
		Title:           "Save broken",
		Description:     "First open the page in Chrome, then click save. Expected a toast but got nothing at all here.",
		AttachmentCount: 0,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if result.ParsedSteps != "1. Open the page\n2. Click save" {
		t.Fatalf("unexpected parsed steps: %q", result.ParsedSteps)
	}
	if result.Metrics.Score != 60 {
		t.Fatalf("expected score 60, got %v", result.Metrics.Score)
	}
	if result.Metrics.Confidence != analysis.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %q", result.Metrics.Confidence)
	}
}

func TestAnalyzeEmptyDescription(t *testing.T) {
	analyzer := newTestAnalyzer(t, &fixedGenerator{text: "unused"})

	_, err := analyzer.Analyze(context.Background(), Input{Title: "Broken", Description: "   "})
	if !errors.Is(err, analysis.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestAnalyzeAbsorbsExtractionFailure(t *testing.T) {
	analyzer := newTestAnalyzer(t, &fixedGenerator{err: errors.New("chat completion status 400: bad request")})

	result, err := analyzer.Analyze(context.Background(), Input{
		Title:       "Save broken",
		Description: "Clicking save does nothing at all.",
	})
	if err != nil {
		t.Fatalf("extraction failures must not abort the analysis: %v", err)
	}

	if !ai.IsFailurePlaceholder(result.ParsedSteps) {
		t.Fatalf("expected failure placeholder, got %q", result.ParsedSteps)
	}
	if !strings.HasPrefix(result.ParsedSteps, "[AI parsing failed: ") {
		t.Fatalf("unexpected placeholder shape: %q", result.ParsedSteps)
	}
	if result.Metrics.Confidence == "" {
		t.Fatal("scoring must still run when extraction fails")
	}
}

func TestAnalyzeWithoutGenerator(t *testing.T) {
	analyzer := newTestAnalyzer(t, nil)

	result, err := analyzer.Analyze(context.Background(), Input{
		Title:       "Save broken",
		Description: "Clicking save does nothing at all.",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.Contains(result.ParsedSteps, "generation disabled") {
		t.Fatalf("expected disabled placeholder, got %q", result.ParsedSteps)
	}
}

package analysis

import (
	"reflect"
	"strings"
	"testing"
)

const completeDescription = "1. Open the dashboard page\n" +
	"2. Click the export button\n" +
	"3. Wait for the spinner\n" +
	"Expected the CSV to download but instead got a TypeError in the Chrome console."

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	scorer, err := NewScorer("")
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	return scorer
}

func TestScoreCompleteReport(t *testing.T) {
	scorer := newTestScorer(t)

	metrics, err := scorer.Score("Export broken", completeDescription, 1)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if metrics.Score != 100 {
		t.Fatalf("expected score 100, got %v", metrics.Score)
	}
	if metrics.Confidence != ConfidenceVeryHigh {
		t.Fatalf("expected confidence %q, got %q", ConfidenceVeryHigh, metrics.Confidence)
	}
	if len(metrics.Factors) != 6 {
		t.Fatalf("expected 6 factors, got %d: %v", len(metrics.Factors), metrics.Factors)
	}
	if len(metrics.MissingInfo) != 0 {
		t.Fatalf("expected no missing info, got %v", metrics.MissingInfo)
	}
	if len(metrics.Recommendations) != 0 {
		t.Fatalf("expected no recommendations, got %v", metrics.Recommendations)
	}
}

func TestScoreSparseReport(t *testing.T) {
	scorer := newTestScorer(t)

	metrics, err := scorer.Score("Broken", "It doesn't work.", 0)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if metrics.Score != 0 {
		t.Fatalf("expected score 0, got %v", metrics.Score)
	}
	if metrics.Confidence != ConfidenceLow {
		t.Fatalf("expected confidence %q, got %q", ConfidenceLow, metrics.Confidence)
	}
	if len(metrics.MissingInfo) != 6 {
		t.Fatalf("expected 6 missing entries, got %d: %v", len(metrics.MissingInfo), metrics.MissingInfo)
	}
	if len(metrics.Recommendations) != maxRecommendations {
		t.Fatalf("expected %d recommendations, got %d", maxRecommendations, len(metrics.Recommendations))
	}
	if len(metrics.Factors) != 0 {
		t.Fatalf("expected no factors, got %v", metrics.Factors)
	}
}

func TestScoreConfidenceBands(t *testing.T) {
	scorer := newTestScorer(t)

	tests := []struct {
		name        string
		description string
		attachments int
		score       float64
		confidence  string
	}{
		{
			name:        "steps and expectation",
			description: "First open the page, then click save. Expected a toast but got nothing.",
			score:       45,
			confidence:  ConfidenceMedium,
		},
		{
			name:        "steps expectation and environment",
			description: "First open the page in Chrome, then click save. Expected a toast but got nothing at all here.",
			score:       60,
			confidence:  ConfidenceHigh,
		},
		{
			name:        "environment only",
			description: "Something is wrong with the page in Firefox.",
			score:       15,
			confidence:  ConfidenceLow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			metrics, err := scorer.Score("Report", tc.description, tc.attachments)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if metrics.Score != tc.score {
				t.Fatalf("expected score %v, got %v (factors %v)", tc.score, metrics.Score, metrics.Factors)
			}
			if metrics.Confidence != tc.confidence {
				t.Fatalf("expected confidence %q, got %q", tc.confidence, metrics.Confidence)
			}
		})
	}
}

func TestScoreEmptyDescription(t *testing.T) {
	scorer := newTestScorer(t)

	for _, description := range []string{"", "   ", "\n\t "} {
		if _, err := scorer.Score("Title", description, 0); err != ErrEmptyDescription {
			t.Fatalf("description %q: expected ErrEmptyDescription, got %v", description, err)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	scorer := newTestScorer(t)

	first, err := scorer.Score("Export broken", completeDescription, 2)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	second, err := scorer.Score("Export broken", completeDescription, 2)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v vs %+v", first, second)
	}
}

func TestScoreFactorsAndMissingPartition(t *testing.T) {
	scorer := newTestScorer(t)

	descriptions := []string{
		completeDescription,
		"It doesn't work.",
		"First open the settings page then toggle dark mode. The app crashes on Android version 14.",
		"The save button should store my changes but instead the form clears itself every single time I try.",
	}

	for _, description := range descriptions {
		metrics, err := scorer.Score("Report", description, 0)
		if err != nil {
			t.Fatalf("Score(%q): %v", description, err)
		}
		if got := len(metrics.Factors) + len(metrics.MissingInfo); got != 6 {
			t.Fatalf("factors plus missing must cover all 6 signals, got %d for %q", got, description)
		}
	}
}

func TestScoreWordBoundaries(t *testing.T) {
	scorer := newTestScorer(t)

	// "button" must not satisfy the observed-behavior keyword "but"
	metrics, err := scorer.Score("Render glitch", "The save button should render once. The page shows it twice.", 0)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	for _, factor := range metrics.Factors {
		if strings.Contains(factor, "Expected and actual") {
			t.Fatalf("expected_vs_actual fired on substring match: %v", metrics.Factors)
		}
	}

	metrics, err = scorer.Score("Render glitch", "The save button should render once but the page shows it twice.", 0)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	found := false
	for _, factor := range metrics.Factors {
		if strings.Contains(factor, "Expected and actual") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected_vs_actual should fire on whole-word match: %v", metrics.Factors)
	}
}

func TestScoreErrorCodeDetection(t *testing.T) {
	scorer := newTestScorer(t)

	tests := []struct {
		name        string
		description string
		want        bool
	}{
		{"backtick code", "Clicking save triggers `ECONNREFUSED` in the request log.", true},
		{"camel case suffix", "Saving throws NullPointerException somewhere deep in the stack.", true},
		{"plain keyword", "The upload fails every time I pick a large file.", true},
		{"no error signal", "The page looks slightly off on wide monitors.", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			metrics, err := scorer.Score("Report", tc.description, 0)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			found := false
			for _, factor := range metrics.Factors {
				if strings.Contains(factor, "Error message") {
					found = true
				}
			}
			if found != tc.want {
				t.Fatalf("error signal = %v, want %v (factors %v)", found, tc.want, metrics.Factors)
			}
		})
	}
}

func TestChecklistWeightsSumToHundred(t *testing.T) {
	scorer := newTestScorer(t)

	entries := scorer.Checklist()
	if len(entries) != 6 {
		t.Fatalf("expected 6 checklist entries, got %d", len(entries))
	}

	total := 0.0
	for _, entry := range entries {
		if entry.Weight <= 0 {
			t.Fatalf("entry %q has non-positive weight %v", entry.Name, entry.Weight)
		}
		total += entry.Weight
	}
	if total != 100 {
		t.Fatalf("checklist weights must sum to 100, got %v", total)
	}
}

func TestRecommendationsFollowChecklistOrder(t *testing.T) {
	scorer := newTestScorer(t)

	metrics, err := scorer.Score("Broken", "It doesn't work.", 0)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	expected := []string{
		"Describe the exact steps to reproduce, numbered in order",
		"State what you expected to happen and what happened instead",
		"Add browser, operating system, and version information",
		"Include the exact error message, console output, or stack trace",
		"Expand the description with more detail about the failure",
	}
	if !reflect.DeepEqual(metrics.Recommendations, expected) {
		t.Fatalf("recommendations out of order:\n got %v\nwant %v", metrics.Recommendations, expected)
	}
}

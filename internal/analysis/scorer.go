package analysis

import (
	"errors"
	"strings"
)

// Confidence tiers ordered from weakest to strongest.
const (
	ConfidenceLow      = "low"
	ConfidenceMedium   = "medium"
	ConfidenceHigh     = "high"
	ConfidenceVeryHigh = "very high"
)

const maxRecommendations = 5

// ErrEmptyDescription is returned when the description is blank. Callers are
// expected to validate presence of a description before scoring.
var ErrEmptyDescription = errors.New("description is empty or whitespace-only")

// Metrics captures the reproducibility assessment for a single bug report.
type Metrics struct {
	Score           float64  `json:"score"`
	Confidence      string   `json:"confidence"`
	Factors         []string `json:"factors"`
	MissingInfo     []string `json:"missing_info"`
	Recommendations []string `json:"recommendations"`
}

// Scorer evaluates bug-report text against the reproducibility checklist.
type Scorer struct {
	signals []signal
}

// NewScorer constructs a scorer. An optional keyword override file may adjust
// the detection keyword lists; weights and messages are fixed.
func NewScorer(keywordPath string) (*Scorer, error) {
	keywords, err := loadKeywords(keywordPath)
	if err != nil {
		return nil, err
	}
	return &Scorer{signals: buildSignals(keywords)}, nil
}

// Score computes the reproducibility metrics for the supplied report text.
// The result depends only on the inputs; repeated calls return identical
// output and the method is safe for concurrent use.
func (s *Scorer) Score(title, description string, attachmentCount int) (Metrics, error) {
	if strings.TrimSpace(description) == "" {
		return Metrics{}, ErrEmptyDescription
	}

	in := newReportText(description, attachmentCount)

	metrics := Metrics{
		Factors:         []string{},
		MissingInfo:     []string{},
		Recommendations: []string{},
	}

	total := 0.0
	for _, sig := range s.signals {
		if sig.detect(in) {
			total += sig.weight
			metrics.Factors = append(metrics.Factors, sig.factor)
			continue
		}
		metrics.MissingInfo = append(metrics.MissingInfo, sig.missing)
		if len(metrics.Recommendations) < maxRecommendations {
			metrics.Recommendations = append(metrics.Recommendations, sig.recommendation)
		}
	}

	metrics.Score = clampScore(total)
	metrics.Confidence = confidenceFor(metrics.Score)
	return metrics, nil
}

// Checklist exposes the published signal names and weights.
func (s *Scorer) Checklist() []ChecklistEntry {
	entries := make([]ChecklistEntry, 0, len(s.signals))
	for _, sig := range s.signals {
		entries = append(entries, ChecklistEntry{Name: sig.name, Weight: sig.weight})
	}
	return entries
}

// ChecklistEntry describes one published checklist signal.
type ChecklistEntry struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

func confidenceFor(score float64) string {
	switch {
	case score >= 80:
		return ConfidenceVeryHigh
	case score >= 60:
		return ConfidenceHigh
	case score >= 40:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func clampScore(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

package triage

import (
	"context"
	"time"

	"bug-report-triage/backend/internal/ai"
	"bug-report-triage/backend/internal/analysis"
)

const defaultExtractionTimeout = 45 * time.Second

// Input is the immutable payload analyzed for one report.
type Input struct {
	Title           string
	Description     string
	AttachmentCount int
}

// Result pairs the extracted reproduction steps with the reproducibility
// metrics for a single report.
type Result struct {
	ParsedSteps string
	Metrics     analysis.Metrics
}

// Analyzer is the single entry point for analyzing a bug report: it runs the
// deterministic scorer and the step extractor over the same input. Stateless
// and safe for concurrent use.
type Analyzer struct {
	scorer    *analysis.Scorer
	extractor *ai.StepExtractor
	timeout   time.Duration
}

// NewAnalyzer wires the analyzer. A zero timeout applies the default
// per-extraction deadline.
func NewAnalyzer(scorer *analysis.Scorer, extractor *ai.StepExtractor, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = defaultExtractionTimeout
	}
	return &Analyzer{scorer: scorer, extractor: extractor, timeout: timeout}
}

// Analyze scores the report and extracts reproduction steps. Scoring failures
// (empty description) are returned to the caller; extraction failures are
// absorbed into the parsed-steps placeholder and never abort the analysis.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	metrics, err := a.scorer.Score(in.Title, in.Description, in.AttachmentCount)
	if err != nil {
		return Result{}, err
	}

	extractCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	steps := a.extractor.Extract(extractCtx, in.Title, in.Description)

	return Result{ParsedSteps: steps, Metrics: metrics}, nil
}

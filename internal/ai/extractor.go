package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	extractMaxRetries     = 3
	extractInitialBackoff = 2 * time.Second
	extractMaxBackoff     = 10 * time.Second

	failurePrefix = "[AI parsing failed: "
	failureSuffix = "]"
)

// StepExtractor derives numbered reproduction steps from free-text bug
// descriptions via the injected Generator.
type StepExtractor struct {
	generator Generator
}

// NewStepExtractor wires the extractor to a generator. A nil or disabled
// generator is valid; extraction then yields the failure placeholder.
func NewStepExtractor(generator Generator) *StepExtractor {
	return &StepExtractor{generator: generator}
}

// Enabled reports whether the underlying generator can be called.
func (e *StepExtractor) Enabled() bool {
	return e != nil && e.generator != nil && e.generator.Enabled()
}

// Extract returns the generation service's response verbatim. It never
// propagates an error: any failure of the outbound call is absorbed into the
// canonical failure placeholder so the caller can always persist a value.
func (e *StepExtractor) Extract(ctx context.Context, title, description string) string {
	if !e.Enabled() {
		return FailurePlaceholder("generation disabled")
	}

	text, err := e.generateWithRetry(ctx, buildExtractionPrompt(title, description))
	if err != nil {
		logrus.WithError(err).Warn("step extraction failed")
		return FailurePlaceholder(shortReason(err))
	}
	return text
}

func (e *StepExtractor) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	delay := extractInitialBackoff
	var lastErr error
	for attempt := 0; attempt < extractMaxRetries; attempt++ {
		text, err := e.generator.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if !shouldRetryGeneration(err) {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > extractMaxBackoff {
			delay = extractMaxBackoff
		}
	}
	return "", lastErr
}

func shouldRetryGeneration(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "status 429") || strings.Contains(msg, "status 500") || strings.Contains(msg, "status 503")
}

func buildExtractionPrompt(title, description string) string {
	builder := &strings.Builder{}
	builder.WriteString("You are an expert at analyzing bug reports. Extract clear, step-by-step reproduction instructions from the bug description below. ")
	builder.WriteString("Respond with a numbered list of specific, actionable steps that someone could follow to reproduce the issue, and nothing else. ")
	builder.WriteString("If the description does not contain explicit steps, provide the best interpretation based on the information given.\n\n")
	fmt.Fprintf(builder, "Bug title: %s\n\n", strings.TrimSpace(title))
	fmt.Fprintf(builder, "Bug description:\n%s\n", description)
	return builder.String()
}

// FailurePlaceholder renders the canonical soft-failure value stored in place
// of extracted steps.
func FailurePlaceholder(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	return failurePrefix + reason + failureSuffix
}

// IsFailurePlaceholder reports whether the parsed-steps value records an
// extraction failure rather than generated steps.
func IsFailurePlaceholder(value string) bool {
	return strings.HasPrefix(value, failurePrefix) && strings.HasSuffix(value, failureSuffix)
}

func shortReason(err error) string {
	switch {
	case err == nil:
		return "unknown error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrDisabled):
		return "generation disabled"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "status 429"):
		return "rate limited"
	case strings.Contains(msg, "empty response"), strings.Contains(msg, "empty completion"):
		return "empty response"
	}
	reason := strings.TrimSpace(err.Error())
	if len(reason) > 80 {
		cut := 80
		for cut > 0 && !utf8.RuneStart(reason[cut]) {
			cut--
		}
		reason = reason[:cut]
	}
	return reason
}

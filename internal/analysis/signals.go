package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const minDescriptionLength = 100

var (
	orderedStepPattern = regexp.MustCompile(`(^|\s)\d+[.)]\s`)
	errorCodePattern   = regexp.MustCompile("`[^`]+`|\\b\\w+(Error|Exception)\\b")
)

// signal is one row of the reproducibility checklist: a detector, its weight,
// and the messages recorded depending on presence.
type signal struct {
	name           string
	weight         float64
	detect         func(in reportText) bool
	factor         string
	missing        string
	recommendation string
}

// keywordLists holds the detection keywords per signal. Any list left empty
// in an override file falls back to the default.
type keywordLists struct {
	Steps       []string `json:"steps"`
	Expectation []string `json:"expectation"`
	Observed    []string `json:"observed"`
	Environment []string `json:"environment"`
	Error       []string `json:"error"`
}

func defaultKeywords() keywordLists {
	return keywordLists{
		Steps:       []string{"step 1", "step one", "first", "then", "next", "finally"},
		Expectation: []string{"should", "expected", "expect", "supposed to"},
		Observed:    []string{"but", "instead", "actual", "actually", "got"},
		Environment: []string{"browser", "chrome", "firefox", "safari", "edge", "windows", "mac", "macos", "linux", "ios", "android", "version", "device", "operating system"},
		Error:       []string{"error", "exception", "crash", "crashes", "stack trace", "traceback", "fails", "failure"},
	}
}

func loadKeywords(path string) (keywordLists, error) {
	keywords := defaultKeywords()
	path = strings.TrimSpace(path)
	if path == "" {
		return keywords, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return keywordLists{}, fmt.Errorf("read keyword overrides: %w", err)
	}
	var overrides keywordLists
	if err := json.Unmarshal(data, &overrides); err != nil {
		return keywordLists{}, fmt.Errorf("unmarshal keyword overrides: %w", err)
	}
	if list := normalizeKeywords(overrides.Steps); len(list) > 0 {
		keywords.Steps = list
	}
	if list := normalizeKeywords(overrides.Expectation); len(list) > 0 {
		keywords.Expectation = list
	}
	if list := normalizeKeywords(overrides.Observed); len(list) > 0 {
		keywords.Observed = list
	}
	if list := normalizeKeywords(overrides.Environment); len(list) > 0 {
		keywords.Environment = list
	}
	if list := normalizeKeywords(overrides.Error); len(list) > 0 {
		keywords.Error = list
	}
	return keywords, nil
}

func normalizeKeywords(in []string) []string {
	var out []string
	for _, keyword := range in {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			out = append(out, keyword)
		}
	}
	return out
}

// buildSignals assembles the checklist in its published order. Weights sum
// to 100 so a report matching every signal scores exactly 100.
func buildSignals(keywords keywordLists) []signal {
	return []signal{
		{
			name:   "numbered_steps",
			weight: 25,
			detect: func(in reportText) bool {
				return orderedStepPattern.MatchString(in.raw) || in.hasAny(keywords.Steps)
			},
			factor:         "Clear step-by-step sequence provided",
			missing:        "No clear step-by-step sequence",
			recommendation: "Describe the exact steps to reproduce, numbered in order",
		},
		{
			name:   "expected_vs_actual",
			weight: 20,
			detect: func(in reportText) bool {
				return in.hasAny(keywords.Expectation) && in.hasAny(keywords.Observed)
			},
			factor:         "Expected and actual behavior described",
			missing:        "Missing expected vs. actual behavior",
			recommendation: "State what you expected to happen and what happened instead",
		},
		{
			name:   "environment_details",
			weight: 15,
			detect: func(in reportText) bool {
				return in.hasAny(keywords.Environment)
			},
			factor:         "Environment details provided (browser, OS, version)",
			missing:        "No environment details (browser, OS, version)",
			recommendation: "Add browser, operating system, and version information",
		},
		{
			name:   "error_details",
			weight: 15,
			detect: func(in reportText) bool {
				return in.hasAny(keywords.Error) || errorCodePattern.MatchString(in.original)
			},
			factor:         "Error message or code included",
			missing:        "No error message or code included",
			recommendation: "Include the exact error message, console output, or stack trace",
		},
		{
			name:   "sufficient_detail",
			weight: 10,
			detect: func(in reportText) bool {
				return in.length >= minDescriptionLength
			},
			factor:         "Detailed description provided",
			missing:        "Description is too short for reliable reproduction",
			recommendation: "Expand the description with more detail about the failure",
		},
		{
			name:   "attachments",
			weight: 15,
			detect: func(in reportText) bool {
				return in.attachments > 0
			},
			factor:         "Supporting files attached",
			missing:        "No screenshots or log files attached",
			recommendation: "Attach screenshots, logs, or a screen recording",
		},
	}
}

// reportText is the preprocessed scoring input: the lowered description, a
// word set for single-token keyword lookups, and the attachment count.
type reportText struct {
	original    string
	raw         string
	words       map[string]struct{}
	length      int
	attachments int
}

func newReportText(description string, attachmentCount int) reportText {
	raw := strings.ToLower(description)
	words := make(map[string]struct{})
	for _, word := range splitWords(raw) {
		words[word] = struct{}{}
	}
	return reportText{
		original:    description,
		raw:         raw,
		words:       words,
		length:      len(strings.TrimSpace(description)),
		attachments: attachmentCount,
	}
}

// hasAny reports whether any keyword matches. Single-word keywords match on
// word boundaries so short tokens like "but" do not fire inside larger words;
// phrases match as substrings.
func (in reportText) hasAny(keywords []string) bool {
	for _, keyword := range keywords {
		if strings.ContainsRune(keyword, ' ') {
			if strings.Contains(in.raw, keyword) {
				return true
			}
			continue
		}
		if _, ok := in.words[keyword]; ok {
			return true
		}
	}
	return false
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		isLower := r >= 'a' && r <= 'z'
		isDigit := r >= '0' && r <= '9'
		return !isLower && !isDigit
	})
}

package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bug-report-triage/backend/internal/analysis"
	"bug-report-triage/backend/internal/store"
)

// Config drives the GitHub export client.
type Config struct {
	Token   string
	Owner   string
	Repo    string
	BaseURL string
	Timeout time.Duration
}

// Issue identifies a created GitHub issue.
type Issue struct {
	Number int    `json:"number"`
	URL    string `json:"html_url"`
}

// Client creates GitHub issues from analyzed bug reports.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	owner      string
	repo       string
}

// ErrMissingCredentials is returned when the client cannot authenticate.
var ErrMissingCredentials = errors.New("github export missing token or repository")

// NewClient constructs a GitHub client if configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" || strings.TrimSpace(cfg.Owner) == "" || strings.TrimSpace(cfg.Repo) == "" {
		return nil, ErrMissingCredentials
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(cfg.Token),
		owner:      strings.TrimSpace(cfg.Owner),
		repo:       strings.TrimSpace(cfg.Repo),
	}, nil
}

// ExportReport creates a GitHub issue for the supplied report.
func (c *Client) ExportReport(ctx context.Context, report store.BugReport) (Issue, error) {
	if c == nil {
		return Issue{}, errors.New("github client is nil")
	}

	payload := map[string]any{
		"title":  "[Bug] " + strings.TrimSpace(report.Title),
		"body":   FormatIssueBody(report),
		"labels": IssueLabels(report),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Issue{}, fmt.Errorf("marshal issue: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues", c.baseURL, c.owner, c.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Issue{}, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Issue{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		// back off for 5 seconds and retry once
		select {
		case <-ctx.Done():
			return Issue{}, ctx.Err()
		case <-time.After(5 * time.Second):
		}
		resp.Body.Close()
		retryReq, retryErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if retryErr != nil {
			return Issue{}, retryErr
		}
		retryReq.Header = req.Header.Clone()
		resp, err = c.httpClient.Do(retryReq)
		if err != nil {
			return Issue{}, err
		}
		defer resp.Body.Close()
	}

	if resp.StatusCode != http.StatusCreated {
		var apiErr map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return Issue{}, fmt.Errorf("github status %d: %v", resp.StatusCode, apiErr)
	}

	var issue Issue
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return Issue{}, fmt.Errorf("decode github response: %w", err)
	}
	return issue, nil
}

// FormatIssueBody renders the markdown body for the exported issue.
func FormatIssueBody(report store.BugReport) string {
	builder := &strings.Builder{}
	builder.WriteString("## Bug Description\n\n")
	builder.WriteString(strings.TrimSpace(report.Description))
	builder.WriteString("\n\n")

	if steps := strings.TrimSpace(report.ParsedSteps); steps != "" {
		builder.WriteString("## Reproduction Steps\n\n")
		builder.WriteString(steps)
		builder.WriteString("\n\n")
	}

	builder.WriteString("## Reproducibility Assessment\n\n")
	fmt.Fprintf(builder, "- Score: %.0f/100\n", report.ReproducibilityScore)
	fmt.Fprintf(builder, "- Confidence: %s\n", report.ReproducibilityConfidence)
	if factors := report.Factors(); len(factors) > 0 {
		builder.WriteString("\n### Strengths\n\n")
		for _, factor := range factors {
			fmt.Fprintf(builder, "- %s\n", factor)
		}
	}
	if recommendations := report.Recommendations(); len(recommendations) > 0 {
		builder.WriteString("\n### Suggested Improvements\n\n")
		for _, recommendation := range recommendations {
			fmt.Fprintf(builder, "- %s\n", recommendation)
		}
	}
	if report.AttachmentCount > 0 {
		fmt.Fprintf(builder, "\n## Attachments\n\n%d file(s) were submitted with the original report.\n", report.AttachmentCount)
	}

	builder.WriteString("\n---\n")
	fmt.Fprintf(builder, "Exported from bug report #%d on %s\n", report.ID, report.CreatedAt.UTC().Format("2006-01-02"))
	return builder.String()
}

// IssueLabels derives GitHub labels from the report's confidence tier.
func IssueLabels(report store.BugReport) []string {
	labels := []string{"bug", "imported"}
	switch report.ReproducibilityConfidence {
	case analysis.ConfidenceVeryHigh:
		labels = append(labels, "high-reproducibility", "ready-to-reproduce")
	case analysis.ConfidenceHigh:
		labels = append(labels, "high-reproducibility")
	case analysis.ConfidenceMedium:
		labels = append(labels, "medium-reproducibility")
	default:
		labels = append(labels, "needs-clarification")
	}
	return labels
}

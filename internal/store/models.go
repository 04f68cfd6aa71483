package store

import (
	"encoding/json"
	"strings"
	"time"
)

// BugReport persists a submitted report together with its analysis output.
// The analysis columns are written once when the report is created and only
// touched again by an explicit rescore.
type BugReport struct {
	ID                        uint   `gorm:"primaryKey"`
	BatchID                   uint   `gorm:"index"`
	BatchRowIndex             int    `gorm:"index"`
	Title                     string `gorm:"size:255;index"`
	Description               string `gorm:"type:text"`
	Priority                  string `gorm:"size:32"`
	Status                    string `gorm:"size:32;index"`
	ParsedSteps               string `gorm:"type:text"`
	ReproducibilityScore      float64
	ReproducibilityConfidence string `gorm:"size:16;index"`
	FactorsJSON               string `gorm:"type:text"`
	MissingInfoJSON           string `gorm:"type:text"`
	RecommendationsJSON       string `gorm:"type:text"`
	AttachmentCount           int
	ProcessingTimeMs          int64
	ExportedToGithub          bool
	GithubIssueURL            string `gorm:"size:512"`
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// SetFactors stores the detected factors as JSON.
func (r *BugReport) SetFactors(factors []string) {
	r.FactorsJSON = marshalStrings(factors)
}

// Factors returns the decoded factor list.
func (r *BugReport) Factors() []string {
	return unmarshalStrings(r.FactorsJSON)
}

// SetMissingInfo stores the missing-info entries as JSON.
func (r *BugReport) SetMissingInfo(missing []string) {
	r.MissingInfoJSON = marshalStrings(missing)
}

// MissingInfo returns the decoded missing-info list.
func (r *BugReport) MissingInfo() []string {
	return unmarshalStrings(r.MissingInfoJSON)
}

// SetRecommendations stores the recommendations as JSON.
func (r *BugReport) SetRecommendations(recommendations []string) {
	r.RecommendationsJSON = marshalStrings(recommendations)
}

// Recommendations returns the decoded recommendation list.
func (r *BugReport) Recommendations() []string {
	return unmarshalStrings(r.RecommendationsJSON)
}

// Attachment stores metadata for a file uploaded with a report. Content
// storage lives outside this service; only the count feeds scoring.
type Attachment struct {
	ID          uint   `gorm:"primaryKey"`
	BugReportID uint   `gorm:"index"`
	Filename    string `gorm:"size:256"`
	ContentType string `gorm:"size:128"`
	SizeBytes   int64
	CreatedAt   time.Time
}

// ReportBatch represents an uploaded CSV dataset of reports.
type ReportBatch struct {
	ID               uint   `gorm:"primaryKey"`
	Name             string `gorm:"size:128;index"`
	Owner            string `gorm:"size:128;index"`
	OriginalFilename string `gorm:"size:256"`
	RowCount         int
	SkippedRows      int
	ProcessedReports int
	LastAnalyzedAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BatchReport is one CSV row awaiting analysis (one row per report).
type BatchReport struct {
	ID              uint   `gorm:"primaryKey"`
	BatchID         uint   `gorm:"index"`
	RowIndex        int    `gorm:"index"`
	Title           string `gorm:"size:255"`
	Description     string `gorm:"type:text"`
	AttachmentCount int
	CreatedAt       time.Time
}

// BatchRequest tracks an analysis job for a batch (initial run, resume).
type BatchRequest struct {
	ID         uint   `gorm:"primaryKey"`
	BatchID    uint   `gorm:"index"`
	Type       string `gorm:"size:32"`
	Status     string `gorm:"size:32"`
	JobID      string `gorm:"size:64"`
	StartedAt  time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
}

func marshalStrings(values []string) string {
	if values == nil {
		return "[]"
	}
	payload, _ := json.Marshal(values)
	return string(payload)
}

func unmarshalStrings(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

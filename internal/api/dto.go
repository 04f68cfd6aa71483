package api

import (
	"strings"
	"time"

	"bug-report-triage/backend/internal/analysis"
	"bug-report-triage/backend/internal/store"
)

// SubmitReportRequest is the payload for creating a report.
type SubmitReportRequest struct {
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Priority        string              `json:"priority"`
	AttachmentCount int                 `json:"attachment_count"`
	Attachments     []AttachmentPayload `json:"attachments"`
}

// AttachmentPayload carries attachment metadata submitted with a report.
type AttachmentPayload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// AnalyzeRequest is the payload for the stateless analysis endpoint.
type AnalyzeRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	AttachmentCount int    `json:"attachment_count"`
}

// AnalysisDTO is the analysis output contract.
type AnalysisDTO struct {
	ParsedSteps     string   `json:"parsed_steps"`
	Score           float64  `json:"score"`
	Confidence      string   `json:"confidence"`
	Factors         []string `json:"factors"`
	MissingInfo     []string `json:"missing_info"`
	Recommendations []string `json:"recommendations"`
}

// ReportDTO is the API representation for a persisted report.
type ReportDTO struct {
	ID               uint      `json:"id"`
	BatchID          uint      `json:"batch_id,omitempty"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Priority         string    `json:"priority"`
	Status           string    `json:"status"`
	ParsedSteps      string    `json:"parsed_steps"`
	Score            float64   `json:"score"`
	Confidence       string    `json:"confidence"`
	Factors          []string  `json:"factors"`
	MissingInfo      []string  `json:"missing_info"`
	Recommendations  []string  `json:"recommendations"`
	AttachmentCount  int       `json:"attachment_count"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	ExportedToGithub bool      `json:"exported_to_github"`
	GithubIssueURL   string    `json:"github_issue_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AttachmentDTO is the API representation of stored attachment metadata.
type AttachmentDTO struct {
	ID          uint   `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// ReportDetailResponse is the single-report payload including attachment rows.
type ReportDetailResponse struct {
	ReportDTO
	Attachments []AttachmentDTO `json:"attachments"`
}

// CreateReportResponse returns the stored report plus a probable duplicate
// when the title closely matches an existing report.
type CreateReportResponse struct {
	Report            ReportDTO         `json:"report"`
	ProbableDuplicate *SimilarReportDTO `json:"probable_duplicate,omitempty"`
}

// SimilarReportDTO describes a close title match.
type SimilarReportDTO struct {
	ReportID   uint    `json:"report_id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// ReportsResponse holds report items and totals.
type ReportsResponse struct {
	Items []ReportDTO `json:"items"`
	Total int64       `json:"total"`
}

// UploadResponse reports batch statistics after processing a CSV upload.
type UploadResponse struct {
	BatchID     uint   `json:"batch_id"`
	BatchName   string `json:"batch_name"`
	Owner       string `json:"owner"`
	RowCount    int    `json:"row_count"`
	SkippedRows int    `json:"skipped_rows"`
	Processed   int    `json:"processed_reports"`
}

// AnalyzeBatchRequest controls pagination for batch analysis runs.
type AnalyzeBatchRequest struct {
	Limit  int  `json:"limit"`
	Offset int  `json:"offset"`
	Resume bool `json:"resume"`
	Force  bool `json:"force"`
}

// StartAnalysisResponse describes the asynchronous job kickoff payload.
type StartAnalysisResponse struct {
	JobID     string    `json:"job_id"`
	BatchID   uint      `json:"batch_id"`
	RequestID uint      `json:"request_id"`
	Total     int64     `json:"total"`
	StartedAt time.Time `json:"started_at"`
}

// AnalysisStatusResponse describes the state of the active batch job.
type AnalysisStatusResponse struct {
	Running    bool       `json:"running"`
	JobID      string     `json:"job_id"`
	BatchID    uint       `json:"batch_id"`
	RequestID  uint       `json:"request_id"`
	State      string     `json:"state"`
	Message    string     `json:"message"`
	Processed  int        `json:"processed"`
	Total      int64      `json:"total"`
	LastReport *ReportDTO `json:"last_report,omitempty"`
}

// BatchDTO represents metadata for an uploaded report dataset.
type BatchDTO struct {
	ID               uint       `json:"id"`
	Name             string     `json:"name"`
	Owner            string     `json:"owner"`
	OriginalFilename string     `json:"original_filename"`
	RowCount         int        `json:"row_count"`
	SkippedRows      int        `json:"skipped_rows"`
	ProcessedReports int        `json:"processed_reports"`
	CreatedAt        time.Time  `json:"created_at"`
	LastAnalyzedAt   *time.Time `json:"last_analyzed_at"`
}

// BatchesResponse is the paginated response for report batches.
type BatchesResponse struct {
	Items []BatchDTO `json:"items"`
	Total int64      `json:"total"`
}

// BatchRequestDTO represents analysis request tracking metadata.
type BatchRequestDTO struct {
	ID         uint       `json:"id"`
	BatchID    uint       `json:"batch_id"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	JobID      string     `json:"job_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// FromModel converts a store.BugReport into the DTO representation.
func FromModel(r store.BugReport) ReportDTO {
	return ReportDTO{
		ID:               r.ID,
		BatchID:          r.BatchID,
		Title:            r.Title,
		Description:      r.Description,
		Priority:         r.Priority,
		Status:           r.Status,
		ParsedSteps:      r.ParsedSteps,
		Score:            round2(r.ReproducibilityScore),
		Confidence:       r.ReproducibilityConfidence,
		Factors:          orEmpty(r.Factors()),
		MissingInfo:      orEmpty(r.MissingInfo()),
		Recommendations:  orEmpty(r.Recommendations()),
		AttachmentCount:  r.AttachmentCount,
		ProcessingTimeMs: r.ProcessingTimeMs,
		ExportedToGithub: r.ExportedToGithub,
		GithubIssueURL:   strings.TrimSpace(r.GithubIssueURL),
		CreatedAt:        r.CreatedAt,
	}
}

// AttachmentFromModel converts a store.Attachment into the DTO representation.
func AttachmentFromModel(a store.Attachment) AttachmentDTO {
	return AttachmentDTO{
		ID:          a.ID,
		Filename:    a.Filename,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
	}
}

// AnalysisFromMetrics converts scorer output plus parsed steps into the DTO.
func AnalysisFromMetrics(parsedSteps string, metrics analysis.Metrics) AnalysisDTO {
	return AnalysisDTO{
		ParsedSteps:     parsedSteps,
		Score:           round2(metrics.Score),
		Confidence:      metrics.Confidence,
		Factors:         orEmpty(metrics.Factors),
		MissingInfo:     orEmpty(metrics.MissingInfo),
		Recommendations: orEmpty(metrics.Recommendations),
	}
}

// BatchFromModel converts a store.ReportBatch into a DTO.
func BatchFromModel(b store.ReportBatch) BatchDTO {
	return BatchDTO{
		ID:               b.ID,
		Name:             b.Name,
		Owner:            b.Owner,
		OriginalFilename: b.OriginalFilename,
		RowCount:         b.RowCount,
		SkippedRows:      b.SkippedRows,
		ProcessedReports: b.ProcessedReports,
		CreatedAt:        b.CreatedAt,
		LastAnalyzedAt:   b.LastAnalyzedAt,
	}
}

// BatchRequestFromModel converts a store.BatchRequest into a DTO.
func BatchRequestFromModel(r store.BatchRequest) BatchRequestDTO {
	return BatchRequestDTO{
		ID:         r.ID,
		BatchID:    r.BatchID,
		Type:       r.Type,
		Status:     r.Status,
		JobID:      r.JobID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&BugReport{}, &Attachment{}, &ReportBatch{}, &BatchReport{}, &BatchRequest{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveReport inserts a new bug report row.
func (d *Database) SaveReport(report *BugReport) error {
	if report == nil {
		return errors.New("report is nil")
	}
	report.Title = strings.TrimSpace(report.Title)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(report).Error
}

// UpdateReportAnalysis rewrites the analysis columns for an existing report.
// Used by rescoring; parsed steps are left untouched unless provided.
func (d *Database) UpdateReportAnalysis(id uint, fields map[string]any) error {
	if id == 0 {
		return errors.New("report id required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&BugReport{}).Where("id = ?", id).Updates(fields).Error
}

// MarkReportExported records a successful GitHub export.
func (d *Database) MarkReportExported(id uint, issueURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&BugReport{}).Where("id = ?", id).Updates(map[string]any{
		"exported_to_github": true,
		"github_issue_url":   strings.TrimSpace(issueURL),
	}).Error
}

// GetReport fetches a report by id.
func (d *Database) GetReport(id uint) (*BugReport, error) {
	var report BugReport
	if err := d.gorm.First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// ReportQuery filters and paginates report listings. Limit < 0 disables
// pagination (used by exports).
type ReportQuery struct {
	Query      string
	MinScore   float64
	Confidence string
	Status     string
	Sort       string
	Offset     int
	Limit      int
	BatchID    uint
}

// ListReports returns matching reports plus the unpaginated total.
func (d *Database) ListReports(q ReportQuery) ([]BugReport, int64, error) {
	tx := d.gorm.Model(&BugReport{})
	if term := strings.TrimSpace(q.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		tx = tx.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if q.MinScore > 0 {
		tx = tx.Where("reproducibility_score >= ?", q.MinScore)
	}
	if conf := strings.TrimSpace(q.Confidence); conf != "" {
		tx = tx.Where("reproducibility_confidence = ?", strings.ToLower(conf))
	}
	if status := strings.TrimSpace(q.Status); status != "" {
		tx = tx.Where("status = ?", strings.ToLower(status))
	}
	if q.BatchID != 0 {
		tx = tx.Where("batch_id = ?", q.BatchID)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch strings.TrimSpace(q.Sort) {
	case "score":
		tx = tx.Order("reproducibility_score DESC, id DESC")
	case "score_asc":
		tx = tx.Order("reproducibility_score ASC, id ASC")
	case "oldest":
		tx = tx.Order("created_at ASC, id ASC")
	default:
		tx = tx.Order("created_at DESC, id DESC")
	}

	if q.Limit >= 0 {
		limit := q.Limit
		if limit == 0 {
			limit = 100
		}
		tx = tx.Offset(q.Offset).Limit(limit)
	}

	var rows []BugReport
	if err := tx.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListReportTitles returns id and title for every stored report.
func (d *Database) ListReportTitles() ([]BugReport, error) {
	var rows []BugReport
	if err := d.gorm.Model(&BugReport{}).Select("id", "title").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveAttachment records attachment metadata for a report.
func (d *Database) SaveAttachment(attachment *Attachment) error {
	if attachment == nil {
		return errors.New("attachment is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(attachment).Error
}

// ListAttachments returns the attachment metadata rows for a report.
func (d *Database) ListAttachments(reportID uint) ([]Attachment, error) {
	var rows []Attachment
	if err := d.gorm.Where("bug_report_id = ?", reportID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateBatch registers an uploaded CSV dataset.
func (d *Database) CreateBatch(name, owner, filename string) (*ReportBatch, error) {
	batch := &ReportBatch{
		Name:             strings.TrimSpace(name),
		Owner:            strings.TrimSpace(owner),
		OriginalFilename: strings.TrimSpace(filename),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.Create(batch).Error; err != nil {
		return nil, err
	}
	return batch, nil
}

// GetBatch fetches a batch by id.
func (d *Database) GetBatch(id uint) (*ReportBatch, error) {
	var batch ReportBatch
	if err := d.gorm.First(&batch, id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListBatches returns batches ordered by recency plus the total count.
func (d *Database) ListBatches(offset, limit int) ([]ReportBatch, int64, error) {
	var total int64
	if err := d.gorm.Model(&ReportBatch{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	tx := d.gorm.Model(&ReportBatch{}).Order("created_at DESC, id DESC")
	if limit > 0 {
		tx = tx.Offset(offset).Limit(limit)
	}
	var rows []ReportBatch
	if err := tx.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// UpdateBatchStats refreshes the counters shown in batch listings.
func (d *Database) UpdateBatchStats(batchID uint, rowCount, skipped, processed int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&ReportBatch{}).Where("id = ?", batchID).Updates(map[string]any{
		"row_count":         rowCount,
		"skipped_rows":      skipped,
		"processed_reports": processed,
	}).Error
}

// UpdateBatchProcessingInfo recounts processed reports and stamps the batch.
func (d *Database) UpdateBatchProcessingInfo(batchID uint) error {
	processed, err := d.CountBatchResults(batchID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&ReportBatch{}).Where("id = ?", batchID).Updates(map[string]any{
		"processed_reports": processed,
		"last_analyzed_at":  &now,
	}).Error
}

// ReplaceBatchReports swaps the pending rows for a batch.
func (d *Database) ReplaceBatchReports(batchID uint, rows []BatchReport) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", batchID).Delete(&BatchReport{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		const batchSize = 250
		for start := 0; start < len(rows); start += batchSize {
			end := start + batchSize
			if end > len(rows) {
				end = len(rows)
			}
			chunk := rows[start:end]
			if err := tx.Create(&chunk).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListBatchReportsForAnalysis pages through the pending rows of a batch.
func (d *Database) ListBatchReportsForAnalysis(batchID uint, offset, limit int) ([]BatchReport, error) {
	var rows []BatchReport
	tx := d.gorm.Where("batch_id = ?", batchID).Order("row_index ASC")
	if limit > 0 {
		tx = tx.Offset(offset).Limit(limit)
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountBatchReports counts pending rows for a batch.
func (d *Database) CountBatchReports(batchID uint) (int64, error) {
	var count int64
	err := d.gorm.Model(&BatchReport{}).Where("batch_id = ?", batchID).Count(&count).Error
	return count, err
}

// CountBatchResults counts analyzed reports originating from a batch.
func (d *Database) CountBatchResults(batchID uint) (int64, error) {
	var count int64
	err := d.gorm.Model(&BugReport{}).Where("batch_id = ?", batchID).Count(&count).Error
	return count, err
}

// AnalyzedRowIndexes returns the row indexes of a batch that already have a
// persisted report, for resume runs.
func (d *Database) AnalyzedRowIndexes(batchID uint) ([]int, error) {
	var indexes []int
	err := d.gorm.Model(&BugReport{}).Where("batch_id = ?", batchID).Pluck("batch_row_index", &indexes).Error
	if err != nil {
		return nil, err
	}
	return indexes, nil
}

// CreateBatchRequest records a new analysis job for a batch.
func (d *Database) CreateBatchRequest(batchID uint, requestType, status, jobID string) (*BatchRequest, error) {
	request := &BatchRequest{
		BatchID:   batchID,
		Type:      requestType,
		Status:    status,
		JobID:     jobID,
		StartedAt: time.Now().UTC(),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

// UpdateBatchRequest transitions a request to a terminal status.
func (d *Database) UpdateBatchRequest(id uint, status string) error {
	now := time.Now().UTC()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&BatchRequest{}).Where("id = ?", id).Updates(map[string]any{
		"status":      status,
		"finished_at": &now,
	}).Error
}

// GetBatchRequest fetches a request row by id.
func (d *Database) GetBatchRequest(id uint) (*BatchRequest, error) {
	var request BatchRequest
	if err := d.gorm.First(&request, id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

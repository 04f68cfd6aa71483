package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bug-report-triage/backend/internal/store"
	"bug-report-triage/backend/internal/triage"
	"bug-report-triage/backend/internal/util"
)

const (
	analysisThrottle  = 500 * time.Millisecond
	analysisPageSize  = 200
	minAnalysisWorker = 2
	maxAnalysisWorker = 12
)

// analysisJob tracks the lifecycle of one asynchronous batch analysis run.
type analysisJob struct {
	id        string
	cancel    context.CancelFunc
	startedAt time.Time
	total     int64
	batchID   uint
	batchName string
	requestID uint
}

type reportResult struct {
	report store.BugReport
}

func (s *Server) handleAnalyzeBatch(c *gin.Context) {
	batchID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	batch, err := s.db.GetBatch(batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("batch %d not found", batchID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	var req AnalyzeBatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.renderError(c, http.StatusBadRequest, err)
			return
		}
	}

	total, err := s.db.CountBatchReports(batch.ID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if total == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("batch has no pending reports"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if s.activeJob != nil {
		if !req.Force {
			s.renderError(c, http.StatusConflict, errors.New("an analysis job is already running"))
			return
		}
		s.activeJob.cancel()
		s.activeJob = nil
	}

	job, err := s.startAnalysis(batch, total, req)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusAccepted, StartAnalysisResponse{
		JobID:     job.id,
		BatchID:   job.batchID,
		RequestID: job.requestID,
		Total:     job.total,
		StartedAt: job.startedAt,
	})
}

// startAnalysis launches the asynchronous run. Caller must hold jobMu.
func (s *Server) startAnalysis(batch *store.ReportBatch, total int64, req AnalyzeBatchRequest) (*analysisJob, error) {
	jobID := uuid.NewString()

	request, err := s.db.CreateBatchRequest(batch.ID, "analyze", "running", jobID)
	if err != nil {
		return nil, fmt.Errorf("record analysis request: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &analysisJob{
		id:        jobID,
		cancel:    cancel,
		startedAt: time.Now().UTC(),
		total:     total,
		batchID:   batch.ID,
		batchName: batch.Name,
		requestID: request.ID,
	}
	s.activeJob = job

	go s.runAnalysis(ctx, job, req)

	logrus.WithFields(logrus.Fields{
		"job":     job.id,
		"batch":   batch.ID,
		"total":   total,
		"resume":  req.Resume,
		"request": request.ID,
	}).Info("batch analysis started")

	s.notifier.Broadcast(AnalysisEvent{
		Type:    "started",
		JobID:   job.id,
		BatchID: job.batchID,
		Total:   job.total,
		Message: fmt.Sprintf("analyzing batch %q", batch.Name),
	})

	return job, nil
}

func (s *Server) runAnalysis(ctx context.Context, job *analysisJob, req AnalyzeBatchRequest) {
	timer := util.StartTimer()
	status := "completed"

	defer func() {
		if err := s.db.UpdateBatchRequest(job.requestID, status); err != nil {
			logrus.WithError(err).WithField("request", job.requestID).Warn("finalize analysis request")
		}
		if err := s.db.UpdateBatchProcessingInfo(job.batchID); err != nil {
			logrus.WithError(err).WithField("batch", job.batchID).Warn("update batch counters")
		}
		s.jobMu.Lock()
		if s.activeJob == job {
			s.activeJob = nil
		}
		s.jobMu.Unlock()
	}()

	skip := make(map[int]struct{})
	if req.Resume {
		indexes, err := s.db.AnalyzedRowIndexes(job.batchID)
		if err != nil {
			logrus.WithError(err).Warn("load analyzed rows for resume")
		} else {
			for _, idx := range indexes {
				skip[idx] = struct{}{}
			}
		}
	}

	workerCount := determineWorkerCount()
	taskCh := make(chan store.BatchReport, workerCount*2)
	resultCh := make(chan reportResult, workerCount*2)

	// producer pages through the pending rows
	go func() {
		defer close(taskCh)
		offset := req.Offset
		remaining := req.Limit
		for {
			pageSize := analysisPageSize
			if remaining > 0 && remaining < pageSize {
				pageSize = remaining
			}
			rows, err := s.db.ListBatchReportsForAnalysis(job.batchID, offset, pageSize)
			if err != nil {
				logrus.WithError(err).Warn("page batch rows")
				return
			}
			if len(rows) == 0 {
				return
			}
			for _, row := range rows {
				if _, done := skip[row.RowIndex]; done {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case taskCh <- row:
				}
			}
			offset += len(rows)
			if remaining > 0 {
				remaining -= len(rows)
				if remaining <= 0 {
					return
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range taskCh {
				select {
				case <-ctx.Done():
					return
				default:
				}

				report, err := s.analyzeRow(ctx, row)
				if err != nil {
					logrus.WithError(err).WithFields(logrus.Fields{
						"batch": job.batchID,
						"row":   row.RowIndex,
					}).Warn("analyze batch row")
					continue
				}

				select {
				case <-ctx.Done():
					return
				case resultCh <- reportResult{report: report}:
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	processed := 0
	lastFlush := time.Time{}
	var lastSaved *store.BugReport

	flush := func(final bool) {
		if !final && time.Since(lastFlush) < analysisThrottle {
			return
		}
		lastFlush = time.Now()

		event := AnalysisEvent{
			Type:      "progress",
			JobID:     job.id,
			BatchID:   job.batchID,
			Total:     job.total,
			Processed: processed,
		}
		if lastSaved != nil {
			event.Type = "report"
			dto := FromModel(*lastSaved)
			event.Report = &dto
			lastSaved = nil
		}
		s.notifier.Broadcast(event)
	}

	for result := range resultCh {
		report := result.report
		if err := s.db.SaveReport(&report); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"batch": job.batchID,
				"row":   report.BatchRowIndex,
			}).Warn("persist analyzed report")
			continue
		}
		s.dupes.Add(report.ID, report.Title)
		processed++
		lastSaved = &report
		flush(false)
	}

	cancelled := ctx.Err() != nil
	if cancelled {
		status = "cancelled"
	}

	flush(true)
	s.notifier.Broadcast(AnalysisEvent{
		Type:      statusEventType(cancelled),
		JobID:     job.id,
		BatchID:   job.batchID,
		Total:     job.total,
		Processed: processed,
		Message:   fmt.Sprintf("processed %d of %d reports", processed, job.total),
	})

	logrus.WithFields(logrus.Fields{
		"job":       job.id,
		"batch":     job.batchID,
		"processed": processed,
		"elapsed":   timer.Elapsed().Round(time.Millisecond).String(),
		"cancelled": cancelled,
	}).Info("batch analysis finished")
}

// analyzeRow runs the full pipeline over one pending batch row.
func (s *Server) analyzeRow(ctx context.Context, row store.BatchReport) (store.BugReport, error) {
	timer := util.StartTimer()

	result, err := s.analyzer.Analyze(ctx, triage.Input{
		Title:           row.Title,
		Description:     row.Description,
		AttachmentCount: row.AttachmentCount,
	})
	if err != nil {
		return store.BugReport{}, err
	}

	report := store.BugReport{
		BatchID:                   row.BatchID,
		BatchRowIndex:             row.RowIndex,
		Title:                     row.Title,
		Description:               row.Description,
		Priority:                  "medium",
		Status:                    "open",
		ParsedSteps:               result.ParsedSteps,
		ReproducibilityScore:      result.Metrics.Score,
		ReproducibilityConfidence: result.Metrics.Confidence,
		AttachmentCount:           row.AttachmentCount,
		ProcessingTimeMs:          timer.ElapsedMs(),
	}
	report.SetFactors(result.Metrics.Factors)
	report.SetMissingInfo(result.Metrics.MissingInfo)
	report.SetRecommendations(result.Metrics.Recommendations)
	return report, nil
}

func statusEventType(cancelled bool) string {
	if cancelled {
		return "cancelled"
	}
	return "completed"
}

func determineWorkerCount() int {
	workers := runtime.NumCPU()
	if workers < minAnalysisWorker {
		return minAnalysisWorker
	}
	if workers > maxAnalysisWorker {
		return maxAnalysisWorker
	}
	return workers
}

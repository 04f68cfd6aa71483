package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bug-report-triage/backend/internal/ai"
	"bug-report-triage/backend/internal/analysis"
	"bug-report-triage/backend/internal/dupes"
	"bug-report-triage/backend/internal/export"
	"bug-report-triage/backend/internal/store"
	"bug-report-triage/backend/internal/triage"
	"bug-report-triage/backend/internal/util"
)

// Config defines server dependencies.
type Config struct {
	DBPath            string
	KeywordsPath      string
	AllowedOrigins    []string
	SilentDB          bool
	AIConfig          ai.Config
	AIFallbackModel   string
	GitHubConfig      export.Config
	DisableAI         bool
	ExtractionTimeout time.Duration
}

const (
	minTitleLength       = 5
	minDescriptionLength = 10
	duplicateThreshold   = 0.85
)

// Server wires HTTP handlers with persistence and analysis.
type Server struct {
	db             *store.Database
	scorer         *analysis.Scorer
	extractor      *ai.StepExtractor
	analyzer       *triage.Analyzer
	dupes          *dupes.Service
	exporter       *export.Client
	allowedOrigins []string
	notifier       *AnalysisNotifier
	jobMu          sync.Mutex
	activeJob      *analysisJob
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	scorer, err := analysis.NewScorer(cfg.KeywordsPath)
	if err != nil {
		return nil, fmt.Errorf("reproducibility scorer: %w", err)
	}

	var generator ai.Generator
	if cfg.DisableAI {
		logrus.Info("step extraction disabled via configuration")
	} else {
		client, err := ai.NewClient(cfg.AIConfig)
		if err == nil {
			generator = client
			if fallbackModel := strings.TrimSpace(cfg.AIFallbackModel); fallbackModel != "" {
				fallbackCfg := cfg.AIConfig
				fallbackCfg.Model = fallbackModel
				if fallback, fbErr := ai.NewClient(fallbackCfg); fbErr == nil {
					generator = ai.WithFallback(client, fallback)
					logrus.WithField("model", fallbackModel).Info("fallback generation model configured")
				}
			}
		} else if errors.Is(err, ai.ErrDisabled) {
			logrus.Info("step extraction disabled - no OpenAI credentials configured")
		} else {
			return nil, fmt.Errorf("ai client: %w", err)
		}
	}
	extractor := ai.NewStepExtractor(generator)

	var exporter *export.Client
	if client, err := export.NewClient(cfg.GitHubConfig); err == nil {
		exporter = client
		logrus.WithFields(logrus.Fields{
			"owner": cfg.GitHubConfig.Owner,
			"repo":  cfg.GitHubConfig.Repo,
		}).Info("github export enabled")
	} else if errors.Is(err, export.ErrMissingCredentials) {
		logrus.Info("github export disabled - no token or repository configured")
	} else {
		return nil, fmt.Errorf("github client: %w", err)
	}

	server := &Server{
		db:             db,
		scorer:         scorer,
		extractor:      extractor,
		analyzer:       triage.NewAnalyzer(scorer, extractor, cfg.ExtractionTimeout),
		dupes:          dupes.NewService(db),
		exporter:       exporter,
		allowedOrigins: cfg.AllowedOrigins,
		notifier:       NewAnalysisNotifier(),
	}

	if count, err := server.dupes.Rebuild(); err != nil {
		logrus.WithError(err).Warn("build duplicate index")
	} else {
		logrus.WithField("titles", count).Info("duplicate index ready")
	}

	return server, nil
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.POST("/reports", s.handleCreateReport)
		api.GET("/reports", s.handleListReports)
		api.GET("/reports/:id", s.handleGetReport)
		api.GET("/reports/:id/reproducibility", s.handleReproducibility)
		api.GET("/reports/:id/similar", s.handleSimilarReports)
		api.POST("/reports/:id/export/github", s.handleExportGitHub)
		api.POST("/analyze", s.handleAnalyze)
		api.GET("/export.csv", s.handleExportCSV)
		api.GET("/export.json", s.handleExportJSON)
		api.GET("/batches", s.handleListBatches)
		api.GET("/batches/:id", s.handleGetBatch)
		api.POST("/batches/:id/analyze", s.handleAnalyzeBatch)
		api.GET("/requests/:id/status", s.handleRequestStatus)
		api.POST("/upload", s.handleUpload)
		api.GET("/analyze/status", s.handleAnalysisStatus)
		api.DELETE("/analyze/:jobID", s.handleCancelAnalysis)
		api.GET("/analyze/stream", s.handleAnalysisStream)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"checklist":      s.scorer.Checklist(),
		"ai_enabled":     s.extractor.Enabled(),
		"github_export":  s.exporter != nil,
		"indexed_titles": s.dupes.Count(),
	})
}

func (s *Server) handleCreateReport(c *gin.Context) {
	var req SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if len(title) < minTitleLength {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("title must be at least %d characters long", minTitleLength))
		return
	}
	if len(description) < minDescriptionLength {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("description must be at least %d characters long", minDescriptionLength))
		return
	}

	attachmentCount := req.AttachmentCount
	if len(req.Attachments) > attachmentCount {
		attachmentCount = len(req.Attachments)
	}

	timer := util.StartTimer()
	result, err := s.analyzer.Analyze(c.Request.Context(), triage.Input{
		Title:           title,
		Description:     req.Description,
		AttachmentCount: attachmentCount,
	})
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	var duplicate *SimilarReportDTO
	if match, ok := s.dupes.BestMatch(title, 0); ok && match.Similarity >= duplicateThreshold {
		duplicate = &SimilarReportDTO{
			ReportID:   match.ReportID,
			Title:      match.Title,
			Similarity: round2(match.Similarity),
		}
	}

	priority := strings.ToLower(strings.TrimSpace(req.Priority))
	if priority == "" {
		priority = "medium"
	}

	report := store.BugReport{
		Title:                     title,
		Description:               req.Description,
		Priority:                  priority,
		Status:                    "open",
		ParsedSteps:               result.ParsedSteps,
		ReproducibilityScore:      result.Metrics.Score,
		ReproducibilityConfidence: result.Metrics.Confidence,
		AttachmentCount:           attachmentCount,
		ProcessingTimeMs:          timer.ElapsedMs(),
	}
	report.SetFactors(result.Metrics.Factors)
	report.SetMissingInfo(result.Metrics.MissingInfo)
	report.SetRecommendations(result.Metrics.Recommendations)

	if err := s.db.SaveReport(&report); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	for _, payload := range req.Attachments {
		filename := strings.TrimSpace(payload.Filename)
		if filename == "" {
			continue
		}
		attachment := store.Attachment{
			BugReportID: report.ID,
			Filename:    filename,
			ContentType: strings.TrimSpace(payload.ContentType),
			SizeBytes:   payload.SizeBytes,
		}
		if err := s.db.SaveAttachment(&attachment); err != nil {
			logrus.WithError(err).WithField("report_id", report.ID).Warn("save attachment metadata")
		}
	}

	s.dupes.Add(report.ID, report.Title)

	logrus.WithFields(logrus.Fields{
		"report_id":  report.ID,
		"score":      report.ReproducibilityScore,
		"confidence": report.ReproducibilityConfidence,
		"ai_parsed":  !ai.IsFailurePlaceholder(report.ParsedSteps),
	}).Info("bug report created")

	c.JSON(http.StatusCreated, CreateReportResponse{
		Report:            FromModel(report),
		ProbableDuplicate: duplicate,
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.analyzer.Analyze(c.Request.Context(), triage.Input{
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		AttachmentCount: req.AttachmentCount,
	})
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusOK, AnalysisFromMetrics(result.ParsedSteps, result.Metrics))
}

func (s *Server) handleListReports(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 25
	}
	minScore, _ := strconv.ParseFloat(c.Query("minScore"), 64)

	batchID := uint(0)
	if value := strings.TrimSpace(firstNonEmpty(c.Query("batch_id"), c.Query("batchId"))); value != "" {
		parsed, err := strconv.ParseUint(value, 10, 64)
		if err != nil || parsed == 0 {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid batch_id: %s", value))
			return
		}
		batchID = uint(parsed)
	}

	rows, total, err := s.db.ListReports(store.ReportQuery{
		Query:      strings.TrimSpace(c.Query("q")),
		MinScore:   minScore,
		Confidence: strings.TrimSpace(c.Query("confidence")),
		Status:     strings.TrimSpace(c.Query("status")),
		Sort:       strings.TrimSpace(c.Query("sort")),
		Offset:     page * pageSize,
		Limit:      pageSize,
		BatchID:    batchID,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]ReportDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromModel(row))
	}
	c.JSON(http.StatusOK, ReportsResponse{Items: dtos, Total: total})
}

func (s *Server) handleGetReport(c *gin.Context) {
	report, ok := s.loadReport(c)
	if !ok {
		return
	}

	rows, err := s.db.ListAttachments(report.ID)
	if err != nil {
		logrus.WithError(err).WithField("report_id", report.ID).Warn("list attachments")
	}
	attachments := make([]AttachmentDTO, 0, len(rows))
	for _, row := range rows {
		attachments = append(attachments, AttachmentFromModel(row))
	}

	c.JSON(http.StatusOK, ReportDetailResponse{
		ReportDTO:   FromModel(*report),
		Attachments: attachments,
	})
}

// handleReproducibility recomputes the detailed assessment for a stored
// report using the current signal table.
func (s *Server) handleReproducibility(c *gin.Context) {
	report, ok := s.loadReport(c)
	if !ok {
		return
	}

	metrics, err := s.scorer.Score(report.Title, report.Description, report.AttachmentCount)
	if err != nil {
		s.renderError(c, http.StatusUnprocessableEntity, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report_id":       report.ID,
		"score":           round2(metrics.Score),
		"confidence":      metrics.Confidence,
		"factors":         metrics.Factors,
		"missing_info":    metrics.MissingInfo,
		"recommendations": metrics.Recommendations,
	})
}

func (s *Server) handleSimilarReports(c *gin.Context) {
	report, ok := s.loadReport(c)
	if !ok {
		return
	}

	if match, found := s.dupes.BestMatch(report.Title, report.ID); found {
		c.JSON(http.StatusOK, gin.H{
			"report_id": report.ID,
			"match": SimilarReportDTO{
				ReportID:   match.ReportID,
				Title:      match.Title,
				Similarity: round2(match.Similarity),
			},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report_id": report.ID, "match": nil})
}

func (s *Server) handleExportGitHub(c *gin.Context) {
	if s.exporter == nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("github export is not configured"))
		return
	}

	report, ok := s.loadReport(c)
	if !ok {
		return
	}

	issue, err := s.exporter.ExportReport(c.Request.Context(), *report)
	if err != nil {
		s.renderError(c, http.StatusBadGateway, fmt.Errorf("export to github: %w", err))
		return
	}

	if err := s.db.MarkReportExported(report.ID, issue.URL); err != nil {
		logrus.WithError(err).WithField("report_id", report.ID).Warn("record github export")
	}

	logrus.WithFields(logrus.Fields{
		"report_id": report.ID,
		"issue":     issue.Number,
	}).Info("report exported to github")

	c.JSON(http.StatusOK, gin.H{
		"report_id":    report.ID,
		"issue_number": issue.Number,
		"issue_url":    issue.URL,
	})
}

func (s *Server) handleExportCSV(c *gin.Context) {
	rows, _, err := s.db.ListReports(store.ReportQuery{Limit: -1})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=bug-report-export.csv")
	c.Header("Content-Type", "text/csv")

	writer := csv.NewWriter(c.Writer)
	headers := []string{"id", "title", "status", "priority", "score", "confidence", "factors", "missing_info", "recommendations", "attachment_count", "parsed_steps", "created_at"}
	if err := writer.Write(headers); err != nil {
		return
	}
	for _, row := range rows {
		dto := FromModel(row)
		line := []string{
			strconv.FormatUint(uint64(dto.ID), 10),
			dto.Title,
			dto.Status,
			dto.Priority,
			fmt.Sprintf("%.2f", dto.Score),
			dto.Confidence,
			strings.Join(dto.Factors, "|"),
			strings.Join(dto.MissingInfo, "|"),
			strings.Join(dto.Recommendations, "|"),
			strconv.Itoa(dto.AttachmentCount),
			dto.ParsedSteps,
			dto.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(line); err != nil {
			return
		}
	}
	writer.Flush()
}

func (s *Server) handleExportJSON(c *gin.Context) {
	rows, _, err := s.db.ListReports(store.ReportQuery{Limit: -1})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]ReportDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromModel(row))
	}
	c.Header("Content-Disposition", "attachment; filename=bug-report-export.json")
	c.JSON(http.StatusOK, dtos)
}

func (s *Server) handleListBatches(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 25
	}

	rows, total, err := s.db.ListBatches(page*pageSize, pageSize)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]BatchDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, BatchFromModel(row))
	}
	c.JSON(http.StatusOK, BatchesResponse{Items: dtos, Total: total})
}

func (s *Server) handleGetBatch(c *gin.Context) {
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

	processed, err := s.db.CountBatchResults(batch.ID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dto := BatchFromModel(*batch)
	dto.ProcessedReports = int(processed)
	c.JSON(http.StatusOK, dto)
}

func (s *Server) handleRequestStatus(c *gin.Context) {
	requestID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	request, err := s.db.GetBatchRequest(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("request %d not found", requestID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	c.JSON(http.StatusOK, BatchRequestFromModel(*request))
}

func (s *Server) handleUpload(c *gin.Context) {
	batchName := strings.TrimSpace(c.PostForm("batch_name"))
	if batchName == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("batch_name is required"))
		return
	}
	ownerName := strings.TrimSpace(c.PostForm("owner_name"))
	if ownerName == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("owner_name is required"))
		return
	}

	fileHeader, err := c.FormFile("reports")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.renderError(c, http.StatusBadRequest, errors.New("reports csv file is required"))
		} else {
			s.renderError(c, http.StatusBadRequest, err)
		}
		return
	}

	path, cleanup, err := saveFormFile(fileHeader)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if cleanup != nil {
		defer cleanup()
	}

	parsed, err := parseReportCSV(path)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if len(parsed.rows) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("no reports detected in csv"))
		return
	}

	batch, err := s.db.CreateBatch(batchName, ownerName, fileHeader.Filename)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	for i := range parsed.rows {
		parsed.rows[i].BatchID = batch.ID
	}
	if err := s.db.ReplaceBatchReports(batch.ID, parsed.rows); err != nil {
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("store batch reports: %w", err))
		return
	}

	if err := s.db.UpdateBatchStats(batch.ID, parsed.rowCount, parsed.skipped, 0); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"batch_id": batch.ID,
		"rows":     parsed.rowCount,
		"skipped":  parsed.skipped,
	}).Info("report batch uploaded")

	c.JSON(http.StatusOK, UploadResponse{
		BatchID:     batch.ID,
		BatchName:   batch.Name,
		Owner:       batch.Owner,
		RowCount:    parsed.rowCount,
		SkippedRows: parsed.skipped,
		Processed:   0,
	})
}

func (s *Server) handleAnalysisStatus(c *gin.Context) {
	s.jobMu.Lock()
	job := s.activeJob
	s.jobMu.Unlock()

	status := s.notifier.LastStatus()

	resp := AnalysisStatusResponse{
		Running: job != nil,
	}

	if job != nil {
		resp.JobID = job.id
		resp.BatchID = job.batchID
		resp.RequestID = job.requestID
		resp.Total = job.total
	}

	if status != nil {
		resp.State = status.Type
		resp.Message = status.Message
		if status.Processed != 0 {
			resp.Processed = status.Processed
		}
		if status.Total != 0 {
			resp.Total = status.Total
		}
		if status.BatchID != 0 {
			resp.BatchID = status.BatchID
		}
		if status.Report != nil {
			copyReport := *status.Report
			resp.LastReport = &copyReport
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCancelAnalysis(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("jobID"))
	if jobID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("job id required"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob == nil {
		s.renderError(c, http.StatusNotFound, errors.New("no analysis running"))
		return
	}
	if s.activeJob.id != jobID {
		s.renderError(c, http.StatusNotFound, errors.New("job not found"))
		return
	}

	s.activeJob.cancel()
	logrus.WithField("job", jobID).Info("analysis cancellation requested")
	s.notifier.Broadcast(AnalysisEvent{
		Type:    "progress",
		JobID:   s.activeJob.id,
		BatchID: s.activeJob.batchID,
		Total:   s.activeJob.total,
		Message: "cancellation requested",
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) handleAnalysisStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket closed")
			} else {
				logrus.WithError(err).Warn("analysis websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) loadReport(c *gin.Context) (*store.BugReport, bool) {
	reportID, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return nil, false
	}
	report, err := s.db.GetReport(reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("report %d not found", reportID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return nil, false
	}
	return report, true
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func saveFormFile(header *multipart.FileHeader) (string, func(), error) {
	if header == nil {
		return "", nil, errors.New("file header is nil")
	}
	src, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	return tmp.Name(), cleanup, nil
}

type csvParseResult struct {
	rows     []store.BatchReport
	rowCount int
	skipped  int
}

// parseReportCSV reads rows of (title, description, optional attachment
// count). A header row is detected by column names; without one the first
// two columns are used.
func parseReportCSV(path string) (*csvParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		titleCol        = 0
		descriptionCol  = 1
		attachmentCol   = -1
		headerProcessed bool
		result          csvParseResult
		rowIndex        int
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(record) == 0 {
			continue
		}

		if !headerProcessed {
			headerProcessed = true
			if t, d, a, ok := detectReportColumns(record); ok {
				titleCol, descriptionCol, attachmentCol = t, d, a
				continue // header row, move to next record
			}
		}

		title := ""
		if titleCol < len(record) {
			title = strings.TrimSpace(strings.TrimPrefix(record[titleCol], "\uFEFF"))
		}
		description := ""
		if descriptionCol < len(record) {
			description = strings.TrimSpace(record[descriptionCol])
		}

		rowIndex++
		result.rowCount++

		if title == "" || description == "" {
			result.skipped++
			continue
		}

		attachments := 0
		if attachmentCol >= 0 && attachmentCol < len(record) {
			if parsed, err := strconv.Atoi(strings.TrimSpace(record[attachmentCol])); err == nil && parsed > 0 {
				attachments = parsed
			}
		}

		result.rows = append(result.rows, store.BatchReport{
			RowIndex:        rowIndex,
			Title:           title,
			Description:     description,
			AttachmentCount: attachments,
		})
	}

	return &result, nil
}

func detectReportColumns(record []string) (titleCol, descriptionCol, attachmentCol int, ok bool) {
	titleCol, descriptionCol, attachmentCol = -1, -1, -1
	for idx, value := range record {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "title", "summary":
			titleCol = idx
		case "description", "details", "body":
			descriptionCol = idx
		case "attachments", "attachment_count":
			attachmentCol = idx
		}
	}
	if titleCol >= 0 && descriptionCol >= 0 {
		return titleCol, descriptionCol, attachmentCol, true
	}
	return 0, 1, -1, false
}

func parseUintParam(value string) (uint, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("identifier is required")
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier: %w", err)
	}
	if parsed == 0 {
		return 0, errors.New("identifier must be greater than zero")
	}
	return uint(parsed), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

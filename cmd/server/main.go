package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bug-report-triage/backend/internal/ai"
	"bug-report-triage/backend/internal/api"
	"bug-report-triage/backend/internal/export"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	dataDir := envOr("DATA_DIR", "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.WithError(err).Fatal("create data directory")
	}

	cfg := api.Config{
		DBPath:       envOr("DB_PATH", filepath.Join(dataDir, "bug-reports.db")),
		KeywordsPath: os.Getenv("KEYWORDS_PATH"),
		SilentDB:     envBool("DB_SILENT"),
		DisableAI:    envBool("DISABLE_AI"),
		AIConfig: ai.Config{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   os.Getenv("OPENAI_MODEL"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		AIFallbackModel: os.Getenv("OPENAI_FALLBACK_MODEL"),
		GitHubConfig: export.Config{
			Token: os.Getenv("GITHUB_TOKEN"),
		},
	}

	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	if temp := strings.TrimSpace(os.Getenv("OPENAI_TEMPERATURE")); temp != "" {
		if parsed, err := strconv.ParseFloat(temp, 64); err == nil {
			cfg.AIConfig.Temperature = parsed
		} else {
			logrus.WithField("value", temp).Warn("invalid OPENAI_TEMPERATURE, using default")
		}
	}
	if tokens := strings.TrimSpace(os.Getenv("OPENAI_MAX_TOKENS")); tokens != "" {
		if parsed, err := strconv.Atoi(tokens); err == nil && parsed > 0 {
			cfg.AIConfig.MaxTokens = parsed
		} else {
			logrus.WithField("value", tokens).Warn("invalid OPENAI_MAX_TOKENS, using default")
		}
	}
	if timeout := strings.TrimSpace(os.Getenv("EXTRACTION_TIMEOUT_SECONDS")); timeout != "" {
		if parsed, err := strconv.Atoi(timeout); err == nil && parsed > 0 {
			cfg.ExtractionTimeout = time.Duration(parsed) * time.Second
		}
	}

	// GITHUB_REPO takes the owner/name form
	if repo := strings.TrimSpace(os.Getenv("GITHUB_REPO")); repo != "" {
		parts := strings.SplitN(repo, "/", 2)
		if len(parts) == 2 {
			cfg.GitHubConfig.Owner = strings.TrimSpace(parts[0])
			cfg.GitHubConfig.Repo = strings.TrimSpace(parts[1])
		} else {
			logrus.WithField("value", repo).Warn("GITHUB_REPO must be owner/name, export disabled")
		}
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("initialize server")
	}

	router, err := server.Router()
	if err != nil {
		logrus.WithError(err).Fatal("configure routes")
	}

	port := envOr("PORT", "8080")
	logrus.WithField("port", port).Info("bug report triage server listening")
	if err := router.Run(":" + port); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envBool(key string) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return value == "1" || value == "true" || value == "yes"
}

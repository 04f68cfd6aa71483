// Command rescore recomputes reproducibility metrics for every stored
// report. Run it after tuning the keyword lists so persisted scores match
// the current signal table. Parsed steps are left untouched.
package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"bug-report-triage/backend/internal/analysis"
	"bug-report-triage/backend/internal/store"
)

func main() {
	dbPath := flag.String("db", "data/bug-reports.db", "path to the sqlite database")
	keywordsPath := flag.String("keywords", "", "optional keyword override JSON")
	flag.Parse()

	db, err := store.Open(*dbPath, true)
	if err != nil {
		logrus.WithError(err).Fatal("open database")
	}
	defer db.Close()

	scorer, err := analysis.NewScorer(*keywordsPath)
	if err != nil {
		logrus.WithError(err).Fatal("build scorer")
	}

	rows, total, err := db.ListReports(store.ReportQuery{Limit: -1})
	if err != nil {
		logrus.WithError(err).Fatal("list reports")
	}
	logrus.WithField("reports", total).Info("rescoring stored reports")

	updated := 0
	skipped := 0
	for _, report := range rows {
		metrics, err := scorer.Score(report.Title, report.Description, report.AttachmentCount)
		if err != nil {
			logrus.WithError(err).WithField("report_id", report.ID).Warn("skip report")
			skipped++
			continue
		}

		fresh := store.BugReport{}
		fresh.SetFactors(metrics.Factors)
		fresh.SetMissingInfo(metrics.MissingInfo)
		fresh.SetRecommendations(metrics.Recommendations)

		err = db.UpdateReportAnalysis(report.ID, map[string]any{
			"reproducibility_score":      metrics.Score,
			"reproducibility_confidence": metrics.Confidence,
			"factors_json":               fresh.FactorsJSON,
			"missing_info_json":          fresh.MissingInfoJSON,
			"recommendations_json":       fresh.RecommendationsJSON,
		})
		if err != nil {
			logrus.WithError(err).WithField("report_id", report.ID).Warn("update report")
			skipped++
			continue
		}
		updated++

		if updated%100 == 0 {
			logrus.WithFields(logrus.Fields{
				"updated": updated,
				"total":   total,
			}).Info("rescore progress")
		}
	}

	logrus.WithFields(logrus.Fields{
		"updated": updated,
		"skipped": skipped,
	}).Info("rescore complete")
}

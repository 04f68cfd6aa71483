package api

import (
	"encoding/json"
	"strings"
	"testing"

	"bug-report-triage/backend/internal/store"
)

func TestAttachmentFromModel(t *testing.T) {
	dto := AttachmentFromModel(store.Attachment{
		ID:          3,
		BugReportID: 42,
		Filename:    "crash.log",
		ContentType: "text/plain",
		SizeBytes:   2048,
	})

	if dto.ID != 3 || dto.Filename != "crash.log" || dto.ContentType != "text/plain" || dto.SizeBytes != 2048 {
		t.Fatalf("unexpected attachment DTO: %+v", dto)
	}
}

func TestReportDetailResponseShape(t *testing.T) {
	report := store.BugReport{ID: 7, Title: "Save broken", ReproducibilityConfidence: "high"}
	report.SetFactors([]string{"Supporting files attached"})

	detail := ReportDetailResponse{
		ReportDTO: FromModel(report),
		Attachments: []AttachmentDTO{
			{ID: 1, Filename: "screenshot.png", ContentType: "image/png", SizeBytes: 512},
		},
	}

	payload, err := json.Marshal(detail)
	if err != nil {
		t.Fatalf("marshal detail: %v", err)
	}

	body := string(payload)
	for _, fragment := range []string{`"id":7`, `"title":"Save broken"`, `"attachments":[`, `"filename":"screenshot.png"`} {
		if !strings.Contains(body, fragment) {
			t.Fatalf("detail payload missing %s:\n%s", fragment, body)
		}
	}
}

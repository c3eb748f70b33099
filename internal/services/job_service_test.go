package services

import (
	"context"
	"testing"

	"github.com/docforge/docforge/internal/core/coretest"
	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/models"
)

func TestProgressMapping(t *testing.T) {
	cases := []struct {
		status    string
		wantState string
		wantPct   int
	}{
		{models.StatusUploading, "uploading", 0},
		{models.StatusGeneratingSummary, "Generating Summary", 25},
		{models.StatusExtractingData, "Extracting Data", 50},
		{models.StatusAnalyzingDocument, "Analyzing Document", 75},
		{models.StatusSucceeded, "completed", 100},
		{models.StatusFailed, "failed", 0},
		{"something else", "something else", 0},
	}
	for _, c := range cases {
		state, pct := Progress(c.status)
		if state != c.wantState || pct != c.wantPct {
			t.Errorf("Progress(%q) = (%q, %d), want (%q, %d)",
				c.status, state, pct, c.wantState, c.wantPct)
		}
	}
}

func TestJobServiceGet(t *testing.T) {
	db := coretest.NewFakeDB()
	svc := NewJobService(db, logger.NewNop())
	ctx := context.Background()

	if err := svc.Create(ctx, &models.IngestionJob{ID: 7, Status: models.StatusUploading}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Advance(ctx, 7, models.StatusExtractingData); err != nil {
		t.Fatal(err)
	}

	status, err := svc.Get(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if status.JobID != 7 || status.State != models.StatusExtractingData || status.Progress != 50 {
		t.Errorf("status = %+v", status)
	}

	missing, err := svc.Get(ctx, 99)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("unknown job returned %+v", missing)
	}
}

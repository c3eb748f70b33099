package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/core/coretest"
	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/models"
	"github.com/docforge/docforge/internal/services"
)

type fakeSummarizer struct {
	res   core.SummaryResult
	err   error
	calls int
}

func (s *fakeSummarizer) Summarize(_ context.Context, _ string, _ int64, _ string, _ int64) (core.SummaryResult, error) {
	s.calls++
	return s.res, s.err
}

type fakeMedia struct {
	desc string
	err  error
}

func (m *fakeMedia) DescribeImage(context.Context, string) (string, error) { return m.desc, m.err }
func (m *fakeMedia) DescribeAudio(context.Context, string) (string, error) { return m.desc, m.err }
func (m *fakeMedia) DescribeVideo(context.Context, string) (string, error) { return m.desc, m.err }

type pipelineFixture struct {
	db       *coretest.FakeDB
	pipeline *Pipeline
	sum      *fakeSummarizer
	job      models.UploadJob
}

// newPipelineFixture seeds a team, an unanalyzed placeholder document, an
// uploading job, a retry record and a real file on disk, mirroring the state
// the upload intake leaves behind. Cloud storage is off.
func newPipelineFixture(t *testing.T, content string) *pipelineFixture {
	t.Helper()

	db := coretest.NewFakeDB()
	log := logger.NewNop()
	cfg := DefaultConfig()
	cfg.DeletePollInterval = time.Millisecond
	cfg.QueueSize = 4

	team := &models.Team{ID: 1, CompanyID: 1, Alias: "General", StorageUUID: "tenant-uuid"}
	_ = db.CreateTeam(context.Background(), team)

	dir := filepath.Join(t.TempDir(), team.StorageUUID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "10.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	folder := &models.Document{
		ID: 5, TeamID: 1, Name: "Reports", Type: models.NodeFolder, CreatorID: 2,
	}
	_, _ = db.CreateDocument(context.Background(), folder)
	doc := &models.Document{
		ID: 10, ParentID: 5, TeamID: 1, Name: "report.txt", Type: models.NodeFile,
		CreatorID: 2, SizeBytes: int64(len(content)), Source: "Upload", IsNotAnalyzed: true,
	}
	_, _ = db.CreateDocument(context.Background(), doc)
	_ = db.CreateJob(context.Background(), &models.IngestionJob{
		ID: 10, UserID: 2, TeamID: 1, CompanyID: 1, Status: models.StatusUploading,
	})

	job := models.UploadJob{
		FilePath:      path,
		FileFullName:  "10.txt",
		MimeType:      "text/plain",
		FileID:        10,
		OriginalName:  "report.txt",
		TeamID:        1,
		UserID:        2,
		CompanyID:     1,
		TenantUUID:    team.StorageUUID,
		FileSizeBytes: int64(len(content)),
		ParentID:      5,
	}
	_ = db.SaveRetryRecord(context.Background(), job.Record(time.Now()))

	sum := &fakeSummarizer{res: core.SummaryResult{Output: "the summary", Overview: "the overview", OK: true}}
	placement := services.NewPlacementService(filepath.Dir(dir), nil, log)
	pipeline := NewPipeline(
		db,
		NewDocconvExtractor(log, cfg),
		NewEmbedder(db, &fakeProvider{}, log, cfg),
		sum,
		&fakeMedia{desc: "a picture"},
		services.NewQuotaService(db),
		services.NewJobService(db, log),
		placement,
		log,
		cfg,
	)
	return &pipelineFixture{db: db, pipeline: pipeline, sum: sum, job: job}
}

func TestRunHappyPath(t *testing.T) {
	fx := newPipelineFixture(t, strings.Repeat("some interesting text\n", 100))

	if err := fx.pipeline.Run(context.Background(), fx.job); err != nil {
		t.Fatalf("run: %v", err)
	}

	doc, _ := fx.db.GetDocumentByID(context.Background(), 10)
	if doc == nil || doc.IsNotAnalyzed {
		t.Errorf("document not marked analyzed: %+v", doc)
	}
	job, _ := fx.db.GetJob(context.Background(), 10)
	if job.Status != models.StatusSucceeded {
		t.Errorf("job status = %q", job.Status)
	}

	want := []string{
		models.StatusGeneratingSummary,
		models.StatusExtractingData,
		models.StatusAnalyzingDocument,
		models.StatusSucceeded,
	}
	if !reflect.DeepEqual(fx.db.StatusLog, want) {
		t.Errorf("status progression = %v", fx.db.StatusLog)
	}

	if rec, _ := fx.db.GetRetryRecord(context.Background(), 10); rec != nil {
		t.Error("retry record not cleared on success")
	}
	if len(fx.db.Summaries) != 1 {
		t.Errorf("got %d summaries, want 1", len(fx.db.Summaries))
	}
	if ids, _ := fx.db.GetEmbeddingIDs(context.Background(), 10); len(ids) == 0 {
		t.Error("no chunk ids saved")
	}
	// Cloud storage is off, so the local file is the durable copy.
	if _, err := os.Stat(fx.job.FilePath); err != nil {
		t.Errorf("local file removed on success: %v", err)
	}
}

func TestRunQuotaExceeded(t *testing.T) {
	fx := newPipelineFixture(t, "content")
	fx.db.Settings[services.SettingMaxStorageGB] = 0 // zero-byte ceiling

	err := fx.pipeline.Run(context.Background(), fx.job)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}

	if _, statErr := os.Stat(fx.job.FilePath); !os.IsNotExist(statErr) {
		t.Error("local file survived quota rejection")
	}
	if doc, _ := fx.db.GetDocumentByID(context.Background(), 10); doc != nil {
		t.Error("placeholder document survived quota rejection")
	}
	job, _ := fx.db.GetJob(context.Background(), 10)
	if job.Status != models.StatusFailed {
		t.Errorf("job status = %q", job.Status)
	}
	// The retry record stays until retried or swept.
	if rec, _ := fx.db.GetRetryRecord(context.Background(), 10); rec == nil {
		t.Error("retry record removed on failure")
	}
	if fx.sum.calls != 0 {
		t.Error("summarizer ran for a rejected upload")
	}
}

func TestRunEmptyExtractionFails(t *testing.T) {
	fx := newPipelineFixture(t, "   \n\t\n")

	err := fx.pipeline.Run(context.Background(), fx.job)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}

	if doc, _ := fx.db.GetDocumentByID(context.Background(), 10); doc != nil {
		t.Error("document row survived failed extraction")
	}
	if len(fx.db.Summaries) != 0 {
		t.Error("partial summary survived failed extraction")
	}
	job, _ := fx.db.GetJob(context.Background(), 10)
	if job.Status != models.StatusFailed {
		t.Errorf("job status = %q", job.Status)
	}
	if _, statErr := os.Stat(fx.job.FilePath); !os.IsNotExist(statErr) {
		t.Error("local file survived failure with cloud storage off")
	}
}

func TestRunMissingFileFails(t *testing.T) {
	fx := newPipelineFixture(t, "content")
	if err := os.Remove(fx.job.FilePath); err != nil {
		t.Fatal(err)
	}

	err := fx.pipeline.Run(context.Background(), fx.job)
	if !errors.Is(err, ErrMissingFile) {
		t.Fatalf("err = %v, want ErrMissingFile", err)
	}
	job, _ := fx.db.GetJob(context.Background(), 10)
	if job.Status != models.StatusFailed {
		t.Errorf("job status = %q", job.Status)
	}
}

func TestRunSkipsDuplicateSummary(t *testing.T) {
	fx := newPipelineFixture(t, "content worth reading")
	_ = fx.db.InsertSummary(context.Background(), &models.Summary{
		FileID: 10, TeamID: 1, FileName: "report.txt", Notes: "existing",
	})

	if err := fx.pipeline.Run(context.Background(), fx.job); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fx.db.Summaries) != 1 {
		t.Errorf("got %d summaries, want the pre-existing one only", len(fx.db.Summaries))
	}
	if fx.db.Summaries[0].Notes != "existing" {
		t.Errorf("existing summary overwritten: %+v", fx.db.Summaries[0])
	}
}

func TestRunToleratesUnusableSummary(t *testing.T) {
	fx := newPipelineFixture(t, "content worth reading")
	fx.sum.res = core.SummaryResult{} // model produced nothing

	if err := fx.pipeline.Run(context.Background(), fx.job); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fx.db.Summaries) != 0 {
		t.Errorf("summary row written from empty result: %+v", fx.db.Summaries)
	}
	job, _ := fx.db.GetJob(context.Background(), 10)
	if job.Status != models.StatusSucceeded {
		t.Errorf("job status = %q", job.Status)
	}
}

func TestRunFailsWhenDocumentDeletedMidFlight(t *testing.T) {
	fx := newPipelineFixture(t, "content")
	// Simulate a concurrent delete between placement and processing.
	_ = fx.db.DeleteDocument(context.Background(), 10)

	if err := fx.pipeline.Run(context.Background(), fx.job); err == nil {
		t.Fatal("expected failure for a deleted document")
	}
	job, _ := fx.db.GetJob(context.Background(), 10)
	if job.Status != models.StatusFailed {
		t.Errorf("job status = %q", job.Status)
	}
}

func TestRetryDeclinesNonFailedJob(t *testing.T) {
	fx := newPipelineFixture(t, "content")

	accepted, err := fx.pipeline.Retry(context.Background(), 10)
	if !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("err = %v, want ErrNotRetryable", err)
	}
	if accepted {
		t.Error("retry accepted for a job that is not failed")
	}
	job, _ := fx.db.GetJob(context.Background(), 10)
	if job.Status != models.StatusUploading {
		t.Errorf("retry mutated job status to %q", job.Status)
	}
}

func TestRetryDeclinesWhenFileMissing(t *testing.T) {
	fx := newPipelineFixture(t, "content")
	_ = fx.db.UpdateJobStatus(context.Background(), 10, models.StatusFailed)
	if err := os.Remove(fx.job.FilePath); err != nil {
		t.Fatal(err)
	}
	before := len(fx.db.StatusLog)

	accepted, err := fx.pipeline.Retry(context.Background(), 10)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if accepted {
		t.Error("retry accepted with the raw file missing")
	}
	if len(fx.db.StatusLog) != before {
		t.Error("retry mutated state despite declining")
	}
}

func TestRetryRequeuesFailedJob(t *testing.T) {
	fx := newPipelineFixture(t, "content")
	// A failed run removed the placeholder row and marked the job failed.
	_ = fx.db.DeleteDocument(context.Background(), 10)
	_ = fx.db.UpdateJobStatus(context.Background(), 10, models.StatusFailed)

	accepted, err := fx.pipeline.Retry(context.Background(), 10)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !accepted {
		t.Fatal("retry declined a retryable job")
	}

	job, _ := fx.db.GetJob(context.Background(), 10)
	if job.Status != models.StatusUploading {
		t.Errorf("job status = %q, want uploading", job.Status)
	}
	doc, _ := fx.db.GetDocumentByID(context.Background(), 10)
	if doc == nil {
		t.Fatal("placeholder document not restored")
	}
	if !doc.IsNotAnalyzed || doc.ID != 10 {
		t.Errorf("restored document = %+v", doc)
	}
	if doc.ParentID != 5 {
		t.Errorf("restored document parent = %d, want original folder 5", doc.ParentID)
	}

	// The job landed back on the queue.
	select {
	case queued := <-fx.pipeline.queue:
		if queued.FileID != 10 {
			t.Errorf("queued job id = %d", queued.FileID)
		}
	default:
		t.Error("no job enqueued")
	}
}

package ingestion

import (
	"context"
	"fmt"
	"os"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/models"
	"github.com/docforge/docforge/internal/services"
)

// Pipeline runs one upload through the full ingestion sequence:
// quota check, summary, extraction, embedding, finalize. Every entry point
// (HTTP intake, retry, remote relay) feeds the same queue, so behavior is
// identical no matter how a job arrives.
type Pipeline struct {
	db         core.DbClient
	extractor  core.Extractor
	embedder   *Embedder
	summarizer core.Summarizer
	media      core.MediaDescriber
	quota      *services.QuotaService
	jobs       *services.JobService
	placement  *services.PlacementService
	log        *logger.Logger
	cfg        Config

	queue chan models.UploadJob
}

func NewPipeline(
	db core.DbClient,
	extractor core.Extractor,
	embedder *Embedder,
	summarizer core.Summarizer,
	media core.MediaDescriber,
	quota *services.QuotaService,
	jobs *services.JobService,
	placement *services.PlacementService,
	log *logger.Logger,
	cfg Config,
) *Pipeline {
	return &Pipeline{
		db:         db,
		extractor:  extractor,
		embedder:   embedder,
		summarizer: summarizer,
		media:      media,
		quota:      quota,
		jobs:       jobs,
		placement:  placement,
		log:        log,
		cfg:        cfg,
		queue:      make(chan models.UploadJob, cfg.QueueSize),
	}
}

// Start launches the worker pool. Workers drain the queue until ctx is
// cancelled; a failed job is logged, never fatal to the pool.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		go func(worker int) {
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-p.queue:
					if err := p.Run(ctx, job); err != nil {
						p.log.Error("ingestion failed",
							"worker", worker, "job_id", job.FileID,
							"file", job.OriginalName, "error", err)
					}
				}
			}
		}(i)
	}
}

// Submit enqueues a job for asynchronous processing.
func (p *Pipeline) Submit(ctx context.Context, job models.UploadJob) error {
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the state machine for one job. It returns the first error
// encountered; by then the compensating cleanup has already happened and
// the job status reads failed.
func (p *Pipeline) Run(ctx context.Context, job models.UploadJob) error {
	log := p.log.With("job_id", job.FileID, "file", job.OriginalName)

	// Quota. The file is already on disk (and mirrored, if cloud storage is
	// on), so rejection must undo the placement: the local copy always goes,
	// the cloud copy is kept as the durable original.
	used, err := p.quota.UsedStorage(ctx, job.CompanyID)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("read storage usage: %w", err))
	}
	max, err := p.quota.MaxStorage(ctx)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("read storage limit: %w", err))
	}
	if used > max {
		p.placement.RemoveLocal(job.FilePath)
		_ = p.db.DeleteDocument(ctx, job.FileID)
		_ = p.jobs.Advance(ctx, job.FileID, models.StatusFailed)
		return fmt.Errorf("%w: %s used of %s", ErrQuotaExceeded, used, max)
	}

	// Summary.
	_ = p.jobs.Advance(ctx, job.FileID, models.StatusGeneratingSummary)
	kind := ResolveKind(job.MimeType, job.OriginalName)
	summary, overview, err := p.summarize(ctx, job, kind)
	if err != nil {
		return p.fail(ctx, job, err)
	}
	if summary != "" {
		exists, err := p.db.SummaryExists(ctx, job.FileID, job.OriginalName, job.TeamID)
		if err != nil {
			return p.fail(ctx, job, fmt.Errorf("check summary: %w", err))
		}
		if !exists {
			s := &models.Summary{
				FileID:   job.FileID,
				TeamID:   job.TeamID,
				FileName: job.OriginalName,
				Notes:    summary,
				Overview: overview,
			}
			if err := p.db.InsertSummary(ctx, s); err != nil {
				return p.fail(ctx, job, fmt.Errorf("insert summary: %w", err))
			}
		}
	}

	// Extraction.
	_ = p.jobs.Advance(ctx, job.FileID, models.StatusExtractingData)
	if _, err := os.Stat(job.FilePath); err != nil {
		return p.fail(ctx, job, fmt.Errorf("%w: %s", ErrMissingFile, job.FilePath))
	}
	chunks, tempFiles, err := p.extractor.Extract(ctx, core.ExtractRequest{
		FilePath:     job.FilePath,
		DocumentID:   job.FileID,
		OriginalName: job.OriginalName,
		MimeType:     job.MimeType,
		Summary:      summary,
		Overview:     overview,
	})
	if err != nil {
		return p.fail(ctx, job, err)
	}
	if len(chunks) == 0 {
		return p.fail(ctx, job, fmt.Errorf("%w: %s", ErrExtractionFailed, job.OriginalName))
	}

	// Embedding.
	_ = p.jobs.Advance(ctx, job.FileID, models.StatusAnalyzingDocument)
	namespace, err := p.namespace(ctx, job)
	if err != nil {
		return p.fail(ctx, job, err)
	}
	indexed, err := p.embedder.EmbedAndIndex(ctx, chunks, namespace, job.FileID)
	if err != nil {
		return p.fail(ctx, job, err)
	}
	if !indexed {
		log.Warn("nothing to index, document completes without vectors")
	}

	// Finalize. Re-verify the document row and the raw file before flipping
	// the analyzed flag; either disappearing mid-flight fails the job.
	doc, err := p.db.GetDocumentByID(ctx, job.FileID)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("load document: %w", err))
	}
	if doc == nil {
		return p.fail(ctx, job, fmt.Errorf("document %d deleted mid-ingestion", job.FileID))
	}
	if _, err := os.Stat(job.FilePath); err != nil {
		return p.fail(ctx, job, fmt.Errorf("%w: %s", ErrMissingFile, job.FilePath))
	}
	if p.placement.CloudEnabled() {
		// The object store holds the durable copy now.
		p.placement.RemoveLocal(job.FilePath)
		for _, t := range tempFiles {
			p.placement.RemoveLocal(t)
		}
	}
	if err := p.db.MarkDocumentAnalyzed(ctx, job.FileID, job.FileSizeBytes, job.UserID); err != nil {
		return p.fail(ctx, job, fmt.Errorf("mark analyzed: %w", err))
	}
	_ = p.jobs.Advance(ctx, job.FileID, models.StatusSucceeded)
	if err := p.db.DeleteRetryRecord(ctx, job.FileID); err != nil {
		log.Warn("could not clear retry record", "error", err)
	}
	log.Info("ingestion complete", "chunks", len(chunks))
	return nil
}

// Retry redrives a failed job from its retry record. It reports whether the
// job was accepted: a job that is not failed declines with ErrNotRetryable;
// one with no record or whose raw file is gone declines silently. Declines
// never mutate state.
func (p *Pipeline) Retry(ctx context.Context, jobID int64) (bool, error) {
	job, err := p.db.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if job.Status != models.StatusFailed {
		return false, ErrNotRetryable
	}
	rec, err := p.db.GetRetryRecord(ctx, jobID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	if _, err := os.Stat(rec.FilePath); err != nil {
		return false, nil
	}

	// Failure cleanup removed the placeholder row; restore it under the
	// original id and parent folder so the job id keeps doubling as the
	// file id and the upload lands where the user put it.
	doc, err := p.db.GetDocumentByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	if doc == nil {
		restored := &models.Document{
			ID:            jobID,
			ParentID:      rec.ParentID,
			TeamID:        rec.TeamID,
			Name:          rec.OriginalName,
			Type:          models.NodeFile,
			CreatorID:     rec.UserID,
			SizeBytes:     rec.SizeBytes,
			Source:        "Upload",
			IsNotAnalyzed: true,
		}
		if _, err := p.db.CreateDocument(ctx, restored); err != nil {
			return false, fmt.Errorf("restore document %d: %w", jobID, err)
		}
	}

	// Clear any vectors a partial run left behind before re-indexing.
	p.embedder.DeleteEmbeddings(jobID, rec.TenantUUID)

	if err := p.db.UpdateJobStatus(ctx, jobID, models.StatusUploading); err != nil {
		return false, err
	}
	if err := p.Submit(ctx, rec.RetryJob()); err != nil {
		return false, err
	}
	p.log.Info("job requeued for retry", "job_id", jobID, "file", rec.OriginalName)
	return true, nil
}

func (p *Pipeline) summarize(ctx context.Context, job models.UploadJob, kind FileKind) (string, string, error) {
	if kind.IsMedia() {
		var (
			desc string
			err  error
		)
		switch kind {
		case KindImage:
			desc, err = p.media.DescribeImage(ctx, job.FilePath)
		case KindAudio:
			desc, err = p.media.DescribeAudio(ctx, job.FilePath)
		default:
			desc, err = p.media.DescribeVideo(ctx, job.FilePath)
		}
		if err != nil {
			return "", "", fmt.Errorf("describe %s: %w", kind, err)
		}
		return desc, "", nil
	}
	res, err := p.summarizer.Summarize(ctx, job.FilePath, job.FileID, job.OriginalName, job.UserID)
	if err != nil {
		return "", "", fmt.Errorf("summarize: %w", err)
	}
	if !res.OK {
		return "", "", nil
	}
	return res.Output, res.Overview, nil
}

func (p *Pipeline) namespace(ctx context.Context, job models.UploadJob) (string, error) {
	if job.TenantUUID != "" {
		return job.TenantUUID, nil
	}
	team, err := p.db.GetTeamByID(ctx, job.TeamID)
	if err != nil {
		return "", fmt.Errorf("load team %d: %w", job.TeamID, err)
	}
	if team == nil {
		return "", fmt.Errorf("team %d not found", job.TeamID)
	}
	return team.StorageUUID, nil
}

// fail runs the compensating cleanup for a failed job: the placeholder
// document row and any partial summary go, the local raw file goes unless
// the object store holds the durable copy, and the job is marked failed.
// The retry record survives so the job can be redriven.
func (p *Pipeline) fail(ctx context.Context, job models.UploadJob, cause error) error {
	if err := p.db.DeleteDocument(ctx, job.FileID); err != nil {
		p.log.Warn("cleanup: could not delete document", "job_id", job.FileID, "error", err)
	}
	if err := p.db.DeleteSummariesByFile(ctx, job.FileID); err != nil {
		p.log.Warn("cleanup: could not delete summaries", "job_id", job.FileID, "error", err)
	}
	if !p.placement.CloudEnabled() {
		p.placement.RemoveLocal(job.FilePath)
	}
	_ = p.jobs.Advance(ctx, job.FileID, models.StatusFailed)
	return cause
}

package services

import (
	"context"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/models"
)

// JobStatus is the polling payload clients see. State is the raw status
// label except on success, where it becomes "completed".
type JobStatus struct {
	JobID    int64  `json:"job_id"`
	State    string `json:"state"`
	Progress int    `json:"progress"`
}

// Progress maps a stored status label to the reported state and percentage.
// Unknown labels pass through verbatim at zero progress.
func Progress(status string) (string, int) {
	switch status {
	case models.StatusGeneratingSummary:
		return status, 25
	case models.StatusExtractingData:
		return status, 50
	case models.StatusAnalyzingDocument:
		return status, 75
	case models.StatusSucceeded:
		return "completed", 100
	default:
		return status, 0
	}
}

// JobService tracks ingestion jobs. The job id is the file id, so one
// lookup serves both.
type JobService struct {
	db  core.DbClient
	log *logger.Logger
}

func NewJobService(db core.DbClient, log *logger.Logger) *JobService {
	return &JobService{db: db, log: log}
}

func (s *JobService) Create(ctx context.Context, job *models.IngestionJob) error {
	return s.db.CreateJob(ctx, job)
}

// Advance moves a job to the given status label. Status writes are
// best-effort observability; the caller decides whether a failure here
// aborts the work itself.
func (s *JobService) Advance(ctx context.Context, jobID int64, status string) error {
	if err := s.db.UpdateJobStatus(ctx, jobID, status); err != nil {
		s.log.Error("could not update job status", "job_id", jobID, "status", status, "error", err)
		return err
	}
	s.log.Info("job status", "job_id", jobID, "status", status)
	return nil
}

// Get returns the client-facing status, or nil when the job is unknown.
func (s *JobService) Get(ctx context.Context, jobID int64) (*JobStatus, error) {
	job, err := s.db.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	state, pct := Progress(job.Status)
	return &JobStatus{JobID: job.ID, State: state, Progress: pct}, nil
}

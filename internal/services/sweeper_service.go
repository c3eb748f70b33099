package services

import (
	"context"
	"time"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/logger"
)

const defaultUploadExpiryHrs = 24

// Sweeper reclaims uploads that never finished analyzing. Every interval it
// finds retry records older than the configured expiry and, for each one
// whose document still exists and is still unanalyzed, removes the file,
// the document row, the retry record and the job.
type Sweeper struct {
	db        core.DbClient
	placement *PlacementService
	log       *logger.Logger
	interval  time.Duration

	now func() time.Time
}

func NewSweeper(db core.DbClient, placement *PlacementService, log *logger.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		db:        db,
		placement: placement,
		log:       log,
		interval:  interval,
		now:       time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Sweep(ctx); err != nil {
					s.log.Error("sweep failed", "error", err)
				}
			}
		}
	}()
}

// Sweep performs one pass. Per-record problems are logged and skipped so a
// single bad record cannot stall the rest.
func (s *Sweeper) Sweep(ctx context.Context) error {
	hrs, err := s.db.GetSettingFloat(ctx, SettingUploadExpiryHrs, defaultUploadExpiryHrs)
	if err != nil {
		return err
	}
	cutoff := s.now().Add(-time.Duration(hrs * float64(time.Hour)))

	recs, err := s.db.ListRetryRecordsOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		doc, err := s.db.GetDocumentByID(ctx, rec.JobID)
		if err != nil {
			s.log.Warn("sweep: could not load document", "job_id", rec.JobID, "error", err)
			continue
		}
		if doc != nil && !doc.IsNotAnalyzed {
			// Finished after the record was cut; finalize already cleans up.
			continue
		}

		s.placement.RemoveLocal(rec.FilePath)
		s.placement.RemoveObject(ctx, rec.FileFullName)
		if doc != nil {
			if err := s.db.DeleteDocument(ctx, rec.JobID); err != nil {
				s.log.Warn("sweep: could not delete document", "job_id", rec.JobID, "error", err)
				continue
			}
		}
		if err := s.db.DeleteRetryRecord(ctx, rec.JobID); err != nil {
			s.log.Warn("sweep: could not delete retry record", "job_id", rec.JobID, "error", err)
			continue
		}
		if err := s.db.DeleteJob(ctx, rec.JobID); err != nil {
			s.log.Warn("sweep: could not delete job", "job_id", rec.JobID, "error", err)
		}
		s.log.Info("sweep: reclaimed expired upload", "job_id", rec.JobID, "file", rec.OriginalName)
	}
	return nil
}

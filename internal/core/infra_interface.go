package core

import (
	"context"
	"time"

	"github.com/docforge/docforge/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateTeam(ctx context.Context, team *models.Team) error
	GetTeamByID(ctx context.Context, id int64) (*models.Team, error)
	ListTeamsByCompany(ctx context.Context, companyID int64) ([]models.Team, error)

	// CreateDocument assigns and returns the new node's id.
	CreateDocument(ctx context.Context, doc *models.Document) (int64, error)
	GetDocumentByID(ctx context.Context, id int64) (*models.Document, error)
	ListChildren(ctx context.Context, teamID, parentID int64) ([]models.Document, error)
	RenameDocument(ctx context.Context, id int64, name string) error
	MoveDocument(ctx context.Context, id, newParentID int64) error
	SetDocumentTrashed(ctx context.Context, id int64, trashed bool) error
	// DeleteDocument removes the node and, for folders, every descendant.
	DeleteDocument(ctx context.Context, id int64) error
	// MarkDocumentAnalyzed flips is_not_analyzed to false. One-way.
	MarkDocumentAnalyzed(ctx context.Context, id int64, sizeBytes int64, creatorID int64) error
	SumDocumentSizes(ctx context.Context, companyID int64) (int64, error)

	SummaryExists(ctx context.Context, fileID int64, fileName string, teamID int64) (bool, error)
	InsertSummary(ctx context.Context, s *models.Summary) error
	DeleteSummariesByFile(ctx context.Context, fileID int64) error

	CreateJob(ctx context.Context, job *models.IngestionJob) error
	GetJob(ctx context.Context, jobID int64) (*models.IngestionJob, error)
	UpdateJobStatus(ctx context.Context, jobID int64, status string) error
	DeleteJob(ctx context.Context, jobID int64) error

	SaveRetryRecord(ctx context.Context, rec *models.RetryRecord) error
	GetRetryRecord(ctx context.Context, jobID int64) (*models.RetryRecord, error)
	DeleteRetryRecord(ctx context.Context, jobID int64) error
	ListRetryRecordsOlderThan(ctx context.Context, cutoff time.Time) ([]models.RetryRecord, error)

	InsertEmbeddingRecords(ctx context.Context, records []models.EmbeddingRecord) error
	// DeleteEmbeddingsByDocument removes the vector rows and the chunk-id
	// mapping for a document within a namespace.
	DeleteEmbeddingsByDocument(ctx context.Context, documentID int64, namespace string) error
	// PendingEmbeddingWrites reports in-flight bulk inserts into the vector
	// table; deletion waits for this to drain.
	PendingEmbeddingWrites(ctx context.Context) (int, error)
	SaveEmbeddingIDs(ctx context.Context, documentID int64, chunkIDs []string) error
	GetEmbeddingIDs(ctx context.Context, documentID int64) ([]string, error)

	// GetSettingFloat reads an admin setting fresh on every call.
	GetSettingFloat(ctx context.Context, key string, def float64) (float64, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, key string) error
	GetFile(ctx context.Context, key string) ([]byte, error)
}

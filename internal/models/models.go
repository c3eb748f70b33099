package models

import (
	"time"
)

// RootParentID is the sentinel parent for top-level nodes in a team's tree.
const RootParentID int64 = 0

// NodeType distinguishes files from folders in the document tree.
type NodeType string

const (
	NodeFile   NodeType = "file"
	NodeFolder NodeType = "folder"
)

// Job status labels. The progress milestones and the terminal success label
// are part of the client contract and must not be renamed.
const (
	StatusUploading         = "uploading"
	StatusGeneratingSummary = "Generating Summary"
	StatusExtractingData    = "Extracting Data"
	StatusAnalyzingDocument = "Analyzing Document"
	StatusSucceeded         = "successfull"
	StatusFailed            = "failed"
)

// User represents an authenticated user of the system.
type User struct {
	ID           int64     `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CompanyID    int64     `db:"company_id" json:"company_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Team is the tenant boundary for documents. StorageUUID is assigned once at
// creation and identifies the team's storage directory and vector namespace;
// the human-readable Alias can be renamed freely without breaking paths.
type Team struct {
	ID          int64     `db:"id" json:"id"`
	CompanyID   int64     `db:"company_id" json:"company_id"`
	Alias       string    `db:"alias" json:"alias"`
	StorageUUID string    `db:"storage_uuid" json:"storage_uuid"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Document is a file or folder node in a per-team tree.
//
// A file is created as a placeholder with IsNotAnalyzed=true and flipped to
// analyzed only when the ingestion pipeline completes. SizeBytes is the raw
// byte count; render it with ByteSize for display.
type Document struct {
	ID            int64     `db:"id" json:"id"`
	ParentID      int64     `db:"parent_id" json:"parent_id"`
	TeamID        int64     `db:"team_id" json:"team_id"`
	Name          string    `db:"name" json:"name"`
	Type          NodeType  `db:"type" json:"type"`
	CreatorID     int64     `db:"creator_id" json:"creator_id"`
	SizeBytes     int64     `db:"size_bytes" json:"size_bytes"`
	Source        string    `db:"source" json:"source"`
	IsNotAnalyzed bool      `db:"is_not_analyzed" json:"is_not_analyzed"`
	IsTrashed     bool      `db:"is_trashed" json:"is_trashed"`
	Tooltip       string    `db:"tooltip" json:"tooltip,omitempty"`
	IsDefault     bool      `db:"is_default" json:"is_default"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Summary holds the AI-generated notes and overview for one analyzed file.
// At most one row exists per (FileID, FileName, TeamID); callers check
// existence before inserting, never upsert.
type Summary struct {
	FileID    int64     `db:"file_id" json:"file_id"`
	TeamID    int64     `db:"team_id" json:"team_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	Notes     string    `db:"notes" json:"notes"`
	Overview  string    `db:"overview" json:"overview"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EmbeddingRecord is one chunk row in the vector store.
type EmbeddingRecord struct {
	ID         string    `db:"id" json:"id"`
	DocumentID int64     `db:"document_id" json:"document_id"`
	Namespace  string    `db:"namespace" json:"namespace"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"embedding"`
	ObjectRef  string    `db:"object_ref" json:"object_ref"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// IngestionJob tracks one upload attempt. The job id doubles as the target
// file id; clients poll it for the status labels above.
type IngestionJob struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	TeamID    int64     `db:"team_id" json:"team_id"`
	CompanyID int64     `db:"company_id" json:"company_id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RetryRecord is a durable snapshot of a job's input, kept until the job
// reaches terminal success so a crashed or failed ingestion can be redriven.
type RetryRecord struct {
	JobID        int64     `db:"job_id" json:"job_id"`
	FilePath     string    `db:"file_path" json:"file_path"`
	FileFullName string    `db:"file_full_name" json:"file_full_name"`
	OriginalName string    `db:"original_name" json:"original_name"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	TeamID       int64     `db:"team_id" json:"team_id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	CompanyID    int64     `db:"company_id" json:"company_id"`
	TenantUUID   string    `db:"tenant_uuid" json:"tenant_uuid"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	ParentID     int64     `db:"parent_id" json:"parent_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UploadJob is the descriptor handed to the ingestion pipeline by the upload
// intake (or rebuilt from a RetryRecord on redrive).
type UploadJob struct {
	FilePath      string `json:"file_path"`
	FileFullName  string `json:"file_full_name"`
	MimeType      string `json:"mimetype"`
	FileID        int64  `json:"file_id"`
	OriginalName  string `json:"original_name"`
	TeamID        int64  `json:"team_id"`
	UserID        int64  `json:"user_id"`
	CompanyID     int64  `json:"company_id"`
	TenantUUID    string `json:"tenant_uuid"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	ParentID      int64  `json:"parent_id"`
}

// RetryJob rebuilds the pipeline descriptor from a persisted RetryRecord.
func (r *RetryRecord) RetryJob() UploadJob {
	return UploadJob{
		FilePath:      r.FilePath,
		FileFullName:  r.FileFullName,
		MimeType:      r.MimeType,
		FileID:        r.JobID,
		OriginalName:  r.OriginalName,
		TeamID:        r.TeamID,
		UserID:        r.UserID,
		CompanyID:     r.CompanyID,
		TenantUUID:    r.TenantUUID,
		FileSizeBytes: r.SizeBytes,
		ParentID:      r.ParentID,
	}
}

// Record converts an upload descriptor into its durable retry snapshot.
func (j UploadJob) Record(now time.Time) *RetryRecord {
	return &RetryRecord{
		JobID:        j.FileID,
		FilePath:     j.FilePath,
		FileFullName: j.FileFullName,
		OriginalName: j.OriginalName,
		MimeType:     j.MimeType,
		TeamID:       j.TeamID,
		UserID:       j.UserID,
		CompanyID:    j.CompanyID,
		TenantUUID:   j.TenantUUID,
		SizeBytes:    j.FileSizeBytes,
		ParentID:     j.ParentID,
		CreatedAt:    now,
	}
}

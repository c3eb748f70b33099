package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/docforge/docforge/internal/config"
	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/models"
)

type DatabaseClient struct {
	db *sql.DB

	// pendingEmbeds counts in-flight bulk inserts into document_embeddings.
	// Embedding deletion polls this before issuing its filtered delete.
	pendingEmbeds atomic.Int64
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		if _, err := os.Stat(cfg.SslCertPath); err != nil {
			return nil, fmt.Errorf("ssl cert not accessible at %q: %w", cfg.SslCertPath, err)
		}
		// Append SSL params to the provided DATABASE_URL safely.
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: sqlDB}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (first_name, email, password_hash, company_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id
	`
	return c.db.QueryRowContext(ctx, q,
		user.FirstName, user.Email, user.PasswordHash, user.CompanyID).Scan(&user.ID)
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, company_id, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CompanyID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Teams

func (c *DatabaseClient) CreateTeam(ctx context.Context, team *models.Team) error {
	if team == nil {
		return errors.New("nil team")
	}
	const q = `
		INSERT INTO teams (company_id, alias, storage_uuid, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id
	`
	return c.db.QueryRowContext(ctx, q, team.CompanyID, team.Alias, team.StorageUUID).Scan(&team.ID)
}

func (c *DatabaseClient) GetTeamByID(ctx context.Context, id int64) (*models.Team, error) {
	const q = `
		SELECT id, company_id, alias, storage_uuid, created_at
		FROM teams WHERE id = $1
	`
	var t models.Team
	err := c.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.CompanyID, &t.Alias, &t.StorageUUID, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *DatabaseClient) ListTeamsByCompany(ctx context.Context, companyID int64) ([]models.Team, error) {
	const q = `
		SELECT id, company_id, alias, storage_uuid, created_at
		FROM teams WHERE company_id = $1
		ORDER BY id
	`
	rows, err := c.db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Alias, &t.StorageUUID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) (int64, error) {
	if doc == nil {
		return 0, errors.New("nil document")
	}
	if doc.ID != 0 {
		// Restoring a node under its original id (retry of a failed job).
		const q = `
			INSERT INTO documents
				(id, parent_id, team_id, name, type, creator_id, size_bytes, source,
				 is_not_analyzed, is_trashed, tooltip, is_default, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
			ON CONFLICT (id) DO NOTHING
		`
		_, err := c.db.ExecContext(ctx, q,
			doc.ID, doc.ParentID, doc.TeamID, doc.Name, doc.Type, doc.CreatorID, doc.SizeBytes, doc.Source,
			doc.IsNotAnalyzed, doc.IsTrashed, doc.Tooltip, doc.IsDefault)
		if err != nil {
			return 0, err
		}
		return doc.ID, nil
	}
	const q = `
		INSERT INTO documents
			(parent_id, team_id, name, type, creator_id, size_bytes, source,
			 is_not_analyzed, is_trashed, tooltip, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING id
	`
	err := c.db.QueryRowContext(ctx, q,
		doc.ParentID, doc.TeamID, doc.Name, doc.Type, doc.CreatorID, doc.SizeBytes, doc.Source,
		doc.IsNotAnalyzed, doc.IsTrashed, doc.Tooltip, doc.IsDefault).Scan(&doc.ID)
	if err != nil {
		return 0, err
	}
	return doc.ID, nil
}

const documentColumns = `
	id, parent_id, team_id, name, type, creator_id, size_bytes, source,
	is_not_analyzed, is_trashed, tooltip, is_default, created_at
`

func scanDocument(row interface{ Scan(...any) error }, d *models.Document) error {
	return row.Scan(
		&d.ID, &d.ParentID, &d.TeamID, &d.Name, &d.Type, &d.CreatorID, &d.SizeBytes, &d.Source,
		&d.IsNotAnalyzed, &d.IsTrashed, &d.Tooltip, &d.IsDefault, &d.CreatedAt,
	)
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id int64) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var d models.Document
	err := scanDocument(c.db.QueryRowContext(ctx, q, id), &d)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListChildren(ctx context.Context, teamID, parentID int64) ([]models.Document, error) {
	q := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE team_id = $1 AND parent_id = $2 AND NOT is_trashed
		ORDER BY type DESC, name ASC
	`
	rows, err := c.db.QueryContext(ctx, q, teamID, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := scanDocument(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) RenameDocument(ctx context.Context, id int64, name string) error {
	return c.execOnDocument(ctx, `UPDATE documents SET name = $2 WHERE id = $1`, id, name)
}

func (c *DatabaseClient) MoveDocument(ctx context.Context, id, newParentID int64) error {
	return c.execOnDocument(ctx, `UPDATE documents SET parent_id = $2 WHERE id = $1`, id, newParentID)
}

func (c *DatabaseClient) SetDocumentTrashed(ctx context.Context, id int64, trashed bool) error {
	return c.execOnDocument(ctx, `UPDATE documents SET is_trashed = $2 WHERE id = $1`, id, trashed)
}

func (c *DatabaseClient) execOnDocument(ctx context.Context, q string, args ...any) error {
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %v", args[0])
	}
	return nil
}

// DeleteDocument removes the node and every descendant in one statement.
func (c *DatabaseClient) DeleteDocument(ctx context.Context, id int64) error {
	const q = `
		WITH RECURSIVE subtree AS (
			SELECT id FROM documents WHERE id = $1
			UNION ALL
			SELECT d.id FROM documents d JOIN subtree s ON d.parent_id = s.id
		)
		DELETE FROM documents WHERE id IN (SELECT id FROM subtree)
	`
	_, err := c.db.ExecContext(ctx, q, id)
	return err
}

func (c *DatabaseClient) MarkDocumentAnalyzed(ctx context.Context, id int64, sizeBytes int64, creatorID int64) error {
	const q = `
		UPDATE documents
		SET is_not_analyzed = false, size_bytes = $2, creator_id = $3
		WHERE id = $1
	`
	return c.execOnDocument(ctx, q, id, sizeBytes, creatorID)
}

func (c *DatabaseClient) SumDocumentSizes(ctx context.Context, companyID int64) (int64, error) {
	const q = `
		SELECT COALESCE(SUM(d.size_bytes), 0)
		FROM documents d
		JOIN teams t ON t.id = d.team_id
		WHERE t.company_id = $1 AND d.type = 'file'
	`
	var total int64
	if err := c.db.QueryRowContext(ctx, q, companyID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Summaries

func (c *DatabaseClient) SummaryExists(ctx context.Context, fileID int64, fileName string, teamID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM summaries WHERE file_id = $1 AND file_name = $2 AND team_id = $3
		)
	`
	var exists bool
	if err := c.db.QueryRowContext(ctx, q, fileID, fileName, teamID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (c *DatabaseClient) InsertSummary(ctx context.Context, s *models.Summary) error {
	if s == nil {
		return errors.New("nil summary")
	}
	const q = `
		INSERT INTO summaries (file_id, team_id, file_name, notes, overview, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`
	_, err := c.db.ExecContext(ctx, q, s.FileID, s.TeamID, s.FileName, s.Notes, s.Overview)
	return err
}

func (c *DatabaseClient) DeleteSummariesByFile(ctx context.Context, fileID int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM summaries WHERE file_id = $1`, fileID)
	return err
}

// Jobs

func (c *DatabaseClient) CreateJob(ctx context.Context, job *models.IngestionJob) error {
	if job == nil {
		return errors.New("nil job")
	}
	const q = `
		INSERT INTO ingestion_jobs (id, user_id, team_id, company_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, job.ID, job.UserID, job.TeamID, job.CompanyID, job.Status)
	return err
}

func (c *DatabaseClient) GetJob(ctx context.Context, jobID int64) (*models.IngestionJob, error) {
	const q = `
		SELECT id, user_id, team_id, company_id, status, created_at, updated_at
		FROM ingestion_jobs WHERE id = $1
	`
	var j models.IngestionJob
	err := c.db.QueryRowContext(ctx, q, jobID).Scan(
		&j.ID, &j.UserID, &j.TeamID, &j.CompanyID, &j.Status, &j.CreatedAt, &j.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (c *DatabaseClient) UpdateJobStatus(ctx context.Context, jobID int64, status string) error {
	const q = `UPDATE ingestion_jobs SET status = $2, updated_at = now() WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, jobID, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job not found: %d", jobID)
	}
	return nil
}

func (c *DatabaseClient) DeleteJob(ctx context.Context, jobID int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM ingestion_jobs WHERE id = $1`, jobID)
	return err
}

// Retry records

func (c *DatabaseClient) SaveRetryRecord(ctx context.Context, rec *models.RetryRecord) error {
	if rec == nil {
		return errors.New("nil retry record")
	}
	const q = `
		INSERT INTO retry_records
			(job_id, file_path, file_full_name, original_name, mime_type,
			 team_id, user_id, company_id, tenant_uuid, size_bytes, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (job_id) DO UPDATE SET
			file_path = EXCLUDED.file_path,
			file_full_name = EXCLUDED.file_full_name,
			original_name = EXCLUDED.original_name,
			mime_type = EXCLUDED.mime_type,
			parent_id = EXCLUDED.parent_id,
			created_at = EXCLUDED.created_at
	`
	_, err := c.db.ExecContext(ctx, q,
		rec.JobID, rec.FilePath, rec.FileFullName, rec.OriginalName, rec.MimeType,
		rec.TeamID, rec.UserID, rec.CompanyID, rec.TenantUUID, rec.SizeBytes, rec.ParentID, rec.CreatedAt)
	return err
}

func (c *DatabaseClient) GetRetryRecord(ctx context.Context, jobID int64) (*models.RetryRecord, error) {
	const q = `
		SELECT job_id, file_path, file_full_name, original_name, mime_type,
		       team_id, user_id, company_id, tenant_uuid, size_bytes, parent_id, created_at
		FROM retry_records WHERE job_id = $1
	`
	var r models.RetryRecord
	err := c.db.QueryRowContext(ctx, q, jobID).Scan(
		&r.JobID, &r.FilePath, &r.FileFullName, &r.OriginalName, &r.MimeType,
		&r.TeamID, &r.UserID, &r.CompanyID, &r.TenantUUID, &r.SizeBytes, &r.ParentID, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *DatabaseClient) DeleteRetryRecord(ctx context.Context, jobID int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM retry_records WHERE job_id = $1`, jobID)
	return err
}

func (c *DatabaseClient) ListRetryRecordsOlderThan(ctx context.Context, cutoff time.Time) ([]models.RetryRecord, error) {
	const q = `
		SELECT job_id, file_path, file_full_name, original_name, mime_type,
		       team_id, user_id, company_id, tenant_uuid, size_bytes, parent_id, created_at
		FROM retry_records WHERE created_at <= $1
		ORDER BY created_at
	`
	rows, err := c.db.QueryContext(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RetryRecord
	for rows.Next() {
		var r models.RetryRecord
		if err := rows.Scan(
			&r.JobID, &r.FilePath, &r.FileFullName, &r.OriginalName, &r.MimeType,
			&r.TeamID, &r.UserID, &r.CompanyID, &r.TenantUUID, &r.SizeBytes, &r.ParentID, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Embeddings

// InsertEmbeddingRecords inserts one batch in a single transaction.
func (c *DatabaseClient) InsertEmbeddingRecords(ctx context.Context, records []models.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	c.pendingEmbeds.Add(1)
	defer c.pendingEmbeds.Add(-1)

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO document_embeddings (id, document_id, namespace, text, embedding, object_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		vec := pgvector.NewVector(r.Embedding)
		if _, err := stmt.ExecContext(ctx, r.ID, r.DocumentID, r.Namespace, r.Text, vec, r.ObjectRef); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) DeleteEmbeddingsByDocument(ctx context.Context, documentID int64, namespace string) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM document_embeddings WHERE document_id = $1 AND namespace = $2`,
		documentID, namespace); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, `DELETE FROM file_embeddings WHERE document_id = $1`, documentID)
	return err
}

func (c *DatabaseClient) PendingEmbeddingWrites(ctx context.Context) (int, error) {
	return int(c.pendingEmbeds.Load()), nil
}

func (c *DatabaseClient) SaveEmbeddingIDs(ctx context.Context, documentID int64, chunkIDs []string) error {
	payload, err := json.Marshal(chunkIDs)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO file_embeddings (document_id, chunk_ids, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (document_id) DO UPDATE SET chunk_ids = EXCLUDED.chunk_ids, created_at = now()
	`
	_, err = c.db.ExecContext(ctx, q, documentID, payload)
	return err
}

func (c *DatabaseClient) GetEmbeddingIDs(ctx context.Context, documentID int64) ([]string, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT chunk_ids FROM file_embeddings WHERE document_id = $1`, documentID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(payload, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Settings

func (c *DatabaseClient) GetSettingFloat(ctx context.Context, key string, def float64) (float64, error) {
	var v float64
	err := c.db.QueryRowContext(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

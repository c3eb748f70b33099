// Package coretest provides in-memory fakes for the core interfaces.
package coretest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/models"
)

// FakeDB is an in-memory core.DbClient for tests. State is exported so
// tests can seed and inspect it directly; the Err* fields inject failures.
type FakeDB struct {
	mu sync.Mutex

	Users        map[int64]*models.User
	Teams        map[int64]*models.Team
	Documents    map[int64]*models.Document
	Summaries    []models.Summary
	Jobs         map[int64]*models.IngestionJob
	RetryRecords map[int64]*models.RetryRecord
	ChunkIDs     map[int64][]string
	Settings     map[string]float64

	// InsertBatches records each InsertEmbeddingRecords call.
	InsertBatches [][]models.EmbeddingRecord
	// DeletedEmbeddings records document ids passed to DeleteEmbeddingsByDocument.
	DeletedEmbeddings []int64
	// PendingSequence feeds successive PendingEmbeddingWrites results; once
	// exhausted the count reads zero.
	PendingSequence []int

	// StatusLog records every job status written, in order.
	StatusLog []string

	ErrInsertEmbeddings error
	ErrInsertSummary    error
	ErrCreateJob        error

	nextID int64
}

func NewFakeDB() *FakeDB {
	return &FakeDB{
		Users:        map[int64]*models.User{},
		Teams:        map[int64]*models.Team{},
		Documents:    map[int64]*models.Document{},
		Jobs:         map[int64]*models.IngestionJob{},
		RetryRecords: map[int64]*models.RetryRecord{},
		ChunkIDs:     map[int64][]string{},
		Settings:     map[string]float64{},
	}
}

var _ core.DbClient = (*FakeDB)(nil)

func (f *FakeDB) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *FakeDB) CreateUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.Users {
		if existing.Email == u.Email {
			return errors.New("duplicate email")
		}
	}
	if u.ID == 0 {
		u.ID = f.id()
	}
	f.Users[u.ID] = u
	return nil
}

func (f *FakeDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *FakeDB) CreateTeam(_ context.Context, t *models.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == 0 {
		t.ID = f.id()
	}
	f.Teams[t.ID] = t
	return nil
}

func (f *FakeDB) GetTeamByID(_ context.Context, id int64) (*models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Teams[id], nil
}

func (f *FakeDB) ListTeamsByCompany(_ context.Context, companyID int64) ([]models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Team
	for _, t := range f.Teams {
		if t.CompanyID == companyID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *FakeDB) CreateDocument(_ context.Context, doc *models.Document) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.ID == 0 {
		doc.ID = f.id()
	}
	cp := *doc
	f.Documents[doc.ID] = &cp
	return doc.ID, nil
}

func (f *FakeDB) GetDocumentByID(_ context.Context, id int64) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.Documents[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (f *FakeDB) ListChildren(_ context.Context, teamID, parentID int64) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Document
	for _, d := range f.Documents {
		if d.TeamID == teamID && d.ParentID == parentID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *FakeDB) RenameDocument(_ context.Context, id int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.Documents[id]; ok {
		d.Name = name
	}
	return nil
}

func (f *FakeDB) MoveDocument(_ context.Context, id, newParentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.Documents[id]; ok {
		d.ParentID = newParentID
	}
	return nil
}

func (f *FakeDB) SetDocumentTrashed(_ context.Context, id int64, trashed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.Documents[id]; ok {
		d.IsTrashed = trashed
	}
	return nil
}

func (f *FakeDB) DeleteDocument(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.Documents[id]
	if !ok {
		return nil
	}
	delete(f.Documents, id)
	// cascade to descendants
	if doc.Type == models.NodeFolder {
		queue := []int64{id}
		for len(queue) > 0 {
			pid := queue[0]
			queue = queue[1:]
			for cid, c := range f.Documents {
				if c.ParentID == pid {
					if c.Type == models.NodeFolder {
						queue = append(queue, cid)
					}
					delete(f.Documents, cid)
				}
			}
		}
	}
	return nil
}

func (f *FakeDB) MarkDocumentAnalyzed(_ context.Context, id int64, sizeBytes int64, creatorID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.Documents[id]
	if !ok {
		return errors.New("document not found")
	}
	d.IsNotAnalyzed = false
	d.SizeBytes = sizeBytes
	d.CreatorID = creatorID
	return nil
}

func (f *FakeDB) SumDocumentSizes(_ context.Context, companyID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, d := range f.Documents {
		if d.Type != models.NodeFile {
			continue
		}
		if t, ok := f.Teams[d.TeamID]; ok && t.CompanyID == companyID {
			total += d.SizeBytes
		}
	}
	return total, nil
}

func (f *FakeDB) SummaryExists(_ context.Context, fileID int64, fileName string, teamID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.Summaries {
		if s.FileID == fileID && s.FileName == fileName && s.TeamID == teamID {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeDB) InsertSummary(_ context.Context, s *models.Summary) error {
	if f.ErrInsertSummary != nil {
		return f.ErrInsertSummary
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Summaries = append(f.Summaries, *s)
	return nil
}

func (f *FakeDB) DeleteSummariesByFile(_ context.Context, fileID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.Summaries[:0]
	for _, s := range f.Summaries {
		if s.FileID != fileID {
			kept = append(kept, s)
		}
	}
	f.Summaries = kept
	return nil
}

func (f *FakeDB) CreateJob(_ context.Context, job *models.IngestionJob) error {
	if f.ErrCreateJob != nil {
		return f.ErrCreateJob
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.Jobs[job.ID] = &cp
	return nil
}

func (f *FakeDB) GetJob(_ context.Context, jobID int64) (*models.IngestionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.Jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (f *FakeDB) UpdateJobStatus(_ context.Context, jobID int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.Jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	j.Status = status
	f.StatusLog = append(f.StatusLog, status)
	return nil
}

func (f *FakeDB) DeleteJob(_ context.Context, jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Jobs, jobID)
	return nil
}

func (f *FakeDB) SaveRetryRecord(_ context.Context, rec *models.RetryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.RetryRecords[rec.JobID] = &cp
	return nil
}

func (f *FakeDB) GetRetryRecord(_ context.Context, jobID int64) (*models.RetryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.RetryRecords[jobID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *FakeDB) DeleteRetryRecord(_ context.Context, jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.RetryRecords, jobID)
	return nil
}

func (f *FakeDB) ListRetryRecordsOlderThan(_ context.Context, cutoff time.Time) ([]models.RetryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RetryRecord
	for _, r := range f.RetryRecords {
		if !r.CreatedAt.After(cutoff) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *FakeDB) InsertEmbeddingRecords(_ context.Context, records []models.EmbeddingRecord) error {
	if f.ErrInsertEmbeddings != nil {
		return f.ErrInsertEmbeddings
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]models.EmbeddingRecord, len(records))
	copy(batch, records)
	f.InsertBatches = append(f.InsertBatches, batch)
	return nil
}

func (f *FakeDB) DeleteEmbeddingsByDocument(_ context.Context, documentID int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeletedEmbeddings = append(f.DeletedEmbeddings, documentID)
	return nil
}

func (f *FakeDB) PendingEmbeddingWrites(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.PendingSequence) == 0 {
		return 0, nil
	}
	n := f.PendingSequence[0]
	f.PendingSequence = f.PendingSequence[1:]
	return n, nil
}

func (f *FakeDB) SaveEmbeddingIDs(_ context.Context, documentID int64, chunkIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ChunkIDs[documentID] = append([]string(nil), chunkIDs...)
	return nil
}

func (f *FakeDB) GetEmbeddingIDs(_ context.Context, documentID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ChunkIDs[documentID], nil
}

func (f *FakeDB) GetSettingFloat(_ context.Context, key string, def float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.Settings[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f *FakeDB) Close() error { return nil }

// InsertedRecords flattens every recorded batch.
func (f *FakeDB) InsertedRecords() []models.EmbeddingRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EmbeddingRecord
	for _, b := range f.InsertBatches {
		out = append(out, b...)
	}
	return out
}

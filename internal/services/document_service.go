package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/models"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidMove = errors.New("invalid move")
)

// DocumentService manages the per-team document tree: folders, listing,
// rename, move, trash and delete. File creation goes through the upload
// intake, not here.
type DocumentService struct {
	db  core.DbClient
	log *logger.Logger
}

func NewDocumentService(db core.DbClient, log *logger.Logger) *DocumentService {
	return &DocumentService{db: db, log: log}
}

// CreateFolder adds a folder under parentID (RootParentID for top level).
func (s *DocumentService) CreateFolder(ctx context.Context, teamID, parentID int64, name string, creatorID int64) (*models.Document, error) {
	if err := s.checkParent(ctx, teamID, parentID); err != nil {
		return nil, err
	}
	doc := &models.Document{
		ParentID:  parentID,
		TeamID:    teamID,
		Name:      name,
		Type:      models.NodeFolder,
		CreatorID: creatorID,
	}
	if _, err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return doc, nil
}

// CreatePlaceholder inserts the unanalyzed file node an upload starts from.
func (s *DocumentService) CreatePlaceholder(ctx context.Context, teamID, parentID int64, name string, creatorID, sizeBytes int64) (*models.Document, error) {
	if err := s.checkParent(ctx, teamID, parentID); err != nil {
		return nil, err
	}
	doc := &models.Document{
		ParentID:      parentID,
		TeamID:        teamID,
		Name:          name,
		Type:          models.NodeFile,
		CreatorID:     creatorID,
		SizeBytes:     sizeBytes,
		Source:        "Upload",
		IsNotAnalyzed: true,
	}
	if _, err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create file node: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := s.db.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, teamID, parentID int64) ([]models.Document, error) {
	return s.db.ListChildren(ctx, teamID, parentID)
}

func (s *DocumentService) Rename(ctx context.Context, id int64, name string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.db.RenameDocument(ctx, id, name)
}

// Move reparents a node. The destination must be a folder in the same team,
// and may not be the node itself or any of its descendants.
func (s *DocumentService) Move(ctx context.Context, id, newParentID int64) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if newParentID == id {
		return fmt.Errorf("%w: cannot move a node into itself", ErrInvalidMove)
	}
	if newParentID != models.RootParentID {
		parent, err := s.Get(ctx, newParentID)
		if err != nil {
			return fmt.Errorf("%w: destination does not exist", ErrInvalidMove)
		}
		if parent.Type != models.NodeFolder {
			return fmt.Errorf("%w: destination is not a folder", ErrInvalidMove)
		}
		if parent.TeamID != doc.TeamID {
			return fmt.Errorf("%w: destination belongs to another team", ErrInvalidMove)
		}
		// Walk up from the destination; hitting the moved node means the
		// destination sits inside its subtree.
		for cur := parent; cur.ParentID != models.RootParentID; {
			if cur.ParentID == id {
				return fmt.Errorf("%w: destination is inside the moved folder", ErrInvalidMove)
			}
			cur, err = s.Get(ctx, cur.ParentID)
			if err != nil {
				return err
			}
		}
	}
	return s.db.MoveDocument(ctx, id, newParentID)
}

func (s *DocumentService) SetTrashed(ctx context.Context, id int64, trashed bool) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.db.SetDocumentTrashed(ctx, id, trashed)
}

// Delete removes a node and, for folders, its whole subtree, along with
// any summaries attached to the deleted file ids. Vector cleanup is the
// caller's job since it runs asynchronously.
func (s *DocumentService) Delete(ctx context.Context, id int64) ([]models.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := s.collectFiles(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := s.db.DeleteDocument(ctx, id); err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := s.db.DeleteSummariesByFile(ctx, f.ID); err != nil {
			s.log.Warn("could not delete summaries", "file_id", f.ID, "error", err)
		}
	}
	return files, nil
}

// collectFiles gathers every file node in the subtree rooted at doc.
func (s *DocumentService) collectFiles(ctx context.Context, doc *models.Document) ([]models.Document, error) {
	if doc.Type == models.NodeFile {
		return []models.Document{*doc}, nil
	}
	var files []models.Document
	queue := []int64{doc.ID}
	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]
		children, err := s.db.ListChildren(ctx, doc.TeamID, parentID)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if c.Type == models.NodeFolder {
				queue = append(queue, c.ID)
			} else {
				files = append(files, c)
			}
		}
	}
	return files, nil
}

func (s *DocumentService) checkParent(ctx context.Context, teamID, parentID int64) error {
	if parentID == models.RootParentID {
		return nil
	}
	parent, err := s.Get(ctx, parentID)
	if err != nil {
		return fmt.Errorf("parent folder: %w", err)
	}
	if parent.Type != models.NodeFolder {
		return fmt.Errorf("parent %d is not a folder", parentID)
	}
	if parent.TeamID != teamID {
		return fmt.Errorf("parent %d belongs to another team", parentID)
	}
	return nil
}

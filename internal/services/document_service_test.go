package services

import (
	"context"
	"errors"
	"testing"

	"github.com/docforge/docforge/internal/core/coretest"
	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/models"
)

// seedTree builds:
//
//	root
//	└── A (folder)
//	    └── B (folder)
//	        └── C (file)
func seedTree(t *testing.T) (*DocumentService, *coretest.FakeDB, *models.Document, *models.Document, *models.Document) {
	t.Helper()
	db := coretest.NewFakeDB()
	svc := NewDocumentService(db, logger.NewNop())
	ctx := context.Background()

	a, err := svc.CreateFolder(ctx, 1, models.RootParentID, "A", 2)
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.CreateFolder(ctx, 1, a.ID, "B", 2)
	if err != nil {
		t.Fatal(err)
	}
	c, err := svc.CreatePlaceholder(ctx, 1, b.ID, "c.txt", 2, 100)
	if err != nil {
		t.Fatal(err)
	}
	return svc, db, a, b, c
}

func TestCreateFolderRejectsFileParent(t *testing.T) {
	svc, _, _, _, c := seedTree(t)

	if _, err := svc.CreateFolder(context.Background(), 1, c.ID, "under-a-file", 2); err == nil {
		t.Error("folder created under a file node")
	}
}

func TestCreatePlaceholderStartsUnanalyzed(t *testing.T) {
	_, _, _, _, c := seedTree(t)
	if !c.IsNotAnalyzed {
		t.Error("placeholder created already analyzed")
	}
	if c.Type != models.NodeFile {
		t.Errorf("placeholder type = %q", c.Type)
	}
}

func TestMoveRejectsCycles(t *testing.T) {
	svc, _, a, b, c := seedTree(t)
	ctx := context.Background()

	// A into its own subtree.
	err := svc.Move(ctx, a.ID, b.ID)
	if !errors.Is(err, ErrInvalidMove) {
		t.Errorf("moving a folder into its subtree: err = %v", err)
	}
	// A node into itself.
	err = svc.Move(ctx, a.ID, a.ID)
	if !errors.Is(err, ErrInvalidMove) {
		t.Errorf("moving a node into itself: err = %v", err)
	}
	// Into a file.
	err = svc.Move(ctx, b.ID, c.ID)
	if !errors.Is(err, ErrInvalidMove) {
		t.Errorf("moving into a file: err = %v", err)
	}
}

func TestMoveToRootAndBack(t *testing.T) {
	svc, db, a, b, _ := seedTree(t)
	ctx := context.Background()

	if err := svc.Move(ctx, b.ID, models.RootParentID); err != nil {
		t.Fatalf("move to root: %v", err)
	}
	moved, _ := db.GetDocumentByID(ctx, b.ID)
	if moved.ParentID != models.RootParentID {
		t.Errorf("parent = %d", moved.ParentID)
	}

	if err := svc.Move(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("move back: %v", err)
	}
	moved, _ = db.GetDocumentByID(ctx, b.ID)
	if moved.ParentID != a.ID {
		t.Errorf("parent = %d", moved.ParentID)
	}
}

func TestDeleteCascadesAndReportsFiles(t *testing.T) {
	svc, db, a, b, c := seedTree(t)
	ctx := context.Background()
	_ = db.InsertSummary(ctx, &models.Summary{FileID: c.ID, TeamID: 1, FileName: "c.txt"})

	files, err := svc.Delete(ctx, a.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(files) != 1 || files[0].ID != c.ID {
		t.Errorf("deleted files = %+v", files)
	}
	for _, id := range []int64{a.ID, b.ID, c.ID} {
		if doc, _ := db.GetDocumentByID(ctx, id); doc != nil {
			t.Errorf("document %d survived cascade", id)
		}
	}
	if len(db.Summaries) != 0 {
		t.Error("summary survived file deletion")
	}
}

func TestRenameMissingDocument(t *testing.T) {
	svc, _, _, _, _ := seedTree(t)
	if err := svc.Rename(context.Background(), 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

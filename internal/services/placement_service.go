package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/logger"
)

// PlacementService writes uploaded files to their canonical location:
// <root>/<tenantUUID>/<docID>.<ext> on local disk, and the bare file name
// as the object key when cloud storage is enabled. The cloud copy is a
// mirror; the local file stays the pipeline's working input either way.
type PlacementService struct {
	root  string
	store core.ObjectClient // nil when cloud mirroring is disabled
	log   *logger.Logger
}

func NewPlacementService(root string, store core.ObjectClient, log *logger.Logger) *PlacementService {
	return &PlacementService{root: root, store: store, log: log}
}

func (s *PlacementService) CloudEnabled() bool { return s.store != nil }

// Root is the document root directory local files live under.
func (s *PlacementService) Root() string { return s.root }

// FileName derives the stored name from the document id and the upload's
// original extension. Extensionless uploads keep just the id.
func FileName(docID int64, originalName string) string {
	ext := strings.TrimPrefix(filepath.Ext(originalName), ".")
	if ext == "" {
		return fmt.Sprintf("%d", docID)
	}
	return fmt.Sprintf("%d.%s", docID, strings.ToLower(ext))
}

// Place persists the upload and returns the local path the pipeline reads
// from. If the cloud mirror fails the local file is removed so no orphan
// is left behind.
func (s *PlacementService) Place(ctx context.Context, tenantUUID string, docID int64, originalName, contentType string, data []byte) (string, error) {
	dir := filepath.Join(s.root, tenantUUID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create team directory: %w", err)
	}

	name := FileName(docID, originalName)
	localPath := filepath.Join(dir, name)
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", localPath, err)
	}

	if s.store != nil {
		if _, err := s.store.UploadFile(ctx, name, data, contentType); err != nil {
			_ = os.Remove(localPath)
			return "", fmt.Errorf("mirror %s to object storage: %w", name, err)
		}
	}
	return localPath, nil
}

// RemoveLocal deletes the on-disk copy. A missing file is not an error.
func (s *PlacementService) RemoveLocal(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("could not remove local file", "path", path, "error", err)
	}
}

// RemoveObject deletes the cloud mirror, if one exists.
func (s *PlacementService) RemoveObject(ctx context.Context, fileFullName string) {
	if s.store == nil {
		return
	}
	if err := s.store.DeleteFile(ctx, fileFullName); err != nil {
		s.log.Warn("could not remove object", "key", fileFullName, "error", err)
	}
}

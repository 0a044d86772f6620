package repository

import (
	"context"
	"fmt"
	"path"

	"github.com/noah-isme/teg-intake-api/internal/models"
	"github.com/noah-isme/teg-intake-api/pkg/storage"
)

var localDocumentDirs = map[models.DocumentKind]string{
	models.DocumentKindDossier: "expedientes",
	models.DocumentKindWork:    "tesis",
}

// LocalDocumentRepository stores dossiers and final works on disk.
type LocalDocumentRepository struct {
	files *storage.LocalStorage
}

// NewLocalDocumentRepository constructs the repository over a base directory.
func NewLocalDocumentRepository(files *storage.LocalStorage) *LocalDocumentRepository {
	return &LocalDocumentRepository{files: files}
}

// Store writes content under the folder of its kind. The reference is the
// filesystem path.
func (r *LocalDocumentRepository) Store(_ context.Context, kind models.DocumentKind, name string, content []byte) (models.StoredDocument, error) {
	dir, ok := localDocumentDirs[kind]
	if !ok {
		return models.StoredDocument{}, fmt.Errorf("unknown document kind %q", kind)
	}
	rel, err := r.files.Save(path.Join(dir, name), content)
	if err != nil {
		return models.StoredDocument{}, fmt.Errorf("store %s: %w", kind, err)
	}
	return models.StoredDocument{ID: rel, Kind: kind, Ref: r.files.Path(rel)}, nil
}

// Remove deletes a previously stored document.
func (r *LocalDocumentRepository) Remove(_ context.Context, doc models.StoredDocument) error {
	if err := r.files.Delete(doc.ID); err != nil {
		return fmt.Errorf("remove %s: %w", doc.Kind, err)
	}
	return nil
}

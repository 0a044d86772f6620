package repository

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/noah-isme/teg-intake-api/internal/models"
	"github.com/noah-isme/teg-intake-api/pkg/retry"
	"github.com/noah-isme/teg-intake-api/pkg/storage"
)

// DriveDocumentRepository uploads documents into a Google Drive folder.
type DriveDocumentRepository struct {
	svc         *drive.Service
	folderID    string
	sharePublic bool
	stagingDir  string
	runner      *retry.Runner
	logger      *zap.Logger
}

// NewDriveDocumentRepository constructs the repository.
func NewDriveDocumentRepository(svc *drive.Service, folderID, stagingDir string, sharePublic bool, runner *retry.Runner, logger *zap.Logger) *DriveDocumentRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = retry.NewRunner(retry.Policy{}, retry.Hooks{}, logger)
	}
	return &DriveDocumentRepository{
		svc:         svc,
		folderID:    folderID,
		sharePublic: sharePublic,
		stagingDir:  stagingDir,
		runner:      runner,
		logger:      logger,
	}
}

// Store uploads content and returns the file's web link as reference. The
// staged copy is released whatever the outcome.
func (r *DriveDocumentRepository) Store(ctx context.Context, kind models.DocumentKind, name string, content []byte) (doc models.StoredDocument, err error) {
	scratch, err := storage.NewScratch(r.stagingDir, "upload-*"+filepath.Ext(name), content)
	if err != nil {
		return models.StoredDocument{}, err
	}
	defer func() {
		if releaseErr := scratch.Release(); releaseErr != nil {
			r.logger.Warn("staged upload not released", zap.String("path", scratch.Path), zap.Error(releaseErr))
		}
	}()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// A reserved id makes a repeated create fail with 409 instead of leaving a
	// second copy behind.
	fileID, err := r.reserveID(ctx)
	if err != nil {
		return models.StoredDocument{}, fmt.Errorf("reserve id for %s '%s': %w", kind, name, err)
	}

	var created *drive.File
	err = r.runner.Do(ctx, "drive.upload", func(ctx context.Context) error {
		f, err := scratch.Open()
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck
		created, err = r.svc.Files.Create(&drive.File{Id: fileID, Name: name, Parents: []string{r.folderID}}).
			Media(f, googleapi.ContentType(contentType)).
			Fields("id, webViewLink").
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if isConflict(err) {
			created = nil
			return nil
		}
		return err
	})
	if err == nil && created == nil {
		created, err = r.lookup(ctx, fileID)
	}
	if err != nil {
		if removeErr := r.Remove(context.WithoutCancel(ctx), models.StoredDocument{ID: fileID, Kind: kind}); removeErr != nil {
			r.logger.Error("failed upload may have left a file", zap.String("file_id", fileID), zap.Error(removeErr))
		}
		return models.StoredDocument{}, fmt.Errorf("upload %s '%s': %w", kind, name, err)
	}

	doc = models.StoredDocument{ID: created.Id, Kind: kind, Ref: created.WebViewLink}
	if r.sharePublic {
		if err := r.share(ctx, created.Id); err != nil {
			if removeErr := r.Remove(ctx, doc); removeErr != nil {
				r.logger.Error("unshared upload left behind", zap.String("file_id", created.Id), zap.Error(removeErr))
			}
			return models.StoredDocument{}, fmt.Errorf("share %s '%s': %w", kind, name, err)
		}
	}

	r.logger.Info("document uploaded", zap.String("kind", string(kind)), zap.String("file_id", created.Id))
	return doc, nil
}

// Remove deletes an uploaded file. A file that is already gone is not an error.
func (r *DriveDocumentRepository) Remove(ctx context.Context, doc models.StoredDocument) error {
	err := r.runner.Do(ctx, "drive.delete", func(ctx context.Context) error {
		return r.svc.Files.Delete(doc.ID).SupportsAllDrives(true).Context(ctx).Do()
	})
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s '%s': %w", doc.Kind, doc.ID, err)
	}
	return nil
}

func (r *DriveDocumentRepository) reserveID(ctx context.Context) (string, error) {
	var id string
	err := r.runner.Do(ctx, "drive.generate_ids", func(ctx context.Context) error {
		resp, err := r.svc.Files.GenerateIds().Count(1).Space("drive").Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(resp.Ids) == 0 {
			return errors.New("drive returned no ids")
		}
		id = resp.Ids[0]
		return nil
	})
	return id, err
}

func (r *DriveDocumentRepository) lookup(ctx context.Context, fileID string) (*drive.File, error) {
	var file *drive.File
	err := r.runner.Do(ctx, "drive.get", func(ctx context.Context) error {
		var err error
		file, err = r.svc.Files.Get(fileID).Fields("id, webViewLink").SupportsAllDrives(true).Context(ctx).Do()
		return err
	})
	return file, err
}

func isConflict(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

func (r *DriveDocumentRepository) share(ctx context.Context, fileID string) error {
	return r.runner.Do(ctx, "drive.share", func(ctx context.Context) error {
		_, err := r.svc.Permissions.Create(fileID, &drive.Permission{Type: "anyone", Role: "reader"}).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		return err
	})
}

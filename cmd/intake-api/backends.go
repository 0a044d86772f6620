package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teg-intake-api/internal/handler"
	"github.com/noah-isme/teg-intake-api/internal/models"
	"github.com/noah-isme/teg-intake-api/internal/repository"
	"github.com/noah-isme/teg-intake-api/pkg/cache"
	"github.com/noah-isme/teg-intake-api/pkg/config"
	"github.com/noah-isme/teg-intake-api/pkg/database"
	"github.com/noah-isme/teg-intake-api/pkg/export"
	"github.com/noah-isme/teg-intake-api/pkg/gcloud"
	"github.com/noah-isme/teg-intake-api/pkg/lock"
	"github.com/noah-isme/teg-intake-api/pkg/retry"
	"github.com/noah-isme/teg-intake-api/pkg/storage"
)

type windowBackend interface {
	Load(ctx context.Context) (models.WindowSet, error)
	Save(ctx context.Context, set models.WindowSet) error
}

type recordBackend interface {
	Destination() string
	Append(ctx context.Context, rec models.SubmissionRecord) error
	Table(ctx context.Context) (export.Dataset, error)
}

type documentBackend interface {
	Store(ctx context.Context, kind models.DocumentKind, name string, content []byte) (models.StoredDocument, error)
	Remove(ctx context.Context, doc models.StoredDocument) error
}

// backends holds the storage selected by configuration.
type backends struct {
	windows   windowBackend
	records   recordBackend
	documents documentBackend
	locker    lock.Locker
	checks    map[string]handler.ReadinessCheck
	closers   []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func buildBackends(ctx context.Context, cfg *config.Config, runner *retry.Runner, logr *zap.Logger) (*backends, error) {
	b := &backends{checks: map[string]handler.ReadinessCheck{}}

	switch cfg.Windows.Store {
	case config.WindowsStorePostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		repo := repository.NewWindowRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("prepare enrollment_windows: %w", err)
		}
		b.windows = repo
		b.checks["postgres"] = db.PingContext
	default:
		b.windows = repository.NewWindowFileRepository(cfg.Windows.FilePath)
	}

	var google *gcloud.Client
	if cfg.UsesGoogle() {
		client, err := gcloud.NewFromFile(ctx, cfg.Google.CredentialsFile)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("load google credentials: %w", err)
		}
		google = client
	}

	switch cfg.Records.Backend {
	case config.RecordsBackendSheets:
		svc, err := google.Sheets(ctx)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("sheets client: %w", err)
		}
		b.records = repository.NewSheetsRecordRepository(svc, cfg.Records.SpreadsheetID, cfg.Records.SheetName, runner, logr)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Records.ExcelPath), 0o755); err != nil {
			b.Close()
			return nil, fmt.Errorf("prepare records directory: %w", err)
		}
		b.records = repository.NewExcelRecordRepository(cfg.Records.ExcelPath, logr)
	}

	switch cfg.Documents.Backend {
	case config.DocumentsBackendDrive:
		svc, err := google.Drive(ctx)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("drive client: %w", err)
		}
		b.documents = repository.NewDriveDocumentRepository(svc, cfg.Documents.DriveFolderID, cfg.Documents.StagingDir, cfg.Documents.SharePublic, runner, logr)
	default:
		files, err := storage.NewLocalStorage(cfg.Documents.LocalDir)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.documents = repository.NewLocalDocumentRepository(files)
		b.checks["documents"] = func(context.Context) error {
			_, err := os.Stat(cfg.Documents.LocalDir)
			return err
		}
	}

	b.locker = lock.NewLocal()
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.locker = lock.NewRedis(client, cfg.Redis.LockTTL)
		b.checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}

	logr.Info("storage backends ready",
		zap.String("windows", cfg.Windows.Store),
		zap.String("records", b.records.Destination()),
		zap.String("documents", cfg.Documents.Backend),
		zap.Bool("distributed_lock", cfg.Redis.Enabled),
	)
	return b, nil
}

func newRunner(cfg config.RemoteConfig, hooks retry.Hooks, logr *zap.Logger) *retry.Runner {
	return retry.NewRunner(retry.Policy{
		Attempts: cfg.RetryAttempts,
		Timeout:  cfg.Timeout,
		Initial:  cfg.InitialBackoff,
		Max:      cfg.MaxBackoff,
	}, hooks, logr)
}

func loadLocation(name string, logr *zap.Logger) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logr.Warn("unknown TIMEZONE, falling back to UTC", zap.String("timezone", name), zap.Error(err))
		return time.UTC
	}
	return loc
}

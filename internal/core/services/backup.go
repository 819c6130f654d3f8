package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// BackupService captures pre-mutation snapshots and restores them.
// A snapshot records what the remote store actually held just before the
// operation's first write, so restore reverts to observed state rather
// than to whatever the request claimed.
type BackupService struct {
	store  driven.BackupStore
	logger *slog.Logger
}

// NewBackupService creates a new backup service.
func NewBackupService(store driven.BackupStore, logger *slog.Logger) *BackupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupService{store: store, logger: logger}
}

// Create fetches the current remote state of every target in the
// operation and persists it under a fresh backup id. Targets that do not
// exist yet are recorded as missing so a later restore can delete what
// the operation created.
func (s *BackupService) Create(ctx context.Context, client driven.StoreClient, op *domain.Operation) (*domain.Backup, error) {
	backup := &domain.Backup{
		ID:          domain.NewBackupID(time.Now()),
		OperationID: op.ID,
		StoreID:     op.PreviewData.StoreID,
		CreatedAt:   time.Now(),
	}

	class := backupClass(op.PreviewData)
	for _, target := range op.PreviewData.Targets {
		snapshot, err := s.snapshotTarget(ctx, client, op.PreviewData.Kind, class, target)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", target, err)
		}
		backup.Items = append(backup.Items, snapshot)
	}

	if err := s.store.Save(ctx, backup); err != nil {
		return nil, fmt.Errorf("persist backup: %w", err)
	}

	s.logger.Info("backup created",
		"backup_id", backup.ID,
		"operation_id", op.ID,
		"items", len(backup.Items),
	)
	return backup, nil
}

func (s *BackupService) snapshotTarget(
	ctx context.Context,
	client driven.StoreClient,
	kind domain.OperationKind,
	class domain.ContentClass,
	target string,
) (domain.ItemSnapshot, error) {
	snapshot := domain.ItemSnapshot{Target: target, Class: class}

	// Creation targets are SKUs of items that should not exist yet.
	if kind == domain.OperationKindCreateProducts {
		item, err := client.FindBySKU(ctx, target)
		if err != nil {
			return snapshot, err
		}
		if item == nil {
			snapshot.Missing = true
		} else {
			snapshot.Item = item
		}
		return snapshot, nil
	}

	item, err := client.GetItem(ctx, class, target)
	if err != nil {
		if isRemoteMissing(err) {
			snapshot.Missing = true
			return snapshot, nil
		}
		return snapshot, err
	}
	snapshot.Item = item
	return snapshot, nil
}

// Restore writes a backup's snapshots back to the store. Snapshots of
// items that were missing at backup time are deleted if the operation
// created them since. Partial restores report per-item errors; a restore
// that recovers nothing fails with ErrRollbackFailed.
func (s *BackupService) Restore(ctx context.Context, client driven.StoreClient, backupID string) (*domain.RestoreResult, error) {
	backup, err := s.store.Get(ctx, backupID)
	if err != nil {
		return nil, err
	}

	result := &domain.RestoreResult{BackupID: backup.ID}
	for _, snapshot := range backup.Items {
		if err := s.restoreSnapshot(ctx, client, snapshot); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", snapshot.Target, err))
			continue
		}
		result.Restored++
	}

	if result.Restored == 0 && len(result.Errors) > 0 {
		return result, fmt.Errorf("%w: restored nothing from %s", domain.ErrRollbackFailed, backup.ID)
	}

	s.logger.Info("backup restored",
		"backup_id", backup.ID,
		"restored", result.Restored,
		"errors", len(result.Errors),
	)
	return result, nil
}

func (s *BackupService) restoreSnapshot(ctx context.Context, client driven.StoreClient, snapshot domain.ItemSnapshot) error {
	if snapshot.Missing {
		// The item did not exist before the run; remove it if the run created it.
		created, err := client.FindBySKU(ctx, snapshot.Target)
		if err != nil {
			return err
		}
		if created == nil {
			return nil
		}
		return client.DeleteItem(ctx, snapshot.Class, created.ID)
	}

	if _, err := client.UpdateItem(ctx, snapshot.Class, snapshot.Item.ID, snapshot.Item); err != nil {
		// The item may have been deleted since the snapshot; recreate it.
		if isRemoteMissing(err) {
			_, createErr := client.CreateItem(ctx, snapshot.Class, snapshot.Item)
			return createErr
		}
		return err
	}
	return nil
}

// backupClass resolves which content class the operation touches.
func backupClass(data domain.PreviewData) domain.ContentClass {
	switch data.Kind {
	case domain.OperationKindUpdateCategories:
		return domain.ContentClassCategories
	case domain.OperationKindBulkDelete:
		return deleteClass(data.Changes)
	default:
		return domain.ContentClassProducts
	}
}

// isRemoteMissing reports whether the error means the remote item does
// not exist.
func isRemoteMissing(err error) bool {
	if errors.Is(err, domain.ErrNotFound) {
		return true
	}
	var remote *domain.RemoteError
	return errors.As(err, &remote) && remote.StatusCode == 404
}

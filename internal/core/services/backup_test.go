package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven/mocks"
)

func TestBackupCapturesRemoteState(t *testing.T) {
	store := mocks.NewMockBackupStore()
	client := mocks.NewMockStoreClient()
	targets := seedProducts(client, 3)
	svc := NewBackupService(store, nil)

	op := domain.NewOperation(domain.PreviewData{
		Kind:    domain.OperationKindUpdatePrices,
		StoreID: "store-1",
		Targets: targets,
		// The request claims a price that is not what the store holds.
		Changes: map[string]any{"regular_price": "1.00"},
	})

	backup, err := svc.Create(context.Background(), client, op)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !strings.HasPrefix(backup.ID, "backup_") {
		t.Errorf("unexpected backup id %q", backup.ID)
	}
	if backup.OperationID != op.ID {
		t.Errorf("backup references %s, want %s", backup.OperationID, op.ID)
	}
	if len(backup.Items) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(backup.Items))
	}
	for _, snap := range backup.Items {
		if snap.Missing {
			t.Errorf("target %s unexpectedly missing", snap.Target)
		}
		// Snapshot holds fetched remote state, not the requested change.
		if snap.Item.RegularPrice != "20.00" {
			t.Errorf("snapshot price %s, want fetched 20.00", snap.Item.RegularPrice)
		}
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 persisted backup, got %d", store.Count())
	}
}

func TestBackupMarksAbsentTargetsMissing(t *testing.T) {
	store := mocks.NewMockBackupStore()
	client := mocks.NewMockStoreClient()
	svc := NewBackupService(store, nil)

	op := domain.NewOperation(domain.PreviewData{
		Kind:    domain.OperationKindCreateProducts,
		StoreID: "store-1",
		Targets: []string{"NEW-1"},
	})

	backup, err := svc.Create(context.Background(), client, op)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !backup.Items[0].Missing {
		t.Error("expected snapshot marked missing for an item that does not exist yet")
	}
}

func TestRestoreRevertsUpdates(t *testing.T) {
	store := mocks.NewMockBackupStore()
	client := mocks.NewMockStoreClient()
	targets := seedProducts(client, 2)
	svc := NewBackupService(store, nil)

	op := domain.NewOperation(domain.PreviewData{
		Kind:    domain.OperationKindUpdatePrices,
		StoreID: "store-1",
		Targets: targets,
	})
	backup, err := svc.Create(context.Background(), client, op)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Mutate after the snapshot.
	for _, id := range targets {
		item, _ := client.GetItem(context.Background(), domain.ContentClassProducts, id)
		item.RegularPrice = "1.00"
		if _, err := client.UpdateItem(context.Background(), domain.ContentClassProducts, id, item); err != nil {
			t.Fatalf("UpdateItem: %v", err)
		}
	}

	result, err := svc.Restore(context.Background(), client, backup.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.Restored != 2 {
		t.Errorf("expected 2 restored, got %d", result.Restored)
	}
	got, _ := client.GetItem(context.Background(), domain.ContentClassProducts, targets[0])
	if got.RegularPrice != "20.00" {
		t.Errorf("expected price restored to 20.00, got %s", got.RegularPrice)
	}
}

func TestRestoreRecreatesDeletedItems(t *testing.T) {
	store := mocks.NewMockBackupStore()
	client := mocks.NewMockStoreClient()
	targets := seedProducts(client, 1)
	svc := NewBackupService(store, nil)

	op := domain.NewOperation(domain.PreviewData{
		Kind:    domain.OperationKindBulkDelete,
		StoreID: "store-1",
		Targets: targets,
	})
	backup, err := svc.Create(context.Background(), client, op)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := client.DeleteItem(context.Background(), domain.ContentClassProducts, targets[0]); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	result, err := svc.Restore(context.Background(), client, backup.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.Restored != 1 {
		t.Errorf("expected 1 restored, got %d", result.Restored)
	}
	recreated, err := client.FindBySKU(context.Background(), "SKU-1")
	if err != nil || recreated == nil {
		t.Fatalf("expected item recreated, got %v / %v", recreated, err)
	}
	if recreated.RegularPrice != "20.00" {
		t.Errorf("recreated with price %s, want 20.00", recreated.RegularPrice)
	}
}

func TestRestoreDeletesItemsCreatedSinceSnapshot(t *testing.T) {
	store := mocks.NewMockBackupStore()
	client := mocks.NewMockStoreClient()
	svc := NewBackupService(store, nil)

	op := domain.NewOperation(domain.PreviewData{
		Kind:    domain.OperationKindCreateProducts,
		StoreID: "store-1",
		Targets: []string{"NEW-1"},
	})
	backup, err := svc.Create(context.Background(), client, op)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Simulate the create the operation performed.
	if _, err := client.CreateItem(context.Background(), domain.ContentClassProducts, &domain.Item{SKU: "NEW-1", Name: "Created"}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	if _, err := svc.Restore(context.Background(), client, backup.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	still, err := client.FindBySKU(context.Background(), "NEW-1")
	if err != nil {
		t.Fatalf("FindBySKU: %v", err)
	}
	if still != nil {
		t.Error("expected created item removed by restore")
	}
}

func TestRestoreUnknownBackup(t *testing.T) {
	store := mocks.NewMockBackupStore()
	client := mocks.NewMockStoreClient()
	svc := NewBackupService(store, nil)

	_, err := svc.Restore(context.Background(), client, "backup_19700101_000000_deadbeef")
	if !errors.Is(err, domain.ErrBackupNotFound) {
		t.Errorf("expected ErrBackupNotFound, got %v", err)
	}
}

func TestRestoreNothingRecoveredFails(t *testing.T) {
	store := mocks.NewMockBackupStore()
	client := mocks.NewMockStoreClient()
	targets := seedProducts(client, 2)
	svc := NewBackupService(store, nil)

	op := domain.NewOperation(domain.PreviewData{
		Kind:    domain.OperationKindUpdatePrices,
		StoreID: "store-1",
		Targets: targets,
	})
	backup, err := svc.Create(context.Background(), client, op)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Every restore write is rejected.
	for _, id := range targets {
		client.FailIDs[id] = true
	}

	result, err := svc.Restore(context.Background(), client, backup.ID)
	if !errors.Is(err, domain.ErrRollbackFailed) {
		t.Fatalf("expected ErrRollbackFailed, got %v", err)
	}
	if result.Restored != 0 || len(result.Errors) != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRestorePartialReportsErrors(t *testing.T) {
	store := mocks.NewMockBackupStore()
	client := mocks.NewMockStoreClient()
	targets := seedProducts(client, 3)
	svc := NewBackupService(store, nil)

	op := domain.NewOperation(domain.PreviewData{
		Kind:    domain.OperationKindUpdatePrices,
		StoreID: "store-1",
		Targets: targets,
	})
	backup, err := svc.Create(context.Background(), client, op)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	client.FailIDs[targets[1]] = true

	result, err := svc.Restore(context.Background(), client, backup.ID)
	if err != nil {
		t.Fatalf("partial restore should not fail outright: %v", err)
	}
	if result.Restored != 2 || len(result.Errors) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

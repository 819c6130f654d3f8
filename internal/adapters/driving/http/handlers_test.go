package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driving"
)

// Mock services for testing

type mockOperationService struct {
	previewFn  func(ctx context.Context, req driving.PreviewRequest) (*domain.Preview, error)
	executeFn  func(ctx context.Context, operationID string, cfg domain.SafetyConfig) (*driving.ExecuteResult, error)
	rollbackFn func(ctx context.Context, operationID string) (*domain.RestoreResult, error)
	cancelFn   func(ctx context.Context, operationID string) error
	getFn      func(ctx context.Context, operationID string) (*domain.Operation, error)
	listFn     func(ctx context.Context, limit int) ([]*domain.Operation, error)
}

func (m *mockOperationService) Preview(ctx context.Context, req driving.PreviewRequest) (*domain.Preview, error) {
	if m.previewFn != nil {
		return m.previewFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockOperationService) Execute(ctx context.Context, operationID string, cfg domain.SafetyConfig) (*driving.ExecuteResult, error) {
	if m.executeFn != nil {
		return m.executeFn(ctx, operationID, cfg)
	}
	return nil, errors.New("not implemented")
}

func (m *mockOperationService) Rollback(ctx context.Context, operationID string) (*domain.RestoreResult, error) {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx, operationID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockOperationService) Cancel(ctx context.Context, operationID string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, operationID)
	}
	return errors.New("not implemented")
}

func (m *mockOperationService) GetOperation(ctx context.Context, operationID string) (*domain.Operation, error) {
	if m.getFn != nil {
		return m.getFn(ctx, operationID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockOperationService) ListOperations(ctx context.Context, limit int) ([]*domain.Operation, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return nil, errors.New("not implemented")
}

type mockSyncService struct {
	syncFn     func(ctx context.Context, sourceID string, targetIDs []string, cfg domain.SyncConfig) (*domain.SyncJob, error)
	getJobFn   func(ctx context.Context, id string) (*domain.SyncJob, error)
	listJobsFn func(ctx context.Context, limit int) ([]*domain.SyncJob, error)
	resolveFn  func(ctx context.Context, jobID string, decisions []driving.ConflictDecision) (int, error)
}

func (m *mockSyncService) SyncStores(ctx context.Context, sourceID string, targetIDs []string, cfg domain.SyncConfig) (*domain.SyncJob, error) {
	if m.syncFn != nil {
		return m.syncFn(ctx, sourceID, targetIDs, cfg)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSyncService) GetSyncJob(ctx context.Context, id string) (*domain.SyncJob, error) {
	if m.getJobFn != nil {
		return m.getJobFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSyncService) ListSyncJobs(ctx context.Context, limit int) ([]*domain.SyncJob, error) {
	if m.listJobsFn != nil {
		return m.listJobsFn(ctx, limit)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSyncService) ResolveConflicts(ctx context.Context, jobID string, decisions []driving.ConflictDecision) (int, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, jobID, decisions)
	}
	return 0, errors.New("not implemented")
}

type mockStoreService struct {
	registerFn func(ctx context.Context, store *domain.Store) error
	getFn      func(ctx context.Context, id string) (*domain.Store, error)
	listFn     func(ctx context.Context) ([]*domain.Store, error)
	removeFn   func(ctx context.Context, id string) error
}

func (m *mockStoreService) RegisterStore(ctx context.Context, store *domain.Store) error {
	if m.registerFn != nil {
		return m.registerFn(ctx, store)
	}
	return errors.New("not implemented")
}

func (m *mockStoreService) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockStoreService) ListStores(ctx context.Context) ([]*domain.Store, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockStoreService) RemoveStore(ctx context.Context, id string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, id)
	}
	return errors.New("not implemented")
}

type mockTaskQueue struct {
	enqueueFn func(ctx context.Context, task *domain.Task) error
	getTaskFn func(ctx context.Context, taskID string) (*domain.Task, error)
}

func (m *mockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	return errors.New("not implemented")
}

func (m *mockTaskQueue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	return errors.New("not implemented")
}

func (m *mockTaskQueue) Dequeue(ctx context.Context) (*domain.Task, error) {
	return nil, errors.New("not implemented")
}

func (m *mockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	return nil, errors.New("not implemented")
}

func (m *mockTaskQueue) Ack(ctx context.Context, taskID string) error {
	return errors.New("not implemented")
}

func (m *mockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	return errors.New("not implemented")
}

func (m *mockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	if m.getTaskFn != nil {
		return m.getTaskFn(ctx, taskID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTaskQueue) CancelTask(ctx context.Context, taskID string) error {
	return errors.New("not implemented")
}

func (m *mockTaskQueue) PurgeTasks(ctx context.Context, olderThan int) (int, error) {
	return 0, errors.New("not implemented")
}

func (m *mockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	return nil, errors.New("not implemented")
}

func (m *mockTaskQueue) Ping(ctx context.Context) error { return nil }

func (m *mockTaskQueue) Close() error { return nil }

// Health endpoints

func TestHealthHandler(t *testing.T) {
	server := &Server{version: "test"}

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	server.handleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %s", response["status"])
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyHandler(t *testing.T) {
	server := &Server{
		version: "test",
		db:      pingFunc(func(ctx context.Context) error { return nil }),
	}

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()

	server.handleReady(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestReadyHandler_DatabaseDown(t *testing.T) {
	server := &Server{
		version: "test",
		db:      pingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	}

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()

	server.handleReady(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestVersionHandler(t *testing.T) {
	server := &Server{version: "1.2.3"}

	req := httptest.NewRequest("GET", "/version", nil)
	rr := httptest.NewRecorder()

	server.handleVersion(rr, req)

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["version"] != "1.2.3" {
		t.Errorf("expected version '1.2.3', got %s", response["version"])
	}
}

// Operation endpoints

func TestHandlePreview(t *testing.T) {
	server := &Server{
		operationService: &mockOperationService{
			previewFn: func(ctx context.Context, req driving.PreviewRequest) (*domain.Preview, error) {
				if req.StoreID != "store-1" || req.Kind != domain.OperationKindUpdatePrices {
					t.Errorf("unexpected request: %+v", req)
				}
				return &domain.Preview{OperationID: "op-1", Kind: req.Kind, TotalTargets: 2}, nil
			},
		},
	}

	body := `{"store_id":"store-1","operation":"update_prices","targets":["1","2"],"changes":{"regular_price":"9.99"}}`
	req := httptest.NewRequest("POST", "/api/v1/operations/preview", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	server.handlePreview(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var preview domain.Preview
	if err := json.NewDecoder(rr.Body).Decode(&preview); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if preview.OperationID != "op-1" || preview.TotalTargets != 2 {
		t.Errorf("unexpected preview: %+v", preview)
	}
}

func TestHandlePreview_InvalidJSON(t *testing.T) {
	server := &Server{operationService: &mockOperationService{}}

	req := httptest.NewRequest("POST", "/api/v1/operations/preview", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()

	server.handlePreview(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandlePreview_StoreNotFound(t *testing.T) {
	server := &Server{
		operationService: &mockOperationService{
			previewFn: func(ctx context.Context, req driving.PreviewRequest) (*domain.Preview, error) {
				return nil, domain.ErrStoreNotFound
			},
		},
	}

	req := httptest.NewRequest("POST", "/api/v1/operations/preview", bytes.NewBufferString(`{"store_id":"nope"}`))
	rr := httptest.NewRecorder()

	server.handlePreview(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleExecute(t *testing.T) {
	server := &Server{
		operationService: &mockOperationService{
			executeFn: func(ctx context.Context, operationID string, cfg domain.SafetyConfig) (*driving.ExecuteResult, error) {
				if operationID != "op-1" {
					t.Errorf("unexpected operation id %s", operationID)
				}
				if cfg.DryRun {
					t.Error("expected dry_run disabled")
				}
				return &driving.ExecuteResult{OperationID: operationID, Status: domain.OperationStatusCompleted, Mode: "live", Successful: 3}, nil
			},
		},
	}

	body := `{"safety":{"dry_run":false,"confirmation_required":false}}`
	req := httptest.NewRequest("POST", "/api/v1/operations/op-1/execute", bytes.NewBufferString(body))
	req.SetPathValue("id", "op-1")
	rr := httptest.NewRecorder()

	server.handleExecute(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result driving.ExecuteResult
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Successful != 3 || result.Mode != "live" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHandleExecute_PartialFailureStillReturnsResult(t *testing.T) {
	server := &Server{
		operationService: &mockOperationService{
			executeFn: func(ctx context.Context, operationID string, cfg domain.SafetyConfig) (*driving.ExecuteResult, error) {
				result := &driving.ExecuteResult{
					OperationID:  operationID,
					Status:       domain.OperationStatusFailed,
					Failed:       6,
					NotProcessed: 4,
					Errors:       []string{"aborted: failure count exceeded max_failures=5"},
				}
				return result, domain.ErrPartialFailure
			},
		},
	}

	req := httptest.NewRequest("POST", "/api/v1/operations/op-1/execute", nil)
	req.SetPathValue("id", "op-1")
	rr := httptest.NewRecorder()

	server.handleExecute(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var result driving.ExecuteResult
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Failed != 6 || result.NotProcessed != 4 || len(result.Errors) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHandleExecute_ConfirmationRequired(t *testing.T) {
	server := &Server{
		operationService: &mockOperationService{
			executeFn: func(ctx context.Context, operationID string, cfg domain.SafetyConfig) (*driving.ExecuteResult, error) {
				return nil, domain.ErrConfirmationRequired
			},
		},
	}

	req := httptest.NewRequest("POST", "/api/v1/operations/op-1/execute", bytes.NewBufferString(`{"safety":{"dry_run":false}}`))
	req.SetPathValue("id", "op-1")
	rr := httptest.NewRecorder()

	server.handleExecute(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestHandleExecute_UnknownSafetyField(t *testing.T) {
	server := &Server{operationService: &mockOperationService{}}

	req := httptest.NewRequest("POST", "/api/v1/operations/op-1/execute", bytes.NewBufferString(`{"safety":{"dryrun":true}}`))
	req.SetPathValue("id", "op-1")
	rr := httptest.NewRecorder()

	server.handleExecute(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown safety key, got %d", rr.Code)
	}
}

func TestHandleExecute_Async(t *testing.T) {
	var enqueued *domain.Task
	server := &Server{
		operationService: &mockOperationService{},
		taskQueue: &mockTaskQueue{
			enqueueFn: func(ctx context.Context, task *domain.Task) error {
				enqueued = task
				return nil
			},
		},
	}

	body := `{"safety":{"dry_run":false,"confirmation_required":false},"async":true}`
	req := httptest.NewRequest("POST", "/api/v1/operations/op-1/execute", bytes.NewBufferString(body))
	req.SetPathValue("id", "op-1")
	rr := httptest.NewRecorder()

	server.handleExecute(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if enqueued == nil {
		t.Fatal("expected task enqueued")
	}
	if enqueued.Type != domain.TaskTypeExecuteOperation || enqueued.OperationID() != "op-1" {
		t.Errorf("unexpected task: %+v", enqueued)
	}
}

func TestHandleRollback(t *testing.T) {
	server := &Server{
		operationService: &mockOperationService{
			rollbackFn: func(ctx context.Context, operationID string) (*domain.RestoreResult, error) {
				return &domain.RestoreResult{BackupID: "backup_x", Restored: 5}, nil
			},
		},
	}

	req := httptest.NewRequest("POST", "/api/v1/operations/op-1/rollback", nil)
	req.SetPathValue("id", "op-1")
	rr := httptest.NewRecorder()

	server.handleRollback(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var result domain.RestoreResult
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Restored != 5 {
		t.Errorf("expected 5 restored, got %d", result.Restored)
	}
}

func TestHandleRollback_NoBackup(t *testing.T) {
	server := &Server{
		operationService: &mockOperationService{
			rollbackFn: func(ctx context.Context, operationID string) (*domain.RestoreResult, error) {
				return nil, domain.ErrBackupNotFound
			},
		},
	}

	req := httptest.NewRequest("POST", "/api/v1/operations/op-1/rollback", nil)
	req.SetPathValue("id", "op-1")
	rr := httptest.NewRecorder()

	server.handleRollback(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleCancel(t *testing.T) {
	server := &Server{
		operationService: &mockOperationService{
			cancelFn: func(ctx context.Context, operationID string) error { return nil },
		},
	}

	req := httptest.NewRequest("POST", "/api/v1/operations/op-1/cancel", nil)
	req.SetPathValue("id", "op-1")
	rr := httptest.NewRecorder()

	server.handleCancel(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleCancel_NotRunning(t *testing.T) {
	server := &Server{
		operationService: &mockOperationService{
			cancelFn: func(ctx context.Context, operationID string) error { return domain.ErrInvalidState },
		},
	}

	req := httptest.NewRequest("POST", "/api/v1/operations/op-1/cancel", nil)
	req.SetPathValue("id", "op-1")
	rr := httptest.NewRecorder()

	server.handleCancel(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestHandleGetOperation_NotFound(t *testing.T) {
	server := &Server{
		operationService: &mockOperationService{
			getFn: func(ctx context.Context, operationID string) (*domain.Operation, error) {
				return nil, domain.ErrNotFound
			},
		},
	}

	req := httptest.NewRequest("GET", "/api/v1/operations/missing", nil)
	req.SetPathValue("id", "missing")
	rr := httptest.NewRecorder()

	server.handleGetOperation(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleListOperations_LimitParam(t *testing.T) {
	var gotLimit int
	server := &Server{
		operationService: &mockOperationService{
			listFn: func(ctx context.Context, limit int) ([]*domain.Operation, error) {
				gotLimit = limit
				return nil, nil
			},
		},
	}

	req := httptest.NewRequest("GET", "/api/v1/operations?limit=10", nil)
	rr := httptest.NewRecorder()

	server.handleListOperations(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotLimit != 10 {
		t.Errorf("expected limit 10, got %d", gotLimit)
	}
}

// Sync endpoints

func TestHandleSync(t *testing.T) {
	server := &Server{
		syncService: &mockSyncService{
			syncFn: func(ctx context.Context, sourceID string, targetIDs []string, cfg domain.SyncConfig) (*domain.SyncJob, error) {
				if sourceID != "us-store" || len(targetIDs) != 2 {
					t.Errorf("unexpected request: %s %v", sourceID, targetIDs)
				}
				if cfg.ConflictResolution != domain.ResolutionManual {
					t.Errorf("expected manual resolution, got %s", cfg.ConflictResolution)
				}
				job := domain.NewSyncJob(sourceID, targetIDs, cfg)
				job.Status = domain.SyncStatusCompleted
				return job, nil
			},
		},
	}

	body := `{"source_id":"us-store","target_ids":["eu-store","uk-store"],"config":{"direction":"one-way","conflict_resolution":"manual"}}`
	req := httptest.NewRequest("POST", "/api/v1/sync", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	server.handleSync(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var job domain.SyncJob
	if err := json.NewDecoder(rr.Body).Decode(&job); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if job.Status != domain.SyncStatusCompleted {
		t.Errorf("unexpected job status %s", job.Status)
	}
}

func TestHandleSync_Async(t *testing.T) {
	var enqueued *domain.Task
	server := &Server{
		syncService: &mockSyncService{},
		taskQueue: &mockTaskQueue{
			enqueueFn: func(ctx context.Context, task *domain.Task) error {
				enqueued = task
				return nil
			},
		},
	}

	body := `{"source_id":"us-store","target_ids":["eu-store"],"async":true}`
	req := httptest.NewRequest("POST", "/api/v1/sync", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	server.handleSync(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rr.Code)
	}
	if enqueued == nil || enqueued.Type != domain.TaskTypeSyncStores {
		t.Fatalf("expected sync task enqueued, got %+v", enqueued)
	}
	if enqueued.SourceStoreID() != "us-store" || len(enqueued.TargetStoreIDs()) != 1 {
		t.Errorf("unexpected task payload: %+v", enqueued.Payload)
	}
}

func TestHandleSync_InProgress(t *testing.T) {
	server := &Server{
		syncService: &mockSyncService{
			syncFn: func(ctx context.Context, sourceID string, targetIDs []string, cfg domain.SyncConfig) (*domain.SyncJob, error) {
				return nil, domain.ErrSyncInProgress
			},
		},
	}

	req := httptest.NewRequest("POST", "/api/v1/sync", bytes.NewBufferString(`{"source_id":"us-store","target_ids":["eu-store"]}`))
	rr := httptest.NewRecorder()

	server.handleSync(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestHandleResolveConflicts(t *testing.T) {
	server := &Server{
		syncService: &mockSyncService{
			resolveFn: func(ctx context.Context, jobID string, decisions []driving.ConflictDecision) (int, error) {
				if jobID != "job-1" || len(decisions) != 1 || !decisions[0].KeepSource {
					t.Errorf("unexpected call: %s %+v", jobID, decisions)
				}
				return 1, nil
			},
		},
	}

	body := `{"decisions":[{"target_store_id":"eu-store","key":"SKU-1","keep_source":true}]}`
	req := httptest.NewRequest("POST", "/api/v1/sync/job-1/resolve", bytes.NewBufferString(body))
	req.SetPathValue("id", "job-1")
	rr := httptest.NewRecorder()

	server.handleResolveConflicts(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var response map[string]int
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["applied"] != 1 {
		t.Errorf("expected 1 applied, got %d", response["applied"])
	}
}

func TestHandleResolveConflicts_NoDecisions(t *testing.T) {
	server := &Server{syncService: &mockSyncService{}}

	req := httptest.NewRequest("POST", "/api/v1/sync/job-1/resolve", bytes.NewBufferString(`{"decisions":[]}`))
	req.SetPathValue("id", "job-1")
	rr := httptest.NewRecorder()

	server.handleResolveConflicts(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

// Store endpoints

func TestHandleRegisterStore(t *testing.T) {
	var registered *domain.Store
	server := &Server{
		storeService: &mockStoreService{
			registerFn: func(ctx context.Context, store *domain.Store) error {
				registered = store
				return nil
			},
		},
	}

	body := `{"id":"eu-store","name":"EU Store","base_url":"https://eu.example.com","consumer_key":"ck","consumer_secret":"cs","currency":"EUR","enabled":true}`
	req := httptest.NewRequest("POST", "/api/v1/stores", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	server.handleRegisterStore(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if registered == nil || registered.ConsumerSecret != "cs" {
		t.Fatalf("expected consumer secret decoded, got %+v", registered)
	}
	if bytes.Contains(rr.Body.Bytes(), []byte(`"cs"`)) {
		t.Error("consumer secret must not be echoed in the response")
	}
}

func TestHandleRegisterStore_Invalid(t *testing.T) {
	server := &Server{
		storeService: &mockStoreService{
			registerFn: func(ctx context.Context, store *domain.Store) error {
				return domain.ErrInvalidInput
			},
		},
	}

	req := httptest.NewRequest("POST", "/api/v1/stores", bytes.NewBufferString(`{"id":"incomplete"}`))
	rr := httptest.NewRecorder()

	server.handleRegisterStore(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleGetStore_NotFound(t *testing.T) {
	server := &Server{
		storeService: &mockStoreService{
			getFn: func(ctx context.Context, id string) (*domain.Store, error) {
				return nil, domain.ErrStoreNotFound
			},
		},
	}

	req := httptest.NewRequest("GET", "/api/v1/stores/missing", nil)
	req.SetPathValue("id", "missing")
	rr := httptest.NewRecorder()

	server.handleGetStore(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleRemoveStore(t *testing.T) {
	server := &Server{
		storeService: &mockStoreService{
			removeFn: func(ctx context.Context, id string) error { return nil },
		},
	}

	req := httptest.NewRequest("DELETE", "/api/v1/stores/eu-store", nil)
	req.SetPathValue("id", "eu-store")
	rr := httptest.NewRecorder()

	server.handleRemoveStore(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}
}

// Task endpoints

func TestHandleGetTask_NotFound(t *testing.T) {
	server := &Server{
		taskQueue: &mockTaskQueue{
			getTaskFn: func(ctx context.Context, taskID string) (*domain.Task, error) {
				return nil, nil
			},
		},
	}

	req := httptest.NewRequest("GET", "/api/v1/tasks/missing", nil)
	req.SetPathValue("id", "missing")
	rr := httptest.NewRecorder()

	server.handleGetTask(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

// Routing

func TestRoutes_OperationLifecycle(t *testing.T) {
	server := NewServer(
		Config{Version: "test"},
		&mockOperationService{
			getFn: func(ctx context.Context, operationID string) (*domain.Operation, error) {
				return &domain.Operation{ID: operationID, Status: domain.OperationStatusCompleted}, nil
			},
		},
		&mockSyncService{},
		&mockStoreService{},
		&mockTaskQueue{},
		nil,
		nil,
	)

	req := httptest.NewRequest("GET", "/api/v1/operations/op-9", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var op domain.Operation
	if err := json.NewDecoder(rr.Body).Decode(&op); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if op.ID != "op-9" {
		t.Errorf("expected path value routed to handler, got %q", op.ID)
	}
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driving"
)

// Worker processes tasks from the task queue: asynchronous bulk-operation
// executions and store synchronizations.
type Worker struct {
	taskQueue  driven.TaskQueue
	operations driving.OperationService
	sync       driving.SyncService
	logger     *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config holds configuration for the worker.
type Config struct {
	TaskQueue      driven.TaskQueue
	Operations     driving.OperationService
	Sync           driving.SyncService
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		operations:     cfg.Operations,
		sync:           cfg.Sync,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	// Start worker goroutines
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	// Wait for workers to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		// Dequeue a task with timeout
		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			// No task available, continue
			continue
		}

		// Process the task
		w.processTask(ctx, task, logger)
	}
}

// processTask processes a single task.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type)
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeExecuteOperation:
		err = w.handleExecuteOperation(ctx, task)
	case domain.TaskTypeSyncStores:
		err = w.handleSyncStores(ctx, task)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)

		// Nack the task so it can be retried
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)

	// Ack the task
	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleExecuteOperation handles an execute_operation task.
func (w *Worker) handleExecuteOperation(ctx context.Context, task *domain.Task) error {
	operationID := task.OperationID()
	if operationID == "" {
		return fmt.Errorf("operation_id not found in task payload")
	}

	cfg, err := domain.ParseSafetyConfig([]byte(task.Payload["safety_config"]))
	if err != nil {
		return err
	}

	result, err := w.operations.Execute(ctx, operationID, cfg)
	if err != nil {
		if errors.Is(err, domain.ErrPartialFailure) {
			// The operation ran and recorded its failures; retrying the
			// task would trip ErrInvalidState on a terminal operation.
			w.logger.Warn("operation partially failed",
				"operation_id", operationID,
				"failed", result.Failed,
				"not_processed", result.NotProcessed,
			)
			return nil
		}
		return err
	}

	return nil
}

// handleSyncStores handles a sync_stores task.
func (w *Worker) handleSyncStores(ctx context.Context, task *domain.Task) error {
	sourceID := task.SourceStoreID()
	if sourceID == "" {
		return fmt.Errorf("source_id not found in task payload")
	}
	targetIDs := task.TargetStoreIDs()
	if len(targetIDs) == 0 {
		return fmt.Errorf("target_ids not found in task payload")
	}

	cfg := domain.DefaultSyncConfig()
	if raw := task.Payload["sync_config"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return fmt.Errorf("%w: sync_config: %v", domain.ErrInvalidInput, err)
		}
	}

	job, err := w.sync.SyncStores(ctx, sourceID, targetIDs, cfg)
	if err != nil {
		return err
	}

	if job.Status == domain.SyncStatusFailed {
		return fmt.Errorf("sync failed: %s", job.Error)
	}
	if job.Status == domain.SyncStatusPartial {
		// Per-target failures are recorded on the job; re-running the
		// whole sync for one bad target would rewrite the healthy ones.
		w.logger.Warn("sync partially failed", "sync_job_id", job.ID)
	}

	return nil
}

// Health reports the worker's runtime state and queue reachability.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	// Check queue health
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driving"
)

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Operation endpoints

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req driving.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	preview, err := s.operationService.Preview(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type executeRequest struct {
	Safety json.RawMessage `json:"safety"`
	Async  bool            `json:"async"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	operationID := r.PathValue("id")

	var req executeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	// Reject malformed safety configs before enqueueing or executing.
	cfg, err := domain.ParseSafetyConfig(req.Safety)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Async {
		task := domain.NewExecuteOperationTask(operationID, string(req.Safety))
		if err := s.taskQueue.Enqueue(r.Context(), task); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to enqueue task")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"task_id":      task.ID,
			"operation_id": operationID,
			"status":       "queued",
		})
		return
	}

	result, err := s.operationService.Execute(r.Context(), operationID, cfg)
	if err != nil && !errors.Is(err, domain.ErrPartialFailure) {
		writeDomainError(w, err)
		return
	}
	// A partial failure still returns the full result; the status and
	// error list tell the caller what happened.
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	result, err := s.operationService.Rollback(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	operationID := r.PathValue("id")
	if err := s.operationService.Cancel(r.Context(), operationID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"operation_id": operationID,
		"status":       "cancelling",
	})
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	op, err := s.operationService.GetOperation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := s.operationService.ListOperations(r.Context(), limitParam(r, 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": ops})
}

// Sync endpoints

type syncRequest struct {
	SourceID  string          `json:"source_id"`
	TargetIDs []string        `json:"target_ids"`
	Config    json.RawMessage `json:"config"`
	Async     bool            `json:"async"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := parseSyncConfig(req.Config)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Async {
		task := domain.NewSyncStoresTask(req.SourceID, req.TargetIDs, string(req.Config))
		if err := s.taskQueue.Enqueue(r.Context(), task); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to enqueue task")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"task_id": task.ID,
			"status":  "queued",
		})
		return
	}

	job, err := s.syncService.SyncStores(r.Context(), req.SourceID, req.TargetIDs, cfg)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetSyncJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.syncService.GetSyncJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListSyncJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.syncService.ListSyncJobs(r.Context(), limitParam(r, 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sync_jobs": jobs})
}

type resolveRequest struct {
	Decisions []driving.ConflictDecision `json:"decisions"`
}

func (s *Server) handleResolveConflicts(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Decisions) == 0 {
		writeError(w, http.StatusBadRequest, "no decisions provided")
		return
	}

	applied, err := s.syncService.ResolveConflicts(r.Context(), r.PathValue("id"), req.Decisions)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"applied": applied})
}

// Store endpoints

type registerStoreRequest struct {
	domain.Store
	// ConsumerSecret is accepted on registration but never echoed back;
	// domain.Store excludes it from JSON.
	ConsumerSecret string `json:"consumer_secret"`
}

func (s *Server) handleRegisterStore(w http.ResponseWriter, r *http.Request) {
	var req registerStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store := req.Store
	store.ConsumerSecret = req.ConsumerSecret
	if err := s.storeService.RegisterStore(r.Context(), &store); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, store)
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	store, err := s.storeService.GetStore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.storeService.ListStores(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stores": stores})
}

func (s *Server) handleRemoveStore(w http.ResponseWriter, r *http.Request) {
	if err := s.storeService.RemoveStore(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Task endpoints

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskQueue.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Helpers

// parseSyncConfig decodes a sync config over the defaults; an absent body
// means "sync everything, one-way, source wins".
func parseSyncConfig(raw json.RawMessage) (domain.SyncConfig, error) {
	cfg := domain.DefaultSyncConfig()
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, domain.ErrInvalidInput
	}
	return cfg, nil
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return fallback
	}
	return limit
}

// writeDomainError maps domain sentinel errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrStoreNotFound),
		errors.Is(err, domain.ErrBackupNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConfirmationRequired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrAlreadyRunning),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrSyncInProgress),
		errors.Is(err, domain.ErrStoreDisabled),
		errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case domain.IsRemoteError(err), errors.Is(err, domain.ErrRollbackFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

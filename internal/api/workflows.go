package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/domain"
	"github.com/dunamismax/transformd/internal/id"
	"github.com/dunamismax/transformd/internal/queue"
	"github.com/dunamismax/transformd/internal/workflow"
)

type workItemResponse struct {
	ID          string         `json:"work_item_id"`
	Process     string         `json:"process"`
	PayloadType string         `json:"payload_type"`
	Payload     string         `json:"payload"`
	Initiator   string         `json:"initiator,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func newWorkItemResponse(item domain.WorkItem) workItemResponse {
	return workItemResponse{
		ID:          item.ID,
		Process:     item.Process,
		PayloadType: item.PayloadType,
		Payload:     item.Payload,
		Initiator:   item.Initiator,
		Args:        item.Args,
		Status:      item.Status,
		Error:       item.Error,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func (s *Server) workflowsEnabled(w http.ResponseWriter) bool {
	if s.queueClient == nil || s.workItems == nil || s.processes == nil {
		writeError(w, http.StatusServiceUnavailable, "workflows are not configured")
		return false
	}
	return true
}

func (s *Server) handleCreateDeactivation(w http.ResponseWriter, r *http.Request) {
	if !s.workflowsEnabled(w) {
		return
	}

	var req domain.CreateWorkItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Process == "" {
		req.Process = workflow.LabelParameterizedDeactivate
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.processes.Lookup(req.Process); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	item := domain.WorkItem{
		ID:          id.New(),
		Process:     req.Process,
		PayloadType: req.PayloadType,
		Payload:     req.Payload,
		Initiator:   req.Initiator,
		Args:        req.Args,
		Status:      domain.WorkItemStatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.workItems.Create(r.Context(), item); err != nil {
		s.logger.Error("create work item failed", zap.String("work_item_id", item.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create work item")
		return
	}

	taskInfo, err := s.queueClient.EnqueueWorkflowStep(r.Context(), queue.WorkflowPayload{
		WorkItemID:  item.ID,
		Process:     item.Process,
		PayloadType: item.PayloadType,
		Payload:     item.Payload,
		Initiator:   item.Initiator,
		Args:        item.Args,
		RequestedAt: now,
	})
	if err != nil {
		s.logger.Error("enqueue failed", zap.String("work_item_id", item.ID), zap.Error(err))
		if _, uerr := s.workItems.UpdateStatus(r.Context(), item.ID, domain.WorkItemStatusFailed, "enqueue failed"); uerr != nil {
			s.logger.Warn("update status failed", zap.String("work_item_id", item.ID), zap.Error(uerr))
		}
		writeError(w, http.StatusInternalServerError, "failed to enqueue work item")
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	if _, err := s.workItems.UpdateStatus(r.Context(), item.ID, domain.WorkItemStatusQueued, ""); err != nil {
		s.logger.Warn("update status failed", zap.String("work_item_id", item.ID), zap.Error(err))
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"work_item_id": item.ID,
		"process":      item.Process,
		"status":       domain.WorkItemStatusQueued,
		"queue":        taskInfo.Queue,
		"task_id":      taskInfo.ID,
		"state":        taskInfo.State.String(),
		"status_url":   "/v1/workflows/" + item.ID,
	})
}

func (s *Server) handleGetWorkItem(w http.ResponseWriter, r *http.Request) {
	if s.workItems == nil {
		writeError(w, http.StatusServiceUnavailable, "workflows are not configured")
		return
	}

	item, ok, err := s.workItems.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("fetch work item failed", zap.String("work_item_id", r.PathValue("id")), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load work item")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "work item not found")
		return
	}
	writeJSON(w, http.StatusOK, newWorkItemResponse(item))
}

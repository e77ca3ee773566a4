package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeWorkflowProcess = "workflow:process"

type WorkflowPayload struct {
	WorkItemID  string         `json:"work_item_id"`
	Process     string         `json:"process"`
	PayloadType string         `json:"payload_type"`
	Payload     string         `json:"payload"`
	Initiator   string         `json:"initiator,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
}

func NewWorkflowTask(payload WorkflowPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow payload: %w", err)
	}
	return asynq.NewTask(TypeWorkflowProcess, body), nil
}

func ParseWorkflowPayload(task *asynq.Task) (WorkflowPayload, error) {
	var payload WorkflowPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WorkflowPayload{}, fmt.Errorf("unmarshal workflow payload: %w", err)
	}
	if payload.WorkItemID == "" {
		return WorkflowPayload{}, fmt.Errorf("workflow payload missing work_item_id")
	}
	return payload, nil
}

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	WorkItemStatusCreated   = "created"
	WorkItemStatusQueued    = "queued"
	WorkItemStatusRunning   = "running"
	WorkItemStatusCompleted = "completed"
	WorkItemStatusFailed    = "failed"

	PayloadTypeJCRPath = "JCR_PATH"
	PayloadTypeJCRUUID = "JCR_UUID"
)

var ErrInvalidWorkItem = errors.New("invalid work item")

type CreateWorkItemRequest struct {
	Process     string         `json:"process"`
	PayloadType string         `json:"payload_type,omitempty"`
	Payload     string         `json:"payload"`
	Initiator   string         `json:"initiator,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
}

// WorkItem is a single workflow step execution against a payload.
type WorkItem struct {
	ID          string
	Process     string
	PayloadType string
	Payload     string
	Initiator   string
	Args        map[string]any
	Status      string
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *CreateWorkItemRequest) Normalize() {
	r.Process = strings.TrimSpace(r.Process)
	r.Payload = strings.TrimSpace(r.Payload)
	r.Initiator = strings.TrimSpace(r.Initiator)
	r.PayloadType = strings.ToUpper(strings.TrimSpace(r.PayloadType))
	if r.PayloadType == "" {
		r.PayloadType = PayloadTypeJCRPath
	}
}

func (r CreateWorkItemRequest) Validate() error {
	if strings.TrimSpace(r.Process) == "" {
		return fmt.Errorf("%w: process is required", ErrInvalidWorkItem)
	}
	if strings.TrimSpace(r.Payload) == "" {
		return fmt.Errorf("%w: payload is required", ErrInvalidWorkItem)
	}
	switch strings.ToUpper(strings.TrimSpace(r.PayloadType)) {
	case "", PayloadTypeJCRPath:
		if !strings.HasPrefix(strings.TrimSpace(r.Payload), "/") {
			return fmt.Errorf("%w: payload must be an absolute path", ErrInvalidWorkItem)
		}
	case PayloadTypeJCRUUID:
	default:
		return fmt.Errorf("%w: unsupported payload_type: %s", ErrInvalidWorkItem, r.PayloadType)
	}
	return nil
}

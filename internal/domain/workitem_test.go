package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateWorkItemRequestValidate(t *testing.T) {
	valid := CreateWorkItemRequest{
		Process: "Parameterized Deactivate Resource Process",
		Payload: "/content/site/en/page",
	}
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, CreateWorkItemRequest{}.Validate(), ErrInvalidWorkItem)

	missingPayload := CreateWorkItemRequest{Process: "p"}
	assert.ErrorContains(t, missingPayload.Validate(), "payload is required")

	relative := CreateWorkItemRequest{Process: "p", Payload: "content/page"}
	assert.ErrorContains(t, relative.Validate(), "absolute path")

	uuid := CreateWorkItemRequest{Process: "p", PayloadType: "jcr_uuid", Payload: "2d4d-11"}
	assert.NoError(t, uuid.Validate())

	unsupported := CreateWorkItemRequest{Process: "p", PayloadType: "URL", Payload: "/x"}
	assert.ErrorContains(t, unsupported.Validate(), "unsupported payload_type")
}

func TestCreateWorkItemRequestNormalize(t *testing.T) {
	req := CreateWorkItemRequest{Process: "  p ", Payload: " /a ", PayloadType: " "}
	req.Normalize()
	assert.Equal(t, "p", req.Process)
	assert.Equal(t, "/a", req.Payload)
	assert.Equal(t, PayloadTypeJCRPath, req.PayloadType)
}

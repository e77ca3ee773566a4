package replication

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentsYAML = `
agents:
  - id: publish
    title: Default Agent
    enabled: true
    transport_uri: http://publish:4503/bin/receive
    transport_user: admin
    transport_secret: s3cret
    timeout: 5s
  - id: dispatcher
    title: Dispatcher Flush
    enabled: false
`

func TestLoadAgents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(agentsYAML), 0o600))

	reg, err := LoadAgents(path)
	require.NoError(t, err)

	agents := reg.Agents()
	require.Len(t, agents, 2)
	assert.Equal(t, "publish", agents[0].ID)
	assert.Equal(t, 5*time.Second, agents[0].Timeout)
	assert.True(t, agents[0].Enabled)
	assert.False(t, agents[1].Enabled)

	got, ok := reg.Get("dispatcher")
	require.True(t, ok)
	assert.Equal(t, "Dispatcher Flush", got.Title)
}

func TestParseAgentsValidation(t *testing.T) {
	_, err := ParseAgents([]byte("agents:\n  - title: nameless\n"))
	assert.Error(t, err)

	_, err = ParseAgents([]byte("agents:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)

	_, err = ParseAgents([]byte("agents:\n  - id: a\n    enabled: true\n"))
	assert.Error(t, err)
}

func TestAgentRegistryRegisterReplaces(t *testing.T) {
	reg := NewAgentRegistry(Agent{ID: "a", Title: "first"}, Agent{ID: "b"})
	reg.Register(Agent{ID: "a", Title: "second"})
	reg.Remove("b")

	agents := reg.Agents()
	require.Len(t, agents, 1)
	assert.Equal(t, "second", agents[0].Title)
}

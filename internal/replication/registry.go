package replication

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type AgentRegistry struct {
	mu     sync.RWMutex
	agents []Agent
}

func NewAgentRegistry(agents ...Agent) *AgentRegistry {
	r := &AgentRegistry{}
	for _, a := range agents {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the agent with the same ID, keeping its
// position.
func (r *AgentRegistry) Register(agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.agents {
		if r.agents[i].ID == agent.ID {
			r.agents[i] = agent
			return
		}
	}
	r.agents = append(r.agents, agent)
}

func (r *AgentRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.agents {
		if r.agents[i].ID == id {
			r.agents = append(r.agents[:i], r.agents[i+1:]...)
			return
		}
	}
}

func (r *AgentRegistry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}

// Agents returns a snapshot in registration order.
func (r *AgentRegistry) Agents() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

type agentFile struct {
	Agents []Agent `yaml:"agents"`
}

func LoadAgents(path string) (*AgentRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	agents, err := ParseAgents(data)
	if err != nil {
		return nil, fmt.Errorf("parse agents file %s: %w", path, err)
	}
	return NewAgentRegistry(agents...), nil
}

func ParseAgents(data []byte) ([]Agent, error) {
	var file agentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(file.Agents))
	for i, a := range file.Agents {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			return nil, fmt.Errorf("agent %d: id is required", i)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("agent %q defined twice", a.ID)
		}
		seen[a.ID] = struct{}{}
		if a.Enabled && strings.TrimSpace(a.TransportURI) == "" {
			return nil, fmt.Errorf("agent %q: transport_uri is required when enabled", a.ID)
		}
		file.Agents[i] = a
	}
	return file.Agents, nil
}

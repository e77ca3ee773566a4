package replication

import (
	"slices"
	"time"
)

type Action string

const (
	ActionActivate   Action = "Activate"
	ActionDeactivate Action = "Deactivate"
	ActionDelete     Action = "Delete"
	ActionTest       Action = "Test"
)

func (a Action) Valid() bool {
	switch a {
	case ActionActivate, ActionDeactivate, ActionDelete, ActionTest:
		return true
	default:
		return false
	}
}

// Agent is a replication target: a remote instance that receives
// replication requests over HTTP.
type Agent struct {
	ID              string        `yaml:"id"`
	Title           string        `yaml:"title"`
	Enabled         bool          `yaml:"enabled"`
	TransportURI    string        `yaml:"transport_uri"`
	TransportUser   string        `yaml:"transport_user"`
	TransportSecret string        `yaml:"transport_secret"`
	Timeout         time.Duration `yaml:"timeout"`
}

type AgentFilter interface {
	Included(agent Agent) bool
}

type AgentFilterFunc func(agent Agent) bool

func (f AgentFilterFunc) Included(agent Agent) bool { return f(agent) }

// AllAgents includes every enabled agent.
var AllAgents AgentFilter = AgentFilterFunc(func(Agent) bool { return true })

// AgentIDs includes an agent iff ids is non-empty and contains its ID.
func AgentIDs(ids ...string) AgentFilter {
	ids = slices.Clone(ids)
	return AgentFilterFunc(func(agent Agent) bool {
		return len(ids) > 0 && slices.Contains(ids, agent.ID)
	})
}

type Options struct {
	// Filter selects agents; nil means all enabled agents.
	Filter               AgentFilter
	SuppressStatusUpdate bool
	Synchronous          bool
	Initiator            string
}

func (o Options) includes(agent Agent) bool {
	if !agent.Enabled {
		return false
	}
	if o.Filter == nil {
		return true
	}
	return o.Filter.Included(agent)
}

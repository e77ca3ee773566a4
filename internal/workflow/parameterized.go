package workflow

import (
	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/replication"
	"github.com/dunamismax/transformd/internal/repository"
)

const (
	LabelParameterizedDeactivate = "Parameterized Deactivate Resource Process"

	ArgReplicationAgent     = "replicationAgent"
	ArgSuppressStatusUpdate = "suppressStatusUpdate"
)

// ParameterizedDeactivateProcess deactivates only towards the agents named
// in the replicationAgent argument. Options are derived from each
// execution's own arguments, so concurrent executions never share state.
type ParameterizedDeactivateProcess struct {
	*DeactivateProcess
}

func NewParameterizedDeactivateProcess(repo repository.Repository, replicator Replicator, logger *zap.Logger) *ParameterizedDeactivateProcess {
	base := NewDeactivateProcess(repo, replicator, logger)
	base.label = LabelParameterizedDeactivate
	base.prepare = PrepareOptions
	return &ParameterizedDeactivateProcess{DeactivateProcess: base}
}

// PrepareOptions restricts opts to the agents listed under
// replicationAgent (none when the list is empty) and copies the
// suppressStatusUpdate flag.
func PrepareOptions(opts replication.Options, args MetaData) replication.Options {
	opts.Filter = replication.AgentIDs(args.Strings(ArgReplicationAgent)...)
	opts.SuppressStatusUpdate = args.Bool(ArgSuppressStatusUpdate)
	return opts
}

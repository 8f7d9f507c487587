package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattjoyce/notifyd/internal/domain"
)

// LookupPolicy decides what a lookup fault during stage payload building does.
type LookupPolicy string

const (
	// LookupAbort fails the whole dispatch; nothing is posted.
	LookupAbort LookupPolicy = "abort"
	// LookupOmit leaves the affected field empty and carries on.
	LookupOmit LookupPolicy = "omit"
)

// ParseLookupPolicy accepts "abort", "omit" or "" (abort).
func ParseLookupPolicy(s string) (LookupPolicy, error) {
	switch LookupPolicy(s) {
	case "", LookupAbort:
		return LookupAbort, nil
	case LookupOmit:
		return LookupOmit, nil
	default:
		return "", fmt.Errorf("invalid lookup policy %q (valid: abort, omit)", s)
	}
}

// LookupError reports a failed collaborator lookup.
type LookupError struct {
	Field    string // build_cause | pipeline_group
	Pipeline string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s for pipeline %q: %v", e.Field, e.Pipeline, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// BuildAgentData maps an agent snapshot to its payload.
func BuildAgentData(agent domain.Agent) AgentData {
	d := AgentData{
		UUID:             agent.UUID,
		HostName:         agent.Hostname,
		IPAddress:        agent.IPAddress,
		FreeSpace:        agent.FreeSpace.String(),
		AgentConfigState: string(agent.ConfigStatus),
		AgentState:       string(agent.Runtime.AgentState),
		BuildState:       string(agent.Runtime.BuildState),
	}
	if agent.Config.IsElastic() {
		d.IsElastic = true
		d.ElasticAgentID = agent.Config.ElasticAgentID
		d.ElasticPluginID = agent.Config.ElasticPluginID
	}
	return d
}

// BuildStageData resolves the build cause and pipeline group of stage.
//
// Under LookupAbort the first lookup fault is returned as a *LookupError.
// Under LookupOmit faults are returned in omitted and the affected fields
// stay empty; err is always nil.
func BuildStageData(
	ctx context.Context,
	stage domain.Stage,
	causes BuildCauseFinder,
	groups GroupFinder,
	policy LookupPolicy,
) (data StageData, omitted []error, err error) {
	id := stage.Identifier
	data.Stage = stage

	cause, err := causes.FindBuildCause(ctx, id.PipelineName, id.PipelineCounter)
	if err != nil {
		lerr := &LookupError{Field: "build_cause", Pipeline: id.PipelineName, Err: err}
		if policy != LookupOmit {
			return StageData{}, nil, lerr
		}
		omitted = append(omitted, lerr)
	} else {
		data.BuildCause = cause
	}

	group, err := groups.FindGroupName(ctx, id.PipelineName)
	if err != nil {
		lerr := &LookupError{Field: "pipeline_group", Pipeline: id.PipelineName, Err: err}
		if policy != LookupOmit {
			return StageData{}, nil, lerr
		}
		omitted = append(omitted, lerr)
	} else {
		data.PipelineGroup = group
	}

	return data, omitted, nil
}

// IsLookupError reports whether err came from a collaborator lookup.
func IsLookupError(err error) bool {
	var lerr *LookupError
	return errors.As(err, &lerr)
}

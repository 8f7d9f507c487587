package notification

import (
	"encoding/json"
	"fmt"

	"github.com/mattjoyce/notifyd/internal/domain"
)

// Payload is the plugin-facing data of a notification. The set of
// implementations is closed: AgentData and StageData.
type Payload interface {
	Kind() Kind
	isPayload()
}

// AgentData is the payload of agent-status-changed.
type AgentData struct {
	UUID             string `json:"uuid"`
	HostName         string `json:"host_name"`
	IPAddress        string `json:"ip_address"`
	FreeSpace        string `json:"free_space"`
	AgentConfigState string `json:"agent_config_state"`
	AgentState       string `json:"agent_state"`
	BuildState       string `json:"build_state"`
	IsElastic        bool   `json:"is_elastic"`
	ElasticAgentID   string `json:"elastic_agent_id,omitempty"`
	ElasticPluginID  string `json:"elastic_plugin_id,omitempty"`
}

func (AgentData) Kind() Kind { return AgentStatusChanged }
func (AgentData) isPayload() {}

// StageData is the payload of stage-status-changed. BuildCause is nil and
// PipelineGroup empty when the respective lookup found nothing.
type StageData struct {
	Stage         domain.Stage       `json:"stage"`
	BuildCause    *domain.BuildCause `json:"build_cause,omitempty"`
	PipelineGroup string             `json:"pipeline_group,omitempty"`
}

func (StageData) Kind() Kind { return StageStatusChanged }
func (StageData) isPayload() {}

// DecodePayload parses raw JSON into the payload type of kind.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	switch kind {
	case AgentStatusChanged:
		var d AgentData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return d, nil
	case StageStatusChanged:
		var d StageData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Summary is a one-line description of a payload for logs and the watch view.
func Summary(p Payload) string {
	switch d := p.(type) {
	case AgentData:
		return fmt.Sprintf("agent %s (%s) %s/%s", d.HostName, d.UUID, d.AgentState, d.BuildState)
	case StageData:
		return fmt.Sprintf("stage %s %s", d.Stage.Identifier, d.Stage.State)
	default:
		return ""
	}
}

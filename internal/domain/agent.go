// Package domain holds the snapshots that event producers hand to the
// notification service. Values are copied on dispatch and never mutated.
package domain

import "github.com/dustin/go-humanize"

// AgentConfigStatus is the administrative state of an agent.
type AgentConfigStatus string

const (
	AgentConfigPending  AgentConfigStatus = "Pending"
	AgentConfigEnabled  AgentConfigStatus = "Enabled"
	AgentConfigDisabled AgentConfigStatus = "Disabled"
)

// AgentState is the runtime state reported by (or inferred for) an agent.
type AgentState string

const (
	AgentIdle        AgentState = "Idle"
	AgentBuilding    AgentState = "Building"
	AgentLostContact AgentState = "LostContact"
	AgentMissing     AgentState = "Missing"
	AgentCancelled   AgentState = "Cancelled"
	AgentUnknown     AgentState = "Unknown"
)

// BuildState is what the agent is doing with its current assignment.
type BuildState string

const (
	BuildIdle      BuildState = "Idle"
	BuildBuilding  BuildState = "Building"
	BuildCancelled BuildState = "Cancelled"
	BuildUnknown   BuildState = "Unknown"
)

// AgentConfig is the configured side of an agent.
type AgentConfig struct {
	UUID            string   `json:"uuid"`
	Hostname        string   `json:"hostname"`
	IPAddress       string   `json:"ip_address"`
	ElasticAgentID  string   `json:"elastic_agent_id,omitempty"`
	ElasticPluginID string   `json:"elastic_plugin_id,omitempty"`
	Resources       []string `json:"resources,omitempty"`
}

// IsElastic reports whether the agent was provisioned by an elastic agent
// plugin. Both ids must be present.
func (c AgentConfig) IsElastic() bool {
	return c.ElasticAgentID != "" && c.ElasticPluginID != ""
}

// AgentRuntimeStatus pairs the agent state with its build state.
type AgentRuntimeStatus struct {
	AgentState AgentState `json:"agent_state"`
	BuildState BuildState `json:"build_state"`
}

// UnknownDiskSpace marks an agent that has not reported free space.
const UnknownDiskSpace DiskSpace = -1

// DiskSpace is a byte count reported by an agent.
type DiskSpace int64

func (d DiskSpace) String() string {
	if d < 0 {
		return "Unknown"
	}
	return humanize.IBytes(uint64(d))
}

// Agent is a point-in-time snapshot of an agent instance.
type Agent struct {
	UUID         string             `json:"uuid"`
	Hostname     string             `json:"hostname"`
	IPAddress    string             `json:"ip_address"`
	FreeSpace    DiskSpace          `json:"free_space"`
	ConfigStatus AgentConfigStatus  `json:"config_status"`
	Runtime      AgentRuntimeStatus `json:"runtime"`
	Config       AgentConfig        `json:"config"`
}

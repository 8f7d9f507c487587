package notification

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/notifyd/internal/domain"
)

func TestAgentDataJSON_OmitsElasticIDsWhenNotElastic(t *testing.T) {
	raw, err := json.Marshal(AgentData{UUID: "u", HostName: "h"})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, false, m["is_elastic"])
	assert.NotContains(t, m, "elastic_agent_id")
	assert.NotContains(t, m, "elastic_plugin_id")
	assert.Equal(t, "h", m["host_name"])
}

func TestStageDataJSON_OmitsAbsentLookups(t *testing.T) {
	raw, err := json.Marshal(StageData{Stage: domain.Stage{Identifier: domain.StageIdentifier{PipelineName: "P"}}})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Contains(t, m, "stage")
	assert.NotContains(t, m, "build_cause")
	assert.NotContains(t, m, "pipeline_group")
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(AgentStatusChanged, []byte(`{"uuid":"u","is_elastic":true,"elastic_agent_id":"42"}`))
	require.NoError(t, err)
	agent, ok := p.(AgentData)
	require.True(t, ok)
	assert.Equal(t, "42", agent.ElasticAgentID)

	p, err = DecodePayload(StageStatusChanged, []byte(`{"stage":{"identifier":{"pipeline_name":"P"}},"pipeline_group":"g"}`))
	require.NoError(t, err)
	assert.Equal(t, StageStatusChanged, p.Kind())
	assert.Equal(t, "g", p.(StageData).PipelineGroup)

	_, err = DecodePayload("plugin-settings-changed", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = DecodePayload(AgentStatusChanged, []byte(`{`))
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "agent h (u) Idle/Building",
		Summary(AgentData{UUID: "u", HostName: "h", AgentState: "Idle", BuildState: "Building"}))

	st := StageData{Stage: domain.Stage{
		Identifier: domain.StageIdentifier{PipelineName: "P", PipelineCounter: 1, StageName: "S", StageCounter: 2},
		State:      domain.StagePassed,
	}}
	assert.Equal(t, "stage P/1/S/2 Passed", Summary(st))
	assert.Equal(t, "", Summary(nil))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("stage-status-changed")
	require.NoError(t, err)
	assert.Equal(t, StageStatusChanged, k)

	_, err = ParseKind("agent-status")
	assert.ErrorIs(t, err, ErrUnknownKind)

	assert.Len(t, Kinds(), 2)
}

func TestMessageAccessors(t *testing.T) {
	data := AgentData{UUID: "u"}
	m := NewMessage("slack", data)
	assert.Equal(t, "slack", m.PluginID())
	assert.Equal(t, "agent-status-changed", m.RequestName())
	assert.Equal(t, AgentStatusChanged, m.Kind())
	assert.Equal(t, data, m.Data())

	var zero Message
	assert.Equal(t, "", zero.RequestName())
}

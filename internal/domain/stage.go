package domain

import (
	"fmt"
	"time"
)

type StageState string

const (
	StageBuilding  StageState = "Building"
	StagePassed    StageState = "Passed"
	StageFailed    StageState = "Failed"
	StageFailing   StageState = "Failing"
	StageCancelled StageState = "Cancelled"
	StageUnknown   StageState = "Unknown"
)

type StageResult string

const (
	ResultPassed    StageResult = "Passed"
	ResultFailed    StageResult = "Failed"
	ResultCancelled StageResult = "Cancelled"
	ResultUnknown   StageResult = "Unknown"
)

// StageIdentifier locates a stage run inside a pipeline run.
type StageIdentifier struct {
	PipelineName    string `json:"pipeline_name"`
	PipelineCounter int    `json:"pipeline_counter"`
	PipelineLabel   string `json:"pipeline_label,omitempty"`
	StageName       string `json:"stage_name"`
	StageCounter    int    `json:"stage_counter"`
}

func (id StageIdentifier) String() string {
	return fmt.Sprintf("%s/%d/%s/%d", id.PipelineName, id.PipelineCounter, id.StageName, id.StageCounter)
}

// JobInstance is one job run within a stage.
type JobInstance struct {
	Name        string     `json:"name"`
	State       string     `json:"state"`
	Result      string     `json:"result"`
	AgentUUID   string     `json:"agent_uuid,omitempty"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Stage is a point-in-time snapshot of a stage run.
type Stage struct {
	Identifier       StageIdentifier `json:"identifier"`
	State            StageState      `json:"state"`
	Result           StageResult     `json:"result"`
	ApprovalType     string          `json:"approval_type,omitempty"`
	ApprovedBy       string          `json:"approved_by,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	LastTransitionAt *time.Time      `json:"last_transition_at,omitempty"`
	Jobs             []JobInstance   `json:"jobs,omitempty"`
}

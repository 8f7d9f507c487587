package domain

import "time"

// BuildCause records why a pipeline run was triggered.
type BuildCause struct {
	TriggerMessage    string             `json:"trigger_message"`
	TriggerForced     bool               `json:"trigger_forced"`
	Approver          string             `json:"approver,omitempty"`
	MaterialRevisions []MaterialRevision `json:"material_revisions,omitempty"`
}

// ManualForced is the cause recorded when a user forces a run.
func ManualForced(approver string) BuildCause {
	msg := "Forced"
	if approver != "" {
		msg = "Forced by " + approver
	}
	return BuildCause{
		TriggerMessage: msg,
		TriggerForced:  true,
		Approver:       approver,
	}
}

type Material struct {
	Type        string `json:"type"`
	Fingerprint string `json:"fingerprint"`
	Description string `json:"description,omitempty"`
}

type Modification struct {
	Revision   string    `json:"revision"`
	ModifiedBy string    `json:"modified_by,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

type MaterialRevision struct {
	Material      Material       `json:"material"`
	Changed       bool           `json:"changed"`
	Modifications []Modification `json:"modifications,omitempty"`
}

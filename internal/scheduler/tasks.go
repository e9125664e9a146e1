package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskProtectionNotice = "leads.protection.notice"

type ProtectionNoticePayload struct {
	Kind        string     `json:"kind"`
	LeadID      string     `json:"leadId"`
	OwnerUserID string     `json:"ownerUserId"`
	CompanyName string     `json:"companyName"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// TaskID identifies the notice for one lead entering one phase.
func (p ProtectionNoticePayload) TaskID() string {
	id := "notice:" + p.Kind + ":" + p.LeadID
	if p.ExpiresAt != nil {
		id += ":" + p.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return id
}

func NewProtectionNoticeTask(payload ProtectionNoticePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProtectionNotice, data), nil
}

func ParseProtectionNoticePayload(task *asynq.Task) (ProtectionNoticePayload, error) {
	var payload ProtectionNoticePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ProtectionNoticePayload{}, err
	}
	return payload, nil
}

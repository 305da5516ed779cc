package model

import "time"

type PendingActionKind string

const (
	PendingDelete PendingActionKind = "delete"
	PendingReset  PendingActionKind = "reset"
)

// PendingAction 等待二次确认的管理员破坏性操作
type PendingAction struct {
	Token        string            `json:"token"`
	Kind         PendingActionKind `json:"kind"`
	SubmissionID uint              `json:"submissionId,omitempty"`
	ActorID      uint              `json:"actorId"`
	CreatedAt    time.Time         `json:"createdAt"`
	ExpiresAt    time.Time         `json:"expiresAt"`
}

func (a *PendingAction) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

package models

import (
	"time"
)

type EventAudience string

const (
	// AudienceAssignees fans out to every worker and team member assigned to the job.
	AudienceAssignees EventAudience = "JOB_ASSIGNEES"
	// AudienceAdmins fans out to all active admins and managers.
	AudienceAdmins EventAudience = "ADMINS"
	// AudienceUser targets a single user.
	AudienceUser EventAudience = "USER"
)

type EventStatus string

const (
	EventPending EventStatus = "PENDING"
	EventSent    EventStatus = "SENT"
	EventFailed  EventStatus = "FAILED"
)

// JobEvent is the durable outbox record written inside the state-mutation
// transaction. Dispatch (recipient resolution + notification writes) happens
// after commit, so a notification-layer failure can never roll back the
// mutation that produced the event.
type JobEvent struct {
	ID            uint             `json:"id" gorm:"primaryKey"`
	JobID         *uint            `json:"jobId" gorm:"index"`
	Audience      EventAudience    `json:"audience" gorm:"not null"`
	TargetUserID  *uint            `json:"targetUserId"`  // AudienceUser
	ExcludeUserID *uint            `json:"excludeUserId"` // AudienceAdmins
	Title         string           `json:"title" gorm:"not null"`
	Message       string           `json:"message" gorm:"type:text"`
	Type          NotificationType `json:"type" gorm:"not null;default:'INFO'"`
	Link          string           `json:"link"`
	Status        EventStatus      `json:"status" gorm:"not null;default:'PENDING';index"`
	DispatchedAt  *time.Time       `json:"dispatchedAt"`
	CreatedAt     time.Time        `json:"createdAt"`
}

func (JobEvent) TableName() string {
	return "job_events"
}

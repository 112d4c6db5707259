package models

import (
	"time"

	"gorm.io/gorm"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Approvable is the shared two-phase review state embedded by every entity
// that can be approved or rejected (steps, sub-steps, cost entries).
type Approvable struct {
	ApprovalStatus  *ApprovalStatus `json:"approvalStatus" gorm:"type:varchar(16)"`
	ApprovedByID    *uint           `json:"approvedById"`
	ApprovedAt      *time.Time      `json:"approvedAt"`
	RejectionReason *string         `json:"rejectionReason"`
}

type ApprovalType string

const (
	ApprovalTypeJobCompletion ApprovalType = "JOB_COMPLETION"
)

// Approval is the decision record gating final job completion.
type Approval struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	JobID       uint           `json:"jobId" gorm:"not null;index"`
	Job         *Job           `json:"job,omitempty" gorm:"foreignKey:JobID"`
	RequesterID uint           `json:"requesterId" gorm:"not null"`
	Requester   *User          `json:"requester,omitempty" gorm:"foreignKey:RequesterID"`
	ApproverID  uint           `json:"approverId" gorm:"not null"`
	Approver    *User          `json:"approver,omitempty" gorm:"foreignKey:ApproverID"`
	Status      ApprovalStatus `json:"status" gorm:"not null;default:'PENDING'"`
	Type        ApprovalType   `json:"type" gorm:"not null;default:'JOB_COMPLETION'"`
	Reason      *string        `json:"reason"`
	ResolvedAt  *time.Time     `json:"resolvedAt"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Approval) TableName() string {
	return "approvals"
}

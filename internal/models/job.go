package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusOnHold     JobStatus = "ON_HOLD"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

type JobPriority string

const (
	JobPriorityLow    JobPriority = "LOW"
	JobPriorityMedium JobPriority = "MEDIUM"
	JobPriorityHigh   JobPriority = "HIGH"
	JobPriorityUrgent JobPriority = "URGENT"
)

type Job struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	Title            string         `json:"title" gorm:"not null"`
	Description      string         `json:"description" gorm:"type:text"`
	Status           JobStatus      `json:"status" gorm:"not null;default:'PENDING';index"`
	Priority         JobPriority    `json:"priority" gorm:"not null;default:'MEDIUM'"`
	ScheduledDate    *time.Time     `json:"scheduledDate"`
	ScheduledEndDate *time.Time     `json:"scheduledEndDate"`
	StartedAt        *time.Time     `json:"startedAt"`
	CompletedDate    *time.Time     `json:"completedDate"`
	CreatedByID      uint           `json:"createdById" gorm:"not null"`
	CreatedBy        *User          `json:"createdBy,omitempty" gorm:"foreignKey:CreatedByID"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"` // version clock for conflict detection
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`

	Steps       []JobStep       `json:"steps,omitempty" gorm:"foreignKey:JobID"`
	Assignments []JobAssignment `json:"assignments,omitempty" gorm:"foreignKey:JobID"`
}

func (Job) TableName() string {
	return "jobs"
}

type JobStep struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	JobID         uint           `json:"jobId" gorm:"not null;index;uniqueIndex:idx_job_step_order"`
	Title         string         `json:"title" gorm:"not null"`
	Order         int            `json:"order" gorm:"column:step_order;not null;uniqueIndex:idx_job_step_order"` // 1-based, unique per job
	IsCompleted   bool           `json:"isCompleted" gorm:"not null;default:false"`
	StartedAt     *time.Time     `json:"startedAt"`
	CompletedAt   *time.Time     `json:"completedAt"`
	CompletedByID *uint          `json:"completedById"`
	CompletedBy   *User          `json:"completedBy,omitempty" gorm:"foreignKey:CompletedByID"`
	Approvable    `json:"approval" gorm:"embedded"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	SubSteps []JobSubStep `json:"subSteps,omitempty" gorm:"foreignKey:StepID"`
}

func (JobStep) TableName() string {
	return "job_steps"
}

type JobSubStep struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	StepID      uint           `json:"stepId" gorm:"not null;index;uniqueIndex:idx_step_sub_order"`
	Title       string         `json:"title" gorm:"not null"`
	Order       int            `json:"order" gorm:"column:sub_step_order;not null;uniqueIndex:idx_step_sub_order"`
	IsCompleted bool           `json:"isCompleted" gorm:"not null;default:false"`
	StartedAt   *time.Time     `json:"startedAt"` // set once; only rejection resets it
	CompletedAt *time.Time     `json:"completedAt"`
	Approvable  `json:"approval" gorm:"embedded"`
	PhotoURLs   PhotoList      `json:"photoUrls" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (JobSubStep) TableName() string {
	return "job_sub_steps"
}

// JobAssignment binds a job to either a worker or a team, never both.
type JobAssignment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	JobID     uint      `json:"jobId" gorm:"not null;index"`
	TeamID    *uint     `json:"teamId"`
	Team      *Team     `json:"team,omitempty" gorm:"foreignKey:TeamID"`
	WorkerID  *uint     `json:"workerId"`
	Worker    *User     `json:"worker,omitempty" gorm:"foreignKey:WorkerID"`
	CreatedAt time.Time `json:"createdAt"`
}

func (JobAssignment) TableName() string {
	return "job_assignments"
}

type Photo struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// PhotoList is stored as a jsonb column.
type PhotoList []Photo

func (p PhotoList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PhotoList) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for PhotoList: %T", value)
	}
	return json.Unmarshal(data, p)
}

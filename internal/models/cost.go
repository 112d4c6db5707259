package models

import (
	"time"

	"gorm.io/gorm"
)

type CostCategory string

const (
	CostCategoryLabor     CostCategory = "LABOR"
	CostCategoryMaterials CostCategory = "MATERIALS"
	CostCategoryTransport CostCategory = "TRANSPORT"
	CostCategoryOther     CostCategory = "OTHER"
)

// CostTracking carries its own approval sub-flow; decisions here never
// cascade into job or step state.
type CostTracking struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	JobID       uint           `json:"jobId" gorm:"not null;index"`
	Job         *Job           `json:"job,omitempty" gorm:"foreignKey:JobID"`
	Amount      float64        `json:"amount" gorm:"not null"`
	Category    CostCategory   `json:"category" gorm:"not null;default:'OTHER'"`
	Description string         `json:"description" gorm:"type:text"`
	CreatedByID uint           `json:"createdById" gorm:"not null"`
	Approvable  `json:"approval" gorm:"embedded"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (CostTracking) TableName() string {
	return "cost_tracking"
}

package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleManager  UserRole = "MANAGER"
	RoleTeamLead UserRole = "TEAM_LEAD"
	RoleWorker   UserRole = "WORKER"
	RoleCustomer UserRole = "CUSTOMER"
)

// IsElevated reports whether the role may act on any job without holding an assignment.
func (r UserRole) IsElevated() bool {
	return r == RoleAdmin || r == RoleManager
}

// CanToggleProgress reports whether the role may toggle step/sub-step completion.
func (r UserRole) CanToggleProgress() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTeamLead, RoleWorker:
		return true
	}
	return false
}

type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"uniqueIndex;not null"`
	Password  string         `json:"-" gorm:"not null"`
	FirstName string         `json:"firstName" gorm:"not null"`
	LastName  string         `json:"lastName" gorm:"not null"`
	Role      UserRole       `json:"role" gorm:"not null;default:'WORKER'"`
	IsActive  bool           `json:"isActive" gorm:"not null;default:true"`
	Avatar    *string        `json:"avatar"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

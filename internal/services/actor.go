package services

import (
	"errors"

	"github.com/fieldops/backend/internal/models"
	"gorm.io/gorm"
)

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	ID   uint
	Role models.UserRole
}

// holdsAssignment reports whether the actor is directly assigned to the job
// or belongs to an assigned team.
func holdsAssignment(tx *gorm.DB, jobID uint, userID uint) (bool, error) {
	var direct int64
	if err := tx.Model(&models.JobAssignment{}).
		Where("job_id = ? AND worker_id = ?", jobID, userID).
		Count(&direct).Error; err != nil {
		return false, err
	}
	if direct > 0 {
		return true, nil
	}

	var viaTeam int64
	err := tx.Model(&models.TeamMember{}).
		Joins("JOIN job_assignments ON job_assignments.team_id = team_members.team_id").
		Where("job_assignments.job_id = ? AND team_members.user_id = ?", jobID, userID).
		Count(&viaTeam).Error
	if err != nil {
		return false, err
	}
	return viaTeam > 0, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
